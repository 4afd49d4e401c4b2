package steadyline

import (
	"testing"
	"time"
)

// BenchmarkViewfinder_Frame measures one animation frame: refresh plus a full render.
func BenchmarkViewfinder_Frame(b *testing.B) {
	f := newFixture(b)
	f.update(startMsg{})
	for _, msg := range f.exec.drain() {
		f.update(msg)
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		f.clock.Advance(33 * time.Millisecond)
		f.update(frameMsg(f.clock.Now()))
		_ = f.vf.View()
	}
}
