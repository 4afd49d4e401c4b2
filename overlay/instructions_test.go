package overlay

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstructionSequence_StageAt(t *testing.T) {
	seq := NewInstructionSequence(epoch, ms(3000), ms(5000))

	tests := []struct {
		at   int
		want Stage
	}{
		{0, ShowingHint},
		{1000, ShowingHint},
		{2999, ShowingHint},
		{3000, ShowingGuidance},
		{4000, ShowingGuidance},
		{7999, ShowingGuidance},
		{8000, Hidden},
		{9000, Hidden},
		{600000, Hidden},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, seq.StageAt(epoch.Add(ms(tt.at))), "t=%d", tt.at)
	}
}

func TestInstructionSequence_NextTransition(t *testing.T) {
	seq := NewInstructionSequence(epoch, ms(3000), ms(5000))

	wait, next, ok := seq.NextTransition(epoch.Add(ms(1000)))
	assert.True(t, ok)
	assert.Equal(t, ShowingGuidance, next)
	assert.Equal(t, ms(2000), wait)

	wait, next, ok = seq.NextTransition(epoch.Add(ms(4000)))
	assert.True(t, ok)
	assert.Equal(t, Hidden, next)
	assert.Equal(t, ms(4000), wait)

	_, _, ok = seq.NextTransition(epoch.Add(ms(9000)))
	assert.False(t, ok)
}

func TestStage_Text(t *testing.T) {
	assert.Equal(t, HintText, ShowingHint.Text())
	assert.Equal(t, GuidanceText, ShowingGuidance.Text())
	assert.Empty(t, Hidden.Text())
	assert.Equal(t, "guidance", ShowingGuidance.String())
	assert.Equal(t, "unknown", Stage(42).String())
}

func receive(t *testing.T, ch <-chan Stage) Stage {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(time.Second):
		require.FailNow(t, "no stage change delivered")
		return Hidden
	}
}

func assertQuiet(t *testing.T, ch <-chan Stage) {
	t.Helper()
	select {
	case s := <-ch:
		assert.Failf(t, "unexpected stage change", "got %s", s)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestInstructionSequence_WatchDeliversEachStageOnce(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	seq := NewInstructionSequence(clock.Now(), ms(3000), ms(5000))

	ch := make(chan Stage, 8)
	stop := seq.Watch(clock, func(s Stage) { ch <- s })
	defer stop()

	clock.Advance(ms(1000))
	assertQuiet(t, ch)

	clock.Advance(ms(2000))
	assert.Equal(t, ShowingGuidance, receive(t, ch))

	clock.Advance(ms(5000))
	assert.Equal(t, Hidden, receive(t, ch))

	clock.Advance(time.Hour)
	assertQuiet(t, ch)
}

func TestInstructionSequence_WatchSkipsPastStages(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	seq := NewInstructionSequence(clock.Now(), ms(3000), ms(5000))
	clock.Advance(ms(4000))

	ch := make(chan Stage, 8)
	stop := seq.Watch(clock, func(s Stage) { ch <- s })
	defer stop()

	clock.Advance(ms(4000))
	assert.Equal(t, Hidden, receive(t, ch))
	assertQuiet(t, ch)
}

func TestInstructionSequence_StopDisarms(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	seq := NewInstructionSequence(clock.Now(), ms(3000), ms(5000))

	ch := make(chan Stage, 8)
	stop := seq.Watch(clock, func(s Stage) { ch <- s })
	stop()

	clock.Advance(time.Minute)
	assertQuiet(t, ch)
}

func TestInstructionSequence_WatchAfterEndIsSilent(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	seq := NewInstructionSequence(clock.Now(), ms(3000), ms(5000))
	clock.Advance(ms(9000))

	ch := make(chan Stage, 8)
	stop := seq.Watch(clock, func(s Stage) { ch <- s })
	defer stop()

	clock.Advance(time.Minute)
	assertQuiet(t, ch)
}
