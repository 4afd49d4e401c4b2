package steadyline

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultDoubleTapWindow is the longest gap between two taps of a double tap.
const DefaultDoubleTapWindow = 300 * time.Millisecond

// DoubleTapDetector turns single taps into double taps. Not safe for concurrent use; the
// viewfinder only calls it from Update.
type DoubleTapDetector struct {
	clock  clockwork.Clock
	window time.Duration
	last   time.Time
	armed  bool
}

// NewDoubleTapDetector creates a detector. A non-positive window uses the default.
func NewDoubleTapDetector(clock clockwork.Clock, window time.Duration) *DoubleTapDetector {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if window <= 0 {
		window = DefaultDoubleTapWindow
	}
	return &DoubleTapDetector{clock: clock, window: window}
}

// Tap registers a tap and reports whether it completes a double tap. A third quick tap
// starts a new pair.
func (d *DoubleTapDetector) Tap() bool {
	now := d.clock.Now()
	if d.armed && now.Sub(d.last) <= d.window {
		d.armed = false
		return true
	}
	d.last = now
	d.armed = true
	return false
}

// Reset forgets a pending first tap.
func (d *DoubleTapDetector) Reset() {
	d.armed = false
}
