// Package overlay drives the measurement overlay drawn on top of the camera preview: a
// marker bouncing along a reference line, and the instructions shown on first launch.
package overlay

import (
	"fmt"
	"time"
)

// Params are the two user-tunable animation parameters.
type Params struct {
	TrackLength float64       // Length of the reference line, in display units
	Period      time.Duration // Time for one traversal in one direction
}

// Limits bounds what the sliders may write into Params.
type Limits struct {
	MinLength float64
	MaxLength float64
	MinPeriod time.Duration
	MaxPeriod time.Duration
}

// Defaults used by the viewfinder sliders.
const (
	DefaultTrackLength = 320
	DefaultPeriod      = 1200 * time.Millisecond
)

// DefaultParams returns the parameters the overlay starts with.
func DefaultParams() Params {
	return Params{
		TrackLength: DefaultTrackLength,
		Period:      DefaultPeriod,
	}
}

// DefaultLimits returns the slider ranges: 100..600 for height, 0.4s..5s for speed.
func DefaultLimits() Limits {
	return Limits{
		MinLength: 100,
		MaxLength: 600,
		MinPeriod: 400 * time.Millisecond,
		MaxPeriod: 5 * time.Second,
	}
}

// Validate checks that the limits describe non-empty positive ranges.
func (l Limits) Validate() error {
	if !(l.MinLength > 0) || !(l.MaxLength >= l.MinLength) { // also catches NaN
		return fmt.Errorf("invalid track length range %v..%v", l.MinLength, l.MaxLength)
	}
	if l.MinPeriod <= 0 || l.MaxPeriod < l.MinPeriod {
		return fmt.Errorf("invalid period range %v..%v", l.MinPeriod, l.MaxPeriod)
	}
	return nil
}

// Outcome says what happened to a parameter write.
type Outcome int

const (
	Applied  Outcome = iota // written unchanged
	Clamped                 // written after clamping into range
	Rejected                // non-positive, previous value kept
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Clamped:
		return "clamped"
	case Rejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// ClampLength maps a slider value into range. Non-positive values are rejected, and so is
// a value that would clamp to a non-positive bound.
func (l Limits) ClampLength(v float64) (float64, Outcome) {
	if !(v > 0) { // also catches NaN
		return 0, Rejected
	}
	out, outcome := v, Applied
	switch {
	case v < l.MinLength:
		out, outcome = l.MinLength, Clamped
	case v > l.MaxLength:
		out, outcome = l.MaxLength, Clamped
	}
	if !(out > 0) {
		return 0, Rejected
	}
	return out, outcome
}

// ClampPeriod maps a slider value into range. Non-positive values are rejected, and so is
// a value that would clamp to a non-positive bound.
func (l Limits) ClampPeriod(d time.Duration) (time.Duration, Outcome) {
	if d <= 0 {
		return 0, Rejected
	}
	out, outcome := d, Applied
	switch {
	case d < l.MinPeriod:
		out, outcome = l.MinPeriod, Clamped
	case d > l.MaxPeriod:
		out, outcome = l.MaxPeriod, Clamped
	}
	if out <= 0 {
		return 0, Rejected
	}
	return out, outcome
}

// LengthProgress is where length sits in its range, 0..1, for drawing a slider.
func (l Limits) LengthProgress(length float64) float64 {
	return progress(length-l.MinLength, l.MaxLength-l.MinLength)
}

// PeriodProgress is where period sits in its range, 0..1.
func (l Limits) PeriodProgress(period time.Duration) float64 {
	return progress(float64(period-l.MinPeriod), float64(l.MaxPeriod-l.MinPeriod))
}

func progress(v, span float64) float64 {
	if span <= 0 {
		return 0
	}
	p := v / span
	if p < 0 {
		return 0
	}
	if p > 1 {
		return 1
	}
	return p
}

// FormatPeriod renders a period as the speed slider label, e.g. "1.20 s".
func FormatPeriod(d time.Duration) string {
	return fmt.Sprintf("%.2f s", d.Seconds())
}
