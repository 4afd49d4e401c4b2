package overlay

import (
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teranos/steadyline/internal/metrics"
	"github.com/teranos/steadyline/trip"
)

// Animator produces the marker offset along the track.
//
// The marker runs from 0 to TrackLength in Period, then back, forever. Both parameters can
// change at any moment: the animator keeps the marker where it is and only changes how it
// moves from there on. Offsets are a pure function of the sample time, so sampling twice
// for the same instant yields the same value.
type Animator struct {
	mu      sync.RWMutex
	clock   clockwork.Clock
	limits  Limits
	origin  time.Time
	params  Params
	log     *slog.Logger
	metrics *metrics.Overlay
	trips   *trip.Handler
}

// NewAnimator starts an animation at clock.Now(). Invalid limits are replaced by
// DefaultLimits. Initial params are clamped into limits; rejected values fall back to the
// defaults.
func NewAnimator(clock clockwork.Clock, params Params, limits Limits) *Animator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	log := slog.Default().With("component", "overlay")

	if err := limits.Validate(); err != nil {
		log.Warn("Invalid overlay limits, using defaults", "error", err)
		limits = DefaultLimits()
	}

	length, outcome := limits.ClampLength(params.TrackLength)
	if outcome == Rejected {
		length, _ = limits.ClampLength(DefaultTrackLength)
	}
	period, outcome := limits.ClampPeriod(params.Period)
	if outcome == Rejected {
		period, _ = limits.ClampPeriod(DefaultPeriod)
	}

	return &Animator{
		clock:   clock,
		limits:  limits,
		origin:  clock.Now(),
		params:  Params{TrackLength: length, Period: period},
		log:     log,
		metrics: metrics.NewOverlay(nil),
		trips:   trip.NewHandler("overlay", trip.DefaultPolicy()),
	}
}

// WithLogger sets the logger used for rejected parameter writes.
func (a *Animator) WithLogger(log *slog.Logger) *Animator {
	a.log = log.With("component", "overlay")
	return a
}

// WithMetrics sets the collectors parameter writes are counted in.
func (a *Animator) WithMetrics(m *metrics.Overlay) *Animator {
	a.metrics = m
	return a
}

// Rejections returns the rejected writes kept so far, oldest first.
func (a *Animator) Rejections() []*trip.Trip {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return append([]*trip.Trip(nil), a.trips.GetStumbles()...)
}

// TripSummary summarises the rejected writes so far.
func (a *Animator) TripSummary() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.trips.Summary()
}

// Params returns the parameters currently in effect.
func (a *Animator) Params() Params {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.params
}

// Limits returns the slider ranges.
func (a *Animator) Limits() Limits {
	return a.limits
}

// Origin returns the phase origin the current parameters are measured from.
func (a *Animator) Origin() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.origin
}

// Sample returns the marker offset now.
func (a *Animator) Sample() float64 {
	return a.SampleAt(a.clock.Now())
}

// SampleAt returns the marker offset at t.
func (a *Animator) SampleAt(t time.Time) float64 {
	a.mu.RLock()
	defer a.mu.RUnlock()
	offset, _ := offsetAt(t.Sub(a.origin), a.params)
	return offset
}

// Rising reports whether the marker is moving away from 0 at t.
func (a *Animator) Rising(t time.Time) bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	_, rising := offsetAt(t.Sub(a.origin), a.params)
	return rising
}

// offsetAt is the triangle wave: up in one period, down in the next.
func offsetAt(elapsed time.Duration, p Params) (offset float64, rising bool) {
	period := float64(p.Period)
	cycle := math.Mod(float64(elapsed), 2*period)
	if cycle < 0 {
		cycle += 2 * period
	}

	pos := cycle / period // [0, 2)
	if pos <= 1 {
		return pos * p.TrackLength, true
	}
	return (2 - pos) * p.TrackLength, false
}

// SetTrackLength writes the height slider value.
func (a *Animator) SetTrackLength(length float64) (Params, Outcome) {
	requested := length
	length, outcome := a.limits.ClampLength(length)
	return a.write("track_length", requested, outcome, func(p Params) Params {
		p.TrackLength = length
		return p
	})
}

// SetPeriod writes the speed slider value.
func (a *Animator) SetPeriod(period time.Duration) (Params, Outcome) {
	requested := period
	period, outcome := a.limits.ClampPeriod(period)
	return a.write("period", requested, outcome, func(p Params) Params {
		p.Period = period
		return p
	})
}

func (a *Animator) write(name string, requested any, outcome Outcome, change func(Params) Params) (Params, Outcome) {
	a.metrics.ParameterUpdates.WithLabelValues(name, outcome.String()).Inc()

	a.mu.Lock()
	defer a.mu.Unlock()

	if outcome == Rejected {
		t := trip.NewStumble(trip.InvalidParameter, "rejected non-positive overlay parameter", trip.Context{
			"parameter": name,
			"value":     requested,
		})
		a.trips.Record(t)
		a.log.Debug(t.Message, t.LogAttrs()...)
		return a.params, outcome
	}

	next := change(a.params)
	if next != a.params {
		a.reconcile(a.clock.Now(), next)
	}
	return a.params, outcome
}

// reconcile moves the phase origin to t so that the offset under next equals the offset
// under the old params at t, travelling in the same direction. Caller holds mu.
func (a *Animator) reconcile(t time.Time, next Params) {
	offset, rising := offsetAt(t.Sub(a.origin), a.params)

	fraction := offset / next.TrackLength
	if fraction > 1 {
		// The track got shorter than where the marker is; it continues from the far end.
		fraction = 1
	}

	elapsed := fraction * float64(next.Period)
	if !rising {
		elapsed = (2 - fraction) * float64(next.Period)
	}

	a.origin = t.Add(-time.Duration(math.Round(elapsed)))
	a.params = next
}
