package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/teranos/steadyline/internal/metrics"
	"github.com/teranos/steadyline/trip"
)

// Options configures a Controller.
type Options struct {
	// Source acquires the camera provider. Required.
	Source ProviderSource
	// Executor delivers acquisition completions on the owning thread. Required.
	Executor Executor
	// DefaultFacing is the camera selected before the first Select.
	DefaultFacing Facing
	// AcquireTimeout bounds a single acquisition (0 = no bound).
	AcquireTimeout time.Duration
	// OnChange, if set, is called on the owning thread after every state transition.
	OnChange func(State)

	Logger  *slog.Logger
	Clock   clockwork.Clock
	Metrics *metrics.Session
	Trips   *trip.Handler
}

// Controller maintains at most one binding between a camera and a render surface.
//
// All methods must be called from the owning thread, the same thread the Executor runs
// tasks on. The controller never blocks that thread on acquisition; binds and unbinds are
// synchronous so an unbind always completes before the following bind starts.
type Controller struct {
	source   ProviderSource
	exec     Executor
	log      *slog.Logger
	clock    clockwork.Clock
	metrics  *metrics.Session
	trips    *trip.Handler
	onChange func(State)
	timeout  time.Duration

	state       State
	facing      Facing
	surface     SurfaceTarget
	provider    Provider
	bound       *BoundSession
	generation  uint64
	acquisition *Acquisition
	cancel      context.CancelFunc
	bindAttempt int
}

// NewController creates a controller in the Uninitialized state.
func NewController(opts Options) (*Controller, error) {
	if opts.Source == nil {
		return nil, errors.New("session: provider source is required")
	}
	if opts.Executor == nil {
		return nil, errors.New("session: executor is required")
	}

	c := &Controller{
		source:   opts.Source,
		exec:     opts.Executor,
		log:      opts.Logger,
		clock:    opts.Clock,
		metrics:  opts.Metrics,
		trips:    opts.Trips,
		onChange: opts.OnChange,
		timeout:  opts.AcquireTimeout,
		facing:   opts.DefaultFacing,
		state:    Uninitialized,
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "session")
	if c.clock == nil {
		c.clock = clockwork.NewRealClock()
	}
	if c.metrics == nil {
		c.metrics = metrics.NewSession(nil)
	}
	if c.trips == nil {
		c.trips = trip.NewHandler("session", trip.DefaultPolicy())
	}

	return c, nil
}

// State returns the current lifecycle state.
func (c *Controller) State() State { return c.state }

// Facing returns the selected camera, which may not be bound yet.
func (c *Controller) Facing() Facing { return c.facing }

// Generation returns the current generation. It changes on every new acquisition and on Stop.
func (c *Controller) Generation() uint64 { return c.generation }

// Surface returns the attached surface, or nil.
func (c *Controller) Surface() SurfaceTarget { return c.surface }

// HasProvider reports whether an acquired provider is held.
func (c *Controller) HasProvider() bool { return c.provider != nil }

// Bound returns the active binding, if any.
func (c *Controller) Bound() (BoundSession, bool) {
	if c.bound == nil {
		return BoundSession{}, false
	}
	return *c.bound, true
}

// Trips returns the controller's failure log.
func (c *Controller) Trips() *trip.Handler { return c.trips }

// LastTrip returns the most recent failure, or nil.
func (c *Controller) LastTrip() *trip.Trip { return c.trips.Last() }

// Start begins provider acquisition. It is AcquireProvider for lifecycle hosts.
func (c *Controller) Start() *Acquisition {
	return c.AcquireProvider()
}

// AcquireProvider starts acquiring the camera provider without blocking the caller.
//
// It is idempotent: while an acquisition is pending, or a provider is already held, the
// existing Acquisition is returned. From Uninitialized, or Failed without a provider, a new
// generation starts.
func (c *Controller) AcquireProvider() *Acquisition {
	if c.acquisition != nil && (c.state != Failed || c.provider != nil) && c.state != Uninitialized {
		return c.acquisition
	}

	c.generation++
	gen := c.generation
	acq := newAcquisition(gen)
	c.acquisition = acq

	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), c.timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	c.cancel = cancel

	c.log.Debug("Acquiring camera provider", "generation", gen)
	c.setState(Acquiring)

	source := c.source
	go func() {
		defer cancel()
		provider, err := safeAcquire(ctx, source)
		c.exec.Post(func() {
			c.completeAcquisition(gen, acq, provider, err)
		})
	}()

	return acq
}

func safeAcquire(ctx context.Context, source ProviderSource) (provider Provider, err error) {
	defer func() {
		if r := recover(); r != nil {
			provider, err = nil, fmt.Errorf("provider source panicked: %v", r)
		}
	}()
	return source.Acquire(ctx)
}

// completeAcquisition runs on the owning thread.
func (c *Controller) completeAcquisition(gen uint64, acq *Acquisition, provider Provider, err error) {
	if gen != c.generation || acq != c.acquisition {
		// Stop (or a newer acquisition) already moved on; the result must not be applied.
		c.metrics.Acquisitions.WithLabelValues("stale").Inc()
		c.log.Debug("Discarding stale provider completion",
			"completion_generation", gen, "generation", c.generation)
		if provider != nil {
			if closeErr := provider.Close(); closeErr != nil {
				c.log.Warn("Failed to close stale provider", "error", closeErr)
			}
		}
		acq.complete(ErrStopped)
		return
	}

	c.cancel = nil

	if err != nil {
		wrapped := fmt.Errorf("%w: %w", ErrProviderAcquisition, err)
		c.metrics.Acquisitions.WithLabelValues("error").Inc()
		c.recordTrip(trip.NewTrip(trip.ProviderAcquisition, "camera provider acquisition failed", trip.Context{
			"generation": gen,
			"facing":     c.facing.String(),
		}).WithCause(err))
		acq.complete(wrapped)
		c.setState(Failed)
		return
	}
	if provider == nil {
		c.metrics.Acquisitions.WithLabelValues("error").Inc()
		c.recordTrip(trip.NewTrip(trip.ProviderAcquisition, "provider source returned no provider", trip.Context{
			"generation": gen,
		}))
		acq.complete(ErrProviderAcquisition)
		c.setState(Failed)
		return
	}

	c.provider = provider
	c.metrics.Acquisitions.WithLabelValues("ok").Inc()
	acq.complete(nil)
	c.log.Info("Camera provider ready", "generation", gen)
	c.setState(Idle)

	c.rebind("provider_ready")
}

// Select chooses the camera facing.
//
// Selecting the current facing of a healthy controller does nothing, so a stray tap never
// makes the preview flicker. Otherwise the facing is replaced and, once both the provider
// and a surface are present, the old session is unbound and the new one bound in a single
// step on the owning thread. From Failed, Select retries.
func (c *Controller) Select(facing Facing) {
	if facing == c.facing && c.state != Failed {
		return
	}

	if facing != c.facing {
		c.log.Info("Camera facing selected", "from", c.facing.String(), "to", facing.String())
		c.facing = facing
	}

	switch c.state {
	case Uninitialized, Acquiring:
		// applied when the provider arrives
	case Failed:
		if c.provider == nil {
			c.AcquireProvider()
			return
		}
		c.rebind("select_retry")
	default:
		c.rebind("select")
	}
}

// Toggle flips between front and back camera. It is the double-tap handler.
func (c *Controller) Toggle() {
	c.Select(c.facing.Opposite())
}

// AttachSurface supplies the render target and binds to it as soon as the provider is ready.
func (c *Controller) AttachSurface(target SurfaceTarget) {
	if target == nil {
		c.DetachSurface()
		return
	}
	if c.surface != nil && c.surface.SurfaceID() == target.SurfaceID() && c.state == Bound {
		return
	}

	c.surface = target
	c.log.Debug("Surface attached", "surface", target.SurfaceID())

	switch c.state {
	case Uninitialized, Acquiring:
		// deferred until the provider completion
	case Failed:
		if c.provider == nil {
			c.AcquireProvider()
			return
		}
		c.rebind("surface_retry")
	default:
		c.rebind("surface")
	}
}

// DetachSurface unbinds and forgets the surface.
func (c *Controller) DetachSurface() {
	if c.surface == nil {
		return
	}
	c.log.Debug("Surface detached", "surface", c.surface.SurfaceID())
	c.unbindAll()
	c.surface = nil

	if c.provider != nil && (c.state == Bound || c.state == Binding || c.state == Failed) {
		c.setState(Idle)
	}
}

// UnbindAll detaches every camera session from every surface. It is safe to call with
// nothing bound.
func (c *Controller) UnbindAll() {
	c.unbindAll()
	if c.state == Bound {
		c.setState(Idle)
	}
}

func (c *Controller) unbindAll() {
	c.metrics.Unbinds.Inc()
	if c.provider != nil {
		c.provider.UnbindAll()
	}
	if c.bound != nil {
		c.log.Debug("Camera session unbound", "session_id", c.bound.ID, "facing", c.bound.Facing.String())
		c.bound = nil
	}
	c.metrics.ActiveSessions.Set(0)
}

// rebind performs unbind-then-bind if both readiness conditions hold.
func (c *Controller) rebind(reason string) {
	if c.provider == nil || c.surface == nil {
		c.log.Debug("Bind deferred", "reason", reason,
			"has_provider", c.provider != nil, "has_surface", c.surface != nil)
		return
	}

	c.bindAttempt++
	c.setState(Binding)
	c.unbindAll()

	start := c.clock.Now()
	err := safeBind(c.provider, c.facing, c.surface)
	c.metrics.BindDuration.Observe(c.clock.Since(start).Seconds())

	if err != nil {
		// Some stacks leave half a session behind on failure; clear it so the next attempt
		// starts from nothing.
		c.unbindAll()
		c.metrics.Binds.WithLabelValues(c.facing.String(), "error").Inc()
		c.recordTrip(trip.NewTrip(trip.Bind, "camera bind failed", trip.Context{
			"generation": c.generation,
			"facing":     c.facing.String(),
			"surface":    c.surface.SurfaceID(),
			"reason":     reason,
		}).WithCause(fmt.Errorf("%w: %w", ErrBind, err)).WithAttempt(c.bindAttempt))
		c.setState(Failed)
		return
	}

	c.bound = &BoundSession{
		ID:         uuid.NewString(),
		Generation: c.generation,
		Facing:     c.facing,
		Surface:    c.surface,
		BoundAt:    c.clock.Now(),
	}
	c.metrics.Binds.WithLabelValues(c.facing.String(), "ok").Inc()
	c.metrics.ActiveSessions.Set(1)
	c.log.Info("Camera session bound",
		"session_id", c.bound.ID,
		"facing", c.facing.String(),
		"surface", c.surface.SurfaceID(),
		"generation", c.generation,
		"reason", reason)
	c.setState(Bound)
}

func safeBind(provider Provider, facing Facing, target SurfaceTarget) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("provider panicked during bind: %v", r)
		}
	}()
	return provider.Bind(facing, target)
}

// Stop tears the session down: unbind, release the provider, and move to a new generation
// so that an acquisition still in flight is discarded when it lands.
func (c *Controller) Stop() {
	if c.state == Uninitialized && c.provider == nil && c.acquisition == nil {
		return
	}

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}

	c.unbindAll()
	if c.provider != nil {
		if err := c.provider.Close(); err != nil {
			c.log.Warn("Failed to release camera provider", "error", err)
		}
		c.provider = nil
	}
	if c.acquisition != nil {
		c.acquisition.complete(ErrStopped)
		c.acquisition = nil
	}

	c.generation++
	c.log.Info("Camera session stopped", "generation", c.generation)
	c.setState(Uninitialized)
}

func (c *Controller) recordTrip(t *trip.Trip) {
	c.trips.Record(t)
	c.log.Error(t.Message, t.LogAttrs()...)
}

func (c *Controller) setState(s State) {
	if s == c.state {
		return
	}
	c.log.Debug("Session state change", "from", c.state.String(), "to", s.String())
	c.state = s
	if c.onChange != nil {
		c.onChange(s)
	}
}
