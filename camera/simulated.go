package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/teranos/steadyline/session"
)

var (
	// ErrCameraBusy is returned by Bind while another session holds the camera.
	ErrCameraBusy = errors.New("camera busy")
	// ErrClosed is returned by Bind after the provider was closed.
	ErrClosed = errors.New("camera provider closed")
)

// SimulatedOptions configures a Simulated camera.
type SimulatedOptions struct {
	Clock        clockwork.Clock
	AcquireDelay time.Duration // Latency of Acquire
	FailAcquire  error         // When set, Acquire fails with it after the delay
	FrameSize    image.Point
	Logger       *slog.Logger
}

// Simulated is a session.ProviderSource standing in for camera hardware.
type Simulated struct {
	clock     clockwork.Clock
	delay     time.Duration
	frameSize image.Point
	log       *slog.Logger

	mu          sync.Mutex
	failAcquire error
	acquired    int
}

// NewSimulated creates a simulated camera.
func NewSimulated(opts SimulatedOptions) *Simulated {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Simulated{
		clock:       opts.Clock,
		delay:       opts.AcquireDelay,
		frameSize:   opts.FrameSize,
		log:         opts.Logger.With("component", "camera"),
		failAcquire: opts.FailAcquire,
	}
}

// FailAcquire makes subsequent acquisitions fail with err; nil clears it.
func (s *Simulated) FailAcquire(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAcquire = err
}

// Acquired returns how many providers were handed out.
func (s *Simulated) Acquired() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acquired
}

// Acquire waits out the simulated latency and returns a provider.
func (s *Simulated) Acquire(ctx context.Context) (session.Provider, error) {
	if s.delay > 0 {
		timer := s.clock.NewTimer(s.delay)
		defer timer.Stop()
		select {
		case <-timer.Chan():
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAcquire != nil {
		return nil, fmt.Errorf("simulated camera: %w", s.failAcquire)
	}
	s.acquired++
	s.log.Debug("Camera provider acquired", "count", s.acquired)
	return newSimulatedProvider(s.frameSize, s.log), nil
}

// SimulatedProvider is one acquired camera handle. Like real hardware it supports a single
// active session.
type SimulatedProvider struct {
	frameSize image.Point
	log       *slog.Logger

	mu       sync.Mutex
	active   int
	facing   session.Facing
	sink     FrameSink
	closed   bool
	failBind error
	sessions int
}

func newSimulatedProvider(size image.Point, log *slog.Logger) *SimulatedProvider {
	return &SimulatedProvider{frameSize: size, log: log}
}

// FailNextBind makes the next Bind fail with err.
func (p *SimulatedProvider) FailNextBind(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failBind = err
}

// Bind opens a preview session for facing and streams it into surface when surface is a
// FrameSink.
func (p *SimulatedProvider) Bind(facing session.Facing, surface session.SurfaceTarget) error {
	p.mu.Lock()
	switch {
	case p.closed:
		p.mu.Unlock()
		return ErrClosed
	case p.active > 0:
		p.mu.Unlock()
		return ErrCameraBusy
	case p.failBind != nil:
		err := p.failBind
		p.failBind = nil
		p.mu.Unlock()
		return err
	}

	p.active = 1
	p.sessions++
	p.facing = facing
	sink, _ := surface.(FrameSink)
	p.sink = sink
	p.mu.Unlock()

	if sink != nil {
		sink.Connect(NewTestPattern(facing, p.frameSize))
	}
	p.log.Debug("Camera session opened", "facing", facing.String(), "surface", surface.SurfaceID())
	return nil
}

// UnbindAll closes the active session, if any.
func (p *SimulatedProvider) UnbindAll() {
	p.mu.Lock()
	sink := p.sink
	p.sink = nil
	p.active = 0
	p.mu.Unlock()

	if sink != nil {
		sink.Disconnect()
	}
}

// Close releases the camera. Bind fails afterwards.
func (p *SimulatedProvider) Close() error {
	p.UnbindAll()
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// ActiveSessions returns the number of open sessions, 0 or 1.
func (p *SimulatedProvider) ActiveSessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Sessions returns how many sessions were opened in total.
func (p *SimulatedProvider) Sessions() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.sessions
}

// Facing returns the facing of the last session opened.
func (p *SimulatedProvider) Facing() session.Facing {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.facing
}

// Closed reports whether Close was called.
func (p *SimulatedProvider) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}
