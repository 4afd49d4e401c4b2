// Package stage drives bubbletea models headlessly in tests.
//
// A Director runs the model in a tea.Program without a terminal, sends it key presses and
// mouse clicks, and waits for or asserts on the rendered view, the model's mode and named
// conditions. Failures are recorded as trips and reported in the Result instead of
// stopping the test at the first problem.
//
//	result := stage.New(t, model).
//		WithTimeout(2 * time.Second).
//		Start().
//		WaitForMode("bound").
//		DoubleTap().
//		WaitForCondition("facing_front").
//		Stop()
//	require.True(t, result.Success, result.ErrorMessage)
package stage

import (
	"context"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/teranos/steadyline/trip"
)

// Model is a bubbletea model a Director can inspect.
type Model interface {
	tea.Model
	// CurrentMode names the state the model is in.
	CurrentMode() string
	// CheckCondition answers named questions for waits and assertions.
	CheckCondition(condition string) bool
}

// Trip types recorded by the director.
const (
	StartupFailed     = "startup_failed"
	WaitTimeout       = "wait_timeout"
	Assertion         = "assertion"
	ModelPanic        = "model_panic"
	InvalidModelState = "invalid_model_state"
	ShotFailed        = "shot_failed"
)

// Config tunes a Director.
type Config struct {
	// Timeout bounds every wait and the whole run.
	Timeout time.Duration
	// KeyDelay is slept after each key press (0 = no delay).
	KeyDelay time.Duration
	// SettleTimeout caps how long a key press waits for the view to change.
	SettleTimeout time.Duration
	// CaptureViews records a snapshot after every interaction.
	CaptureViews bool
	// ShotDir, when set, is where CaptureShot writes PNGs.
	ShotDir string
	// Shot sizes the images CaptureShot renders.
	Shot ShotConfig
}

// DefaultConfig returns a 5 second timeout, no key delay and snapshots enabled.
func DefaultConfig() Config {
	return Config{
		Timeout:       5 * time.Second,
		SettleTimeout: 250 * time.Millisecond,
		CaptureViews:  true,
		Shot:          DefaultShotConfig(),
	}
}

// Action records one interaction.
type Action struct {
	Timestamp time.Time
	Type      string // "keypress", "click", "send", "wait", "assertion"
	Details   interface{}
}

// Snapshot captures what the model showed at a moment.
type Snapshot struct {
	Timestamp time.Time
	View      string
	Mode      string
}

// Result summarises a run.
type Result struct {
	Actions      []Action
	Snapshots    []Snapshot
	Shots        []Shot
	Success      bool
	Duration     time.Duration
	ErrorMessage string
	TripReport   string
}

type modelUpdate struct {
	model    Model
	sequence int64
}

// Director runs a Model headlessly.
type Director struct {
	t       testing.TB
	model   Model
	program *tea.Program
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config

	actions   []Action
	snapshots []Snapshot
	shots     []Shot
	startedAt time.Time
	started   bool

	tripMu   sync.Mutex
	trips    *trip.Handler
	lastTrip *trip.Trip
	failed   bool

	updates       chan modelUpdate
	modelMu       sync.RWMutex
	latest        Model
	updateSeq     int64
	processedSeq  int64
	droppedUpdate int64
	programDone   chan struct{}
}

// New creates a director with the default config.
func New(t testing.TB, model Model) *Director {
	return NewWithConfig(t, model, DefaultConfig())
}

// NewWithConfig creates a director.
func NewWithConfig(t testing.TB, model Model, config Config) *Director {
	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	d := &Director{
		t:           t,
		model:       model,
		ctx:         ctx,
		cancel:      cancel,
		config:      config,
		trips:       trip.NewHandler("stage", trip.DefaultPolicy()),
		updates:     make(chan modelUpdate, 64),
		latest:      model,
		programDone: make(chan struct{}),
	}
	go d.syncModelUpdates(ctx)
	return d
}

// WithTimeout replaces the timeout. Ignored once started.
func (d *Director) WithTimeout(timeout time.Duration) *Director {
	if d.started {
		d.t.Logf("stage: cannot change timeout after start, ignoring %v", timeout)
		return d
	}
	d.cancel()
	d.ctx, d.cancel = context.WithTimeout(context.Background(), timeout)
	d.config.Timeout = timeout
	go d.syncModelUpdates(d.ctx)
	return d
}

// Program returns the running program, nil before Start.
func (d *Director) Program() *tea.Program {
	return d.program
}

// Context is cancelled when the director stops or times out.
func (d *Director) Context() context.Context {
	return d.ctx
}

// Start runs the program and waits for its first view.
func (d *Director) Start() *Director {
	if d.started {
		return d
	}
	d.startedAt = time.Now()

	d.program = tea.NewProgram(wrapper{Model: d.model, director: d},
		tea.WithoutRenderer(),
		tea.WithInput(nil),
		tea.WithOutput(nil),
		tea.WithContext(d.ctx),
		tea.WithoutSignalHandler(),
	)

	go func() {
		defer close(d.programDone)
		defer func() {
			if r := recover(); r != nil {
				d.t.Logf("stage: program goroutine panicked: %v", r)
			}
		}()
		if _, err := d.program.Run(); err != nil && d.ctx.Err() == nil {
			d.t.Logf("stage: program exited: %v", err)
		}
	}()

	if err := d.waitForProgramReady(); err != nil {
		d.recordTrip(trip.NewFall(StartupFailed, err.Error(), nil))
		return d
	}
	d.started = true
	d.captureSnapshot()
	return d
}

// Stop quits the program and returns the result.
func (d *Director) Stop() *Result {
	if d.started {
		d.captureSnapshot()
	}
	if d.program != nil {
		d.program.Quit()
		select {
		case <-d.programDone:
		case <-time.After(time.Second):
		}
	}
	d.cancel()

	d.tripMu.Lock()
	defer d.tripMu.Unlock()
	r := &Result{
		Actions:   d.actions,
		Snapshots: d.snapshots,
		Shots:     d.shots,
		Success:   !d.failed && d.lastTrip == nil,
		Duration:  time.Since(d.startedAt),
	}
	if d.lastTrip != nil {
		r.ErrorMessage = d.lastTrip.Error()
		r.TripReport = d.trips.DetailedReport()
	}
	return r
}

// Failed reports whether anything went wrong so far.
func (d *Director) Failed() bool {
	d.tripMu.Lock()
	defer d.tripMu.Unlock()
	return d.failed || d.lastTrip != nil
}

// TripSummary summarises the recorded trips.
func (d *Director) TripSummary() string {
	d.tripMu.Lock()
	defer d.tripMu.Unlock()
	return d.trips.Summary()
}

// Latest returns the most recent model the program produced.
func (d *Director) Latest() Model {
	d.modelMu.RLock()
	defer d.modelMu.RUnlock()
	return d.latest
}

// syncModelUpdates applies model updates in sequence order, skipping stale ones.
func (d *Director) syncModelUpdates(ctx context.Context) {
	for {
		select {
		case u := <-d.updates:
			d.modelMu.Lock()
			if u.sequence > d.processedSeq {
				d.latest = u.model
				d.processedSeq = u.sequence
			}
			d.modelMu.Unlock()
		case <-ctx.Done():
			return
		}
	}
}

func (d *Director) waitForProgramReady() error {
	return d.poll(d.config.Timeout, 10*time.Millisecond, func() bool {
		return d.currentView() != ""
	})
}

// poll checks cond until it holds, the timeout passes or the director stops.
func (d *Director) poll(timeout, interval time.Duration, cond func() bool) error {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		if cond() {
			return nil
		}
		select {
		case <-timer.C:
			return errTimeout
		case <-d.ctx.Done():
			return d.ctx.Err()
		case <-ticker.C:
		}
	}
}

func (d *Director) currentView() string {
	m := d.Latest()
	if m == nil {
		return ""
	}
	return m.View()
}

func (d *Director) currentMode() string {
	m := d.Latest()
	if m == nil {
		return ""
	}
	return m.CurrentMode()
}

func (d *Director) recordAction(kind string, details interface{}) {
	d.actions = append(d.actions, Action{Timestamp: time.Now(), Type: kind, Details: details})
}

func (d *Director) captureSnapshot() {
	if !d.config.CaptureViews {
		return
	}
	d.snapshots = append(d.snapshots, Snapshot{
		Timestamp: time.Now(),
		View:      d.currentView(),
		Mode:      d.currentMode(),
	})
}

// recordTrip keeps the trip and reports it to the test: falls fail the test, the rest are
// logged.
func (d *Director) recordTrip(t *trip.Trip) {
	d.tripMu.Lock()
	d.trips.Record(t)
	d.lastTrip = t
	if !t.CanRecover() {
		d.failed = true
	}
	d.tripMu.Unlock()
	if d.t != nil {
		d.t.Helper()
		if t.IsFall() {
			d.t.Error(t)
		} else {
			d.t.Log(t.DetailedString())
		}
	}
}
