// Package steadyline is a terminal camera viewfinder with a measurement overlay.
//
// The Viewfinder is a bubbletea model. It shows the live preview of a camera session
// managed by session.Controller and draws a reference line with a marker moving along it,
// driven by overlay.Animator. A double tap (space twice, or a double click) flips between
// the back and front camera; two sliders tune the line height and the marker speed.
//
// Basic usage:
//
//	exec := steadyline.NewProgramExecutor()
//	ctrl, _ := session.NewController(session.Options{Source: cam, Executor: exec})
//	vf, _ := steadyline.NewViewfinder(steadyline.Options{
//		Controller: ctrl,
//		Animator:   overlay.NewAnimator(clock, overlay.DefaultParams(), overlay.DefaultLimits()),
//		Surface:    steadyline.NewTerminalSurface("terminal"),
//		Executor:   exec,
//	})
//	p := tea.NewProgram(vf, tea.WithAltScreen(), tea.WithMouseCellMotion())
//	go exec.Run(ctx, p)
//	_, err := p.Run()
package steadyline

import (
	"errors"
	"log/slog"
	"math"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/jonboulle/clockwork"

	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

// Slider identifies one of the two overlay sliders.
type Slider int

const (
	HeightSlider Slider = iota
	SpeedSlider
)

func (s Slider) String() string {
	if s == SpeedSlider {
		return "speed"
	}
	return "height"
}

// Next returns the slider focus moves to on tab.
func (s Slider) Next() Slider {
	if s == HeightSlider {
		return SpeedSlider
	}
	return HeightSlider
}

// Slider steps for one key press.
const (
	HeightStep = 10.0
	SpeedStep  = 100 * time.Millisecond
)

// SliderMsg sets a slider to an absolute value: display units for height, milliseconds
// for speed.
type SliderMsg struct {
	Slider Slider
	Value  float64
}

// DoubleTapMsg is a recognised double tap from an input source other than the keyboard
// or mouse.
type DoubleTapMsg struct{}

type (
	startMsg       struct{}
	frameMsg       time.Time
	instructionMsg overlay.Stage
)

// Options wires a Viewfinder.
type Options struct {
	Controller      *session.Controller
	Animator        *overlay.Animator
	Instructions    *overlay.InstructionSequence // nil starts a default sequence
	Surface         *TerminalSurface
	Executor        *ProgramExecutor
	Clock           clockwork.Clock
	FPS             int
	DoubleTapWindow time.Duration
	PreviewCols     int
	PreviewRows     int
	Logger          *slog.Logger
}

// Preview bounds used when the terminal size is unknown.
const (
	DefaultPreviewCols = 48
	DefaultPreviewRows = 20
	DefaultFPS         = 30

	minPreviewCols = 16
	minPreviewRows = 8
)

// watchHandle outlives Viewfinder copies so quitting can disarm the instruction timers.
type watchHandle struct {
	once sync.Once
	stop func()
}

func (w *watchHandle) close() {
	w.once.Do(func() {
		if w.stop != nil {
			w.stop()
		}
	})
}

// Viewfinder is the bubbletea model of the camera screen.
//
// Collaborators are shared pointers; everything View reads is copied into the value in
// Update, so a copy of the model can be rendered from another goroutine.
type Viewfinder struct {
	ctrl    *session.Controller
	anim    *overlay.Animator
	seq     *overlay.InstructionSequence
	surface *TerminalSurface
	exec    *ProgramExecutor
	taps    *DoubleTapDetector
	watch   *watchHandle
	clock   clockwork.Clock
	log     *slog.Logger
	frame   time.Duration
	styles  styles

	cols int
	rows int

	now       time.Time
	offset    float64
	params    overlay.Params
	limits    overlay.Limits
	stage     overlay.Stage
	state     session.State
	facing    session.Facing
	sessionID string
	lastError string
	focus     Slider
	quitting  bool
}

// NewViewfinder creates the model. Controller, Animator, Surface and Executor are required.
func NewViewfinder(opts Options) (Viewfinder, error) {
	switch {
	case opts.Controller == nil:
		return Viewfinder{}, errors.New("viewfinder: controller is required")
	case opts.Animator == nil:
		return Viewfinder{}, errors.New("viewfinder: animator is required")
	case opts.Surface == nil:
		return Viewfinder{}, errors.New("viewfinder: surface is required")
	case opts.Executor == nil:
		return Viewfinder{}, errors.New("viewfinder: executor is required")
	}

	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.FPS <= 0 {
		opts.FPS = DefaultFPS
	}
	if opts.PreviewCols <= 0 {
		opts.PreviewCols = DefaultPreviewCols
	}
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Instructions == nil {
		opts.Instructions = overlay.NewInstructionSequence(opts.Clock.Now(), overlay.DefaultHintDelay, overlay.DefaultGuidanceDelay)
	}

	v := Viewfinder{
		ctrl:    opts.Controller,
		anim:    opts.Animator,
		seq:     opts.Instructions,
		surface: opts.Surface,
		exec:    opts.Executor,
		taps:    NewDoubleTapDetector(opts.Clock, opts.DoubleTapWindow),
		watch:   &watchHandle{},
		clock:   opts.Clock,
		log:     opts.Logger.With("component", "viewfinder"),
		frame:   time.Second / time.Duration(opts.FPS),
		styles:  defaultStyles(),
		cols:    opts.PreviewCols,
		rows:    opts.PreviewRows,
		limits:  opts.Animator.Limits(),
	}
	v.refresh()
	return v, nil
}

func (v Viewfinder) Init() tea.Cmd {
	return tea.Batch(
		func() tea.Msg { return startMsg{} },
		v.tick(),
	)
}

func (v Viewfinder) tick() tea.Cmd {
	return tea.Tick(v.frame, func(t time.Time) tea.Msg { return frameMsg(t) })
}

func (v Viewfinder) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case startMsg:
		v.start()
	case uiTaskMsg:
		msg.fn()
	case instructionMsg:
		if stage := overlay.Stage(msg); stage > v.stage {
			v.stage = stage
		}
	case frameMsg:
		cmd = v.tick()
	case tea.WindowSizeMsg:
		v.resize(msg.Width, msg.Height)
	case tea.KeyMsg:
		cmd = v.handleKey(msg)
	case tea.MouseMsg:
		if msg.Action == tea.MouseActionPress && msg.Button == tea.MouseButtonLeft {
			v.tap()
		}
	case DoubleTapMsg:
		v.flip("double_tap")
	case SliderMsg:
		v.setSlider(msg.Slider, msg.Value)
	}

	v.refresh()
	return v, cmd
}

// start binds the preview and arms the instruction timers. Runs on the event loop.
func (v Viewfinder) start() {
	v.ctrl.AttachSurface(v.surface)
	v.ctrl.Start()

	exec := v.exec
	v.watch.stop = v.seq.Watch(v.clock, func(s overlay.Stage) {
		exec.Send(instructionMsg(s))
	})
	v.log.Info("Viewfinder started", "facing", v.ctrl.Facing().String())
}

func (v *Viewfinder) handleKey(msg tea.KeyMsg) tea.Cmd {
	key := msg.String()
	if key != " " {
		v.taps.Reset()
	}

	switch key {
	case "q", "ctrl+c", "esc":
		return v.quit()
	case " ":
		v.tap()
	case "f":
		v.flip("key")
	case "r":
		// Selecting the current facing retries after a failure.
		v.ctrl.Select(v.ctrl.Facing())
	case "tab":
		v.focus = v.focus.Next()
	case "up", "k":
		v.nudge(HeightSlider, 1)
	case "down", "j":
		v.nudge(HeightSlider, -1)
	case "right", "l":
		v.nudge(SpeedSlider, 1)
	case "left", "h":
		v.nudge(SpeedSlider, -1)
	case "+", "=":
		v.nudge(v.focus, 1)
	case "-", "_":
		v.nudge(v.focus, -1)
	}
	return nil
}

func (v *Viewfinder) quit() tea.Cmd {
	v.quitting = true
	v.watch.close()
	v.ctrl.Stop()
	v.log.Info("Viewfinder stopped")
	return tea.Quit
}

func (v *Viewfinder) tap() {
	if v.taps.Tap() {
		v.flip("double_tap")
	}
}

func (v *Viewfinder) flip(source string) {
	v.ctrl.Toggle()
	v.log.Debug("Facing toggled", "facing", v.ctrl.Facing().String(), "source", source)
}

func (v *Viewfinder) nudge(which Slider, direction float64) {
	p := v.anim.Params()
	if which == HeightSlider {
		v.setSlider(HeightSlider, p.TrackLength+direction*HeightStep)
		return
	}
	next := p.Period + time.Duration(direction)*SpeedStep
	v.setSlider(SpeedSlider, float64(next)/float64(time.Millisecond))
}

func (v *Viewfinder) setSlider(which Slider, value float64) {
	var (
		params  overlay.Params
		outcome overlay.Outcome
	)
	if which == HeightSlider {
		params, outcome = v.anim.SetTrackLength(value)
	} else {
		params, outcome = v.anim.SetPeriod(millis(value))
	}
	v.log.Debug("Slider changed",
		"slider", which.String(),
		"value", value,
		"outcome", outcome.String(),
		"track_length", params.TrackLength,
		"period", params.Period)
}

// millis converts a speed slider value to a duration, saturating instead of overflowing.
// NaN maps to 0 so the write is rejected.
func millis(value float64) time.Duration {
	ns := value * float64(time.Millisecond)
	switch {
	case math.IsNaN(ns):
		return 0
	case ns >= math.MaxInt64:
		return math.MaxInt64
	case ns <= math.MinInt64:
		return math.MinInt64
	default:
		return time.Duration(ns)
	}
}

func (v *Viewfinder) resize(width, height int) {
	cols := width - 2*sliderWidth - 4
	rows := height - 7
	if cols < minPreviewCols {
		cols = minPreviewCols
	}
	if rows < minPreviewRows {
		rows = minPreviewRows
	}
	v.cols, v.rows = cols, rows
}

// refresh copies everything View needs out of the shared collaborators.
func (v *Viewfinder) refresh() {
	v.now = v.clock.Now()
	v.params = v.anim.Params()
	v.offset = v.anim.SampleAt(v.now)
	if stage := v.seq.StageAt(v.now); stage > v.stage {
		v.stage = stage
	}
	v.state = v.ctrl.State()
	v.facing = v.ctrl.Facing()

	v.sessionID = ""
	if b, ok := v.ctrl.Bound(); ok {
		v.sessionID = b.ID
	}

	v.lastError = ""
	if v.state == session.Failed {
		if t := v.ctrl.LastTrip(); t != nil {
			v.lastError = t.Error()
		}
	}
}

// CurrentMode returns the session state name.
func (v Viewfinder) CurrentMode() string {
	return v.state.String()
}

// CheckCondition answers named questions about the screen for headless drivers.
func (v Viewfinder) CheckCondition(condition string) bool {
	switch condition {
	case "live":
		return v.surface.Live()
	case "facing_back":
		return v.facing == session.Back
	case "facing_front":
		return v.facing == session.Front
	case "hint":
		return v.stage == overlay.ShowingHint
	case "guidance":
		return v.stage == overlay.ShowingGuidance
	case "instructions_hidden":
		return v.stage == overlay.Hidden
	case "height_focused":
		return v.focus == HeightSlider
	case "speed_focused":
		return v.focus == SpeedSlider
	case "failed":
		return v.state == session.Failed
	case "quitting":
		return v.quitting
	default:
		return false
	}
}

// Params returns the overlay parameters as of the last update.
func (v Viewfinder) Params() overlay.Params { return v.params }

// Offset returns the marker offset as of the last update.
func (v Viewfinder) Offset() float64 { return v.offset }

// Stage returns the instruction stage as of the last update.
func (v Viewfinder) Stage() overlay.Stage { return v.stage }

// Focus returns the focused slider.
func (v Viewfinder) Focus() Slider { return v.focus }
