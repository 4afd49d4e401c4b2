package steadyline

import (
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/steadyline/camera"
	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

type fixture struct {
	clock   *clockwork.FakeClock
	exec    *ProgramExecutor
	cam     *camera.Simulated
	ctrl    *session.Controller
	anim    *overlay.Animator
	surface *TerminalSurface
	vf      Viewfinder
}

func newFixture(t testing.TB) *fixture {
	t.Helper()
	f := &fixture{
		clock:   clockwork.NewFakeClockAt(time.Date(2024, 11, 9, 15, 30, 45, 0, time.UTC)),
		exec:    NewProgramExecutor(),
		surface: NewTerminalSurface("terminal"),
	}
	f.cam = camera.NewSimulated(camera.SimulatedOptions{Clock: f.clock})

	ctrl, err := session.NewController(session.Options{
		Source:   f.cam,
		Executor: f.exec,
		Clock:    f.clock,
	})
	require.NoError(t, err)
	f.ctrl = ctrl
	f.anim = overlay.NewAnimator(f.clock, overlay.Params{TrackLength: 300, Period: time.Second}, overlay.DefaultLimits())

	f.vf, err = NewViewfinder(Options{
		Controller: f.ctrl,
		Animator:   f.anim,
		Surface:    f.surface,
		Executor:   f.exec,
		Clock:      f.clock,
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) update(msg tea.Msg) tea.Cmd {
	m, cmd := f.vf.Update(msg)
	f.vf = m.(Viewfinder)
	return cmd
}

func (f *fixture) key(keys ...string) {
	for _, k := range keys {
		switch k {
		case " ":
			f.update(tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
		case "tab":
			f.update(tea.KeyMsg{Type: tea.KeyTab})
		case "up":
			f.update(tea.KeyMsg{Type: tea.KeyUp})
		case "down":
			f.update(tea.KeyMsg{Type: tea.KeyDown})
		case "left":
			f.update(tea.KeyMsg{Type: tea.KeyLeft})
		case "right":
			f.update(tea.KeyMsg{Type: tea.KeyRight})
		default:
			f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)})
		}
	}
}

// pump waits for messages posted from other goroutines and applies them on this one, the
// way the program's event loop would.
func (f *fixture) pump(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool { return f.exec.Pending() > 0 }, time.Second, time.Millisecond)
	for _, msg := range f.exec.drain() {
		f.update(msg)
	}
}

func (f *fixture) start(t *testing.T) {
	t.Helper()
	f.update(startMsg{})
	require.Equal(t, session.Acquiring, f.ctrl.State())
	f.pump(t)
	require.Equal(t, session.Bound, f.ctrl.State())
}

func (f *fixture) view() string {
	return ansi.Strip(f.vf.View())
}

func TestNewViewfinder_RequiresCollaborators(t *testing.T) {
	_, err := NewViewfinder(Options{})
	assert.Error(t, err)
}

func TestViewfinder_StartBindsPreview(t *testing.T) {
	f := newFixture(t)
	assert.Equal(t, "uninitialized", f.vf.CurrentMode())

	f.start(t)

	assert.True(t, f.surface.Live())
	assert.Equal(t, "bound", f.vf.CurrentMode())
	assert.True(t, f.vf.CheckCondition("live"))
	assert.True(t, f.vf.CheckCondition("facing_back"))

	view := f.view()
	assert.Contains(t, view, "BACK · bound · session")
	assert.Contains(t, view, overlay.HintText)
	assert.Contains(t, view, "Height")
	assert.Contains(t, view, "Speed")
	assert.Contains(t, view, "300")
	assert.Contains(t, view, "1.00 s")
	assert.NotContains(t, view, "no camera")
}

func TestViewfinder_ViewBeforeCameraIsReady(t *testing.T) {
	f := newFixture(t)
	f.update(startMsg{})
	assert.Contains(t, f.view(), "starting camera")
}

func TestViewfinder_DoubleSpaceFlipsFacing(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.key(" ")
	f.clock.Advance(120 * time.Millisecond)
	f.key(" ")

	assert.Equal(t, session.Front, f.ctrl.Facing())
	assert.True(t, f.vf.CheckCondition("facing_front"))
	facing, live := f.surface.Facing()
	assert.True(t, live)
	assert.Equal(t, session.Front, facing)
	assert.Contains(t, f.view(), "FRONT · bound")
}

func TestViewfinder_SlowTapsDoNotFlip(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.key(" ")
	f.clock.Advance(time.Second)
	f.key(" ")

	assert.Equal(t, session.Back, f.ctrl.Facing())
}

func TestViewfinder_OtherKeyBreaksDoubleTap(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.key(" ", "tab", " ")
	assert.Equal(t, session.Back, f.ctrl.Facing())
}

func TestViewfinder_MouseDoubleClickFlips(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	click := tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft}
	f.update(click)
	f.update(tea.MouseMsg{X: 10, Y: 5, Action: tea.MouseActionRelease, Button: tea.MouseButtonLeft})
	f.clock.Advance(50 * time.Millisecond)
	f.update(click)

	assert.Equal(t, session.Front, f.ctrl.Facing())
}

func TestViewfinder_FKeyAndDoubleTapMsgFlip(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.key("f")
	assert.Equal(t, session.Front, f.ctrl.Facing())
	f.update(DoubleTapMsg{})
	assert.Equal(t, session.Back, f.ctrl.Facing())

	_, disconnects := f.surface.Connections()
	assert.Equal(t, 2, disconnects, "every flip unbinds before binding")
}

func TestViewfinder_Sliders(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.key("up", "up", "k")
	assert.Equal(t, 330.0, f.anim.Params().TrackLength)
	f.key("j")
	assert.Equal(t, 320.0, f.anim.Params().TrackLength)

	f.key("left", "h")
	assert.Equal(t, 800*time.Millisecond, f.anim.Params().Period)
	f.key("right")
	assert.Equal(t, 900*time.Millisecond, f.anim.Params().Period)

	assert.True(t, f.vf.CheckCondition("height_focused"))
	f.key("tab")
	assert.True(t, f.vf.CheckCondition("speed_focused"))
	f.key("+")
	assert.Equal(t, time.Second, f.anim.Params().Period)
	f.key("tab", "-")
	assert.Equal(t, 310.0, f.anim.Params().TrackLength)

	view := f.view()
	assert.Contains(t, view, "310")
	assert.Contains(t, view, "1.00 s")
	assert.Contains(t, view, "›Height")
}

func TestViewfinder_SliderMsgClampsAndRejects(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.update(SliderMsg{Slider: HeightSlider, Value: 5000})
	assert.Equal(t, 600.0, f.vf.Params().TrackLength)

	f.update(SliderMsg{Slider: SpeedSlider, Value: 0})
	assert.Equal(t, time.Second, f.vf.Params().Period)

	f.update(SliderMsg{Slider: SpeedSlider, Value: 2500})
	assert.Equal(t, 2500*time.Millisecond, f.vf.Params().Period)
	assert.Contains(t, f.view(), "2.50 s")
}

func TestViewfinder_HugeSpeedValuesClamp(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	for _, v := range []float64{1e13, math.MaxFloat64, math.Inf(1)} {
		f.update(SliderMsg{Slider: SpeedSlider, Value: 1000})
		f.update(SliderMsg{Slider: SpeedSlider, Value: v})
		assert.Equal(t, 5*time.Second, f.vf.Params().Period, "value %g", v)
	}

	f.update(SliderMsg{Slider: SpeedSlider, Value: math.NaN()})
	assert.Equal(t, 5*time.Second, f.vf.Params().Period)
	f.update(SliderMsg{Slider: SpeedSlider, Value: math.Inf(-1)})
	assert.Equal(t, 5*time.Second, f.vf.Params().Period)
	assert.Len(t, f.anim.Rejections(), 2)
}

func TestMillis(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, millis(1500))
	assert.Equal(t, time.Duration(math.MaxInt64), millis(1e13))
	assert.Equal(t, time.Duration(math.MaxInt64), millis(math.Inf(1)))
	assert.Equal(t, time.Duration(math.MinInt64), millis(-1e13))
	assert.Zero(t, millis(math.NaN()))
}

func TestViewfinder_MarkerFollowsAnimator(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	f.clock.Advance(500 * time.Millisecond)
	f.update(frameMsg(f.clock.Now()))
	assert.InDelta(t, 150, f.vf.Offset(), 1e-6)

	top, length := f.vf.lineGeometry()
	assert.Equal(t, top+int((float64(length-1)/2)+0.5), f.vf.markerRow())

	f.clock.Advance(500 * time.Millisecond)
	f.update(frameMsg(f.clock.Now()))
	assert.Equal(t, top+length-1, f.vf.markerRow())
	assert.Equal(t, 1, strings.Count(f.view(), string(markerRune)))
}

func TestViewfinder_InstructionSequence(t *testing.T) {
	f := newFixture(t)
	f.start(t)
	assert.True(t, f.vf.CheckCondition("hint"))

	f.clock.Advance(overlay.DefaultHintDelay)
	f.pump(t)
	assert.Equal(t, overlay.ShowingGuidance, f.vf.Stage())
	view := f.view()
	assert.Contains(t, view, overlay.GuidanceText)
	assert.NotContains(t, view, overlay.HintText)

	f.clock.Advance(overlay.DefaultGuidanceDelay)
	f.pump(t)
	assert.True(t, f.vf.CheckCondition("instructions_hidden"))
	view = f.view()
	assert.NotContains(t, view, overlay.GuidanceText)
	assert.NotContains(t, view, overlay.HintText)

	// Flipping or sliding never brings the instructions back.
	f.key("f", "up")
	assert.Equal(t, overlay.Hidden, f.vf.Stage())
}

func TestViewfinder_AcquisitionFailureAndRetry(t *testing.T) {
	f := newFixture(t)
	f.cam.FailAcquire(errors.New("permission denied"))

	f.update(startMsg{})
	f.pump(t)
	assert.True(t, f.vf.CheckCondition("failed"))
	assert.Contains(t, f.view(), "camera error:")
	assert.Contains(t, f.view(), "permission denied")
	assert.False(t, f.surface.Live())

	f.cam.FailAcquire(nil)
	f.key("r")
	f.pump(t)
	assert.Equal(t, session.Bound, f.ctrl.State())
	assert.NotContains(t, f.view(), "camera error:")
}

func TestViewfinder_QuitReleasesCamera(t *testing.T) {
	f := newFixture(t)
	f.start(t)

	cmd := f.update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())

	assert.True(t, f.vf.CheckCondition("quitting"))
	assert.Equal(t, session.Uninitialized, f.ctrl.State())
	assert.False(t, f.surface.Live())
	assert.Equal(t, "Camera released.\n", f.vf.View())

	// Instruction timers are disarmed.
	f.clock.Advance(time.Minute)
	assert.Zero(t, f.exec.Pending())
}

func TestViewfinder_WindowResize(t *testing.T) {
	f := newFixture(t)
	f.update(tea.WindowSizeMsg{Width: 100, Height: 40})
	assert.Equal(t, 100-2*sliderWidth-4, f.vf.cols)
	assert.Equal(t, 33, f.vf.rows)

	f.update(tea.WindowSizeMsg{Width: 10, Height: 5})
	assert.Equal(t, minPreviewCols, f.vf.cols)
	assert.Equal(t, minPreviewRows, f.vf.rows)
}

func TestViewfinder_FrameTickSchedulesNext(t *testing.T) {
	f := newFixture(t)
	assert.NotNil(t, f.update(frameMsg(f.clock.Now())))
}

func TestShade(t *testing.T) {
	assert.Equal(t, ' ', shade(nil, 0, 0, 10, 10))

	frame := camera.NewTestPattern(session.Back, camera.DefaultFrameSize).Frame(time.Unix(0, 0))
	r := shade(frame, 9, 9, 10, 10)
	assert.Contains(t, string(luminanceRamp), string(r))
}
