package stage

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/teranos/steadyline/trip"
)

var namedKeys = map[string]tea.KeyType{
	"enter":     tea.KeyEnter,
	"tab":       tea.KeyTab,
	"esc":       tea.KeyEsc,
	"up":        tea.KeyUp,
	"down":      tea.KeyDown,
	"left":      tea.KeyLeft,
	"right":     tea.KeyRight,
	"backspace": tea.KeyBackspace,
	"ctrl+c":    tea.KeyCtrlC,
}

// KeyMsg builds the message for a key name: "space", a name from the arrow/control set
// ("up", "tab", "ctrl+c", ...) or literal runes.
func KeyMsg(name string) tea.KeyMsg {
	if name == "space" || name == " " {
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	}
	if t, ok := namedKeys[name]; ok {
		return tea.KeyMsg{Type: t}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(name)}
}

// Press sends each key in turn and waits for the view to settle after each.
func (d *Director) Press(keys ...string) *Director {
	for _, k := range keys {
		d.sendMessage(KeyMsg(k))
		d.recordAction("keypress", k)
		if d.config.KeyDelay > 0 {
			time.Sleep(d.config.KeyDelay)
		}
	}
	return d
}

// Type sends text one rune at a time.
func (d *Director) Type(text string) *Director {
	for _, r := range text {
		d.Press(string(r))
	}
	return d
}

// DoubleTap sends two space presses back to back.
func (d *Director) DoubleTap() *Director {
	if d.program == nil {
		return d
	}
	before := d.currentView()
	d.program.Send(KeyMsg("space"))
	d.program.Send(KeyMsg("space"))
	d.waitForViewChange(before)
	d.recordAction("keypress", "double_tap")
	d.captureSnapshot()
	return d
}

// Click sends a left mouse press at the given cell.
func (d *Director) Click(x, y int) *Director {
	d.sendMessage(tea.MouseMsg{X: x, Y: y, Action: tea.MouseActionPress, Button: tea.MouseButtonLeft})
	d.recordAction("click", fmt.Sprintf("%d,%d", x, y))
	return d
}

// Send delivers an arbitrary message.
func (d *Director) Send(msg tea.Msg) *Director {
	d.sendMessage(msg)
	d.recordAction("send", fmt.Sprintf("%T", msg))
	return d
}

// Wait pauses the run.
func (d *Director) Wait(duration time.Duration) *Director {
	time.Sleep(duration)
	d.recordAction("wait", duration)
	d.captureSnapshot()
	return d
}

// WaitForMode waits until the model reports mode.
func (d *Director) WaitForMode(mode string) *Director {
	return d.waitFor("mode "+mode, func() bool { return d.currentMode() == mode })
}

// WaitForText waits until the plain-text view contains text.
func (d *Director) WaitForText(text string) *Director {
	return d.waitFor("text "+text, func() bool { return strings.Contains(d.View(), text) })
}

// WaitForCondition waits until the model reports condition.
func (d *Director) WaitForCondition(condition string) *Director {
	return d.waitFor("condition "+condition, func() bool {
		m := d.Latest()
		return m != nil && m.CheckCondition(condition)
	})
}

func (d *Director) waitFor(what string, cond func() bool) *Director {
	if d.Failed() {
		return d
	}
	if err := d.poll(d.config.Timeout, 5*time.Millisecond, cond); err != nil {
		d.recordTrip(trip.NewTrip(WaitTimeout, "timeout waiting for "+what, trip.Context{
			"current_mode": d.currentMode(),
			"current_view": truncate(d.View(), 400),
		}).WithCause(err))
		return d
	}
	d.recordAction("wait", what)
	return d
}

// AssertViewContains checks the plain-text view for text.
func (d *Director) AssertViewContains(text string) *Director {
	view := d.View()
	if !strings.Contains(view, text) {
		d.recordTrip(trip.NewTrip(Assertion, "view does not contain "+text, trip.Context{
			"expected":    text,
			"actual_view": truncate(view, 400),
		}))
		return d
	}
	d.recordAction("assertion", "contains="+text)
	return d
}

// AssertViewNotContains checks that the plain-text view lacks text.
func (d *Director) AssertViewNotContains(text string) *Director {
	view := d.View()
	if strings.Contains(view, text) {
		d.recordTrip(trip.NewTrip(Assertion, "view unexpectedly contains "+text, trip.Context{
			"unexpected":  text,
			"actual_view": truncate(view, 400),
		}))
		return d
	}
	d.recordAction("assertion", "not_contains="+text)
	return d
}

// AssertMode checks the model's mode.
func (d *Director) AssertMode(expected string) *Director {
	actual := d.currentMode()
	if actual != expected {
		d.recordTrip(trip.NewTrip(Assertion, "expected mode "+expected+", got "+actual, trip.Context{
			"expected": expected,
			"actual":   actual,
		}))
		return d
	}
	d.recordAction("assertion", "mode="+expected)
	return d
}

// AssertCondition checks a named condition.
func (d *Director) AssertCondition(condition string) *Director {
	m := d.Latest()
	if m == nil || !m.CheckCondition(condition) {
		d.recordTrip(trip.NewTrip(Assertion, "condition does not hold: "+condition, trip.Context{
			"condition":    condition,
			"current_mode": d.currentMode(),
		}))
		return d
	}
	d.recordAction("assertion", "condition="+condition)
	return d
}

// View returns the current view with styling removed.
func (d *Director) View() string {
	return ansi.Strip(d.currentView())
}

func (d *Director) sendMessage(msg tea.Msg) {
	if d.program == nil {
		return
	}
	before := d.currentView()
	d.program.Send(msg)
	d.waitForViewChange(before)
	d.captureSnapshot()
}

// waitForViewChange gives the program a moment to render the result of a message. Views
// that don't change are fine; the wait just ends at SettleTimeout.
func (d *Director) waitForViewChange(before string) {
	timeout := d.config.SettleTimeout
	if timeout <= 0 || timeout > d.config.Timeout {
		timeout = d.config.Timeout
	}
	_ = d.poll(timeout, 2*time.Millisecond, func() bool { return d.currentView() != before })
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
