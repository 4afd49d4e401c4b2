package steadyline

import (
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/teranos/steadyline/camera"
	"github.com/teranos/steadyline/overlay"
	"github.com/teranos/steadyline/session"
)

// luminanceRamp shades the preview from dark to bright.
var luminanceRamp = []rune(" .:-=+*#%@")

const (
	sliderWidth = 8
	markerRune  = '█'
	lineRune    = '│'
	knobRune    = '●'
)

type styles struct {
	preview  lipgloss.Style
	offline  lipgloss.Style
	line     lipgloss.Style
	anchor   lipgloss.Style
	marker   lipgloss.Style
	label    lipgloss.Style
	focused  lipgloss.Style
	track    lipgloss.Style
	value    lipgloss.Style
	hint     lipgloss.Style
	guidance lipgloss.Style
	status   lipgloss.Style
	err      lipgloss.Style
	help     lipgloss.Style
}

func defaultStyles() styles {
	return styles{
		preview:  lipgloss.NewStyle().Foreground(lipgloss.Color("246")),
		offline:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true),
		line:     lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		anchor:   lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true),
		marker:   lipgloss.NewStyle().Foreground(lipgloss.Color("46")),
		label:    lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		focused:  lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true),
		track:    lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		value:    lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		hint:     lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true),
		guidance: lipgloss.NewStyle().Foreground(lipgloss.Color("255")),
		status:   lipgloss.NewStyle().Foreground(lipgloss.Color("244")),
		err:      lipgloss.NewStyle().Foreground(lipgloss.Color("203")),
		help:     lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
}

type cellKind int

const (
	cellBackground cellKind = iota
	cellLine
	cellAnchor
	cellMarker
)

type cell struct {
	r    rune
	kind cellKind
}

// View renders the screen: instructions on top, the preview flanked by the speed and
// height sliders, guidance and status below.
func (v Viewfinder) View() string {
	if v.quitting {
		return "Camera released.\n"
	}

	preview := v.renderPreview()
	body := lipgloss.JoinHorizontal(lipgloss.Top,
		v.renderSlider(SpeedSlider),
		"  ",
		preview,
		"  ",
		v.renderSlider(HeightSlider),
	)
	width := lipgloss.Width(body)

	var b strings.Builder
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, v.instructionLine(overlay.ShowingHint)))
	b.WriteString("\n")
	b.WriteString(body)
	b.WriteString("\n")
	b.WriteString(lipgloss.PlaceHorizontal(width, lipgloss.Center, v.instructionLine(overlay.ShowingGuidance)))
	b.WriteString("\n")
	b.WriteString(v.statusLine())
	b.WriteString("\n")
	b.WriteString(v.styles.help.Render("space×2/f flip · tab focus · ↑↓ height · ←→ speed · r retry · q quit"))
	return b.String()
}

func (v Viewfinder) instructionLine(stage overlay.Stage) string {
	if v.stage != stage {
		return ""
	}
	if stage == overlay.ShowingHint {
		return v.styles.hint.Render(stage.Text())
	}
	return v.styles.guidance.Render(stage.Text())
}

func (v Viewfinder) statusLine() string {
	parts := []string{
		strings.ToUpper(v.facing.String()),
		v.state.String(),
	}
	if v.sessionID != "" {
		parts = append(parts, "session "+shortID(v.sessionID))
	}
	line := v.styles.status.Render(strings.Join(parts, " · "))
	if v.lastError != "" {
		line += "  " + v.styles.err.Render("camera error: "+v.lastError)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// lineGeometry maps the track onto preview rows: first row of the line and its length.
func (v Viewfinder) lineGeometry() (top, length int) {
	usable := v.rows - 2
	fraction := v.params.TrackLength / v.limits.MaxLength
	if v.limits.MaxLength <= 0 || fraction > 1 {
		fraction = 1
	}
	length = int(math.Round(fraction * float64(usable)))
	if length < 2 {
		length = 2
	}
	top = (v.rows - length) / 2
	return top, length
}

// markerRow is the preview row the marker is drawn on.
func (v Viewfinder) markerRow() int {
	top, length := v.lineGeometry()
	if v.params.TrackLength <= 0 {
		return top
	}
	f := v.offset / v.params.TrackLength
	if f < 0 {
		f = 0
	}
	if f > 1 {
		f = 1
	}
	return top + int(math.Round(f*float64(length-1)))
}

func (v Viewfinder) renderPreview() string {
	grid := make([][]cell, v.rows)
	frame := v.surface.Frame(v.now)
	for y := range grid {
		grid[y] = make([]cell, v.cols)
		for x := range grid[y] {
			grid[y][x] = cell{r: shade(frame, x, y, v.cols, v.rows)}
		}
	}

	if frame == nil {
		msg := []rune("no camera")
		if v.state == session.Acquiring || v.state == session.Binding {
			msg = []rune("starting camera")
		}
		y := v.rows / 3
		x := (v.cols - len(msg)) / 2
		for i, r := range msg {
			if x+i >= 0 && x+i < v.cols {
				grid[y][x+i] = cell{r: r}
			}
		}
	}

	center := v.cols / 2
	top, length := v.lineGeometry()
	for y := top; y < top+length && y < v.rows; y++ {
		grid[y][center] = cell{r: lineRune, kind: cellLine}
	}
	for _, y := range []int{top, top + length - 1} {
		if y < 0 || y >= v.rows {
			continue
		}
		if center-2 >= 0 {
			grid[y][center-2] = cell{r: '(', kind: cellAnchor}
		}
		if center+2 < v.cols {
			grid[y][center+2] = cell{r: ')', kind: cellAnchor}
		}
	}
	if y := v.markerRow(); y >= 0 && y < v.rows {
		grid[y][center] = cell{r: markerRune, kind: cellMarker}
	}

	lines := make([]string, len(grid))
	for y, row := range grid {
		lines[y] = v.renderRow(row, frame == nil)
	}
	return strings.Join(lines, "\n")
}

// renderRow styles runs of equal kind together.
func (v Viewfinder) renderRow(row []cell, offline bool) string {
	var b strings.Builder
	start := 0
	for i := 1; i <= len(row); i++ {
		if i < len(row) && row[i].kind == row[start].kind {
			continue
		}
		run := make([]rune, 0, i-start)
		for _, c := range row[start:i] {
			run = append(run, c.r)
		}
		b.WriteString(v.styleFor(row[start].kind, offline).Render(string(run)))
		start = i
	}
	return b.String()
}

func (v Viewfinder) styleFor(kind cellKind, offline bool) lipgloss.Style {
	switch kind {
	case cellLine:
		return v.styles.line
	case cellAnchor:
		return v.styles.anchor
	case cellMarker:
		return v.styles.marker
	default:
		if offline {
			return v.styles.offline
		}
		return v.styles.preview
	}
}

// shade maps a preview cell onto the frame and returns the luminance character.
func shade(frame image.Image, x, y, cols, rows int) rune {
	if frame == nil {
		return ' '
	}
	b := frame.Bounds()
	px := b.Min.X + x*b.Dx()/cols
	py := b.Min.Y + y*b.Dy()/rows
	l := camera.Luminance(frame.At(px, py))
	idx := int(l * float64(len(luminanceRamp)-1))
	if idx < 0 {
		idx = 0
	}
	if idx >= len(luminanceRamp) {
		idx = len(luminanceRamp) - 1
	}
	return luminanceRamp[idx]
}

func (v Viewfinder) renderSlider(which Slider) string {
	var (
		label    string
		value    string
		progress float64
	)
	if which == HeightSlider {
		label = "Height"
		value = fmt.Sprintf("%d", int(v.params.TrackLength))
		progress = v.limits.LengthProgress(v.params.TrackLength)
	} else {
		label = "Speed"
		value = overlay.FormatPeriod(v.params.Period)
		progress = v.limits.PeriodProgress(v.params.Period)
	}

	labelStyle := v.styles.label
	if v.focus == which {
		labelStyle = v.styles.focused
		label = "›" + label
	}

	trackRows := v.rows - 2
	if trackRows < 2 {
		trackRows = 2
	}
	knob := int(math.Round((1 - progress) * float64(trackRows-1)))

	lines := make([]string, 0, trackRows+2)
	lines = append(lines, labelStyle.Render(label))
	for i := 0; i < trackRows; i++ {
		if i == knob {
			lines = append(lines, v.styles.focused.Render(string(knobRune)))
			continue
		}
		lines = append(lines, v.styles.track.Render(string(lineRune)))
	}
	lines = append(lines, v.styles.value.Render(value))

	return lipgloss.NewStyle().Width(sliderWidth).Align(lipgloss.Center).Render(strings.Join(lines, "\n"))
}
