package stage

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/ansi"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teranos/steadyline/trip"
)

// Cell size of one terminal character in a shot.
const (
	cellWidth  = 8
	cellHeight = 16
)

// ShotConfig sizes and colours rendered shots.
type ShotConfig struct {
	Cols       int // Terminal width in characters
	Rows       int // Terminal height in characters
	Background color.RGBA
	Foreground color.RGBA
}

// DefaultShotConfig returns an 80x30 terminal, light text on a dark background.
func DefaultShotConfig() ShotConfig {
	return ShotConfig{
		Cols:       80,
		Rows:       30,
		Background: color.RGBA{R: 24, G: 24, B: 28, A: 255},
		Foreground: color.RGBA{R: 220, G: 220, B: 210, A: 255},
	}
}

// Shot is a view rendered to an image at a labelled moment.
type Shot struct {
	Label string
	Step  int
	Mode  string
	View  string
	Image *image.RGBA
	Path  string // Empty unless the director writes shots to disk
}

// CaptureShot renders the current view and keeps it in the result. With Config.ShotDir set
// the image is also written there; a failed write is recorded as a stumble.
func (d *Director) CaptureShot(label string) *Director {
	if d.program == nil {
		return d
	}
	shot := Shot{
		Label: label,
		Step:  len(d.shots) + 1,
		Mode:  d.currentMode(),
		View:  ansi.Strip(d.currentView()),
	}
	shot.Image = RenderShot(shot.View, d.config.Shot)

	if d.config.ShotDir != "" {
		path := filepath.Join(d.config.ShotDir, shotFilename(shot.Step, label))
		if err := SaveShot(path, shot.Image); err != nil {
			d.recordTrip(trip.NewStumble(ShotFailed, "failed to save shot "+label, trip.Context{"path": path}).WithCause(err))
		} else {
			shot.Path = path
		}
	}

	d.shots = append(d.shots, shot)
	d.recordAction("shot", label)
	return d
}

// RenderShot draws the view, stripped of escape sequences, onto a character grid.
// Text beyond the grid is cut off.
func RenderShot(view string, cfg ShotConfig) *image.RGBA {
	if cfg.Cols <= 0 || cfg.Rows <= 0 {
		cfg = DefaultShotConfig()
	}

	img := image.NewRGBA(image.Rect(0, 0, cfg.Cols*cellWidth, cfg.Rows*cellHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(cfg.Background), image.Point{}, draw.Src)

	face := basicfont.Face7x13
	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(cfg.Foreground),
		Face: face,
	}

	for row, line := range strings.Split(ansi.Strip(view), "\n") {
		if row >= cfg.Rows {
			break
		}
		col := 0
		for _, r := range line {
			if col >= cfg.Cols {
				break
			}
			if r != ' ' {
				drawer.Dot = fixed.P(col*cellWidth, row*cellHeight+face.Ascent+1)
				drawer.DrawString(string(r))
			}
			col++
		}
	}
	return img
}

// SaveShot writes img as a PNG, creating the directory if needed.
func SaveShot(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create shot directory: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}

// LoadShot reads a PNG written by SaveShot.
func LoadShot(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, nil
}

func shotFilename(step int, label string) string {
	clean := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '_'
		}
	}, label)
	return fmt.Sprintf("%02d-%s.png", step, clean)
}
