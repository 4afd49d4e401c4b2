package stage

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
)

// ErrNoBaseline is returned by Check when no baseline was recorded for a name.
var ErrNoBaseline = errors.New("no baseline recorded")

// Supervisor compares shots against recorded baselines.
type Supervisor struct {
	baselineDir string
	tolerance   float64 // Fraction of pixels allowed to differ
}

// NewSupervisor keeps baselines in dir with a 5% tolerance.
func NewSupervisor(dir string) *Supervisor {
	return &Supervisor{baselineDir: dir, tolerance: 0.05}
}

// WithTolerance sets the fraction of differing pixels Check accepts.
func (s *Supervisor) WithTolerance(tolerance float64) *Supervisor {
	s.tolerance = tolerance
	return s
}

func (s *Supervisor) baselinePath(name string) string {
	return filepath.Join(s.baselineDir, name+".png")
}

// SetBaseline records img as the baseline for name.
func (s *Supervisor) SetBaseline(name string, img image.Image) error {
	return SaveShot(s.baselinePath(name), img)
}

// Check compares img with the baseline for name. On a regression it writes a diff image
// next to the baseline and returns an error naming the difference.
func (s *Supervisor) Check(name string, img image.Image) error {
	baseline, err := LoadShot(s.baselinePath(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%s: %w", name, ErrNoBaseline)
	}
	if err != nil {
		return fmt.Errorf("failed to load baseline: %w", err)
	}

	diff := Difference(baseline, img)
	if diff <= s.tolerance {
		return nil
	}

	diffPath := filepath.Join(s.baselineDir, name+"_diff.png")
	if err := SaveShot(diffPath, DiffImage(baseline, img)); err != nil {
		return fmt.Errorf("visual regression detected: %.2f%% difference (diff image: %v)", diff*100, err)
	}
	return fmt.Errorf("visual regression detected: %.2f%% difference (tolerance: %.2f%%), see %s",
		diff*100, s.tolerance*100, diffPath)
}

// Difference returns the fraction of pixels that differ. Images of different sizes are
// entirely different.
func Difference(a, b image.Image) float64 {
	ab, bb := a.Bounds(), b.Bounds()
	if ab.Size() != bb.Size() {
		return 1
	}
	total := ab.Dx() * ab.Dy()
	if total == 0 {
		return 0
	}

	different := 0
	for y := 0; y < ab.Dy(); y++ {
		for x := 0; x < ab.Dx(); x++ {
			if !sameColor(a.At(ab.Min.X+x, ab.Min.Y+y), b.At(bb.Min.X+x, bb.Min.Y+y)) {
				different++
			}
		}
	}
	return float64(different) / float64(total)
}

// DiffImage marks differing pixels red over a dimmed copy of the baseline.
func DiffImage(baseline, current image.Image) *image.RGBA {
	bounds := baseline.Bounds()
	cb := current.Bounds()
	diff := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))

	for y := 0; y < bounds.Dy(); y++ {
		for x := 0; x < bounds.Dx(); x++ {
			base := baseline.At(bounds.Min.X+x, bounds.Min.Y+y)
			p := image.Pt(cb.Min.X+x, cb.Min.Y+y)
			if !p.In(cb) || !sameColor(base, current.At(p.X, p.Y)) {
				diff.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
				continue
			}
			r, g, b, a := base.RGBA()
			diff.SetRGBA(x, y, color.RGBA{R: uint8(r >> 9), G: uint8(g >> 9), B: uint8(b >> 9), A: uint8(a >> 8)})
		}
	}
	return diff
}

func sameColor(a, b color.Color) bool {
	ar, ag, ab, aa := a.RGBA()
	br, bg, bb, ba := b.RGBA()
	return ar == br && ag == bg && ab == bb && aa == ba
}
