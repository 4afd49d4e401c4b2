// Package camera provides a simulated camera: a provider source with acquisition latency,
// single-session hardware semantics and moving test-pattern frames per facing.
package camera

import (
	"image"
	"image/color"
	"image/draw"
	"strings"
	"time"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/teranos/steadyline/session"
)

// FrameSource produces preview frames on demand.
type FrameSource interface {
	Facing() session.Facing
	Frame(now time.Time) image.Image
}

// FrameSink receives the frame source of a bound session. Render surfaces implement it to
// show the preview; surfaces that don't are bound without a preview.
type FrameSink interface {
	Connect(src FrameSource)
	Disconnect()
}

// DefaultFrameSize is the resolution of simulated frames.
var DefaultFrameSize = image.Pt(96, 48)

// barSpeed is how many pixels per second the colour bars scroll.
const barSpeed = 24

var palettes = map[session.Facing][]color.RGBA{
	session.Back: {
		{R: 0x20, G: 0x20, B: 0x20, A: 0xff},
		{R: 0x8a, G: 0x5a, B: 0x2b, A: 0xff},
		{R: 0xd9, G: 0xa4, B: 0x41, A: 0xff},
		{R: 0x5e, G: 0x7d, B: 0x3a, A: 0xff},
		{R: 0xf2, G: 0xe8, B: 0xcf, A: 0xff},
	},
	session.Front: {
		{R: 0x10, G: 0x18, B: 0x30, A: 0xff},
		{R: 0x2c, G: 0x5d, B: 0x8f, A: 0xff},
		{R: 0x7f, G: 0xb8, B: 0xd8, A: 0xff},
		{R: 0x45, G: 0x3a, B: 0x7a, A: 0xff},
		{R: 0xe0, G: 0xf0, B: 0xff, A: 0xff},
	},
}

// TestPattern renders scrolling colour bars with the facing written in the corner.
type TestPattern struct {
	facing session.Facing
	size   image.Point
	label  string
}

// NewTestPattern creates the pattern for facing. A zero size uses DefaultFrameSize.
func NewTestPattern(facing session.Facing, size image.Point) *TestPattern {
	if size.X <= 0 || size.Y <= 0 {
		size = DefaultFrameSize
	}
	return &TestPattern{
		facing: facing,
		size:   size,
		label:  strings.ToUpper(facing.String()),
	}
}

func (p *TestPattern) Facing() session.Facing { return p.facing }

// Frame renders the pattern as it looks at now.
func (p *TestPattern) Frame(now time.Time) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, p.size.X, p.size.Y))

	palette := palettes[p.facing]
	barWidth := p.size.X / len(palette)
	if barWidth == 0 {
		barWidth = 1
	}
	shift := int(now.UnixMilli() * barSpeed / 1000)

	for x := 0; x < p.size.X; x++ {
		idx := ((x + shift) / barWidth) % len(palette)
		bar := image.Rect(x, 0, x+1, p.size.Y)
		draw.Draw(img, bar, image.NewUniform(palette[idx]), image.Point{}, draw.Src)
	}

	// Label on a dark plate so it reads against any bar.
	face := basicfont.Face7x13
	plate := image.Rect(0, 0, len(p.label)*face.Advance+4, face.Height+2)
	draw.Draw(img, plate, image.NewUniform(color.Black), image.Point{}, draw.Src)

	drawer := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.White),
		Face: face,
		Dot:  fixed.P(2, face.Ascent+1),
	}
	drawer.DrawString(p.label)

	return img
}

// Luminance returns the perceived brightness of c in 0..1.
func Luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 0xffff
}
