// Package synth renders wallpaper pixel buffers from style parameters.
//
// Rendering is a pure function of its inputs: the shape of every style is
// fixed and all randomized detail is drawn from the caller's random source,
// so a fixed seed reproduces the exact same image.
package synth

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math/rand/v2"
)

type Style string

const (
	StyleGradient  Style = "gradient"
	StyleGeometric Style = "geometric"
	StyleAbstract  Style = "abstract"
)

const (
	squareCount = 15
	squareSize  = 80
	lineCount   = 30
	lineWidth   = 2

	// Default upper bounds on either dimension (8K UHD).
	DefaultMaxWidth  = 7680
	DefaultMaxHeight = 4320
)

// Params describes one render.
type Params struct {
	Color  string
	Style  Style
	Width  int
	Height int
}

type Synthesizer struct {
	MaxWidth  int
	MaxHeight int
}

func New(maxWidth, maxHeight int) *Synthesizer {
	if maxWidth <= 0 {
		maxWidth = DefaultMaxWidth
	}
	if maxHeight <= 0 {
		maxHeight = DefaultMaxHeight
	}
	return &Synthesizer{MaxWidth: maxWidth, MaxHeight: maxHeight}
}

// CheckDimensions reports whether width x height is a renderable canvas.
func (s *Synthesizer) CheckDimensions(width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d must be positive", ErrInvalidResolution, width, height)
	}
	if width > s.MaxWidth || height > s.MaxHeight {
		return fmt.Errorf("%w: %dx%d exceeds %dx%d", ErrInvalidResolution, width, height, s.MaxWidth, s.MaxHeight)
	}
	return nil
}

// Render produces a Width x Height opaque image. Unknown styles render a flat
// fill of the base color.
func (s *Synthesizer) Render(p Params, rng *rand.Rand) (*image.RGBA, error) {
	base, err := ParseColor(p.Color)
	if err != nil {
		return nil, &SynthesisError{Style: string(p.Style), Err: err}
	}
	if err := s.CheckDimensions(p.Width, p.Height); err != nil {
		return nil, &SynthesisError{Style: string(p.Style), Err: err}
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	img := image.NewRGBA(image.Rect(0, 0, p.Width, p.Height))
	draw.Draw(img, img.Bounds(), image.NewUniform(base), image.Point{}, draw.Src)

	switch p.Style {
	case StyleGradient:
		drawGradient(img, base)
	case StyleGeometric:
		drawSquares(img, rng)
	case StyleAbstract:
		drawLines(img, rng)
	}
	return img, nil
}

// drawGradient darkens rows linearly from full color at the top toward half
// intensity at the bottom.
func drawGradient(img *image.RGBA, base color.RGBA) {
	b := img.Bounds()
	h := float64(b.Dy())
	for y := b.Min.Y; y < b.Max.Y; y++ {
		scale := 1 - 0.5*(float64(y)/h)
		row := color.RGBA{
			R: uint8(float64(base.R) * scale),
			G: uint8(float64(base.G) * scale),
			B: uint8(float64(base.B) * scale),
			A: 0xff,
		}
		draw.Draw(img, image.Rect(b.Min.X, y, b.Max.X, y+1), image.NewUniform(row), image.Point{}, draw.Src)
	}
}

func drawSquares(img *image.RGBA, rng *rand.Rand) {
	b := img.Bounds()
	for range squareCount {
		x := intn(rng, b.Dx()-squareSize)
		y := intn(rng, b.Dy()-squareSize)
		c := randomColor(rng, 100, 255)
		draw.Draw(img, image.Rect(x, y, x+squareSize, y+squareSize).Intersect(b), image.NewUniform(c), image.Point{}, draw.Src)
	}
}

func drawLines(img *image.RGBA, rng *rand.Rand) {
	b := img.Bounds()
	for range lineCount {
		x1, y1 := rng.IntN(b.Dx()), rng.IntN(b.Dy())
		x2, y2 := rng.IntN(b.Dx()), rng.IntN(b.Dy())
		c := randomColor(rng, 0, 255)
		strokeLine(img, x1, y1, x2, y2, lineWidth, c)
	}
}

// strokeLine walks the segment with Bresenham's algorithm and stamps a
// width x width block at every step. Pixels outside the canvas are dropped.
func strokeLine(img *image.RGBA, x1, y1, x2, y2, width int, c color.RGBA) {
	dx, sx := abs(x2-x1), 1
	if x1 > x2 {
		sx = -1
	}
	dy, sy := -abs(y2-y1), 1
	if y1 > y2 {
		sy = -1
	}
	off := width / 2
	e := dx + dy
	for {
		for py := y1 - off; py < y1-off+width; py++ {
			for px := x1 - off; px < x1-off+width; px++ {
				img.SetRGBA(px, py, c)
			}
		}
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x1 += sx
		}
		if e2 <= dx {
			e += dx
			y1 += sy
		}
	}
}

// randomColor draws each channel uniformly from [lo, hi].
func randomColor(rng *rand.Rand, lo, hi int) color.RGBA {
	ch := func() uint8 { return uint8(lo + rng.IntN(hi-lo+1)) }
	r := ch()
	g := ch()
	b := ch()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// intn is rng.IntN that yields 0 for an empty range instead of panicking.
func intn(rng *rand.Rand, n int) int {
	if n <= 0 {
		return 0
	}
	return rng.IntN(n)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
