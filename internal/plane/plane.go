// Package plane owns the sample plane: a single 8-bit grayscale channel
// that every watermarking stage reads from, plus the wide accumulation
// buffer that embedding writes deltas into.
//
// Planes are treated as immutable once built. Stages that need to change
// pixels go through an Accumulator and produce a new Plane at the end.
package plane

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Rect is the bounds type used throughout the pipeline.
type Rect = image.Rectangle

// Point is a pixel coordinate.
type Point = image.Point

// ErrEmpty is returned when a plane has no pixels.
var ErrEmpty = errors.New("plane is empty")

// Plane is a row-major grid of 8-bit intensity samples.
type Plane struct {
	Width  int
	Height int
	Pix    []uint8
}

// New allocates a zeroed plane.
func New(width, height int) *Plane {
	if width < 0 {
		width = 0
	}
	if height < 0 {
		height = 0
	}
	return &Plane{Width: width, Height: height, Pix: make([]uint8, width*height)}
}

// FromPix wraps an existing buffer. The buffer length must be width*height.
func FromPix(width, height int, pix []uint8) (*Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid plane size %dx%d: %w", width, height, ErrEmpty)
	}
	if len(pix) != width*height {
		return nil, fmt.Errorf("pixel buffer has %d samples, want %d", len(pix), width*height)
	}
	return &Plane{Width: width, Height: height, Pix: pix}, nil
}

// Empty reports whether the plane has no samples.
func (p *Plane) Empty() bool {
	return p == nil || p.Width <= 0 || p.Height <= 0 || len(p.Pix) < p.Width*p.Height
}

// Bounds returns the plane rectangle anchored at the origin.
func (p *Plane) Bounds() Rect {
	return image.Rect(0, 0, p.Width, p.Height)
}

// Center returns the integer image center used by the position score.
func (p *Plane) Center() Point {
	return image.Pt(p.Width/2, p.Height/2)
}

// At returns the sample at column x, row y.
func (p *Plane) At(x, y int) uint8 {
	return p.Pix[y*p.Width+x]
}

// Set writes the sample at column x, row y.
func (p *Plane) Set(x, y int, v uint8) {
	p.Pix[y*p.Width+x] = v
}

// Clone returns a deep copy.
func (p *Plane) Clone() *Plane {
	out := New(p.Width, p.Height)
	copy(out.Pix, p.Pix)
	return out
}

// Sub copies the samples inside r into a new plane. r is clipped to the
// plane bounds.
func (p *Plane) Sub(r Rect) *Plane {
	r = r.Intersect(p.Bounds())
	out := New(r.Dx(), r.Dy())
	for y := 0; y < out.Height; y++ {
		src := (r.Min.Y+y)*p.Width + r.Min.X
		copy(out.Pix[y*out.Width:(y+1)*out.Width], p.Pix[src:src+out.Width])
	}
	return out
}

// Sum returns the sum of all samples inside r.
func (p *Plane) Sum(r Rect) float64 {
	r = r.Intersect(p.Bounds())
	var s float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := p.Pix[y*p.Width : (y+1)*p.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			s += float64(row[x])
		}
	}
	return s
}

// CountNonZero counts non-zero samples inside r.
func (p *Plane) CountNonZero(r Rect) int {
	r = r.Intersect(p.Bounds())
	n := 0
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := p.Pix[y*p.Width : (y+1)*p.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			if row[x] != 0 {
				n++
			}
		}
	}
	return n
}

// Float64s returns the samples as float64 in row-major order.
func (p *Plane) Float64s() []float64 {
	out := make([]float64, len(p.Pix))
	for i, v := range p.Pix {
		out[i] = float64(v)
	}
	return out
}

// Saturate rounds v half away from zero and clips it to [0,255].
func Saturate(v float64) uint8 {
	r := math.Round(v)
	if r <= 0 || math.IsNaN(r) {
		return 0
	}
	if r >= 255 {
		return 255
	}
	return uint8(r)
}
