// Package testutil provides shared test utilities and fixtures.
//
// This package centralises the synthetic sample planes used by the pipeline
// tests, so that every package exercises the same well-understood inputs.
package testutil

import (
	"math/rand"
	"testing"

	"github.com/banshee-data/lumamark/internal/plane"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t *testing.T, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// Flat returns a plane with every sample set to v.
func Flat(w, h int, v uint8) *plane.Plane {
	p := plane.New(w, h)
	for i := range p.Pix {
		p.Pix[i] = v
	}
	return p
}

// Ramp returns base + (x·dx + y·dy)/div, clipped to [0,255]. With small
// slopes it has no edges after post-processing.
func Ramp(w, h int, base, dx, dy, div int) *plane.Plane {
	if div <= 0 {
		div = 1
	}
	p := plane.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			p.Set(x, y, plane.Saturate(float64(base+(x*dx+y*dy)/div)))
		}
	}
	return p
}

// Noise returns uniformly random samples in [lo, hi] from a fixed seed.
func Noise(w, h int, lo, hi uint8, seed int64) *plane.Plane {
	rng := rand.New(rand.NewSource(seed))
	p := plane.New(w, h)
	span := int(hi) - int(lo) + 1
	for i := range p.Pix {
		p.Pix[i] = uint8(int(lo) + rng.Intn(span))
	}
	return p
}

// Checkerboard returns cell×cell squares alternating between a and b.
func Checkerboard(w, h, cell int, a, b uint8) *plane.Plane {
	p := plane.New(w, h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if (x/cell+y/cell)%2 == 0 {
				p.Set(x, y, a)
			} else {
				p.Set(x, y, b)
			}
		}
	}
	return p
}

// Scene returns a textured test image: a smooth ramp with noise and a few
// bright and dark rectangles, all kept inside [lo, hi].
func Scene(w, h int, lo, hi uint8, seed int64) *plane.Plane {
	rng := rand.New(rand.NewSource(seed))
	p := plane.New(w, h)
	mid := (float64(lo) + float64(hi)) / 2
	amp := (float64(hi) - float64(lo)) / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := mid + 0.4*amp*(float64(x)/float64(w)-0.5) + 0.3*amp*(rng.Float64()-0.5)
			p.Set(x, y, plane.Saturate(v))
		}
	}
	for i := 0; i < 3; i++ {
		x0, y0 := rng.Intn(w/2+1), rng.Intn(h/2+1)
		v := lo
		if i%2 == 0 {
			v = hi
		}
		for y := y0; y < min(h, y0+h/4); y++ {
			for x := x0; x < min(w, x0+w/4); x++ {
				p.Set(x, y, v)
			}
		}
	}
	return p
}
