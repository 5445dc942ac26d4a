package edge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lumamark/internal/plane"
)

func squarePlane(size, lo, hi int) *plane.Plane {
	p := plane.New(size, size)
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			v := lo
			if x >= size/4 && x < 3*size/4 && y >= size/4 && y < 3*size/4 {
				v = hi
			}
			p.Set(x, y, uint8(v))
		}
	}
	return p
}

func TestDetectRejectsEmpty(t *testing.T) {
	_, err := NewDetector().Detect(&plane.Plane{})
	assert.ErrorIs(t, err, ErrEmptyPlane)

	_, err = NewDetector().Detect(nil)
	assert.ErrorIs(t, err, ErrEmptyPlane)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Detector)
		wantErr bool
	}{
		{"defaults", func(d *Detector) {}, false},
		{"fixed mode", func(d *Detector) { d.DenoiseMode = DenoiseFixed }, false},
		{"unknown mode", func(d *Detector) { d.DenoiseMode = "wavelet" }, true},
		{"ratio above one", func(d *Detector) { d.FixedDiscardRatio = 1.5 }, true},
		{"negative canny", func(d *Detector) { d.CannyLow = -1 }, true},
		{"negative post threshold", func(d *Detector) { d.PostThreshold = -3 }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDetectFlatPlane(t *testing.T) {
	p := plane.New(24, 16)
	for i := range p.Pix {
		p.Pix[i] = 200
	}
	d := NewDetector()

	denoised, err := d.Denoise(p)
	require.NoError(t, err)
	assert.Zero(t, denoised.CountNonZero(denoised.Bounds()), "flat input stretches to zeros")

	edges, err := d.Detect(p)
	require.NoError(t, err)
	assert.Zero(t, edges.CountNonZero(edges.Bounds()))
}

func TestDetectSquare(t *testing.T) {
	for _, mode := range []string{DenoiseAdaptive, DenoiseFixed} {
		t.Run(mode, func(t *testing.T) {
			p := squarePlane(40, 10, 240)
			d := NewDetector()
			d.DenoiseMode = mode

			edges, err := d.Detect(p)
			require.NoError(t, err)
			require.Equal(t, p.Width, edges.Width)
			require.Equal(t, p.Height, edges.Height)

			count := 0
			for y := 1; y < p.Height-1; y++ {
				for x := 1; x < p.Width-1; x++ {
					v := edges.At(x, y)
					require.Contains(t, []uint8{0, 255}, v)
					if v == 0 {
						continue
					}
					count++
					// Survivors sit next to an intensity change in the original.
					assert.True(t, touchesChange(p, x, y), "edge at (%d,%d) in flat area", x, y)
				}
			}
			assert.Positive(t, count)

			again, err := d.Detect(p)
			require.NoError(t, err)
			assert.Equal(t, edges.Pix, again.Pix, "detection is deterministic")
		})
	}
}

func touchesChange(p *plane.Plane, x, y int) bool {
	c := p.At(x, y)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if p.At(x+dx, y+dy) != c {
				return true
			}
		}
	}
	return false
}

func TestDenoiseStretchesRange(t *testing.T) {
	p := squarePlane(32, 60, 90)
	for _, mode := range []string{DenoiseAdaptive, DenoiseFixed} {
		d := NewDetector()
		d.DenoiseMode = mode
		out, err := d.Denoise(p)
		require.NoError(t, err)

		lo, hi := uint8(255), uint8(0)
		for _, v := range out.Pix {
			lo = min(lo, v)
			hi = max(hi, v)
		}
		assert.Equal(t, uint8(0), lo, mode)
		assert.Equal(t, uint8(255), hi, mode)
	}
}

func TestRetentionRatio(t *testing.T) {
	tests := []struct {
		name   string
		coeffs []float64
		want   float64
	}{
		{"no coefficients", []float64{5}, 1},
		{"equal magnitudes", []float64{99, 2, -2, 2, -2}, 0.05},
		{"low variance", []float64{99, 1, -3}, 0.0625},
		{"high variance", []float64{99, 1, -1, 1, 9}, 0.15 - 0.10*(12.0/36.0)},
		{"capped variance", []float64{99, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 0.5, 100}, 0.05},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ac []int
			for i := 1; i < len(tt.coeffs); i++ {
				ac = append(ac, i)
			}
			assert.InDelta(t, tt.want, RetentionRatio(tt.coeffs, ac), 1e-12)
		})
	}
}

func TestPostProcess(t *testing.T) {
	// Gentle ramp: every neighbour differs by at most 2.
	original := plane.New(10, 10)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			original.Set(x, y, uint8(2*x+y))
		}
	}
	raw := plane.New(10, 10)
	for i := range raw.Pix {
		raw.Pix[i] = 255
	}

	out := PostProcess(original, raw, 20)
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			border := x == 0 || y == 0 || x == 9 || y == 9
			if border {
				assert.Equal(t, uint8(255), out.At(x, y), "border (%d,%d) kept", x, y)
			} else {
				assert.Equal(t, uint8(0), out.At(x, y), "interior (%d,%d) cleared", x, y)
			}
		}
	}
	// The raw mask is not modified.
	assert.Equal(t, uint8(255), raw.At(5, 5))

	// A strong local spike survives.
	original.Set(5, 5, 250)
	out = PostProcess(original, raw, 20)
	assert.Equal(t, uint8(255), out.At(5, 5))
}
