// Package edge builds the binary edge mask that region scoring and block
// classification read from.
//
// Detection runs in three passes over a single sample plane:
//
//  1. a full-plane DCT denoise that drops most AC coefficients and stretches
//     the result back to the 8-bit range;
//  2. Canny on the denoised plane;
//  3. false-positive suppression, which clears edge pixels whose mean
//     absolute difference to their 8 neighbours on the original plane is
//     below PostThreshold.
package edge

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/lumamark/internal/dsp"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/plane"
)

// Denoise modes.
const (
	DenoiseAdaptive = "adaptive"
	DenoiseFixed    = "fixed"
)

// ErrEmptyPlane is returned when the input plane has no samples.
var ErrEmptyPlane = errors.New("edge detection needs a non-empty plane")

// Detector holds the edge detection parameters. The zero value is not
// useful; use NewDetector or fill every field.
type Detector struct {
	DenoiseMode       string
	FixedDiscardRatio float64
	CannyLow          float64
	CannyHigh         float64
	PostThreshold     float64
}

// NewDetector returns a detector with the reference defaults.
func NewDetector() *Detector {
	return &Detector{
		DenoiseMode:       DenoiseAdaptive,
		FixedDiscardRatio: 0.9,
		CannyLow:          50,
		CannyHigh:         150,
		PostThreshold:     20,
	}
}

// Validate checks the detector parameters.
func (d *Detector) Validate() error {
	if d.DenoiseMode != DenoiseAdaptive && d.DenoiseMode != DenoiseFixed {
		return fmt.Errorf("unknown denoise mode %q", d.DenoiseMode)
	}
	if d.FixedDiscardRatio < 0 || d.FixedDiscardRatio > 1 {
		return fmt.Errorf("fixed discard ratio must be in [0,1], got %v", d.FixedDiscardRatio)
	}
	if d.CannyLow < 0 || d.CannyHigh < 0 {
		return fmt.Errorf("canny thresholds must be non-negative (low=%v, high=%v)", d.CannyLow, d.CannyHigh)
	}
	if d.PostThreshold < 0 {
		return fmt.Errorf("post-process threshold must be non-negative, got %v", d.PostThreshold)
	}
	return nil
}

// Detect returns a mask the size of p with 255 on edge pixels and 0
// elsewhere.
func (d *Detector) Detect(p *plane.Plane) (*plane.Plane, error) {
	if p.Empty() {
		return nil, ErrEmptyPlane
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	defer monitoring.Timed(fmt.Sprintf("edge detection %dx%d", p.Width, p.Height))()

	denoised, err := d.Denoise(p)
	if err != nil {
		return nil, fmt.Errorf("failed to denoise plane: %w", err)
	}
	raw := dsp.Canny(denoised, d.CannyLow, d.CannyHigh)
	return PostProcess(p, raw, d.PostThreshold), nil
}

// Denoise applies the DCT pre-filter to p and returns a new plane stretched
// to [0,255].
func (d *Detector) Denoise(p *plane.Plane) (*plane.Plane, error) {
	coeffs, err := dsp.DCT2(p.Float64s(), p.Height, p.Width)
	if err != nil {
		return nil, err
	}

	// Non-zero AC coefficients in zig-zag order.
	var ac []int
	for _, idx := range dsp.ZigZag(p.Height, p.Width) {
		if idx != 0 && coeffs[idx] != 0 {
			ac = append(ac, idx)
		}
	}

	switch d.DenoiseMode {
	case DenoiseFixed:
		discard := int(float64(len(ac)) * d.FixedDiscardRatio)
		for _, idx := range ac[len(ac)-discard:] {
			coeffs[idx] = 0
		}
	default:
		ratio := RetentionRatio(coeffs, ac)
		ranked := append([]int(nil), ac...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return abs(coeffs[ranked[i]]) > abs(coeffs[ranked[j]])
		})
		discard := int(float64(len(ranked)) * (1 - ratio))
		for _, idx := range ranked[len(ranked)-discard:] {
			coeffs[idx] = 0
		}
		monitoring.Debugf("denoise kept %.3f of %d AC coefficients", ratio, len(ac))
	}

	pix, err := dsp.IDCT2(coeffs, p.Height, p.Width)
	if err != nil {
		return nil, err
	}
	out := plane.New(p.Width, p.Height)
	for i, v := range pix {
		out.Pix[i] = plane.Saturate(v)
	}
	stretch(out)
	return out, nil
}

// RetentionRatio returns the fraction of the listed AC coefficients to keep,
// from the population mean and variance of their magnitudes. High-variance
// spectra keep between 5% and 15%, low-variance spectra between 5% and 10%.
func RetentionRatio(coeffs []float64, ac []int) float64 {
	if len(ac) == 0 {
		return 1
	}
	mags := make([]float64, len(ac))
	for i, idx := range ac {
		mags[i] = abs(coeffs[idx])
	}
	mean, variance := dsp.PopMeanVariance(mags)
	m2 := mean * mean
	if m2 == 0 {
		return 1
	}
	if variance > m2 {
		return 0.15 - 0.10*min(1, variance/(4*m2))
	}
	return 0.05 + 0.05*(variance/m2)
}

// PostProcess clears raw edge pixels whose mean absolute difference to their
// 8 neighbours on the original plane is below threshold. Border pixels are
// left as detected.
func PostProcess(original, raw *plane.Plane, threshold float64) *plane.Plane {
	out := raw.Clone()
	w, h := original.Width, original.Height
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			if raw.At(x, y) == 0 {
				continue
			}
			c := int(original.At(x, y))
			var diff int
			dsp.ForEachNeighbour(w, h, x, y, func(nx, ny int) {
				d := int(original.At(nx, ny)) - c
				if d < 0 {
					d = -d
				}
				diff += d
			})
			if float64(diff)/8 < threshold {
				out.Set(x, y, 0)
			}
		}
	}
	return out
}

// stretch maps the sample range of p linearly onto [0,255] in place. A flat
// plane becomes all zeros.
func stretch(p *plane.Plane) {
	lo, hi := uint8(255), uint8(0)
	for _, v := range p.Pix {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	if hi == lo {
		clear(p.Pix)
		return
	}
	scale := 255 / float64(hi-lo)
	for i, v := range p.Pix {
		p.Pix[i] = plane.Saturate(float64(v-lo) * scale)
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
