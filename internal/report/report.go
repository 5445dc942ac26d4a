// Package report measures how much a watermark changed an image and how
// robustly each block holds its bit.
package report

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lumamark/internal/block"
	"github.com/banshee-data/lumamark/internal/plane"
)

var (
	ErrMismatchedPlanes = errors.New("planes differ in size")
	ErrNoData           = errors.New("nothing to report")
)

// Quality is the distortion between an original and a marked plane.
type Quality struct {
	MSE float64 `json:"mse"`
	// PSNR is in dB and +Inf for identical planes.
	PSNR float64 `json:"psnr"`
	// MaxDelta is the largest absolute sample change.
	MaxDelta int `json:"max_delta"`
	Changed  int `json:"changed"`
}

// Compare measures the distortion of marked against original.
func Compare(original, marked *plane.Plane) (Quality, error) {
	if original.Empty() || marked.Empty() {
		return Quality{}, plane.ErrEmpty
	}
	if original.Width != marked.Width || original.Height != marked.Height {
		return Quality{}, fmt.Errorf("%w: %dx%d vs %dx%d", ErrMismatchedPlanes,
			original.Width, original.Height, marked.Width, marked.Height)
	}
	a, b := original.Float64s(), marked.Float64s()
	d := floats.Distance(a, b, 2)
	q := Quality{MSE: d * d / float64(len(a))}
	if q.MSE == 0 {
		q.PSNR = math.Inf(1)
	} else {
		q.PSNR = 10 * math.Log10(255*255/q.MSE)
	}
	for i := range a {
		delta := int(math.Abs(a[i] - b[i]))
		if delta > 0 {
			q.Changed++
		}
		q.MaxDelta = max(q.MaxDelta, delta)
	}
	return q, nil
}

// Margins returns, per block, the distance of DC/step from the nearest
// decision boundary. A freshly embedded block sits at 0.5; a block near 0
// flips under little noise. Degenerate blocks report 0.
func Margins(marked *plane.Plane, models []block.Model) []float64 {
	out := make([]float64, len(models))
	for i, m := range models {
		out[i] = block.Margin(marked, m)
	}
	return out
}

// MarginSummary condenses a margin list.
type MarginSummary struct {
	Blocks int     `json:"blocks"`
	Min    float64 `json:"min"`
	Mean   float64 `json:"mean"`
	// Weak counts blocks with margin below WeakMargin.
	Weak int `json:"weak"`
}

// WeakMargin is the margin under which a block counts as weak.
const WeakMargin = 0.25

// Summarize returns min, mean and weak-block count of margins.
func Summarize(margins []float64) MarginSummary {
	s := MarginSummary{Blocks: len(margins)}
	if len(margins) == 0 {
		return s
	}
	s.Min = floats.Min(margins)
	s.Mean = stat.Mean(margins, nil)
	for _, m := range margins {
		if m < WeakMargin {
			s.Weak++
		}
	}
	return s
}
