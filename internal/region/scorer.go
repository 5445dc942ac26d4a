// Package region ranks fixed-size windows of a sample plane by how safely
// they can carry a watermark bit, and picks a non-overlapping subset.
package region

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lumamark/internal/dsp"
	"github.com/banshee-data/lumamark/internal/plane"
)

// Texture score variants.
const (
	TextureBlend   = "blend"
	TextureEntropy = "entropy"
)

var (
	// ErrEmptyPlane is returned when either input plane has no samples.
	ErrEmptyPlane = errors.New("region scoring needs non-empty planes")
	// ErrMismatchedPlanes is returned when the edge mask and the sample
	// plane differ in size.
	ErrMismatchedPlanes = errors.New("edge mask and sample plane differ in size")
)

// Region is one scored window.
type Region struct {
	Bounds        plane.Rect  `json:"bounds"`
	Center        plane.Point `json:"center"`
	EdgeScore     float64     `json:"edge_score"`
	TextureScore  float64     `json:"texture_score"`
	GrayScore     float64     `json:"gray_score"`
	PositionScore float64     `json:"position_score"`
	Score         float64     `json:"score"`
}

// Conflicts reports whether r and o overlap with positive area.
func (r Region) Conflicts(o Region) bool {
	return r.Bounds.Overlaps(o.Bounds)
}

// Scorer combines the four window scores as
// Alpha·E + Beta·H + Gamma·G + Delta·P. Weights are not normalized.
type Scorer struct {
	Alpha       float64
	Beta        float64
	Gamma       float64
	Delta       float64
	TextureMode string
}

// NewScorer returns a scorer with the default 0.4/0.2/0.2/0.2 weights and
// the blended texture score.
func NewScorer() *Scorer {
	return &Scorer{Alpha: 0.4, Beta: 0.2, Gamma: 0.2, Delta: 0.2, TextureMode: TextureBlend}
}

// Score evaluates the window r of original, with edges as the matching edge
// mask and imageCenter as the reference point for the position score.
func (s *Scorer) Score(original, edges *plane.Plane, r plane.Rect, imageCenter plane.Point) Region {
	patch := original.Sub(r)
	area := r.Dx() * r.Dy()
	center := plane.Point{X: r.Min.X + r.Dx()/2, Y: r.Min.Y + r.Dy()/2}

	reg := Region{
		Bounds:        r,
		Center:        center,
		EdgeScore:     EdgeScore(area, edges.CountNonZero(r)),
		TextureScore:  TextureScore(patch.Pix, s.TextureMode),
		GrayScore:     GrayScore(patch.Pix),
		PositionScore: PositionScore(r.Dx(), r.Dy(), center, imageCenter),
	}
	reg.Score = s.Combined(reg)
	return reg
}

// Combined returns the weighted sum of the four scores of reg.
func (s *Scorer) Combined(reg Region) float64 {
	return s.Alpha*reg.EdgeScore + s.Beta*reg.TextureScore + s.Gamma*reg.GrayScore + s.Delta*reg.PositionScore
}

// EdgeScore rewards sparse edge content: sqrt(area / (edgeCount + 1)).
func EdgeScore(area, edgeCount int) float64 {
	return math.Sqrt(float64(area) / float64(edgeCount+1))
}

// TextureScore is the base-2 histogram entropy of pix, optionally blended
// 70/30 with the population variance scaled by 1/10000 and capped at 1.
func TextureScore(pix []uint8, mode string) float64 {
	h := dsp.Entropy2(pix)
	if mode == TextureEntropy {
		return h
	}
	vals := make([]float64, len(pix))
	for i, v := range pix {
		vals[i] = float64(v)
	}
	_, variance := dsp.PopMeanVariance(vals)
	return 0.7*h + 0.3*math.Min(1, variance/10000)
}

// GrayScore is |log2(mean |p − 128| + 1e-9)|.
func GrayScore(pix []uint8) float64 {
	if len(pix) == 0 {
		return math.Abs(math.Log2(1e-9))
	}
	var sum float64
	for _, v := range pix {
		sum += math.Abs(float64(v) - 128)
	}
	return math.Abs(math.Log2(sum/float64(len(pix)) + 1e-9))
}

// PositionScore favours windows near the image centre:
// sqrt(2·w·h / (d² + 0.01)) with d the centre-to-centre distance.
func PositionScore(w, h int, center, imageCenter plane.Point) float64 {
	dx := float64(center.X - imageCenter.X)
	dy := float64(center.Y - imageCenter.Y)
	return math.Sqrt(2 * float64(w*h) / (dx*dx + dy*dy + 0.01))
}

// Validate checks the scorer settings.
func (s *Scorer) Validate() error {
	if s.TextureMode != TextureBlend && s.TextureMode != TextureEntropy {
		return fmt.Errorf("unknown texture mode %q", s.TextureMode)
	}
	for _, w := range []float64{s.Alpha, s.Beta, s.Gamma, s.Delta} {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("score weights must be finite")
		}
	}
	return nil
}
