// Package block classifies watermark blocks and carries one bit per block
// by quantization-index modulation of the block's DC coefficient.
//
// A block model is a pure function of the block bounds, the edge mask, the
// edge threshold and the Gaussian sigma, so embedder and extractor always
// derive identical models from identical inputs.
package block

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lumamark/internal/dsp"
	"github.com/banshee-data/lumamark/internal/plane"
)

// Strength mapping σ = StrengthSlope·N* + StrengthIntercept.
const (
	StrengthSlope     = 0.2243
	StrengthIntercept = 1.5228
)

var (
	// ErrDegenerateBlock marks a block whose quantization step is too small
	// to carry a bit. Embedding skips it and extraction reads 0.
	ErrDegenerateBlock = errors.New("degenerate block: quantization step is negligible")
	// ErrRegionTooSmall is returned when a region cannot be split into the
	// requested number of non-empty blocks.
	ErrRegionTooSmall = errors.New("region too small to partition")
)

// Model describes one block.
type Model struct {
	Bounds          plane.Rect
	IsEdge          bool
	EdgePixels      int
	FixedEdgePixels int
	Strength        float64
	// Weights is the normalized Gaussian field for edge blocks, row-major
	// over Bounds. Nil for non-edge blocks.
	Weights []float64
}

// Area returns the number of pixels covered by the block.
func (m Model) Area() int {
	return m.Bounds.Dx() * m.Bounds.Dy()
}

// Step returns the quantization step σ·sqrt(area).
func (m Model) Step() float64 {
	return m.Strength * math.Sqrt(float64(m.Area()))
}

// Modeler builds block models.
type Modeler struct {
	// Threshold is the edge-block threshold Th. Blocks with more than Th
	// edge pixels are edge blocks with N* = Th.
	Threshold int
	// Sigma is the standard deviation of the edge-block weight field.
	Sigma float64
}

// NewModeler returns a modeler with Th=5 and sigma 1.5.
func NewModeler() *Modeler {
	return &Modeler{Threshold: 5, Sigma: 1.5}
}

// Validate checks the modeler parameters.
func (m *Modeler) Validate() error {
	if m.Threshold < 0 {
		return fmt.Errorf("edge block threshold must be non-negative, got %d", m.Threshold)
	}
	if m.Sigma <= 0 || math.IsNaN(m.Sigma) {
		return fmt.Errorf("gaussian sigma must be positive, got %v", m.Sigma)
	}
	return nil
}

// Model classifies the block at bounds using the edge mask.
func (m *Modeler) Model(bounds plane.Rect, edges *plane.Plane) Model {
	n := edges.CountNonZero(bounds)
	fixed := FixedEdgeCount(n, m.Threshold)
	mod := Model{
		Bounds:          bounds,
		IsEdge:          fixed > 0,
		EdgePixels:      n,
		FixedEdgePixels: fixed,
		Strength:        Strength(fixed),
	}
	if mod.IsEdge {
		mod.Weights = dsp.GaussianWeights(bounds.Dy(), bounds.Dx(), m.Sigma)
	}
	return mod
}

// Models partitions region into n blocks and models each one, in row-major
// block order.
func (m *Modeler) Models(region plane.Rect, edges *plane.Plane, n int) ([]Model, error) {
	rects, err := Partition(region, n)
	if err != nil {
		return nil, err
	}
	out := make([]Model, len(rects))
	for i, r := range rects {
		out[i] = m.Model(r, edges)
	}
	return out, nil
}

// FixedEdgeCount binarizes the edge count: threshold if n > threshold,
// otherwise 0.
func FixedEdgeCount(n, threshold int) int {
	if n > threshold {
		return threshold
	}
	return 0
}

// Strength maps N* to the embedding strength σ.
func Strength(fixedEdgePixels int) float64 {
	return StrengthSlope*float64(fixedEdgePixels) + StrengthIntercept
}
