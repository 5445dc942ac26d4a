package block

import (
	"math"

	"github.com/banshee-data/lumamark/internal/plane"
)

// minStep is the quantization step below which a block is degenerate.
const minStep = 1e-9

// DC returns the DCT DC term of the block at r: sqrt(area)·mean.
func DC(p *plane.Plane, r plane.Rect) float64 {
	area := r.Dx() * r.Dy()
	if area == 0 {
		return 0
	}
	return p.Sum(r) / math.Sqrt(float64(area))
}

// QuantizeDC snaps dc onto the half-integer lattice selected by bit. With
// k = round(dc/step), odd k+bit quantizes to (k−0.5)·step and even k+bit to
// (k+0.5)·step.
func QuantizeDC(dc, step float64, bit uint8) float64 {
	k := math.Round(dc / step)
	term := int64(k) + int64(bit&1)
	if mod2(term) == 1 {
		return (k - 0.5) * step
	}
	return (k + 0.5) * step
}

// EmbedBit computes the adjustment that carries bit in the block described
// by m and adds it to acc. The DC term is read from src. It returns the
// total scalar adjustment g. Degenerate blocks are left untouched and
// reported with ErrDegenerateBlock.
func EmbedBit(src *plane.Plane, acc *plane.Accumulator, m Model, bit uint8) (float64, error) {
	step := m.Step()
	if step < minStep {
		return 0, ErrDegenerateBlock
	}
	dc := DC(src, m.Bounds)
	q := QuantizeDC(dc, step, bit)
	g := math.Sqrt(float64(m.Area())) * (q - dc)

	if m.IsEdge && len(m.Weights) == m.Area() {
		acc.AddWeighted(m.Bounds, m.Weights, g)
	} else {
		acc.AddUniform(m.Bounds, g/float64(m.Area()))
	}
	return g, nil
}

// ExtractBit reads the bit carried by the block: |floor(DC/step) mod 2|.
// Degenerate blocks read as 0 with ErrDegenerateBlock.
func ExtractBit(p *plane.Plane, m Model) (uint8, error) {
	step := m.Step()
	if step < minStep {
		return 0, ErrDegenerateBlock
	}
	v := DC(p, m.Bounds) / step
	return uint8(mod2(int64(math.Floor(v)))), nil
}

// Margin returns the distance of DC/step to the nearest integer decision
// boundary, in units of the step. Freshly embedded blocks sit at 0.5.
func Margin(p *plane.Plane, m Model) float64 {
	step := m.Step()
	if step < minStep {
		return 0
	}
	v := DC(p, m.Bounds) / step
	frac := v - math.Floor(v)
	return math.Min(frac, 1-frac)
}

func mod2(v int64) int64 {
	r := v % 2
	if r < 0 {
		r = -r
	}
	return r
}
