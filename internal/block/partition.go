package block

import (
	"fmt"
	"math"

	"github.com/banshee-data/lumamark/internal/plane"
)

// Grid picks the rows×cols factorization of m that makes blocks of a
// height×width region closest to square, i.e. minimizes
// |height/rows − width/cols|. Factor pairs are tried in ascending row count
// and only a strictly better pair replaces the current choice.
func Grid(height, width, m int) (rows, cols int) {
	rows, cols = 1, m
	best := math.Inf(1)
	for r := 1; r <= m; r++ {
		if m%r != 0 {
			continue
		}
		c := m / r
		d := math.Abs(float64(height)/float64(r) - float64(width)/float64(c))
		if d < best {
			best = d
			rows, cols = r, c
		}
	}
	return rows, cols
}

// Partition splits region into m blocks laid out on the Grid factorization,
// in row-major order. The last block row and column absorb the remainder.
func Partition(region plane.Rect, m int) ([]plane.Rect, error) {
	if m <= 0 {
		return nil, fmt.Errorf("block count must be positive, got %d", m)
	}
	h, w := region.Dy(), region.Dx()
	rows, cols := Grid(h, w, m)
	bh, bw := h/rows, w/cols
	if bh == 0 || bw == 0 {
		return nil, fmt.Errorf("%w: %dx%d region into %dx%d blocks", ErrRegionTooSmall, w, h, cols, rows)
	}

	out := make([]plane.Rect, 0, m)
	for br := 0; br < rows; br++ {
		y0 := region.Min.Y + br*bh
		y1 := y0 + bh
		if br == rows-1 {
			y1 = region.Max.Y
		}
		for bc := 0; bc < cols; bc++ {
			x0 := region.Min.X + bc*bw
			x1 := x0 + bw
			if bc == cols-1 {
				x1 = region.Max.X
			}
			out = append(out, plane.Rect{Min: plane.Point{X: x0, Y: y0}, Max: plane.Point{X: x1, Y: y1}})
		}
	}
	return out, nil
}
