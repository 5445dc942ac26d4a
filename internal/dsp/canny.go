package dsp

import (
	"math"

	"github.com/banshee-data/lumamark/internal/plane"
)

const (
	tan22 = 0.41421356237309503 // tan(22.5°)
	tan67 = 2.414213562373095   // tan(67.5°)
)

// Sobel returns the horizontal and vertical 3×3 Sobel derivatives of p,
// replicating the border samples.
func Sobel(p *plane.Plane) (gx, gy []float64) {
	w, h := p.Width, p.Height
	gx = make([]float64, w*h)
	gy = make([]float64, w*h)
	at := func(x, y int) float64 {
		x = clampInt(x, 0, w-1)
		y = clampInt(y, 0, h-1)
		return float64(p.Pix[y*w+x])
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			gx[y*w+x] = (at(x+1, y-1) + 2*at(x+1, y) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x-1, y) + at(x-1, y+1))
			gy[y*w+x] = (at(x-1, y+1) + 2*at(x, y+1) + at(x+1, y+1)) -
				(at(x-1, y-1) + 2*at(x, y-1) + at(x+1, y-1))
		}
	}
	return gx, gy
}

// Canny runs a two-threshold gradient edge detector over p and returns a
// mask with 255 on edge pixels and 0 elsewhere. Gradient magnitude is the L1
// norm of the Sobel derivatives; pixels above high seed edges, which then
// grow through 8-connected neighbours above low.
func Canny(p *plane.Plane, low, high float64) *plane.Plane {
	w, h := p.Width, p.Height
	out := plane.New(w, h)
	if p.Empty() {
		return out
	}
	if low > high {
		low, high = high, low
	}

	gx, gy := Sobel(p)
	mag := make([]float64, w*h)
	for i := range mag {
		mag[i] = math.Abs(gx[i]) + math.Abs(gy[i])
	}
	magAt := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return 0
		}
		return mag[y*w+x]
	}

	const (
		none = iota
		weak
		strong
	)
	state := make([]uint8, w*h)
	var stack []int

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			m := mag[i]
			if m <= low {
				continue
			}
			xs, ys := math.Abs(gx[i]), math.Abs(gy[i])
			var keep bool
			switch {
			case ys < xs*tan22:
				keep = m > magAt(x-1, y) && m >= magAt(x+1, y)
			case ys > xs*tan67:
				keep = m > magAt(x, y-1) && m >= magAt(x, y+1)
			default:
				s := 1
				if (gx[i] < 0) != (gy[i] < 0) {
					s = -1
				}
				keep = m > magAt(x-s, y-1) && m > magAt(x+s, y+1)
			}
			if !keep {
				continue
			}
			if m > high {
				state[i] = strong
				stack = append(stack, i)
			} else {
				state[i] = weak
			}
		}
	}

	for len(stack) > 0 {
		i := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		out.Pix[i] = 255
		ForEachNeighbour(w, h, i%w, i/w, func(nx, ny int) {
			j := ny*w + nx
			if state[j] == weak {
				state[j] = strong
				stack = append(stack, j)
			}
		})
	}
	return out
}

// ForEachNeighbour calls fn for each in-bounds 8-connected neighbour of
// (x, y) on a w×h grid.
func ForEachNeighbour(w, h, x, y int, fn func(nx, ny int)) {
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			if dx == 0 && dy == 0 {
				continue
			}
			nx, ny := x+dx, y+dy
			if nx < 0 || ny < 0 || nx >= w || ny >= h {
				continue
			}
			fn(nx, ny)
		}
	}
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
