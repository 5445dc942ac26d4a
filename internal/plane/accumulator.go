package plane

// Accumulator holds a float64 copy of a plane so that per-block deltas can
// be summed without intermediate 8-bit clipping.
type Accumulator struct {
	Width  int
	Height int
	Data   []float64
}

// NewAccumulator seeds an accumulator with the samples of p.
func NewAccumulator(p *Plane) *Accumulator {
	return &Accumulator{Width: p.Width, Height: p.Height, Data: p.Float64s()}
}

// AddUniform adds d to every sample inside r.
func (a *Accumulator) AddUniform(r Rect, d float64) {
	r = r.Intersect(Rect{Max: Point{X: a.Width, Y: a.Height}})
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := a.Data[y*a.Width : (y+1)*a.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] += d
		}
	}
}

// AddWeighted adds weights[i]*g to the samples of r in row-major order.
// weights must hold r.Dx()*r.Dy() values.
func (a *Accumulator) AddWeighted(r Rect, weights []float64, g float64) {
	w := r.Dx()
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := a.Data[y*a.Width : (y+1)*a.Width]
		wrow := weights[(y-r.Min.Y)*w : (y-r.Min.Y+1)*w]
		for x := r.Min.X; x < r.Max.X; x++ {
			row[x] += wrow[x-r.Min.X] * g
		}
	}
}

// Mean returns the average of the samples inside r.
func (a *Accumulator) Mean(r Rect) float64 {
	n := r.Dx() * r.Dy()
	if n == 0 {
		return 0
	}
	var s float64
	for y := r.Min.Y; y < r.Max.Y; y++ {
		row := a.Data[y*a.Width : (y+1)*a.Width]
		for x := r.Min.X; x < r.Max.X; x++ {
			s += row[x]
		}
	}
	return s / float64(n)
}

// Plane rounds and clips the accumulated values into a new 8-bit plane.
func (a *Accumulator) Plane() *Plane {
	out := New(a.Width, a.Height)
	for i, v := range a.Data {
		out.Pix[i] = Saturate(v)
	}
	return out
}
