package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GaussianWeights returns a rows×cols field of 2-D Gaussian weights centred
// on (cols/2, rows/2), normalized to sum to 1.
func GaussianWeights(rows, cols int, sigma float64) []float64 {
	if rows <= 0 || cols <= 0 {
		return nil
	}
	w := make([]float64, rows*cols)
	cx, cy := cols/2, rows/2
	s2 := sigma * sigma
	factor := 1 / (2 * math.Pi * s2)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			dy := float64(i - cy)
			dx := float64(j - cx)
			w[i*cols+j] = factor * math.Exp(-(dx*dx+dy*dy)/(2*s2))
		}
	}
	if sum := floats.Sum(w); sum > 1e-9 {
		floats.Scale(1/sum, w)
	}
	return w
}

// Entropy2 returns the base-2 Shannon entropy of the 8-bit histogram of pix.
func Entropy2(pix []uint8) float64 {
	if len(pix) == 0 {
		return 0
	}
	var hist [256]float64
	for _, v := range pix {
		hist[v]++
	}
	floats.Scale(1/float64(len(pix)), hist[:])
	return stat.Entropy(hist[:]) / math.Ln2
}

// PopMeanVariance returns the population mean and variance of x.
func PopMeanVariance(x []float64) (mean, variance float64) {
	if len(x) == 0 {
		return 0, 0
	}
	return stat.PopMeanVariance(x, nil)
}
