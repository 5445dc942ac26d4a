// Package dsp holds the numeric building blocks of the watermarking
// pipeline: the orthonormal 2-D DCT, zig-zag ordering, Gaussian weight
// fields, histogram statistics and a Canny edge detector. Every function is
// free-standing and works on plain row-major slices or sample planes.
package dsp

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// dct1 is an orthonormal 1-D DCT of fixed length built on the quarter-wave
// FFT. CosSequence yields 4× the unnormalized DCT-II and CosCoefficients
// the unnormalized DCT-III with doubled AC terms.
type dct1 struct {
	fft    *fourier.QuarterWaveFFT
	a0, ak float64
}

func newDCT1(n int) *dct1 {
	return &dct1{
		fft: fourier.NewQuarterWaveFFT(n),
		a0:  math.Sqrt(1 / float64(n)),
		ak:  math.Sqrt(2 / float64(n)),
	}
}

// forward replaces s with its DCT-II.
func (d *dct1) forward(s []float64) {
	d.fft.CosSequence(s, s)
	s[0] *= d.a0 / 4
	for k := 1; k < len(s); k++ {
		s[k] *= d.ak / 4
	}
}

// inverse replaces s with its DCT-III, the inverse of forward.
func (d *dct1) inverse(s []float64) {
	s[0] *= d.a0
	for k := 1; k < len(s); k++ {
		s[k] *= d.ak / 2
	}
	d.fft.CosCoefficients(s, s)
}

// DCT2 computes the orthonormal 2-D DCT-II of a rows×cols grid stored in
// row-major order. The DC term of the result is sum(x)/sqrt(rows·cols).
func DCT2(data []float64, rows, cols int) ([]float64, error) {
	return separable(data, rows, cols, (*dct1).forward)
}

// IDCT2 inverts DCT2.
func IDCT2(coeffs []float64, rows, cols int) ([]float64, error) {
	return separable(coeffs, rows, cols, (*dct1).inverse)
}

// separable applies fn to every row and then to every column of a copy of
// data.
func separable(data []float64, rows, cols int, fn func(*dct1, []float64)) ([]float64, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid transform size %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("transform input has %d values, want %d", len(data), rows*cols)
	}
	out := make([]float64, len(data))
	copy(out, data)

	row := newDCT1(cols)
	for r := 0; r < rows; r++ {
		fn(row, out[r*cols:(r+1)*cols])
	}

	col := newDCT1(rows)
	buf := make([]float64, rows)
	for c := 0; c < cols; c++ {
		for r := 0; r < rows; r++ {
			buf[r] = out[r*cols+c]
		}
		fn(col, buf)
		for r := 0; r < rows; r++ {
			out[r*cols+c] = buf[r]
		}
	}
	return out, nil
}
