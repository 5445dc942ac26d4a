package testutil

import (
	"net/http"
	"testing"
)

func TestAssertHelpersPassingPaths(t *testing.T) {
	t.Parallel()

	AssertStatusCode(t, http.StatusOK, http.StatusOK)
	AssertNoError(t, nil)
	AssertError(t, http.ErrNoCookie)
}

func TestFlat(t *testing.T) {
	t.Parallel()

	p := Flat(3, 2, 77)
	if p.Width != 3 || p.Height != 2 {
		t.Fatalf("size = %dx%d, want 3x2", p.Width, p.Height)
	}
	for i, v := range p.Pix {
		if v != 77 {
			t.Errorf("pix[%d] = %d, want 77", i, v)
		}
	}
}

func TestRamp(t *testing.T) {
	t.Parallel()

	p := Ramp(10, 10, 40, 1, 1, 2)
	if got := p.At(0, 0); got != 40 {
		t.Errorf("At(0,0) = %d, want 40", got)
	}
	if got := p.At(9, 9); got != 49 {
		t.Errorf("At(9,9) = %d, want 49", got)
	}
	if got := Ramp(4, 1, 250, 10, 0, 1).At(3, 0); got != 255 {
		t.Errorf("ramp should clip at 255, got %d", got)
	}
}

func TestNoiseDeterministicAndBounded(t *testing.T) {
	t.Parallel()

	a := Noise(16, 16, 70, 185, 5)
	b := Noise(16, 16, 70, 185, 5)
	for i := range a.Pix {
		if a.Pix[i] != b.Pix[i] {
			t.Fatalf("same seed produced different samples at %d", i)
		}
		if a.Pix[i] < 70 || a.Pix[i] > 185 {
			t.Errorf("sample %d out of range: %d", i, a.Pix[i])
		}
	}
}

func TestCheckerboard(t *testing.T) {
	t.Parallel()

	p := Checkerboard(4, 4, 2, 10, 200)
	want := [][]uint8{
		{10, 10, 200, 200},
		{10, 10, 200, 200},
		{200, 200, 10, 10},
		{200, 200, 10, 10},
	}
	for y, row := range want {
		for x, v := range row {
			if got := p.At(x, y); got != v {
				t.Errorf("At(%d,%d) = %d, want %d", x, y, got, v)
			}
		}
	}
}

func TestSceneStaysInRange(t *testing.T) {
	t.Parallel()

	p := Scene(64, 48, 70, 185, 1)
	for i, v := range p.Pix {
		if v < 70 || v > 185 {
			t.Fatalf("sample %d out of range: %d", i, v)
		}
	}
}
