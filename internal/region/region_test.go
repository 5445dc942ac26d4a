package region

import (
	"math"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lumamark/internal/plane"
)

func noisePlane(w, h int, seed int64) *plane.Plane {
	rng := rand.New(rand.NewSource(seed))
	p := plane.New(w, h)
	for i := range p.Pix {
		p.Pix[i] = uint8(rng.Intn(256))
	}
	return p
}

func TestEdgeScoreMonotonic(t *testing.T) {
	assert.Equal(t, 8.0, EdgeScore(64, 0))
	assert.Equal(t, 4.0, EdgeScore(64, 3))
	prev := math.Inf(1)
	for n := 0; n <= 64; n++ {
		s := EdgeScore(64, n)
		assert.Less(t, s, prev, "edge count %d", n)
		prev = s
	}
}

func TestPositionScoreMonotonic(t *testing.T) {
	c := plane.Point{X: 50, Y: 40}
	assert.InDelta(t, math.Sqrt(128/0.01), PositionScore(8, 8, c, c), 1e-9)

	prev := math.Inf(1)
	for d := 0; d < 30; d++ {
		s := PositionScore(8, 8, plane.Point{X: 50 + d, Y: 40 + d/2}, c)
		assert.Less(t, s, prev, "distance step %d", d)
		prev = s
	}
}

func TestTextureScore(t *testing.T) {
	pix := []uint8{0, 255, 0, 255}
	assert.InDelta(t, 1.0, TextureScore(pix, TextureEntropy), 1e-12)
	// Variance 127.5² exceeds the cap, so the blend saturates.
	assert.InDelta(t, 1.0, TextureScore(pix, TextureBlend), 1e-12)

	flat := []uint8{9, 9, 9, 9}
	assert.InDelta(t, 0.0, TextureScore(flat, TextureBlend), 1e-12)

	small := []uint8{100, 110, 100, 110}
	assert.InDelta(t, 0.7+0.3*25.0/10000, TextureScore(small, TextureBlend), 1e-12)
}

func TestGrayScore(t *testing.T) {
	assert.InDelta(t, math.Abs(math.Log2(1e-9)), GrayScore([]uint8{128, 128}), 1e-9)
	assert.InDelta(t, 7.0, GrayScore([]uint8{0, 0, 0}), 1e-9)
	assert.InDelta(t, 0.0, GrayScore([]uint8{127, 129}), 1e-6)
}

func TestScoreFillsRegion(t *testing.T) {
	p := plane.New(16, 16)
	for i := range p.Pix {
		p.Pix[i] = 64
	}
	edges := plane.New(16, 16)
	edges.Set(2, 2, 255)
	edges.Set(3, 3, 255)
	edges.Set(12, 12, 255)

	s := NewScorer()
	r := s.Score(p, edges, plane.Rect{Max: plane.Point{X: 8, Y: 8}}, p.Center())

	assert.Equal(t, plane.Point{X: 4, Y: 4}, r.Center)
	assert.InDelta(t, math.Sqrt(64.0/3), r.EdgeScore, 1e-12)
	assert.InDelta(t, 0.0, r.TextureScore, 1e-12)
	assert.InDelta(t, 6.0, r.GrayScore, 1e-6)
	assert.InDelta(t, math.Sqrt(128/32.01), r.PositionScore, 1e-12)
	assert.InDelta(t, 0.4*r.EdgeScore+0.2*r.TextureScore+0.2*r.GrayScore+0.2*r.PositionScore, r.Score, 1e-12)
}

func TestWindowSize(t *testing.T) {
	s := NewSelector()
	win, step := s.WindowSize(100, 40)
	assert.Equal(t, plane.Point{X: 25, Y: 10}, win)
	assert.Equal(t, plane.Point{X: 6, Y: 2}, step)

	win, step = s.WindowSize(3, 3)
	assert.Equal(t, plane.Point{X: 1, Y: 1}, win)
	assert.Equal(t, plane.Point{X: 1, Y: 1}, step)
}

func TestCandidatesStableOrder(t *testing.T) {
	p := plane.New(100, 40)
	for i := range p.Pix {
		p.Pix[i] = 30
	}
	edges := plane.New(100, 40)

	s := NewSelector()
	s.Scorer.Delta = 0 // every window then scores the same

	cands, err := s.Candidates(p, edges)
	require.NoError(t, err)
	require.Len(t, cands, 13*16)
	assert.Equal(t, plane.Point{X: 0, Y: 0}, cands[0].Bounds.Min)
	assert.Equal(t, plane.Point{X: 6, Y: 0}, cands[1].Bounds.Min)
	assert.Equal(t, plane.Point{X: 0, Y: 2}, cands[13].Bounds.Min)
}

func TestCandidatesErrors(t *testing.T) {
	s := NewSelector()
	_, err := s.Candidates(plane.New(0, 0), plane.New(0, 0))
	assert.ErrorIs(t, err, ErrEmptyPlane)

	_, err = s.Candidates(plane.New(10, 10), plane.New(10, 9))
	assert.ErrorIs(t, err, ErrMismatchedPlanes)

	s.WindowScale = 0
	_, err = s.Candidates(plane.New(10, 10), plane.New(10, 10))
	assert.Error(t, err)

	_, err = NewSelector().Select(plane.New(10, 10), plane.New(10, 10), 0)
	assert.Error(t, err)
}

func TestSelectNonOverlapping(t *testing.T) {
	for _, seed := range []int64{1, 2, 3} {
		p := noisePlane(64, 48, seed)
		edges := noisePlane(64, 48, seed+100)
		for i, v := range edges.Pix {
			if v < 230 {
				edges.Pix[i] = 0
			} else {
				edges.Pix[i] = 255
			}
		}

		s := NewSelector()
		regions, err := s.Select(p, edges, 16)
		require.NoError(t, err)
		require.NotEmpty(t, regions)
		assert.LessOrEqual(t, len(regions), 16)

		for i := range regions {
			for j := i + 1; j < len(regions); j++ {
				inter := regions[i].Bounds.Intersect(regions[j].Bounds)
				assert.True(t, inter.Empty(), "regions %d and %d overlap: %v", i, j, inter)
			}
		}
		for i := 1; i < len(regions); i++ {
			assert.GreaterOrEqual(t, regions[i-1].Score, regions[i].Score)
		}

		again, err := s.Select(p, edges, 16)
		require.NoError(t, err)
		if diff := cmp.Diff(regions, again); diff != "" {
			t.Errorf("selection not reproducible (-first +second):\n%s", diff)
		}
	}
}

func TestPack(t *testing.T) {
	rect := func(x0, y0, x1, y1 int) Region {
		return Region{Bounds: plane.Rect{Min: plane.Point{X: x0, Y: y0}, Max: plane.Point{X: x1, Y: y1}}}
	}
	ranked := []Region{
		rect(0, 0, 10, 10),
		rect(5, 5, 15, 15),
		rect(10, 0, 20, 10), // touches the first only along an edge
		rect(0, 10, 10, 20),
	}

	got := Pack(ranked, 10)
	require.Len(t, got, 3)
	assert.Equal(t, ranked[0], got[0])
	assert.Equal(t, ranked[2], got[1])
	assert.Equal(t, ranked[3], got[2])

	assert.Len(t, Pack(ranked, 2), 2)
	assert.Empty(t, Pack(nil, 3))
	assert.Empty(t, Pack(ranked, 0))
}
