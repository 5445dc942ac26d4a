package region

import (
	"fmt"
	"sort"

	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/plane"
)

// Selector slides a window over the plane and greedily keeps the best
// non-overlapping placements.
type Selector struct {
	WindowScale float64
	StepScale   float64
	Scorer      *Scorer
}

// NewSelector returns a selector with 0.25 window and step scales and the
// default scorer.
func NewSelector() *Selector {
	return &Selector{WindowScale: 0.25, StepScale: 0.25, Scorer: NewScorer()}
}

// Validate checks the selector settings.
func (s *Selector) Validate() error {
	if s.WindowScale <= 0 || s.WindowScale > 1 {
		return fmt.Errorf("window scale must be in (0,1], got %v", s.WindowScale)
	}
	if s.StepScale <= 0 || s.StepScale > 1 {
		return fmt.Errorf("step scale must be in (0,1], got %v", s.StepScale)
	}
	if s.Scorer == nil {
		return fmt.Errorf("selector has no scorer")
	}
	return s.Scorer.Validate()
}

// WindowSize returns the window and step dimensions used for a plane of the
// given size. Each is at least one pixel.
func (s *Selector) WindowSize(width, height int) (win, step plane.Point) {
	win = plane.Point{X: max(1, int(float64(width)*s.WindowScale)), Y: max(1, int(float64(height)*s.WindowScale))}
	step = plane.Point{X: max(1, int(float64(win.X)*s.StepScale)), Y: max(1, int(float64(win.Y)*s.StepScale))}
	return win, step
}

// Candidates scores every window placement, top-to-bottom then
// left-to-right, and returns them stable-sorted by descending score.
func (s *Selector) Candidates(original, edges *plane.Plane) ([]Region, error) {
	if original.Empty() || edges.Empty() {
		return nil, ErrEmptyPlane
	}
	if original.Width != edges.Width || original.Height != edges.Height {
		return nil, fmt.Errorf("%w: plane %dx%d, mask %dx%d", ErrMismatchedPlanes,
			original.Width, original.Height, edges.Width, edges.Height)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	win, step := s.WindowSize(original.Width, original.Height)
	center := original.Center()
	var out []Region
	for y := 0; y+win.Y <= original.Height; y += step.Y {
		for x := 0; x+win.X <= original.Width; x += step.X {
			r := plane.Rect{Min: plane.Point{X: x, Y: y}, Max: plane.Point{X: x + win.X, Y: y + win.Y}}
			out = append(out, s.Scorer.Score(original, edges, r, center))
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out, nil
}

// Select returns up to n pairwise non-overlapping regions, best first.
// Fewer than n are returned when the plane cannot fit them; callers must
// handle a short list.
func (s *Selector) Select(original, edges *plane.Plane, n int) ([]Region, error) {
	if n <= 0 {
		return nil, fmt.Errorf("region count must be positive, got %d", n)
	}
	defer monitoring.Timed("region selection")()

	candidates, err := s.Candidates(original, edges)
	if err != nil {
		return nil, err
	}
	selected := Pack(candidates, n)
	if len(selected) < n {
		monitoring.Logf("region selection found %d of %d requested non-overlapping regions", len(selected), n)
	}
	return selected, nil
}

// Pack walks ranked candidates in order, keeping each one that does not
// overlap an already kept region, until n are kept. If nothing is kept but
// candidates exist, the first candidate is returned alone.
func Pack(ranked []Region, n int) []Region {
	var selected []Region
	for _, c := range ranked {
		if len(selected) >= n {
			break
		}
		conflict := false
		for _, s := range selected {
			if c.Conflicts(s) {
				conflict = true
				break
			}
		}
		if !conflict {
			selected = append(selected, c)
		}
	}
	if len(selected) == 0 && len(ranked) > 0 && n > 0 {
		selected = append(selected, ranked[0])
	}
	return selected
}
