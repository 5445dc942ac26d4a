// Package watermark ties the pipeline stages together into the two
// end-to-end operations: embedding a short text into a sample plane and
// reading it back.
//
// Embedding never mutates its input. Edges, regions and block models are
// derived from the original plane and every adjustment goes into a separate
// accumulator that becomes the marked plane.
package watermark

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/lumamark/internal/block"
	"github.com/banshee-data/lumamark/internal/frame"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/plane"
	"github.com/banshee-data/lumamark/internal/region"
)

// EmbedResult describes one embedding run.
type EmbedResult struct {
	Marked  *plane.Plane
	Regions []region.Region
	// Blocks lists every block that carries a bit, region by region.
	Blocks []block.Model
	// Bits is the embedded bitstream. In the per-region layout it may be
	// shorter than the full frame when regions ran out.
	Bits             []uint8
	DegenerateBlocks int
	Warnings         []error
}

// Embedder hides text in a sample plane.
type Embedder struct {
	Params Params
}

// NewEmbedder returns an embedder using p.
func NewEmbedder(p Params) *Embedder {
	return &Embedder{Params: p}
}

// Embed returns a marked copy of original carrying text.
func (e *Embedder) Embed(original *plane.Plane, text string) (*EmbedResult, error) {
	if original.Empty() {
		return nil, fmt.Errorf("%w: empty sample plane", ErrInvalidInput)
	}
	if text == "" {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidInput)
	}
	if err := e.Params.Validate(); err != nil {
		return nil, err
	}
	defer monitoring.Timed("embed")()

	codec, err := e.Params.Codec()
	if err != nil {
		return nil, err
	}
	bits, err := codec.Encode(text)
	if err != nil {
		if errors.Is(err, frame.ErrPayloadTooLong) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		return nil, err
	}

	edges, err := e.Params.Detector().Detect(original)
	if err != nil {
		return nil, fmt.Errorf("failed to detect edges: %w", err)
	}

	res := &EmbedResult{Bits: bits}
	switch e.Params.Layout {
	case LayoutPerRegion:
		res.Regions, err = e.Params.Selector().Select(original, edges, len(bits))
		if err != nil {
			return nil, fmt.Errorf("failed to select regions: %w", err)
		}
		if len(res.Regions) < len(bits) {
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: %d regions for %d bits, payload truncated",
				ErrInsufficientRegions, len(res.Regions), len(bits)))
			res.Bits = bits[:len(res.Regions)]
		}
		rasterOrder(res.Regions)
		modeler := e.Params.Modeler()
		for _, r := range res.Regions {
			res.Blocks = append(res.Blocks, modeler.Model(r.Bounds, edges))
		}
	default:
		res.Regions, err = e.Params.Selector().Select(original, edges, e.Params.Replicas)
		if err != nil {
			return nil, fmt.Errorf("failed to select regions: %w", err)
		}
		if len(res.Regions) < e.Params.Replicas {
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: %d of %d replicas",
				ErrInsufficientRegions, len(res.Regions), e.Params.Replicas))
		}
		res.Blocks, err = tileBlocks(e.Params, res.Regions, edges, len(bits))
		if err != nil {
			return nil, err
		}
	}

	acc := plane.NewAccumulator(original)
	for i, m := range res.Blocks {
		if _, err := block.EmbedBit(original, acc, m, res.Bits[i%len(res.Bits)]); err != nil {
			if errors.Is(err, block.ErrDegenerateBlock) {
				res.DegenerateBlocks++
				continue
			}
			return nil, err
		}
	}
	if res.DegenerateBlocks > 0 {
		monitoring.Logf("embed skipped %d degenerate blocks", res.DegenerateBlocks)
	}
	res.Marked = acc.Plane()
	monitoring.Debugf("embedded %d bits into %d blocks over %d regions", len(res.Bits), len(res.Blocks), len(res.Regions))
	return res, nil
}

// rasterOrder sorts regions top-to-bottom then left-to-right. In the
// per-region layout bit i belongs to the i-th region in this order.
func rasterOrder(regions []region.Region) {
	sort.SliceStable(regions, func(i, j int) bool {
		a, b := regions[i].Bounds.Min, regions[j].Bounds.Min
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		return a.X < b.X
	})
}

// tileBlocks partitions each region into n blocks, region by region.
func tileBlocks(p Params, regions []region.Region, edges *plane.Plane, n int) ([]block.Model, error) {
	modeler := p.Modeler()
	out := make([]block.Model, 0, n*len(regions))
	for i, r := range regions {
		models, err := modeler.Models(r.Bounds, edges, n)
		if err != nil {
			return nil, fmt.Errorf("%w: region %d: %w", ErrInvalidInput, i, err)
		}
		out = append(out, models...)
	}
	return out, nil
}
