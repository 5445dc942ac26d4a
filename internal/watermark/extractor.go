package watermark

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lumamark/internal/block"
	"github.com/banshee-data/lumamark/internal/frame"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/plane"
	"github.com/banshee-data/lumamark/internal/region"
)

// BitsResult is the raw bitstream read from a plane.
type BitsResult struct {
	Bits             []uint8
	Regions          []region.Region
	Blocks           []block.Model
	DegenerateBlocks int
	Warnings         []error
}

// ExtractResult is the decoded payload together with the bitstream it came
// from.
type ExtractResult struct {
	BitsResult

	Text string
	// Detected is false when the marker did not match.
	Detected bool
	// Corrected is false when error correction failed; Text then holds the
	// raw data bytes.
	Corrected        bool
	CorrectedSymbols int
	MarkerErrors     int
}

// Extractor reads text back out of a marked plane.
type Extractor struct {
	Params Params
}

// NewExtractor returns an extractor using p.
func NewExtractor(p Params) *Extractor {
	return &Extractor{Params: p}
}

// Extract reads the payload blind: edges, regions and block models are
// recomputed from the marked plane itself.
func (x *Extractor) Extract(marked *plane.Plane) (*ExtractResult, error) {
	bits, err := x.ExtractBits(marked, nil)
	if err != nil {
		return nil, err
	}
	return x.decode(bits)
}

// ExtractWithReference reads the payload using the pre-watermark plane for
// edges, regions and block models and the marked plane for DC values.
func (x *Extractor) ExtractWithReference(marked, reference *plane.Plane) (*ExtractResult, error) {
	if reference.Empty() {
		return nil, fmt.Errorf("%w: empty reference plane", ErrInvalidInput)
	}
	bits, err := x.ExtractBits(marked, reference)
	if err != nil {
		return nil, err
	}
	return x.decode(bits)
}

// ExtractBits reads the raw bitstream from marked. When reference is nil the
// layout is derived from marked.
func (x *Extractor) ExtractBits(marked, reference *plane.Plane) (*BitsResult, error) {
	if marked.Empty() {
		return nil, fmt.Errorf("%w: empty sample plane", ErrInvalidInput)
	}
	if reference == nil {
		reference = marked
	}
	if reference.Width != marked.Width || reference.Height != marked.Height {
		return nil, fmt.Errorf("%w: reference is %dx%d, marked plane is %dx%d", ErrInvalidInput,
			reference.Width, reference.Height, marked.Width, marked.Height)
	}
	if err := x.Params.Validate(); err != nil {
		return nil, err
	}
	defer monitoring.Timed("extract bits")()

	edges, err := x.Params.Detector().Detect(reference)
	if err != nil {
		return nil, fmt.Errorf("failed to detect edges: %w", err)
	}

	n := x.Params.BitLen()
	res := &BitsResult{}
	switch x.Params.Layout {
	case LayoutPerRegion:
		res.Regions, err = x.Params.Selector().Select(reference, edges, n)
		if err != nil {
			return nil, fmt.Errorf("failed to select regions: %w", err)
		}
		if len(res.Regions) < n {
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: %d regions for %d bits, missing bits read as 0",
				ErrInsufficientRegions, len(res.Regions), n))
		}
		rasterOrder(res.Regions)
		modeler := x.Params.Modeler()
		res.Bits = make([]uint8, n)
		for i, r := range res.Regions {
			m := modeler.Model(r.Bounds, edges)
			res.Blocks = append(res.Blocks, m)
			res.Bits[i] = x.readBit(marked, m, res)
		}
	default:
		res.Regions, err = x.Params.Selector().Select(reference, edges, x.Params.Replicas)
		if err != nil {
			return nil, fmt.Errorf("failed to select regions: %w", err)
		}
		if len(res.Regions) < x.Params.Replicas {
			res.Warnings = append(res.Warnings, fmt.Errorf("%w: %d of %d replicas",
				ErrInsufficientRegions, len(res.Regions), x.Params.Replicas))
		}
		res.Blocks, err = tileBlocks(x.Params, res.Regions, edges, n)
		if err != nil {
			return nil, err
		}
		replicas := make([][]uint8, len(res.Regions))
		for i := range replicas {
			replicas[i] = make([]uint8, n)
			for j := 0; j < n; j++ {
				replicas[i][j] = x.readBit(marked, res.Blocks[i*n+j], res)
			}
		}
		res.Bits = Vote(replicas)
	}
	if res.DegenerateBlocks > 0 {
		monitoring.Logf("extract read %d degenerate blocks as 0", res.DegenerateBlocks)
	}
	return res, nil
}

func (x *Extractor) readBit(p *plane.Plane, m block.Model, res *BitsResult) uint8 {
	bit, err := block.ExtractBit(p, m)
	if err != nil {
		res.DegenerateBlocks++
		return 0
	}
	return bit
}

// Decode turns a bitstream into a payload. A missing marker is reported
// through Detected, not as an error.
func (x *Extractor) Decode(bits []uint8) (*ExtractResult, error) {
	return x.decode(&BitsResult{Bits: bits})
}

func (x *Extractor) decode(bits *BitsResult) (*ExtractResult, error) {
	codec, err := x.Params.Codec()
	if err != nil {
		return nil, err
	}
	res := &ExtractResult{BitsResult: *bits}
	payload, err := codec.Decode(bits.Bits)
	if payload != nil {
		res.MarkerErrors = payload.MarkerErrors
	}
	switch {
	case errors.Is(err, frame.ErrNoWatermark):
		monitoring.Debugf("no watermark: %v", err)
		return res, nil
	case errors.Is(err, frame.ErrUncorrectable):
		res.Detected = true
		res.Text = payload.Text
		res.Warnings = append(res.Warnings, err)
		return res, nil
	case err != nil:
		return nil, err
	}
	res.Detected = true
	res.Corrected = true
	res.CorrectedSymbols = payload.Corrected
	res.Text = payload.Text
	return res, nil
}
