package watermark

import (
	"fmt"

	"github.com/banshee-data/lumamark/internal/block"
	"github.com/banshee-data/lumamark/internal/config"
	"github.com/banshee-data/lumamark/internal/edge"
	"github.com/banshee-data/lumamark/internal/fec"
	"github.com/banshee-data/lumamark/internal/frame"
	"github.com/banshee-data/lumamark/internal/region"
)

// Region layouts.
const (
	// LayoutTiled embeds the whole bitstream in each of Replicas regions,
	// one bit per block, and votes across regions on extraction.
	LayoutTiled = config.LayoutTiled
	// LayoutPerRegion embeds one bit per selected region.
	LayoutPerRegion = config.LayoutPerRegion
)

// Params is the single parameter set shared by Embedder and Extractor.
// Both sides must use equal Params for a watermark to be readable.
type Params struct {
	DenoiseMode          string
	FixedDiscardRatio    float64
	CannyLow             float64
	CannyHigh            float64
	PostProcessThreshold float64

	WindowScale float64
	StepScale   float64
	Alpha       float64
	Beta        float64
	Gamma       float64
	Delta       float64
	TextureMode string

	EdgeThreshold int
	GaussianSigma float64

	Layout   string
	Replicas int

	DataBytes    int
	ParityBytes  int
	MarkerLength int
	Tolerance    float64
}

// DefaultParams returns the built-in parameter set.
func DefaultParams() Params {
	return ParamsFromTuning(config.EmptyTuningConfig())
}

// ParamsFromTuning maps a tuning config onto Params, taking defaults for
// unset keys.
func ParamsFromTuning(cfg *config.TuningConfig) Params {
	return Params{
		DenoiseMode:          cfg.GetDenoiseMode(),
		FixedDiscardRatio:    cfg.GetFixedDiscardRatio(),
		CannyLow:             cfg.GetCannyLow(),
		CannyHigh:            cfg.GetCannyHigh(),
		PostProcessThreshold: cfg.GetPostProcessThreshold(),
		WindowScale:          cfg.GetWindowScale(),
		StepScale:            cfg.GetStepScale(),
		Alpha:                cfg.GetScoreAlpha(),
		Beta:                 cfg.GetScoreBeta(),
		Gamma:                cfg.GetScoreGamma(),
		Delta:                cfg.GetScoreDelta(),
		TextureMode:          cfg.GetTextureMode(),
		EdgeThreshold:        cfg.GetEdgeBlockThreshold(),
		GaussianSigma:        cfg.GetGaussianSigma(),
		Layout:               cfg.GetLayout(),
		Replicas:             cfg.GetReplicas(),
		DataBytes:            cfg.GetDataBytes(),
		ParityBytes:          cfg.GetParityBytes(),
		MarkerLength:         cfg.GetMarkerLength(),
		Tolerance:            cfg.GetMarkerErrorTolerance(),
	}
}

// Validate checks every stage's parameters.
func (p Params) Validate() error {
	if err := p.Detector().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := p.Selector().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if err := p.Modeler().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if p.Layout != LayoutTiled && p.Layout != LayoutPerRegion {
		return fmt.Errorf("%w: unknown layout %q", ErrInvalidInput, p.Layout)
	}
	if p.Layout == LayoutTiled && p.Replicas < 1 {
		return fmt.Errorf("%w: replicas must be at least 1, got %d", ErrInvalidInput, p.Replicas)
	}
	codec, err := p.Codec()
	if err != nil {
		return err
	}
	if err := codec.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}

// Detector builds the edge detector.
func (p Params) Detector() *edge.Detector {
	return &edge.Detector{
		DenoiseMode:       p.DenoiseMode,
		FixedDiscardRatio: p.FixedDiscardRatio,
		CannyLow:          p.CannyLow,
		CannyHigh:         p.CannyHigh,
		PostThreshold:     p.PostProcessThreshold,
	}
}

// Selector builds the region selector.
func (p Params) Selector() *region.Selector {
	return &region.Selector{
		WindowScale: p.WindowScale,
		StepScale:   p.StepScale,
		Scorer: &region.Scorer{
			Alpha:       p.Alpha,
			Beta:        p.Beta,
			Gamma:       p.Gamma,
			Delta:       p.Delta,
			TextureMode: p.TextureMode,
		},
	}
}

// Modeler builds the block modeler.
func (p Params) Modeler() *block.Modeler {
	return &block.Modeler{Threshold: p.EdgeThreshold, Sigma: p.GaussianSigma}
}

// Codec builds the frame codec.
func (p Params) Codec() (*frame.Codec, error) {
	rs, err := fec.NewReedSolomon(fec.DefaultPoly, fec.DefaultFirstRoot, p.ParityBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return &frame.Codec{
		Code:         rs,
		Layout:       frame.Layout{DataBytes: p.DataBytes, ParityBytes: p.ParityBytes},
		MarkerLength: p.MarkerLength,
		Tolerance:    p.Tolerance,
	}, nil
}

// BitLen returns the bitstream length for these parameters.
func (p Params) BitLen() int {
	return 8*(p.DataBytes+p.ParityBytes) + p.MarkerLength
}
