package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Enumerated string settings.
const (
	DenoiseAdaptive = "adaptive"
	DenoiseFixed    = "fixed"

	TextureBlend   = "blend"
	TextureEntropy = "entropy"

	LayoutTiled     = "tiled"
	LayoutPerRegion = "per-region"
)

// TuningConfig represents the root configuration for the watermark codec.
// Embedder and extractor must run with the same values; anything that
// changes region selection or block classification makes an existing
// watermark unreadable.
type TuningConfig struct {
	// Edge map
	DenoiseMode          *string  `json:"denoise_mode,omitempty"` // "adaptive" or "fixed"
	FixedDiscardRatio    *float64 `json:"fixed_discard_ratio,omitempty"`
	CannyLow             *float64 `json:"canny_low,omitempty"`
	CannyHigh            *float64 `json:"canny_high,omitempty"`
	PostProcessThreshold *float64 `json:"post_process_threshold,omitempty"`

	// Region selection
	WindowScale *float64 `json:"window_scale,omitempty"`
	StepScale   *float64 `json:"step_scale,omitempty"`
	ScoreAlpha  *float64 `json:"score_alpha,omitempty"`
	ScoreBeta   *float64 `json:"score_beta,omitempty"`
	ScoreGamma  *float64 `json:"score_gamma,omitempty"`
	ScoreDelta  *float64 `json:"score_delta,omitempty"`
	TextureMode *string  `json:"texture_mode,omitempty"` // "blend" or "entropy"

	// Block model
	EdgeBlockThreshold *int     `json:"edge_block_threshold,omitempty"`
	GaussianSigma      *float64 `json:"gaussian_sigma,omitempty"`

	// Layout
	Layout   *string `json:"layout,omitempty"` // "tiled" or "per-region"
	Replicas *int    `json:"replicas,omitempty"`

	// Frame
	DataBytes            *int     `json:"data_bytes,omitempty"`
	ParityBytes          *int     `json:"parity_bytes,omitempty"`
	MarkerLength         *int     `json:"marker_length,omitempty"`
	MarkerErrorTolerance *float64 `json:"marker_error_tolerance,omitempty"`

	// Video batch
	VideoFrameStride *int    `json:"video_frame_stride,omitempty"`
	VideoWorkers     *int    `json:"video_workers,omitempty"`
	FFmpegPath       *string `json:"ffmpeg_path,omitempty"`
	FFprobePath      *string `json:"ffprobe_path,omitempty"`
}

// Helper functions to create pointers
func ptrFloat64(v float64) *float64 { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field set to its
// built-in default. It matches config/tuning.defaults.json.
func DefaultTuningConfig() *TuningConfig {
	e := EmptyTuningConfig()
	return &TuningConfig{
		DenoiseMode:          ptrString(e.GetDenoiseMode()),
		FixedDiscardRatio:    ptrFloat64(e.GetFixedDiscardRatio()),
		CannyLow:             ptrFloat64(e.GetCannyLow()),
		CannyHigh:            ptrFloat64(e.GetCannyHigh()),
		PostProcessThreshold: ptrFloat64(e.GetPostProcessThreshold()),
		WindowScale:          ptrFloat64(e.GetWindowScale()),
		StepScale:            ptrFloat64(e.GetStepScale()),
		ScoreAlpha:           ptrFloat64(e.GetScoreAlpha()),
		ScoreBeta:            ptrFloat64(e.GetScoreBeta()),
		ScoreGamma:           ptrFloat64(e.GetScoreGamma()),
		ScoreDelta:           ptrFloat64(e.GetScoreDelta()),
		TextureMode:          ptrString(e.GetTextureMode()),
		EdgeBlockThreshold:   ptrInt(e.GetEdgeBlockThreshold()),
		GaussianSigma:        ptrFloat64(e.GetGaussianSigma()),
		Layout:               ptrString(e.GetLayout()),
		Replicas:             ptrInt(e.GetReplicas()),
		DataBytes:            ptrInt(e.GetDataBytes()),
		ParityBytes:          ptrInt(e.GetParityBytes()),
		MarkerLength:         ptrInt(e.GetMarkerLength()),
		MarkerErrorTolerance: ptrFloat64(e.GetMarkerErrorTolerance()),
		VideoFrameStride:     ptrInt(e.GetVideoFrameStride()),
		VideoWorkers:         ptrInt(e.GetVideoWorkers()),
		FFmpegPath:           ptrString(e.GetFFmpegPath()),
		FFprobePath:          ptrString(e.GetFFprobePath()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file is validated to ensure it has a .json extension and is under the max file size.
// Fields omitted from the JSON file retain their default values, so
// partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	// Check file size for safety (max 1MB)
	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// The Get* methods provide fallback defaults for any fields not
	// specified in the JSON.
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,          // from cmd/lumamark/
		"../../" + DefaultConfigPath,       // from internal/config/
		"../../../" + DefaultConfigPath,    // deeper packages
		"../../../../" + DefaultConfigPath, // even deeper
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.DenoiseMode != nil {
		if m := *c.DenoiseMode; m != DenoiseAdaptive && m != DenoiseFixed {
			return fmt.Errorf("denoise_mode must be %q or %q, got %q", DenoiseAdaptive, DenoiseFixed, m)
		}
	}
	if c.FixedDiscardRatio != nil && (*c.FixedDiscardRatio < 0 || *c.FixedDiscardRatio > 1) {
		return fmt.Errorf("fixed_discard_ratio must be between 0 and 1, got %f", *c.FixedDiscardRatio)
	}
	if c.GetCannyLow() < 0 || c.GetCannyHigh() < c.GetCannyLow() {
		return fmt.Errorf("canny thresholds must satisfy 0 <= low <= high, got %f/%f", c.GetCannyLow(), c.GetCannyHigh())
	}
	if c.PostProcessThreshold != nil && *c.PostProcessThreshold < 0 {
		return fmt.Errorf("post_process_threshold must be non-negative, got %f", *c.PostProcessThreshold)
	}

	for name, v := range map[string]*float64{"window_scale": c.WindowScale, "step_scale": c.StepScale} {
		if v != nil && (*v <= 0 || *v > 1) {
			return fmt.Errorf("%s must be in (0, 1], got %f", name, *v)
		}
	}
	if c.TextureMode != nil {
		if m := *c.TextureMode; m != TextureBlend && m != TextureEntropy {
			return fmt.Errorf("texture_mode must be %q or %q, got %q", TextureBlend, TextureEntropy, m)
		}
	}

	if c.EdgeBlockThreshold != nil && *c.EdgeBlockThreshold < 0 {
		return fmt.Errorf("edge_block_threshold must be non-negative, got %d", *c.EdgeBlockThreshold)
	}
	if c.GaussianSigma != nil && *c.GaussianSigma <= 0 {
		return fmt.Errorf("gaussian_sigma must be positive, got %f", *c.GaussianSigma)
	}

	if c.Layout != nil {
		if l := *c.Layout; l != LayoutTiled && l != LayoutPerRegion {
			return fmt.Errorf("layout must be %q or %q, got %q", LayoutTiled, LayoutPerRegion, l)
		}
	}
	if c.Replicas != nil && *c.Replicas < 1 {
		return fmt.Errorf("replicas must be at least 1, got %d", *c.Replicas)
	}

	if c.DataBytes != nil && (*c.DataBytes < 1 || *c.DataBytes > 223) {
		return fmt.Errorf("data_bytes must be between 1 and 223, got %d", *c.DataBytes)
	}
	if c.ParityBytes != nil && (*c.ParityBytes < 2 || *c.ParityBytes > 254) {
		return fmt.Errorf("parity_bytes must be between 2 and 254, got %d", *c.ParityBytes)
	}
	if c.GetDataBytes() > 255-c.GetParityBytes() {
		return fmt.Errorf("data_bytes %d does not fit beside %d parity bytes", c.GetDataBytes(), c.GetParityBytes())
	}
	if c.MarkerLength != nil && *c.MarkerLength < 1 {
		return fmt.Errorf("marker_length must be positive, got %d", *c.MarkerLength)
	}
	if c.MarkerErrorTolerance != nil && (*c.MarkerErrorTolerance < 0 || *c.MarkerErrorTolerance >= 1) {
		return fmt.Errorf("marker_error_tolerance must be in [0, 1), got %f", *c.MarkerErrorTolerance)
	}

	if c.VideoFrameStride != nil && *c.VideoFrameStride < 1 {
		return fmt.Errorf("video_frame_stride must be at least 1, got %d", *c.VideoFrameStride)
	}
	if c.VideoWorkers != nil && *c.VideoWorkers < 1 {
		return fmt.Errorf("video_workers must be at least 1, got %d", *c.VideoWorkers)
	}

	return nil
}

// GetDenoiseMode returns the denoise_mode value or the default.
func (c *TuningConfig) GetDenoiseMode() string {
	if c.DenoiseMode == nil || *c.DenoiseMode == "" {
		return DenoiseAdaptive
	}
	return *c.DenoiseMode
}

// GetFixedDiscardRatio returns the fixed_discard_ratio value or the default.
func (c *TuningConfig) GetFixedDiscardRatio() float64 {
	if c.FixedDiscardRatio == nil {
		return 0.9
	}
	return *c.FixedDiscardRatio
}

// GetCannyLow returns the canny_low value or the default.
func (c *TuningConfig) GetCannyLow() float64 {
	if c.CannyLow == nil {
		return 50
	}
	return *c.CannyLow
}

// GetCannyHigh returns the canny_high value or the default.
func (c *TuningConfig) GetCannyHigh() float64 {
	if c.CannyHigh == nil {
		return 150
	}
	return *c.CannyHigh
}

// GetPostProcessThreshold returns the post_process_threshold value or the default.
func (c *TuningConfig) GetPostProcessThreshold() float64 {
	if c.PostProcessThreshold == nil {
		return 20
	}
	return *c.PostProcessThreshold
}

// GetWindowScale returns the window_scale value or the default.
func (c *TuningConfig) GetWindowScale() float64 {
	if c.WindowScale == nil {
		return 0.25
	}
	return *c.WindowScale
}

// GetStepScale returns the step_scale value or the default.
func (c *TuningConfig) GetStepScale() float64 {
	if c.StepScale == nil {
		return 0.25
	}
	return *c.StepScale
}

// GetScoreAlpha returns the edge score weight or the default.
func (c *TuningConfig) GetScoreAlpha() float64 {
	if c.ScoreAlpha == nil {
		return 0.4
	}
	return *c.ScoreAlpha
}

// GetScoreBeta returns the texture score weight or the default.
func (c *TuningConfig) GetScoreBeta() float64 {
	if c.ScoreBeta == nil {
		return 0.2
	}
	return *c.ScoreBeta
}

// GetScoreGamma returns the gray score weight or the default.
func (c *TuningConfig) GetScoreGamma() float64 {
	if c.ScoreGamma == nil {
		return 0.2
	}
	return *c.ScoreGamma
}

// GetScoreDelta returns the position score weight or the default.
func (c *TuningConfig) GetScoreDelta() float64 {
	if c.ScoreDelta == nil {
		return 0.2
	}
	return *c.ScoreDelta
}

// GetTextureMode returns the texture_mode value or the default.
func (c *TuningConfig) GetTextureMode() string {
	if c.TextureMode == nil || *c.TextureMode == "" {
		return TextureBlend
	}
	return *c.TextureMode
}

// GetEdgeBlockThreshold returns the edge_block_threshold value or the default.
func (c *TuningConfig) GetEdgeBlockThreshold() int {
	if c.EdgeBlockThreshold == nil {
		return 5
	}
	return *c.EdgeBlockThreshold
}

// GetGaussianSigma returns the gaussian_sigma value or the default.
func (c *TuningConfig) GetGaussianSigma() float64 {
	if c.GaussianSigma == nil {
		return 1.5
	}
	return *c.GaussianSigma
}

// GetLayout returns the layout value or the default.
func (c *TuningConfig) GetLayout() string {
	if c.Layout == nil || *c.Layout == "" {
		return LayoutTiled
	}
	return *c.Layout
}

// GetReplicas returns the replicas value or the default.
func (c *TuningConfig) GetReplicas() int {
	if c.Replicas == nil {
		return 4
	}
	return *c.Replicas
}

// GetDataBytes returns the data_bytes value or the default.
func (c *TuningConfig) GetDataBytes() int {
	if c.DataBytes == nil {
		return 8
	}
	return *c.DataBytes
}

// GetParityBytes returns the parity_bytes value or the default.
func (c *TuningConfig) GetParityBytes() int {
	if c.ParityBytes == nil {
		return 32
	}
	return *c.ParityBytes
}

// GetMarkerLength returns the marker_length value or the default.
func (c *TuningConfig) GetMarkerLength() int {
	if c.MarkerLength == nil {
		return 41
	}
	return *c.MarkerLength
}

// GetMarkerErrorTolerance returns the marker_error_tolerance value or the default.
func (c *TuningConfig) GetMarkerErrorTolerance() float64 {
	if c.MarkerErrorTolerance == nil {
		return 0.2
	}
	return *c.MarkerErrorTolerance
}

// GetVideoFrameStride returns the video_frame_stride value or the default.
func (c *TuningConfig) GetVideoFrameStride() int {
	if c.VideoFrameStride == nil {
		return 10
	}
	return *c.VideoFrameStride
}

// GetVideoWorkers returns the video_workers value or the default.
func (c *TuningConfig) GetVideoWorkers() int {
	if c.VideoWorkers == nil {
		return 4
	}
	return *c.VideoWorkers
}

// GetFFmpegPath returns the ffmpeg_path value or the default.
func (c *TuningConfig) GetFFmpegPath() string {
	if c.FFmpegPath == nil || *c.FFmpegPath == "" {
		return "ffmpeg"
	}
	return *c.FFmpegPath
}

// GetFFprobePath returns the ffprobe_path value or the default.
func (c *TuningConfig) GetFFprobePath() string {
	if c.FFprobePath == nil || *c.FFprobePath == "" {
		return "ffprobe"
	}
	return *c.FFprobePath
}
