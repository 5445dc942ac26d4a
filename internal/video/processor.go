package video

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/banshee-data/lumamark/internal/config"
	"github.com/banshee-data/lumamark/internal/imageio"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/watermark"
)

// framePattern names exploded frames inside the work directory.
const framePattern = "frame_%06d.png"

var (
	ErrNoFrames    = errors.New("video has no frames")
	ErrInvalidRate = errors.New("could not determine frame rate")
)

// Processor embeds into and extracts from every Stride-th frame of a video.
type Processor struct {
	Params  watermark.Params
	Runner  Runner
	FFmpeg  string
	FFprobe string
	// Stride selects frames 0, Stride, 2·Stride, ...
	Stride  int
	Workers int
	// TempDir is the parent of per-run work directories; empty uses the
	// system default.
	TempDir string
}

// NewProcessor returns a processor configured from cfg.
func NewProcessor(params watermark.Params, cfg *config.TuningConfig, runner Runner) *Processor {
	return &Processor{
		Params:  params,
		Runner:  runner,
		FFmpeg:  cfg.GetFFmpegPath(),
		FFprobe: cfg.GetFFprobePath(),
		Stride:  cfg.GetVideoFrameStride(),
		Workers: cfg.GetVideoWorkers(),
	}
}

// FrameResult is the outcome for one sampled frame.
type FrameResult struct {
	Index        int
	Path         string
	Regions      int
	Synchronized bool
	MarkerErrors int
	Err          error
}

// EmbedReport summarizes a video embed.
type EmbedReport struct {
	Frames  int
	Marked  int
	Results []FrameResult
}

// ExtractReport summarizes a video extraction. Result is the decode of the
// bitstream voted across synchronized frames.
type ExtractReport struct {
	Frames       int
	Sampled      int
	Synchronized int
	Results      []FrameResult
	Result       *watermark.ExtractResult
}

func (p *Processor) validate() error {
	if p.Runner == nil {
		return errors.New("video processor has no runner")
	}
	if p.Stride < 1 {
		return fmt.Errorf("stride must be at least 1, got %d", p.Stride)
	}
	if p.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", p.Workers)
	}
	return p.Params.Validate()
}

// Embed writes a copy of in to out with text embedded in every sampled
// frame. Audio is copied unchanged when present.
func (p *Processor) Embed(ctx context.Context, in, out, text string) (*EmbedReport, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	defer monitoring.Timed("video embed")()

	rate, err := p.probeRate(ctx, in)
	if err != nil {
		return nil, err
	}
	audio, err := p.hasAudio(ctx, in)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(p.TempDir, "lumamark-frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	frames, err := p.explode(ctx, in, dir)
	if err != nil {
		return nil, err
	}

	report := &EmbedReport{Frames: len(frames)}
	report.Results, err = p.forEachSampled(ctx, frames, func(fr *FrameResult) error {
		img, _, err := imageio.LoadFile(fr.Path)
		if err != nil {
			return err
		}
		res, err := watermark.NewEmbedder(p.Params).Embed(imageio.Luma(img), text)
		if err != nil {
			return err
		}
		fr.Regions = len(res.Regions)
		marked, err := imageio.ReplaceLuma(img, res.Marked)
		if err != nil {
			return err
		}
		return imageio.SaveFile(fr.Path, marked)
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, fr := range report.Results {
		if fr.Err != nil {
			monitoring.Logf("frame %d left unmarked: %v", fr.Index, fr.Err)
			continue
		}
		report.Marked++
	}

	args := []string{"-v", "error", "-y", "-framerate", rate, "-i", filepath.Join(dir, framePattern)}
	if audio {
		args = append(args, "-i", in, "-map", "0:v", "-map", "1:a", "-c:a", "copy")
	}
	args = append(args, "-c:v", "libx264", "-crf", "18", "-pix_fmt", "yuv420p", out)
	if _, err := p.Runner.Run(ctx, p.FFmpeg, args...); err != nil {
		return nil, fmt.Errorf("failed to encode video: %w", err)
	}
	monitoring.Logf("marked %d of %d frames (stride %d)", report.Marked, report.Frames, p.Stride)
	return report, nil
}

// Extract reads the payload from the sampled frames of in. Frames whose
// marker window is out of tolerance are left out of the vote.
func (p *Processor) Extract(ctx context.Context, in string) (*ExtractReport, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	defer monitoring.Timed("video extract")()

	dir, err := os.MkdirTemp(p.TempDir, "lumamark-frames-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	defer os.RemoveAll(dir)

	frames, err := p.explode(ctx, in, dir)
	if err != nil {
		return nil, err
	}
	codec, err := p.Params.Codec()
	if err != nil {
		return nil, err
	}

	bits := make([][]uint8, len(frames))
	report := &ExtractReport{Frames: len(frames)}
	report.Results, err = p.forEachSampled(ctx, frames, func(fr *FrameResult) error {
		img, _, err := imageio.LoadFile(fr.Path)
		if err != nil {
			return err
		}
		res, err := watermark.NewExtractor(p.Params).ExtractBits(imageio.Luma(img), nil)
		if err != nil {
			return err
		}
		fr.Regions = len(res.Regions)
		fr.MarkerErrors = codec.MarkerErrors(res.Bits)
		fr.Synchronized = codec.Synchronized(res.Bits)
		if fr.Synchronized {
			bits[fr.Index] = res.Bits
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var voters [][]uint8
	for _, fr := range report.Results {
		report.Sampled++
		if fr.Err != nil {
			monitoring.Logf("frame %d skipped: %v", fr.Index, fr.Err)
			continue
		}
		if fr.Synchronized {
			report.Synchronized++
			voters = append(voters, bits[fr.Index])
		}
	}
	monitoring.Logf("%d of %d sampled frames carry a marker", report.Synchronized, report.Sampled)
	if len(voters) == 0 {
		report.Result = &watermark.ExtractResult{}
		return report, nil
	}
	report.Result, err = watermark.NewExtractor(p.Params).Decode(watermark.Vote(voters))
	if err != nil {
		return nil, err
	}
	return report, nil
}

// forEachSampled runs fn over every Stride-th frame with at most Workers in
// flight. Each call owns its FrameResult. Per-frame failures are recorded in
// the results; an ErrInvalidInput stops the remaining frames and is
// returned.
func (p *Processor) forEachSampled(ctx context.Context, frames []string, fn func(*FrameResult) error) ([]FrameResult, error) {
	var results []FrameResult
	for i := 0; i < len(frames); i += p.Stride {
		results = append(results, FrameResult{Index: i, Path: frames[i]})
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.Workers)
	for i := range results {
		fr := &results[i]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				fr.Err = err
				return nil
			}
			fr.Err = fn(fr)
			if errors.Is(fr.Err, watermark.ErrInvalidInput) {
				return fmt.Errorf("frame %d: %w", fr.Index, fr.Err)
			}
			return nil
		})
	}
	return results, g.Wait()
}

func (p *Processor) explode(ctx context.Context, in, dir string) ([]string, error) {
	_, err := p.Runner.Run(ctx, p.FFmpeg, "-v", "error", "-i", in, "-map", "0:v:0", "-fps_mode", "passthrough",
		filepath.Join(dir, framePattern))
	if err != nil {
		return nil, fmt.Errorf("failed to extract frames: %w", err)
	}
	frames, err := filepath.Glob(filepath.Join(dir, "frame_*.png"))
	if err != nil {
		return nil, err
	}
	if len(frames) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFrames, in)
	}
	sort.Strings(frames)
	monitoring.Debugf("extracted %d frames from %s", len(frames), in)
	return frames, nil
}

func (p *Processor) probeRate(ctx context.Context, in string) (string, error) {
	out, err := p.Runner.Run(ctx, p.FFprobe, "-v", "error", "-select_streams", "v:0",
		"-show_entries", "stream=r_frame_rate", "-of", "default=noprint_wrappers=1:nokey=1", in)
	if err != nil {
		return "", fmt.Errorf("failed to probe frame rate: %w", err)
	}
	rate := strings.TrimSpace(out)
	if i := strings.IndexByte(rate, '\n'); i >= 0 {
		rate = strings.TrimSpace(rate[:i])
	}
	if rate == "" || rate == "0/0" {
		return "", fmt.Errorf("%w: %s", ErrInvalidRate, in)
	}
	return rate, nil
}

func (p *Processor) hasAudio(ctx context.Context, in string) (bool, error) {
	out, err := p.Runner.Run(ctx, p.FFprobe, "-v", "error", "-select_streams", "a",
		"-show_entries", "stream=index", "-of", "csv=p=0", in)
	if err != nil {
		return false, fmt.Errorf("failed to probe audio: %w", err)
	}
	return strings.TrimSpace(out) != "", nil
}
