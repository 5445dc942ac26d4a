package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/banshee-data/lumamark/internal/db"
	"github.com/banshee-data/lumamark/internal/video"
	"github.com/banshee-data/lumamark/internal/watermark"
)

// newRunner builds the command runner for video commands; tests replace it.
var newRunner = func(dryRun bool) video.Runner {
	return video.NewExecutor(dryRun)
}

type videoFlags struct {
	stride  int
	workers int
	dryRun  bool
}

func addVideoFlags(fs *flag.FlagSet) *videoFlags {
	vf := &videoFlags{}
	fs.IntVar(&vf.stride, "stride", 0, "Process every Nth frame (default from config)")
	fs.IntVar(&vf.workers, "workers", 0, "Frames processed in parallel (default from config)")
	fs.BoolVar(&vf.dryRun, "dry-run", false, "Print the ffmpeg commands without running them")
	return vf
}

func (c *cli) processor(cf *commonFlags, pf *paramFlags, vf *videoFlags) (*video.Processor, error) {
	cfg, err := cf.tuning()
	if err != nil {
		return nil, err
	}
	params := watermark.ParamsFromTuning(cfg)
	pf.apply(&params)
	p := video.NewProcessor(params, cfg, newRunner(vf.dryRun))
	if vf.stride > 0 {
		p.Stride = vf.stride
	}
	if vf.workers > 0 {
		p.Workers = vf.workers
	}
	return p, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt)
}

func (c *cli) handleEmbedVideo(args []string) int {
	fs := c.newFlagSet("embed-video")
	cf := addCommonFlags(fs)
	pf := addParamFlags(fs)
	vf := addVideoFlags(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	pos := fs.Args()
	if len(pos) != 3 {
		return c.usageError(fs, "embed-video needs <in> <out> <text>")
	}
	in, out, text := pos[0], pos[1], pos[2]

	p, err := c.processor(cf, pf, vf)
	if err != nil {
		return c.fail(err)
	}
	if len(text) > p.Params.DataBytes {
		c.log.Printf("warning: payload is %d bytes, truncating to %d", len(text), p.Params.DataBytes)
		text = text[:p.Params.DataBytes]
	}
	ctx, cancel := signalContext()
	defer cancel()

	rep, err := p.Embed(ctx, in, out, text)
	if err != nil {
		if vf.dryRun && errors.Is(err, video.ErrNoFrames) {
			return exitOK
		}
		return c.fail(err)
	}
	fmt.Fprintf(c.stdout, "Embedded %q into %d of %d frames of %s\n", text, rep.Marked, rep.Frames, out)

	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	if registry != nil {
		defer registry.Close()
		rec := &db.Embedding{Source: in, Output: out, Payload: text, Layout: p.Params.Layout, Regions: rep.Marked}
		if err := registry.RecordEmbedding(rec); err != nil {
			return c.fail(err)
		}
	}
	return exitOK
}

func (c *cli) handleExtractVideo(args []string) int {
	fs := c.newFlagSet("extract-video")
	cf := addCommonFlags(fs)
	pf := addParamFlags(fs)
	vf := addVideoFlags(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	pos := fs.Args()
	if len(pos) != 1 {
		return c.usageError(fs, "extract-video needs <in>")
	}
	in := pos[0]

	p, err := c.processor(cf, pf, vf)
	if err != nil {
		return c.fail(err)
	}
	ctx, cancel := signalContext()
	defer cancel()

	rep, err := p.Extract(ctx, in)
	if err != nil {
		if vf.dryRun && errors.Is(err, video.ErrNoFrames) {
			return exitOK
		}
		return c.fail(err)
	}
	res := rep.Result

	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	if registry != nil {
		defer registry.Close()
		rec := &db.Extraction{
			Source: in, Detected: res.Detected, Corrected: res.Corrected, Payload: res.Text,
			CorrectedSymbols: res.CorrectedSymbols, MarkerErrors: res.MarkerErrors,
		}
		if err := registry.RecordExtraction(rec); err != nil {
			return c.fail(err)
		}
	}

	fmt.Fprintf(c.stdout, "Frames: %d, sampled %d, marker found in %d\n", rep.Frames, rep.Sampled, rep.Synchronized)
	if !res.Detected {
		fmt.Fprintln(c.stdout, "No watermark found")
		return exitNotFound
	}
	if !res.Corrected {
		fmt.Fprintf(c.stdout, "Extracted (uncorrected): %q\n", res.Text)
		return exitOK
	}
	fmt.Fprintf(c.stdout, "Extracted: %q\n", res.Text)
	return exitOK
}
