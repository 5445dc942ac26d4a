package main

import (
	"fmt"
	"os"

	"github.com/banshee-data/lumamark/internal/db"
	"github.com/banshee-data/lumamark/internal/imageio"
	"github.com/banshee-data/lumamark/internal/report"
	"github.com/banshee-data/lumamark/internal/watermark"
)

func (c *cli) handleEmbed(args []string) int {
	fs := c.newFlagSet("embed")
	cf := addCommonFlags(fs)
	pf := addParamFlags(fs)
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	pos := fs.Args()
	if len(pos) < 3 || len(pos) > 5 {
		return c.usageError(fs, "embed needs <in> <out> <text> [numRegions] [edgeThreshold]")
	}
	in, out, text := pos[0], pos[1], pos[2]
	if n, ok, err := positionalInt(pos, 3, "numRegions"); err != nil {
		return c.usageError(fs, "%v", err)
	} else if ok {
		pf.regions = n
	}
	if th, ok, err := positionalInt(pos, 4, "edgeThreshold"); err != nil {
		return c.usageError(fs, "%v", err)
	} else if ok {
		pf.edgeThreshold = th
	}

	params, err := c.params(cf, pf)
	if err != nil {
		return c.fail(err)
	}
	if len(text) > params.DataBytes {
		c.log.Printf("warning: payload is %d bytes, truncating to %d", len(text), params.DataBytes)
		text = text[:params.DataBytes]
	}
	if imageio.FormatFromPath(out) == imageio.FormatJPEG {
		c.log.Printf("warning: JPEG output is lossy and may damage the watermark")
	}

	img, _, err := imageio.LoadFile(in)
	if err != nil {
		return c.fail(err)
	}
	original := imageio.Luma(img)
	res, err := watermark.NewEmbedder(params).Embed(original, text)
	if err != nil {
		return c.fail(err)
	}
	for _, w := range res.Warnings {
		c.log.Printf("warning: %v", w)
	}
	marked, err := imageio.ReplaceLuma(img, res.Marked)
	if err != nil {
		return c.fail(err)
	}
	if err := imageio.SaveFile(out, marked); err != nil {
		return c.fail(err)
	}
	q, err := report.Compare(original, res.Marked)
	if err != nil {
		return c.fail(err)
	}

	fmt.Fprintf(c.stdout, "Embedded %q into %s\n", text, out)
	fmt.Fprintf(c.stdout, "  layout:  %s (%d regions, %d blocks, %d degenerate)\n",
		params.Layout, len(res.Regions), len(res.Blocks), res.DegenerateBlocks)
	fmt.Fprintf(c.stdout, "  quality: PSNR %.2f dB, MSE %.4f, max delta %d\n", q.PSNR, q.MSE, q.MaxDelta)

	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	if registry != nil {
		defer registry.Close()
		rec := &db.Embedding{
			Source: in, Output: out, Payload: text, Layout: params.Layout,
			Width: original.Width, Height: original.Height,
			Regions: len(res.Regions), Blocks: len(res.Blocks), DegenerateBlocks: res.DegenerateBlocks,
			MSE: q.MSE, PSNR: db.PSNRValue(q.PSNR), Warnings: errorStrings(res.Warnings),
		}
		if err := registry.RecordEmbedding(rec); err != nil {
			return c.fail(err)
		}
		fmt.Fprintf(c.stdout, "  record:  %s\n", rec.ID)
	}
	return exitOK
}

func (c *cli) handleExtract(args []string) int {
	fs := c.newFlagSet("extract")
	cf := addCommonFlags(fs)
	pf := addParamFlags(fs)
	reference := fs.String("reference", "", "Original image; its edges and regions locate the blocks")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	pos := fs.Args()
	if len(pos) < 1 || len(pos) > 2 {
		return c.usageError(fs, "extract needs <in> [edgeThreshold]")
	}
	in := pos[0]
	if th, ok, err := positionalInt(pos, 1, "edgeThreshold"); err != nil {
		return c.usageError(fs, "%v", err)
	} else if ok {
		pf.edgeThreshold = th
	}

	params, err := c.params(cf, pf)
	if err != nil {
		return c.fail(err)
	}
	img, _, err := imageio.LoadFile(in)
	if err != nil {
		return c.fail(err)
	}
	x := watermark.NewExtractor(params)
	var res *watermark.ExtractResult
	if *reference != "" {
		ref, _, err := imageio.LoadFile(*reference)
		if err != nil {
			return c.fail(err)
		}
		res, err = x.ExtractWithReference(imageio.Luma(img), imageio.Luma(ref))
		if err != nil {
			return c.fail(err)
		}
	} else {
		res, err = x.Extract(imageio.Luma(img))
		if err != nil {
			return c.fail(err)
		}
	}
	for _, w := range res.Warnings {
		c.log.Printf("warning: %v", w)
	}

	registry, err := cf.openDB()
	if err != nil {
		return c.fail(err)
	}
	if registry != nil {
		defer registry.Close()
		rec := &db.Extraction{
			Source: in, Reference: *reference, Detected: res.Detected, Corrected: res.Corrected,
			Payload: res.Text, CorrectedSymbols: res.CorrectedSymbols, MarkerErrors: res.MarkerErrors,
		}
		if err := registry.RecordExtraction(rec); err != nil {
			return c.fail(err)
		}
	}

	switch {
	case !res.Detected:
		fmt.Fprintf(c.stdout, "No watermark found (%d of %d marker bits wrong)\n", res.MarkerErrors, params.MarkerLength)
		return exitNotFound
	case !res.Corrected:
		fmt.Fprintf(c.stdout, "Extracted (uncorrected): %q\n", res.Text)
	default:
		fmt.Fprintf(c.stdout, "Extracted: %q\n", res.Text)
		if res.CorrectedSymbols > 0 {
			fmt.Fprintf(c.stdout, "  corrected %d symbols\n", res.CorrectedSymbols)
		}
	}
	return exitOK
}

func (c *cli) handleAnalyze(args []string) int {
	fs := c.newFlagSet("analyze")
	cf := addCommonFlags(fs)
	pf := addParamFlags(fs)
	originalPath := fs.String("original", "", "Original image (required)")
	markedPath := fs.String("marked", "", "Marked image (required)")
	chartPath := fs.String("chart", "", "Write an HTML chart of region scores here")
	plotPath := fs.String("plot", "", "Write a PNG histogram of block margins here")
	if code, ok := parseFlags(fs, args); !ok {
		return code
	}
	if *originalPath == "" || *markedPath == "" {
		return c.usageError(fs, "--original and --marked are required")
	}

	params, err := c.params(cf, pf)
	if err != nil {
		return c.fail(err)
	}
	origImg, _, err := imageio.LoadFile(*originalPath)
	if err != nil {
		return c.fail(err)
	}
	markedImg, _, err := imageio.LoadFile(*markedPath)
	if err != nil {
		return c.fail(err)
	}
	original, marked := imageio.Luma(origImg), imageio.Luma(markedImg)

	q, err := report.Compare(original, marked)
	if err != nil {
		return c.fail(err)
	}
	bits, err := watermark.NewExtractor(params).ExtractBits(marked, original)
	if err != nil {
		return c.fail(err)
	}
	margins := report.Margins(marked, bits.Blocks)
	s := report.Summarize(margins)

	fmt.Fprintf(c.stdout, "MSE:          %.4f\n", q.MSE)
	fmt.Fprintf(c.stdout, "PSNR:         %.2f dB\n", q.PSNR)
	fmt.Fprintf(c.stdout, "Changed:      %d samples, max delta %d\n", q.Changed, q.MaxDelta)
	fmt.Fprintf(c.stdout, "Regions:      %d\n", len(bits.Regions))
	fmt.Fprintf(c.stdout, "Blocks:       %d (%d weak, min margin %.3f, mean %.3f)\n", s.Blocks, s.Weak, s.Min, s.Mean)

	if *chartPath != "" {
		edges, err := params.Detector().Detect(original)
		if err != nil {
			return c.fail(err)
		}
		candidates, err := params.Selector().Candidates(original, edges)
		if err != nil {
			return c.fail(err)
		}
		f, err := os.Create(*chartPath)
		if err != nil {
			return c.fail(err)
		}
		err = report.RegionChart(f, candidates, bits.Regions, original.Width, original.Height)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return c.fail(err)
		}
		fmt.Fprintf(c.stdout, "Chart:        %s\n", *chartPath)
	}
	if *plotPath != "" {
		if err := report.MarginPlot(*plotPath, margins); err != nil {
			return c.fail(err)
		}
		fmt.Fprintf(c.stdout, "Plot:         %s\n", *plotPath)
	}
	return exitOK
}

func errorStrings(errs []error) []string {
	out := make([]string, len(errs))
	for i, err := range errs {
		out[i] = err.Error()
	}
	return out
}
