package main

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lumamark/internal/imageio"
	"github.com/banshee-data/lumamark/internal/plane"
	"github.com/banshee-data/lumamark/internal/testutil"
	"github.com/banshee-data/lumamark/internal/video"
)

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func writeGray(t *testing.T, dir, name string, p *plane.Plane) string {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
	copy(img.Pix, p.Pix)
	path := filepath.Join(dir, name)
	require.NoError(t, imageio.SaveFile(path, img))
	return path
}

func TestVersionAndHelp(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "lumamark version dev")

	code, out, _ = runCLI(t, "help")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, out, "extract-video")

	code, _, errOut := runCLI(t)
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "Usage: lumamark")
}

func TestUnknownCommand(t *testing.T) {
	code, _, errOut := runCLI(t, "stamp")
	assert.Equal(t, exitUsage, code)
	assert.Contains(t, errOut, "Unknown command: stamp")
}

func TestUsageErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"embed missing args", []string{"embed", "in.png", "out.png"}},
		{"embed bad numRegions", []string{"embed", "in.png", "out.png", "x", "many"}},
		{"embed too many args", []string{"embed", "a", "b", "c", "1", "2", "3"}},
		{"extract missing input", []string{"extract"}},
		{"extract bad threshold", []string{"extract", "in.png", "five"}},
		{"analyze without images", []string{"analyze"}},
		{"history without db", []string{"history"}},
		{"serve without db", []string{"serve"}},
		{"embed-video missing args", []string{"embed-video", "in.mp4"}},
		{"extract-video missing args", []string{"extract-video"}},
		{"unknown flag", []string{"embed", "--nope", "a", "b", "c"}},
		{"config with wrong extension", []string{"extract", "--config", filepath.Join(dir, "tuning.yaml"), "in.png"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, _ := runCLI(t, tt.args...)
			assert.NotEqual(t, exitOK, code)
		})
	}
}

func TestEmbedExtractWithRegistry(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "in.png", testutil.Noise(96, 96, 70, 185, 21))
	out := filepath.Join(dir, "out.png")
	registry := filepath.Join(dir, "registry.db")

	code, stdout, stderr := runCLI(t, "embed", "--db", registry, in, out, "hello")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `Embedded "hello"`)
	assert.Contains(t, stdout, "tiled (4 regions, 1444 blocks")
	assert.Contains(t, stdout, "record:")

	code, stdout, stderr = runCLI(t, "extract", "--db", registry, "--reference", in, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `Extracted: "hello"`)

	code, stdout, _ = runCLI(t, "history", "--db", registry)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, "EMBEDDINGS")
	assert.Contains(t, stdout, out)
	assert.Equal(t, 2, strings.Count(stdout, `"hello"`))
}

func TestEmbedExtractDefaults(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "in.png", testutil.Scene(200, 150, 70, 185, 3))
	out := filepath.Join(dir, "out.png")

	code, _, stderr := runCLI(t, "embed", in, out, "hello")
	require.Equal(t, exitOK, code, stderr)

	code, stdout, stderr := runCLI(t, "extract", out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `Extracted: "hello"`)
}

func TestEmbedPositionalOverrides(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "in.png", testutil.Noise(96, 96, 70, 185, 22))
	out := filepath.Join(dir, "out.bmp")

	code, stdout, stderr := runCLI(t, "embed", in, out, "abc", "2", "5")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "tiled (2 regions, 722 blocks")

	code, stdout, _ = runCLI(t, "extract", "--regions", "2", "--reference", in, out, "5")
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `Extracted: "abc"`)
}

func TestEmbedTruncatesLongPayload(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "in.png", testutil.Noise(96, 96, 70, 185, 23))
	out := filepath.Join(dir, "out.png")

	code, stdout, stderr := runCLI(t, "embed", in, out, "hello world!")
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stderr, "truncating to 8")
	assert.Contains(t, stdout, `Embedded "hello wo"`)

	code, stdout, _ = runCLI(t, "extract", "--reference", in, out)
	require.Equal(t, exitOK, code)
	assert.Contains(t, stdout, `Extracted: "hello wo"`)
}

func TestBlindExtractWithConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "tuning.json")
	require.NoError(t, os.WriteFile(cfg, []byte(`{"window_scale": 1.0, "replicas": 1}`), 0o644))
	in := writeGray(t, dir, "in.png", testutil.Ramp(64, 48, 40, 1, 1, 1))
	out := filepath.Join(dir, "out.png")

	code, _, stderr := runCLI(t, "embed", "--config", cfg, in, out, "blind")
	require.Equal(t, exitOK, code, stderr)

	code, stdout, stderr := runCLI(t, "extract", "--config", cfg, out)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, `Extracted: "blind"`)
}

func TestExtractNoWatermark(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "flat.png", testutil.Flat(100, 100, 128))
	code, stdout, _ := runCLI(t, "extract", in)
	assert.Equal(t, exitNotFound, code)
	assert.Contains(t, stdout, "No watermark found")
}

func TestExtractMissingFile(t *testing.T) {
	code, _, stderr := runCLI(t, "extract", filepath.Join(t.TempDir(), "missing.png"))
	assert.Equal(t, exitFailure, code)
	assert.Contains(t, stderr, "error:")
}

func TestAnalyze(t *testing.T) {
	dir := t.TempDir()
	in := writeGray(t, dir, "in.png", testutil.Noise(96, 96, 70, 185, 24))
	out := filepath.Join(dir, "out.png")
	code, _, stderr := runCLI(t, "embed", in, out, "scene")
	require.Equal(t, exitOK, code, stderr)

	chart := filepath.Join(dir, "regions.html")
	plot := filepath.Join(dir, "margins.png")
	code, stdout, stderr := runCLI(t, "analyze", "--original", in, "--marked", out, "--chart", chart, "--plot", plot)
	require.Equal(t, exitOK, code, stderr)
	assert.Contains(t, stdout, "PSNR:")
	assert.Contains(t, stdout, "Regions:      4")
	for _, path := range []string{chart, plot} {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Greater(t, info.Size(), int64(0))
	}
}

func TestVideoDryRun(t *testing.T) {
	code, _, stderr := runCLI(t, "embed-video", "--dry-run", "clip.mp4", "out.mp4", "hi")
	assert.Equal(t, exitOK, code)
	assert.Contains(t, stderr, "[DRY-RUN] Would execute: ffprobe")

	code, _, _ = runCLI(t, "extract-video", "--dry-run", "clip.mp4")
	assert.Equal(t, exitOK, code)
}

// frameRunner explodes every video into the same unmarked frames.
type frameRunner struct {
	frames []*plane.Plane
}

func (f *frameRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	last := args[len(args)-1]
	if !strings.HasSuffix(last, "frame_%06d.png") {
		return "25/1\n", nil
	}
	for i, p := range f.frames {
		img := image.NewGray(image.Rect(0, 0, p.Width, p.Height))
		copy(img.Pix, p.Pix)
		if err := imageio.SaveFile(filepath.Join(filepath.Dir(last), fmt.Sprintf("frame_%06d.png", i+1)), img); err != nil {
			return "", err
		}
	}
	return "", nil
}

func TestExtractVideoNoWatermark(t *testing.T) {
	orig := newRunner
	t.Cleanup(func() { newRunner = orig })
	newRunner = func(bool) video.Runner {
		return &frameRunner{frames: []*plane.Plane{testutil.Flat(100, 100, 128), testutil.Flat(100, 100, 128)}}
	}

	code, stdout, stderr := runCLI(t, "extract-video", "--stride", "1", "clip.mp4")
	assert.Equal(t, exitNotFound, code, stderr)
	assert.Contains(t, stdout, "sampled 2, marker found in 0")
	assert.Contains(t, stdout, "No watermark found")
}
