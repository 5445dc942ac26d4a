package watermark

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lumamark/internal/config"
	"github.com/banshee-data/lumamark/internal/frame"
	"github.com/banshee-data/lumamark/internal/monitoring"
	"github.com/banshee-data/lumamark/internal/plane"
	"github.com/banshee-data/lumamark/internal/testutil"
)

func init() {
	monitoring.SetLogger(nil)
}

func hasWarning(ws []error, target error) bool {
	for _, w := range ws {
		if errors.Is(w, target) {
			return true
		}
	}
	return false
}

func TestRoundTripWithReference(t *testing.T) {
	planes := []struct {
		name string
		p    *plane.Plane
	}{
		{"noise 96x96", testutil.Noise(96, 96, 70, 185, 1)},
		{"noise 128x80", testutil.Noise(128, 80, 70, 185, 2)},
		{"scene 200x150", testutil.Scene(200, 150, 70, 185, 3)},
		{"checkerboard 120x120", testutil.Checkerboard(120, 120, 7, 80, 170)},
	}
	texts := []string{"a", "hello", "lumamark"}

	for _, tc := range planes {
		for _, text := range texts {
			t.Run(fmt.Sprintf("%s/%s", tc.name, text), func(t *testing.T) {
				params := DefaultParams()
				original := tc.p.Clone()

				res, err := NewEmbedder(params).Embed(tc.p, text)
				require.NoError(t, err)
				assert.Equal(t, original.Pix, tc.p.Pix, "input plane must not change")
				assert.NotEqual(t, tc.p.Pix, res.Marked.Pix)
				assert.Len(t, res.Regions, 4)
				assert.Len(t, res.Blocks, 4*params.BitLen())
				assert.Empty(t, res.Warnings)

				got, err := NewExtractor(params).ExtractWithReference(res.Marked, tc.p)
				require.NoError(t, err)
				assert.True(t, got.Detected)
				assert.True(t, got.Corrected)
				assert.Zero(t, got.CorrectedSymbols)
				assert.Zero(t, got.MarkerErrors)
				assert.Equal(t, text, got.Text)
				assert.Equal(t, res.Bits, got.Bits)
			})
		}
	}
}

func TestBlindRoundTripDefaults(t *testing.T) {
	tests := []struct {
		name string
		w, h int
	}{
		{"scene 200x150", 200, 150},
		{"scene 320x240", 320, 240},
		{"scene 640x480", 640, 480},
	}
	params := DefaultParams()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := testutil.Scene(tt.w, tt.h, 70, 185, 3)
			res, err := NewEmbedder(params).Embed(original, "hello")
			require.NoError(t, err)

			got, err := NewExtractor(params).Extract(res.Marked)
			require.NoError(t, err)
			assert.True(t, got.Detected)
			assert.True(t, got.Corrected)
			assert.Equal(t, "hello", got.Text)
			assert.Equal(t, res.Bits, got.Bits)
		})
	}
}

func TestBlindRoundTripSingleWindow(t *testing.T) {
	params := DefaultParams()
	params.WindowScale = 1
	params.Replicas = 1

	original := testutil.Ramp(64, 48, 40, 1, 1, 1)
	res, err := NewEmbedder(params).Embed(original, "blind")
	require.NoError(t, err)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, original.Bounds(), res.Regions[0].Bounds)

	got, err := NewExtractor(params).Extract(res.Marked)
	require.NoError(t, err)
	assert.True(t, got.Detected)
	assert.Equal(t, "blind", got.Text)
	assert.Equal(t, res.Bits, got.Bits)
}

func TestBlindRoundTripPerRegion(t *testing.T) {
	params := DefaultParams()
	params.Layout = LayoutPerRegion
	params.WindowScale = 0.053 // 8px windows on a 152px plane
	params.StepScale = 1

	original := testutil.Ramp(152, 152, 40, 1, 1, 2)
	res, err := NewEmbedder(params).Embed(original, "tiles")
	require.NoError(t, err)
	require.Len(t, res.Regions, 361)
	assert.Empty(t, res.Warnings)
	for i := 1; i < len(res.Regions); i++ {
		a, b := res.Regions[i-1].Bounds.Min, res.Regions[i].Bounds.Min
		assert.True(t, a.Y < b.Y || (a.Y == b.Y && a.X < b.X), "regions %d and %d out of raster order", i-1, i)
	}

	x := NewExtractor(params)
	got, err := x.Extract(res.Marked)
	require.NoError(t, err)
	assert.True(t, got.Detected)
	assert.Equal(t, "tiles", got.Text)

	ref, err := x.ExtractWithReference(res.Marked, original)
	require.NoError(t, err)
	assert.Equal(t, "tiles", ref.Text)
}

func TestExtractUnmarkedPlane(t *testing.T) {
	params := DefaultParams()
	// Every block of a flat 128 plane has mean/step = 128/1.5228, floor 84, an even
	// value, so the marker window is all zeros.
	got, err := NewExtractor(params).Extract(testutil.Flat(100, 100, 128))
	require.NoError(t, err)
	assert.False(t, got.Detected)
	assert.Empty(t, got.Text)
	assert.Equal(t, params.MarkerLength, got.MarkerErrors)
	assert.Len(t, got.Bits, params.BitLen())
}

func TestDecodeUncorrectable(t *testing.T) {
	params := DefaultParams()
	codec, err := params.Codec()
	require.NoError(t, err)
	bits, err := codec.Encode("payload")
	require.NoError(t, err)

	wire := frame.BitsToBytes(bits[:320])
	for i := range wire {
		wire[i] ^= 0x33
	}
	copy(bits, frame.BytesToBits(wire))

	got, err := NewExtractor(params).Decode(bits)
	require.NoError(t, err)
	assert.True(t, got.Detected)
	assert.False(t, got.Corrected)
	assert.Equal(t, string(wire[:8]), got.Text)
	assert.True(t, hasWarning(got.Warnings, frame.ErrUncorrectable))
}

func TestEmbedInvalidInput(t *testing.T) {
	params := DefaultParams()
	p := testutil.Noise(96, 96, 70, 185, 4)

	tests := []struct {
		name   string
		plane  *plane.Plane
		text   string
		params func(*Params)
	}{
		{"empty plane", &plane.Plane{}, "x", nil},
		{"nil plane", nil, "x", nil},
		{"empty text", p, "", nil},
		{"text too long", p, "123456789", nil},
		{"unknown layout", p, "x", func(p *Params) { p.Layout = "spiral" }},
		{"zero replicas", p, "x", func(p *Params) { p.Replicas = 0 }},
		{"bad parity", p, "x", func(p *Params) { p.ParityBytes = 300 }},
		{"bad window", p, "x", func(p *Params) { p.WindowScale = 0 }},
		{"bad sigma", p, "x", func(p *Params) { p.GaussianSigma = -1 }},
		{"bad denoise", p, "x", func(p *Params) { p.DenoiseMode = "none" }},
		{"region too small", testutil.Noise(40, 40, 70, 185, 5), "x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pp := params
			if tt.params != nil {
				tt.params(&pp)
			}
			_, err := NewEmbedder(pp).Embed(tt.plane, tt.text)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestExtractInvalidInput(t *testing.T) {
	x := NewExtractor(DefaultParams())

	_, err := x.Extract(&plane.Plane{})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = x.ExtractWithReference(testutil.Flat(64, 64, 1), nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = x.ExtractWithReference(testutil.Flat(64, 64, 1), testutil.Flat(64, 60, 1))
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestInsufficientReplicas(t *testing.T) {
	params := DefaultParams()
	params.Replicas = 40
	original := testutil.Noise(100, 100, 70, 185, 6)

	res, err := NewEmbedder(params).Embed(original, "few")
	require.NoError(t, err)
	assert.Less(t, len(res.Regions), 40)
	assert.True(t, hasWarning(res.Warnings, ErrInsufficientRegions))

	got, err := NewExtractor(params).ExtractWithReference(res.Marked, original)
	require.NoError(t, err)
	assert.Equal(t, "few", got.Text)
	assert.True(t, hasWarning(got.Warnings, ErrInsufficientRegions))
}

func TestInsufficientRegionsPerRegion(t *testing.T) {
	params := DefaultParams()
	params.Layout = LayoutPerRegion
	original := testutil.Noise(40, 40, 70, 185, 7)

	res, err := NewEmbedder(params).Embed(original, "short")
	require.NoError(t, err)
	assert.True(t, hasWarning(res.Warnings, ErrInsufficientRegions))
	assert.Len(t, res.Bits, len(res.Regions))
	assert.Less(t, len(res.Bits), params.BitLen())

	bits, err := NewExtractor(params).ExtractBits(res.Marked, original)
	require.NoError(t, err)
	require.Len(t, bits.Bits, params.BitLen())
	assert.Equal(t, res.Bits, bits.Bits[:len(res.Bits)])
	for _, b := range bits.Bits[len(res.Bits):] {
		assert.Zero(t, b)
	}
}

func TestParamsFromTuning(t *testing.T) {
	cfg := config.MustLoadDefaultConfig()
	assert.Equal(t, DefaultParams(), ParamsFromTuning(cfg))

	layout := config.LayoutPerRegion
	th := 3
	p := ParamsFromTuning(&config.TuningConfig{Layout: &layout, EdgeBlockThreshold: &th})
	assert.Equal(t, LayoutPerRegion, p.Layout)
	assert.Equal(t, 3, p.EdgeThreshold)
	assert.Equal(t, 361, p.BitLen())
	require.NoError(t, p.Validate())
}

func TestVote(t *testing.T) {
	tests := []struct {
		name    string
		streams [][]uint8
		want    []uint8
	}{
		{"none", nil, []uint8{}},
		{"single", [][]uint8{{1, 0, 1}}, []uint8{1, 0, 1}},
		{"tie resolves to one", [][]uint8{{1, 0, 1}, {0, 0, 1}}, []uint8{1, 0, 1}},
		{"majority of three", [][]uint8{{1, 0, 0}, {1, 1, 0}, {0, 1, 0}}, []uint8{1, 1, 0}},
		{"two of four", [][]uint8{{1, 0}, {1, 0}, {0, 1}, {0, 0}}, []uint8{1, 0}},
		{"short stream counts as zero", [][]uint8{{1, 1}, {1}}, []uint8{1, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Vote(tt.streams))
		})
	}
}
