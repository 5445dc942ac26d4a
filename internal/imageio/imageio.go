// Package imageio moves pictures between files and luma sample planes.
//
// Luma is BT.601 full range, the same transform JPEG uses, so a plane read
// from a JPEG matches the decoder's Y channel exactly.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/banshee-data/lumamark/internal/plane"
)

// Output formats.
const (
	FormatPNG  = "png"
	FormatJPEG = "jpeg"
	FormatBMP  = "bmp"
	FormatTIFF = "tiff"
)

// JPEGQuality is used for every JPEG written by Save.
const JPEGQuality = 95

var (
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrSizeMismatch      = errors.New("plane size does not match image")
)

// Load decodes an image in any registered format and returns it with the
// format name.
func Load(r io.Reader) (image.Image, string, error) {
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}
	return img, format, nil
}

// LoadFile decodes the image at path.
func LoadFile(path string) (image.Image, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()
	img, format, err := Load(f)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", path, err)
	}
	return img, format, nil
}

// FormatFromPath picks the output format from the file extension. Unknown
// or missing extensions select PNG.
func FormatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG
	case ".bmp":
		return FormatBMP
	case ".tif", ".tiff":
		return FormatTIFF
	default:
		return FormatPNG
	}
}

// Save encodes img to w in the given format.
func Save(w io.Writer, img image.Image, format string) error {
	var err error
	switch format {
	case FormatPNG, "":
		err = png.Encode(w, img)
	case FormatJPEG, "jpg":
		err = jpeg.Encode(w, img, &jpeg.Options{Quality: JPEGQuality})
	case FormatBMP:
		err = bmp.Encode(w, img)
	case FormatTIFF, "tif":
		err = tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", format, err)
	}
	return nil
}

// SaveFile writes img to path in the format implied by its extension.
func SaveFile(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := Save(f, img, FormatFromPath(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Luma returns the Y channel of img as a plane anchored at the origin.
func Luma(img image.Image) *plane.Plane {
	b := img.Bounds()
	p := plane.New(b.Dx(), b.Dy())
	switch src := img.(type) {
	case *image.Gray:
		for y := 0; y < b.Dy(); y++ {
			copy(p.Pix[y*p.Width:(y+1)*p.Width], src.Pix[src.PixOffset(b.Min.X, b.Min.Y+y):])
		}
	case *image.YCbCr:
		for y := 0; y < b.Dy(); y++ {
			copy(p.Pix[y*p.Width:(y+1)*p.Width], src.Y[src.YOffset(b.Min.X, b.Min.Y+y):])
		}
	default:
		for y := 0; y < b.Dy(); y++ {
			for x := 0; x < b.Dx(); x++ {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
				yy, _, _ := color.RGBToYCbCr(c.R, c.G, c.B)
				p.Pix[y*p.Width+x] = yy
			}
		}
	}
	return p
}

// ReplaceLuma returns a copy of img whose Y channel is y. Chroma and alpha
// come from img. Gray sources stay gray; everything else becomes NRGBA.
func ReplaceLuma(img image.Image, y *plane.Plane) (image.Image, error) {
	b := img.Bounds()
	if y.Empty() || y.Width != b.Dx() || y.Height != b.Dy() {
		return nil, fmt.Errorf("%w: image is %dx%d", ErrSizeMismatch, b.Dx(), b.Dy())
	}
	if _, ok := img.(*image.Gray); ok {
		out := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
		copy(out.Pix, y.Pix)
		return out, nil
	}
	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	for row := 0; row < b.Dy(); row++ {
		for x := 0; x < b.Dx(); x++ {
			var cb, cr, a uint8
			if src, ok := img.(*image.YCbCr); ok {
				c := src.YCbCrAt(b.Min.X+x, b.Min.Y+row)
				cb, cr, a = c.Cb, c.Cr, 0xff
			} else {
				c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+row)).(color.NRGBA)
				_, cb, cr = color.RGBToYCbCr(c.R, c.G, c.B)
				a = c.A
			}
			r, g, bl := color.YCbCrToRGB(y.At(x, row), cb, cr)
			out.SetNRGBA(x, row, color.NRGBA{R: r, G: g, B: bl, A: a})
		}
	}
	return out, nil
}
