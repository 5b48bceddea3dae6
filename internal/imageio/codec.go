// Package imageio decodes and encodes the cubemap tile formats used by the tours.
package imageio

import (
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/MeKo-Tech/tourtiles/internal/fsutil"
	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	xwebp "golang.org/x/image/webp"
)

// DefaultQuality is the JPEG/WebP quality used when none is configured.
const DefaultQuality = 95

// ErrUnsupportedFormat is returned for file extensions without a codec.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// Format identifies an image encoding.
type Format int

const (
	FormatUnknown Format = iota
	FormatJPEG
	FormatPNG
	FormatWebP
)

func (f Format) String() string {
	switch f {
	case FormatJPEG:
		return "jpeg"
	case FormatPNG:
		return "png"
	case FormatWebP:
		return "webp"
	default:
		return "unknown"
	}
}

// FormatFromPath picks the format from the file extension (case-insensitive).
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return FormatJPEG, nil
	case ".png":
		return FormatPNG, nil
	case ".webp":
		return FormatWebP, nil
	default:
		return FormatUnknown, fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// EncodeOptions controls lossy encoders.
type EncodeOptions struct {
	// Quality is 1..100; zero means DefaultQuality.
	Quality int
	// Lossless switches WebP output to lossless mode. JPEG ignores it.
	Lossless bool
}

func (o EncodeOptions) quality() int {
	if o.Quality <= 0 || o.Quality > 100 {
		return DefaultQuality
	}
	return o.Quality
}

// Decode reads one image in the given format.
func Decode(r io.Reader, f Format) (image.Image, error) {
	switch f {
	case FormatWebP:
		return xwebp.Decode(r)
	case FormatJPEG, FormatPNG:
		return imaging.Decode(r)
	default:
		return nil, ErrUnsupportedFormat
	}
}

// Read opens and decodes the image at path.
func Read(path string) (image.Image, Format, error) {
	f, err := FormatFromPath(path)
	if err != nil {
		return nil, FormatUnknown, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, f, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	img, err := Decode(file, f)
	if err != nil {
		return nil, f, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return img, f, nil
}

// Encode writes img in the given format.
func Encode(w io.Writer, img image.Image, f Format, opts EncodeOptions) error {
	switch f {
	case FormatJPEG:
		return imaging.Encode(w, img, imaging.JPEG, imaging.JPEGQuality(opts.quality()))
	case FormatPNG:
		return imaging.Encode(w, img, imaging.PNG)
	case FormatWebP:
		return webp.Encode(w, img, &webp.Options{
			Lossless: opts.Lossless,
			Quality:  float32(opts.quality()),
		})
	default:
		return ErrUnsupportedFormat
	}
}

// WriteFile encodes img in the format implied by path and replaces the file atomically.
func WriteFile(path string, img image.Image, opts EncodeOptions) error {
	f, err := FormatFromPath(path)
	if err != nil {
		return err
	}

	return fsutil.WriteAtomic(path, func(w io.Writer) error {
		if err := Encode(w, img, f, opts); err != nil {
			return fmt.Errorf("failed to encode %s as %s: %w", path, f, err)
		}
		return nil
	})
}
