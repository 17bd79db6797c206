package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"
	"strings"

	"github.com/anthonynsimon/bild/clone"
	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"
	"golang.org/x/image/bmp"
	_ "golang.org/x/image/webp" // Register WebP format decoder

	"github.com/ironsheep/image-filter-server/internal/raster"
)

var (
	// ErrInvalidImage is returned when uploaded bytes cannot be decoded
	// into a pixel buffer.
	ErrInvalidImage = errors.New("invalid image")

	// ErrImageTooLarge is returned when a decoded image would exceed the
	// configured pixel limit.
	ErrImageTooLarge = errors.New("image too large")

	// ErrUnsupportedFormat is returned when encoding to a format the
	// server cannot produce.
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// Output formats accepted by Encode.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatBMP  = "bmp"
)

// DefaultJPEGQuality is used when Encode is given a quality outside 1-100.
const DefaultJPEGQuality = 90

// Decode parses an encoded image and converts it to a pixel buffer.
//
// Parameters:
//   - data: The encoded image. JPEG, PNG, GIF, BMP, TIFF and WebP are
//     recognized by content, not by name.
//   - maxPixels: Upper bound on width*height. Zero or negative disables
//     the check.
//
// Returns:
//   - *raster.Buffer: One channel for grayscale sources, three otherwise.
//     Alpha is discarded.
//   - string: The detected source format name (e.g. "jpeg", "png").
//   - error: Wraps ErrInvalidImage if the data cannot be decoded, or
//     ErrImageTooLarge if it exceeds maxPixels.
//
// JPEG EXIF orientation is applied so the buffer matches how the image is
// displayed. Grayscale sources stay single-channel even when the rotation
// produces an RGBA image.
func Decode(data []byte, maxPixels int) (*raster.Buffer, string, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("%w: empty image %dx%d", ErrInvalidImage, cfg.Width, cfg.Height)
	}
	if maxPixels > 0 && cfg.Width*cfg.Height > maxPixels {
		return nil, "", fmt.Errorf("%w: %dx%d exceeds %d pixels",
			ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	buf, err := FromImage(img)
	if err != nil {
		return nil, "", err
	}
	if isGrayModel(cfg.ColorModel) && buf.Channels() == raster.RGB {
		buf.Grayscale()
	}
	return buf, format, nil
}

func isGrayModel(m color.Model) bool {
	return m == color.GrayModel || m == color.Gray16Model
}

// FromImage copies a decoded image into a pixel buffer.
//
// *image.Gray and *image.Gray16 produce single-channel buffers; any other
// image type is normalized to RGBA and its color channels copied.
func FromImage(img image.Image) (*raster.Buffer, error) {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf, err := raster.New(w, h, raster.Gray)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		pix := buf.Pix()
		for y := 0; y < h; y++ {
			copy(pix[y*w:(y+1)*w], src.Pix[y*src.Stride:y*src.Stride+w])
		}
		return buf, nil
	case *image.Gray16:
		buf, err := raster.New(w, h, raster.Gray)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
		}
		pix := buf.Pix()
		for y := 0; y < h; y++ {
			row := src.Pix[y*src.Stride:]
			for x := 0; x < w; x++ {
				pix[y*w+x] = row[x*2] // high byte
			}
		}
		return buf, nil
	}

	rgba := clone.AsRGBA(img)
	buf, err := raster.New(w, h, raster.RGB)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	pix := buf.Pix()
	for y := 0; y < h; y++ {
		row := rgba.Pix[y*rgba.Stride:]
		for x := 0; x < w; x++ {
			copy(pix[(y*w+x)*3:(y*w+x)*3+3], row[x*4:x*4+3])
		}
	}
	return buf, nil
}

// ToImage converts a pixel buffer to a standard library image: *image.Gray
// for single-channel buffers, opaque *image.NRGBA for RGB.
func ToImage(buf *raster.Buffer) image.Image {
	w, h := buf.Width(), buf.Height()
	pix := buf.Pix()

	if buf.Channels() == raster.Gray {
		img := image.NewGray(image.Rect(0, 0, w, h))
		copy(img.Pix, pix)
		return img
	}

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i, j := 0, 0; i < len(pix); i, j = i+3, j+4 {
		img.Pix[j] = pix[i]
		img.Pix[j+1] = pix[i+1]
		img.Pix[j+2] = pix[i+2]
		img.Pix[j+3] = 255
	}
	return img
}

// Encode writes buf to w in the given format.
//
// Parameters:
//   - format: "jpeg" (or "jpg"), "png" or "bmp", case-insensitive.
//   - jpegQuality: 1-100, used only for JPEG. Out-of-range values fall
//     back to DefaultJPEGQuality.
//
// Returns an error wrapping ErrUnsupportedFormat for any other format.
func Encode(w io.Writer, buf *raster.Buffer, format string, jpegQuality int) error {
	format, err := NormalizeFormat(format)
	if err != nil {
		return err
	}
	if jpegQuality < 1 || jpegQuality > 100 {
		jpegQuality = DefaultJPEGQuality
	}

	img := ToImage(buf)
	switch format {
	case FormatJPEG:
		err = imgio.JPEGEncoder(jpegQuality)(w, img)
	case FormatPNG:
		err = imgio.PNGEncoder()(w, img)
	case FormatBMP:
		err = bmp.Encode(w, img)
	}
	if err != nil {
		return fmt.Errorf("failed to encode %s image: %w", format, err)
	}
	return nil
}

// NormalizeFormat maps a format or extension name to one of the Format
// constants.
func NormalizeFormat(name string) (string, error) {
	switch strings.TrimPrefix(strings.ToLower(name), ".") {
	case "jpeg", "jpg":
		return FormatJPEG, nil
	case "png":
		return FormatPNG, nil
	case "bmp":
		return FormatBMP, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// ContentType returns the MIME type for an output format.
func ContentType(format string) string {
	switch format {
	case FormatJPEG:
		return "image/jpeg"
	case FormatPNG:
		return "image/png"
	case FormatBMP:
		return "image/bmp"
	}
	return "application/octet-stream"
}
