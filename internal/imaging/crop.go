package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"sort"
	"strings"

	"github.com/anthonynsimon/bild/imgio"
	"github.com/disintegration/imaging"

	"github.com/ironsheep/image-filter-server/internal/raster"
)

// ErrInvalidRegion is returned for empty, inverted or unknown crop regions.
var ErrInvalidRegion = errors.New("invalid crop region")

// CropResult contains the cropped image data
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// Crop extracts a rectangular region from a buffer and returns it as a
// base64 PNG, optionally scaled with Lanczos resampling.
func Crop(buf *raster.Buffer, x1, y1, x2, y2 int, scale float64) (*CropResult, error) {
	w, h := buf.Width(), buf.Height()

	if x1 < 0 || y1 < 0 || x2 > w || y2 > h {
		return nil, fmt.Errorf("crop region (%d,%d)-(%d,%d) outside image bounds (0,0)-(%d,%d): %w",
			x1, y1, x2, y2, w, h, raster.ErrOutOfRange)
	}
	if x1 >= x2 || y1 >= y2 {
		return nil, fmt.Errorf("%w: x1 must be < x2, y1 must be < y2", ErrInvalidRegion)
	}

	var cropped image.Image = imaging.Crop(ToImage(buf), image.Rect(x1, y1, x2, y2))

	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(cropped.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}

	var out bytes.Buffer
	if err := imgio.PNGEncoder()(&out, cropped); err != nil {
		return nil, fmt.Errorf("failed to encode cropped image: %w", err)
	}

	return &CropResult{
		Width:       cropped.Bounds().Dx(),
		Height:      cropped.Bounds().Dy(),
		ImageBase64: base64.StdEncoding.EncodeToString(out.Bytes()),
		MimeType:    "image/png",
	}, nil
}

// edge is a position along one image axis, resolved against its length.
type edge int

const (
	edgeStart edge = iota
	edgeQuarter
	edgeMid
	edgeThreeQuarter
	edgeEnd
)

func (e edge) at(n int) int {
	switch e {
	case edgeQuarter:
		return n / 4
	case edgeMid:
		return n / 2
	case edgeThreeQuarter:
		return n - n/4
	case edgeEnd:
		return n
	}
	return 0
}

// namedRegions maps region names to {x1, y1, x2, y2} edges.
var namedRegions = map[string][4]edge{
	"top-left":     {edgeStart, edgeStart, edgeMid, edgeMid},
	"top-right":    {edgeMid, edgeStart, edgeEnd, edgeMid},
	"bottom-left":  {edgeStart, edgeMid, edgeMid, edgeEnd},
	"bottom-right": {edgeMid, edgeMid, edgeEnd, edgeEnd},
	"top-half":     {edgeStart, edgeStart, edgeEnd, edgeMid},
	"bottom-half":  {edgeStart, edgeMid, edgeEnd, edgeEnd},
	"left-half":    {edgeStart, edgeStart, edgeMid, edgeEnd},
	"right-half":   {edgeMid, edgeStart, edgeEnd, edgeEnd},
	"center":       {edgeQuarter, edgeQuarter, edgeThreeQuarter, edgeThreeQuarter},
}

// RegionNames lists the names CropQuadrant accepts, sorted.
func RegionNames() []string {
	names := make([]string, 0, len(namedRegions))
	for name := range namedRegions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// CropQuadrant crops one of the named regions: quadrants ("top-left"),
// halves ("left-half") or the middle half of both axes ("center").
func CropQuadrant(buf *raster.Buffer, region string, scale float64) (*CropResult, error) {
	edges, ok := namedRegions[region]
	if !ok {
		return nil, fmt.Errorf("%w: unknown region %q (want one of %s)",
			ErrInvalidRegion, region, strings.Join(RegionNames(), ", "))
	}
	w, h := buf.Width(), buf.Height()
	return Crop(buf, edges[0].at(w), edges[1].at(h), edges[2].at(w), edges[3].at(h), scale)
}
