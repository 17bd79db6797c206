package imaging

import (
	"fmt"
	"sort"
	"strings"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ironsheep/image-filter-server/internal/raster"
)

// RGBColor represents an RGB color with 8-bit components.
type RGBColor struct {
	R uint8 `json:"r"` // Red component (0-255)
	G uint8 `json:"g"` // Green component (0-255)
	B uint8 `json:"b"` // Blue component (0-255)
}

// HSLColor represents a color in HSL (Hue, Saturation, Lightness) color space.
type HSLColor struct {
	H int `json:"h"` // Hue: 0-360 degrees (0=red, 120=green, 240=blue)
	S int `json:"s"` // Saturation: 0-100 percent (0=gray, 100=vivid)
	L int `json:"l"` // Lightness: 0-100 percent (0=black, 50=normal, 100=white)
}

// ColorResult contains a color value in several representations.
type ColorResult struct {
	Hex string   `json:"hex"` // Hex format "#RRGGBB"
	RGB RGBColor `json:"rgb"` // RGB components
	HSL HSLColor `json:"hsl"` // HSL representation
}

// SampleColor returns the color at column x, row y.
//
// Single-channel buffers report the gray level in all three components.
// Coordinates outside the buffer return an error wrapping
// raster.ErrOutOfRange.
func SampleColor(buf *raster.Buffer, x, y int) (*ColorResult, error) {
	var rgb [3]uint8
	for c := range rgb {
		ch := c
		if buf.Channels() == raster.Gray {
			ch = 0
		}
		v, err := buf.At(y, x, ch)
		if err != nil {
			return nil, fmt.Errorf("failed to sample (%d,%d): %w", x, y, err)
		}
		rgb[c] = v
	}
	res := newColorResult(rgb[0], rgb[1], rgb[2])
	return &res, nil
}

// Region represents a rectangular region within an image.
//
// (X1, Y1) is the top-left corner (inclusive) and (X2, Y2) the
// bottom-right corner (exclusive).
type Region struct {
	X1 int
	Y1 int
	X2 int
	Y2 int
}

// ColorFrequency represents a color and its occurrence frequency.
type ColorFrequency struct {
	Hex        string   `json:"hex"`        // Hex color "#RRGGBB" (quantized)
	Percentage float64  `json:"percentage"` // Percentage of pixels with this color (0-100)
	RGB        RGBColor `json:"rgb"`        // RGB components (quantized)
}

// StatsResult summarizes the colors of an image or region.
type StatsResult struct {
	Width    int              `json:"width"`
	Height   int              `json:"height"`
	Channels int              `json:"channels"`
	Pixels   int              `json:"pixels"`
	Mean     ColorResult      `json:"mean"`
	Dominant []ColorFrequency `json:"dominant"`
}

// Stats computes the mean color and the count most common colors of buf,
// or of region if it is non-nil.
//
// To group similar colors, each component is quantized to a multiple of
// 16 before counting, so #F0F0F0 and #FAFAFA fall in the same bucket.
// Dominant colors are sorted by frequency, most common first; ties are
// broken by hex value so results are stable.
func Stats(buf *raster.Buffer, count int, region *Region) (*StatsResult, error) {
	r := Region{X1: 0, Y1: 0, X2: buf.Width(), Y2: buf.Height()}
	if region != nil {
		r = *region
	}
	if r.X1 < 0 || r.Y1 < 0 || r.X2 > buf.Width() || r.Y2 > buf.Height() || r.X1 >= r.X2 || r.Y1 >= r.Y2 {
		return nil, fmt.Errorf("region (%d,%d)-(%d,%d) invalid for %dx%d image: %w",
			r.X1, r.Y1, r.X2, r.Y2, buf.Width(), buf.Height(), raster.ErrOutOfRange)
	}

	pix := buf.Pix()
	channels := buf.Channels()
	counts := make(map[uint32]int)
	var sum [3]float64
	total := 0

	for y := r.Y1; y < r.Y2; y++ {
		for x := r.X1; x < r.X2; x++ {
			i := (y*buf.Width() + x) * channels
			var rgb [3]uint8
			for c := range rgb {
				if channels == raster.Gray {
					rgb[c] = pix[i]
				} else {
					rgb[c] = pix[i+c]
				}
				sum[c] += float64(rgb[c])
			}
			key := uint32(rgb[0]/16*16)<<16 | uint32(rgb[1]/16*16)<<8 | uint32(rgb[2]/16*16)
			counts[key]++
			total++
		}
	}

	colors := make([]ColorFrequency, 0, len(counts))
	for key, cnt := range counts {
		c := newColorResult(uint8(key>>16), uint8(key>>8), uint8(key))
		colors = append(colors, ColorFrequency{
			Hex:        c.Hex,
			Percentage: float64(cnt) / float64(total) * 100,
			RGB:        c.RGB,
		})
	}
	sort.Slice(colors, func(i, j int) bool {
		if colors[i].Percentage != colors[j].Percentage {
			return colors[i].Percentage > colors[j].Percentage
		}
		return colors[i].Hex < colors[j].Hex
	})
	if count > 0 && len(colors) > count {
		colors = colors[:count]
	}

	n := float64(total)
	return &StatsResult{
		Width:    buf.Width(),
		Height:   buf.Height(),
		Channels: channels,
		Pixels:   total,
		Mean: newColorResult(
			uint8(sum[0]/n+0.5),
			uint8(sum[1]/n+0.5),
			uint8(sum[2]/n+0.5),
		),
		Dominant: colors,
	}, nil
}

func newColorResult(r, g, b uint8) ColorResult {
	c := colorful.Color{R: float64(r) / 255, G: float64(g) / 255, B: float64(b) / 255}
	h, s, l := c.Hsl()
	return ColorResult{
		Hex: strings.ToUpper(c.Hex()),
		RGB: RGBColor{R: r, G: g, B: b},
		HSL: HSLColor{H: int(h), S: int(s * 100), L: int(l * 100)},
	}
}
