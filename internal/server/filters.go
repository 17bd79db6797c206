package server

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/ironsheep/image-filter-server/internal/raster"
)

// errBadParam marks request parameters that fail to parse or fall outside
// a filter's accepted range.
var errBadParam = errors.New("invalid parameter")

// FilterParam describes the single numeric parameter a filter accepts.
type FilterParam struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"` // "integer" or "number"
	Description string   `json:"description"`
	Default     *float64 `json:"default,omitempty"`
	Minimum     *float64 `json:"minimum,omitempty"`
	Maximum     *float64 `json:"maximum,omitempty"`
}

// Filter is one entry of the operation catalogue.
type Filter struct {
	Name        string       `json:"name"`
	Description string       `json:"description"`
	LegacyRoute string       `json:"legacy_route"`
	Param       *FilterParam `json:"param,omitempty"`

	// legacyMessage is the plain-text reply of the legacy route.
	legacyMessage string
	apply         func(b *raster.Buffer, v float64)
}

func ptr(v float64) *float64 { return &v }

// GetFilterDefinitions returns the operation catalogue.
func GetFilterDefinitions() []Filter {
	return filters
}

var filters = []Filter{
	// Tone
	{
		Name:        "brightness",
		Description: "Add a constant to every sample. Negative values darken.",
		LegacyRoute: "brightness",
		Param: &FilterParam{
			Name:        "delta",
			Type:        "integer",
			Description: "Amount added to each sample; results are clamped to 0-255",
		},
		legacyMessage: "Brightness adjusted and image saved.",
		apply:         func(b *raster.Buffer, v float64) { b.AdjustBrightness(int(v)) },
	},
	{
		Name:        "contrast",
		Description: "Scale each sample's distance from mid-gray (128).",
		LegacyRoute: "contrast",
		Param: &FilterParam{
			Name:        "factor",
			Type:        "number",
			Description: "1 is unchanged, below 1 flattens, above 1 expands",
		},
		legacyMessage: "Contrast adjusted and image saved.",
		apply:         func(b *raster.Buffer, v float64) { b.AdjustContrast(v) },
	},
	{
		Name:        "saturation",
		Description: "Move each color toward or away from its luma. No effect on grayscale images.",
		LegacyRoute: "saturation",
		Param: &FilterParam{
			Name:        "factor",
			Type:        "number",
			Description: "0 removes color, 1 is unchanged, above 1 intensifies",
		},
		legacyMessage: "Saturation adjusted and image saved.",
		apply:         func(b *raster.Buffer, v float64) { b.AdjustSaturation(v) },
	},
	{
		Name:          "invert",
		Description:   "Replace every sample v with 255-v.",
		LegacyRoute:   "invert",
		legacyMessage: "Image inverted and saved.",
		apply:         func(b *raster.Buffer, _ float64) { b.Invert() },
	},
	{
		Name:          "grayscale",
		Description:   "Convert an RGB image to a single luma channel.",
		LegacyRoute:   "grayscale",
		legacyMessage: "Image converted to grayscale and saved.",
		apply:         func(b *raster.Buffer, _ float64) { b.Grayscale() },
	},
	{
		Name:          "sepia",
		Description:   "Apply a sepia tone. No effect on grayscale images.",
		LegacyRoute:   "sepia",
		legacyMessage: "Image converted to sepia and saved.",
		apply:         func(b *raster.Buffer, _ float64) { b.Sepia() },
	},
	{
		Name:        "quantize",
		Description: "Reduce the number of levels per channel (lossy compression).",
		LegacyRoute: "compress",
		Param: &FilterParam{
			Name:        "quality",
			Type:        "number",
			Description: "0-1; 1 keeps all levels, 0 maps everything to black. Clamped",
			Default:     ptr(0.5),
		},
		legacyMessage: "Image compressed and saved.",
		apply:         func(b *raster.Buffer, v float64) { b.Quantize(v) },
	},

	// Spatial
	{
		Name:        "blur",
		Description: "Gaussian blur with edge-replicated borders.",
		LegacyRoute: "gaussianblur",
		Param: &FilterParam{
			Name:        "kernel_size",
			Type:        "integer",
			Description: "Kernel side length; even sizes are rounded up to the next odd size",
			Default:     ptr(raster.DefaultKernelSize),
			Minimum:     ptr(1),
			Maximum:     ptr(99),
		},
		legacyMessage: "GaussianBlur applied and image saved.",
		apply:         func(b *raster.Buffer, v float64) { b.GaussianBlur(int(v)) },
	},
	{
		Name:        "vignette",
		Description: "Darken pixels in proportion to their distance from the center.",
		LegacyRoute: "vignetteffect",
		Param: &FilterParam{
			Name:        "strength",
			Type:        "number",
			Description: "0 is unchanged, 1 takes the corners to black; negative values act as 0",
			Default:     ptr(raster.DefaultVignetteStrength),
		},
		legacyMessage: "VignetteEffect applied and image saved.",
		apply:         func(b *raster.Buffer, v float64) { b.Vignette(v) },
	},
	{
		Name:          "sobel",
		Description:   "Sobel edge magnitude per channel. The one-pixel border is left as is.",
		LegacyRoute:   "detectEdge",
		legacyMessage: "Edge Detection Complete",
		apply:         func(b *raster.Buffer, _ float64) { b.SobelEdges() },
	},

	// Geometric
	{
		Name:          "reflect-horizontal",
		Description:   "Mirror the image left to right.",
		LegacyRoute:   "reflectHorizontally",
		legacyMessage: "Image Reflected Horizontally and saved.",
		apply:         func(b *raster.Buffer, _ float64) { b.ReflectHorizontal() },
	},
	{
		Name:          "reflect-vertical",
		Description:   "Mirror the image top to bottom.",
		LegacyRoute:   "reflectVertically",
		legacyMessage: "Image Reflected Vertically and saved.",
		apply:         func(b *raster.Buffer, _ float64) { b.ReflectVertical() },
	},
}

// lookupFilter finds a catalogue entry by name.
func lookupFilter(name string) (*Filter, bool) {
	for i := range filters {
		if filters[i].Name == name {
			return &filters[i], true
		}
	}
	return nil, false
}

// parseValue converts the raw request value for f. An empty raw value
// selects the parameter's default.
func (f *Filter) parseValue(raw string) (float64, error) {
	p := f.Param
	if p == nil {
		if raw != "" {
			return 0, fmt.Errorf("%w: %s takes no parameter", errBadParam, f.Name)
		}
		return 0, nil
	}

	if raw == "" {
		if p.Default == nil {
			return 0, fmt.Errorf("%w: %s requires %s", errBadParam, f.Name, p.Name)
		}
		return *p.Default, nil
	}

	var v float64
	switch p.Type {
	case "integer":
		n, err := strconv.Atoi(raw)
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", errBadParam, p.Name, raw)
		}
		v = float64(n)
	default:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, fmt.Errorf("%w: %s must be a finite number, got %q", errBadParam, p.Name, raw)
		}
		v = n
	}

	if p.Minimum != nil && v < *p.Minimum {
		return 0, fmt.Errorf("%w: %s must be at least %v", errBadParam, p.Name, *p.Minimum)
	}
	if p.Maximum != nil && v > *p.Maximum {
		return 0, fmt.Errorf("%w: %s must be at most %v", errBadParam, p.Name, *p.Maximum)
	}
	return v, nil
}
