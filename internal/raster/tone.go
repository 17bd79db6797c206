package raster

import "math"

// ITU-R BT.601 luma weights.
const (
	lumaR = 0.299
	lumaG = 0.587
	lumaB = 0.114
)

// sepiaMatrix maps (R, G, B) to (R', G', B').
var sepiaMatrix = [3][3]float64{
	{0.393, 0.769, 0.189},
	{0.349, 0.686, 0.168},
	{0.272, 0.534, 0.131},
}

// AdjustBrightness adds delta to every sample. Negative values darken.
func (b *Buffer) AdjustBrightness(delta int) {
	// Any delta beyond ±255 saturates every sample; bounding it keeps the
	// sum from overflowing.
	delta = clampInt(delta, -255, 255)
	for i, v := range b.pix {
		b.pix[i] = uint8(clampInt(int(v)+delta, 0, 255))
	}
}

// AdjustContrast scales every sample's distance from mid-gray (128) by
// factor. A factor of 1 leaves the buffer unchanged, values below 1 pull
// samples toward gray and values above 1 push them apart.
func (b *Buffer) AdjustContrast(factor float64) {
	for i, v := range b.pix {
		b.pix[i] = toSample(128 + (float64(v)-128)*factor)
	}
}

// Invert replaces every sample v with 255-v. Applying it twice restores
// the original buffer.
func (b *Buffer) Invert() {
	for i, v := range b.pix {
		b.pix[i] = 255 - v
	}
}

// AdjustSaturation moves each channel of every pixel toward (factor < 1)
// or away from (factor > 1) the pixel's luma. Factor 0 yields gray RGB.
// Single-channel buffers are left unchanged.
func (b *Buffer) AdjustSaturation(factor float64) {
	if b.channels != RGB {
		return
	}
	for i := 0; i < len(b.pix); i += RGB {
		r, g, bl := float64(b.pix[i]), float64(b.pix[i+1]), float64(b.pix[i+2])
		y := luma(r, g, bl)
		b.pix[i] = toSample(y + (r-y)*factor)
		b.pix[i+1] = toSample(y + (g-y)*factor)
		b.pix[i+2] = toSample(y + (bl-y)*factor)
	}
}

// Grayscale converts an RGB buffer to a single-channel buffer of luma
// values. It is the only operation that changes the channel count.
// Single-channel buffers are left unchanged.
func (b *Buffer) Grayscale() {
	if b.channels != RGB {
		return
	}
	gray := make([]uint8, b.width*b.height)
	for p := range gray {
		i := p * RGB
		gray[p] = toSample(luma(float64(b.pix[i]), float64(b.pix[i+1]), float64(b.pix[i+2])))
	}
	b.pix = gray
	b.channels = Gray
}

// Sepia applies the classic sepia tone matrix to every RGB pixel. Results
// above 255 saturate.
// Single-channel buffers are left unchanged.
func (b *Buffer) Sepia() {
	if b.channels != RGB {
		return
	}
	for i := 0; i < len(b.pix); i += RGB {
		r, g, bl := float64(b.pix[i]), float64(b.pix[i+1]), float64(b.pix[i+2])
		for c, row := range sepiaMatrix {
			b.pix[i+c] = toSample(row[0]*r + row[1]*g + row[2]*bl)
		}
	}
}

// Quantize reduces the number of distinct levels per channel.
//
// quality is clamped to [0,1]. The step size is floor(256*(1-quality)) and
// each sample becomes (v/step)*step using integer division. Quality 1
// (step 0) leaves the buffer unchanged; quality 0 (step 256) maps every
// sample to 0.
func (b *Buffer) Quantize(quality float64) {
	step := QuantizeStep(quality)
	if step <= 1 {
		return
	}
	for i, v := range b.pix {
		b.pix[i] = uint8(int(v) / step * step)
	}
}

// QuantizeStep returns the level step Quantize uses for quality.
func QuantizeStep(quality float64) int {
	if math.IsNaN(quality) {
		quality = 1
	}
	quality = math.Max(0, math.Min(1, quality))
	return int(math.Floor(256 * (1 - quality)))
}

func luma(r, g, b float64) float64 {
	return lumaR*r + lumaG*g + lumaB*b
}
