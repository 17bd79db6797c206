package raster

import "math"

// DefaultVignetteStrength is the vignette strength used when none is given.
const DefaultVignetteStrength = 0.5

var (
	sobelX = [3][3]float64{
		{-1, 0, 1},
		{-2, 0, 2},
		{-1, 0, 1},
	}
	sobelY = [3][3]float64{
		{-1, -2, -1},
		{0, 0, 0},
		{1, 2, 1},
	}
)

// GaussianBlur smooths the buffer with a kernelSize x kernelSize Gaussian
// kernel (see GaussianKernel).
//
// Neighbors outside the image are replaced by the nearest edge pixel. Even
// sizes are rounded up to the next odd size; sizes below 2 leave the
// buffer unchanged.
func (b *Buffer) GaussianBlur(kernelSize int) {
	if kernelSize < 2 {
		return
	}
	if kernelSize%2 == 0 {
		kernelSize++
	}
	weights := cachedGaussianWeights(kernelSize)
	half := kernelSize / 2

	out := make([]uint8, len(b.pix))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			for c := 0; c < b.channels; c++ {
				var sum, weightSum float64
				for ky := -half; ky <= half; ky++ {
					ny := clampInt(y+ky, 0, b.height-1)
					for kx := -half; kx <= half; kx++ {
						nx := clampInt(x+kx, 0, b.width-1)
						w := weights[(ky+half)*kernelSize+kx+half]
						sum += float64(b.pix[b.offset(ny, nx, c)]) * w
						weightSum += w
					}
				}
				out[b.offset(y, x, c)] = toSample(sum / weightSum)
			}
		}
	}
	b.pix = out
}

// SobelEdges replaces every interior sample with the Sobel gradient
// magnitude of its channel. The one-pixel border keeps its original
// values, and uniform regions become 0.
func (b *Buffer) SobelEdges() {
	out := append([]uint8(nil), b.pix...)
	for y := 1; y < b.height-1; y++ {
		for x := 1; x < b.width-1; x++ {
			for c := 0; c < b.channels; c++ {
				var gx, gy float64
				for i := -1; i <= 1; i++ {
					for j := -1; j <= 1; j++ {
						v := float64(b.pix[b.offset(y+i, x+j, c)])
						gx += v * sobelX[i+1][j+1]
						gy += v * sobelY[i+1][j+1]
					}
				}
				out[b.offset(y, x, c)] = toSample(math.Sqrt(gx*gx + gy*gy))
			}
		}
	}
	b.pix = out
}

// Vignette darkens pixels in proportion to their distance from the image
// center.
//
// The distance is normalized by the center-to-corner distance and each
// pixel is scaled by max(0, 1 - distance*strength). Strength 0 leaves the
// buffer unchanged; strength 1 or more can take the corners to black.
// Negative strengths are treated as 0.
func (b *Buffer) Vignette(strength float64) {
	if !(strength > 0) {
		return
	}
	cx := float64(b.width) / 2
	cy := float64(b.height) / 2
	maxDist := math.Hypot(cx, cy)

	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			dist := math.Hypot(float64(x)-cx, float64(y)-cy)
			m := math.Max(0, 1-dist/maxDist*strength)
			i := b.offset(y, x, 0)
			for c := 0; c < b.channels; c++ {
				b.pix[i+c] = toSample(float64(b.pix[i+c]) * m)
			}
		}
	}
}
