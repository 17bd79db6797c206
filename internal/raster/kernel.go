package raster

import (
	"math"
	"sync"
)

// DefaultKernelSize is the blur kernel side used when none is given.
const DefaultKernelSize = 3

// GaussianKernel returns a size x size Gaussian weight matrix.
//
// Sigma is size/6, so the kernel spans roughly three standard deviations on
// each side of its center. Weights are exp(-(x²+y²)/(2σ²)) with (x, y)
// measured from the center cell, normalized so they sum to 1.
//
// Callers pass odd sizes so the kernel has a center cell. Sizes below 1
// return nil.
func GaussianKernel(size int) [][]float64 {
	if size < 1 {
		return nil
	}
	flat := gaussianWeights(size)
	kernel := make([][]float64, size)
	for y := range kernel {
		kernel[y] = flat[y*size : (y+1)*size : (y+1)*size]
	}
	return kernel
}

func gaussianWeights(size int) []float64 {
	if size < 1 {
		return nil
	}
	weights := make([]float64, size*size)
	sigma := float64(size) / 6
	half := size / 2
	var sum float64
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x-half), float64(y-half)
			w := math.Exp(-(dx*dx + dy*dy) / (2 * sigma * sigma))
			weights[y*size+x] = w
			sum += w
		}
	}
	for i := range weights {
		weights[i] /= sum
	}
	return weights
}

// kernelCache holds flat Gaussian weights by kernel size. The weights are
// a pure function of size and are never written after insertion.
var kernelCache = struct {
	sync.Mutex
	bySize map[int][]float64
}{bySize: make(map[int][]float64)}

func cachedGaussianWeights(size int) []float64 {
	kernelCache.Lock()
	defer kernelCache.Unlock()
	if w, ok := kernelCache.bySize[size]; ok {
		return w
	}
	w := gaussianWeights(size)
	kernelCache.bySize[size] = w
	return w
}
