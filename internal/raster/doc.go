// Package raster implements the in-memory pixel buffer and the filter
// operations that rewrite it.
//
// A Buffer holds 8-bit samples for a width x height image with either one
// (grayscale) or three (RGB) channels. Samples are stored in a single
// contiguous slice, row-major, with channels interleaved:
//
//	offset = (row*width + col)*channels + channel
//
// # Operations
//
// Every filter is a method on *Buffer that mutates the receiver in place:
//
// Tone (pointwise):
//   - AdjustBrightness, AdjustContrast, AdjustSaturation
//   - Invert, Grayscale, Sepia, Quantize
//
// Spatial (neighborhood):
//   - GaussianBlur (edge-replicate boundary)
//   - SobelEdges (one-pixel border left untouched)
//   - Vignette
//
// Geometric:
//   - ReflectHorizontal, ReflectVertical
//
// Operations that read neighbors write into a fresh slice and swap it in
// when complete, so a buffer is never observed half-rewritten. Grayscale is
// the only operation that changes the channel count (3 -> 1). Width and
// height never change.
//
// Saturation, Grayscale and Sepia are no-ops on single-channel buffers.
//
// # Clamping
//
// All results are clamped into [0,255]. Float intermediate values are
// rounded to the nearest integer before clamping.
//
// # Thread Safety
//
// A Buffer is not safe for concurrent use. Callers that share buffers
// between goroutines must serialize access themselves; the imaging.Store
// type does this per image id.
package raster
