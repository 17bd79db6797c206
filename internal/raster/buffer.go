package raster

import (
	"errors"
	"fmt"
)

var (
	// ErrOutOfRange is returned when a sample is addressed outside the
	// buffer's rows, columns or channels.
	ErrOutOfRange = errors.New("sample index out of range")

	// ErrInvalidDimensions is returned when a buffer is constructed with a
	// non-positive size, an unsupported channel count, or a sample slice
	// of the wrong length.
	ErrInvalidDimensions = errors.New("invalid buffer dimensions")
)

// Supported channel counts.
const (
	Gray = 1
	RGB  = 3
)

// Buffer is a dense 8-bit raster with one or three channels.
type Buffer struct {
	width    int
	height   int
	channels int
	pix      []uint8
}

// New creates a zero-filled buffer.
//
// Returns an error wrapping ErrInvalidDimensions if width or height is not
// positive or channels is not 1 or 3.
func New(width, height, channels int) (*Buffer, error) {
	if err := checkDims(width, height, channels); err != nil {
		return nil, err
	}
	return &Buffer{
		width:    width,
		height:   height,
		channels: channels,
		pix:      make([]uint8, width*height*channels),
	}, nil
}

// FromSamples creates a buffer holding a copy of pix, which must contain
// exactly width*height*channels samples in row-major interleaved order.
func FromSamples(width, height, channels int, pix []uint8) (*Buffer, error) {
	if err := checkDims(width, height, channels); err != nil {
		return nil, err
	}
	if len(pix) != width*height*channels {
		return nil, fmt.Errorf("%w: got %d samples, want %d",
			ErrInvalidDimensions, len(pix), width*height*channels)
	}
	b := &Buffer{width: width, height: height, channels: channels}
	b.pix = append([]uint8(nil), pix...)
	return b, nil
}

func checkDims(width, height, channels int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}
	if channels != Gray && channels != RGB {
		return fmt.Errorf("%w: %d channels (want 1 or 3)", ErrInvalidDimensions, channels)
	}
	return nil
}

// Width returns the number of columns.
func (b *Buffer) Width() int { return b.width }

// Height returns the number of rows.
func (b *Buffer) Height() int { return b.height }

// Channels returns 1 for grayscale or 3 for RGB.
func (b *Buffer) Channels() int { return b.channels }

// Len returns the total number of samples.
func (b *Buffer) Len() int { return len(b.pix) }

// Pix returns the backing sample slice. Writes through it bypass bounds
// checks but cannot leave the [0,255] range.
func (b *Buffer) Pix() []uint8 { return b.pix }

// At returns the sample at (row, col, channel).
func (b *Buffer) At(row, col, channel int) (uint8, error) {
	if !b.inBounds(row, col, channel) {
		return 0, b.rangeError(row, col, channel)
	}
	return b.pix[b.offset(row, col, channel)], nil
}

// Set stores v at (row, col, channel).
func (b *Buffer) Set(row, col, channel int, v uint8) error {
	if !b.inBounds(row, col, channel) {
		return b.rangeError(row, col, channel)
	}
	b.pix[b.offset(row, col, channel)] = v
	return nil
}

// Clone returns a deep copy of the buffer.
func (b *Buffer) Clone() *Buffer {
	return &Buffer{
		width:    b.width,
		height:   b.height,
		channels: b.channels,
		pix:      append([]uint8(nil), b.pix...),
	}
}

// Equal reports whether b and o have the same shape and samples.
func (b *Buffer) Equal(o *Buffer) bool {
	if b == nil || o == nil {
		return b == o
	}
	if b.width != o.width || b.height != o.height || b.channels != o.channels {
		return false
	}
	for i := range b.pix {
		if b.pix[i] != o.pix[i] {
			return false
		}
	}
	return true
}

func (b *Buffer) inBounds(row, col, channel int) bool {
	return row >= 0 && row < b.height &&
		col >= 0 && col < b.width &&
		channel >= 0 && channel < b.channels
}

func (b *Buffer) rangeError(row, col, channel int) error {
	return fmt.Errorf("%w: (row %d, col %d, channel %d) outside %dx%dx%d",
		ErrOutOfRange, row, col, channel, b.height, b.width, b.channels)
}

func (b *Buffer) offset(row, col, channel int) int {
	return (row*b.width+col)*b.channels + channel
}

// clampInt constrains v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// toSample rounds v to the nearest integer and clamps it into [0,255].
// NaN maps to 0.
func toSample(v float64) uint8 {
	if !(v > 0) {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v + 0.5)
}
