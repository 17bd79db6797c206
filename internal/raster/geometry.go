package raster

// ReflectHorizontal mirrors the buffer across its vertical axis, swapping
// left and right. Applying it twice restores the original.
func (b *Buffer) ReflectHorizontal() {
	src := b.pix
	out := make([]uint8, len(src))
	for y := 0; y < b.height; y++ {
		for x := 0; x < b.width; x++ {
			from := b.offset(y, b.width-1-x, 0)
			copy(out[b.offset(y, x, 0):b.offset(y, x, 0)+b.channels], src[from:from+b.channels])
		}
	}
	b.pix = out
}

// ReflectVertical mirrors the buffer across its horizontal axis, swapping
// top and bottom. Applying it twice restores the original.
func (b *Buffer) ReflectVertical() {
	src := b.pix
	out := make([]uint8, len(src))
	stride := b.width * b.channels
	for y := 0; y < b.height; y++ {
		from := (b.height - 1 - y) * stride
		copy(out[y*stride:(y+1)*stride], src[from:from+stride])
	}
	b.pix = out
}
