// Package imaging connects the raster engine to the outside world: it
// decodes uploaded bytes into pixel buffers, encodes buffers for download,
// keeps the per-id image store, and provides read-only inspection helpers
// (color sampling, statistics, cropping).
//
// # Coordinate System
//
// Inspection helpers take (x, y) pixel coordinates with (0,0) at the
// top-left corner. For regions, (x1,y1) is inclusive and (x2,y2) is
// exclusive. The raster package itself addresses samples as
// (row, column, channel), i.e. (y, x, c).
//
// # Codec
//
// Decode accepts JPEG, PNG, GIF, BMP, TIFF and WebP, applies EXIF
// orientation, and yields a one-channel buffer for grayscale sources and a
// three-channel buffer otherwise. Alpha is discarded. Encode produces JPEG,
// PNG or BMP.
//
// # Thread Safety
//
// Store is safe for concurrent use and serializes work per image id. The
// codec and inspection functions are stateless; they must not be called
// on a buffer another goroutine is mutating.
//
// # Error Handling
//
// Errors wrap one of the package sentinels (ErrInvalidImage,
// ErrImageTooLarge, ErrUnsupportedFormat, ErrNotFound) or
// raster.ErrOutOfRange for coordinates outside the image, so callers can
// classify them with errors.Is.
package imaging
