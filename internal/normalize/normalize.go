// Package normalize implements the image-to-canvas normalization pipeline:
// decode an arbitrary source image, compute aspect-preserving fit-and-center
// geometry against a target square, rasterize onto a fresh pixel buffer, and
// serialize the buffer as a PNG data URI with size accounting.
package normalize

import (
	"errors"
	"image"
)

var (
	ErrUnsupportedFormat   = errors.New("unsupported image format")
	ErrDecodeFailure       = errors.New("image decode failed")
	ErrInvalidDimensions   = errors.New("image has invalid dimensions")
	ErrEncodeFailure       = errors.New("output encode failed")
	ErrResourceUnavailable = errors.New("rasterization surface unavailable")
)

// Raster is a fully decoded source image. The original encoded bytes travel
// with it so alternative rasterizer backends can re-read them directly.
type Raster struct {
	Image    image.Image
	Data     []byte
	MimeType string
	Width    int
	Height   int
}
