package normalize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"strings"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	_ "golang.org/x/image/webp"
)

const (
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWEBP = "image/webp"
	MimeSVG  = "image/svg+xml"
)

// Decoder turns raw encoded bytes into a fully decoded Raster. Decoding
// completes entirely before the caller proceeds; a Raster is never returned
// partially read.
type Decoder interface {
	Decode(ctx context.Context, data []byte, mimeType string) (*Raster, error)
}

// SupportedFormat reports whether the declared MIME type is on the accepted
// whitelist. This check is cheap and runs before any decode attempt.
func SupportedFormat(mimeType string) bool {
	switch NormalizeMimeType(mimeType) {
	case MimePNG, MimeJPEG, MimeWEBP, MimeSVG:
		return true
	default:
		return false
	}
}

// NormalizeMimeType lowercases the declared type, strips any parameters
// (e.g. "; charset=utf-8"), and folds common aliases.
func NormalizeMimeType(mimeType string) string {
	mimeType = strings.ToLower(strings.TrimSpace(mimeType))
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = strings.TrimSpace(mimeType[:i])
	}
	switch mimeType {
	case "image/jpg":
		return MimeJPEG
	case "image/svg":
		return MimeSVG
	default:
		return mimeType
	}
}

// NewDecoder returns the default decoder: stdlib image decoding for PNG,
// JPEG, and WEBP, and an oksvg-backed rasterizing decoder for SVG.
func NewDecoder() Decoder {
	return formatDecoder{}
}

type formatDecoder struct{}

func (d formatDecoder) Decode(ctx context.Context, data []byte, mimeType string) (*Raster, error) {
	mime := NormalizeMimeType(mimeType)
	if !SupportedFormat(mime) {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if mime == MimeSVG {
		return decodeSVG(data)
	}
	return decodeRaster(data, mime)
}

func decodeRaster(data []byte, mime string) (*Raster, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	return &Raster{
		Image:    img,
		Data:     data,
		MimeType: mime,
		Width:    width,
		Height:   height,
	}, nil
}

// decodeSVG parses the vector source and rasterizes it once at its native
// ViewBox size. Downstream scaling then treats it like any other raster.
func decodeSVG(data []byte) (*Raster, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}

	width := int(math.Round(icon.ViewBox.W))
	height := int(math.Round(icon.ViewBox.H))
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: svg viewbox %gx%g", ErrInvalidDimensions, icon.ViewBox.W, icon.ViewBox.H)
	}

	icon.SetTarget(0, 0, float64(width), float64(height))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	scanner := rasterx.NewScannerGV(width, height, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(width, height, scanner), 1.0)

	return &Raster{
		Image:    img,
		Data:     data,
		MimeType: MimeSVG,
		Width:    width,
		Height:   height,
	}, nil
}
