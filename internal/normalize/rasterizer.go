package normalize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/draw"
	"image/png"
	"math"

	"github.com/disintegration/imaging"
)

// Rasterizer draws a decoded source onto a fresh output buffer at the
// resolved layout and serializes the buffer to a PNG byte stream.
type Rasterizer interface {
	Render(ctx context.Context, src *Raster, layout Layout) ([]byte, error)
}

type stdRasterizer struct{}

func (stdRasterizer) Render(ctx context.Context, src *Raster, layout Layout) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if src == nil || src.Image == nil {
		return nil, fmt.Errorf("%w: no decoded source", ErrResourceUnavailable)
	}
	if layout.OutputWidth <= 0 || layout.OutputHeight <= 0 {
		return nil, fmt.Errorf("%w: output %dx%d", ErrInvalidDimensions, layout.OutputWidth, layout.OutputHeight)
	}

	x, y, width, height := roundRect(layout.Rect)

	scaled := src.Image
	if width != src.Width || height != src.Height {
		scaled = imaging.Resize(src.Image, width, height, imaging.Lanczos)
	}

	// A fresh NRGBA buffer is zero-alpha everywhere, so any letterbox
	// region stays transparent.
	dst := image.NewNRGBA(image.Rect(0, 0, layout.OutputWidth, layout.OutputHeight))
	draw.Draw(dst, image.Rect(x, y, x+width, y+height), scaled, scaled.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	encoder := png.Encoder{CompressionLevel: png.DefaultCompression}
	if err := encoder.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return buf.Bytes(), nil
}

// roundRect snaps the fractional draw rectangle to whole pixels. The same
// rule (round half away from zero) is applied to every component so the two
// axes never round asymmetrically.
func roundRect(r DrawRect) (x, y, width, height int) {
	x = int(math.Round(r.X))
	y = int(math.Round(r.Y))
	width = int(math.Round(r.Width))
	height = int(math.Round(r.Height))
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return x, y, width, height
}
