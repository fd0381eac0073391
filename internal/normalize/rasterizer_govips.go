//go:build govips && cgo

package normalize

import (
	"context"
	"fmt"

	"github.com/davidbyttow/govips/v2/vips"
)

// govipsRasterizer renders through libvips, re-reading the original encoded
// bytes for the formats vips decodes natively. SVG sources were already
// rasterized by the decoder, so those fall back to the stdlib path.
type govipsRasterizer struct{}

func (r govipsRasterizer) Render(ctx context.Context, src *Raster, layout Layout) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if src == nil {
		return nil, fmt.Errorf("%w: no decoded source", ErrResourceUnavailable)
	}
	if src.MimeType == MimeSVG || len(src.Data) == 0 {
		return stdRasterizer{}.Render(ctx, src, layout)
	}

	img, err := vips.NewImageFromBuffer(src.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecodeFailure, err)
	}
	defer img.Close()

	x, y, width, height := roundRect(layout.Rect)

	if width != img.Width() || height != img.Height() {
		scale := float64(width) / float64(img.Width())
		if err := img.Resize(scale, vips.KernelLanczos3); err != nil {
			return nil, fmt.Errorf("resize image: %w", err)
		}
	}

	if layout.OutputWidth != width || layout.OutputHeight != height || x != 0 || y != 0 {
		if err := img.AddAlpha(); err != nil {
			return nil, fmt.Errorf("add alpha channel: %w", err)
		}
		transparent := &vips.ColorRGBA{R: 0, G: 0, B: 0, A: 0}
		if err := img.EmbedBackgroundRGBA(x, y, layout.OutputWidth, layout.OutputHeight, transparent); err != nil {
			return nil, fmt.Errorf("embed on canvas: %w", err)
		}
	}

	data, _, err := img.ExportPng(vips.NewPngExportParams())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodeFailure, err)
	}
	return data, nil
}
