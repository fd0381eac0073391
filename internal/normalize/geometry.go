package normalize

import (
	"fmt"

	"github.com/0xanmol/base64img-web/internal/domain"
)

// DrawRect is the placement of the scaled source on the output buffer, in
// output-canvas coordinates. Values are fractional: sub-pixel placement is
// allowed and any rounding happens once, at draw time.
type DrawRect struct {
	X      float64
	Y      float64
	Width  float64
	Height float64
}

// Layout is the resolved output geometry for one conversion.
type Layout struct {
	OutputWidth  int
	OutputHeight int
	Rect         DrawRect
}

// ResolveLayout computes the output canvas size and the draw rectangle for a
// source of the given native dimensions.
//
// With FitToSquare unset the placement is the identity: the canvas matches
// the source and no scaling occurs. With FitToSquare set the canvas is a
// TargetEdge square and the source is scaled by the smaller of the two
// edge ratios, so the whole image fits without distortion, then centered on
// both axes.
func ResolveLayout(nativeWidth, nativeHeight int, opts domain.ConvertOptions) (Layout, error) {
	if nativeWidth <= 0 || nativeHeight <= 0 {
		return Layout{}, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, nativeWidth, nativeHeight)
	}

	if !opts.FitToSquare {
		return Layout{
			OutputWidth:  nativeWidth,
			OutputHeight: nativeHeight,
			Rect: DrawRect{
				X:      0,
				Y:      0,
				Width:  float64(nativeWidth),
				Height: float64(nativeHeight),
			},
		}, nil
	}

	if err := opts.Validate(); err != nil {
		return Layout{}, err
	}

	edge := float64(opts.TargetEdge)
	scale := min(edge/float64(nativeWidth), edge/float64(nativeHeight))
	scaledWidth := float64(nativeWidth) * scale
	scaledHeight := float64(nativeHeight) * scale

	return Layout{
		OutputWidth:  opts.TargetEdge,
		OutputHeight: opts.TargetEdge,
		Rect: DrawRect{
			X:      (edge - scaledWidth) / 2,
			Y:      (edge - scaledHeight) / 2,
			Width:  scaledWidth,
			Height: scaledHeight,
		},
	}, nil
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
