package normalize

import (
	"context"
	"fmt"

	"github.com/0xanmol/base64img-web/internal/domain"
)

// Normalizer runs the full conversion pipeline: decode, layout, rasterize,
// data-URI wrap. Every run allocates its own buffers; results replace rather
// than mutate earlier ones, so a Normalizer is safe for concurrent use.
type Normalizer struct {
	decoder    Decoder
	rasterizer Rasterizer
}

func New() (*Normalizer, error) {
	rasterizer, err := newRasterizer()
	if err != nil {
		return nil, fmt.Errorf("build rasterizer: %w", err)
	}
	return &Normalizer{
		decoder:    NewDecoder(),
		rasterizer: rasterizer,
	}, nil
}

// Convert turns raw image bytes into a PNG data URI under the given options.
// Any stage failure aborts the pipeline; no partial output is ever returned.
func (n *Normalizer) Convert(ctx context.Context, data []byte, mimeType, filename string, opts domain.ConvertOptions) (domain.ConvertResult, error) {
	if len(data) == 0 {
		return domain.ConvertResult{}, fmt.Errorf("%w: empty input", ErrDecodeFailure)
	}
	if opts.FitToSquare {
		if err := opts.Validate(); err != nil {
			return domain.ConvertResult{}, err
		}
	}
	if !SupportedFormat(mimeType) {
		return domain.ConvertResult{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, mimeType)
	}

	src, err := n.decoder.Decode(ctx, data, mimeType)
	if err != nil {
		return domain.ConvertResult{}, fmt.Errorf("decode stage: %w", err)
	}

	layout, err := ResolveLayout(src.Width, src.Height, opts)
	if err != nil {
		return domain.ConvertResult{}, fmt.Errorf("layout stage: %w", err)
	}

	encoded, err := n.rasterizer.Render(ctx, src, layout)
	if err != nil {
		return domain.ConvertResult{}, fmt.Errorf("render stage: %w", err)
	}

	return domain.ConvertResult{
		Output: domain.OutputDescriptor{
			DataURI: EncodeDataURI(encoded),
			Width:   layout.OutputWidth,
			Height:  layout.OutputHeight,
			SizeKB:  SizeKB(len(encoded)),
		},
		Source: domain.SourceMetadata{
			Filename: filename,
			MimeType: NormalizeMimeType(mimeType),
			ByteSize: len(data),
			Width:    src.Width,
			Height:   src.Height,
		},
	}, nil
}
