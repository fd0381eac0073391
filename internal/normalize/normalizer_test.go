package normalize

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"strings"
	"testing"

	"github.com/0xanmol/base64img-web/internal/domain"
)

const testSVG = `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 100 50"><rect width="100" height="50" fill="#ff0000"/></svg>`

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}

func newTestNormalizer(t *testing.T) *Normalizer {
	t.Helper()
	n, err := New()
	if err != nil {
		t.Fatalf("new normalizer: %v", err)
	}
	return n
}

func TestConvertPNGFitToSquare(t *testing.T) {
	n := newTestNormalizer(t)

	result, err := n.Convert(context.Background(), buildTestPNG(t, 100, 50), MimePNG, "photo.png", domain.ConvertOptions{
		TargetEdge:  256,
		FitToSquare: true,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if result.Output.Width != 256 || result.Output.Height != 256 {
		t.Fatalf("expected 256x256 output, got %dx%d", result.Output.Width, result.Output.Height)
	}
	if result.Source.Width != 100 || result.Source.Height != 50 {
		t.Fatalf("expected 100x50 source, got %dx%d", result.Source.Width, result.Source.Height)
	}
	if result.Source.Filename != "photo.png" || result.Source.MimeType != MimePNG {
		t.Fatalf("unexpected source metadata: %+v", result.Source)
	}
	if result.Output.SizeKB <= 0 {
		t.Fatalf("expected positive size, got %v", result.Output.SizeKB)
	}

	out := decodeOutput(t, result.Output.DataURI)
	if out.Bounds().Dx() != 256 || out.Bounds().Dy() != 256 {
		t.Fatalf("decoded output is %v", out.Bounds())
	}
}

func TestConvertOutputIsValidPNGDataURI(t *testing.T) {
	n := newTestNormalizer(t)

	result, err := n.Convert(context.Background(), buildTestPNG(t, 32, 32), MimePNG, "a.png", domain.ConvertOptions{
		TargetEdge:  64,
		FitToSquare: true,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	if !strings.HasPrefix(result.Output.DataURI, "data:image/png;base64,") {
		t.Fatalf("missing data URI prefix: %q", result.Output.DataURI[:32])
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(result.Output.DataURI, DataURIPrefix))
	if err != nil {
		t.Fatalf("payload is not standard base64: %v", err)
	}
	if !bytes.HasPrefix(raw, pngMagic) {
		t.Fatalf("decoded payload does not start with PNG magic: %x", raw[:8])
	}
}

func TestConvertWithoutFitKeepsNativeDimensions(t *testing.T) {
	n := newTestNormalizer(t)

	result, err := n.Convert(context.Background(), buildTestPNG(t, 120, 80), MimePNG, "a.png", domain.ConvertOptions{
		FitToSquare: false,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if result.Output.Width != 120 || result.Output.Height != 80 {
		t.Fatalf("expected native 120x80, got %dx%d", result.Output.Width, result.Output.Height)
	}
}

func TestConvertJPEG(t *testing.T) {
	n := newTestNormalizer(t)

	var buf bytes.Buffer
	img := image.NewRGBA(image.Rect(0, 0, 60, 40))
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("encode jpeg: %v", err)
	}

	result, err := n.Convert(context.Background(), buf.Bytes(), "image/jpeg", "a.jpg", domain.ConvertOptions{
		TargetEdge:  128,
		FitToSquare: true,
	})
	if err != nil {
		t.Fatalf("convert jpeg: %v", err)
	}
	if result.Output.Width != 128 || result.Output.Height != 128 {
		t.Fatalf("expected 128x128 output, got %dx%d", result.Output.Width, result.Output.Height)
	}
}

func TestConvertSVG(t *testing.T) {
	n := newTestNormalizer(t)

	result, err := n.Convert(context.Background(), []byte(testSVG), "image/svg+xml", "shape.svg", domain.ConvertOptions{
		TargetEdge:  256,
		FitToSquare: true,
	})
	if err != nil {
		t.Fatalf("convert svg: %v", err)
	}
	if result.Source.Width != 100 || result.Source.Height != 50 {
		t.Fatalf("expected 100x50 viewbox source, got %dx%d", result.Source.Width, result.Source.Height)
	}
	if result.Output.Width != 256 || result.Output.Height != 256 {
		t.Fatalf("expected 256x256 output, got %dx%d", result.Output.Width, result.Output.Height)
	}
}

func TestConvertLetterboxIsTransparent(t *testing.T) {
	n := newTestNormalizer(t)

	// Opaque 100x50 source centered on a 256 square leaves transparent
	// bands above and below the drawn rows 64..191.
	result, err := n.Convert(context.Background(), buildTestPNG(t, 100, 50), MimePNG, "a.png", domain.ConvertOptions{
		TargetEdge:  256,
		FitToSquare: true,
	})
	if err != nil {
		t.Fatalf("convert: %v", err)
	}

	out := decodeOutput(t, result.Output.DataURI)
	if _, _, _, a := out.At(128, 10).RGBA(); a != 0 {
		t.Fatalf("expected transparent letterbox at top, alpha=%d", a)
	}
	if _, _, _, a := out.At(128, 250).RGBA(); a != 0 {
		t.Fatalf("expected transparent letterbox at bottom, alpha=%d", a)
	}
	if _, _, _, a := out.At(128, 128).RGBA(); a != 0xffff {
		t.Fatalf("expected opaque center pixel, alpha=%d", a)
	}
}

func TestConvertIdempotent(t *testing.T) {
	n := newTestNormalizer(t)
	src := buildTestPNG(t, 100, 50)
	opts := domain.ConvertOptions{TargetEdge: 128, FitToSquare: true}

	first, err := n.Convert(context.Background(), src, MimePNG, "a.png", opts)
	if err != nil {
		t.Fatalf("first convert: %v", err)
	}
	second, err := n.Convert(context.Background(), src, MimePNG, "a.png", opts)
	if err != nil {
		t.Fatalf("second convert: %v", err)
	}
	if first.Output.DataURI != second.Output.DataURI {
		t.Fatal("expected identical input and config to produce identical data URIs")
	}
}

func TestConvertRejectsUnsupportedFormatBeforeDecode(t *testing.T) {
	// The decoder panics if reached: whitelist rejection must happen first.
	n := &Normalizer{decoder: panicDecoder{}, rasterizer: stdRasterizer{}}

	_, err := n.Convert(context.Background(), buildTestPNG(t, 10, 10), "image/gif", "a.gif", domain.ConvertOptions{
		TargetEdge:  256,
		FitToSquare: true,
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestConvertCorruptBytes(t *testing.T) {
	n := newTestNormalizer(t)

	_, err := n.Convert(context.Background(), []byte("definitely not a png"), MimePNG, "a.png", domain.ConvertOptions{
		TargetEdge:  256,
		FitToSquare: true,
	})
	if !errors.Is(err, ErrDecodeFailure) {
		t.Fatalf("expected ErrDecodeFailure, got %v", err)
	}
}

func TestConvertRejectsBadTargetEdge(t *testing.T) {
	n := newTestNormalizer(t)
	src := buildTestPNG(t, 10, 10)

	for _, edge := range []int{7, 2049} {
		_, err := n.Convert(context.Background(), src, MimePNG, "a.png", domain.ConvertOptions{
			TargetEdge:  edge,
			FitToSquare: true,
		})
		if err == nil {
			t.Fatalf("expected rejection for target edge %d", edge)
		}
	}
}

func TestConvertWhitelistedFormatsViaFakeDecoder(t *testing.T) {
	// The pipeline beyond the decoder must not care which whitelisted
	// format the bytes claimed to be.
	fake := fakeDecoder{width: 40, height: 20}
	n := &Normalizer{decoder: fake, rasterizer: stdRasterizer{}}

	for _, mimeType := range []string{MimePNG, MimeJPEG, MimeWEBP, MimeSVG} {
		result, err := n.Convert(context.Background(), []byte("payload"), mimeType, "a", domain.ConvertOptions{
			TargetEdge:  64,
			FitToSquare: true,
		})
		if err != nil {
			t.Fatalf("convert %s: %v", mimeType, err)
		}
		if !strings.HasPrefix(result.Output.DataURI, DataURIPrefix) {
			t.Fatalf("%s: missing data URI prefix", mimeType)
		}
	}
}

type panicDecoder struct{}

func (panicDecoder) Decode(context.Context, []byte, string) (*Raster, error) {
	panic("decode must not be reached")
}

type fakeDecoder struct {
	width  int
	height int
}

func (d fakeDecoder) Decode(_ context.Context, data []byte, mimeType string) (*Raster, error) {
	img := image.NewNRGBA(image.Rect(0, 0, d.width, d.height))
	return &Raster{
		Image:    img,
		Data:     data,
		MimeType: NormalizeMimeType(mimeType),
		Width:    d.width,
		Height:   d.height,
	}, nil
}

func buildTestPNG(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: 140,
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode source png: %v", err)
	}
	return buf.Bytes()
}

func decodeOutput(t *testing.T, dataURI string) image.Image {
	t.Helper()

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(dataURI, DataURIPrefix))
	if err != nil {
		t.Fatalf("decode data URI payload: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode output png: %v", err)
	}
	return img
}
