package api

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xanmol/base64img-web/internal/config"
	"github.com/0xanmol/base64img-web/internal/domain"
	"github.com/0xanmol/base64img-web/internal/id"
	"github.com/0xanmol/base64img-web/internal/normalize"
	"github.com/0xanmol/base64img-web/internal/schedule"
)

//go:embed index.html
var indexPage []byte

type converter interface {
	Convert(ctx context.Context, data []byte, mimeType, filename string, opts domain.ConvertOptions) (domain.ConvertResult, error)
}

type Server struct {
	logger            *log.Logger
	normalizer        converter
	preview           *previewState
	debouncer         *schedule.Debouncer
	rateLimiter       RateLimiter
	metrics           *metrics
	tracer            trace.Tracer
	sem               chan struct{}
	maxUploadBytes    int64
	defaultTargetEdge int
	mux               *http.ServeMux
}

func NewServer(logger *log.Logger, normalizer converter, rateLimiter RateLimiter, cfg config.Config) *Server {
	maxUpload := cfg.Server.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 32 << 20
	}
	defaultEdge := cfg.Convert.DefaultTargetEdge
	if defaultEdge < domain.MinTargetEdge || defaultEdge > domain.MaxTargetEdge {
		defaultEdge = domain.DefaultTargetEdge
	}

	s := &Server{
		logger:            logger,
		normalizer:        normalizer,
		preview:           &previewState{},
		debouncer:         schedule.NewDebouncer(cfg.Convert.DebounceWindow),
		rateLimiter:       rateLimiter,
		metrics:           newMetrics(),
		tracer:            otel.Tracer("base64img/api"),
		sem:               make(chan struct{}, maxInt(1, cfg.Convert.MaxActiveConversions)),
		maxUploadBytes:    maxUpload,
		defaultTargetEdge: defaultEdge,
		mux:               http.NewServeMux(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.metrics.withHTTPMetrics(s.withTracing(s.withRateLimit(s.mux)))
}

// Close cancels any pending debounced preview work.
func (s *Server) Close() {
	s.debouncer.Stop()
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleIndex)
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	s.mux.HandleFunc("POST /v1/convert", s.handleConvert)
	s.mux.HandleFunc("POST /v1/convert/download", s.handleDownload)
	s.mux.HandleFunc("POST /v1/preview", s.handlePreviewSubmit)
	s.mux.HandleFunc("GET /v1/preview", s.handlePreviewGet)
	s.mux.Handle("GET /metrics", s.metrics.metricsHandler())
}

func (s *Server) handleIndex(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(indexPage)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type uploadRequest struct {
	data     []byte
	mimeType string
	filename string
	opts     domain.ConvertOptions
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	upload, err := s.parseUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, status, err := s.runConversion(r.Context(), upload)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	upload, err := s.parseUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	result, status, err := s.runConversion(r.Context(), upload)
	if err != nil {
		writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}

	name := downloadName(upload.filename)
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	// The body is the data URI string itself, byte for byte.
	_, _ = io.WriteString(w, result.Output.DataURI)
}

// runConversion executes one pipeline run under the concurrency cap.
func (s *Server) runConversion(ctx context.Context, upload uploadRequest) (domain.ConvertResult, int, error) {
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return domain.ConvertResult{}, statusClientClosedRequest, ctx.Err()
	}
	s.metrics.activeConversions.Inc()
	defer func() {
		<-s.sem
		s.metrics.activeConversions.Dec()
	}()

	reqID := id.New()
	startedAt := time.Now()

	result, err := s.normalizer.Convert(ctx, upload.data, upload.mimeType, upload.filename, upload.opts)
	outcome := "ok"
	status := http.StatusOK
	if err != nil {
		outcome = "error"
		status = statusForError(err)
		s.logger.Printf("conversion failed req_id=%s type=%s bytes=%d err=%v", reqID, upload.mimeType, len(upload.data), err)
	} else {
		s.logger.Printf(
			"converted req_id=%s type=%s bytes_in=%d out=%dx%d size_kb=%.1f",
			reqID, upload.mimeType, len(upload.data),
			result.Output.Width, result.Output.Height, result.Output.SizeKB,
		)
		s.metrics.conversionOutputKB.Observe(result.Output.SizeKB)
	}
	format := normalize.NormalizeMimeType(upload.mimeType)
	s.metrics.conversionsTotal.WithLabelValues(format, outcome).Inc()
	s.metrics.conversionDuration.WithLabelValues(outcome).Observe(time.Since(startedAt).Seconds())

	return result, status, err
}

func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) (uploadRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		return uploadRequest{}, fmt.Errorf("invalid multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return uploadRequest{}, errors.New("form field \"file\" is required")
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return uploadRequest{}, fmt.Errorf("read upload: %w", err)
	}
	if len(data) == 0 {
		return uploadRequest{}, errors.New("uploaded file is empty")
	}

	filename := strings.TrimSpace(header.Filename)
	if filename == "" {
		filename = "image"
	}

	mimeType := strings.TrimSpace(header.Header.Get("Content-Type"))
	if mimeType == "" || mimeType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
			mimeType = byExt
		} else {
			mimeType = http.DetectContentType(data)
		}
	}

	opts := domain.ConvertOptions{
		TargetEdge:  s.defaultTargetEdge,
		FitToSquare: true,
	}
	if v := strings.TrimSpace(r.FormValue("fit_to_square")); v != "" {
		fit, err := strconv.ParseBool(v)
		if err != nil {
			return uploadRequest{}, fmt.Errorf("invalid fit_to_square value: %q", v)
		}
		opts.FitToSquare = fit
	}
	if v := strings.TrimSpace(r.FormValue("target_edge")); v != "" {
		edge, err := strconv.Atoi(v)
		if err != nil {
			return uploadRequest{}, fmt.Errorf("invalid target_edge value: %q", v)
		}
		opts.TargetEdge = edge
	}
	if opts.FitToSquare {
		if err := opts.Validate(); err != nil {
			return uploadRequest{}, err
		}
	}

	return uploadRequest{
		data:     data,
		mimeType: mimeType,
		filename: filename,
		opts:     opts,
	}, nil
}

// statusClientClosedRequest mirrors the nginx convention for a caller that
// went away mid-request.
const statusClientClosedRequest = 499

func statusForError(err error) int {
	switch {
	case errors.Is(err, normalize.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, normalize.ErrDecodeFailure), errors.Is(err, normalize.ErrInvalidDimensions):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return statusClientClosedRequest
	case errors.Is(err, normalize.ErrEncodeFailure), errors.Is(err, normalize.ErrResourceUnavailable):
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func downloadName(filename string) string {
	base := filepath.Base(strings.TrimSpace(filename))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return sanitizeFileToken(base) + ".datauri.txt"
}

func sanitizeFileToken(in string) string {
	in = strings.TrimSpace(in)
	if in == "" {
		return "image"
	}

	var b strings.Builder
	b.Grow(len(in))
	for _, r := range in {
		switch {
		case r >= 'a' && r <= 'z':
			b.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '-' || r == '_' || r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
