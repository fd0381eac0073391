package api

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/0xanmol/base64img-web/internal/domain"
)

// previewState holds the latest committed preview result. A new result
// replaces the previous one wholesale; nothing is mutated in place.
type previewState struct {
	mu     sync.Mutex
	result *domain.ConvertResult
	token  uint64
}

func (p *previewState) set(token uint64, result domain.ConvertResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.result = &result
	p.token = token
}

func (p *previewState) get() (domain.ConvertResult, uint64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.result == nil {
		return domain.ConvertResult{}, 0, false
	}
	return *p.result, p.token, true
}

const previewTimeout = 30 * time.Second

// handlePreviewSubmit schedules a debounced conversion. Bursts of submits
// collapse into the last one, and a slow older conversion can never
// overwrite a newer preview: only the highest committed token is published.
func (s *Server) handlePreviewSubmit(w http.ResponseWriter, r *http.Request) {
	upload, err := s.parseUpload(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	token := s.debouncer.Trigger(func(token uint64) {
		ctx, cancel := context.WithTimeout(context.Background(), previewTimeout)
		defer cancel()

		result, _, err := s.runConversion(ctx, upload)
		if err != nil {
			s.logger.Printf("preview conversion failed token=%d err=%v", token, err)
			return
		}
		if !s.debouncer.Commit(token) {
			s.logger.Printf("preview result superseded token=%d", token)
			return
		}
		s.preview.set(token, result)
	})

	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "scheduled",
		"token":  token,
	})
}

func (s *Server) handlePreviewGet(w http.ResponseWriter, r *http.Request) {
	result, token, ok := s.preview.get()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no preview available"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"token":  token,
		"result": result,
	})
}
