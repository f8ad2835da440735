package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/hyperjump/semprompt/internal/models"
	"github.com/hyperjump/semprompt/internal/prompt"
	"github.com/hyperjump/semprompt/internal/storage"
	"github.com/hyperjump/semprompt/internal/validation"
	"github.com/hyperjump/semprompt/internal/vector"
)

// errorResponse is the body of every non-2xx response.
type errorResponse struct {
	Error     string `json:"error"`
	Detail    string `json:"detail"`
	ErrorType string `json:"error_type"`
}

// maxBodyBytes bounds a create request: every rune of the longest accepted prompt written as
// a six-byte JSON escape, plus room for the envelope.
func (s *Server) maxBodyBytes() int64 {
	return int64(s.config.API.MaxPromptLength)*6 + 1024
}

func (s *Server) handleCreatePrompt(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBodyBytes())
	var input models.PromptInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "Validation failed",
				fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit), "ValidationError")
			return
		}
		s.respondError(w, http.StatusBadRequest, "Validation failed", "invalid request body", "ValidationError")
		return
	}
	rec, err := s.service.Create(r.Context(), input.Prompt)
	s.metrics.RecordPrompt("create", err)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	q := models.SimilarQuery{Query: r.URL.Query().Get("query"), K: s.config.API.DefaultK}
	if raw := r.URL.Query().Get("k"); raw != "" {
		k, err := strconv.Atoi(raw)
		if err != nil || k < 1 {
			s.respondError(w, http.StatusBadRequest, "Validation failed", "k must be a positive integer", "ValidationError")
			return
		}
		q.K = k
	}
	results, err := s.service.Similar(r.Context(), q)
	s.metrics.RecordPrompt("similar", err)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, results)
}

func (s *Server) handleListPrompts(w http.ResponseWriter, r *http.Request) {
	var q models.PageQuery
	for name, dst := range map[string]*int{"page": &q.Page, "page_size": &q.PageSize} {
		raw := r.URL.Query().Get(name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			s.respondError(w, http.StatusBadRequest, "Validation failed", name+" must be a positive integer", "ValidationError")
			return
		}
		*dst = n
	}
	page, err := s.service.List(r.Context(), q)
	s.metrics.RecordPrompt("list", err)
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetPrompt(w http.ResponseWriter, r *http.Request) {
	rec, err := s.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.respondServiceError(w, err)
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleFlush(w http.ResponseWriter, r *http.Request) {
	if err := s.index.Flush(); err != nil {
		s.logger.Error("Manual flush failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Service error", "Internal processing failed", "PersistenceError")
		return
	}
	st := s.index.Stats()
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "flushed",
		"count":   st.Count,
		"flushes": st.Flushes,
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	total, err := s.store.Count(r.Context())
	if err != nil {
		s.logger.Error("stats: count prompts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, "Failed to retrieve service statistics", "Internal processing failed", "RepositoryError")
		return
	}
	cfg := s.config
	resp := map[string]interface{}{
		"service": serviceName,
		"status":  "active",
		"data": map[string]interface{}{
			"total_prompts": total,
			"embedder": map[string]interface{}{
				"model":      s.embedder.ModelName(),
				"dimensions": s.embedder.Dimensions(),
			},
			"generator": s.generator.Name(),
		},
		"vector_index": newIndexStatsView(s.index.Stats()),
		"config": map[string]interface{}{
			"max_prompt_length":     cfg.API.MaxPromptLength,
			"max_results":           cfg.API.MaxResults,
			"rate_limiting_enabled": cfg.API.RateLimit.EnabledOrDefault(),
			"rate_limit_per_minute": cfg.API.RateLimit.PerMinute,
			"embedding_dim":         cfg.Embedding.Dimensions,
			"flush_interval":        cfg.Vector.FlushIntervalOrDefault(),
			"vector_compression":    cfg.Vector.Compression,
		},
		"timestamp": unixSeconds(time.Now()),
	}
	paths := append(storage.DatabaseFiles(cfg.Storage.DatabasePath), cfg.Storage.VectorIndexPath)
	if diskBytes, err := storage.DiskUsageBytes(paths...); err == nil {
		resp["disk_usage_bytes"] = diskBytes
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// indexStatsView is the client-facing part of vector.Stats. Filesystem paths stay internal.
type indexStatsView struct {
	Count            int       `json:"count"`
	Dimension        int       `json:"dimension"`
	PendingOps       int       `json:"pending_ops"`
	FlushInterval    int       `json:"flush_interval"`
	Flushes          uint64    `json:"flushes"`
	FlushFailures    uint64    `json:"flush_failures"`
	LastFlush        time.Time `json:"last_flush,omitempty"`
	Compression      string    `json:"compression"`
	RecoveredCorrupt bool      `json:"recovered_corrupt_snapshot"`
}

func newIndexStatsView(st vector.Stats) indexStatsView {
	return indexStatsView{
		Count:            st.Count,
		Dimension:        st.Dimension,
		PendingOps:       st.PendingOps,
		FlushInterval:    st.FlushInterval,
		Flushes:          st.Flushes,
		FlushFailures:    st.FlushFailures,
		LastFlush:        st.LastFlush,
		Compression:      st.Compression,
		RecoveredCorrupt: st.CorruptBackup != "",
	}
}

// respondServiceError maps pipeline errors onto HTTP responses. Only validation details reach
// the client; every other kind gets a generic body.
func (s *Server) respondServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, prompt.ErrValidation):
		detail := err.Error()
		var verr *validation.Error
		if errors.As(err, &verr) {
			detail = verr.Message
		}
		s.respondError(w, http.StatusBadRequest, "Validation failed", detail, "ValidationError")
	case errors.Is(err, storage.ErrNotFound):
		s.respondError(w, http.StatusNotFound, "Not found", "Prompt not found", "NotFoundError")
	default:
		kind := errorKind(err)
		if kind == "UnknownError" {
			s.logger.Error("Unexpected error", zap.Error(err))
			s.respondError(w, http.StatusInternalServerError, "Internal server error", "An unexpected error occurred", kind)
			return
		}
		s.respondError(w, http.StatusInternalServerError, "Service error", "Internal processing failed", kind)
	}
}

func errorKind(err error) string {
	kinds := []struct {
		target error
		name   string
	}{
		{prompt.ErrPartialWrite, "PartialWriteError"},
		{prompt.ErrGeneration, "GenerationError"},
		{prompt.ErrEmbedding, "EmbeddingError"},
		{prompt.ErrRepository, "RepositoryError"},
		{prompt.ErrIndex, "IndexError"},
	}
	for _, k := range kinds {
		if errors.Is(err, k.target) {
			return k.name
		}
	}
	return "UnknownError"
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message, detail, errorType string) {
	s.respondJSON(w, status, errorResponse{Error: message, Detail: detail, ErrorType: errorType})
}
