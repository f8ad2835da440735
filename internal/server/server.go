// Package server provides the HTTP API for semprompt.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/hyperjump/semprompt/internal/config"
	"github.com/hyperjump/semprompt/internal/embedding"
	"github.com/hyperjump/semprompt/internal/generator"
	"github.com/hyperjump/semprompt/internal/metrics"
	"github.com/hyperjump/semprompt/internal/prompt"
	"github.com/hyperjump/semprompt/internal/storage"
	"github.com/hyperjump/semprompt/internal/vector"
)

const serviceName = "prompt-service"

// Server is the HTTP server for the semprompt API.
type Server struct {
	service   *prompt.Service
	store     storage.Store
	index     *vector.Index
	embedder  embedding.Embedder
	generator generator.Generator
	config    *config.Config
	metrics   *metrics.Metrics
	limiter   *clientLimiter
	logger    *zap.Logger
	server    *http.Server
}

// NewServer creates a server with the given dependencies. m may be nil, in which case a
// private metrics instance is created over index.
func NewServer(
	svc *prompt.Service,
	store storage.Store,
	index *vector.Index,
	embedder embedding.Embedder,
	gen generator.Generator,
	cfg *config.Config,
	m *metrics.Metrics,
	logger *zap.Logger,
) *Server {
	if m == nil {
		m = metrics.New(index)
	}
	s := &Server{
		service:   svc,
		store:     store,
		index:     index,
		embedder:  embedder,
		generator: gen,
		config:    cfg,
		metrics:   m,
		logger:    logger,
	}
	if cfg.API.RateLimit.EnabledOrDefault() {
		s.limiter = newClientLimiter(cfg.API.RateLimit.PerMinute)
	}
	return s
}

// Router builds the HTTP handler with all middleware and routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)
	r.Use(processTime)
	r.Use(middleware.Timeout(time.Duration(s.config.Server.RequestTimeoutSeconds) * time.Second))

	r.Get("/health", s.handleHealth)
	r.Get("/health/detailed", s.handleHealthDetailed)
	r.Get("/health/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Group(func(r chi.Router) {
		if s.limiter != nil {
			r.Use(s.rateLimit)
		}
		r.Post("/prompt", s.handleCreatePrompt)
		r.Get("/similar", s.handleSimilar)
		r.Get("/prompts", s.handleListPrompts)
		r.Get("/prompts/{id}", s.handleGetPrompt)
		r.Get("/stats", s.handleStats)
		r.Post("/admin/flush", s.handleFlush)
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := s.config.Server.Addr()
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Debug("request",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)))
	})
}

// processTime sets X-Process-Time (seconds) just before the status line is written.
func processTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(&timedWriter{ResponseWriter: w, start: time.Now()}, r)
	})
}

type timedWriter struct {
	http.ResponseWriter
	start       time.Time
	wroteHeader bool
}

func (t *timedWriter) WriteHeader(code int) {
	if !t.wroteHeader {
		t.wroteHeader = true
		t.Header().Set("X-Process-Time", strconv.FormatFloat(time.Since(t.start).Seconds(), 'f', 6, 64))
	}
	t.ResponseWriter.WriteHeader(code)
}

func (t *timedWriter) Write(b []byte) (int, error) {
	if !t.wroteHeader {
		t.WriteHeader(http.StatusOK)
	}
	return t.ResponseWriter.Write(b)
}

func (t *timedWriter) Flush() {
	if f, ok := t.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
