package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const healthCheckTimeout = 5 * time.Second

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

type componentCheck struct {
	name string
	ok   string
	run  func(ctx context.Context) error
}

func (s *Server) componentChecks() []componentCheck {
	return []componentCheck{
		{"database", "Database accessible", func(ctx context.Context) error {
			if err := s.store.Ping(ctx); err != nil {
				return err
			}
			_, err := s.store.Count(ctx)
			return err
		}},
		{"vector_index", "Vector index accessible", func(ctx context.Context) error {
			probe := make([]float32, s.index.Dimension())
			probe[0] = 1
			_, err := s.index.Search(probe, 1)
			return err
		}},
		{"embedder", "Embedder functional", func(ctx context.Context) error {
			vec, err := s.embedder.Embed(ctx, "health check test")
			if err != nil {
				return err
			}
			if len(vec) != s.index.Dimension() {
				return fmt.Errorf("embedding has %d dimensions, index expects %d", len(vec), s.index.Dimension())
			}
			return nil
		}},
		{"llm", "LLM functional", func(ctx context.Context) error {
			_, err := s.generator.Generate(ctx, "health check")
			return err
		}},
	}
}

// runChecks runs every component check concurrently. Each check records its own outcome, so
// one failure does not cancel the others.
func (s *Server) runChecks(ctx context.Context) (map[string]checkResult, bool) {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	checks := s.componentChecks()
	results := make(map[string]checkResult, len(checks))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range checks {
		g.Go(func() error {
			res := checkResult{Status: "healthy", Message: c.ok}
			if err := c.run(gctx); err != nil {
				res = checkResult{Status: "unhealthy", Message: fmt.Sprintf("%s error: %v", c.name, err)}
			}
			mu.Lock()
			results[c.name] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	healthy := true
	for _, r := range results {
		if r.Status != "healthy" {
			healthy = false
		}
	}
	return results, healthy
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": unixSeconds(time.Now()),
	})
}

func (s *Server) handleHealthDetailed(w http.ResponseWriter, r *http.Request) {
	results, healthy := s.runChecks(r.Context())
	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "unhealthy", http.StatusServiceUnavailable
	}
	s.respondJSON(w, code, map[string]interface{}{
		"status":    status,
		"service":   serviceName,
		"checks":    results,
		"timestamp": unixSeconds(time.Now()),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	results, healthy := s.runChecks(r.Context())
	if !healthy {
		var failed []string
		for name, res := range results {
			if res.Status != "healthy" {
				failed = append(failed, name)
			}
		}
		s.respondJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status":    "not_ready",
			"service":   serviceName,
			"error":     fmt.Sprintf("components not ready: %v", failed),
			"timestamp": unixSeconds(time.Now()),
		})
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ready",
		"service":   serviceName,
		"message":   "Service is ready to handle requests",
		"timestamp": unixSeconds(time.Now()),
	})
}
