// Package metrics exposes Prometheus metrics for the HTTP API and the vector index.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hyperjump/semprompt/internal/vector"
)

const namespace = "semprompt"

// IndexStats is implemented by *vector.Index.
type IndexStats interface {
	Stats() vector.Stats
}

// Metrics owns a private registry so several instances can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	prompts  *prometheus.CounterVec
}

// New builds the collectors. When index is non-nil its counters are exported as gauges read
// at scrape time.
func New(index IndexStats) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		prompts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "prompt_operations_total",
			Help:      "Prompt service operations by kind and outcome.",
		}, []string{"op", "status"}),
	}
	m.registry.MustRegister(
		m.requests,
		m.latency,
		m.prompts,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if index != nil {
		m.registerIndex(index)
	}
	return m
}

func (m *Metrics) registerIndex(index IndexStats) {
	gauge := func(name, help string, value func(vector.Stats) float64) prometheus.Collector {
		return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "vector_index",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(index.Stats()) })
	}
	counter := func(name, help string, value func(vector.Stats) float64) prometheus.Collector {
		return prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "vector_index",
			Name:      name,
			Help:      help,
		}, func() float64 { return value(index.Stats()) })
	}
	m.registry.MustRegister(
		gauge("entries", "Vectors held by the index.", func(s vector.Stats) float64 { return float64(s.Count) }),
		gauge("pending_ops", "Adds not yet written to the snapshot.", func(s vector.Stats) float64 { return float64(s.PendingOps) }),
		gauge("last_flush_timestamp_seconds", "Unix time of the last successful snapshot write.", func(s vector.Stats) float64 {
			if s.LastFlush.IsZero() {
				return 0
			}
			return float64(s.LastFlush.UnixNano()) / 1e9
		}),
		counter("flushes_total", "Successful snapshot writes.", func(s vector.Stats) float64 { return float64(s.Flushes) }),
		counter("flush_failures_total", "Failed snapshot writes.", func(s vector.Stats) float64 { return float64(s.FlushFailures) }),
	)
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordPrompt counts one prompt service operation.
func (m *Metrics) RecordPrompt(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.prompts.WithLabelValues(op, status).Inc()
}

// Middleware records request counts and latency labelled by the matched chi route pattern,
// so path parameters do not explode label cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		code := ww.Status()
		if code == 0 {
			code = http.StatusOK
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(code)).Inc()
		m.latency.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}
