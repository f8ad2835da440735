package server

import (
	"fmt"
	"net"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"
)

// maxTrackedClients bounds the limiter table; the least recently seen client is evicted.
const maxTrackedClients = 10000

// clientLimiter keeps one token bucket per client IP, refilled at perMinute tokens a minute
// with a burst of perMinute.
type clientLimiter struct {
	perMinute int
	limiters  *lru.Cache[string, *rate.Limiter]
}

func newClientLimiter(perMinute int) *clientLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	limiters, _ := lru.New[string, *rate.Limiter](maxTrackedClients)
	return &clientLimiter{perMinute: perMinute, limiters: limiters}
}

func (c *clientLimiter) allow(client string) bool {
	lim, ok := c.limiters.Get(client)
	if !ok {
		lim = rate.NewLimiter(rate.Every(time.Minute/time.Duration(c.perMinute)), c.perMinute)
		// A concurrent first request may have added one already; keep whichever is stored.
		if prev, loaded, _ := c.limiters.PeekOrAdd(client, lim); loaded {
			lim = prev
		}
	}
	return lim.Allow()
}

// clientIP returns the request's IP. middleware.RealIP has already replaced RemoteAddr when a
// forwarding header was present.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr == "" {
		return "unknown"
	}
	return r.RemoteAddr
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.allow(clientIP(r)) {
			w.Header().Set("Retry-After", "60")
			s.respondError(w, http.StatusTooManyRequests, "Rate limit exceeded",
				fmt.Sprintf("Maximum %d requests per minute", s.limiter.perMinute), "RateLimitError")
			return
		}
		next.ServeHTTP(w, r)
	})
}
