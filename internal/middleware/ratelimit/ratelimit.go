package ratelimit

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/httprate"

	"lendbook/internal/httpx"
	"lendbook/internal/log"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{RequestsPerMinute: 60}
}

// Limiter is a per-client-IP limiter that answers rejected requests with a
// problem document and counts them.
type Limiter struct {
	limit    int
	handler  func(http.Handler) http.Handler
	rejected atomic.Int64
}

// NewLimiter creates a new rate limiter
func NewLimiter(config Config) *Limiter {
	if config.RequestsPerMinute <= 0 {
		config = DefaultConfig()
	}
	l := &Limiter{limit: config.RequestsPerMinute}
	l.handler = httprate.Limit(config.RequestsPerMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(l.reject),
	)
	return l
}

// Middleware returns the HTTP middleware function
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return l.handler(next)
}

// Limit is the number of requests allowed per client per minute.
func (l *Limiter) Limit() int {
	return l.limit
}

// Rejected returns how many requests were refused so far.
func (l *Limiter) Rejected() int64 {
	return l.rejected.Load()
}

func (l *Limiter) reject(w http.ResponseWriter, r *http.Request) {
	l.rejected.Add(1)
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, r.RemoteAddr)
	httpx.WriteProblem(w, httpx.ProblemDetail{
		Status: http.StatusTooManyRequests,
		Detail: "Rate limit exceeded. Please try again later.",
	})
}
