package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"lendbook/internal/log"
)

// Metrics tracks request metrics
type Metrics struct {
	TotalRequests       int64
	ServerErrors        int64
	AverageResponseTime int64 // in microseconds
}

// Middleware logs the start and completion of every request and keeps
// running counters. It expects chi's RequestID and RealIP to run first.
type Middleware struct {
	total        atomic.Int64
	serverErrors atomic.Int64
	totalMicros  atomic.Int64
}

// NewMiddleware creates a new trace middleware
func NewMiddleware() *Middleware {
	return &Middleware{}
}

// Middleware returns HTTP middleware for request tracing
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx := r.Context()
		logger := log.NewStructuredLogger(log.FromContext(ctx))
		clientIP := r.RemoteAddr

		logger.LogHTTPStart(ctx, r, clientIP)
		m.total.Add(1)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		if status >= 500 {
			m.serverErrors.Add(1)
		}
		duration := time.Since(start)
		m.totalMicros.Add(duration.Microseconds())

		logger.LogHTTPEnd(ctx, r, status, duration.Milliseconds(), clientIP)
	})
}

// GetRequestID extracts the request ID chi stored in the context
func GetRequestID(ctx context.Context) string {
	return middleware.GetReqID(ctx)
}

// RequestID is GetRequestID for a request, in the shape log.RequestIDMiddleware takes.
func RequestID(r *http.Request) string {
	return GetRequestID(r.Context())
}

// GetMetrics returns current metrics
func (m *Middleware) GetMetrics() Metrics {
	total := m.total.Load()
	metrics := Metrics{
		TotalRequests: total,
		ServerErrors:  m.serverErrors.Load(),
	}
	if total > 0 {
		metrics.AverageResponseTime = m.totalMicros.Load() / total
	}
	return metrics
}
