package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"lendbook/internal/httpx"
)

func TestLimiterRejectsOverLimit(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 2})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report.pdf", nil))
		if rec.Code != http.StatusNoContent {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusNoContent)
		}
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/report.pdf", nil))
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if ct := rec.Header().Get("Content-Type"); ct != httpx.ProblemContentType {
		t.Errorf("Content-Type = %q, want %q", ct, httpx.ProblemContentType)
	}
	if l.Rejected() != 1 {
		t.Errorf("Rejected() = %d, want 1", l.Rejected())
	}
}

func TestLimiterKeysByClient(t *testing.T) {
	l := NewLimiter(Config{RequestsPerMinute: 1})
	h := l.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for _, addr := range []string{"10.0.0.1:5000", "10.0.0.2:5000"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Errorf("client %s: status = %d, want 200", addr, rec.Code)
		}
	}
}

func TestDefaultConfigOnInvalidLimit(t *testing.T) {
	if got := NewLimiter(Config{}).Limit(); got != DefaultConfig().RequestsPerMinute {
		t.Errorf("Limit() = %d, want %d", got, DefaultConfig().RequestsPerMinute)
	}
}
