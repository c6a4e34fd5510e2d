package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consentd/internal/ratelimit/models"
)

type stubLimiter struct {
	result *models.RateLimitResult
	err    error
	calls  int
	ip     string
}

func (l *stubLimiter) CheckIP(_ context.Context, ip, _ string) (*models.RateLimitResult, error) {
	l.calls++
	l.ip = ip
	return l.result, l.err
}

func serve(t *testing.T, m *Middleware, method string) (*httptest.ResponseRecorder, bool) {
	t.Helper()
	reached := false
	h := m.RateLimit("consent")(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		reached = true
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(method, "/api/consent-record", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w, reached
}

func TestRateLimit(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	resetAt := time.Date(2026, 6, 15, 10, 1, 0, 0, time.UTC)

	t.Run("allowed request gets headers", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: true, Limit: 100, Remaining: 99, ResetAt: resetAt}}
		w, reached := serve(t, New(limiter, logger), http.MethodPost)

		assert.True(t, reached)
		assert.Equal(t, "203.0.113.7", limiter.ip)
		assert.Equal(t, "100", w.Header().Get("X-RateLimit-Limit"))
		assert.Equal(t, "99", w.Header().Get("X-RateLimit-Remaining"))
		assert.Equal(t, "1781517660", w.Header().Get("X-RateLimit-Reset"))
	})

	t.Run("rejected request gets 429 envelope", func(t *testing.T) {
		limiter := &stubLimiter{result: &models.RateLimitResult{Allowed: false, Limit: 100, ResetAt: resetAt, RetryAfter: 42}}
		w, reached := serve(t, New(limiter, logger), http.MethodPost)

		assert.False(t, reached)
		require.Equal(t, http.StatusTooManyRequests, w.Code)
		assert.Equal(t, "42", w.Header().Get("Retry-After"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, false, body["success"])
		assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["code"])
		assert.NotEmpty(t, body["error"])
	})

	t.Run("store failure fails open", func(t *testing.T) {
		limiter := &stubLimiter{err: errors.New("redis down")}
		w, reached := serve(t, New(limiter, logger), http.MethodPost)
		assert.True(t, reached)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("disabled skips the limiter", func(t *testing.T) {
		limiter := &stubLimiter{}
		_, reached := serve(t, New(limiter, logger, WithDisabled(true)), http.MethodPost)
		assert.True(t, reached)
		assert.Zero(t, limiter.calls)
	})

	t.Run("preflight is never limited", func(t *testing.T) {
		limiter := &stubLimiter{}
		_, reached := serve(t, New(limiter, logger), http.MethodOptions)
		assert.True(t, reached)
		assert.Zero(t, limiter.calls)
	})
}
