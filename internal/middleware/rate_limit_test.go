package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"bookswap/internal/testutil"
)

func TestRateLimiter_AllowsWithinBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 3)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		testutil.AssertStatusCode(t, w, http.StatusOK)
	}
}

func TestRateLimiter_RejectsOverBurst(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 2)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.2:1234"
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, req)
	}

	testutil.AssertStatusCode(t, last, http.StatusTooManyRequests)
	testutil.AssertContains(t, last.Body.String(), "Rate limit exceeded")
}

func TestRateLimiter_PerClientBuckets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 1)
	handler := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRequest(http.MethodGet, "/", nil)
	first.RemoteAddr = "10.0.0.3:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, first)
	testutil.AssertStatusCode(t, w, http.StatusOK)

	// A different client has its own bucket.
	second := httptest.NewRequest(http.MethodGet, "/", nil)
	second.RemoteAddr = "10.0.0.4:1234"
	w = httptest.NewRecorder()
	handler.ServeHTTP(w, second)
	testutil.AssertStatusCode(t, w, http.StatusOK)
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rl := NewRateLimiter(ctx, 1, 1)
	rl.getLimiter("stale-client")

	rl.mu.Lock()
	rl.limiters["stale-client"].lastAccess = time.Now().Add(-2 * limiterTTL)
	rl.mu.Unlock()

	rl.cleanup()

	rl.mu.RLock()
	_, exists := rl.limiters["stale-client"]
	rl.mu.RUnlock()
	testutil.AssertFalse(t, exists, "stale limiter should be evicted")
}
