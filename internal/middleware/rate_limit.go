package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// Maximum number of limiters to keep in memory
	maxLimiters = 10000
	// Time between cleanup passes
	cleanupInterval = 5 * time.Minute
	// Limiter is considered inactive if not used for this duration
	limiterTTL = 15 * time.Minute
)

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter provides per-IP rate limiting for HTTP requests with
// bounded memory
type RateLimiter struct {
	limiters map[string]*limiterEntry
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a rate limiter whose cleanup loop runs until ctx
// is cancelled
func NewRateLimiter(ctx context.Context, requestsPerSecond float64, burst int) *RateLimiter {
	rl := &RateLimiter{
		limiters: make(map[string]*limiterEntry),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}

	go rl.cleanupLoop(ctx)

	return rl
}

func (rl *RateLimiter) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup removes limiters that haven't been used recently, then evicts
// the oldest entries if the map is still over the cap
func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	for key, entry := range rl.limiters {
		if now.Sub(entry.lastAccess) > limiterTTL {
			delete(rl.limiters, key)
		}
	}

	for len(rl.limiters) > maxLimiters {
		var oldestKey string
		var oldestTime time.Time
		for k, e := range rl.limiters {
			if oldestKey == "" || e.lastAccess.Before(oldestTime) {
				oldestKey = k
				oldestTime = e.lastAccess
			}
		}
		delete(rl.limiters, oldestKey)
	}
}

// getLimiter returns the limiter for a key (usually an IP address),
// creating one on first use
func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.RLock()
	entry, exists := rl.limiters[key]
	rl.mu.RUnlock()

	if exists {
		rl.mu.Lock()
		entry.lastAccess = time.Now()
		rl.mu.Unlock()
		return entry.limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	// Double-check after acquiring write lock
	entry, exists = rl.limiters[key]
	if exists {
		entry.lastAccess = time.Now()
		return entry.limiter
	}

	entry = &limiterEntry{
		limiter:    rate.NewLimiter(rl.rate, rl.burst),
		lastAccess: time.Now(),
	}
	rl.limiters[key] = entry
	return entry.limiter
}

// Middleware returns a chi-compatible middleware function
func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := rl.getLimiter(r.RemoteAddr)

			if !limiter.Allow() {
				http.Error(w, `{"error":"Rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
