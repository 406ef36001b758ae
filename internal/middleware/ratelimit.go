// Package middleware provides HTTP middleware for the lifecycle API.
package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/moonzip/launchd/internal/apperrors"
	"github.com/moonzip/launchd/internal/logging"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter enforces a per-caller request budget. When a Redis client is
// configured it uses a shared fixed-window counter so multiple API replicas
// agree on the limit; otherwise it falls back to an in-process
// map[string]*rate.Limiter, so a single instance still degrades gracefully
// if Redis is unavailable.
type RateLimiter struct {
	redis  *redis.Client
	logger *logging.Logger

	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

// NewRateLimiter creates a new rate limiter. redisClient may be nil, in
// which case the limiter runs purely in-process.
func NewRateLimiter(redisClient *redis.Client, requestsPerSecond int, burst int, logger *logging.Logger) *RateLimiter {
	return &RateLimiter{
		redis:    redisClient,
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists := rl.limiters[key]
	if !exists {
		limiter = rate.NewLimiter(rl.rate, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

// allow checks the shared Redis bucket first (if configured), falling back
// to the in-process limiter on any Redis error so a cache outage never
// blocks legitimate traffic.
func (rl *RateLimiter) allow(ctx context.Context, key string) bool {
	if rl.redis != nil {
		allowed, err := rl.allowRedis(ctx, key)
		if err == nil {
			return allowed
		}
		rl.logger.WithContext(ctx).WithError(err).Warn("rate limiter: redis unavailable, falling back to in-process bucket")
	}
	return rl.getLimiter(key).Allow()
}

// allowRedis implements a fixed-window counter keyed by second, incremented
// atomically and expired via TTL.
func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, error) {
	window := time.Now().Truncate(time.Second)
	redisKey := "ratelimit:" + key + ":" + window.Format(time.RFC3339)

	count, err := rl.redis.Incr(ctx, redisKey).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		rl.redis.Expire(ctx, redisKey, 2*time.Second)
	}
	return count <= int64(rl.burst), nil
}

// Handler returns the rate limiting middleware handler.
func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := GetUserID(r.Context())
		if key == "" {
			key = r.RemoteAddr
		}

		if !rl.allow(r.Context(), key) {
			rl.logger.LogSecurityEvent(r.Context(), "rate_limit_exceeded", map[string]interface{}{
				"key":    key,
				"path":   r.URL.Path,
				"method": r.Method,
			})

			serviceErr := apperrors.ResourceExhausted("rate limit exceeded, retry shortly", nil)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(serviceErr.HTTPStatus())
			_, _ = w.Write([]byte(`{"error":"rate limit exceeded"}`))
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Cleanup drops all in-process limiters once more than 10000 are held;
// called periodically so a long-running process doesn't grow the map
// unbounded.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if len(rl.limiters) > 10000 {
		rl.limiters = make(map[string]*rate.Limiter)
	}
}

// StartCleanup starts a background goroutine to periodically cleanup old limiters.
func (rl *RateLimiter) StartCleanup(interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			rl.Cleanup()
		}
	}()
}

type userIDKey struct{}

// GetUserID extracts the caller's wallet address from the request context,
// if the transport layer (out of scope for this repo, per spec §1) has
// already authenticated it.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithUserID attaches an authenticated caller identity to the context.
func WithUserID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userIDKey{}, id)
}
