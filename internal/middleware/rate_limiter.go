package middleware

import (
	"fmt"
	"net"
	"net/http"
	"time"

	"zudlik/internal/cache"
	"zudlik/internal/contextutils"

	"go.uber.org/zap"
)

// RateLimitConfig tunes the fixed-window request limiter.
type RateLimitConfig struct {
	Requests int           `json:"requests"`
	Window   time.Duration `json:"window"`
}

// DefaultRateLimitConfig allows 120 requests per minute per client.
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		Requests: 120,
		Window:   time.Minute,
	}
}

// RateLimit counts requests per client in fixed windows backed by the shared
// cache. Authenticated clients are keyed by user id, anonymous ones by
// remote address. A counter failure lets the request through; the limiter
// degrades open rather than taking the API down with the cache.
func RateLimit(cacheInstance cache.Cache, config *RateLimitConfig, logger *zap.Logger) Middleware {
	if config == nil {
		config = DefaultRateLimitConfig()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := bucketKey(r, config.Window)
			count, err := cacheInstance.Increment(r.Context(), key, 1, config.Window)
			if err != nil {
				logger.Warn("rate limit counter failed", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			if count > int64(config.Requests) {
				logger.Warn("rate limit exceeded",
					zap.String("key", key),
					zap.Int64("count", count),
				)
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(config.Window.Seconds())))
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"success":false,"error":{"type":"RATE_LIMIT","message":"too many requests"}}`))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bucketKey(r *http.Request, window time.Duration) string {
	client := clientIdentity(r)
	bucket := time.Now().Unix() / int64(window.Seconds())
	return fmt.Sprintf("ratelimit:%s:%d", client, bucket)
}

func clientIdentity(r *http.Request) string {
	if userID := contextutils.GetUserID(r.Context()); userID != 0 {
		return fmt.Sprintf("user:%d", userID)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "ip:" + host
}
