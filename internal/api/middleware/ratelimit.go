package middleware

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/obbylee/chatify/internal/metrics"
	"github.com/obbylee/chatify/internal/store"
)

// RateLimit defines a fixed window limit for an endpoint pattern.
type RateLimit struct {
	Requests int64
	Window   time.Duration
}

// RateLimiter throttles credential-guessing endpoints per client IP.
// It stands where a managed bot-protection service would sit; when no
// Redis is configured the middleware is a pass-through.
type RateLimiter struct {
	redis  *store.RedisStore
	logger zerolog.Logger
	limits map[string]RateLimit
}

// NewRateLimiter creates a rate limiter for the auth endpoints.
func NewRateLimiter(redisStore *store.RedisStore, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		redis:  redisStore,
		logger: logger,
		limits: map[string]RateLimit{
			"POST /api/auth/register": {10, time.Hour},
			"POST /api/auth/login":    {20, time.Minute},
		},
	}
}

// Middleware enforces the configured limits.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.redis == nil {
			next.ServeHTTP(w, r)
			return
		}

		pattern := r.Method + " " + r.URL.Path
		limit, limited := rl.limits[pattern]
		if !limited {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.redis.IncrRateLimit(r.Context(), pattern, clientIP(r), limit.Window)
		if err != nil {
			// Redis trouble must not take the API down
			rl.logger.Warn().Err(err).Msg("rate limit check failed, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		if count > limit.Requests {
			metrics.RateLimitHits.WithLabelValues(pattern).Inc()
			jsonError(w, http.StatusTooManyRequests, "Too many requests, slow down")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	// chi's RealIP middleware rewrites RemoteAddr from proxy headers
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
