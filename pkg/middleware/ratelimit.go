package middleware

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/verdantlabs/verdant/pkg/httputil"
)

// RateLimitConfig controls the fixed-window rate limiter.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per window per client IP.
	Limit int
	// Window is the length of the fixed window.
	Window time.Duration
	// Prefix namespaces the redis keys, e.g. "ratelimit:login".
	Prefix string
}

// RateLimit returns a fixed-window per-IP rate limiter backed by redis.
// Intended for credential endpoints (login, register) where unbounded
// guessing must be throttled. The limiter fails open: if redis is nil or
// unreachable the request proceeds and the error is logged.
func RateLimit(client *redis.Client, cfg RateLimitConfig, l *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if client == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := fmt.Sprintf("%s:%s", cfg.Prefix, ClientIP(r))

			count, err := client.Incr(r.Context(), key).Result()
			if err != nil {
				l.WarnContext(r.Context(), "rate limiter unavailable, allowing request",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if count == 1 {
				client.Expire(r.Context(), key, cfg.Window)
			}

			if count > int64(cfg.Limit) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
				httputil.WriteDetail(w, http.StatusTooManyRequests, "too many requests, try again later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the originating client address, preferring proxy headers
// over the raw connection address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		// First hop is the client.
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			return strings.TrimSpace(fwd[:i])
		}
		return strings.TrimSpace(fwd)
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
