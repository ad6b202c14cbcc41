package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/offerdesk/tracker/internal/cache"
)

// TrackLimiter consumes a token for a client IP.
type TrackLimiter interface {
	CheckTrackRateLimit(ctx context.Context, ip string, ratePerSecond, burst int) *cache.RateLimitResult
}

// RateLimitConfig holds configuration for the tracking rate limiter.
type RateLimitConfig struct {
	Logger  *slog.Logger
	Limiter TrackLimiter
	Enabled bool
	RPS     int // Requests per second
	Burst   int
}

// RateLimitTrack returns middleware that rate limits tracking requests per client IP.
// Rejected requests get 429 and never reach the coordinator, so no click is recorded.
func RateLimitTrack(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if !cfg.Enabled || cfg.Limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			result := cfg.Limiter.CheckTrackRateLimit(r.Context(), ip, cfg.RPS, cfg.Burst)

			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))

			if !result.Allowed {
				cfg.Logger.Warn("rate limit exceeded",
					slog.String("type", "track"),
					slog.String("endpoint", r.Method+" "+r.URL.Path),
					slog.Int64("retry_after_seconds", int64(result.RetryAfter.Seconds())),
					slog.String("request_id", GetRequestID(r.Context())),
				)

				w.Header().Set("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())))
				writeRateLimitError(w, result.RetryAfter)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// writeRateLimitError writes a 429 Too Many Requests response.
func writeRateLimitError(w http.ResponseWriter, retryAfter time.Duration) {
	writeError(w, http.StatusTooManyRequests, "RATE_LIMITED",
		fmt.Sprintf("Rate limit exceeded. Retry after %d seconds.", int(retryAfter.Seconds())))
}

// ClientIP extracts the client IP from the request.
// Proxy headers are checked in order: X-Forwarded-For (first hop),
// X-Real-IP, CF-Connecting-IP. RemoteAddr is the fallback.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	if cf := strings.TrimSpace(r.Header.Get("CF-Connecting-IP")); cf != "" {
		return cf
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
