package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/zcapi-go/zcapi/internal/web/ratelimit"
	"github.com/zcapi-go/zcapi/internal/web/response"
)

// ErrRateLimited is rendered when a client exceeds its request budget
var ErrRateLimited = errors.New("rate limit exceeded")

// KeyFunc extracts the rate limit key from a request
type KeyFunc func(r *http.Request) string

// IPKeyFunc keys requests by the remote IP address
func IPKeyFunc(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return "ip:" + r.RemoteAddr
	}
	return "ip:" + host
}

// RateLimit rejects requests beyond the limiter's budget with 429. When
// the limiter itself fails the request is let through and the failure is
// logged.
func RateLimit(limiter ratelimit.RateLimiter, keyFunc KeyFunc, logger *zap.Logger) Middleware {
	if keyFunc == nil {
		keyFunc = IPKeyFunc
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := keyFunc(r)
			info, err := limiter.Allow(r.Context(), key)
			if err != nil {
				logger.Warn("rate limiter unavailable",
					zap.String("request_id", GetRequestID(r.Context())),
					zap.String("key", key),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))

			if !info.Allowed {
				retry := int(time.Until(info.ResetAt).Seconds())
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				response.RenderError(w, http.StatusTooManyRequests, ErrRateLimited)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
