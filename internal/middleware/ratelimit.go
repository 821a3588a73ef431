package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/SmakGames/Companion/internal/ratelimit"
	"github.com/SmakGames/Companion/pkg/clientip"
)

const (
	// GlobalRateLimitWindow bounds bursts of requests per IP across the API.
	GlobalRateLimitWindow = 2 * time.Minute
	// GlobalRateLimitMax is the per-IP request budget inside one window.
	GlobalRateLimitMax = 100

	globalLimitKind = "http"
)

// GlobalRateLimit applies a per-IP fixed-window limit on every request.
// If the counter store fails, the request is allowed (fail open).
func GlobalRateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientip.FromRequest(r)

			allowed, attempts, err := limiter.Allow(r.Context(), globalLimitKind, ip)
			if err != nil {
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(fmt.Sprintf(
					`{"success":false,"message":"Rate limit exceeded. Please try again later.","retry_after":%d}`,
					int(GlobalRateLimitWindow.Seconds()))))
				return
			}

			remaining := int64(GlobalRateLimitMax) - attempts
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(GlobalRateLimitMax))
			w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

			next.ServeHTTP(w, r)
		})
	}
}
