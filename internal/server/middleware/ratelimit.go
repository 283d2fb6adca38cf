package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/Heidric/digest.git/internal/customerrors"
	"github.com/Heidric/digest.git/internal/metrics"
)

// RateLimit rejects requests with 429 once the limiter runs out of tokens.
// A nil limiter disables limiting.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				metrics.RateLimited.Inc()
				customerrors.WriteError(w, http.StatusTooManyRequests, "")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
