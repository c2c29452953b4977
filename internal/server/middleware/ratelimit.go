package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
)

// RateLimit returns an HTTP middleware that throttles all API traffic to the
// given number of requests per minute per client IP, using a sliding window.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

// LoginRateLimit returns the network-level brute-force defense for the login
// route: a sliding window of attempts per client IP. It is independent of
// the per-account lockout in the auth service; both are enforced.
func LoginRateLimit(attempts int, window time.Duration) func(http.Handler) http.Handler {
	return httprate.Limit(
		attempts,
		window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimited),
	)
}

func rateLimited(w http.ResponseWriter, r *http.Request) {
	writeAuthError(w, http.StatusTooManyRequests, service.ErrRateLimited)
}

// writeAuthError writes the standard error envelope. Lives here rather than
// in the handler package to avoid an import cycle.
func writeAuthError(w http.ResponseWriter, status int, err *service.AuthError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(model.ErrorResponse{
		Error: model.ErrorDetail{
			Status:  status,
			Code:    err.Code,
			Message: err.Message,
		},
	})
}
