package handler

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
)

// writeJSON serializes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope with a stable code.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{
		Error: model.ErrorDetail{
			Status:  status,
			Code:    code,
			Message: message,
		},
	})
}

// writeAuthError maps a service failure to its HTTP response. Typed
// *AuthError values carry their stable code to the client; anything else is
// an internal store failure and surfaces as a generic 500 so no persistence
// details leak.
func writeAuthError(w http.ResponseWriter, err error) {
	var authErr *service.AuthError
	if errors.As(err, &authErr) {
		writeError(w, statusFor(authErr.Code), authErr.Code, authErr.Message)
		return
	}
	writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func statusFor(code string) int {
	switch code {
	case service.CodeInvalidCredentials, service.CodeNoToken,
		service.CodeTokenExpired, service.CodeTokenRevoked:
		return http.StatusUnauthorized
	case service.CodeAccountLocked:
		return http.StatusLocked
	case service.CodeAccountDisabled, service.CodeTokenInvalid, service.CodeForbidden:
		return http.StatusForbidden
	case service.CodeValidationFailed:
		return http.StatusBadRequest
	case service.CodeRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// clampInt constrains val to be within [min, max].
func clampInt(val, min, max int) int {
	if val < min {
		return min
	}
	if val > max {
		return max
	}
	return val
}

// clientIP returns the caller address for audit entries. RemoteAddr has
// already been rewritten by the RealIP middleware when forwarding headers
// are present.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
