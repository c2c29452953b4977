package service

import "fmt"

// Stable error codes surfaced to API clients. Clients branch on these, never
// on message text.
const (
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAccountLocked      = "ACCOUNT_LOCKED"
	CodeAccountDisabled    = "ACCOUNT_DISABLED"
	CodeNoToken            = "NO_TOKEN"
	CodeTokenExpired       = "TOKEN_EXPIRED"
	CodeTokenInvalid       = "TOKEN_INVALID"
	CodeTokenRevoked       = "TOKEN_REVOKED"
	CodeForbidden          = "FORBIDDEN"
	CodeValidationFailed   = "VALIDATION_FAILED"
	CodeRateLimited        = "RATE_LIMIT_EXCEEDED"
)

// AuthError is a typed authentication/authorization failure. Two AuthErrors
// match under errors.Is when their codes are equal, so callers compare
// against the sentinel values below regardless of the message carried.
type AuthError struct {
	Code    string
	Message string
}

func (e *AuthError) Error() string {
	return e.Message
}

// Is makes errors.Is match on the code, not the instance, so dynamically
// built errors (e.g. a lockout message with remaining minutes) still match
// their sentinel.
func (e *AuthError) Is(target error) bool {
	t, ok := target.(*AuthError)
	return ok && t.Code == e.Code
}

var (
	// ErrInvalidCredentials deliberately does not distinguish an unknown
	// username from a wrong password.
	ErrInvalidCredentials = &AuthError{Code: CodeInvalidCredentials, Message: "invalid username or password"}
	ErrAccountLocked      = &AuthError{Code: CodeAccountLocked, Message: "account is temporarily locked"}
	ErrAccountDisabled    = &AuthError{Code: CodeAccountDisabled, Message: "account is disabled"}
	ErrNoToken            = &AuthError{Code: CodeNoToken, Message: "authentication required"}
	ErrTokenExpired       = &AuthError{Code: CodeTokenExpired, Message: "token has expired"}
	ErrTokenInvalid       = &AuthError{Code: CodeTokenInvalid, Message: "token is invalid"}
	ErrTokenRevoked       = &AuthError{Code: CodeTokenRevoked, Message: "token has been revoked"}
	// ErrForbidden is an authorization failure on a valid token, e.g. a
	// non-admin role on an admin-only route.
	ErrForbidden        = &AuthError{Code: CodeForbidden, Message: "insufficient privileges"}
	ErrValidationFailed = &AuthError{Code: CodeValidationFailed, Message: "validation failed"}
	ErrRateLimited      = &AuthError{Code: CodeRateLimited, Message: "too many requests"}
)

// accountLocked builds an ACCOUNT_LOCKED error carrying the remaining lock
// time in minutes, rounded up.
func accountLocked(minutes int) *AuthError {
	return &AuthError{
		Code:    CodeAccountLocked,
		Message: fmt.Sprintf("account is locked, try again in %d minute(s)", minutes),
	}
}

// validationFailed builds a VALIDATION_FAILED error with a field-specific
// message.
func validationFailed(msg string) *AuthError {
	return &AuthError{Code: CodeValidationFailed, Message: msg}
}
