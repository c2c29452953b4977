package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
)

type contextKeyAuth string

// AuthPrincipalKey is the context key for the authenticated principal.
const AuthPrincipalKey contextKeyAuth = "auth_principal"

// AuthCookieName is the cookie carrying the access token for browser
// clients that cannot set an Authorization header.
const AuthCookieName = "auth_token"

// Principal is the verified identity making the request.
type Principal struct {
	AdminID  int64
	Username string
	Role     string
}

// IsAdmin reports whether the principal carries the admin role.
func (p *Principal) IsAdmin() bool {
	return p != nil && p.Role == model.RoleAdmin
}

// Authenticate returns an HTTP middleware that extracts a bearer credential
// from the Authorization header or the auth_token cookie and verifies it
// statelessly. A missing credential fails with 401 NO_TOKEN; an expired
// token fails with 401 TOKEN_EXPIRED so clients know to attempt a refresh;
// any other verification failure is 403 TOKEN_INVALID.
//
// On success a Principal is attached to the request context.
func Authenticate(tokens *service.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractBearer(r)
			if token == "" {
				writeAuthError(w, http.StatusUnauthorized, service.ErrNoToken)
				return
			}

			claims, err := tokens.VerifyAccessToken(token)
			if err != nil {
				if authErr, ok := err.(*service.AuthError); ok && authErr.Code == service.CodeTokenExpired {
					writeAuthError(w, http.StatusUnauthorized, authErr)
					return
				}
				writeAuthError(w, http.StatusForbidden, service.ErrTokenInvalid)
				return
			}

			principal := &Principal{
				AdminID:  claims.AdminID(),
				Username: claims.Username,
				Role:     claims.Role,
			}
			ctx := context.WithValue(r.Context(), AuthPrincipalKey, principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAdmin returns an HTTP middleware that enforces the admin role.
// It must be used after Authenticate in the middleware chain. The token is
// valid at this point, so a role failure reports FORBIDDEN rather than a
// token error.
func RequireAdmin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !GetPrincipal(r.Context()).IsAdmin() {
				writeAuthError(w, http.StatusForbidden, service.ErrForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetPrincipal extracts the authenticated principal from the context.
// Returns nil for an unauthenticated request.
func GetPrincipal(ctx context.Context) *Principal {
	if p, ok := ctx.Value(AuthPrincipalKey).(*Principal); ok {
		return p
	}
	return nil
}

// ExtractBearer pulls the access token from the Authorization header or,
// failing that, from the auth cookie. Returns empty string when neither is
// present.
func ExtractBearer(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if c, err := r.Cookie(AuthCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	return ""
}
