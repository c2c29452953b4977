// Package handler implements the HTTP surface of the auth core.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/server/middleware"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

// RefreshCookieName is the cookie carrying the refresh token. The access
// token cookie name lives in the middleware package next to its reader.
const RefreshCookieName = "refresh_token"

// AuthHandler serves login, refresh, logout, and self-service endpoints.
type AuthHandler struct {
	store         *store.Store
	auth          *service.AuthService
	tokens        *service.TokenService
	accessTTL     time.Duration
	refreshTTL    time.Duration
	secureCookies bool
	logger        *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookies should be true in
// production so the cookie pair is only sent over TLS.
func NewAuthHandler(st *store.Store, auth *service.AuthService, tokens *service.TokenService, accessTTL, refreshTTL time.Duration, secureCookies bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:         st,
		auth:          auth,
		tokens:        tokens,
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		secureCookies: secureCookies,
		logger:        logger,
	}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int         `json:"expires_in"`
	User         model.Admin `json:"user"`
}

// Login authenticates an operator and returns an access/refresh token pair,
// duplicated into httpOnly cookies for browser clients.
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "username and password are required")
		return
	}

	admin, err := h.auth.Authenticate(r.Context(), req.Username, req.Password, clientIP(r), r.UserAgent())
	if err != nil {
		h.logFailure(r, "login failed", err)
		writeAuthError(w, err)
		return
	}

	access, err := h.tokens.IssueAccessToken(admin)
	if err != nil {
		h.logger.Error("issue access token", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	refresh, err := h.tokens.IssueRefreshToken(r.Context(), admin)
	if err != nil {
		h.logger.Error("issue refresh token", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	h.setAuthCookies(w, access, refresh)
	writeJSON(w, http.StatusOK, loginResponse{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "bearer",
		ExpiresIn:    int(h.accessTTL.Seconds()),
		User:         *admin,
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type refreshResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Refresh exchanges a still-valid refresh token (cookie or body) for a new
// access token. The refresh token itself is re-verified, not rotated.
// POST /api/v1/auth/refresh
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	refresh := h.refreshTokenFrom(r)
	if refresh == "" {
		writeError(w, http.StatusUnauthorized, service.CodeNoToken, "refresh token required")
		return
	}

	access, err := h.tokens.RotateAccessToken(r.Context(), refresh, clientIP(r), r.UserAgent())
	if err != nil {
		h.logFailure(r, "token refresh failed", err)
		writeAuthError(w, err)
		return
	}

	h.setAccessCookie(w, access)
	writeJSON(w, http.StatusOK, refreshResponse{
		AccessToken: access,
		TokenType:   "bearer",
		ExpiresIn:   int(h.accessTTL.Seconds()),
	})
}

// Logout revokes the presented refresh token and clears the cookie pair.
// Idempotent: logging out twice, or with no token at all, succeeds.
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if refresh := h.refreshTokenFrom(r); refresh != "" {
		// Resolve the owner before the row is revoked so the audit entry
		// names the actor. Unknown tokens revoke as a no-op and leave no
		// entry behind.
		record, lookupErr := h.store.GetRefreshTokenByHash(r.Context(), store.HashToken(refresh))
		if err := h.tokens.Revoke(r.Context(), refresh); err != nil {
			h.logger.Error("revoke refresh token", "error", err)
			writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		if lookupErr == nil {
			h.audit(r, record.AdminID, model.ActionLogout)
		}
	}
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// LogoutAll revokes every refresh token the caller owns, ending all of
// their sessions. Requires a valid access token.
// POST /api/v1/auth/logout-all
func (h *AuthHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	if err := h.tokens.RevokeAll(r.Context(), principal.AdminID); err != nil {
		h.logger.Error("revoke all refresh tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	h.audit(r, principal.AdminID, model.ActionLogoutAll)
	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Me returns the sanitized admin for a valid access token.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	admin, err := h.store.GetAdminByID(r.Context(), principal.AdminID)
	if err != nil {
		h.logger.Error("look up current admin", "error", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	writeJSON(w, http.StatusOK, admin.Sanitized())
}

type changePasswordRequest struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// ChangePassword verifies the old password, replaces the hash, and revokes
// every refresh token the caller owns.
// POST /api/v1/auth/password
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	principal := middleware.GetPrincipal(r.Context())

	var req changePasswordRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, service.CodeValidationFailed, "invalid request body")
		return
	}

	err := h.auth.ChangePassword(r.Context(), principal.AdminID, req.OldPassword, req.NewPassword, clientIP(r), r.UserAgent())
	if err != nil {
		h.logFailure(r, "password change failed", err)
		writeAuthError(w, err)
		return
	}

	h.clearAuthCookies(w)
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// refreshTokenFrom reads the refresh token from the cookie first, then the
// request body.
func (h *AuthHandler) refreshTokenFrom(r *http.Request) string {
	if c, err := r.Cookie(RefreshCookieName); err == nil && c.Value != "" {
		return c.Value
	}
	var req refreshRequest
	if err := readJSON(r, &req); err == nil {
		return req.RefreshToken
	}
	return ""
}

func (h *AuthHandler) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	h.setAccessCookie(w, access)
	http.SetCookie(w, &http.Cookie{
		Name:     RefreshCookieName,
		Value:    refresh,
		Path:     "/",
		MaxAge:   int(h.refreshTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) setAccessCookie(w http.ResponseWriter, access string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.AuthCookieName,
		Value:    access,
		Path:     "/",
		MaxAge:   int(h.accessTTL.Seconds()),
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{middleware.AuthCookieName, RefreshCookieName} {
		http.SetCookie(w, &http.Cookie{
			Name:     name,
			Value:    "",
			Path:     "/",
			MaxAge:   -1,
			HttpOnly: true,
			Secure:   h.secureCookies,
			SameSite: http.SameSiteStrictMode,
		})
	}
}

func (h *AuthHandler) audit(r *http.Request, adminID int64, action string) {
	entry := &model.AuditLogEntry{
		AdminID:   &adminID,
		Action:    action,
		IPAddress: clientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
	if err := h.store.AppendAuditEntry(r.Context(), entry); err != nil {
		h.logger.Error("audit write failed", "action", action, "error", err)
	}
}

// logFailure records the underlying cause server-side; the client only ever
// sees the stable code and message.
func (h *AuthHandler) logFailure(r *http.Request, msg string, err error) {
	h.logger.Warn(msg,
		"error", err,
		"remote_addr", r.RemoteAddr,
		"request_id", middleware.GetRequestID(r.Context()),
	)
}
