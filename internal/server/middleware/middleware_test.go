package middleware

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/service"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

type tokenFixture struct {
	st     *store.Store
	tokens *service.TokenService
	admin  *model.Admin
}

func newTokenFixture(t *testing.T) *tokenFixture {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	f := &tokenFixture{st: st}
	f.tokens = service.NewTokenService(st, service.DefaultTokenConfig("test-secret"),
		slog.New(slog.NewTextHandler(io.Discard, nil)))

	f.admin = &model.Admin{
		Username:     "admin",
		PasswordHash: "unused",
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := st.CreateAdmin(context.Background(), f.admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return f
}

func okHandler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := GetPrincipal(r.Context())
		if p == nil {
			t.Error("handler reached without a principal")
		}
		w.WriteHeader(http.StatusOK)
	})
}

func errorCode(t *testing.T, body io.Reader) string {
	t.Helper()
	var resp struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return resp.Error.Code
}

func TestAuthenticateBearerHeader(t *testing.T) {
	f := newTokenFixture(t)
	access, err := f.tokens.IssueAccessToken(f.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	var got *Principal
	handler := Authenticate(f.tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetPrincipal(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
	if got == nil || got.AdminID != f.admin.ID || got.Username != "admin" {
		t.Errorf("principal: got %+v", got)
	}
}

func TestAuthenticateCookie(t *testing.T) {
	f := newTokenFixture(t)
	access, err := f.tokens.IssueAccessToken(f.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	handler := Authenticate(f.tokens)(okHandler(t))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: AuthCookieName, Value: access})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rec.Code)
	}
}

func TestAuthenticateFailures(t *testing.T) {
	f := newTokenFixture(t)
	refresh, err := f.tokens.IssueRefreshToken(context.Background(), f.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	// A service with a negative TTL mints already-expired tokens that still
	// carry a valid signature.
	stale := service.NewTokenService(f.st, service.TokenConfig{
		Secret:     []byte("test-secret"),
		AccessTTL:  -time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	expired, err := stale.IssueAccessToken(f.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	cases := []struct {
		name       string
		setup      func(r *http.Request)
		wantStatus int
		wantCode   string
	}{
		{
			name:       "no credential",
			setup:      func(r *http.Request) {},
			wantStatus: http.StatusUnauthorized,
			wantCode:   service.CodeNoToken,
		},
		{
			name: "expired token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+expired)
			},
			wantStatus: http.StatusUnauthorized,
			wantCode:   service.CodeTokenExpired,
		},
		{
			name: "malformed token",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer garbage")
			},
			wantStatus: http.StatusForbidden,
			wantCode:   service.CodeTokenInvalid,
		},
		{
			name: "refresh token as bearer",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer "+refresh)
			},
			wantStatus: http.StatusForbidden,
			wantCode:   service.CodeTokenInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			handler := Authenticate(f.tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Error("handler must not be reached")
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
			if code := errorCode(t, rec.Body); code != tc.wantCode {
				t.Errorf("error code: got %q, want %q", code, tc.wantCode)
			}
		})
	}
}

func TestRequireAdmin(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := []struct {
		name       string
		principal  *Principal
		wantStatus int
	}{
		{"admin role", &Principal{AdminID: 1, Role: model.RoleAdmin}, http.StatusOK},
		{"other role", &Principal{AdminID: 1, Role: "viewer"}, http.StatusForbidden},
		{"no principal", nil, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.principal != nil {
				req = req.WithContext(context.WithValue(req.Context(), AuthPrincipalKey, tc.principal))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.wantStatus {
				t.Errorf("status: got %d, want %d", rec.Code, tc.wantStatus)
			}
			// A role failure on a valid token is labeled FORBIDDEN, not a
			// token error.
			if tc.wantStatus == http.StatusForbidden {
				if code := errorCode(t, rec.Body); code != service.CodeForbidden {
					t.Errorf("error code: got %q, want %q", code, service.CodeForbidden)
				}
			}
		})
	}
}

func TestRequestID(t *testing.T) {
	var captured string
	handler := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = GetRequestID(r.Context())
	}))

	// Generated when absent.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if captured == "" {
		t.Error("request id not generated")
	}
	if rec.Header().Get("X-Request-ID") != captured {
		t.Errorf("response header: got %q, want %q", rec.Header().Get("X-Request-ID"), captured)
	}

	// Passed through when the client provides one.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "client-supplied")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if captured != "client-supplied" {
		t.Errorf("request id: got %q, want %q", captured, "client-supplied")
	}
}
