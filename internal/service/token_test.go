package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

type tokenEnv struct {
	st     *store.Store
	tokens *TokenService
	clock  time.Time
	admin  *model.Admin
}

func newTokenEnv(t *testing.T) *tokenEnv {
	t.Helper()
	st, err := store.New("")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	env := &tokenEnv{
		st:    st,
		clock: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	env.tokens = NewTokenService(st, DefaultTokenConfig("test-secret"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	env.tokens.now = func() time.Time { return env.clock }

	hash, err := HashPassword("Secret123")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	env.admin = &model.Admin{
		Username:     "admin",
		PasswordHash: hash,
		Role:         model.RoleAdmin,
		IsActive:     true,
	}
	if err := st.CreateAdmin(context.Background(), env.admin); err != nil {
		t.Fatalf("CreateAdmin: %v", err)
	}
	return env
}

func TestAccessTokenRoundTrip(t *testing.T) {
	env := newTokenEnv(t)

	access, err := env.tokens.IssueAccessToken(env.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	claims, err := env.tokens.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	if claims.AdminID() != env.admin.ID {
		t.Errorf("admin id: got %d, want %d", claims.AdminID(), env.admin.ID)
	}
	if claims.Username != "admin" {
		t.Errorf("username: got %q", claims.Username)
	}
	if claims.Role != model.RoleAdmin {
		t.Errorf("role: got %q", claims.Role)
	}
}

func TestAccessTokenExpiry(t *testing.T) {
	env := newTokenEnv(t)

	access, err := env.tokens.IssueAccessToken(env.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	env.clock = env.clock.Add(25 * time.Hour)

	if _, err := env.tokens.VerifyAccessToken(access); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expired access token: got %v, want ErrTokenExpired", err)
	}
}

func TestVerifyRejectsGarbageAndWrongKey(t *testing.T) {
	env := newTokenEnv(t)

	if _, err := env.tokens.VerifyAccessToken("not-a-jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("garbage token: got %v, want ErrTokenInvalid", err)
	}

	other := NewTokenService(env.st, DefaultTokenConfig("other-secret"), env.tokens.logger)
	other.now = env.tokens.now
	foreign, err := other.IssueAccessToken(env.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := env.tokens.VerifyAccessToken(foreign); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("wrong signing key: got %v, want ErrTokenInvalid", err)
	}
}

func TestVerifyRejectsRefreshToken(t *testing.T) {
	env := newTokenEnv(t)

	refresh, err := env.tokens.IssueRefreshToken(context.Background(), env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if _, err := env.tokens.VerifyAccessToken(refresh); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("refresh token as bearer: got %v, want ErrTokenInvalid", err)
	}
}

func TestRotateAccessToken(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	refresh, err := env.tokens.IssueRefreshToken(ctx, env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	// Access token expired, refresh token still inside its window.
	env.clock = env.clock.Add(25 * time.Hour)

	access, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent")
	if err != nil {
		t.Fatalf("RotateAccessToken: %v", err)
	}
	claims, err := env.tokens.VerifyAccessToken(access)
	if err != nil {
		t.Fatalf("VerifyAccessToken on rotated token: %v", err)
	}
	if claims.AdminID() != env.admin.ID {
		t.Errorf("admin id: got %d, want %d", claims.AdminID(), env.admin.ID)
	}

	// The same refresh token stays valid for further rotations.
	if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); err != nil {
		t.Errorf("second rotation: %v", err)
	}
}

func TestRotateRejectsAccessToken(t *testing.T) {
	env := newTokenEnv(t)

	access, err := env.tokens.IssueAccessToken(env.admin)
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if _, err := env.tokens.RotateAccessToken(context.Background(), access, "203.0.113.9", "test-agent"); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("access token presented for rotation: got %v, want ErrTokenInvalid", err)
	}
}

func TestRotateAfterRevoke(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	refresh, err := env.tokens.IssueRefreshToken(ctx, env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if err := env.tokens.Revoke(ctx, refresh); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("rotate revoked token: got %v, want ErrTokenRevoked", err)
	}

	// Revoking again is a no-op.
	if err := env.tokens.Revoke(ctx, refresh); err != nil {
		t.Errorf("second Revoke: %v", err)
	}
}

func TestRotateAfterRefreshExpiry(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	refresh, err := env.tokens.IssueRefreshToken(ctx, env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	env.clock = env.clock.Add(8 * 24 * time.Hour)

	// An expired refresh token is as unusable as a revoked one and reports
	// the same code, never TOKEN_EXPIRED.
	if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); !errors.Is(err, ErrTokenRevoked) {
		t.Fatalf("rotate expired refresh token: got %v, want ErrTokenRevoked", err)
	}
	if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); errors.Is(err, ErrTokenExpired) {
		t.Fatal("rotate must not surface TOKEN_EXPIRED for a refresh token")
	}
}

func TestRevokeAll(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	var issued []string
	for i := 0; i < 3; i++ {
		refresh, err := env.tokens.IssueRefreshToken(ctx, env.admin)
		if err != nil {
			t.Fatalf("IssueRefreshToken: %v", err)
		}
		issued = append(issued, refresh)
	}

	if err := env.tokens.RevokeAll(ctx, env.admin.ID); err != nil {
		t.Fatalf("RevokeAll: %v", err)
	}
	for i, refresh := range issued {
		if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); !errors.Is(err, ErrTokenRevoked) {
			t.Errorf("token %d after RevokeAll: got %v, want ErrTokenRevoked", i, err)
		}
	}
}

func TestRotateDisabledOwner(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	refresh, err := env.tokens.IssueRefreshToken(ctx, env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	if err := env.st.SetAdminActive(ctx, env.admin.ID, false); err != nil {
		t.Fatalf("SetAdminActive: %v", err)
	}

	if _, err := env.tokens.RotateAccessToken(ctx, refresh, "203.0.113.9", "test-agent"); !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("disabled owner: got %v, want ErrAccountDisabled", err)
	}
}

func TestPurgeExpired(t *testing.T) {
	env := newTokenEnv(t)
	ctx := context.Background()

	if _, err := env.tokens.IssueRefreshToken(ctx, env.admin); err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}
	env.clock = env.clock.Add(4 * 24 * time.Hour)
	live, err := env.tokens.IssueRefreshToken(ctx, env.admin)
	if err != nil {
		t.Fatalf("IssueRefreshToken: %v", err)
	}

	// First token is past its expiry, the second is not.
	env.clock = env.clock.Add(4 * 24 * time.Hour)

	n, err := env.tokens.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("PurgeExpired: %v", err)
	}
	if n != 1 {
		t.Errorf("purged: got %d, want 1", n)
	}

	if _, err := env.tokens.RotateAccessToken(ctx, live, "203.0.113.9", "test-agent"); err != nil {
		t.Errorf("live token after purge: %v", err)
	}
}
