package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

const (
	tokenIssuer   = "logos-auth"
	tokenAudience = "logos-admin"

	tokenTypeRefresh = "refresh"
)

// TokenConfig holds the token-issuance policy.
type TokenConfig struct {
	Secret     []byte
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

// DefaultTokenConfig returns the production TTL defaults. The secret must
// still be provided by the caller.
func DefaultTokenConfig(secret string) TokenConfig {
	return TokenConfig{
		Secret:     []byte(secret),
		AccessTTL:  24 * time.Hour,
		RefreshTTL: 7 * 24 * time.Hour,
	}
}

// AccessClaims is the payload carried by access tokens. TokenType stays
// empty for access tokens and is "refresh" for refresh tokens, which lets
// verification reject a refresh token presented as a bearer credential.
type AccessClaims struct {
	Username  string `json:"username,omitempty"`
	Role      string `json:"role,omitempty"`
	TokenType string `json:"token_type,omitempty"`
	jwt.RegisteredClaims
}

// AdminID returns the subject claim as the owning admin's ID.
func (c *AccessClaims) AdminID() int64 {
	id, _ := strconv.ParseInt(c.Subject, 10, 64)
	return id
}

// TokenService issues and verifies the two-tier bearer credentials and owns
// the RefreshToken lifecycle: persistence, rotation checks, revocation, and
// expired-row cleanup.
type TokenService struct {
	store  *store.Store
	cfg    TokenConfig
	logger *slog.Logger

	now func() time.Time // injectable for simulated-clock tests
}

// NewTokenService creates a TokenService signing with an HS256 server-side
// secret.
func NewTokenService(st *store.Store, cfg TokenConfig, logger *slog.Logger) *TokenService {
	return &TokenService{
		store:  st,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
	}
}

// IssueAccessToken signs a short-lived token carrying the admin's identity
// and role. Stateless: nothing is persisted.
func (s *TokenService) IssueAccessToken(admin *model.Admin) (string, error) {
	now := s.now()
	claims := AccessClaims{
		Username: admin.Username,
		Role:     admin.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(admin.ID, 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.AccessTTL)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
}

// IssueRefreshToken signs a long-lived refresh token and persists its
// SHA-256 hash with the expiry. The raw token is returned exactly once and
// never stored.
func (s *TokenService) IssueRefreshToken(ctx context.Context, admin *model.Admin) (string, error) {
	now := s.now()
	expiresAt := now.Add(s.cfg.RefreshTTL)
	claims := AccessClaims{
		TokenType: tokenTypeRefresh,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(admin.ID, 10),
			Issuer:    tokenIssuer,
			Audience:  jwt.ClaimStrings{tokenAudience},
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("sign refresh token: %w", err)
	}

	record := &model.RefreshToken{
		AdminID:   admin.ID,
		TokenHash: store.HashToken(raw),
		ExpiresAt: expiresAt.UTC(),
	}
	if err := s.store.CreateRefreshToken(ctx, record); err != nil {
		return "", fmt.Errorf("persist refresh token: %w", err)
	}
	return raw, nil
}

// VerifyAccessToken checks signature, issuer, audience, and expiry without
// consulting the store. Expired tokens fail with ErrTokenExpired so clients
// know to attempt a refresh; every other failure is ErrTokenInvalid.
func (s *TokenService) VerifyAccessToken(tokenStr string) (*AccessClaims, error) {
	claims, err := s.parse(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.TokenType == tokenTypeRefresh {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// RotateAccessToken exchanges a still-valid refresh token for a fresh access
// token. The refresh token is re-verified against the store but not itself
// rotated. Absent, revoked, and expired refresh tokens all fail with
// ErrTokenRevoked: TOKEN_EXPIRED tells clients to attempt a refresh, which
// is not useful guidance on the refresh path itself.
func (s *TokenService) RotateAccessToken(ctx context.Context, refreshToken, ip, userAgent string) (string, error) {
	claims, err := s.parse(refreshToken)
	if err != nil {
		if errors.Is(err, ErrTokenExpired) {
			err = ErrTokenRevoked
		}
		s.audit(ctx, nil, ip, userAgent, false, "refresh token rejected")
		return "", err
	}
	if claims.TokenType != tokenTypeRefresh {
		s.audit(ctx, nil, ip, userAgent, false, "not a refresh token")
		return "", ErrTokenInvalid
	}

	adminID := claims.AdminID()

	record, err := s.store.GetRefreshTokenByHash(ctx, store.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit(ctx, &adminID, ip, userAgent, false, "refresh token unknown")
			return "", ErrTokenRevoked
		}
		return "", fmt.Errorf("look up refresh token: %w", err)
	}
	if !record.Usable(s.now()) {
		s.audit(ctx, &adminID, ip, userAgent, false, "refresh token revoked or expired")
		return "", ErrTokenRevoked
	}

	admin, err := s.store.GetAdminByID(ctx, record.AdminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrTokenRevoked
		}
		return "", fmt.Errorf("look up token owner: %w", err)
	}
	if !admin.IsActive {
		s.audit(ctx, &admin.ID, ip, userAgent, false, "account disabled")
		return "", ErrAccountDisabled
	}

	access, err := s.IssueAccessToken(admin)
	if err != nil {
		return "", fmt.Errorf("issue access token: %w", err)
	}
	s.audit(ctx, &admin.ID, ip, userAgent, true, "")
	return access, nil
}

// Revoke invalidates a single refresh token, e.g. on logout. Unknown or
// already-revoked tokens are a no-op, making logout idempotent.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	return s.store.RevokeRefreshToken(ctx, store.HashToken(refreshToken))
}

// RevokeAll invalidates every refresh token the admin owns. Idempotent.
func (s *TokenService) RevokeAll(ctx context.Context, adminID int64) error {
	return s.store.RevokeAllRefreshTokens(ctx, adminID)
}

// PurgeExpired deletes refresh-token rows past their expiry and returns the
// number removed.
func (s *TokenService) PurgeExpired(ctx context.Context) (int64, error) {
	return s.store.DeleteExpiredRefreshTokens(ctx, s.now())
}

// StartSweep runs PurgeExpired on the given interval until ctx is cancelled.
// The sweep is routine cleanup independent of request handling.
func (s *TokenService) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.PurgeExpired(ctx)
				if err != nil {
					s.logger.Error("token sweep failed", "error", err)
					continue
				}
				if n > 0 {
					s.logger.Info("token sweep removed expired tokens", "count", n)
				}
			}
		}
	}()
}

// parse verifies signature, issuer, audience, and time claims using the
// service clock.
func (s *TokenService) parse(tokenStr string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.cfg.Secret, nil
		},
		jwt.WithIssuer(tokenIssuer),
		jwt.WithAudience(tokenAudience),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	if !token.Valid {
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

func (s *TokenService) audit(ctx context.Context, adminID *int64, ip, userAgent string, success bool, details string) {
	entry := &model.AuditLogEntry{
		AdminID:   adminID,
		Action:    model.ActionTokenRefresh,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		Details:   details,
	}
	if err := s.store.AppendAuditEntry(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", model.ActionTokenRefresh, "error", err)
	}
}
