package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
)

// CreateRefreshToken inserts a new refresh-token record. The token_hash must
// already be set (use HashToken). The ID and CreatedAt fields are populated
// after insert.
func (s *Store) CreateRefreshToken(ctx context.Context, token *model.RefreshToken) error {
	token.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO refresh_tokens
		(admin_id, token_hash, expires_at, revoked, created_at)
		VALUES
		(:admin_id, :token_hash, :expires_at, :revoked, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, token)
	if err != nil {
		return fmt.Errorf("insert refresh token: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get refresh token id: %w", err)
	}
	token.ID = id
	return nil
}

// GetRefreshTokenByHash returns the refresh-token record for a raw token's
// hash, revoked or not. Callers decide what a revoked row means.
func (s *Store) GetRefreshTokenByHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	var token model.RefreshToken
	if err := s.db.GetContext(ctx, &token,
		"SELECT * FROM refresh_tokens WHERE token_hash = ?", hash); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get refresh token: %w", err)
	}
	return &token, nil
}

// RevokeRefreshToken flips the revoked flag on the row matching the hash.
// Revoking an already-revoked or unknown token is a no-op.
func (s *Store) RevokeRefreshToken(ctx context.Context, hash string) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE token_hash = ?", hash); err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

// RevokeAllRefreshTokens revokes every token owned by the admin. Idempotent.
func (s *Store) RevokeAllRefreshTokens(ctx context.Context, adminID int64) error {
	if _, err := s.db.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked = 1 WHERE admin_id = ?", adminID); err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes rows past their expiry and returns the
// number deleted. Routine cleanup, not a correctness requirement: expired
// rows already fail verification.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired rows affected: %w", err)
	}
	return n, nil
}
