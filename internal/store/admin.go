package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
)

// CreateAdmin inserts a new admin account. The ID, CreatedAt, and UpdatedAt
// fields are populated after a successful insert. Returns ErrDuplicate if
// the username is already taken.
func (s *Store) CreateAdmin(ctx context.Context, admin *model.Admin) error {
	now := time.Now().UTC()
	admin.CreatedAt = now
	admin.UpdatedAt = now

	const q = `INSERT INTO admins
		(username, password_hash, role, failed_attempts, is_active, created_at, updated_at)
		VALUES
		(:username, :password_hash, :role, :failed_attempts, :is_active, :created_at, :updated_at)`

	result, err := s.db.NamedExecContext(ctx, q, admin)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "unique") {
			return ErrDuplicate
		}
		return fmt.Errorf("insert admin: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get admin id: %w", err)
	}
	admin.ID = id
	return nil
}

// GetAdminByUsername returns an admin by exact username. Callers are expected
// to normalize the username (lowercase, trimmed) before lookup.
func (s *Store) GetAdminByUsername(ctx context.Context, username string) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, "SELECT * FROM admins WHERE username = ?", username); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by username: %w", err)
	}
	return &admin, nil
}

// GetAdminByID returns an admin by primary key.
func (s *Store) GetAdminByID(ctx context.Context, id int64) (*model.Admin, error) {
	var admin model.Admin
	if err := s.db.GetContext(ctx, &admin, "SELECT * FROM admins WHERE id = ?", id); err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get admin by id: %w", err)
	}
	return &admin, nil
}

// ListAdmins returns all admin accounts ordered by username.
func (s *Store) ListAdmins(ctx context.Context) ([]model.Admin, error) {
	var admins []model.Admin
	if err := s.db.SelectContext(ctx, &admins, "SELECT * FROM admins ORDER BY username"); err != nil {
		return nil, fmt.Errorf("list admins: %w", err)
	}
	return admins, nil
}

// HasAnyAdmin reports whether at least one admin account exists. Used for
// first-run detection to nudge the operator toward `logosauth admin create`.
func (s *Store) HasAnyAdmin(ctx context.Context) (bool, error) {
	var count int
	if err := s.db.GetContext(ctx, &count, "SELECT COUNT(*) FROM admins"); err != nil {
		return false, fmt.Errorf("count admins: %w", err)
	}
	return count > 0, nil
}

// IncrementFailedAttempts atomically bumps the failed-attempt counter and
// returns the new value. The increment happens inside the database so two
// concurrent wrong-password attempts can never both observe the same count
// and lose an increment.
func (s *Store) IncrementFailedAttempts(ctx context.Context, id int64) (int, error) {
	var attempts int
	err := s.db.GetContext(ctx, &attempts,
		`UPDATE admins SET failed_attempts = failed_attempts + 1, updated_at = ?
		 WHERE id = ? RETURNING failed_attempts`, time.Now().UTC(), id)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment failed attempts: %w", err)
	}
	return attempts, nil
}

// SetLockout locks the account until the given instant.
func (s *Store) SetLockout(ctx context.Context, id int64, until time.Time) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET locked_until = ?, updated_at = ? WHERE id = ?",
		until.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set lockout: %w", err)
	}
	return checkAffected(result)
}

// ResetLockout clears the failed-attempt counter and any lock.
func (s *Store) ResetLockout(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET failed_attempts = 0, locked_until = NULL, updated_at = ? WHERE id = ?",
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reset lockout: %w", err)
	}
	return checkAffected(result)
}

// RecordLogin resets the lockout state and stamps last_login_at in one
// statement, applied on every successful authentication.
func (s *Store) RecordLogin(ctx context.Context, id int64, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE admins SET failed_attempts = 0, locked_until = NULL,
		 last_login_at = ?, updated_at = ? WHERE id = ?`,
		at.UTC(), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	return checkAffected(result)
}

// UpdatePasswordHash replaces the stored password hash.
func (s *Store) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET password_hash = ?, updated_at = ? WHERE id = ?",
		hash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}
	return checkAffected(result)
}

// SetAdminActive flips the soft-delete flag. Admins are never hard-deleted.
func (s *Store) SetAdminActive(ctx context.Context, id int64, active bool) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE admins SET is_active = ?, updated_at = ? WHERE id = ?",
		active, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("set admin active: %w", err)
	}
	return checkAffected(result)
}

func checkAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
