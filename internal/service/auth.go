// Package service implements the authentication and token services on top of
// the store: credential verification with per-account lockout, password
// management, JWT issuance and rotation, and audit logging.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
	"github.com/Trinity-Studio-01/logos-auth/internal/store"
)

// AuthConfig holds the account-level security policy.
type AuthConfig struct {
	LockoutThreshold  int           // failed attempts before the account locks
	LockoutDuration   time.Duration // how long a lock lasts
	PasswordMinLength int
	FailDelay         time.Duration // minimum response time on the unknown-user path
}

// DefaultAuthConfig returns the production policy defaults.
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		LockoutThreshold:  5,
		LockoutDuration:   15 * time.Minute,
		PasswordMinLength: 8,
		FailDelay:         500 * time.Millisecond,
	}
}

// TokenRevoker revokes issued refresh tokens. Implemented by TokenService;
// the auth service uses it to force re-authentication after a password
// change.
type TokenRevoker interface {
	RevokeAll(ctx context.Context, adminID int64) error
}

// AuthService verifies operator credentials and owns all Admin mutation:
// attempt counters, lockout state, last-login stamps, and password changes.
// Every decision branch writes an audit entry.
type AuthService struct {
	store   *store.Store
	revoker TokenRevoker
	cfg     AuthConfig
	logger  *slog.Logger

	// injectable for deterministic tests
	now   func() time.Time
	sleep func(time.Duration)
}

// NewAuthService creates an AuthService with the given policy. The revoker
// may be nil only in contexts that never change passwords (e.g. the CLI).
func NewAuthService(st *store.Store, revoker TokenRevoker, cfg AuthConfig, logger *slog.Logger) *AuthService {
	return &AuthService{
		store:   st,
		revoker: revoker,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

// NormalizeUsername lowercases and trims a username. All lookups and inserts
// go through this.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// Authenticate verifies a username/password pair and returns the sanitized
// admin on success. Failures are *AuthError values; anything else is an
// internal store failure.
func (s *AuthService) Authenticate(ctx context.Context, username, password, ip, userAgent string) (*model.Admin, error) {
	username = NormalizeUsername(username)

	admin, err := s.store.GetAdminByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			s.audit(ctx, nil, model.ActionLogin, ip, userAgent, false, "unknown username: "+username)
			// Equalize response time with the bcrypt-comparison path so an
			// unknown username is not distinguishable by timing. This delay
			// is a security control and deliberately ignores ctx
			// cancellation.
			s.sleep(s.cfg.FailDelay)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("look up admin: %w", err)
	}

	now := s.now()

	if admin.Locked(now) {
		remaining := lockMinutes(admin.LockedUntil.Sub(now))
		s.audit(ctx, &admin.ID, model.ActionLogin, ip, userAgent, false, "account locked")
		return nil, accountLocked(remaining)
	}
	if admin.LockedUntil != nil {
		// Lock expired: reset counters and continue with the attempt.
		if err := s.store.ResetLockout(ctx, admin.ID); err != nil {
			return nil, fmt.Errorf("reset expired lockout: %w", err)
		}
		admin.FailedAttempts = 0
		admin.LockedUntil = nil
	}

	if !admin.IsActive {
		s.audit(ctx, &admin.ID, model.ActionLogin, ip, userAgent, false, "account disabled")
		return nil, ErrAccountDisabled
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(password)); err != nil {
		attempts, incErr := s.store.IncrementFailedAttempts(ctx, admin.ID)
		if incErr != nil {
			return nil, fmt.Errorf("increment failed attempts: %w", incErr)
		}
		if attempts >= s.cfg.LockoutThreshold {
			until := now.Add(s.cfg.LockoutDuration)
			if lockErr := s.store.SetLockout(ctx, admin.ID, until); lockErr != nil {
				return nil, fmt.Errorf("set lockout: %w", lockErr)
			}
			s.audit(ctx, &admin.ID, model.ActionLogin, ip, userAgent, false,
				fmt.Sprintf("wrong password, attempt %d, account locked", attempts))
			return nil, accountLocked(lockMinutes(s.cfg.LockoutDuration))
		}
		s.audit(ctx, &admin.ID, model.ActionLogin, ip, userAgent, false,
			fmt.Sprintf("wrong password, attempt %d", attempts))
		return nil, ErrInvalidCredentials
	}

	if err := s.store.RecordLogin(ctx, admin.ID, now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	s.audit(ctx, &admin.ID, model.ActionLogin, ip, userAgent, true, "")

	sanitized := admin.Sanitized()
	loginAt := now.UTC()
	sanitized.LastLoginAt = &loginAt
	return &sanitized, nil
}

// ChangePassword verifies the old password and replaces the hash. On success
// every refresh token the admin owns is revoked, forcing re-authentication
// everywhere. An old-password mismatch fails without revealing which field
// was wrong.
func (s *AuthService) ChangePassword(ctx context.Context, adminID int64, oldPassword, newPassword, ip, userAgent string) error {
	admin, err := s.store.GetAdminByID(ctx, adminID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return fmt.Errorf("look up admin: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(oldPassword)); err != nil {
		s.audit(ctx, &admin.ID, model.ActionPasswordChange, ip, userAgent, false, "verification failed")
		return ErrInvalidCredentials
	}

	if err := s.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash new password: %w", err)
	}
	if err := s.store.UpdatePasswordHash(ctx, admin.ID, hash); err != nil {
		return fmt.Errorf("update password hash: %w", err)
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeAll(ctx, admin.ID); err != nil {
			return fmt.Errorf("revoke refresh tokens: %w", err)
		}
	}

	s.audit(ctx, &admin.ID, model.ActionPasswordChange, ip, userAgent, true, "")
	return nil
}

// CreateAdmin validates the username and password shape, hashes the
// password, and inserts the account. Duplicate usernames are rejected.
func (s *AuthService) CreateAdmin(ctx context.Context, username, password, role, ip, userAgent string) (*model.Admin, error) {
	username = NormalizeUsername(username)
	if len(username) < 3 {
		return nil, validationFailed("username must be at least 3 characters")
	}
	if err := s.ValidatePassword(password); err != nil {
		return nil, err
	}
	if role == "" {
		role = model.RoleAdmin
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	admin := &model.Admin{
		Username:     username,
		PasswordHash: hash,
		Role:         role,
		IsActive:     true,
	}
	if err := s.store.CreateAdmin(ctx, admin); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, validationFailed("username already taken")
		}
		return nil, fmt.Errorf("create admin: %w", err)
	}

	s.audit(ctx, &admin.ID, model.ActionAdminCreate, ip, userAgent, true, "created "+username)

	sanitized := admin.Sanitized()
	return &sanitized, nil
}

// DeactivateAdmin soft-deletes an account. Deactivated admins cannot
// authenticate and their refresh tokens stop rotating.
func (s *AuthService) DeactivateAdmin(ctx context.Context, adminID int64, ip, userAgent string) error {
	if err := s.store.SetAdminActive(ctx, adminID, false); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return validationFailed("admin not found")
		}
		return fmt.Errorf("deactivate admin: %w", err)
	}
	s.audit(ctx, &adminID, model.ActionAdminDeactivate, ip, userAgent, true, "")
	return nil
}

// ValidatePassword enforces the password policy: configured minimum length,
// mixed case, and at least one digit.
func (s *AuthService) ValidatePassword(password string) error {
	if len(password) < s.cfg.PasswordMinLength {
		return validationFailed(fmt.Sprintf("password must be at least %d characters", s.cfg.PasswordMinLength))
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return validationFailed("password must contain upper and lower case letters and a digit")
	}
	return nil
}

// HashPassword produces a bcrypt hash at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// audit appends an entry for a decision branch. Audit writes are never
// skipped; if the insert itself fails there is nothing left to do but log
// the failure server-side.
func (s *AuthService) audit(ctx context.Context, adminID *int64, action, ip, userAgent string, success bool, details string) {
	entry := &model.AuditLogEntry{
		AdminID:   adminID,
		Action:    action,
		IPAddress: ip,
		UserAgent: userAgent,
		Success:   success,
		Details:   details,
	}
	if err := s.store.AppendAuditEntry(ctx, entry); err != nil {
		s.logger.Error("audit write failed", "action", action, "error", err)
	}
}

// lockMinutes converts a remaining lock duration to whole minutes, rounded
// up, for user-facing lockout messages.
func lockMinutes(d time.Duration) int {
	return int(math.Ceil(d.Minutes()))
}
