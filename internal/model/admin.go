package model

import "time"

// RoleAdmin is the only role the auth core knows about today. Role is kept
// as an open string column so additional roles can be introduced without a
// schema change.
const RoleAdmin = "admin"

// Admin represents a privileged operator who can authenticate against the
// admin API. Passwords are stored as bcrypt hashes and are never serialized.
type Admin struct {
	ID             int64      `json:"id" db:"id"`
	Username       string     `json:"username" db:"username"`
	PasswordHash   string     `json:"-" db:"password_hash"` // bcrypt hash, never expose
	Role           string     `json:"role" db:"role"`
	FailedAttempts int        `json:"-" db:"failed_attempts"`
	LockedUntil    *time.Time `json:"-" db:"locked_until"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	LastLoginAt    *time.Time `json:"last_login_at,omitempty" db:"last_login_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// Sanitized returns a copy of the admin safe to hand outside the auth core:
// the password hash and lockout bookkeeping are zeroed out.
func (a *Admin) Sanitized() Admin {
	out := *a
	out.PasswordHash = ""
	out.FailedAttempts = 0
	out.LockedUntil = nil
	return out
}

// Locked reports whether the account is locked at the given instant.
func (a *Admin) Locked(now time.Time) bool {
	return a.LockedUntil != nil && a.LockedUntil.After(now)
}
