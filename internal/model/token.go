package model

import "time"

// RefreshToken is a persisted long-lived credential. Only the SHA-256 hash of
// the raw signed token is stored; the raw value is handed to the client once
// at issuance and never written anywhere.
type RefreshToken struct {
	ID        int64     `db:"id"`
	AdminID   int64     `db:"admin_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	Revoked   bool      `db:"revoked"`
	CreatedAt time.Time `db:"created_at"`
}

// Usable reports whether the token row alone permits a refresh at the given
// instant. The owning admin's active flag is checked separately by the
// token service.
func (t *RefreshToken) Usable(now time.Time) bool {
	return !t.Revoked && t.ExpiresAt.After(now)
}
