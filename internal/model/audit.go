package model

import "time"

// Audit actions recorded by the auth core.
const (
	ActionLogin           = "login"
	ActionLogout          = "logout"
	ActionLogoutAll       = "logout_all"
	ActionTokenRefresh    = "token_refresh"
	ActionPasswordChange  = "password_change"
	ActionAdminCreate     = "admin_create"
	ActionAdminDeactivate = "admin_deactivate"
)

// AuditLogEntry is one immutable security event. AdminID is nil when the
// actor could not be resolved (e.g. a login attempt with an unknown
// username). Entries are append-only: the store exposes no way to mutate or
// delete them.
type AuditLogEntry struct {
	ID        int64     `json:"id" db:"id"`
	AdminID   *int64    `json:"admin_id" db:"admin_id"`
	Action    string    `json:"action" db:"action"`
	IPAddress string    `json:"ip_address" db:"ip_address"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	Success   bool      `json:"success" db:"success"`
	Details   string    `json:"details" db:"details"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
