package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Trinity-Studio-01/logos-auth/internal/model"
)

// AppendAuditEntry inserts one audit-log row. The log is append-only: no
// update or delete is exposed anywhere in this package.
func (s *Store) AppendAuditEntry(ctx context.Context, entry *model.AuditLogEntry) error {
	entry.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO audit_log
		(admin_id, action, ip_address, user_agent, success, details, created_at)
		VALUES
		(:admin_id, :action, :ip_address, :user_agent, :success, :details, :created_at)`

	result, err := s.db.NamedExecContext(ctx, q, entry)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get audit entry id: %w", err)
	}
	entry.ID = id
	return nil
}

// ListAuditEntries returns audit-log rows newest first, with the total row
// count for pagination metadata.
func (s *Store) ListAuditEntries(ctx context.Context, limit, offset int) ([]model.AuditLogEntry, int64, error) {
	var total int64
	if err := s.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM audit_log"); err != nil {
		return nil, 0, fmt.Errorf("count audit entries: %w", err)
	}

	var entries []model.AuditLogEntry
	if err := s.db.SelectContext(ctx, &entries,
		"SELECT * FROM audit_log ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?",
		limit, offset); err != nil {
		return nil, 0, fmt.Errorf("list audit entries: %w", err)
	}
	return entries, total, nil
}
