// Package store persists admins, refresh tokens, and the audit log in a
// single SQLite database.
package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// Store is the single backing store shared by the auth and token services.
type Store struct {
	db *sqlx.DB
}

// New opens (or creates) the SQLite database under dataDir and applies
// migrations. Pass empty string for an in-memory database, used in tests.
func New(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o700); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "logosauth.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open auth database: %w", err)
	}

	// SQLite doesn't support concurrent writes; a single connection also
	// makes the attempt-counter read-modify-write below serializable.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate auth database: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database connection, used by the readiness probe.
func (s *Store) Ping() error {
	return s.db.Ping()
}

// HashToken returns the hex-encoded SHA-256 digest of a raw token. Refresh
// tokens are persisted only in this form.
func HashToken(raw string) string {
	h := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(h[:])
}
