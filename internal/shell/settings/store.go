// Package settings persists user preferences in SQLite.
// This is part of the Imperative Shell.
//
// The engine consumes settings read-only; none of them change engine
// behaviour, they flavour presentation (primaryHostname) and the update
// checker (checkUpdate, checkBeta).
package settings

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// =============================================================================
// Well-Known Keys
// =============================================================================

const (
	KeyPrimaryHostname = "primaryHostname"
	KeyCheckUpdate     = "checkUpdate"
	KeyCheckBeta       = "checkBeta"
)

// =============================================================================
// Store
// =============================================================================

const schema = `
CREATE TABLE IF NOT EXISTS settings (
    key   TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Store is a key/value preference store backed by SQLite.
type Store struct {
	db *sqlx.DB
}

// NewStore opens (creating if needed) the settings database at dsn.
func NewStore(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open settings database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping settings database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create settings schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Get returns a setting's value, or "" when unset.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.Get(&value, `SELECT value FROM settings WHERE key = ?`, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read setting %s: %w", key, err)
	}
	return value, nil
}

// Set writes a setting.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write setting %s: %w", key, err)
	}
	return nil
}

// PrimaryHostname implements the engine's Settings view.
func (s *Store) PrimaryHostname() string {
	value, err := s.Get(KeyPrimaryHostname)
	if err != nil {
		return ""
	}
	return value
}
