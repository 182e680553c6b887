// Package state persists graph snapshots in SQLite.
//
// A snapshot is stored under a key ("flow" for the interactive session).
// Saving under an existing key replaces the current snapshot. Every save is
// also appended to the history table.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultKey is the key the interactive session saves under.
const DefaultKey = "flow"

// ErrNoSnapshot is returned when nothing has been saved under a key.
var ErrNoSnapshot = errors.New("no snapshot")

var errNotOpened = errors.New("database not opened")

// Summary describes a stored snapshot without its payload.
type Summary struct {
	ID        string    `json:"id" yaml:"id"`
	Key       string    `json:"key" yaml:"key"`
	NodeCount int       `json:"node_count" yaml:"node_count"`
	EdgeCount int       `json:"edge_count" yaml:"edge_count"`
	SavedAt   time.Time `json:"saved_at" yaml:"saved_at"`
}

// SQLiteStore stores snapshots in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// NewSQLiteStore creates a store. Call Open before use.
func NewSQLiteStore() *SQLiteStore {
	return &SQLiteStore{now: time.Now}
}

// NewWithDB wraps an existing connection. Migrations are not run.
func NewWithDB(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// Open opens the database at path. Use ":memory:" for a private in-memory
// database.
func (s *SQLiteStore) Open(path string) error {
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	if path == ":memory:" {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s.db = db
	s.path = path
	return nil
}

// Path returns the path passed to Open.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func generateID() string {
	return uuid.New().String()
}
