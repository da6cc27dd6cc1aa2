// Package session provides the durable local session store: the user's
// credential, the active screen, and the focused query, surviving process
// restarts.
//
// The store is a small key-value table in an embedded SQLite database
// (WAL mode). Writes are synchronous: a write that gates a subsequent
// read completes before the read is issued.
package session

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Keys used in the session table. The set is closed: the schema holds
// exactly the credential fields plus the persisted screen state.
const (
	keyToken        = "token"
	keyUsername     = "username"
	keyGistID       = "gist_id"
	keyInvalid      = "invalid_credential"
	keyScreen       = "current_screen"
	keyFocusedQuery = "focused_query_id"
)

// Store wraps the SQLite session database.
type Store struct {
	conn *sql.DB
	path string
}

// Open creates a session store at the given path.
//
// The parent directory is created if missing. The caller MUST call
// Close() when done.
func Open(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("failed to open session database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping session database: %w", err)
	}

	conn.SetMaxOpenConns(4)
	conn.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{conn: conn, path: path}

	// WAL so the daemon and CLI can read concurrently
	if _, err := s.conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := s.conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := s.initSchema(); err != nil {
		_ = s.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the session database.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// initSchema creates the session table if it does not exist. Idempotent.
func (s *Store) initSchema() error {
	const ddl = `CREATE TABLE IF NOT EXISTS session (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	)`
	if _, err := s.conn.Exec(ddl); err != nil {
		return fmt.Errorf("failed to create session schema: %w", err)
	}
	return nil
}

// get returns the value for a key, or "" if the key is unset.
func (s *Store) get(key string) (string, error) {
	var value string
	err := s.conn.QueryRow(`SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session key %s: %w", key, err)
	}
	return value, nil
}

// set upserts one key.
func (s *Store) set(key, value string) error {
	_, err := s.conn.Exec(
		`INSERT INTO session (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("failed to write session key %s: %w", key, err)
	}
	return nil
}
