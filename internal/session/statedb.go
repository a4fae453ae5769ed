package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// KeyRoot stores the selected board root.
const KeyRoot = "root"

// stampLayout has a fixed width so stored times sort as text.
const stampLayout = "2006-01-02T15:04:05.000000000Z"

// StateDB persists session state (the selected root and recently used
// roots) in a small SQLite database so it survives restarts.
type StateDB struct {
	conn *sql.DB
	path string
}

// DefaultStatePath returns $XDG_CONFIG_HOME/mdkanban/state.db (or the
// platform equivalent).
func DefaultStatePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate config directory: %w", err)
	}
	return filepath.Join(dir, "mdkanban", "state.db"), nil
}

// OpenState opens or creates the state database at path and makes sure the
// schema exists. The caller must Close it.
func OpenState(path string) (*StateDB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", fmt.Sprintf("file:%s", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}
	if err := conn.Ping(); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping state database: %w", err)
	}

	db := &StateDB{conn: conn, path: path}

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	if err := db.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (db *StateDB) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS settings (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS recent_roots (
			path      TEXT PRIMARY KEY,
			last_used TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_recent_roots_last_used ON recent_roots(last_used DESC)`,
	}
	for _, stmt := range stmts {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create state schema: %w", err)
		}
	}
	return nil
}

// Path returns the database file path.
func (db *StateDB) Path() string { return db.path }

// Close checkpoints the WAL and closes the database.
func (db *StateDB) Close() error {
	if db.conn == nil {
		return nil
	}
	if _, err := db.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to checkpoint WAL: %v\n", err)
	}
	if err := db.conn.Close(); err != nil {
		return fmt.Errorf("failed to close state database: %w", err)
	}
	db.conn = nil
	return nil
}

// Get returns the value stored under key.
func (db *StateDB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.conn.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, true, nil
}

// Set stores value under key.
func (db *StateDB) Set(ctx context.Context, key, value string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO settings (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value, time.Now().UTC().Format(stampLayout))
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting a missing key is not an error.
func (db *StateDB) Delete(ctx context.Context, key string) error {
	if _, err := db.conn.ExecContext(ctx, `DELETE FROM settings WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

// TouchRecent records dir as used now.
func (db *StateDB) TouchRecent(ctx context.Context, dir string) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO recent_roots (path, last_used) VALUES (?, ?)
		ON CONFLICT(path) DO UPDATE SET last_used = excluded.last_used
	`, dir, time.Now().UTC().Format(stampLayout))
	if err != nil {
		return fmt.Errorf("failed to record recent root: %w", err)
	}
	return nil
}

// RecentRoots returns up to limit roots, most recently used first.
func (db *StateDB) RecentRoots(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.conn.QueryContext(ctx,
		`SELECT path FROM recent_roots ORDER BY last_used DESC, path LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent roots: %w", err)
	}
	defer rows.Close()

	var roots []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan recent root: %w", err)
		}
		roots = append(roots, p)
	}
	return roots, rows.Err()
}
