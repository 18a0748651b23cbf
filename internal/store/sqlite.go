package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT PRIMARY KEY,
	value_text TEXT    NOT NULL,
	shared     INTEGER NOT NULL DEFAULT 0,
	created_at TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS kv_entries_shared_idx ON kv_entries (shared);
`

// SQLite is the single-file driver backed by modernc.org/sqlite.
type SQLite struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (creating if needed) the database at path, switches it to
// WAL mode and ensures the kv_entries table exists.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("store: sqlite path is required")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("store: create sqlite dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// Pragmas are per connection; one writer connection keeps them applied.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	for _, p := range pragmas {
		if _, err := db.ExecContext(ctx, p); err != nil {
			db.Close()
			return nil, fmt.Errorf("store: pragma %q: %w", p, err)
		}
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: sqlite migrate: %w", err)
	}

	return &SQLite{db: db, now: time.Now}, nil
}

func (s *SQLite) Set(ctx context.Context, key, value string, shared bool) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value_text, shared, created_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (key) DO NOTHING`,
		key, value, shared, s.now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("store: sqlite set %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: sqlite rows affected: %w", err)
	}
	if n == 0 {
		return ErrKeyExists
	}
	return nil
}

// Get returns the entry stored under key.
func (s *SQLite) Get(ctx context.Context, key string) (Entry, error) {
	var (
		e       Entry
		created string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT key, value_text, shared, created_at FROM kv_entries WHERE key = ?`, key,
	).Scan(&e.Key, &e.Value, &e.Shared, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: sqlite get %q: %w", key, err)
	}
	if e.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Entry{}, fmt.Errorf("store: sqlite parse created_at: %w", err)
	}
	return e, nil
}

func (s *SQLite) Close() error { return s.db.Close() }
