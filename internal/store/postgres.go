package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sqlc-dev/pqtype"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv_entries (
	key        TEXT        PRIMARY KEY,
	value_text TEXT        NOT NULL,
	value_json JSONB,
	shared     BOOLEAN     NOT NULL DEFAULT FALSE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS kv_entries_shared_idx ON kv_entries (shared) WHERE shared;
`

// Postgres is the lib/pq driver. Values that are valid JSON are mirrored into
// a JSONB column so operators can query feedback without parsing text.
type Postgres struct {
	db *sql.DB
}

// OpenPostgres connects with dsn, pings, and ensures the schema exists.
func OpenPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("store: DATABASE_URL is required for the postgres driver")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping postgres: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: postgres migrate: %w", err)
	}
	return &Postgres{db: db}, nil
}

// jsonValue returns the JSONB mirror for value, or NULL when value is not JSON.
func jsonValue(value string) pqtype.NullRawMessage {
	if !json.Valid([]byte(value)) {
		return pqtype.NullRawMessage{}
	}
	return pqtype.NullRawMessage{RawMessage: json.RawMessage(value), Valid: true}
}

func (p *Postgres) Set(ctx context.Context, key, value string, shared bool) error {
	res, err := p.db.ExecContext(ctx,
		`INSERT INTO kv_entries (key, value_text, value_json, shared)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO NOTHING`,
		key, value, jsonValue(value), shared,
	)
	if err != nil {
		return fmt.Errorf("store: postgres set %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: postgres rows affected: %w", err)
	}
	if n == 0 {
		return ErrKeyExists
	}
	return nil
}

// Get returns the entry stored under key.
func (p *Postgres) Get(ctx context.Context, key string) (Entry, error) {
	var e Entry
	err := p.db.QueryRowContext(ctx,
		`SELECT key, value_text, shared, created_at FROM kv_entries WHERE key = $1`, key,
	).Scan(&e.Key, &e.Value, &e.Shared, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, ErrNotFound
	}
	if err != nil {
		return Entry{}, fmt.Errorf("store: postgres get %q: %w", key, err)
	}
	return e, nil
}

func (p *Postgres) Close() error { return p.db.Close() }
