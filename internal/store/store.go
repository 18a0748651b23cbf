// Package store is the key/value persistence collaborator behind feedback
// recording. Every driver honours the same contract: keys are write-once,
// values are opaque strings, and the shared flag marks entries visible beyond
// the writing visitor.
//
// Dependency rule: store imports nothing from internal/. Callers hand it
// already-serialised values.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrKeyExists is returned by Set when the key was already written.
	// Retrying the same write can never succeed.
	ErrKeyExists = errors.New("store: key already exists")

	// ErrNotFound is returned by Get for an unknown key.
	ErrNotFound = errors.New("store: key not found")
)

// Store is the persistence contract.
type Store interface {
	// Set writes value under key. shared=true marks the entry as globally
	// visible. Implementations must be safe for concurrent use.
	Set(ctx context.Context, key, value string, shared bool) error
	Close() error
}

// Entry is one stored row, as returned by the drivers that support reads.
type Entry struct {
	Key       string
	Value     string
	Shared    bool
	CreatedAt time.Time
}

// Driver names accepted by Open.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config selects and configures a driver.
type Config struct {
	Driver string

	// DatabaseURL is the lib/pq DSN for the postgres driver.
	DatabaseURL string

	// SQLitePath is the database file for the sqlite driver.
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	// RedisPrefix namespaces every key. Default "crushbot:".
	RedisPrefix string
	// PrivateTTL expires non-shared redis entries. Zero keeps them forever.
	PrivateTTL time.Duration
}

// Open builds the driver named by cfg.Driver and verifies connectivity.
func Open(ctx context.Context, cfg Config, logger *zap.Logger) (Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case DriverMemory, "":
		st = NewMemory()
	case DriverSQLite:
		st, err = OpenSQLite(ctx, cfg.SQLitePath)
	case DriverPostgres:
		st, err = OpenPostgres(ctx, cfg.DatabaseURL)
	case DriverRedis:
		st, err = OpenRedis(ctx, cfg)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("store: opened", zap.String("driver", driverName(cfg.Driver)))
	return st, nil
}

func driverName(d string) string {
	if d == "" {
		return DriverMemory
	}
	return d
}
