package quiz

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrSessionNotFound means the id is unknown or the session was pruned.
	ErrSessionNotFound = errors.New("quiz: session not found")

	// ErrTokenMismatch means the presented token does not belong to the session.
	ErrTokenMismatch = errors.New("quiz: token does not match session")
)

type entry struct {
	mu       sync.Mutex
	token    string
	session  *Session
	lastSeen time.Time
}

// Registry holds the live sessions. Every session has its own lock so events
// for one visitor are processed one at a time while different visitors
// proceed in parallel.
type Registry struct {
	catalog *Catalog
	ttl     time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu      sync.RWMutex
	entries map[uuid.UUID]*entry
}

// NewRegistry builds an empty registry. Sessions idle for longer than ttl are
// removed by Prune; ttl <= 0 disables pruning.
func NewRegistry(c *Catalog, ttl time.Duration, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		catalog: c,
		ttl:     ttl,
		logger:  logger,
		now:     time.Now,
		entries: make(map[uuid.UUID]*entry),
	}
}

// Catalog returns the catalog every session in this registry runs through.
func (r *Registry) Catalog() *Catalog { return r.catalog }

// Create starts a new session on the intro screen and returns its id and the
// access token the caller must present on every later call.
func (r *Registry) Create() (uuid.UUID, string, State, error) {
	// 32 bytes → 64 hex chars.
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return uuid.Nil, "", State{}, fmt.Errorf("quiz: generate token: %w", err)
	}
	token := hex.EncodeToString(tokenBytes)

	id := uuid.New()
	e := &entry{
		token:    token,
		session:  NewSession(r.catalog),
		lastSeen: r.now(),
	}

	r.mu.Lock()
	r.entries[id] = e
	r.mu.Unlock()

	return id, token, e.session.State(), nil
}

// With runs fn against the session while holding that session's lock. The
// token is compared in constant time.
func (r *Registry) With(id uuid.UUID, token string, fn func(*Session) error) error {
	r.mu.RLock()
	e, ok := r.entries[id]
	r.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	if subtle.ConstantTimeCompare([]byte(e.token), []byte(token)) != 1 {
		return ErrTokenMismatch
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.lastSeen = r.now()
	return fn(e.session)
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Prune removes sessions idle for longer than the ttl and returns how many
// were removed.
func (r *Registry) Prune() int {
	if r.ttl <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, e := range r.entries {
		e.mu.Lock()
		idle := e.lastSeen.Before(cutoff)
		e.mu.Unlock()
		if idle {
			delete(r.entries, id)
			removed++
		}
	}
	return removed
}

// Run prunes on every tick until ctx is cancelled.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	if r.ttl <= 0 || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Prune(); n > 0 {
				r.logger.Info("quiz: pruned idle sessions",
					zap.Int("removed", n),
					zap.Int("live", r.Len()),
				)
			}
		}
	}
}
