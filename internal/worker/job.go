package worker

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/feedback"
)

// Setter is the slice of store.Store a Job writes through.
type Setter interface {
	Set(ctx context.Context, key, value string, shared bool) error
}

// Job persists a single feedback record.
type Job struct {
	store  Setter
	logger *zap.Logger
}

// NewJob constructs a Job writing to st.
func NewJob(st Setter, logger *zap.Logger) *Job {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Job{store: st, logger: logger}
}

// Run serialises rec and writes it as a shared entry under rec.ID. Store
// errors are wrapped with %w so the Runner can still match store.ErrKeyExists.
func (j *Job) Run(ctx context.Context, rec feedback.Record) error {
	value, err := rec.Value()
	if err != nil {
		return err
	}
	if err := j.store.Set(ctx, rec.ID, value, true); err != nil {
		return fmt.Errorf("job: set %s: %w", rec.ID, err)
	}
	j.logger.Debug("job: feedback persisted", zap.String("key", rec.ID))
	return nil
}
