// Package feedback builds the record written when a visitor rates a result
// and hands it off for asynchronous persistence.
package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// timestampLayout is ISO-8601 UTC with millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// Record is one accuracy vote. ID is the store key and is not part of the
// serialised value.
type Record struct {
	ID        string           `json:"-"`
	Score     int              `json:"score"`
	Category  scoring.Category `json:"category"`
	Accurate  bool             `json:"accurate"`
	Timestamp string           `json:"timestamp"`
}

// NewRecord stamps a record at now. The key is feedback_<unix millis>_<uuid v7>
// so it sorts by time and two votes in the same millisecond never collide.
func NewRecord(now time.Time, score int, category scoring.Category, accurate bool) (Record, error) {
	if _, err := scoring.ParseCategory(string(category)); err != nil {
		return Record{}, fmt.Errorf("feedback: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Record{}, fmt.Errorf("feedback: generate id: %w", err)
	}
	now = now.UTC()
	return Record{
		ID:        fmt.Sprintf("feedback_%d_%s", now.UnixMilli(), id),
		Score:     score,
		Category:  category,
		Accurate:  accurate,
		Timestamp: now.Format(timestampLayout),
	}, nil
}

// Value is the JSON written under ID.
func (r Record) Value() (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("feedback: marshal %s: %w", r.ID, err)
	}
	return string(b), nil
}

// Enqueuer accepts records for persistence. The concrete implementation is
// *worker.Runner; tests use any struct with an Enqueue method.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec Record) error
}

// Recorder is fire-and-forget: Record never fails from the caller's point of
// view. Enqueue failures are logged and dropped.
type Recorder struct {
	queue  Enqueuer
	logger *zap.Logger
	now    func() time.Time
}

// NewRecorder wires a Recorder to queue.
func NewRecorder(queue Enqueuer, logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{queue: queue, logger: logger, now: time.Now}
}

// Record builds the record and hands it off. The returned record is what was
// (or would have been) enqueued.
func (r *Recorder) Record(ctx context.Context, score int, category scoring.Category, accurate bool) Record {
	rec, err := NewRecord(r.now(), score, category, accurate)
	if err != nil {
		r.logger.Error("feedback: build record failed", zap.Error(err))
		return rec
	}

	if err := r.queue.Enqueue(ctx, rec); err != nil {
		r.logger.Error("feedback: enqueue failed, vote dropped",
			zap.String("key", rec.ID),
			zap.Int("score", score),
			zap.String("category", string(category)),
			zap.Bool("accurate", accurate),
			zap.Error(err),
		)
		return rec
	}

	r.logger.Debug("feedback: enqueued", zap.String("key", rec.ID))
	return rec
}
