package feedback_test

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/nyashahama/crushbot-backend/internal/feedback"
	"github.com/nyashahama/crushbot-backend/internal/scoring"
)

// ─── STUBS ────────────────────────────────────────────────────────────────────

type stubQueue struct {
	records []feedback.Record
	err     error
}

func (q *stubQueue) Enqueue(_ context.Context, rec feedback.Record) error {
	if q.err != nil {
		return q.err
	}
	q.records = append(q.records, rec)
	return nil
}

var keyPattern = regexp.MustCompile(`^feedback_\d+_[0-9a-f-]{36}$`)

// ─── Record ───────────────────────────────────────────────────────────────────

func TestNewRecord_Shape(t *testing.T) {
	now := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.FixedZone("EET", 2*3600))
	rec, err := feedback.NewRecord(now, 77, scoring.CategoryHigh, true)
	if err != nil {
		t.Fatalf("new record: %v", err)
	}

	if !keyPattern.MatchString(rec.ID) {
		t.Errorf("key %q does not match feedback_<millis>_<uuid>", rec.ID)
	}
	if rec.Timestamp != "2026-03-14T13:09:26.535Z" {
		t.Errorf("timestamp: got %q", rec.Timestamp)
	}

	v, err := rec.Value()
	if err != nil {
		t.Fatalf("value: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(v), &m); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if len(m) != 4 {
		t.Errorf("value should carry exactly 4 fields, got %v", m)
	}
	if m["score"] != float64(77) || m["category"] != "high" || m["accurate"] != true {
		t.Errorf("unexpected value %v", m)
	}
	if _, err := time.Parse(time.RFC3339, m["timestamp"].(string)); err != nil {
		t.Errorf("timestamp not RFC 3339: %v", err)
	}
}

func TestNewRecord_RejectsUnknownCategory(t *testing.T) {
	_, err := feedback.NewRecord(time.Now(), 50, scoring.Category("medium"), true)
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestNewRecord_UniqueKeysWithinOneMillisecond(t *testing.T) {
	now := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		rec, err := feedback.NewRecord(now, 10, scoring.CategoryLow, false)
		if err != nil {
			t.Fatal(err)
		}
		if seen[rec.ID] {
			t.Fatalf("duplicate key %s", rec.ID)
		}
		seen[rec.ID] = true
	}
}

// ─── Recorder ─────────────────────────────────────────────────────────────────

func TestRecorder_EnqueuesRecord(t *testing.T) {
	q := &stubQueue{}
	r := feedback.NewRecorder(q, zap.NewNop())

	rec := r.Record(context.Background(), 45, scoring.CategoryMixed, false)

	if len(q.records) != 1 {
		t.Fatalf("expected 1 enqueued record, got %d", len(q.records))
	}
	if q.records[0] != rec {
		t.Errorf("enqueued %+v, returned %+v", q.records[0], rec)
	}
	if rec.Score != 45 || rec.Category != scoring.CategoryMixed || rec.Accurate {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestRecorder_EnqueueFailureIsLoggedNotSurfaced(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	q := &stubQueue{err: errors.New("queue is full")}
	r := feedback.NewRecorder(q, zap.New(core))

	rec := r.Record(context.Background(), 90, scoring.CategoryHigh, true)

	if rec.ID == "" {
		t.Error("record should still be returned")
	}
	if logs.Len() != 1 {
		t.Fatalf("expected 1 error log, got %d", logs.Len())
	}
	if logs.All()[0].ContextMap()["key"] != rec.ID {
		t.Errorf("log should carry the key, got %v", logs.All()[0].ContextMap())
	}
}
