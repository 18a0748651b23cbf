// Package worker persists feedback records in the background. The HTTP layer
// never waits on storage: it hands records to the Runner through the
// feedback.Enqueuer interface and returns immediately.
package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nyashahama/crushbot-backend/internal/feedback"
	"github.com/nyashahama/crushbot-backend/internal/store"
)

var (
	// ErrQueueFull is returned by Enqueue when the buffer is saturated.
	ErrQueueFull = errors.New("worker: queue is full")

	// ErrStopped is returned by Enqueue after Shutdown.
	ErrStopped = errors.New("worker: runner stopped")
)

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent writer goroutines. Default: 2.
	Workers int

	// QueueSize is the channel buffer. Default: Workers*64.
	QueueSize int

	// JobTimeout is the per-attempt context deadline. Default: 10s.
	JobTimeout time.Duration

	// MaxRetries is the total number of attempts before a record is dropped.
	// Default: 3.
	MaxRetries int

	// Backoff is the wait before the second attempt; it doubles each retry.
	// Default: 1s.
	Backoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:    2,
		JobTimeout: 10 * time.Second,
		MaxRetries: 3,
		Backoff:    time.Second,
	}
}

// Runner manages a pool of writer goroutines fed by a bounded channel.
type Runner struct {
	job    *Job
	cfg    RunnerConfig
	logger *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan feedback.Record
	wg     sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start to begin processing.
func NewRunner(job *Job, cfg RunnerConfig, logger *zap.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = def.Backoff
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		job:    job,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan feedback.Record, cfg.QueueSize),
	}
}

// Enqueue satisfies feedback.Enqueuer. It never blocks: a full queue is an
// error the caller logs.
func (r *Runner) Enqueue(_ context.Context, rec feedback.Record) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrStopped
	}
	select {
	case r.queue <- rec:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool and returns. Workers exit once Shutdown has
// closed the queue and it is drained. Cancelling ctx aborts in-flight writes
// and backoff waits.
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", zap.Int("workers", r.cfg.Workers), zap.Int("queue_size", r.cfg.QueueSize))

	for i := 0; i < r.cfg.Workers; i++ {
		r.wg.Add(1)
		go r.work(ctx, i)
	}
}

// Shutdown stops accepting records and waits for queued ones to be written,
// or for ctx to expire.
func (r *Runner) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.queue)
	}
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("worker: stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With(zap.Int("worker_id", id))

	for rec := range r.queue {
		r.runWithRetry(ctx, rec, log)
	}
}

// runWithRetry executes the job up to MaxRetries times. store.ErrKeyExists
// ends the loop at once since the key can never become free.
func (r *Runner) runWithRetry(ctx context.Context, rec feedback.Record, log *zap.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, rec)
		cancel()

		if lastErr == nil {
			return
		}

		if errors.Is(lastErr, store.ErrKeyExists) {
			log.Warn("worker: feedback key already written, dropping",
				zap.String("key", rec.ID),
			)
			return
		}

		log.Warn("worker: write attempt failed",
			zap.String("key", rec.ID),
			zap.Int("attempt", attempt),
			zap.Int("max", r.cfg.MaxRetries),
			zap.Error(lastErr),
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: Backoff, 2×Backoff, 4×Backoff …
			backoff := r.cfg.Backoff << (attempt - 1)
			select {
			case <-ctx.Done():
				log.Error("worker: stopped before retry, feedback dropped",
					zap.String("key", rec.ID),
					zap.Error(lastErr),
				)
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: feedback permanently failed",
		zap.String("key", rec.ID),
		zap.Int("score", rec.Score),
		zap.String("category", string(rec.Category)),
		zap.Error(lastErr),
	)
}
