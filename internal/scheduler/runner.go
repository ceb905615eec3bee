package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/store"
)

const (
	defaultBatchSize = 20
	defaultIdleSleep = 5 * time.Minute
	defaultItemDelay = 2 * time.Second
)

// Finder queries the record store.
type Finder interface {
	Find(ctx context.Context, f store.Filter) ([]*domain.BusinessRecord, error)
}

// Processor handles one due record. A returned error counts the item as
// failed; it never stops the loop.
type Processor interface {
	Process(ctx context.Context, rec *domain.BusinessRecord) error
}

// Recorder observes completed cycles.
type Recorder interface {
	RecordCycle(shard string, processed, failed int, elapsed time.Duration)
}

// Runner is one worker's continuous loop.
type Runner struct {
	log         logger.Logger
	finder      Finder
	processor   Processor
	shard       Shard
	eligibility Eligibility
	recorder    Recorder
	now         func() time.Time

	batchSize int
	idleSleep time.Duration
	itemDelay time.Duration
}

// Option configures a Runner.
type Option func(*Runner)

// WithShard restricts the runner to one shard.
// Default: a single worker owning every record.
func WithShard(s Shard) Option {
	return func(r *Runner) {
		r.shard = s
	}
}

// WithEligibility replaces the due policy.
func WithEligibility(e Eligibility) Option {
	return func(r *Runner) {
		r.eligibility = e
	}
}

// WithBatchSize sets how many owned records one cycle processes.
// Default: 20
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithIdleSleep sets the pause after a cycle that found nothing to do.
// Default: 5 minutes
func WithIdleSleep(d time.Duration) Option {
	return func(r *Runner) {
		r.idleSleep = d
	}
}

// WithItemDelay sets the pause between records within a cycle.
// Default: 2 seconds
func WithItemDelay(d time.Duration) Option {
	return func(r *Runner) {
		r.itemDelay = d
	}
}

// WithRecorder attaches a cycle recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Runner) {
		r.recorder = rec
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) {
		r.now = now
	}
}

// NewRunner creates a runner.
func NewRunner(log logger.Logger, finder Finder, processor Processor, opts ...Option) *Runner {
	if log == nil {
		log = logger.NewNop()
	}
	r := &Runner{
		log:         log,
		finder:      finder,
		processor:   processor,
		shard:       Shard{ID: 0, Total: 1},
		eligibility: DefaultEligibility(),
		now:         time.Now,
		batchSize:   defaultBatchSize,
		idleSleep:   defaultIdleSleep,
		itemDelay:   defaultItemDelay,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.log = r.log.With(logger.String("shard", r.shard.String()))
	return r
}

// Run loops until ctx is cancelled. Cycles that process nothing or fail to
// query the store are followed by the idle sleep.
func (r *Runner) Run(ctx context.Context) error {
	r.log.Info("Scheduler started",
		logger.Int("batch_size", r.batchSize),
		logger.Duration("idle_sleep", r.idleSleep),
		logger.Duration("item_delay", r.itemDelay),
		logger.Int("hash_version", HashVersion),
	)

	for {
		processed, err := r.RunOnce(ctx)
		if ctx.Err() != nil {
			r.log.Info("Scheduler stopping")
			return nil
		}
		if err != nil {
			r.log.Error("Scheduler cycle failed", logger.Error(err))
		}
		if processed > 0 && err == nil {
			continue
		}
		if sleepErr := sleep(ctx, r.idleSleep); sleepErr != nil {
			r.log.Info("Scheduler stopping")
			return nil
		}
	}
}

// RunOnce runs a single cycle and returns how many records it processed.
// Records outside the shard are skipped client-side, so the store query is
// widened by the worker count.
func (r *Runner) RunOnce(ctx context.Context) (int, error) {
	start := r.now()
	records, err := r.finder.Find(ctx, store.Filter{
		Due:   r.eligibility.Filter(start),
		Limit: r.batchSize * max(r.shard.Total, 1),
	})
	if err != nil {
		return 0, fmt.Errorf("find due records: %w", err)
	}

	processed, failed := 0, 0
	for _, rec := range records {
		if processed >= r.batchSize {
			break
		}
		if !r.shard.Owns(rec.Key()) || !r.eligibility.Due(rec, start) {
			continue
		}
		if processed > 0 {
			if sleepErr := sleep(ctx, r.itemDelay); sleepErr != nil {
				return processed, sleepErr
			}
		}

		if procErr := r.processor.Process(ctx, rec); procErr != nil {
			if ctx.Err() != nil {
				return processed, ctx.Err()
			}
			failed++
			r.log.Warn("Record processing failed",
				logger.String("key", rec.Key().String()),
				logger.Error(procErr),
			)
		}
		processed++
	}

	elapsed := r.now().Sub(start)
	if processed > 0 {
		r.log.Info("Scheduler cycle complete",
			logger.Int("fetched", len(records)),
			logger.Int("processed", processed),
			logger.Int("failed", failed),
			logger.Duration("elapsed", elapsed),
		)
	}
	if r.recorder != nil {
		r.recorder.RecordCycle(r.shard.String(), processed, failed, elapsed)
	}
	return processed, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
