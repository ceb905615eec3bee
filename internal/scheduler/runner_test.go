package scheduler_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/logger"
	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/scheduler"
	"github.com/Meltveit/qrydex/internal/store"
)

type recordingProcessor struct {
	mu     sync.Mutex
	keys   []string
	failOn map[string]bool
	after  func(n int)
}

func (p *recordingProcessor) Process(_ context.Context, rec *domain.BusinessRecord) error {
	p.mu.Lock()
	p.keys = append(p.keys, rec.Key().String())
	n := len(p.keys)
	p.mu.Unlock()

	if p.after != nil {
		p.after(n)
	}
	if p.failOn[rec.Key().String()] {
		return errors.New("crawl failed")
	}
	return nil
}

func (p *recordingProcessor) processed() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.keys...)
}

type cycleRecorder struct {
	mu     sync.Mutex
	cycles [][2]int
}

func (c *cycleRecorder) RecordCycle(_ string, processed, failed int, _ time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cycles = append(c.cycles, [2]int{processed, failed})
}

type failingFinder struct{}

func (failingFinder) Find(context.Context, store.Filter) ([]*domain.BusinessRecord, error) {
	return nil, errors.New("connection refused")
}

func seed(t *testing.T, n int) *store.Memory {
	t.Helper()

	mem := store.NewMemory()
	for i := range n {
		rec := &domain.BusinessRecord{
			OrgNumber:   fmt.Sprintf("9%08d", i),
			CountryCode: "NO",
			Domain:      ptr(fmt.Sprintf("site%d.no", i)),
		}
		require.NoError(t, mem.Upsert(context.Background(), rec))
	}
	// Not due: no domain.
	require.NoError(t, mem.Upsert(context.Background(), &domain.BusinessRecord{OrgNumber: "1", CountryCode: "NO"}))
	return mem
}

func fixedClock() time.Time { return now }

func TestRunner_RunOnceProcessesOnlyOwnedDueRecords(t *testing.T) {
	t.Parallel()

	mem := seed(t, 40)
	shard, err := scheduler.NewShard(1, 3)
	require.NoError(t, err)

	proc := &recordingProcessor{}
	r := scheduler.NewRunner(logger.NewNop(), mem, proc,
		scheduler.WithShard(shard),
		scheduler.WithBatchSize(100),
		scheduler.WithItemDelay(0),
		scheduler.WithClock(fixedClock),
	)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)

	got := proc.processed()
	assert.Len(t, got, n)
	require.NotEmpty(t, got)
	for _, key := range got {
		assert.NotEqual(t, "NO:1", key)
	}

	all, err := mem.Find(context.Background(), store.Filter{Limit: 1000})
	require.NoError(t, err)
	want := 0
	for _, rec := range all {
		if rec.DomainName() != "" && scheduler.ShardOf(rec.Key(), 3) == 1 {
			want++
			assert.Contains(t, got, rec.Key().String())
		}
	}
	assert.Equal(t, want, n)
}

func TestRunner_RunOnceHonorsBatchSize(t *testing.T) {
	t.Parallel()

	proc := &recordingProcessor{}
	r := scheduler.NewRunner(logger.NewNop(), seed(t, 30), proc,
		scheduler.WithBatchSize(7),
		scheduler.WithItemDelay(0),
		scheduler.WithClock(fixedClock),
	)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, n)
	assert.Len(t, proc.processed(), 7)
}

func TestRunner_ItemFailuresDoNotStopTheCycle(t *testing.T) {
	t.Parallel()

	mem := seed(t, 3)
	proc := &recordingProcessor{failOn: map[string]bool{"NO:900000000": true}}
	rec := &cycleRecorder{}
	r := scheduler.NewRunner(logger.NewNop(), mem, proc,
		scheduler.WithItemDelay(0),
		scheduler.WithRecorder(rec),
		scheduler.WithClock(fixedClock),
	)

	n, err := r.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, [][2]int{{3, 1}}, rec.cycles)
}

func TestRunner_RunOnceFindError(t *testing.T) {
	t.Parallel()

	r := scheduler.NewRunner(logger.NewNop(), failingFinder{}, &recordingProcessor{})
	n, err := r.RunOnce(context.Background())
	require.Error(t, err)
	assert.Zero(t, n)
	assert.Contains(t, err.Error(), "find due records")
}

func TestRunner_RunStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	proc := &recordingProcessor{after: func(n int) {
		if n == 5 {
			cancel()
		}
	}}
	r := scheduler.NewRunner(logger.NewNop(), seed(t, 2), proc,
		scheduler.WithItemDelay(time.Millisecond),
		scheduler.WithIdleSleep(time.Millisecond),
		scheduler.WithClock(fixedClock),
	)

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	select {
	case runErr := <-done:
		require.NoError(t, runErr)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop after cancel")
	}
	assert.Len(t, proc.processed(), 5)
}

func TestRunner_RunSleepsWhenIdle(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	rec := &cycleRecorder{}
	r := scheduler.NewRunner(logger.NewNop(), store.NewMemory(), &recordingProcessor{},
		scheduler.WithIdleSleep(time.Hour),
		scheduler.WithRecorder(rec),
	)

	require.NoError(t, r.Run(ctx))
	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, [][2]int{{0, 0}}, rec.cycles)
}
