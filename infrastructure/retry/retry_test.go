package retry_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/infrastructure/retry"
)

var errTransient = errors.New("i/o timeout")

func fastConfig() retry.Config {
	return retry.Config{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     2 * time.Millisecond,
	}
}

func TestDo_SucceedsAfterTransientFailures(t *testing.T) {
	t.Parallel()

	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errTransient
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnNonRetryable(t *testing.T) {
	t.Parallel()

	permanent := errors.New("not found")
	calls := 0
	err := retry.Do(context.Background(), fastConfig(), func(context.Context, int) error {
		calls++
		return permanent
	})

	require.ErrorIs(t, err, permanent)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	err := retry.Do(context.Background(), fastConfig(), func(context.Context, int) error {
		return errTransient
	})

	require.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	require.ErrorIs(t, err, errTransient)
}

func TestDo_AttemptTimeoutsEscalate(t *testing.T) {
	t.Parallel()

	cfg := fastConfig()
	cfg.AttemptTimeouts = []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond}

	var budgets []time.Duration
	_ = retry.Do(context.Background(), cfg, func(ctx context.Context, _ int) error {
		deadline, ok := ctx.Deadline()
		require.True(t, ok)
		budgets = append(budgets, time.Until(deadline))
		return errTransient
	})

	require.Len(t, budgets, 3)
	assert.Less(t, budgets[0], budgets[1])
	assert.Less(t, budgets[1], budgets[2])
}

func TestTimeoutFor_ReusesLastEntry(t *testing.T) {
	t.Parallel()

	cfg := retry.Config{AttemptTimeouts: []time.Duration{time.Second, 2 * time.Second}}
	assert.Equal(t, time.Second, cfg.TimeoutFor(1))
	assert.Equal(t, 2*time.Second, cfg.TimeoutFor(2))
	assert.Equal(t, 2*time.Second, cfg.TimeoutFor(5))
	assert.Zero(t, (&retry.Config{}).TimeoutFor(1))
}

func TestDo_ParentCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Do(ctx, fastConfig(), func(context.Context, int) error { return nil })
	require.ErrorIs(t, err, retry.ErrContextCancelled)
}
