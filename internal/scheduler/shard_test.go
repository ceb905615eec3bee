package scheduler_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meltveit/qrydex/internal/domain"
	"github.com/Meltveit/qrydex/internal/scheduler"
)

// Assignments are part of the hash version contract and must not drift.
func TestShardOf_PinnedAssignments(t *testing.T) {
	t.Parallel()

	tests := []struct {
		key domain.Key
		of4 int
		of7 int
	}{
		{key: domain.NewKey("912676951", "NO"), of4: 0, of7: 0},
		{key: domain.NewKey("10150817", "DK"), of4: 1, of7: 2},
		{key: domain.NewKey("0112038-9", "FI"), of4: 3, of7: 1},
		{key: domain.NewKey("00445790", "GB"), of4: 3, of7: 0},
	}

	for _, tt := range tests {
		t.Run(tt.key.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.of4, scheduler.ShardOf(tt.key, 4))
			assert.Equal(t, tt.of7, scheduler.ShardOf(tt.key, 7))
		})
	}
}

func TestShardOf_Deterministic(t *testing.T) {
	t.Parallel()

	key := domain.NewKey("912676951", "NO")
	first := scheduler.ShardOf(key, 5)
	for range 100 {
		assert.Equal(t, first, scheduler.ShardOf(key, 5))
	}
}

func TestShard_PartitionIsDisjointAndExhaustive(t *testing.T) {
	t.Parallel()

	for total := 1; total <= 8; total++ {
		shards := make([]scheduler.Shard, total)
		for id := range total {
			s, err := scheduler.NewShard(id, total)
			require.NoError(t, err)
			shards[id] = s
		}

		for i := range 500 {
			key := domain.NewKey(fmt.Sprintf("%09d", 900000000+i*7919), "NO")
			owners := 0
			for _, s := range shards {
				if s.Owns(key) {
					owners++
				}
			}
			require.Equal(t, 1, owners, "key %s with %d workers", key, total)
		}
	}
}

func TestNewShard_Validation(t *testing.T) {
	t.Parallel()

	for _, tc := range [][2]int{{0, 0}, {-1, 3}, {3, 3}, {5, 2}} {
		_, err := scheduler.NewShard(tc[0], tc[1])
		require.ErrorIs(t, err, scheduler.ErrInvalidShard, "id=%d total=%d", tc[0], tc[1])
	}

	s, err := scheduler.NewShard(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "2/3", s.String())
}

func TestShard_ZeroValueOwnsEverything(t *testing.T) {
	t.Parallel()

	var s scheduler.Shard
	assert.True(t, s.Owns(domain.NewKey("1", "NO")))
	assert.True(t, s.Owns(domain.NewKey("2", "DK")))
	assert.Equal(t, "0/1", s.String())
}
