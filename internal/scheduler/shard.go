// Package scheduler partitions business records across workers and runs the
// continuous fetch, filter, process, sleep loop for one worker.
package scheduler

import (
	"errors"
	"fmt"
	"hash/fnv"

	"github.com/Meltveit/qrydex/internal/domain"
)

// HashVersion identifies the shard assignment function.
//
// Version 1: FNV-1a 32-bit over the UTF-8 bytes of "CC:ORGNUMBER"
// (domain.Key.String), reduced modulo the worker count. Workers running
// different versions against the same store would overlap.
const HashVersion = 1

// ErrInvalidShard is returned for a worker id outside [0, total).
var ErrInvalidShard = errors.New("invalid shard")

// Shard is one worker's slice of the key space.
type Shard struct {
	ID    int
	Total int
}

// NewShard validates a worker id against the worker count.
func NewShard(id, total int) (Shard, error) {
	if total < 1 || id < 0 || id >= total {
		return Shard{}, fmt.Errorf("%w: worker %d of %d", ErrInvalidShard, id, total)
	}
	return Shard{ID: id, Total: total}, nil
}

// ShardOf returns the shard that owns key among total workers.
func ShardOf(key domain.Key, total int) int {
	if total <= 1 {
		return 0
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(key.String()))
	return int(h.Sum32() % uint32(total)) //nolint:gosec // total is a small positive worker count
}

// Owns reports whether key belongs to this shard. The zero Shard owns
// everything.
func (s Shard) Owns(key domain.Key) bool {
	if s.Total <= 1 {
		return true
	}
	return ShardOf(key, s.Total) == s.ID
}

func (s Shard) String() string {
	total := max(s.Total, 1)
	return fmt.Sprintf("%d/%d", s.ID, total)
}
