// Package hash maps partition keys to partition indexes.
package hash

import (
	"sync/atomic"

	"github.com/zeebo/xxh3"
)

// Partitioner maps partition keys onto a fixed number of partitions.
//
// Non-empty keys always map to the same partition. Events without a key are
// spread across partitions round-robin, matching how a bus places unkeyed events.
type Partitioner struct {
	count uint64
	seed  uint64
	next  atomic.Uint64
}

// NewPartitioner creates a partitioner over count partitions.
//
// Parameters:
//   - count: Number of partitions (values < 1 are treated as 1)
//   - seed: Hash seed (0 = unseeded xxh3)
//
// Returns:
//   - *Partitioner: Ready-to-use partitioner
//
// Example:
//
//	p := hash.NewPartitioner(4, 0)
//	idx := p.Partition("game-42")
func NewPartitioner(count int, seed uint64) *Partitioner {
	if count < 1 {
		count = 1
	}

	return &Partitioner{count: uint64(count), seed: seed} //nolint:gosec // count >= 1
}

// Count returns the number of partitions.
func (p *Partitioner) Count() int {
	return int(p.count) //nolint:gosec // bounded by the int passed to NewPartitioner
}

// Partition returns the partition index for key.
func (p *Partitioner) Partition(key string) int {
	if key == "" {
		return int((p.next.Add(1) - 1) % p.count) //nolint:gosec // result < count
	}

	return int(p.hashKey(key) % p.count) //nolint:gosec // result < count
}

func (p *Partitioner) hashKey(key string) uint64 {
	if p.seed != 0 {
		return xxh3.HashStringSeed(key, p.seed)
	}

	return xxh3.HashString(key)
}
