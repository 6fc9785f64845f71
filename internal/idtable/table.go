// Package idtable implements the concurrent id->value store shared by every
// backend group in the allocator. It is the generalized form of the
// teacher's sharded byte-range memory backend: the same "lock only the
// shard you touch" shape, with shards keyed by id hash bucket instead of
// byte offset.
package idtable

import "sync"

// DefaultShards is the default number of shards a Table splits its key
// space across. Must be a power of two so shard selection can use a mask
// instead of a division.
const DefaultShards = 64

// Table is a concurrent map[uint32]any sharded across a fixed number of
// sync.RWMutex-guarded buckets. Readers only ever take a shard RLock, so a
// Load on one shard never contends with a Store/Delete on another.
//
// Values are stored as `any` rather than a concrete entry type to keep this
// package free of a dependency on the allocator package that embeds it.
type Table struct {
	shards []shard
	mask   uint32
}

type shard struct {
	mu sync.RWMutex
	m  map[uint32]any
}

// New creates a Table with the given number of shards, rounded up to the
// next power of two. numShards <= 0 selects DefaultShards.
func New(numShards int) *Table {
	if numShards <= 0 {
		numShards = DefaultShards
	}
	n := 1
	for n < numShards {
		n <<= 1
	}
	t := &Table{
		shards: make([]shard, n),
		mask:   uint32(n - 1),
	}
	for i := range t.shards {
		t.shards[i].m = make(map[uint32]any)
	}
	return t
}

func (t *Table) shardFor(key uint32) *shard {
	return &t.shards[hash32(key)&t.mask]
}

// hash32 spreads keys that are likely to be sequential (ids are minted in
// increasing order) across shards instead of clustering them in one bucket.
func hash32(x uint32) uint32 {
	x ^= x >> 16
	x *= 0x7feb352d
	x ^= x >> 15
	x *= 0x846ca68b
	x ^= x >> 16
	return x
}

// Load returns the value stored for key, if any.
func (t *Table) Load(key uint32) (any, bool) {
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.m[key]
	return v, ok
}

// Contains reports whether key is present, without returning the value.
func (t *Table) Contains(key uint32) bool {
	s := t.shardFor(key)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.m[key]
	return ok
}

// Store inserts or replaces the value for key.
func (t *Table) Store(key uint32, val any) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[key] = val
}

// Delete removes key. It only removes the map slot; it never touches the
// value that was stored there, so a reader that already holds a copy of the
// value keeps a valid reference for as long as it holds it.
func (t *Table) Delete(key uint32) {
	s := t.shardFor(key)
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// Len returns the total number of entries across all shards. Intended for
// emptiness checks (e.g. before removing a backend group), not for hot
// paths: it locks every shard in turn.
func (t *Table) Len() int {
	total := 0
	for i := range t.shards {
		t.shards[i].mu.RLock()
		total += len(t.shards[i].m)
		t.shards[i].mu.RUnlock()
	}
	return total
}

// Range calls fn for a snapshot of every (key, value) pair. It iterates
// shard by shard, taking each shard's RLock only while copying that shard's
// entries, so it never holds more than one shard lock at a time and never
// blocks a writer for the whole table's duration. fn returning false stops
// iteration early.
func (t *Table) Range(fn func(key uint32, val any) bool) {
	for i := range t.shards {
		t.shards[i].mu.RLock()
		snapshot := make(map[uint32]any, len(t.shards[i].m))
		for k, v := range t.shards[i].m {
			snapshot[k] = v
		}
		t.shards[i].mu.RUnlock()

		for k, v := range snapshot {
			if !fn(k, v) {
				return
			}
		}
	}
}
