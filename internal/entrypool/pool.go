// Package entrypool provides a sync.Pool-backed object pool, the same
// pattern the teacher uses for pooled I/O buffers (internal/queue's
// size-bucketed sync.Pool), generalized from byte slices to a
// caller-supplied object type. The allocator uses it to recycle
// subscriberRecord bookkeeping objects across Subscribe/Unsubscribe and
// pending-by-token reattach churn — never to recycle id table entries
// themselves, since those stay reachable from a lock-free reader for an
// unbounded time and reusing one out from under such a reader would hand
// back a different id's data.
package entrypool

import "sync"

// Pool wraps a sync.Pool with a reset hook so returned objects don't leak
// state from their previous life into the next Get.
type Pool struct {
	pool  sync.Pool
	reset func(any)
}

// New creates a Pool. newFn constructs a fresh object when the pool is
// empty, matching sync.Pool.New's signature. reset, if non-nil, is called
// on an object immediately before it is handed back out by Get, clearing
// any state left over from its previous use.
func New(newFn func() any, reset func(any)) *Pool {
	return &Pool{
		pool:  sync.Pool{New: newFn},
		reset: reset,
	}
}

// Get returns a pooled object, constructing a new one if the pool is empty.
func (p *Pool) Get() any {
	v := p.pool.Get()
	if p.reset != nil {
		p.reset(v)
	}
	return v
}

// Put returns obj to the pool for reuse.
func (p *Pool) Put(obj any) {
	p.pool.Put(obj)
}
