package ioasid

import "sync/atomic"

// entryState is the lifecycle state of an entry.
type entryState int32

const (
	entryActive entryState = iota
	entryFreePending
)

// entry is the tracking record for one live ID. It is never mutated after
// free's final reclaim step removes it from its tables; any reader holding
// a pointer to it keeps a valid, unchanging view for as long as it holds
// that pointer (Go's GC, not a manual epoch scheme, keeps it alive).
type entry struct {
	id  ID
	set *Set

	// grp is the backend group whose table this entry is stored in, kept
	// so free's reclaim step can call the right backend's Free and erase
	// from the right table even after a later backend swap has changed
	// which group is active.
	grp *backendGroup

	spid  atomic.Uint32
	state atomic.Int32
	refs  atomic.Int32

	// private holds the opaque consumer payload. atomic.Pointer gives
	// AttachData a torn-free swap and a publication barrier: once Store
	// returns, any goroutine whose Load observes the new pointer also
	// observes everything the writer did before the Store.
	private atomic.Pointer[any]
}

func newEntry(id ID, set *Set, private any) *entry {
	e := &entry{id: id, set: set}
	e.spid.Store(uint32(InvalidID))
	e.state.Store(int32(entryActive))
	e.refs.Store(1)
	e.private.Store(&private)
	return e
}

func (e *entry) loadSPID() ID {
	return ID(e.spid.Load())
}

func (e *entry) storeSPID(spid ID) {
	e.spid.Store(uint32(spid))
}

func (e *entry) loadState() entryState {
	return entryState(e.state.Load())
}

func (e *entry) markFreePending() {
	e.state.Store(int32(entryFreePending))
}

func (e *entry) loadPrivate() any {
	p := e.private.Load()
	if p == nil {
		return nil
	}
	return *p
}

func (e *entry) storePrivate(v any) {
	e.private.Store(&v)
}

// addRef increments the reference count. FreePending entries must never
// have their refcount increased; callers are expected to check state under
// the allocator lock before calling this.
func (e *entry) addRef() {
	e.refs.Add(1)
}

// release decrements the reference count and reports whether it reached
// zero (i.e. the caller must perform the reclaim).
func (e *entry) release() bool {
	return e.refs.Add(-1) == 0
}
