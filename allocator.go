package ioasid

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/jpbrucker/go-ioasid/internal/constants"
	"github.com/jpbrucker/go-ioasid/internal/entrypool"
	"github.com/jpbrucker/go-ioasid/internal/idtable"
	"github.com/jpbrucker/go-ioasid/internal/logging"
)

// Allocator is a process-wide IOASID allocator. The zero value is not
// usable; construct one with NewAllocator. All exported methods are
// safe for concurrent use.
type Allocator struct {
	mu sync.Mutex

	capacityTotal     uint32
	capacityAvailable uint32
	idWidth           uint

	// groups holds every custom backend group currently registered, in
	// registration order. The built-in default backend lives outside
	// this slice in defaultGroup, and becomes active again once groups
	// is emptied by UnregisterBackend.
	groups       []*backendGroup
	active       *backendGroup
	defaultGroup *backendGroup

	// tables is a lock-free-readable snapshot of every backend group's
	// table currently in scope, republished by refreshTablesLocked
	// whenever groups changes. Find reads this without taking mu, so it
	// can run concurrently with any writer (including from inside a
	// subscriber callback invoked while mu is already held).
	tables atomic.Pointer[[]*idtable.Table]

	sets    map[uint64]*Set
	nextSID uint64

	globalNotifiers []*subscriberRecord

	// pendingMu guards pending and is always acquired nested inside mu,
	// released before mu, matching the teacher's ordering discipline for
	// its own secondary locks.
	pendingMu sync.Mutex
	pending   map[any][]*pendingSubscriber

	// subRecordPool reuses subscriberRecord bookkeeping objects across the
	// Subscribe/Unsubscribe and pending-token reattach churn, the same
	// sync.Pool shape the teacher uses for its I/O buffers. Every record
	// that passes through the pool is only ever touched while mu is held,
	// so recycling it carries none of the lock-free-reader hazard that
	// ruled out pooling entries themselves.
	subRecordPool *entrypool.Pool

	logger   *logging.Logger
	observer Observer
}

// NewAllocator constructs an Allocator with the built-in default backend
// active and no sets registered.
func NewAllocator(opts ...Option) *Allocator {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	table := idtable.New(constants.IDTableShards)
	defGroup := &backendGroup{table: table, custom: false}
	defGroup.members = []*Registration{{
		id:    uuid.New(),
		ops:   defaultOps(table),
		ctx:   nil,
		group: defGroup,
	}}

	a := &Allocator{
		capacityTotal:     cfg.capacity,
		capacityAvailable: cfg.capacity,
		idWidth:           cfg.idWidth,
		defaultGroup:      defGroup,
		active:            defGroup,
		sets:              make(map[uint64]*Set),
		pending:           make(map[any][]*pendingSubscriber),
		subRecordPool: entrypool.New(
			func() any { return &subscriberRecord{} },
			func(v any) {
				r := v.(*subscriberRecord)
				r.id = 0
				r.cb = nil
			},
		),
		logger:   cfg.logger,
		observer: cfg.observer,
	}
	a.refreshTablesLocked()
	return a
}

// refreshTablesLocked republishes the lock-free snapshot Find scans:
// the default group's table first, then every custom group's table in
// registration order. Must be called with mu held, except during
// construction before the Allocator is visible to any other goroutine.
func (a *Allocator) refreshTablesLocked() {
	tables := make([]*idtable.Table, 0, 1+len(a.groups))
	tables = append(tables, a.defaultGroup.table)
	for _, g := range a.groups {
		tables = append(tables, g.table)
	}
	a.tables.Store(&tables)
}

// InstallCapacity replaces the allocator's total id-space capacity. It
// fails if any Set is currently registered, since shrinking capacity out
// from under live quota reservations has no sound semantics.
func (a *Allocator) InstallCapacity(total uint32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(a.sets) > 0 {
		return newError("InstallCapacity", KindBusy, "sets already allocated")
	}
	if a.idWidth < 32 && total > (uint32(1)<<a.idWidth) {
		return newError("InstallCapacity", KindInvalid, "capacity exceeds id width")
	}
	a.capacityTotal = total
	a.capacityAvailable = total
	return nil
}

// findEntryLocked locates id's entry by scanning every backend group's
// table. Must be called with a.mu held. A group's table is consulted
// regardless of whether that group is currently active, since an entry
// minted under a backend that has since been swapped out or unregistered
// (but whose group still has live members) must remain findable.
func (a *Allocator) findEntryLocked(id ID) (*entry, bool) {
	if v, ok := a.defaultGroup.table.Load(uint32(id)); ok {
		return v.(*entry), true
	}
	for _, g := range a.groups {
		if v, ok := g.table.Load(uint32(id)); ok {
			return v.(*entry), true
		}
	}
	return nil, false
}

// lookupLocked locates id's entry and, if set is non-nil, confirms it
// belongs to that set. Must be called with a.mu held.
func (a *Allocator) lookupLocked(set *Set, id ID) (*entry, bool) {
	e, ok := a.findEntryLocked(id)
	if !ok {
		return nil, false
	}
	if set != nil && e.set != set {
		return nil, false
	}
	return e, true
}

// reclaimLocked performs the final teardown of an entry whose refcount
// has dropped to zero while free-pending: it calls the originating
// group's Free, erases the table slot, and removes it from its set's
// index. It never mutates e itself, so any reader that already holds a
// pointer to e from before this call keeps observing a consistent,
// frozen view. Must be called with a.mu held.
func (a *Allocator) reclaimLocked(set *Set, id ID, e *entry) {
	ops, ctx := e.grp.activeOps()
	ops.Free(id, ctx)
	e.grp.table.Delete(uint32(id))

	if set != nil {
		delete(set.index, id)
		set.live--
	}
	a.observer.ObserveReclaim()
}

// Alloc mints a new id in [min, max] within set, using whichever backend
// is currently active, and stores private as its payload. The entry
// becomes visible in the active group's ID table before EventAlloc is
// dispatched.
func (a *Allocator) Alloc(set *Set, min, max ID, private any) (ID, error) {
	if set == nil {
		return InvalidID, newError("Alloc", KindInvalid, "set must not be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if set.a != a {
		return InvalidID, newError("Alloc", KindInvalid, "set does not belong to this allocator")
	}
	if set.live >= set.quota {
		a.observer.ObserveAlloc(false)
		return InvalidID, newError("Alloc", KindOutOfQuota, "set quota exhausted")
	}

	grp := a.active
	ops, ctx := grp.activeOps()
	id, err := ops.Alloc(min, max, ctx)
	if err != nil {
		a.observer.ObserveAlloc(false)
		return InvalidID, wrapError("Alloc", err)
	}

	// The table insertion is constrained to exactly this one id: a
	// misbehaving backend that hands back an id already in use is treated
	// the same as an outright allocation failure, with a compensating
	// Free and no set or capacity counters touched.
	if grp.table.Contains(uint32(id)) {
		ops.Free(id, ctx)
		a.observer.ObserveAlloc(false)
		return InvalidID, newIDError("Alloc", id, KindInvalid, "backend returned a colliding id")
	}

	e := newEntry(id, set, private)
	e.grp = grp
	grp.table.Store(uint32(id), e)
	set.index[id] = e
	set.live++

	a.observer.ObserveAlloc(true)

	ev := Event{ID: id, SPID: e.loadSPID(), Private: private, Set: set, Kind: EventAlloc}
	a.dispatchLocked(a.globalNotifiers, ev)
	a.dispatchLocked(set.notifiers, ev)

	return id, nil
}

// Free marks id free-pending and releases the entry's existence
// reference. If no other reference is outstanding, the entry is reclaimed
// immediately; otherwise reclamation is deferred to the matching Put.
func (a *Allocator) Free(set *Set, id ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.findEntryLocked(id)
	if !ok {
		a.logger.Warn("free of unknown id", "id", id)
		return nil
	}
	if set != nil && e.set != set {
		return newIDError("Free", id, KindWrongSet, "id belongs to a different set")
	}
	if e.loadState() == entryFreePending {
		return newIDError("Free", id, KindBusy, "already free-pending")
	}

	e.markFreePending()
	a.observer.ObserveFree()

	ev := Event{ID: id, SPID: e.loadSPID(), Private: e.loadPrivate(), Set: e.set, Kind: EventFree}
	a.dispatchLocked(a.globalNotifiers, ev)
	a.dispatchLocked(e.set.notifiers, ev)

	if e.release() {
		a.reclaimLocked(e.set, id, e)
	}

	return nil
}

// Get takes a reference on id, preventing its reclamation until a
// matching Put is issued. It fails Busy if the entry is already
// free-pending.
func (a *Allocator) Get(set *Set, id ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.findEntryLocked(id)
	if !ok {
		return newIDError("Get", id, KindNotFound, "no such id")
	}
	if set != nil && e.set != set {
		return newIDError("Get", id, KindWrongSet, "id belongs to a different set")
	}
	if e.loadState() == entryFreePending {
		return newIDError("Get", id, KindBusy, "entry is free-pending")
	}

	e.addRef()
	a.observer.ObserveGet()
	return nil
}

// Put releases a reference taken by Get. If this was the last reference
// and the entry is free-pending, it is reclaimed now.
func (a *Allocator) Put(set *Set, id ID) {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.findEntryLocked(id)
	if !ok {
		return
	}
	if set != nil && e.set != set {
		return
	}

	a.observer.ObservePut()
	if e.release() && e.loadState() == entryFreePending {
		a.reclaimLocked(e.set, id, e)
	}
}

// Find looks up id's private payload without taking a reference. If
// validator is non-nil, it is run against the payload and a failed
// validation is reported as an Invalid error rather than a successful
// lookup of the wrong kind of entry.
//
// Unlike every other Allocator method, Find takes no lock of its own: it
// reads the atomically-published table snapshot and then only ever takes
// idtable.Table's shard-level RLock, so it runs lock-free with respect to
// mu. This is what lets a subscriber callback invoked from dispatchLocked
// (itself running with mu held) safely call Find without deadlocking —
// a regular sync.Mutex is not reentrant, so any lookup method that took mu
// here would wedge the allocator the moment a well-behaved subscriber
// followed Callback's documented contract.
func (a *Allocator) Find(set *Set, id ID, validator func(any) bool) (any, error) {
	e := a.findLockFree(id)
	if e == nil {
		return nil, newIDError("Find", id, KindNotFound, "no such id")
	}
	if set != nil && e.set != set {
		return nil, newIDError("Find", id, KindWrongSet, "id belongs to a different set")
	}

	private := e.loadPrivate()
	if validator != nil && !validator(private) {
		return nil, newIDError("Find", id, KindInvalid, "validator rejected entry")
	}
	return private, nil
}

// findLockFree scans the published table snapshot for id, taking no lock
// beyond each idtable.Table's own shard RLock. A group removed from the
// registry between the snapshot being taken and now is still searched for
// the remainder of this call (the old slice it's part of stays alive for
// as long as this goroutine holds it), which only ever makes an id that
// would otherwise have been reported NotFound transiently findable a
// little longer — it never reports a wrong or torn value.
func (a *Allocator) findLockFree(id ID) *entry {
	tables := a.tables.Load()
	if tables == nil {
		return nil
	}
	for _, tbl := range *tables {
		if v, ok := tbl.Load(uint32(id)); ok {
			return v.(*entry)
		}
	}
	return nil
}

// AttachData replaces id's private payload in place.
func (a *Allocator) AttachData(id ID, data any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.findEntryLocked(id)
	if !ok {
		return newIDError("AttachData", id, KindNotFound, "no such id")
	}
	e.storePrivate(data)
	return nil
}

// AttachSPID records a set-private id alongside id's entry, making it
// discoverable later via FindBySPID.
func (a *Allocator) AttachSPID(id ID, spid ID) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.findEntryLocked(id)
	if !ok {
		return newIDError("AttachSPID", id, KindNotFound, "no such id")
	}
	e.storeSPID(spid)
	return nil
}
