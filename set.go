package ioasid

import "reflect"

// Set is a quota-bounded sub-namespace of the id space. Every live id
// belongs to exactly one Set.
type Set struct {
	sid   uint64
	token any
	kind  SetType
	quota uint32
	live  uint32 // mutated only while a.mu is held
	index map[ID]*entry // mutated only while a.mu is held

	notifiers []*subscriberRecord
	refs      uint32

	a *Allocator
}

// Token returns the set's correlation token.
func (s *Set) Token() any { return s.token }

// Kind returns the set's type tag.
func (s *Set) Kind() SetType { return s.kind }

// Quota returns the set's current quota.
func (s *Set) Quota() uint32 {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	return s.quota
}

// Live returns the set's current live-id count.
func (s *Set) Live() uint32 {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	return s.live
}

// AllocSet registers a new Set, carving quota out of the allocator's shared
// capacity.
func (a *Allocator) AllocSet(token any, quota uint32, kind SetType) (*Set, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if kind != SetNull && kind != SetMm {
		return nil, newError("AllocSet", KindInvalid, "unknown set type")
	}
	if token != nil && !reflect.TypeOf(token).Comparable() {
		return nil, newError("AllocSet", KindInvalid, "token must be a comparable value")
	}
	if kind == SetNull && token != nil {
		return nil, newError("AllocSet", KindInvalid, "null-typed set must have a nil token")
	}
	if kind == SetMm && token != nil {
		for _, existing := range a.sets {
			if existing.kind == SetMm && existing.token == token {
				return nil, newError("AllocSet", KindExists, "a live Mm set already uses this token")
			}
		}
	}
	if quota == 0 {
		return nil, newError("AllocSet", KindInvalid, "quota must be nonzero")
	}
	if quota > a.capacityAvailable {
		return nil, newError("AllocSet", KindNoSpace, "quota exceeds available capacity")
	}

	a.nextSID++
	set := &Set{
		sid:   a.nextSID,
		token: token,
		kind:  kind,
		quota: quota,
		live:  0,
		index: make(map[ID]*entry),
		refs:  1,
		a:     a,
	}
	a.sets[set.sid] = set
	a.capacityAvailable -= quota

	a.attachPendingLocked(set)
	a.observer.ObserveSetCreate()

	return set, nil
}

// attachPendingLocked moves any pending-by-token subscribers matching this
// set's token onto the set's own notifier list and marks them active. Must
// be called with a.mu held.
func (a *Allocator) attachPendingLocked(set *Set) {
	if set.token == nil {
		return
	}
	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()

	pending := a.pending[set.token]
	if len(pending) == 0 {
		return
	}
	delete(a.pending, set.token)
	for _, p := range pending {
		rec := a.subRecordPool.Get().(*subscriberRecord)
		rec.id = p.id
		rec.cb = p.cb
		set.notifiers = append(set.notifiers, rec)
		p.active = true
		p.set = set
	}
}

// Get takes a reference on the set, preventing its destruction until a
// matching Put is issued.
func (s *Set) Get() {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	s.refs++
}

// Put releases a reference on the set. On the last reference, every live
// entry in the set is freed, the set's quota returns to the allocator's
// available capacity, SetFree is emitted on the global notifier bus and
// then on the set's own notifier list, and any pending-by-token
// subscribers then revert to inactive.
func (s *Set) Put() {
	s.a.mu.Lock()

	s.refs--
	if s.refs > 0 {
		s.a.mu.Unlock()
		return
	}

	for id, e := range s.index {
		s.a.reclaimLocked(s, id, e)
	}

	s.a.capacityAvailable += s.quota
	delete(s.a.sets, s.sid)

	ev := Event{Set: s, Kind: EventSetFree}
	s.a.dispatchLocked(s.a.globalNotifiers, ev)
	s.a.dispatchLocked(s.notifiers, ev)

	s.a.revertPendingLocked(s)
	s.a.observer.ObserveSetDestroy()

	s.a.mu.Unlock()
}

// revertPendingLocked moves this set's token-subscribers back onto the
// pending list as inactive, and in every case returns the now-unused
// subscriberRecord objects to the pool. Must be called with a.mu held.
func (a *Allocator) revertPendingLocked(s *Set) {
	if len(s.notifiers) == 0 {
		return
	}
	if s.token != nil {
		a.pendingMu.Lock()
		for _, rec := range s.notifiers {
			a.pending[s.token] = append(a.pending[s.token], &pendingSubscriber{
				id: rec.id, cb: rec.cb, token: s.token, active: false,
			})
		}
		a.pendingMu.Unlock()
	}
	for _, rec := range s.notifiers {
		a.subRecordPool.Put(rec)
	}
	s.notifiers = nil
}

// AdjustQuota changes the set's quota. It fails if the new quota would be
// smaller than the current live count, or if an increase would exceed the
// allocator's available capacity.
func (s *Set) AdjustQuota(newQuota uint32) error {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()

	if newQuota < s.live {
		return newError("AdjustQuota", KindInvalid, "new quota smaller than live count")
	}
	if newQuota > s.quota {
		delta := newQuota - s.quota
		if delta > s.a.capacityAvailable {
			return newError("AdjustQuota", KindNoSpace, "increase exceeds available capacity")
		}
		s.a.capacityAvailable -= delta
	} else if newQuota < s.quota {
		s.a.capacityAvailable += s.quota - newQuota
	}
	s.quota = newQuota
	return nil
}

// ForEach calls fn for every live id in the set, in an unspecified order,
// under the allocator's lock (fn must not call back into mutating
// allocator APIs).
func (s *Set) ForEach(fn func(id ID, private any)) {
	s.a.mu.Lock()
	defer s.a.mu.Unlock()
	for id, e := range s.index {
		fn(id, e.loadPrivate())
	}
}

// FindBySPID scans the set's index for an entry carrying the given
// set-private id, taking a reference on it before returning.
func (a *Allocator) FindBySPID(set *Set, spid ID) (ID, error) {
	if set == nil {
		return InvalidID, newError("FindBySPID", KindInvalid, "set must not be nil")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for id, e := range set.index {
		if e.loadSPID() == spid {
			if e.loadState() == entryFreePending {
				return InvalidID, newError("FindBySPID", KindBusy, "entry is free-pending")
			}
			e.addRef()
			return id, nil
		}
	}
	return InvalidID, newError("FindBySPID", KindNotFound, "no entry with this spid")
}
