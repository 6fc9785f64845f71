package ioasid

import (
	"reflect"
	"sync/atomic"
)

// Event is the lifecycle record delivered to subscribers.
type Event struct {
	ID      ID
	SPID    ID
	Private any
	Set     *Set
	Kind    EventKind
}

// Callback is a subscriber's event handler. It runs synchronously on the
// calling goroutine, under the allocator's lock; it must not call back
// into mutating allocator APIs (Alloc, Free, Get, Put, AllocSet, Set.Put,
// Subscribe*, Unsubscribe*, Notify), though Find is safe to call.
type Callback func(Event)

var nextSubscriberID atomic.Uint64

type subscriberRecord struct {
	id uint64
	cb Callback
}

type pendingSubscriber struct {
	id     uint64
	cb     Callback
	token  any
	active bool
	set    *Set
}

type subKind int

const (
	subGlobal subKind = iota
	subSet
	subToken
)

// Subscription is the opaque handle returned by Subscribe* calls, the
// idiomatic Go substitute for unsubscribing by passing the original
// callback value back in (Go func values aren't comparable). It plays the
// same role as a context.CancelFunc: hold onto it, hand it to the matching
// Unsubscribe* call when done.
type Subscription struct {
	kind  subKind
	id    uint64
	set   *Set
	token any
}

// newSubscriberRecord draws a subscriberRecord from the pool instead of
// allocating one, the same churn-absorbing pattern the teacher applies to
// its I/O buffers. Must be called with mu held.
func (a *Allocator) newSubscriberRecord(cb Callback) *subscriberRecord {
	rec := a.subRecordPool.Get().(*subscriberRecord)
	rec.id = nextSubscriberID.Add(1)
	rec.cb = cb
	return rec
}

// SubscribeGlobal registers cb on the global notifier chain.
func (a *Allocator) SubscribeGlobal(cb Callback) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.newSubscriberRecord(cb)
	a.globalNotifiers = append(a.globalNotifiers, rec)
	return &Subscription{kind: subGlobal, id: rec.id}
}

// UnsubscribeGlobal removes a subscription created by SubscribeGlobal.
func (a *Allocator) UnsubscribeGlobal(sub *Subscription) {
	if sub == nil || sub.kind != subGlobal {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.globalNotifiers = a.removeByID(a.globalNotifiers, sub.id)
}

// SubscribeSet registers cb on set's notifier chain.
func (a *Allocator) SubscribeSet(set *Set, cb Callback) *Subscription {
	a.mu.Lock()
	defer a.mu.Unlock()

	rec := a.newSubscriberRecord(cb)
	set.notifiers = append(set.notifiers, rec)
	return &Subscription{kind: subSet, id: rec.id, set: set}
}

// UnsubscribeSet removes a subscription created by SubscribeSet.
func (a *Allocator) UnsubscribeSet(sub *Subscription) {
	if sub == nil || sub.kind != subSet || sub.set == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	sub.set.notifiers = a.removeByID(sub.set.notifiers, sub.id)
}

// SubscribeByToken registers cb against a token. If a set with that token
// already exists and is empty, the subscriber attaches directly and is
// immediately active. If it exists and is non-empty, the call fails Busy.
// Otherwise the subscriber is recorded as pending-inactive, and becomes
// active the next time a set with this token is created.
func (a *Allocator) SubscribeByToken(token any, cb Callback) (*Subscription, error) {
	if token == nil {
		return nil, newError("SubscribeByToken", KindInvalid, "token must not be nil")
	}
	if !reflect.TypeOf(token).Comparable() {
		return nil, newError("SubscribeByToken", KindInvalid, "token must be a comparable value")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	for _, set := range a.sets {
		if set.token != token {
			continue
		}
		if set.live > 0 {
			return nil, newError("SubscribeByToken", KindBusy, "set for token is non-empty")
		}
		rec := a.newSubscriberRecord(cb)
		set.notifiers = append(set.notifiers, rec)
		return &Subscription{kind: subToken, id: rec.id, token: token, set: set}, nil
	}

	a.pendingMu.Lock()
	id := nextSubscriberID.Add(1)
	a.pending[token] = append(a.pending[token], &pendingSubscriber{id: id, cb: cb, token: token, active: false})
	a.pendingMu.Unlock()

	return &Subscription{kind: subToken, id: id, token: token}, nil
}

// UnsubscribeByToken removes a subscription created by SubscribeByToken,
// whether it is currently pending or attached to a live set.
func (a *Allocator) UnsubscribeByToken(sub *Subscription) {
	if sub == nil || sub.kind != subToken {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	// The subscriber may sit on any live set with this token: the one it
	// attached to directly, or one created after it was recorded pending.
	for _, set := range a.sets {
		if set.token == sub.token {
			set.notifiers = a.removeByID(set.notifiers, sub.id)
		}
	}

	a.pendingMu.Lock()
	defer a.pendingMu.Unlock()
	list := a.pending[sub.token]
	for i, p := range list {
		if p.id == sub.id {
			a.pending[sub.token] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(a.pending[sub.token]) == 0 {
		delete(a.pending, sub.token)
	}
}

// removeByID removes the record matching id from list and returns it to
// subRecordPool. Must be called with mu held.
func (a *Allocator) removeByID(list []*subscriberRecord, id uint64) []*subscriberRecord {
	for i, r := range list {
		if r.id == id {
			list = append(list[:i], list[i+1:]...)
			a.subRecordPool.Put(r)
			return list
		}
	}
	return list
}

// dispatchLocked delivers ev to every subscriber in list, in enqueue order.
// Must be called with a.mu held.
func (a *Allocator) dispatchLocked(list []*subscriberRecord, ev Event) {
	for _, rec := range list {
		rec.cb(ev)
	}
}

// Notify is a publisher-initiated convenience that looks up id's entry and
// dispatches a Bind/Unbind-style event the core itself never emits
// spontaneously. scope selects the global chain, or (if id belongs to a
// set) that set's chain.
func (a *Allocator) Notify(set *Set, id ID, kind EventKind, scope NotifyScope) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	e, ok := a.lookupLocked(set, id)
	if !ok {
		return newIDError("Notify", id, KindNotFound, "no such id")
	}

	ev := Event{ID: id, SPID: e.loadSPID(), Private: e.loadPrivate(), Set: e.set, Kind: kind}
	switch scope {
	case ScopeGlobal:
		a.dispatchLocked(a.globalNotifiers, ev)
	case ScopeSet:
		a.dispatchLocked(e.set.notifiers, ev)
	default:
		return newError("Notify", KindInvalid, "unknown scope")
	}
	a.observer.ObserveNotify()
	return nil
}
