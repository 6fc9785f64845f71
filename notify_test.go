package ioasid

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeSetOnlyReceivesOwnEvents(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	setA, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)
	setB, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	var mu sync.Mutex
	var gotA, gotB int
	subA := a.SubscribeSet(setA, func(ev Event) {
		mu.Lock()
		gotA++
		mu.Unlock()
	})
	subB := a.SubscribeSet(setB, func(ev Event) {
		mu.Lock()
		gotB++
		mu.Unlock()
	})
	defer a.UnsubscribeSet(subA)
	defer a.UnsubscribeSet(subB)

	idA, err := a.Alloc(setA, 0, 15, nil)
	require.NoError(t, err)
	require.NoError(t, a.Free(setA, idA))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 2, gotA) // alloc + free
	assert.Equal(t, 0, gotB)
}

func TestUnsubscribeGlobalStopsDelivery(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	var mu sync.Mutex
	count := 0
	sub := a.SubscribeGlobal(func(ev Event) {
		mu.Lock()
		count++
		mu.Unlock()
	})

	id, err := a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)

	a.UnsubscribeGlobal(sub)

	require.NoError(t, a.Free(set, id))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, count) // only the alloc before unsubscribe
}

func TestSubscribeByTokenBusyWhenSetNonEmpty(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	token := "dev-1"
	set, err := a.AllocSet(token, 4, SetMm)
	require.NoError(t, err)

	_, err = a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)

	_, err = a.SubscribeByToken(token, func(Event) {})
	assert.True(t, IsKind(err, KindBusy))
}

func TestNotifyDispatchesBindEvent(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	id, err := a.Alloc(set, 0, 15, "payload")
	require.NoError(t, err)

	var mu sync.Mutex
	var kind EventKind
	sub := a.SubscribeSet(set, func(ev Event) {
		mu.Lock()
		kind = ev.Kind
		mu.Unlock()
	})
	defer a.UnsubscribeSet(sub)

	require.NoError(t, a.Notify(set, id, EventBind, ScopeSet))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, EventBind, kind)
}

func TestNotifyUnknownIDFails(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	err = a.Notify(set, ID(999), EventBind, ScopeGlobal)
	assert.True(t, IsKind(err, KindNotFound))
}

func TestFindCallableFromSubscriberCallback(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	var mu sync.Mutex
	var seenPrivate any
	var seenErr error
	sub := a.SubscribeGlobal(func(ev Event) {
		// Callback's documented contract: calling back into Alloc, Free,
		// Get, Put, etc. here would deadlock on a.mu, but Find must work.
		priv, err := a.Find(nil, ev.ID, nil)
		mu.Lock()
		seenPrivate = priv
		seenErr = err
		mu.Unlock()
	})
	defer a.UnsubscribeGlobal(sub)

	id, err := a.Alloc(set, 0, 15, "payload")
	require.NoError(t, err)

	mu.Lock()
	assert.NoError(t, seenErr)
	assert.Equal(t, "payload", seenPrivate)
	mu.Unlock()

	require.NoError(t, a.Free(set, id))

	mu.Lock()
	assert.NoError(t, seenErr)
	assert.Equal(t, "payload", seenPrivate)
	mu.Unlock()
}

func TestSubscribeByTokenRejectsUncomparableToken(t *testing.T) {
	a := NewAllocator(WithCapacity(16))

	_, err := a.SubscribeByToken([]int{1}, func(Event) {})
	assert.True(t, IsKind(err, KindInvalid))
}

func TestSetPutRevertsPendingTokenSubscriber(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	token := "dev-2"

	set, err := a.AllocSet(token, 4, SetMm)
	require.NoError(t, err)
	set.Put()

	sub, err := a.SubscribeByToken(token, func(Event) {})
	require.NoError(t, err)
	defer a.UnsubscribeByToken(sub)

	set2, err := a.AllocSet(token, 4, SetMm)
	require.NoError(t, err)
	set2.Put()
}
