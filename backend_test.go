package ioasid

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterBackendBecomesActive(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	mock := NewMockOps(10)

	reg, err := a.RegisterBackend(mock.Ops(), nil)
	require.NoError(t, err)
	assert.NotEmpty(t, reg.ID())

	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	id, err := a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 10, id)

	allocs, frees := mock.CallCounts()
	assert.Equal(t, 1, allocs)
	assert.Equal(t, 0, frees)

	require.NoError(t, a.Free(set, id))
	_, frees = mock.CallCounts()
	assert.Equal(t, 1, frees)
	assert.Equal(t, []ID{10}, mock.FreedIDs())
}

func TestRegisterBackendWhileDefaultBusyFails(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	_, err = a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)

	mock := NewMockOps(0)
	_, err = a.RegisterBackend(mock.Ops(), nil)
	assert.True(t, IsKind(err, KindBusy))
}

func TestRegisterBackendRejectsIncompleteOps(t *testing.T) {
	a := NewAllocator(WithCapacity(16))

	_, err := a.RegisterBackend(Ops{Alloc: func(min, max ID, ctx any) (ID, error) { return min, nil }}, nil)
	assert.True(t, IsKind(err, KindInvalid))
}

func TestAliasedBackendsShareTable(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	mock := NewMockOps(0)

	regA, err := a.RegisterBackend(mock.Ops(), "ctx-a")
	require.NoError(t, err)
	regB, err := a.RegisterBackend(mock.Ops(), "ctx-b")
	require.NoError(t, err)

	assert.Same(t, regA.group, regB.group)
}

func TestUnregisterPromotesCandidateGroup(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	mockA := NewMockOps(100)
	mockB := NewMockOps(200)

	// Every *MockOps shares the same alloc/free code pointers, so mockB's
	// Ops would alias mockA's group. Wrapping mockB's Alloc in its own
	// closure gives it a distinct key and therefore a separate group.
	opsB := mockB.Ops()
	allocB := opsB.Alloc
	opsB.Alloc = func(min, max ID, ctx any) (ID, error) { return allocB(min, max, ctx) }

	regA, err := a.RegisterBackend(mockA.Ops(), nil)
	require.NoError(t, err)
	_, err = a.RegisterBackend(opsB, nil)
	require.NoError(t, err)

	// Only the first custom registration becomes active; mockB's group is
	// a candidate until unregistering regA's group promotes it.
	a.UnregisterBackend(regA)

	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)
	id, err := a.Alloc(set, 0, 999, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 200, id)
}

func TestAllocRejectsCollidingBackendID(t *testing.T) {
	a := NewAllocator(WithCapacity(16))

	var freed []ID
	ops := Ops{
		Alloc: func(min, max ID, ctx any) (ID, error) { return min, nil },
		Free:  func(id ID, ctx any) { freed = append(freed, id) },
	}
	_, err := a.RegisterBackend(ops, nil)
	require.NoError(t, err)

	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	id1, err := a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)
	assert.EqualValues(t, 0, id1)

	// The mock backend always hands back min (0), which is already taken:
	// the allocator must call the compensating Free and fail rather than
	// overwrite the existing entry.
	_, err = a.Alloc(set, 0, 15, nil)
	assert.True(t, IsKind(err, KindInvalid))
	assert.Equal(t, []ID{0}, freed)
	assert.EqualValues(t, 1, set.Live())
}

func TestUnregisterBackendWithLiveEntriesOrphansThem(t *testing.T) {
	a := NewAllocator(WithCapacity(16))
	mock := NewMockOps(0)

	reg, err := a.RegisterBackend(mock.Ops(), nil)
	require.NoError(t, err)

	set, err := a.AllocSet(nil, 4, SetNull)
	require.NoError(t, err)

	id, err := a.Alloc(set, 0, 15, nil)
	require.NoError(t, err)

	// Unregistering with a live entry still present logs a warning but
	// proceeds anyway: the group is dropped from the registry entirely,
	// orphaning its table and leaving the entry unreachable through
	// Find, a deliberate "programming error" leak rather than a refusal.
	a.UnregisterBackend(reg)

	_, err = a.Find(set, id, nil)
	assert.True(t, IsKind(err, KindNotFound))
}
