package ioasid

import (
	"reflect"

	"github.com/google/uuid"
	"github.com/jpbrucker/go-ioasid/internal/constants"
	"github.com/jpbrucker/go-ioasid/internal/idtable"
)

// AllocFunc mints a raw id in [min, max] using ctx as the backend's own
// context. It returns InvalidID with an error if no id is available.
type AllocFunc func(min, max ID, ctx any) (ID, error)

// FreeFunc releases a raw id previously returned by the paired AllocFunc.
type FreeFunc func(id ID, ctx any)

// Ops is a pluggable allocator backend: a pair of raw id minting
// operations. Two registrations whose Ops funcs have the same underlying
// function pointers (regardless of the Go closures' addresses being
// distinct values) alias the same backend group and share one ID table.
type Ops struct {
	Alloc AllocFunc
	Free  FreeFunc
}

// opsKey identifies a (Alloc, Free) pair by function pointer identity, the
// idiomatic substitute for the C side's direct function-pointer equality:
// Go func values are not comparable with ==, but reflect.Value.Pointer()
// exposes the same underlying code pointer.
type opsKey struct {
	alloc uintptr
	free  uintptr
}

func keyOf(ops Ops) opsKey {
	return opsKey{
		alloc: reflect.ValueOf(ops.Alloc).Pointer(),
		free:  reflect.ValueOf(ops.Free).Pointer(),
	}
}

// Registration is the handle returned by RegisterBackend, used only to
// identify which member to remove on UnregisterBackend.
type Registration struct {
	id    uuid.UUID
	ops   Ops
	ctx   any
	group *backendGroup
}

// ID returns the opaque registration identifier, stable for the
// registration's lifetime and safe to log.
func (r *Registration) ID() string {
	return r.id.String()
}

// backendGroup is one or more registrations sharing function-pointer
// identity, and therefore sharing a single ID table.
type backendGroup struct {
	key     opsKey
	members []*Registration
	table   *idtable.Table
	custom  bool
}

func newBackendGroup(key opsKey, custom bool) *backendGroup {
	return &backendGroup{key: key, table: idtable.New(constants.IDTableShards), custom: custom}
}

func (g *backendGroup) removeMember(reg *Registration) {
	for i, m := range g.members {
		if m == reg {
			g.members = append(g.members[:i], g.members[i+1:]...)
			return
		}
	}
}

// defaultOps builds the Ops for the built-in default backend: Alloc scans
// the group's own table for an unused id in [min, max], relying on the
// allocator's global lock for exclusion (no separate reservation step is
// needed since the scan and the subsequent Alloc() insertion both run
// while that lock is held). Free is a no-op: the allocator itself erases
// the entry from the table as part of the free/reclaim path.
func defaultOps(table *idtable.Table) Ops {
	return Ops{
		Alloc: func(min, max ID, ctx any) (ID, error) {
			if min > max {
				return InvalidID, newError("Alloc", KindInvalid, "min > max")
			}
			for id := min; ; id++ {
				if !table.Contains(uint32(id)) {
					return id, nil
				}
				if id == max {
					break
				}
			}
			return InvalidID, newError("Alloc", KindNoSpace, "no free id in range")
		},
		Free: func(id ID, ctx any) {},
	}
}

// RegisterBackend installs a pluggable allocator backend, following the
// registration rules:
//  1. empty registry + default busy -> Busy
//  2. empty registry + default idle -> new active group
//  3. matching key and ctx already registered -> Exists
//  4. matching key, different ctx -> join that group (backend aliasing)
//  5. otherwise -> new candidate group, not active
func (a *Allocator) RegisterBackend(ops Ops, ctx any) (*Registration, error) {
	if ops.Alloc == nil || ops.Free == nil {
		return nil, newError("RegisterBackend", KindInvalid, "Alloc and Free must both be set")
	}
	if ctx != nil && !reflect.TypeOf(ctx).Comparable() {
		return nil, newError("RegisterBackend", KindInvalid, "ctx must be a comparable value")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	key := keyOf(ops)

	if len(a.groups) == 0 {
		if a.defaultGroup.table.Len() > 0 {
			return nil, newError("RegisterBackend", KindBusy, "default backend has live entries")
		}
		grp := newBackendGroup(key, true)
		reg := &Registration{id: uuid.New(), ops: ops, ctx: ctx, group: grp}
		grp.members = append(grp.members, reg)
		a.groups = append(a.groups, grp)
		a.active = grp
		a.refreshTablesLocked()
		return reg, nil
	}

	for _, grp := range a.groups {
		if grp.key != key {
			continue
		}
		for _, m := range grp.members {
			if m.ctx == ctx {
				return nil, newError("RegisterBackend", KindExists, "backend already registered with this context")
			}
		}
		reg := &Registration{id: uuid.New(), ops: ops, ctx: ctx, group: grp}
		grp.members = append(grp.members, reg)
		return reg, nil
	}

	grp := newBackendGroup(key, true)
	reg := &Registration{id: uuid.New(), ops: ops, ctx: ctx, group: grp}
	grp.members = append(grp.members, reg)
	a.groups = append(a.groups, grp)
	a.refreshTablesLocked()
	return reg, nil
}

// UnregisterBackend removes reg from its group. If the group becomes
// empty and its table is non-empty, this is a programming error on the
// caller's part: a warning is logged and the group is removed anyway,
// orphaning any surviving entries (spec-mandated "warn, refuse
// reclamation" behavior).
func (a *Allocator) UnregisterBackend(reg *Registration) {
	if reg == nil {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	grp := reg.group
	grp.removeMember(reg)
	if len(grp.members) > 0 {
		return
	}

	if grp.table.Len() > 0 {
		a.logger.Warn("unregistering backend group with live entries", "group", grp.key, "live", grp.table.Len())
	}

	for i, g := range a.groups {
		if g == grp {
			a.groups = append(a.groups[:i], a.groups[i+1:]...)
			break
		}
	}
	a.refreshTablesLocked()

	if a.active == grp {
		if len(a.groups) > 0 {
			a.active = a.groups[0]
		} else {
			a.active = a.defaultGroup
		}
	}
}

// activeOps returns the (Ops, ctx) pair the active group currently
// services requests with. For the default group there is exactly one
// synthetic member; for a custom group, aliased registrations are
// guaranteed to carry identical Ops by construction, so the first member
// is representative.
func (g *backendGroup) activeOps() (Ops, any) {
	m := g.members[0]
	return m.ops, m.ctx
}
