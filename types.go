// Package ioasid implements a process-wide I/O Address Space Identifier
// allocator: a service that mints, tracks, and reclaims short integer
// identifiers used by hardware I/O devices to tag DMA traffic with a
// context, conceptually modeled on PCIe PASIDs.
package ioasid

import "math"

// ID is a system-wide I/O address space identifier.
type ID uint32

// InvalidID is the sentinel value returned in place of a valid ID whenever
// an operation fails to mint or locate one. It is all-ones regardless of
// the configured id width, since no width this allocator supports uses the
// full 32 bits of the underlying type.
const InvalidID ID = ID(math.MaxUint32)

// SetType tags the kind of correlation token a Set is keyed by.
type SetType int

const (
	// SetNull sets carry no external correlation token.
	SetNull SetType = iota
	// SetMm sets are keyed by an address-space handle (the "mm" of the
	// original kernel design) and must be unique among live Mm sets.
	SetMm
)

func (t SetType) String() string {
	switch t {
	case SetNull:
		return "null"
	case SetMm:
		return "mm"
	default:
		return "unknown"
	}
}

// EventKind identifies the lifecycle event carried by a notifier dispatch.
type EventKind int

const (
	EventAlloc EventKind = iota
	EventFree
	EventBind
	EventUnbind
	EventSetFree
)

func (k EventKind) String() string {
	switch k {
	case EventAlloc:
		return "alloc"
	case EventFree:
		return "free"
	case EventBind:
		return "bind"
	case EventUnbind:
		return "unbind"
	case EventSetFree:
		return "set_free"
	default:
		return "unknown"
	}
}

// NotifyScope selects which notifier chain a Notify call dispatches on.
type NotifyScope int

const (
	ScopeGlobal NotifyScope = iota
	ScopeSet
)
