package ioasid

import (
	"errors"
	"fmt"
)

// Error represents a structured allocator error with context, modeled on
// the teacher's syscall-flavored *Error but carrying an ErrorKind instead
// of an errno.
type Error struct {
	Op    string    // Operation that failed (e.g., "Alloc", "RegisterBackend")
	ID    ID        // ID involved, if any (InvalidID if not applicable)
	Kind  ErrorKind // High-level error category
	Msg   string    // Human-readable message
	Inner error     // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}

	if e.Op == "" {
		return fmt.Sprintf("ioasid: %s", msg)
	}
	if e.ID != InvalidID {
		return fmt.Sprintf("ioasid: %s (op=%s id=%d)", msg, e.Op, e.ID)
	}
	return fmt.Sprintf("ioasid: %s (op=%s)", msg, e.Op)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Inner
}

// Is provides errors.Is support, including against the legacy sentinel
// errors below.
func (e *Error) Is(target error) bool {
	if target == nil {
		return false
	}

	if se, ok := target.(sentinelError); ok {
		return e.Kind == ErrorKind(se)
	}

	if te, ok := target.(*Error); ok {
		return e.Kind == te.Kind
	}

	return false
}

// ErrorKind represents the closed set of high-level error categories
// surfaced to callers.
type ErrorKind string

const (
	KindNotFound   ErrorKind = "not found"
	KindWrongSet   ErrorKind = "wrong set"
	KindBusy       ErrorKind = "busy"
	KindExists     ErrorKind = "exists"
	KindNoSpace    ErrorKind = "no space"
	KindNoMem      ErrorKind = "no memory"
	KindInvalid    ErrorKind = "invalid argument"
	KindOutOfQuota ErrorKind = "out of quota"
	KindNoBackend  ErrorKind = "no backend"
)

// sentinelError is the legacy sentinel-comparable error type, kept
// alongside the structured Error for callers that only care about the
// category (errors.Is(err, ioasid.ErrBusy)).
type sentinelError ErrorKind

func (e sentinelError) Error() string {
	return string(e)
}

// Legacy sentinel errors, one per ErrorKind.
const (
	ErrNotFound   = sentinelError(KindNotFound)
	ErrWrongSet   = sentinelError(KindWrongSet)
	ErrBusy       = sentinelError(KindBusy)
	ErrExists     = sentinelError(KindExists)
	ErrNoSpace    = sentinelError(KindNoSpace)
	ErrNoMem      = sentinelError(KindNoMem)
	ErrInvalid    = sentinelError(KindInvalid)
	ErrOutOfQuota = sentinelError(KindOutOfQuota)
	ErrNoBackend  = sentinelError(KindNoBackend)
)

// newError creates a new structured error.
func newError(op string, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, ID: InvalidID, Kind: kind, Msg: msg}
}

// newIDError creates a new structured error scoped to a specific ID.
func newIDError(op string, id ID, kind ErrorKind, msg string) *Error {
	return &Error{Op: op, ID: id, Kind: kind, Msg: msg}
}

// wrapError wraps an existing error with allocator context, preserving its
// Kind if it is already a structured Error.
func wrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ie, ok := inner.(*Error); ok {
		return &Error{Op: op, ID: ie.ID, Kind: ie.Kind, Msg: ie.Msg, Inner: ie.Inner}
	}
	return &Error{Op: op, ID: InvalidID, Kind: KindInvalid, Msg: inner.Error(), Inner: inner}
}

// IsKind reports whether err is a structured Error (or wraps one) matching
// the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
