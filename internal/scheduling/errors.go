package scheduling

import (
	"errors"
	"fmt"
)

// Kind tags every failure returned by the Engine.
type Kind string

const (
	KindInvalidIdentifier Kind = "InvalidIdentifier"
	KindInvalidFormat     Kind = "InvalidFormat"
	KindInvalidStatus     Kind = "InvalidStatus"
	KindDuplicateBooking  Kind = "DuplicateBooking"
	KindNotFound          Kind = "NotFound"
	KindStoreUnavailable  Kind = "StoreUnavailable"
	KindInvalidTransition Kind = "InvalidTransition"
	KindSlotUnavailable   Kind = "SlotUnavailable"
)

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrInvalidFormat     = errors.New("invalid format")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrDuplicateBooking  = errors.New("duplicate booking")
	ErrNotFound          = errors.New("not found")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrSlotUnavailable   = errors.New("slot unavailable")
)

var sentinels = map[Kind]error{
	KindInvalidIdentifier: ErrInvalidIdentifier,
	KindInvalidFormat:     ErrInvalidFormat,
	KindInvalidStatus:     ErrInvalidStatus,
	KindDuplicateBooking:  ErrDuplicateBooking,
	KindNotFound:          ErrNotFound,
	KindStoreUnavailable:  ErrStoreUnavailable,
	KindInvalidTransition: ErrInvalidTransition,
	KindSlotUnavailable:   ErrSlotUnavailable,
}

// Error carries the failing operation and target id. errors.Is matches both
// the kind's sentinel and the wrapped cause.
type Error struct {
	Kind Kind
	Op   string
	ID   string
	Err  error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.ID != "" {
		return fmt.Sprintf("%s %s: %s", e.Op, e.ID, msg)
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

func (e *Error) Unwrap() []error {
	errs := []error{sentinels[e.Kind]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func newError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, ID: id, Err: err}
}

// KindOf returns the kind of an Engine error, or "" for anything else.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
