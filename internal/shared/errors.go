package shared

import (
	"errors"
	"fmt"
)

// Kind classifies domain failures so callers can branch on them.
type Kind string

const (
	KindValidation    Kind = "validation"
	KindNotFound      Kind = "not_found"
	KindStateConflict Kind = "state_conflict"
	KindSync          Kind = "sync"
)

var (
	// ErrValidation matches any validation failure.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound matches any missing or soft-deleted aggregate.
	ErrNotFound = errors.New("not found")
	// ErrStateConflict matches operations invalid for the current lifecycle state.
	ErrStateConflict = errors.New("invalid state")
	// ErrSync matches network or remote store failures during synchronisation.
	ErrSync = errors.New("sync failed")
)

// Error is the typed failure returned by domain services.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Op == "" {
		return msg
	}
	return fmt.Sprintf("%s: %s", e.Op, msg)
}

// Unwrap exposes the wrapped cause, usually a package sentinel.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the generic kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrStateConflict:
		return e.Kind == KindStateConflict
	case ErrSync:
		return e.Kind == KindSync
	}
	return false
}

// Validation reports invalid caller input. cause may be nil.
func Validation(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindValidation, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// NotFound reports a missing aggregate.
func NotFound(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindNotFound, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// Conflict reports an operation that the lifecycle state forbids.
func Conflict(op string, cause error, format string, args ...any) error {
	return &Error{Kind: KindStateConflict, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

// SyncFailure wraps a transport or remote failure.
func SyncFailure(op string, err error) error {
	return &Error{Kind: KindSync, Op: op, Err: err}
}

// KindOf returns the kind of err, or "" when err is not a domain failure.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}

// UserSafeMessage returns a message suitable for display.
func UserSafeMessage(err error) string {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		if de.Message != "" {
			return de.Message
		}
		if de.Err != nil {
			return de.Err.Error()
		}
	}
	return "internal error"
}
