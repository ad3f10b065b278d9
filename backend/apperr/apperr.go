// Package apperr classifies failures so callers can decide between
// retrying, giving up and re-uploading.
package apperr

import (
	"errors"
	"fmt"
)

type Kind int

const (
	Internal    Kind = iota
	Validation       // bad input, unknown id; never retried
	NotFound         // resource missing or owned by someone else
	Conflict         // resource in a state that forbids the operation
	IO               // reading an uploaded artifact failed
	NoData           // nothing to analyze
	Unreachable      // analysis service failed after the retry budget
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case IO:
		return "io"
	case NoData:
		return "no_data"
	case Unreachable:
		return "unreachable"
	default:
		return "internal"
	}
}

// Error carries a Kind and the operation that failed.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Op + ": " + e.Kind.String()
	}
	return e.Op + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// E wraps err with a Kind and operation name.
func E(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// Errorf builds an *Error from a formatted message.
func Errorf(kind Kind, op, format string, args ...any) error {
	return &Error{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain, or Internal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
