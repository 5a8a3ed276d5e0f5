package category

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindNotFound Kind = iota + 1
	KindConflict
	KindValidation
	// KindTransactionFailure means storage failed during a structural
	// mutation. The transaction was rolled back, so the tree is unchanged
	// and the caller may retry from scratch.
	KindTransactionFailure
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindConflict:
		return "conflict"
	case KindValidation:
		return "validation error"
	case KindTransactionFailure:
		return "transaction failure"
	default:
		return "unknown"
	}
}

// Error is the typed error returned by the category store and use cases.
type Error struct {
	Kind Kind
	Op   string // operation, e.g. "category.Insert"
	ID   string // category the error is about, if any
	Err  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" (category %s)", e.ID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func NotFound(op, id string) error {
	return &Error{Kind: KindNotFound, Op: op, ID: id}
}

func Conflict(op, id string, err error) error {
	return &Error{Kind: KindConflict, Op: op, ID: id, Err: err}
}

func Validation(op string, err error) error {
	return &Error{Kind: KindValidation, Op: op, Err: err}
}

// TransactionFailure wraps a storage error. Typed errors pass through
// untouched so a NotFound raised inside a transaction keeps its kind.
func TransactionFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return err
	}
	return &Error{Kind: KindTransactionFailure, Op: op, Err: err}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func IsNotFound(err error) bool           { return KindOf(err) == KindNotFound }
func IsConflict(err error) bool           { return KindOf(err) == KindConflict }
func IsValidation(err error) bool         { return KindOf(err) == KindValidation }
func IsTransactionFailure(err error) bool { return KindOf(err) == KindTransactionFailure }
