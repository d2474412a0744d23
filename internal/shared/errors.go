package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies recoverable domain failures. Storage-layer failures
// are never wrapped in a kind; they propagate raw and roll the enclosing
// transaction back.
type ErrorKind string

const (
	// KindValidation covers malformed input, unbalanced entries, missing
	// account mappings and class mismatches.
	KindValidation ErrorKind = "VALIDATION"
	// KindStateConflict covers already-posted documents, fully paid
	// invoices, exhausted series and allocator collisions.
	KindStateConflict ErrorKind = "STATE_CONFLICT"
	// KindNotFound covers unknown organisation-scoped entities.
	KindNotFound ErrorKind = "NOT_FOUND"
	// KindPolicyViolation covers expired discount windows, payment
	// over-application and date-order violations.
	KindPolicyViolation ErrorKind = "POLICY_VIOLATION"
)

// Error is the domain error carried across service boundaries. Callers
// receive the specific kind plus the offending entity/field.
type Error struct {
	Kind   ErrorKind
	Entity string
	Field  string
	Msg    string
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s: %s", e.Entity, e.Field, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Entity, e.Msg)
}

// NewError builds a domain error.
func NewError(kind ErrorKind, entity, field, msg string) *Error {
	return &Error{Kind: kind, Entity: entity, Field: field, Msg: msg}
}

// KindOf returns the kind of a domain error, or empty for storage errors.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return ""
}
