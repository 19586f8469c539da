// Package apperr defines the error kinds surfaced by the charging lifecycle engine.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound                = errors.New("not found")
	ErrForbidden               = errors.New("forbidden")
	ErrInvalidState            = errors.New("invalid state")
	ErrInvalidArgument         = errors.New("invalid argument")
	ErrPaymentInitiationFailed = errors.New("payment initiation failed")
	ErrConflict                = errors.New("conflict")
)

// Error carries the kind plus enough context to log and retry.
type Error struct {
	Kind   error
	Entity string
	ID     string
	Op     string
	Detail string
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Entity != "" {
		msg = fmt.Sprintf("%s (%s %s)", msg, e.Entity, e.ID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Is matches the kind sentinel.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an Error of the given kind.
func New(kind error, op, entity, id, detail string) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, ID: id, Detail: detail}
}

// Wrap builds an Error of the given kind around a cause.
func Wrap(kind error, op, entity, id string, cause error) *Error {
	return &Error{Kind: kind, Op: op, Entity: entity, ID: id, Cause: cause}
}

// Kind returns the sentinel for err, or nil when err is not a classified error.
func Kind(err error) error {
	for _, k := range []error{ErrNotFound, ErrForbidden, ErrInvalidState, ErrInvalidArgument, ErrPaymentInitiationFailed, ErrConflict} {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
