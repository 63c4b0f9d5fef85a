package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Compare with errors.Is.
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("conflict")
	ErrDependency        = errors.New("dependency unavailable")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
)

var kinds = []error{
	ErrConflict,
	ErrValidation,
	ErrInsufficientFunds,
	ErrNotFound,
	ErrUnauthorized,
	ErrForbidden,
	ErrDependency,
}

// Error carries a kind, a caller-facing message and an optional cause
type Error struct {
	Kind    error
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Is matches the error kind so errors.Is(err, ErrNotFound) works on wrapped errors
func (e *Error) Is(target error) bool {
	return e.Kind == target
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewValidationError returns a user-fixable input error
func NewValidationError(format string, args ...interface{}) error {
	return &Error{Kind: ErrValidation, Message: fmt.Sprintf(format, args...)}
}

// NewNotFoundError returns an error for a missing entity
func NewNotFoundError(entity string) error {
	return &Error{Kind: ErrNotFound, Message: entity + " not found"}
}

// NewInsufficientFundsError returns the business-rule error for an overdraft attempt
func NewInsufficientFundsError(message string) error {
	return &Error{Kind: ErrInsufficientFunds, Message: message}
}

// NewConflictError returns an error for a state transition that already happened
func NewConflictError(message string) error {
	return &Error{Kind: ErrConflict, Message: message}
}

// NewUnauthorizedError returns an authentication failure
func NewUnauthorizedError(message string) error {
	return &Error{Kind: ErrUnauthorized, Message: message}
}

// NewForbiddenError returns an error for an operation the caller may not perform
func NewForbiddenError(message string) error {
	return &Error{Kind: ErrForbidden, Message: message}
}

// NewDependencyError wraps a store or oracle failure
func NewDependencyError(message string, err error) error {
	return &Error{Kind: ErrDependency, Message: message, Err: err}
}

// Message returns the caller-facing message of a domain error, or fallback
// for anything else
func Message(err error, fallback string) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Message
	}
	return fallback
}

// KindOf returns the kind of the outermost *Error in err's chain. Errors
// without one are matched against the kind sentinels; nil means unclassified.
func KindOf(err error) error {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
