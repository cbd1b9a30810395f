package types

import (
	"errors"
	"fmt"
)

// NotFoundError reports a missing entity by kind and identifier.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %v not found", e.Entity, e.ID)
}

// ValidationError reports malformed or incomplete caller input.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// PreconditionError reports a domain-state precondition violation, such as
// activating a release missing core apps or applying a non-ready update.
type PreconditionError struct {
	Message string
}

func (e *PreconditionError) Error() string {
	return e.Message
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsPrecondition reports whether err wraps a PreconditionError.
func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}
