package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound        = errors.New("not found")
	ErrAlreadyExists   = errors.New("already exists")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTypeMismatch    = errors.New("type mismatch")
	ErrPersistence     = errors.New("persistence failure")
)

// Both match ErrInvalidArgument with errors.Is.
var (
	ErrInvalidTransition = fmt.Errorf("%w: invalid state transition", ErrInvalidArgument)
	ErrReservedRelation  = fmt.Errorf("%w: relation is managed by the system", ErrInvalidArgument)
)

// persistenceError tags a gateway failure with ErrPersistence, keeping the
// adapter's cause in the chain.
func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("failed to %s: %w: %w", op, ErrPersistence, err)
}
