package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	ErrNotFound       = errors.New("resource not found")
	ErrRunNotFound    = fmt.Errorf("%w: simulation run", ErrNotFound)
	ErrDesignNotFound = fmt.Errorf("%w: trial design", ErrNotFound)

	ErrInvalidDesign = errors.New("invalid trial design")
	ErrSeedMismatch  = errors.New("seed mismatch")
)

func NewValidationError(field string, reason string) error {
	return fmt.Errorf("%w: %s: %s", ErrInvalidDesign, field, reason)
}
