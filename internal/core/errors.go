package core

import (
	"errors"
	"strings"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrStorageUnavailable = errors.New("storage unavailable")
	ErrPositionOutOfRange = errors.New("position out of range")
	ErrAmbiguousMatch     = errors.New("ambiguous match")
	ErrStaleView          = errors.New("ledger changed since the view was read")
)

// ValidationError lists every constraint a record violated.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "invalid record: " + strings.Join(e.Violations, "; ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
