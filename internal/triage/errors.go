package triage

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks reports that cannot be resolved into failed tests.
	ErrValidation = errors.New("validation error")

	// ErrFingerprint marks failures of the embedding step.
	ErrFingerprint = errors.New("fingerprint error")
)

type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid failure report: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
