// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package progress

import (
	"errors"
	"fmt"
)

// Sentinel errors. Typed errors below match them through errors.Is.
var (
	ErrValidation                 = errors.New("validation failed")
	ErrNotFound                   = errors.New("not found")
	ErrEmptyHistory               = errors.New("no observations recorded")
	ErrInsufficientHistory        = errors.New("at least two observations are required")
	ErrDimensionMismatch          = errors.New("feature vector dimension mismatch")
	ErrDegenerateVector           = errors.New("feature vector has zero norm")
	ErrConcurrentBaselineConflict = errors.New("concurrent baseline conflict")
)

// ValidationError reports bad caller input on a single field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) hold
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// NewValidationError creates a ValidationError
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// DimensionMismatchError reports two feature vectors of different lengths
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("feature vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Is makes errors.Is(err, ErrDimensionMismatch) hold
func (e *DimensionMismatchError) Is(target error) bool {
	return target == ErrDimensionMismatch
}

// DegenerateVectorError reports a feature vector that cannot be compared:
// its Euclidean norm is zero or it holds a NaN or infinite component
type DegenerateVectorError struct {
	Operand   string // "a" or "b"
	NonFinite bool
}

func (e *DegenerateVectorError) Error() string {
	if e.NonFinite {
		return fmt.Sprintf("feature vector %s has a non-finite component", e.Operand)
	}
	return fmt.Sprintf("feature vector %s has zero norm", e.Operand)
}

// Is makes errors.Is(err, ErrDegenerateVector) hold
func (e *DegenerateVectorError) Is(target error) bool {
	return target == ErrDegenerateVector
}

// IsRecoverable reports whether err is an expected condition the caller can
// present as guidance (missing data or history) rather than a failure.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrEmptyHistory) ||
		errors.Is(err, ErrInsufficientHistory) ||
		errors.Is(err, ErrConcurrentBaselineConflict)
}

// IsConflict reports whether err is a baseline conflict that the caller may
// resolve by re-reading and retrying the append.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConcurrentBaselineConflict)
}
