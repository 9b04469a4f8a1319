// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package progress

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypedErrors_MatchSentinels(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		sentinel error
	}{
		{"validation", NewValidationError("name", "must not be empty"), ErrValidation},
		{"dimension", &DimensionMismatchError{Expected: 3, Actual: 2}, ErrDimensionMismatch},
		{"degenerate", &DegenerateVectorError{Operand: "a"}, ErrDegenerateVector},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.sentinel)
			assert.False(t, errors.Is(wrapped, ErrNotFound))
		})
	}
}

func TestDimensionMismatchError_Message(t *testing.T) {
	err := &DimensionMismatchError{Expected: 768, Actual: 512}
	assert.Equal(t, "feature vector dimension mismatch: expected 768, got 512", err.Error())

	var target *DimensionMismatchError
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &target))
	assert.Equal(t, 512, target.Actual)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(fmt.Errorf("x: %w", ErrEmptyHistory)))
	assert.True(t, IsRecoverable(ErrInsufficientHistory))
	assert.True(t, IsRecoverable(ErrNotFound))
	assert.True(t, IsRecoverable(ErrConcurrentBaselineConflict))
	assert.False(t, IsRecoverable(&DegenerateVectorError{Operand: "b"}))
	assert.False(t, IsRecoverable(NewValidationError("name", "empty")))
}

func TestObservation_TopPrediction(t *testing.T) {
	obs := &Observation{}
	_, ok := obs.TopPrediction()
	assert.False(t, ok)

	obs.Predictions = []Prediction{{Label: "eczema", Confidence: 0.8}, {Label: "psoriasis", Confidence: 0.1}}
	top, ok := obs.TopPrediction()
	assert.True(t, ok)
	assert.Equal(t, "eczema", top.Label)
}

func TestIsConflict(t *testing.T) {
	wrapped := fmt.Errorf("failed to append observation: %w", ErrConcurrentBaselineConflict)
	assert.True(t, IsConflict(wrapped))
	assert.False(t, IsConflict(ErrNotFound))
	assert.False(t, IsConflict(nil))
}
