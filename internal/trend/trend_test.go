// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package trend

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tejzpr/dermtrack/internal/progress"
)

func TestClassify(t *testing.T) {
	c := NewClassifier(DefaultTolerance)

	tests := []struct {
		name     string
		scores   []float64
		expected progress.Trend
	}{
		{"empty", nil, progress.TrendStable},
		{"single score", []float64{42}, progress.TrendStable},
		{"steady improvement", []float64{60, 75, 90}, progress.TrendImproving},
		{"within tolerance", []float64{80, 78, 82}, progress.TrendStable},
		{"decline", []float64{90, 70, 60}, progress.TrendWorsening},
		{"exactly at tolerance", []float64{50, 55}, progress.TrendStable},
		{"exactly at negative tolerance", []float64{55, 50}, progress.TrendStable},
		{"middle noise ignored", []float64{50, 0, 100, 52}, progress.TrendStable},
		{"two points improving", []float64{10, 15.01}, progress.TrendImproving},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, c.Classify(tt.scores))
		})
	}
}

func TestClassify_CustomTolerance(t *testing.T) {
	strict := NewClassifier(0)
	assert.Equal(t, progress.TrendImproving, strict.Classify([]float64{80, 80.5}))
	assert.Equal(t, progress.TrendStable, strict.Classify([]float64{80, 80}))

	loose := NewClassifier(25)
	assert.Equal(t, progress.TrendStable, loose.Classify([]float64{60, 75, 80}))
	assert.Equal(t, progress.TrendWorsening, loose.Classify([]float64{90, 50}))
}

func TestNewClassifier_InvalidTolerance(t *testing.T) {
	assert.Equal(t, DefaultTolerance, NewClassifier(-1).Tolerance())
	assert.Equal(t, DefaultTolerance, NewClassifier(math.NaN()).Tolerance())
	assert.Equal(t, 12.5, NewClassifier(12.5).Tolerance())
}
