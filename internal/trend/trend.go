// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package trend classifies a healing-score trajectory.
package trend

import (
	"math"

	"github.com/tejzpr/dermtrack/internal/progress"
)

// DefaultTolerance is the default band, in percentage points, inside which
// the trajectory is considered stable.
const DefaultTolerance = 5.0

// Classifier is a two-point trend test: it compares the score against the
// most recent comparison point with the score against the oldest one.
// Scores in between are ignored.
type Classifier struct {
	tolerance float64
}

// NewClassifier creates a classifier. Negative or NaN tolerances fall back to DefaultTolerance.
func NewClassifier(tolerance float64) *Classifier {
	if tolerance < 0 || math.IsNaN(tolerance) {
		tolerance = DefaultTolerance
	}
	return &Classifier{tolerance: tolerance}
}

// Tolerance returns the configured tolerance
func (c *Classifier) Tolerance() float64 {
	return c.tolerance
}

// Classify classifies scores ordered chronologically by comparison point:
// scores[0] is the score against the oldest prior (normally the baseline)
// and the last element is the score against the most recent prior.
// Report comparisons are listed nearest-first; callers holding them must
// convert with report.TrendInput rather than pass them in that order.
func (c *Classifier) Classify(scores []float64) progress.Trend {
	if len(scores) < 2 {
		return progress.TrendStable
	}

	oldest := scores[0]
	recent := scores[len(scores)-1]

	switch delta := recent - oldest; {
	case delta > c.tolerance:
		return progress.TrendImproving
	case -delta > c.tolerance:
		return progress.TrendWorsening
	default:
		return progress.TrendStable
	}
}
