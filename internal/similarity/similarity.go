// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package similarity compares feature vectors and maps the result to a
// bounded healing score.
package similarity

import (
	"math"

	"github.com/tejzpr/dermtrack/internal/progress"
)

// Cosine calculates the cosine similarity between two feature vectors.
// Vectors need not be unit length. The result is in [-1, 1].
//
// Each vector is divided by its largest absolute component before the sums
// are taken, so very large or very small finite components neither overflow
// nor underflow.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &progress.DimensionMismatchError{Expected: len(a), Actual: len(b)}
	}

	maxA, err := maxAbs(a, "a")
	if err != nil {
		return 0, err
	}
	maxB, err := maxAbs(b, "b")
	if err != nil {
		return 0, err
	}

	var dotProduct, normA, normB float64
	for i := range a {
		x := a[i] / maxA
		y := b[i] / maxB
		dotProduct += x * y
		normA += x * x
		normB += y * y
	}

	sim := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if math.IsNaN(sim) {
		return 0, &progress.DegenerateVectorError{Operand: "a", NonFinite: true}
	}
	// rounding can push |sim| a hair past 1
	return clamp(sim, -1, 1), nil
}

// maxAbs returns the largest absolute component of v. Zero vectors and
// vectors holding NaN or Inf are degenerate.
func maxAbs(v []float64, operand string) (float64, error) {
	var m float64
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return 0, &progress.DegenerateVectorError{Operand: operand, NonFinite: true}
		}
		if ax := math.Abs(x); ax > m {
			m = ax
		}
	}
	if m == 0 {
		return 0, &progress.DegenerateVectorError{Operand: operand}
	}
	return m, nil
}

// HealingScore maps a similarity to a percentage in [0, 100].
// Negative similarities score 0.
func HealingScore(similarity float64) float64 {
	return 100 * clamp(similarity, 0, 1)
}

// Score is Cosine followed by HealingScore
func Score(a, b []float64) (sim float64, score float64, err error) {
	sim, err = Cosine(a, b)
	if err != nil {
		return 0, 0, err
	}
	return sim, HealingScore(sim), nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
