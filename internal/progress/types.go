// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package progress holds the domain types and error taxonomy shared by the
// progress-tracking engine: sections, observations, comparisons and reports.
package progress

import "time"

// Section is a named tracking context owned by exactly one user
type Section struct {
	ID          string    `json:"id" yaml:"id"`
	OwnerID     uint      `json:"owner_id" yaml:"owner_id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// Prediction is one (label, confidence) pair supplied by the vision service
type Prediction struct {
	Label      string  `json:"label" yaml:"label"`
	Confidence float64 `json:"confidence" yaml:"confidence"`
}

// Observation is one submitted analysis event. SectionID is nil for
// general-mode observations that are not tracked in any section.
type Observation struct {
	ID          uint         `json:"id" yaml:"id"`
	OwnerID     uint         `json:"owner_id" yaml:"owner_id"`
	SectionID   *string      `json:"section_id,omitempty" yaml:"section_id,omitempty"`
	CapturedAt  time.Time    `json:"captured_at" yaml:"captured_at"`
	Features    []float64    `json:"-" yaml:"-"`
	Predictions []Prediction `json:"predictions" yaml:"predictions"`
	Baseline    bool         `json:"baseline" yaml:"baseline"`
	Annotation  string       `json:"annotation,omitempty" yaml:"annotation,omitempty"`
	Narrative   *string      `json:"narrative,omitempty" yaml:"narrative,omitempty"`
}

// TopPrediction returns the first prediction, or ok=false when there is none
func (o *Observation) TopPrediction() (Prediction, bool) {
	if len(o.Predictions) == 0 {
		return Prediction{}, false
	}
	return o.Predictions[0], true
}

// Trend is the directional classification of a healing-score trajectory
type Trend string

// Trend values
const (
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendWorsening Trend = "worsening"
)

// Comparison is the derived result of scoring the latest observation against one prior
type Comparison struct {
	PriorID         uint          `json:"prior_id" yaml:"prior_id"`
	PriorCapturedAt time.Time     `json:"prior_captured_at" yaml:"prior_captured_at"`
	PriorTopLabel   string        `json:"prior_top_label,omitempty" yaml:"prior_top_label,omitempty"`
	Similarity      float64       `json:"similarity" yaml:"similarity"`
	HealingScore    float64       `json:"healing_score" yaml:"healing_score"`
	Elapsed         time.Duration `json:"elapsed_ns" yaml:"elapsed"`
	PriorIsBaseline bool          `json:"prior_is_baseline" yaml:"prior_is_baseline"`
}

// Report is the structured comparison report for one section.
// Narrative stays nil until the narrative collaborator fills it in.
type Report struct {
	SectionID           string       `json:"section_id" yaml:"section_id"`
	SectionName         string       `json:"section_name,omitempty" yaml:"section_name,omitempty"`
	LatestID            uint         `json:"latest_id" yaml:"latest_id"`
	LatestCapturedAt    time.Time    `json:"latest_captured_at" yaml:"latest_captured_at"`
	LatestPredictions   []Prediction `json:"latest_predictions" yaml:"latest_predictions"`
	LatestAnnotation    string       `json:"latest_annotation,omitempty" yaml:"latest_annotation,omitempty"`
	BaselineID          *uint        `json:"baseline_id,omitempty" yaml:"baseline_id,omitempty"`
	BaselineCapturedAt  *time.Time   `json:"baseline_captured_at,omitempty" yaml:"baseline_captured_at,omitempty"`
	PriorCount          int          `json:"prior_count" yaml:"prior_count"`
	Comparisons         []Comparison `json:"comparisons" yaml:"comparisons"`
	AverageHealingScore float64      `json:"average_healing_score" yaml:"average_healing_score"`
	Trend               Trend        `json:"trend" yaml:"trend"`
	Narrative           *string      `json:"narrative,omitempty" yaml:"narrative,omitempty"`
}
