// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package report builds structured progress reports for a section.
package report

import (
	"context"
	"fmt"
	"sort"

	"github.com/tejzpr/dermtrack/internal/progress"
	"github.com/tejzpr/dermtrack/internal/similarity"
	"github.com/tejzpr/dermtrack/internal/trend"
)

// Source is the read side of the observation ledger
type Source interface {
	Latest(ctx context.Context, sectionID string) (*progress.Observation, error)
	PriorTo(ctx context.Context, sectionID string, excludeID uint) ([]progress.Observation, error)
}

// Assembler compares the latest observation of a section against every
// earlier one
type Assembler struct {
	source     Source
	classifier *trend.Classifier
}

// NewAssembler creates an assembler. A nil classifier uses the default
// tolerance.
func NewAssembler(source Source, classifier *trend.Classifier) *Assembler {
	if classifier == nil {
		classifier = trend.NewClassifier(trend.DefaultTolerance)
	}
	return &Assembler{source: source, classifier: classifier}
}

// BuildSectionReport is BuildReport with the section name filled in
func (a *Assembler) BuildSectionReport(ctx context.Context, section *progress.Section) (*progress.Report, error) {
	r, err := a.BuildReport(ctx, section.ID)
	if err != nil {
		return nil, err
	}
	r.SectionName = section.Name
	return r, nil
}

// BuildReport assembles the report for sectionID. It fails with
// progress.ErrEmptyHistory when the section has no observations and with
// progress.ErrInsufficientHistory when it has only one. The narrative is
// copied from the latest observation if one was stored earlier.
func (a *Assembler) BuildReport(ctx context.Context, sectionID string) (*progress.Report, error) {
	latest, err := a.source.Latest(ctx, sectionID)
	if err != nil {
		return nil, err
	}

	prior, err := a.source.PriorTo(ctx, sectionID, latest.ID)
	if err != nil {
		return nil, err
	}
	if len(prior) == 0 {
		return nil, fmt.Errorf("section %s: %w", sectionID, progress.ErrInsufficientHistory)
	}

	r := &progress.Report{
		SectionID:         sectionID,
		LatestID:          latest.ID,
		LatestCapturedAt:  latest.CapturedAt,
		LatestPredictions: latest.Predictions,
		LatestAnnotation:  latest.Annotation,
		PriorCount:        len(prior),
		Narrative:         latest.Narrative,
	}

	comparisons := make([]progress.Comparison, 0, len(prior))
	var total float64
	for i := range prior {
		p := &prior[i]

		sim, score, err := similarity.Score(latest.Features, p.Features)
		if err != nil {
			return nil, fmt.Errorf("comparing observation %d with %d: %w", latest.ID, p.ID, err)
		}

		c := progress.Comparison{
			PriorID:         p.ID,
			PriorCapturedAt: p.CapturedAt,
			Similarity:      sim,
			HealingScore:    score,
			Elapsed:         latest.CapturedAt.Sub(p.CapturedAt),
			PriorIsBaseline: p.Baseline,
		}
		if top, ok := p.TopPrediction(); ok {
			c.PriorTopLabel = top.Label
		}
		comparisons = append(comparisons, c)
		total += score

		if p.Baseline {
			id := p.ID
			at := p.CapturedAt
			r.BaselineID = &id
			r.BaselineCapturedAt = &at
		}
	}

	// Nearest in time first
	sort.SliceStable(comparisons, func(i, j int) bool {
		if comparisons[i].Elapsed != comparisons[j].Elapsed {
			return comparisons[i].Elapsed < comparisons[j].Elapsed
		}
		return comparisons[i].PriorID > comparisons[j].PriorID
	})

	r.Comparisons = comparisons
	r.AverageHealingScore = total / float64(len(comparisons))
	r.Trend = a.classifier.Classify(TrendInput(comparisons))

	return r, nil
}

// TrendInput orders the healing scores of nearest-first comparisons from
// the oldest comparison point to the most recent one.
func TrendInput(comparisons []progress.Comparison) []float64 {
	scores := make([]float64, len(comparisons))
	for i, c := range comparisons {
		scores[len(comparisons)-1-i] = c.HealingScore
	}
	return scores
}
