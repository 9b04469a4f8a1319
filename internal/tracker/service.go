// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package tracker is the entry point used by the HTTP, MCP and CLI layers.
// Every call is scoped to an owner; sections of other users are reported as
// not found.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tejzpr/dermtrack/internal/ledger"
	"github.com/tejzpr/dermtrack/internal/metrics"
	"github.com/tejzpr/dermtrack/internal/narrative"
	"github.com/tejzpr/dermtrack/internal/progress"
	"github.com/tejzpr/dermtrack/internal/report"
	"github.com/tejzpr/dermtrack/internal/sections"
	"github.com/tejzpr/dermtrack/internal/store"
	"github.com/tejzpr/dermtrack/internal/trend"
	"go.uber.org/zap"
)

// Options configures a Service
type Options struct {
	TrendTolerance    float64
	FeatureDimensions int
	Generator         narrative.Generator // nil disables narratives
	Metrics           *metrics.Metrics
	Logger            *zap.Logger
	Clock             func() time.Time
}

// ReportOptions controls narrative handling for a report request
type ReportOptions struct {
	Narrative  bool // attach a narrative, generating one if none is stored
	Regenerate bool // replace a stored narrative
}

// ReportResult is a report plus the outcome of the narrative step
type ReportResult struct {
	Report           *progress.Report `json:"report" yaml:"report"`
	NarrativeOutcome string           `json:"narrative_outcome,omitempty" yaml:"narrative_outcome,omitempty"`
	NarrativeError   string           `json:"narrative_error,omitempty" yaml:"narrative_error,omitempty"`
}

// Service wires the registry, ledger, assembler and narrative service
type Service struct {
	store      *store.Store
	sections   *sections.Registry
	ledger     *ledger.Ledger
	assembler  *report.Assembler
	narratives *narrative.Service
	metrics    *metrics.Metrics
	logger     *zap.Logger

	// backfill walks sections by ID and wraps around when a page comes back short
	backfillMu     sync.Mutex
	backfillCursor string
}

// New creates a service on top of st
func New(st *store.Store, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	ledgerOpts := []ledger.Option{
		ledger.WithDimensions(opts.FeatureDimensions),
		ledger.WithLogger(logger.Named("ledger")),
	}
	if opts.Clock != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithClock(opts.Clock))
	}
	l := ledger.New(st, ledgerOpts...)

	return &Service{
		store:      st,
		sections:   sections.NewRegistry(st, logger.Named("sections")),
		ledger:     l,
		assembler:  report.NewAssembler(l, trend.NewClassifier(opts.TrendTolerance)),
		narratives: narrative.NewService(opts.Generator, l, logger.Named("narrative")),
		metrics:    opts.Metrics,
		logger:     logger,
	}
}

// Ledger exposes the underlying ledger
func (s *Service) Ledger() *ledger.Ledger {
	return s.ledger
}

// NarrativesEnabled reports whether a narrative generator is configured
func (s *Service) NarrativesEnabled() bool {
	return s.narratives.Enabled()
}

// CreateSection creates a section for owner
func (s *Service) CreateSection(ctx context.Context, owner uint, name, description string) (*progress.Section, error) {
	return s.sections.Create(ctx, owner, name, description)
}

// ListSections lists owner's sections
func (s *Service) ListSections(ctx context.Context, owner uint) ([]progress.Section, error) {
	return s.sections.List(ctx, owner)
}

// GetSection returns one of owner's sections
func (s *Service) GetSection(ctx context.Context, owner uint, id string) (*progress.Section, error) {
	return s.sections.Get(ctx, owner, id)
}

// UpdateSection renames or re-describes a section
func (s *Service) UpdateSection(ctx context.Context, owner uint, id string, upd sections.Update) (*progress.Section, error) {
	return s.sections.Update(ctx, owner, id, upd)
}

// DeleteSection removes a section and its observations
func (s *Service) DeleteSection(ctx context.Context, owner uint, id string) error {
	return s.sections.Delete(ctx, owner, id)
}

// AppendObservation records an observation in one of owner's sections
func (s *Service) AppendObservation(ctx context.Context, owner uint, sectionID string, in ledger.AppendInput) (*progress.Observation, error) {
	if _, err := s.sections.Get(ctx, owner, sectionID); err != nil {
		return nil, err
	}

	obs, err := s.ledger.Append(ctx, owner, sectionID, in)
	if err != nil {
		if progress.IsConflict(err) {
			s.metrics.BaselineConflict()
		}
		return nil, err
	}

	s.metrics.ObservationAppended(obs.Baseline)
	return obs, nil
}

// AppendGeneral records an observation outside any section
func (s *Service) AppendGeneral(ctx context.Context, owner uint, in ledger.AppendInput) (*progress.Observation, error) {
	obs, err := s.ledger.AppendGeneral(ctx, owner, in)
	if err != nil {
		return nil, err
	}
	s.metrics.ObservationAppended(false)
	return obs, nil
}

// History lists a section's observations, newest first
func (s *Service) History(ctx context.Context, owner uint, sectionID string) ([]progress.Observation, error) {
	if _, err := s.sections.Get(ctx, owner, sectionID); err != nil {
		return nil, err
	}
	return s.ledger.History(ctx, sectionID)
}

// GeneralHistory lists owner's section-less observations, newest first
func (s *Service) GeneralHistory(ctx context.Context, owner uint, limit int) ([]progress.Observation, error) {
	return s.store.ListGeneralObservations(ctx, owner, limit)
}

// Latest returns the newest observation of a section
func (s *Service) Latest(ctx context.Context, owner uint, sectionID string) (*progress.Observation, error) {
	if _, err := s.sections.Get(ctx, owner, sectionID); err != nil {
		return nil, err
	}
	return s.ledger.Latest(ctx, sectionID)
}

// Baseline returns the section's baseline, or nil before the first append
func (s *Service) Baseline(ctx context.Context, owner uint, sectionID string) (*progress.Observation, error) {
	if _, err := s.sections.Get(ctx, owner, sectionID); err != nil {
		return nil, err
	}
	return s.ledger.BaselineOf(ctx, sectionID)
}

// Report builds the progress report of a section and, if asked, attaches a
// narrative. Narrative failures never fail the call.
func (s *Service) Report(ctx context.Context, owner uint, sectionID string, opts ReportOptions) (*ReportResult, error) {
	section, err := s.sections.Get(ctx, owner, sectionID)
	if err != nil {
		return nil, err
	}

	r, err := s.assembler.BuildSectionReport(ctx, section)
	if err != nil {
		s.metrics.ReportFailed(ErrorReason(err))
		return nil, err
	}
	s.recordReport(r)

	result := &ReportResult{Report: r}
	if opts.Narrative || opts.Regenerate {
		res := s.narratives.Narrate(ctx, r, opts.Regenerate)
		s.metrics.Narrative(string(res.Outcome))
		result.NarrativeOutcome = string(res.Outcome)
		if res.Err != nil {
			result.NarrativeError = res.Err.Error()
		}
	}

	return result, nil
}

// BackfillNarratives generates narratives for sections whose latest
// observation has none. Each call continues after the last section the
// previous call looked at, so sections that keep failing do not hold back
// the rest. It returns how many were generated.
func (s *Service) BackfillNarratives(ctx context.Context, limit int) (int, error) {
	if !s.narratives.Enabled() {
		return 0, nil
	}

	s.backfillMu.Lock()
	defer s.backfillMu.Unlock()

	candidates, err := s.store.ListSectionsAwaitingNarrative(ctx, 2, s.backfillCursor, limit)
	if err != nil {
		return 0, fmt.Errorf("failed to list sections: %w", err)
	}
	if limit <= 0 || len(candidates) < limit {
		s.backfillCursor = ""
	} else {
		s.backfillCursor = candidates[len(candidates)-1].ID
	}

	generated := 0
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return generated, err
		}

		section := &candidates[i]
		r, err := s.assembler.BuildSectionReport(ctx, section)
		if err != nil {
			s.logger.Warn("backfill: report failed",
				zap.String("section_id", section.ID),
				zap.Error(err))
			continue
		}
		if r.Narrative != nil {
			continue
		}

		res := s.narratives.Narrate(ctx, r, false)
		s.metrics.Narrative(string(res.Outcome))
		if res.Outcome == narrative.OutcomeGenerated {
			generated++
		}
	}

	if generated > 0 {
		s.logger.Info("narrative backfill complete", zap.Int("generated", generated))
	}
	return generated, nil
}

func (s *Service) recordReport(r *progress.Report) {
	scores := make([]float64, len(r.Comparisons))
	for i, c := range r.Comparisons {
		scores[i] = c.HealingScore
	}
	s.metrics.ReportBuilt(string(r.Trend), scores)

	s.logger.Debug("report built",
		zap.String("section_id", r.SectionID),
		zap.Int("comparisons", len(r.Comparisons)),
		zap.Float64("average_healing_score", r.AverageHealingScore),
		zap.String("trend", string(r.Trend)))
}

// ErrorReason gives a short label for a domain error
func ErrorReason(err error) string {
	switch {
	case errors.Is(err, progress.ErrValidation):
		return "validation"
	case errors.Is(err, progress.ErrNotFound):
		return "not_found"
	case errors.Is(err, progress.ErrEmptyHistory):
		return "empty_history"
	case errors.Is(err, progress.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, progress.ErrDimensionMismatch):
		return "dimension_mismatch"
	case errors.Is(err, progress.ErrDegenerateVector):
		return "degenerate_vector"
	case errors.Is(err, progress.ErrConcurrentBaselineConflict):
		return "baseline_conflict"
	default:
		return "internal"
	}
}
