// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package narrative produces prose summaries of progress reports. It runs
// after a report is built and never blocks or fails report construction.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tejzpr/dermtrack/internal/config"
	"github.com/tejzpr/dermtrack/internal/progress"
	"go.uber.org/zap"
)

var (
	// ErrDisabled is reported when narrative generation is switched off
	ErrDisabled = errors.New("narrative generation is disabled")
	// ErrEmptyNarrative is reported when the generator returns blank text
	ErrEmptyNarrative = errors.New("narrative generator returned empty text")
)

// Store saves generated narrative on the latest observation of a report
type Store interface {
	SetNarrative(ctx context.Context, observationID uint, text string) error
}

// Outcome labels a Narrate call for logging and metrics
type Outcome string

// Narrate outcomes
const (
	OutcomeGenerated Outcome = "generated"
	OutcomeCached    Outcome = "cached"
	OutcomeFailed    Outcome = "failed"
	OutcomeDisabled  Outcome = "disabled"
)

// Result is the outcome of Narrate. Err is informational; the report is
// usable regardless.
type Result struct {
	Narrative *string
	Outcome   Outcome
	Err       error
}

// Service generates narrative text and caches it on the latest observation
type Service struct {
	generator Generator
	store     Store
	logger    *zap.Logger
}

// NewService creates a narrative service. A nil generator disables generation.
func NewService(generator Generator, store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		generator: generator,
		store:     store,
		logger:    logger,
	}
}

// NewGeneratorFromConfig builds the configured generator, or nil when
// generation is disabled
func NewGeneratorFromConfig(cfg config.NarrativeConfig) (Generator, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	switch cfg.Provider {
	case config.NarrativeProviderMock:
		return &MockGenerator{}, nil
	case config.NarrativeProviderOpenAI:
		g, err := NewOpenAIGenerator(OpenAIOptions{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey(),
			Model:             cfg.Model,
			Timeout:           time.Duration(cfg.TimeoutSeconds) * time.Second,
			RequestsPerMinute: cfg.RequestsPerMinute,
			MaxRetries:        cfg.MaxRetries,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unsupported narrative provider: %s", cfg.Provider)
	}
}

// Enabled reports whether a generator is configured
func (s *Service) Enabled() bool {
	return s != nil && s.generator != nil
}

// Narrate fills r.Narrative. A narrative already stored on the latest
// observation is reused unless regenerate is set; a new one overwrites it.
// Failures leave r.Narrative untouched and are returned in Result.Err.
func (s *Service) Narrate(ctx context.Context, r *progress.Report, regenerate bool) Result {
	if r.Narrative != nil && !regenerate {
		return Result{Narrative: r.Narrative, Outcome: OutcomeCached}
	}

	if !s.Enabled() {
		return Result{Narrative: r.Narrative, Outcome: OutcomeDisabled, Err: ErrDisabled}
	}

	text, err := s.generator.Generate(ctx, BuildPrompt(r))
	if err != nil {
		s.logger.Warn("narrative generation failed",
			zap.String("section_id", r.SectionID),
			zap.Uint("observation_id", r.LatestID),
			zap.Error(err))
		return Result{Narrative: r.Narrative, Outcome: OutcomeFailed, Err: fmt.Errorf("narrative generation failed: %w", err)}
	}
	if strings.TrimSpace(text) == "" {
		s.logger.Warn("narrative generator returned empty text",
			zap.String("section_id", r.SectionID),
			zap.Uint("observation_id", r.LatestID))
		return Result{Narrative: r.Narrative, Outcome: OutcomeFailed, Err: ErrEmptyNarrative}
	}

	r.Narrative = &text

	if s.store != nil {
		if err := s.store.SetNarrative(ctx, r.LatestID, text); err != nil {
			s.logger.Warn("failed to store narrative",
				zap.Uint("observation_id", r.LatestID),
				zap.Error(err))
			return Result{Narrative: r.Narrative, Outcome: OutcomeGenerated, Err: fmt.Errorf("failed to store narrative: %w", err)}
		}
	}

	s.logger.Info("narrative generated",
		zap.String("section_id", r.SectionID),
		zap.Uint("observation_id", r.LatestID),
		zap.Int("length", len(text)))

	return Result{Narrative: r.Narrative, Outcome: OutcomeGenerated}
}
