// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package ledger appends observations to sections and decides baseline
// status at append time.
package ledger

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/tejzpr/dermtrack/internal/progress"
	"go.uber.org/zap"
)

// Store persists observations. InsertObservation must enforce at most one
// baseline per section and report a violation as
// progress.ErrConcurrentBaselineConflict.
type Store interface {
	CountObservations(ctx context.Context, sectionID string) (int64, error)
	InsertObservation(ctx context.Context, obs *progress.Observation) error
	ListObservations(ctx context.Context, sectionID string) ([]progress.Observation, error)
	FindBaseline(ctx context.Context, sectionID string) (*progress.Observation, error)
	GetObservation(ctx context.Context, id uint) (*progress.Observation, error)
	SetNarrative(ctx context.Context, id uint, text string) error
}

// AppendInput is what the vision collaborator hands over for one image.
type AppendInput struct {
	Features    []float64
	Predictions []progress.Prediction
	Annotation  string
}

// Ledger is the per-section observation log
type Ledger struct {
	store      Store
	now        func() time.Time
	dimensions int
	logger     *zap.Logger
}

// Option configures a Ledger
type Option func(*Ledger)

// WithClock overrides the capture-time source
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithDimensions fixes the feature vector length; 0 accepts any length.
func WithDimensions(n int) Option {
	return func(l *Ledger) { l.dimensions = n }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(l *Ledger) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates a ledger backed by store
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Dimensions returns the configured feature vector length (0 if unchecked)
func (l *Ledger) Dimensions() int {
	return l.dimensions
}

// Append stores a new observation under sectionID. The first observation of
// a section becomes its baseline; every later one does not.
func (l *Ledger) Append(ctx context.Context, owner uint, sectionID string, in AppendInput) (*progress.Observation, error) {
	if strings.TrimSpace(sectionID) == "" {
		return nil, progress.NewValidationError("section_id", "must not be empty")
	}
	if err := l.checkFeatures(in.Features); err != nil {
		return nil, err
	}

	count, err := l.store.CountObservations(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to count observations: %w", err)
	}

	sid := sectionID
	obs := l.newObservation(owner, &sid, in)
	obs.Baseline = count == 0

	if err := l.store.InsertObservation(ctx, obs); err != nil {
		if progress.IsConflict(err) {
			l.logger.Warn("baseline conflict on append",
				zap.String("section_id", sectionID),
				zap.Uint("owner_id", owner))
		}
		return nil, fmt.Errorf("failed to append observation: %w", err)
	}

	l.logger.Debug("observation appended",
		zap.String("section_id", sectionID),
		zap.Uint("observation_id", obs.ID),
		zap.Bool("baseline", obs.Baseline))

	return obs, nil
}

// AppendGeneral stores an observation that belongs to no section. Such
// observations are never a baseline.
func (l *Ledger) AppendGeneral(ctx context.Context, owner uint, in AppendInput) (*progress.Observation, error) {
	if err := l.checkFeatures(in.Features); err != nil {
		return nil, err
	}

	obs := l.newObservation(owner, nil, in)
	if err := l.store.InsertObservation(ctx, obs); err != nil {
		return nil, fmt.Errorf("failed to append observation: %w", err)
	}
	return obs, nil
}

// Latest returns the observation with the greatest capture time, ties broken
// by the higher id.
func (l *Ledger) Latest(ctx context.Context, sectionID string) (*progress.Observation, error) {
	all, err := l.store.ListObservations(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("section %s: %w", sectionID, progress.ErrEmptyHistory)
	}

	latest := all[0]
	for _, obs := range all[1:] {
		if newer(obs, latest) {
			latest = obs
		}
	}
	return &latest, nil
}

// PriorTo returns every observation in the section except excludeID, in no
// particular order.
func (l *Ledger) PriorTo(ctx context.Context, sectionID string, excludeID uint) ([]progress.Observation, error) {
	all, err := l.store.ListObservations(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("section %s: %w", sectionID, progress.ErrEmptyHistory)
	}

	prior := make([]progress.Observation, 0, len(all)-1)
	for _, obs := range all {
		if obs.ID != excludeID {
			prior = append(prior, obs)
		}
	}
	return prior, nil
}

// BaselineOf returns the section's baseline, or nil if none is established
func (l *Ledger) BaselineOf(ctx context.Context, sectionID string) (*progress.Observation, error) {
	obs, err := l.store.FindBaseline(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find baseline: %w", err)
	}
	return obs, nil
}

// History returns all observations of a section, newest first
func (l *Ledger) History(ctx context.Context, sectionID string) ([]progress.Observation, error) {
	all, err := l.store.ListObservations(ctx, sectionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list observations: %w", err)
	}
	sort.SliceStable(all, func(i, j int) bool { return newer(all[i], all[j]) })
	return all, nil
}

// Get returns a single observation
func (l *Ledger) Get(ctx context.Context, id uint) (*progress.Observation, error) {
	return l.store.GetObservation(ctx, id)
}

// SetNarrative stores generated narrative text on an observation. It is the
// only mutation an observation allows.
func (l *Ledger) SetNarrative(ctx context.Context, observationID uint, text string) error {
	if strings.TrimSpace(text) == "" {
		return progress.NewValidationError("narrative", "must not be empty")
	}
	if err := l.store.SetNarrative(ctx, observationID, text); err != nil {
		return fmt.Errorf("failed to set narrative: %w", err)
	}
	return nil
}

func (l *Ledger) checkFeatures(features []float64) error {
	if len(features) == 0 {
		return progress.NewValidationError("features", "must not be empty")
	}
	if l.dimensions > 0 && len(features) != l.dimensions {
		return &progress.DimensionMismatchError{Expected: l.dimensions, Actual: len(features)}
	}
	for _, x := range features {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return progress.NewValidationError("features", "must be finite numbers")
		}
	}
	return nil
}

func (l *Ledger) newObservation(owner uint, sectionID *string, in AppendInput) *progress.Observation {
	features := make([]float64, len(in.Features))
	copy(features, in.Features)
	predictions := make([]progress.Prediction, len(in.Predictions))
	copy(predictions, in.Predictions)

	return &progress.Observation{
		OwnerID:     owner,
		SectionID:   sectionID,
		CapturedAt:  l.now().UTC(),
		Features:    features,
		Predictions: predictions,
		Annotation:  strings.TrimSpace(in.Annotation),
	}
}

// newer reports whether a sorts after b in capture order
func newer(a, b progress.Observation) bool {
	if !a.CapturedAt.Equal(b.CapturedAt) {
		return a.CapturedAt.After(b.CapturedAt)
	}
	return a.ID > b.ID
}
