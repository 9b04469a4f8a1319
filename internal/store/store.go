// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package store implements section and observation persistence on gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/tejzpr/dermtrack/internal/database"
	"github.com/tejzpr/dermtrack/internal/progress"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Store is the gorm-backed persistence for sections and observations
type Store struct {
	db *gorm.DB
}

// New creates a new store
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateSection inserts a section
func (s *Store) CreateSection(ctx context.Context, sec *progress.Section) error {
	row := &database.Section{
		ID:          sec.ID,
		UserID:      sec.OwnerID,
		Name:        sec.Name,
		Description: sec.Description,
		CreatedAt:   sec.CreatedAt,
	}
	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert section: %w", err)
	}
	return nil
}

// ListSections returns the owner's sections, newest first
func (s *Store) ListSections(ctx context.Context, owner uint) ([]progress.Section, error) {
	var rows []database.Section
	err := s.db.WithContext(ctx).
		Where("user_id = ?", owner).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query sections: %w", err)
	}

	out := make([]progress.Section, 0, len(rows))
	for i := range rows {
		out = append(out, toSection(&rows[i]))
	}
	return out, nil
}

// GetSection returns a section owned by owner
func (s *Store) GetSection(ctx context.Context, owner uint, id string) (*progress.Section, error) {
	var row database.Section
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, owner).First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, progress.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query section: %w", err)
	}
	sec := toSection(&row)
	return &sec, nil
}

// UpdateSection writes name and description
func (s *Store) UpdateSection(ctx context.Context, sec *progress.Section) error {
	result := s.db.WithContext(ctx).Model(&database.Section{}).
		Where("id = ? AND user_id = ?", sec.ID, sec.OwnerID).
		Updates(map[string]interface{}{
			"name":        sec.Name,
			"description": sec.Description,
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update section: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return progress.ErrNotFound
	}
	return nil
}

// DeleteSection removes a section and its observations in one transaction
func (s *Store) DeleteSection(ctx context.Context, owner uint, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row database.Section
		if err := tx.Where("id = ? AND user_id = ?", id, owner).First(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return progress.ErrNotFound
			}
			return fmt.Errorf("failed to query section: %w", err)
		}

		if err := tx.Where("section_id = ?", id).Delete(&database.Observation{}).Error; err != nil {
			return fmt.Errorf("failed to delete observations: %w", err)
		}
		if err := tx.Delete(&row).Error; err != nil {
			return fmt.Errorf("failed to delete section: %w", err)
		}
		return nil
	})
}

// ListSectionsAwaitingNarrative returns sections of any owner that hold at
// least minObservations observations and whose latest observation has no
// narrative. Sections are ordered by ID; afterID pages past earlier ones.
func (s *Store) ListSectionsAwaitingNarrative(ctx context.Context, minObservations int, afterID string, limit int) ([]progress.Section, error) {
	var rows []database.Section
	query := s.db.WithContext(ctx).Model(&database.Section{}).
		Select("sections.*").
		Joins("JOIN observations latest ON latest.section_id = sections.id").
		Where("latest.narrative IS NULL").
		Where(`NOT EXISTS (
			SELECT 1 FROM observations newer
			WHERE newer.section_id = latest.section_id
			AND (newer.captured_at > latest.captured_at
				OR (newer.captured_at = latest.captured_at AND newer.id > latest.id)))`).
		Where("(SELECT COUNT(*) FROM observations counted WHERE counted.section_id = sections.id) >= ?", minObservations).
		Order("sections.id ASC")
	if afterID != "" {
		query = query.Where("sections.id > ?", afterID)
	}
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query sections awaiting narrative: %w", err)
	}

	out := make([]progress.Section, 0, len(rows))
	for i := range rows {
		out = append(out, toSection(&rows[i]))
	}
	return out, nil
}

// CountObservations counts the observations of a section
func (s *Store) CountObservations(ctx context.Context, sectionID string) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&database.Observation{}).
		Where("section_id = ?", sectionID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count observations: %w", err)
	}
	return count, nil
}

// InsertObservation stores obs and sets its ID. A second baseline for the
// same section is rejected by the unique baseline index and reported as
// progress.ErrConcurrentBaselineConflict.
func (s *Store) InsertObservation(ctx context.Context, obs *progress.Observation) error {
	row, err := fromObservation(obs)
	if err != nil {
		return err
	}

	if err := s.db.WithContext(ctx).Create(row).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %v", progress.ErrConcurrentBaselineConflict, err)
		}
		return fmt.Errorf("failed to insert observation: %w", err)
	}

	obs.ID = row.ID
	return nil
}

// ListObservations returns every observation of a section in insertion order
func (s *Store) ListObservations(ctx context.Context, sectionID string) ([]progress.Observation, error) {
	var rows []database.Observation
	err := s.db.WithContext(ctx).
		Where("section_id = ?", sectionID).
		Order("id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	return toObservations(rows)
}

// ListGeneralObservations returns the owner's section-less observations,
// newest first
func (s *Store) ListGeneralObservations(ctx context.Context, owner uint, limit int) ([]progress.Observation, error) {
	var rows []database.Observation
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND section_id IS NULL", owner).
		Order("captured_at DESC, id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to query observations: %w", err)
	}
	return toObservations(rows)
}

// FindBaseline returns the section's baseline, or nil if there is none
func (s *Store) FindBaseline(ctx context.Context, sectionID string) (*progress.Observation, error) {
	var row database.Observation
	err := s.db.WithContext(ctx).
		Where("section_id = ? AND is_baseline = ?", sectionID, true).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query baseline: %w", err)
	}
	return toObservation(&row)
}

// GetObservation returns an observation by id
func (s *Store) GetObservation(ctx context.Context, id uint) (*progress.Observation, error) {
	var row database.Observation
	if err := s.db.WithContext(ctx).First(&row, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, progress.ErrNotFound
		}
		return nil, fmt.Errorf("failed to query observation: %w", err)
	}
	return toObservation(&row)
}

// SetNarrative overwrites the narrative of an observation
func (s *Store) SetNarrative(ctx context.Context, id uint, text string) error {
	result := s.db.WithContext(ctx).Model(&database.Observation{}).
		Where("id = ?", id).
		Update("narrative", text)
	if result.Error != nil {
		return fmt.Errorf("failed to update narrative: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return progress.ErrNotFound
	}
	return nil
}

func toSection(row *database.Section) progress.Section {
	return progress.Section{
		ID:          row.ID,
		OwnerID:     row.UserID,
		Name:        row.Name,
		Description: row.Description,
		CreatedAt:   row.CreatedAt,
	}
}

func fromObservation(obs *progress.Observation) (*database.Observation, error) {
	predictions := obs.Predictions
	if predictions == nil {
		predictions = []progress.Prediction{}
	}
	raw, err := json.Marshal(predictions)
	if err != nil {
		return nil, fmt.Errorf("failed to encode predictions: %w", err)
	}

	row := &database.Observation{
		UserID:      obs.OwnerID,
		SectionID:   obs.SectionID,
		CapturedAt:  obs.CapturedAt,
		Dimensions:  len(obs.Features),
		Features:    database.Float64SliceToBlob(obs.Features),
		Predictions: datatypes.JSON(raw),
		IsBaseline:  obs.Baseline,
		Narrative:   obs.Narrative,
	}
	if obs.Annotation != "" {
		annotation := obs.Annotation
		row.Annotation = &annotation
	}
	return row, nil
}

func toObservation(row *database.Observation) (*progress.Observation, error) {
	features, err := database.BlobToFloat64Slice(row.Features)
	if err != nil {
		return nil, fmt.Errorf("observation %d: %w", row.ID, err)
	}
	if len(features) != row.Dimensions {
		return nil, fmt.Errorf("observation %d: stored %d dimensions, decoded %d", row.ID, row.Dimensions, len(features))
	}

	var predictions []progress.Prediction
	if len(row.Predictions) > 0 {
		if err := json.Unmarshal(row.Predictions, &predictions); err != nil {
			return nil, fmt.Errorf("observation %d: failed to decode predictions: %w", row.ID, err)
		}
	}

	obs := &progress.Observation{
		ID:          row.ID,
		OwnerID:     row.UserID,
		SectionID:   row.SectionID,
		CapturedAt:  row.CapturedAt,
		Features:    features,
		Predictions: predictions,
		Baseline:    row.IsBaseline,
		Narrative:   row.Narrative,
	}
	if row.Annotation != nil {
		obs.Annotation = *row.Annotation
	}
	return obs, nil
}

func toObservations(rows []database.Observation) ([]progress.Observation, error) {
	out := make([]progress.Observation, 0, len(rows))
	for i := range rows {
		obs, err := toObservation(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *obs)
	}
	return out, nil
}

// isUniqueViolation recognises duplicate-key errors whether or not the
// dialector translated them
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value")
}
