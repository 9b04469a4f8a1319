// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

// Package sections manages the named tracking contexts a user creates.
package sections

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/tejzpr/dermtrack/internal/progress"
	"go.uber.org/zap"
)

// MaxNameLength is the longest accepted section name, in characters
const MaxNameLength = 200

// Store persists sections. GetSection and DeleteSection return
// progress.ErrNotFound when the section is absent or owned by someone else.
// DeleteSection must also remove every observation of the section.
type Store interface {
	CreateSection(ctx context.Context, s *progress.Section) error
	ListSections(ctx context.Context, owner uint) ([]progress.Section, error)
	GetSection(ctx context.Context, owner uint, id string) (*progress.Section, error)
	UpdateSection(ctx context.Context, s *progress.Section) error
	DeleteSection(ctx context.Context, owner uint, id string) error
}

// Update carries the fields to change; nil leaves a field untouched
type Update struct {
	Name        *string
	Description *string
}

// Registry owns the lifecycle of sections
type Registry struct {
	store  Store
	now    func() time.Time
	newID  func() string
	logger *zap.Logger
}

// NewRegistry creates a registry backed by store
func NewRegistry(store Store, logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		store:  store,
		now:    time.Now,
		newID:  uuid.NewString,
		logger: logger,
	}
}

// Create persists a new section with a fresh identifier
func (r *Registry) Create(ctx context.Context, owner uint, name, description string) (*progress.Section, error) {
	name, err := validateName(name)
	if err != nil {
		return nil, err
	}

	s := &progress.Section{
		ID:          r.newID(),
		OwnerID:     owner,
		Name:        name,
		Description: strings.TrimSpace(description),
		CreatedAt:   r.now().UTC(),
	}
	if err := r.store.CreateSection(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create section: %w", err)
	}

	r.logger.Info("section created",
		zap.String("section_id", s.ID),
		zap.Uint("owner_id", owner))
	return s, nil
}

// List returns every section owned by owner
func (r *Registry) List(ctx context.Context, owner uint) ([]progress.Section, error) {
	list, err := r.store.ListSections(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	return list, nil
}

// Get returns the section, or progress.ErrNotFound
func (r *Registry) Get(ctx context.Context, owner uint, id string) (*progress.Section, error) {
	s, err := r.store.GetSection(ctx, owner, id)
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", id, err)
	}
	return s, nil
}

// Update changes the name and/or description of a section
func (r *Registry) Update(ctx context.Context, owner uint, id string, upd Update) (*progress.Section, error) {
	s, err := r.Get(ctx, owner, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		name, err := validateName(*upd.Name)
		if err != nil {
			return nil, err
		}
		s.Name = name
	}
	if upd.Description != nil {
		s.Description = strings.TrimSpace(*upd.Description)
	}

	if err := r.store.UpdateSection(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to update section: %w", err)
	}
	return s, nil
}

// Delete removes the section and all of its observations
func (r *Registry) Delete(ctx context.Context, owner uint, id string) error {
	if err := r.store.DeleteSection(ctx, owner, id); err != nil {
		return fmt.Errorf("failed to delete section %s: %w", id, err)
	}

	r.logger.Info("section deleted",
		zap.String("section_id", id),
		zap.Uint("owner_id", owner))
	return nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", progress.NewValidationError("name", "must not be empty")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", progress.NewValidationError("name", fmt.Sprintf("must be at most %d characters", MaxNameLength))
	}
	return name, nil
}
