// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package sections

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejzpr/dermtrack/internal/progress"
)

type memStore struct {
	sections map[string]progress.Section
	order    []string
}

func newMemStore() *memStore {
	return &memStore{sections: map[string]progress.Section{}}
}

func (m *memStore) CreateSection(_ context.Context, s *progress.Section) error {
	m.sections[s.ID] = *s
	m.order = append(m.order, s.ID)
	return nil
}

func (m *memStore) ListSections(_ context.Context, owner uint) ([]progress.Section, error) {
	var out []progress.Section
	for _, id := range m.order {
		if s, ok := m.sections[id]; ok && s.OwnerID == owner {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *memStore) GetSection(_ context.Context, owner uint, id string) (*progress.Section, error) {
	s, ok := m.sections[id]
	if !ok || s.OwnerID != owner {
		return nil, progress.ErrNotFound
	}
	return &s, nil
}

func (m *memStore) UpdateSection(_ context.Context, s *progress.Section) error {
	m.sections[s.ID] = *s
	return nil
}

func (m *memStore) DeleteSection(_ context.Context, owner uint, id string) error {
	s, ok := m.sections[id]
	if !ok || s.OwnerID != owner {
		return progress.ErrNotFound
	}
	delete(m.sections, id)
	return nil
}

func TestCreate(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)

	s, err := r.Create(context.Background(), 7, "  Left forearm ", " rash near wrist ")
	require.NoError(t, err)
	assert.NotEmpty(t, s.ID)
	assert.Equal(t, uint(7), s.OwnerID)
	assert.Equal(t, "Left forearm", s.Name)
	assert.Equal(t, "rash near wrist", s.Description)
	assert.False(t, s.CreatedAt.IsZero())
}

func TestCreate_UniqueIDs(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	seen := map[string]bool{}
	for i := 0; i < 20; i++ {
		s, err := r.Create(context.Background(), 1, "Test", "")
		require.NoError(t, err)
		assert.False(t, seen[s.ID], "id %s reused", s.ID)
		seen[s.ID] = true
	}
}

func TestCreate_Validation(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)

	tests := []struct {
		name  string
		input string
	}{
		{"empty", ""},
		{"whitespace", "   \t"},
		{"too long", strings.Repeat("a", MaxNameLength+1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), 1, tt.input, "")
			require.Error(t, err)
			assert.ErrorIs(t, err, progress.ErrValidation)
		})
	}

	_, err := r.Create(context.Background(), 1, strings.Repeat("é", MaxNameLength), "")
	assert.NoError(t, err)
}

func TestGet_ForeignOwnerIsNotFound(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	s, err := r.Create(context.Background(), 1, "Test", "")
	require.NoError(t, err)

	_, err = r.Get(context.Background(), 2, s.ID)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	got, err := r.Get(context.Background(), 1, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
}

func TestList_ScopedToOwner(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	ctx := context.Background()

	_, err := r.Create(ctx, 1, "A", "")
	require.NoError(t, err)
	_, err = r.Create(ctx, 1, "B", "")
	require.NoError(t, err)
	_, err = r.Create(ctx, 2, "C", "")
	require.NoError(t, err)

	list, err := r.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

func TestUpdate(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	ctx := context.Background()
	s, err := r.Create(ctx, 1, "Old", "desc")
	require.NoError(t, err)

	name := "New"
	updated, err := r.Update(ctx, 1, s.ID, Update{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Name)
	assert.Equal(t, "desc", updated.Description)

	empty := ""
	_, err = r.Update(ctx, 1, s.ID, Update{Name: &empty})
	assert.ErrorIs(t, err, progress.ErrValidation)

	_, err = r.Update(ctx, 2, s.ID, Update{Name: &name})
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestDelete(t *testing.T) {
	r := NewRegistry(newMemStore(), nil)
	ctx := context.Background()
	s, err := r.Create(ctx, 1, "Test", "")
	require.NoError(t, err)

	require.NoError(t, r.Delete(ctx, 1, s.ID))

	_, err = r.Get(ctx, 1, s.ID)
	assert.ErrorIs(t, err, progress.ErrNotFound)

	assert.ErrorIs(t, r.Delete(ctx, 1, s.ID), progress.ErrNotFound)
}
