// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejzpr/dermtrack/internal/database"
	"github.com/tejzpr/dermtrack/internal/progress"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "test.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func createUser(t *testing.T, db *gorm.DB, name string) uint {
	t.Helper()
	user := &database.User{Username: name}
	require.NoError(t, db.Create(user).Error)
	return user.ID
}

func createSection(t *testing.T, s *Store, owner uint, id string) *progress.Section {
	t.Helper()
	sec := &progress.Section{ID: id, OwnerID: owner, Name: "Section " + id, CreatedAt: time.Now().UTC()}
	require.NoError(t, s.CreateSection(context.Background(), sec))
	return sec
}

func observation(owner uint, sectionID string, baseline bool, v ...float64) *progress.Observation {
	sid := sectionID
	return &progress.Observation{
		OwnerID:     owner,
		SectionID:   &sid,
		CapturedAt:  time.Now().UTC(),
		Features:    v,
		Predictions: []progress.Prediction{{Label: "psoriasis", Confidence: 0.61}, {Label: "eczema", Confidence: 0.2}},
		Baseline:    baseline,
		Annotation:  "slightly red",
	}
}

func TestSectionCRUD(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	alice := createUser(t, db, "alice")
	bob := createUser(t, db, "bob")

	sec := createSection(t, s, alice, "s1")

	got, err := s.GetSection(ctx, alice, "s1")
	require.NoError(t, err)
	assert.Equal(t, sec.Name, got.Name)

	_, err = s.GetSection(ctx, bob, "s1")
	assert.ErrorIs(t, err, progress.ErrNotFound)

	got.Name = "Renamed"
	got.Description = "on the elbow"
	require.NoError(t, s.UpdateSection(ctx, got))

	got, err = s.GetSection(ctx, alice, "s1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "on the elbow", got.Description)

	list, err := s.ListSections(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, list, 1)

	list, err = s.ListSections(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestObservationRoundTrip(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	createSection(t, s, owner, "s1")

	obs := observation(owner, "s1", true, 0.25, -0.5, 1)
	require.NoError(t, s.InsertObservation(ctx, obs))
	require.NotZero(t, obs.ID)

	got, err := s.GetObservation(ctx, obs.ID)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.25, -0.5, 1}, got.Features)
	assert.Equal(t, obs.Predictions, got.Predictions)
	assert.True(t, got.Baseline)
	assert.Equal(t, "slightly red", got.Annotation)
	assert.Nil(t, got.Narrative)
	require.NotNil(t, got.SectionID)
	assert.Equal(t, "s1", *got.SectionID)

	_, err = s.GetObservation(ctx, 9999)
	assert.ErrorIs(t, err, progress.ErrNotFound)
}

func TestInsertObservation_SecondBaselineConflicts(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	createSection(t, s, owner, "s1")
	createSection(t, s, owner, "s2")

	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s1", true, 1, 0)))

	err := s.InsertObservation(ctx, observation(owner, "s1", true, 0, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, progress.ErrConcurrentBaselineConflict)

	// Other sections and non-baseline rows are unaffected
	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s2", true, 1, 0)))
	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s1", false, 0, 1)))

	count, err := s.CountObservations(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestFindBaseline(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	createSection(t, s, owner, "s1")

	baseline, err := s.FindBaseline(ctx, "s1")
	require.NoError(t, err)
	assert.Nil(t, baseline)

	first := observation(owner, "s1", true, 1, 0)
	require.NoError(t, s.InsertObservation(ctx, first))
	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s1", false, 0, 1)))

	baseline, err = s.FindBaseline(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, baseline)
	assert.Equal(t, first.ID, baseline.ID)
}

func TestDeleteSection_CascadesObservations(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	other := createUser(t, db, "bob")
	createSection(t, s, owner, "s1")

	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s1", true, 1, 0)))
	require.NoError(t, s.InsertObservation(ctx, observation(owner, "s1", false, 0, 1)))

	assert.ErrorIs(t, s.DeleteSection(ctx, other, "s1"), progress.ErrNotFound)

	require.NoError(t, s.DeleteSection(ctx, owner, "s1"))

	_, err := s.GetSection(ctx, owner, "s1")
	assert.ErrorIs(t, err, progress.ErrNotFound)

	list, err := s.ListObservations(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, list)

	var remaining int64
	require.NoError(t, db.Model(&database.Observation{}).Count(&remaining).Error)
	assert.Zero(t, remaining)
}

func TestSetNarrative(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	createSection(t, s, owner, "s1")

	obs := observation(owner, "s1", true, 1, 0)
	require.NoError(t, s.InsertObservation(ctx, obs))

	require.NoError(t, s.SetNarrative(ctx, obs.ID, "first"))
	require.NoError(t, s.SetNarrative(ctx, obs.ID, "second"))

	got, err := s.GetObservation(ctx, obs.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Narrative)
	assert.Equal(t, "second", *got.Narrative)

	assert.ErrorIs(t, s.SetNarrative(ctx, 4242, "x"), progress.ErrNotFound)
}

func TestGeneralObservations(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")

	general := &progress.Observation{
		OwnerID:    owner,
		CapturedAt: time.Now().UTC(),
		Features:   []float64{1, 2, 3},
	}
	require.NoError(t, s.InsertObservation(ctx, general))

	list, err := s.ListGeneralObservations(ctx, owner, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Nil(t, list[0].SectionID)
	assert.Empty(t, list[0].Predictions)
}

func TestListSectionsAwaitingNarrative(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	for _, id := range []string{"a-narrated", "b-earlier-only", "c-single", "d-pending"} {
		createSection(t, s, owner, id)
	}

	insert := func(sectionID string, baseline bool) *progress.Observation {
		obs := observation(owner, sectionID, baseline, 1, 0)
		require.NoError(t, s.InsertObservation(ctx, obs))
		return obs
	}

	insert("a-narrated", true)
	latestA := insert("a-narrated", false)
	require.NoError(t, s.SetNarrative(ctx, latestA.ID, "already written"))

	earlierB := insert("b-earlier-only", true)
	insert("b-earlier-only", false)
	require.NoError(t, s.SetNarrative(ctx, earlierB.ID, "stale"))

	insert("c-single", true)

	insert("d-pending", true)
	insert("d-pending", false)

	list, err := s.ListSectionsAwaitingNarrative(ctx, 2, "", 0)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b-earlier-only", list[0].ID)
	assert.Equal(t, "d-pending", list[1].ID)

	list, err = s.ListSectionsAwaitingNarrative(ctx, 2, "", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "b-earlier-only", list[0].ID)

	list, err = s.ListSectionsAwaitingNarrative(ctx, 2, "b-earlier-only", 1)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "d-pending", list[0].ID)

	list, err = s.ListSectionsAwaitingNarrative(ctx, 2, "d-pending", 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListSectionsAwaitingNarrative_LatestByCaptureTime(t *testing.T) {
	db := setupTestDB(t)
	s := New(db)
	ctx := context.Background()
	owner := createUser(t, db, "alice")
	createSection(t, s, owner, "sec")

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	later := observation(owner, "sec", true, 1, 0)
	later.CapturedAt = base.Add(48 * time.Hour)
	require.NoError(t, s.InsertObservation(ctx, later))
	earlier := observation(owner, "sec", false, 0, 1)
	earlier.CapturedAt = base
	require.NoError(t, s.InsertObservation(ctx, earlier))

	// the row with the higher ID is not the latest capture
	require.NoError(t, s.SetNarrative(ctx, later.ID, "done"))
	list, err := s.ListSectionsAwaitingNarrative(ctx, 2, "", 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}
