// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tejzpr/dermtrack/internal/auth"
	"github.com/tejzpr/dermtrack/internal/config"
	"github.com/tejzpr/dermtrack/internal/database"
	"github.com/tejzpr/dermtrack/internal/metrics"
	"github.com/tejzpr/dermtrack/internal/narrative"
	"github.com/tejzpr/dermtrack/internal/progress"
	"github.com/tejzpr/dermtrack/internal/store"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type testServer struct {
	server *HTTPServer
	db     *gorm.DB
	tokens *auth.TokenManager
	token  string
	other  string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := database.Open(&database.Config{
		Type:       "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "server.db"),
		LogLevel:   logger.Silent,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })

	alice, err := auth.EnsureUser(db, "alice")
	require.NoError(t, err)
	bob, err := auth.EnsureUser(db, "bob")
	require.NoError(t, err)

	tm := auth.NewTokenManager(db, 24)
	aliceToken, err := tm.GenerateToken(alice.ID)
	require.NoError(t, err)
	bobToken, err := tm.GenerateToken(bob.ID)
	require.NoError(t, err)

	m := metrics.New()
	svc := tracker.New(store.New(db), tracker.Options{
		TrendTolerance: 5,
		Generator:      &narrative.MockGenerator{},
		Metrics:        m,
	})

	srv, err := NewHTTPServer(svc, HTTPOptions{
		Server:  config.ServerConfig{Host: "localhost", Port: 8080},
		Auth:    auth.NewMiddleware(tm).RequireAuth(),
		Metrics: m,
		Logger:  zap.NewNop(),
	})
	require.NoError(t, err)

	return &testServer{
		server: srv,
		db:     db,
		tokens: tm,
		token:  aliceToken.AccessToken,
		other:  bobToken.AccessToken,
	}
}

func (ts *testServer) do(t *testing.T, method, target, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.server.Echo().ServeHTTP(rec, req)
	return rec
}

func (ts *testServer) createSection(t *testing.T, name string) progress.Section {
	t.Helper()
	rec := ts.do(t, http.MethodPost, "/api/v1/sections", ts.token, SectionRequest{Name: name})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var section progress.Section
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &section))
	return section
}

func (ts *testServer) addObservation(t *testing.T, sectionID string, features ...float64) *httptest.ResponseRecorder {
	t.Helper()
	return ts.do(t, http.MethodPost, "/api/v1/sections/"+sectionID+"/observations", ts.token, ObservationRequest{
		Features:    features,
		Predictions: []progress.Prediction{{Label: "eczema", Confidence: 0.8}},
	})
}

func TestNewHTTPServer(t *testing.T) {
	t.Run("requires tracker", func(t *testing.T) {
		_, err := NewHTTPServer(nil, HTTPOptions{Auth: auth.FixedUser(1)})
		assert.Error(t, err)
	})

	t.Run("requires auth middleware", func(t *testing.T) {
		_, err := NewHTTPServer(&tracker.Service{}, HTTPOptions{})
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "auth middleware")
	})

	t.Run("local auth needs db", func(t *testing.T) {
		_, err := NewHTTPServer(&tracker.Service{}, HTTPOptions{
			Auth:      auth.FixedUser(1),
			LocalAuth: auth.NewLocalAuthenticator(nil),
		})
		assert.Error(t, err)
	})
}

func TestHandleHealth(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestMetricsEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	section := ts.createSection(t, "Elbow")
	require.Equal(t, http.StatusCreated, ts.addObservation(t, section.ID, 1, 0).Code)

	rec := ts.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "dermtrack_observations_appended_total")
}

func TestAPI_RequiresToken(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/sections", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSectionsCRUD(t *testing.T) {
	ts := setupTestServer(t)

	section := ts.createSection(t, "Left forearm")
	assert.NotEmpty(t, section.ID)

	rec := ts.do(t, http.MethodGet, "/api/v1/sections", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list SectionListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	name := "Right forearm"
	rec = ts.do(t, http.MethodPatch, "/api/v1/sections/"+section.ID, ts.token, SectionPatch{Name: &name})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated progress.Section
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Right forearm", updated.Name)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID, ts.token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(t, http.MethodDelete, "/api/v1/sections/"+section.ID, ts.token, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID, ts.token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateSection_EmptyName(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/sections", ts.token, SectionRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSection_ForeignOwner(t *testing.T) {
	ts := setupTestServer(t)
	section := ts.createSection(t, "Elbow")

	rec := ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID, ts.other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/sections/"+section.ID+"/observations", ts.other, ObservationRequest{Features: []float64{1}})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report", ts.other, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestObservationsAndReport(t *testing.T) {
	ts := setupTestServer(t)
	section := ts.createSection(t, "Elbow")

	rec := ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report", ts.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/baseline", ts.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.addObservation(t, section.ID, 0.2, 0.7, 0.1)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var first progress.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &first))
	assert.True(t, first.Baseline)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report", ts.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	rec = ts.addObservation(t, section.ID, 0.2, 0.7, 0.1)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/baseline", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var baseline progress.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &baseline))
	assert.Equal(t, first.ID, baseline.ID)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/observations", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history ObservationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	assert.Equal(t, 2, history.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report?narrative=true", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result tracker.ReportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, progress.TrendStable, result.Report.Trend)
	assert.InDelta(t, 100.0, result.Report.AverageHealingScore, 1e-9)
	assert.Equal(t, "generated", result.NarrativeOutcome)
	require.NotNil(t, result.Report.Narrative)

	rec = ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report?narrative=true", ts.token, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "cached", result.NarrativeOutcome)
}

func TestAppendObservation_DimensionMismatch(t *testing.T) {
	ts := setupTestServer(t)
	section := ts.createSection(t, "Elbow")

	require.Equal(t, http.StatusCreated, ts.addObservation(t, section.ID, 1, 0, 0).Code)
	require.Equal(t, http.StatusCreated, ts.addObservation(t, section.ID, 1, 0).Code)

	rec := ts.do(t, http.MethodGet, "/api/v1/sections/"+section.ID+"/report", ts.token, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestAppendObservation_EmptyFeatures(t *testing.T) {
	ts := setupTestServer(t)
	section := ts.createSection(t, "Elbow")

	rec := ts.addObservation(t, section.ID)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGeneralObservations(t *testing.T) {
	ts := setupTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/observations", ts.token, ObservationRequest{Features: []float64{1, 2}})
	require.Equal(t, http.StatusCreated, rec.Code)
	var obs progress.Observation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &obs))
	assert.Nil(t, obs.SectionID)
	assert.False(t, obs.Baseline)

	rec = ts.do(t, http.MethodGet, "/api/v1/observations?limit=10", ts.token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list ObservationListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 1, list.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/observations", ts.other, nil)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Equal(t, 0, list.Count)

	rec = ts.do(t, http.MethodGet, "/api/v1/observations?limit=zero", ts.token, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLocalAuthEndpoint(t *testing.T) {
	ts := setupTestServer(t)
	t.Setenv(auth.AccessingUserEnv, "carol")

	srv, err := NewHTTPServer(&tracker.Service{}, HTTPOptions{
		Auth:      auth.NewMiddleware(ts.tokens).RequireAuth(),
		LocalAuth: auth.NewLocalAuthenticatorWithAccessingUser(ts.tokens),
		DB:        ts.db,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/auth/local", nil)
	rec := httptest.NewRecorder()
	srv.Echo().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "carol", resp.Username)

	_, err = ts.tokens.ValidateToken(resp.AccessToken)
	assert.NoError(t, err)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{progress.NewValidationError("name", "empty"), http.StatusBadRequest},
		{fmt.Errorf("section x: %w", progress.ErrNotFound), http.StatusNotFound},
		{progress.ErrEmptyHistory, http.StatusUnprocessableEntity},
		{progress.ErrInsufficientHistory, http.StatusUnprocessableEntity},
		{&progress.DimensionMismatchError{Expected: 3, Actual: 2}, http.StatusUnprocessableEntity},
		{&progress.DegenerateVectorError{Operand: "a"}, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: unique", progress.ErrConcurrentBaselineConflict), http.StatusConflict},
		{errors.New("disk on fire"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestHTTPError_HidesInternalDetail(t *testing.T) {
	he := httpError(errors.New("password=hunter2"))
	assert.Equal(t, http.StatusInternalServerError, he.Code)
	assert.Equal(t, "internal error", he.Message)
	assert.Error(t, he.Internal)
}
