// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/tejzpr/dermtrack/internal/auth"
	"github.com/tejzpr/dermtrack/internal/progress"
	"github.com/tejzpr/dermtrack/internal/sections"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
)

const defaultGeneralLimit = 50

func (s *HTTPServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// handleLocalAuth issues a token for the system user running the server
func (s *HTTPServer) handleLocalAuth(c echo.Context) error {
	user, token, err := s.localAuth.Authenticate(s.db)
	if err != nil {
		s.logger.Error("local authentication failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "local authentication failed")
	}

	return c.JSON(http.StatusOK, TokenResponse{
		Username:     user.Username,
		AccessToken:  token.AccessToken,
		RefreshToken: token.RefreshToken,
		ExpiresAt:    token.ExpiresAt.Format(time.RFC3339),
	})
}

func owner(c echo.Context) (uint, error) {
	userID, ok := auth.UserIDFromEcho(c)
	if !ok {
		return 0, echo.NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return userID, nil
}

func (s *HTTPServer) handleListSections(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	list, err := s.tracker.ListSections(c.Request().Context(), userID)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, SectionListResponse{Sections: list, Count: len(list)})
}

func (s *HTTPServer) handleCreateSection(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	var req SectionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	section, err := s.tracker.CreateSection(c.Request().Context(), userID, req.Name, req.Description)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, section)
}

func (s *HTTPServer) handleGetSection(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	section, err := s.tracker.GetSection(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, section)
}

func (s *HTTPServer) handleUpdateSection(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	var req SectionPatch
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	section, err := s.tracker.UpdateSection(c.Request().Context(), userID, c.Param("id"), sections.Update{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, section)
}

func (s *HTTPServer) handleDeleteSection(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	if err := s.tracker.DeleteSection(c.Request().Context(), userID, c.Param("id")); err != nil {
		return httpError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (s *HTTPServer) handleSectionHistory(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	history, err := s.tracker.History(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ObservationListResponse{Observations: history, Count: len(history)})
}

func (s *HTTPServer) handleAppendObservation(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	var req ObservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	obs, err := s.tracker.AppendObservation(c.Request().Context(), userID, c.Param("id"), req.input())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, obs)
}

func (s *HTTPServer) handleBaseline(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	baseline, err := s.tracker.Baseline(c.Request().Context(), userID, c.Param("id"))
	if err != nil {
		return httpError(err)
	}
	if baseline == nil {
		return httpError(progress.ErrEmptyHistory)
	}
	return c.JSON(http.StatusOK, baseline)
}

func (s *HTTPServer) handleReport(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	opts := tracker.ReportOptions{
		Narrative:  queryBool(c, "narrative"),
		Regenerate: queryBool(c, "regenerate"),
	}

	result, err := s.tracker.Report(c.Request().Context(), userID, c.Param("id"), opts)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, result)
}

func (s *HTTPServer) handleGeneralHistory(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	limit := defaultGeneralLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}

	history, err := s.tracker.GeneralHistory(c.Request().Context(), userID, limit)
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusOK, ObservationListResponse{Observations: history, Count: len(history)})
}

func (s *HTTPServer) handleAppendGeneral(c echo.Context) error {
	userID, err := owner(c)
	if err != nil {
		return err
	}

	var req ObservationRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	obs, err := s.tracker.AppendGeneral(c.Request().Context(), userID, req.input())
	if err != nil {
		return httpError(err)
	}
	return c.JSON(http.StatusCreated, obs)
}

func queryBool(c echo.Context, name string) bool {
	v, err := strconv.ParseBool(c.QueryParam(name))
	return err == nil && v
}
