// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tejzpr/dermtrack/internal/progress"
)

// StatusFor maps a domain error to an HTTP status code
func StatusFor(err error) int {
	switch {
	case errors.Is(err, progress.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, progress.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, progress.ErrEmptyHistory),
		errors.Is(err, progress.ErrInsufficientHistory),
		errors.Is(err, progress.ErrDimensionMismatch),
		errors.Is(err, progress.ErrDegenerateVector):
		return http.StatusUnprocessableEntity
	case errors.Is(err, progress.ErrConcurrentBaselineConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// httpError converts err into an echo error. Internal failures are not
// echoed to the client.
func httpError(err error) *echo.HTTPError {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		return echo.NewHTTPError(status, "internal error").SetInternal(err)
	}
	return echo.NewHTTPError(status, err.Error())
}
