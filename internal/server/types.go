// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"github.com/tejzpr/dermtrack/internal/ledger"
	"github.com/tejzpr/dermtrack/internal/progress"
)

// HealthResponse is the response body for GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// SectionRequest is the request body for creating a section
type SectionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// SectionPatch is the request body for PATCH /sections/:id
type SectionPatch struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ObservationRequest carries the vision output for one image
type ObservationRequest struct {
	Features    []float64             `json:"features"`
	Predictions []progress.Prediction `json:"predictions"`
	Annotation  string                `json:"annotation"`
}

func (r ObservationRequest) input() ledger.AppendInput {
	return ledger.AppendInput{
		Features:    r.Features,
		Predictions: r.Predictions,
		Annotation:  r.Annotation,
	}
}

// ObservationListResponse wraps a list of observations
type ObservationListResponse struct {
	Observations []progress.Observation `json:"observations"`
	Count        int                    `json:"count"`
}

// SectionListResponse wraps a list of sections
type SectionListResponse struct {
	Sections []progress.Section `json:"sections"`
	Count    int                `json:"count"`
}

// TokenResponse is returned by the local login endpoint
type TokenResponse struct {
	Username     string `json:"username"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    string `json:"expires_at"`
}
