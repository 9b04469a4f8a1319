// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tejzpr/dermtrack/internal/progress"
)

// NewAddObservationTool creates the dermtrack_add_observation tool definition
func NewAddObservationTool() mcp.Tool {
	return mcp.NewTool("dermtrack_add_observation",
		mcp.WithDescription("Record the vision analysis of a new photo. With section_id the photo joins that section (the first photo becomes the baseline); without it the photo is stored as a one-off general analysis."),
		mcp.WithString("section_id",
			mcp.Description("Section the photo belongs to. Omit for general mode."),
		),
		mcp.WithArray("features",
			mcp.Required(),
			mcp.Description("Image feature vector, an array of numbers"),
			mcp.Items(map[string]any{"type": "number"}),
		),
		mcp.WithArray("predictions",
			mcp.Description("Ranked classifier output. Array of objects: [{\"label\": \"eczema\", \"confidence\": 0.82}]"),
		),
		mcp.WithString("annotation",
			mcp.Description("Free-text note from the user about this photo"),
		),
	)
}

// AddObservationHandler handles the dermtrack_add_observation tool
func AddObservationHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		in, err := parseAppendInput(request)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		sectionID := request.GetString("section_id", "")
		var obs *progress.Observation
		if sectionID == "" {
			obs, err = ctx.Tracker.AppendGeneral(c, userID, in)
		} else {
			obs, err = ctx.Tracker.AppendObservation(c, userID, sectionID, in)
		}
		if err != nil {
			return ctx.domainError("add observation", err), nil
		}

		return jsonResult(obs)
	}
}

// NewHistoryTool creates the dermtrack_history tool definition
func NewHistoryTool() mcp.Tool {
	return mcp.NewTool("dermtrack_history",
		mcp.WithDescription("List the recorded observations of a section, newest first. Without section_id lists general-mode observations."),
		mcp.WithString("section_id",
			mcp.Description("Section to list"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum entries to return. Default: 20"),
		),
	)
}

// HistoryHandler handles the dermtrack_history tool
func HistoryHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sectionID := request.GetString("section_id", "")
		limit := int(request.GetFloat("limit", 20.0))
		if limit < 1 {
			return mcp.NewToolResultError("limit must be at least 1"), nil
		}

		var (
			history []progress.Observation
			err     error
			title   string
		)
		if sectionID == "" {
			history, err = ctx.Tracker.GeneralHistory(c, userID, limit)
			title = "General observations"
		} else {
			history, err = ctx.Tracker.History(c, userID, sectionID)
			title = fmt.Sprintf("Observations for section `%s`", sectionID)
		}
		if err != nil {
			return ctx.domainError("history", err), nil
		}
		if len(history) > limit {
			history = history[:limit]
		}

		if len(history) == 0 {
			return mcp.NewToolResultText("No observations recorded."), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# %s\n\n", title))
		for _, obs := range history {
			sb.WriteString(fmt.Sprintf("- #%d %s", obs.ID, obs.CapturedAt.Format("2006-01-02 15:04")))
			if top, ok := obs.TopPrediction(); ok {
				sb.WriteString(fmt.Sprintf(" %s (%.0f%%)", top.Label, top.Confidence*100))
			}
			if obs.Baseline {
				sb.WriteString(" [baseline]")
			}
			sb.WriteString("\n")
			if obs.Annotation != "" {
				sb.WriteString(fmt.Sprintf("  Note: %s\n", obs.Annotation))
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}
