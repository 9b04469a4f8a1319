// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tejzpr/dermtrack/internal/tracker"
)

// NewProgressReportTool creates the dermtrack_progress_report tool definition
func NewProgressReportTool() mcp.Tool {
	return mcp.NewTool("dermtrack_progress_report",
		mcp.WithDescription("Compare the newest photo of a section against every earlier one and classify the trend as improving, stable or worsening. Needs at least two observations."),
		mcp.WithString("section_id",
			mcp.Required(),
			mcp.Description("Section to report on"),
		),
		mcp.WithBoolean("narrative",
			mcp.Description("Attach a plain-language summary. A stored summary is reused."),
		),
		mcp.WithBoolean("regenerate",
			mcp.Description("Replace the stored summary with a fresh one"),
		),
	)
}

// ProgressReportHandler handles the dermtrack_progress_report tool
func ProgressReportHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sectionID, err := request.RequireString("section_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := ctx.Tracker.Report(c, userID, sectionID, tracker.ReportOptions{
			Narrative:  request.GetBool("narrative", false),
			Regenerate: request.GetBool("regenerate", false),
		})
		if err != nil {
			return ctx.domainError("progress report", err), nil
		}
		return jsonResult(result)
	}
}
