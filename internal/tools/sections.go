// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/tejzpr/dermtrack/internal/sections"
)

// NewCreateSectionTool creates the dermtrack_create_section tool definition
func NewCreateSectionTool() mcp.Tool {
	return mcp.NewTool("dermtrack_create_section",
		mcp.WithDescription("Start tracking a new skin area (for example 'left forearm rash'). Photos added to the section are compared against its first photo."),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short name of the tracked area"),
		),
		mcp.WithString("description",
			mcp.Description("Optional notes about the area"),
		),
	)
}

// CreateSectionHandler handles the dermtrack_create_section tool
func CreateSectionHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		name, err := request.RequireString("name")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		description := request.GetString("description", "")

		section, err := ctx.Tracker.CreateSection(c, userID, name, description)
		if err != nil {
			return ctx.domainError("create section", err), nil
		}
		return jsonResult(section)
	}
}

// NewListSectionsTool creates the dermtrack_list_sections tool definition
func NewListSectionsTool() mcp.Tool {
	return mcp.NewTool("dermtrack_list_sections",
		mcp.WithDescription("List the tracked skin areas, newest first."),
	)
}

// ListSectionsHandler handles the dermtrack_list_sections tool
func ListSectionsHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		list, err := ctx.Tracker.ListSections(c, userID)
		if err != nil {
			return ctx.domainError("list sections", err), nil
		}

		if len(list) == 0 {
			return mcp.NewToolResultText("No sections yet. Use dermtrack_create_section to start tracking an area."), nil
		}

		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("# Sections (%d)\n\n", len(list)))
		for _, s := range list {
			sb.WriteString(fmt.Sprintf("- **%s** `%s` (created %s)\n", s.Name, s.ID, s.CreatedAt.Format("2006-01-02")))
			if s.Description != "" {
				sb.WriteString(fmt.Sprintf("  %s\n", s.Description))
			}
		}
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// NewUpdateSectionTool creates the dermtrack_update_section tool definition
func NewUpdateSectionTool() mcp.Tool {
	return mcp.NewTool("dermtrack_update_section",
		mcp.WithDescription("Rename a section or change its description."),
		mcp.WithString("section_id",
			mcp.Required(),
			mcp.Description("Section to update"),
		),
		mcp.WithString("name",
			mcp.Description("New name"),
		),
		mcp.WithString("description",
			mcp.Description("New description"),
		),
	)
}

// UpdateSectionHandler handles the dermtrack_update_section tool
func UpdateSectionHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("section_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var upd sections.Update
		if args, ok := request.Params.Arguments.(map[string]interface{}); ok {
			if name, ok := args["name"].(string); ok {
				upd.Name = &name
			}
			if desc, ok := args["description"].(string); ok {
				upd.Description = &desc
			}
		}
		if upd.Name == nil && upd.Description == nil {
			return mcp.NewToolResultError("nothing to update: provide name or description"), nil
		}

		section, err := ctx.Tracker.UpdateSection(c, userID, id, upd)
		if err != nil {
			return ctx.domainError("update section", err), nil
		}
		return jsonResult(section)
	}
}

// NewDeleteSectionTool creates the dermtrack_delete_section tool definition
func NewDeleteSectionTool() mcp.Tool {
	return mcp.NewTool("dermtrack_delete_section",
		mcp.WithDescription("Delete a section together with all of its observations. This cannot be undone."),
		mcp.WithString("section_id",
			mcp.Required(),
			mcp.Description("Section to delete"),
		),
	)
}

// DeleteSectionHandler handles the dermtrack_delete_section tool
func DeleteSectionHandler(ctx *ToolContext, userID uint) func(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return func(c context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := request.RequireString("section_id")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		if err := ctx.Tracker.DeleteSection(c, userID, id); err != nil {
			return ctx.domainError("delete section", err), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf("Section '%s' and its observations were deleted", id)), nil
	}
}
