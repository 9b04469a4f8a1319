// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package server

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/tejzpr/dermtrack/internal/tools"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"go.uber.org/zap"
)

// ToolCount is the number of tools registered per user
const ToolCount = 7

// MCPServer wraps the mcp-go server with our tools
type MCPServer struct {
	mcpServer *server.MCPServer
	toolCtx   *tools.ToolContext
}

// NewMCPServer creates a new MCP server instance
func NewMCPServer(svc *tracker.Service, version string, logger *zap.Logger) *MCPServer {
	if version == "" {
		version = "dev"
	}

	return &MCPServer{
		mcpServer: server.NewMCPServer(
			"dermtrack",
			version,
			server.WithToolCapabilities(true),
		),
		toolCtx: tools.NewToolContext(svc, logger),
	}
}

// RegisterToolsForUser registers all MCP tools bound to userID
func (s *MCPServer) RegisterToolsForUser(userID uint) {
	s.mcpServer.AddTool(tools.NewCreateSectionTool(), tools.CreateSectionHandler(s.toolCtx, userID))
	s.mcpServer.AddTool(tools.NewListSectionsTool(), tools.ListSectionsHandler(s.toolCtx, userID))
	s.mcpServer.AddTool(tools.NewUpdateSectionTool(), tools.UpdateSectionHandler(s.toolCtx, userID))
	s.mcpServer.AddTool(tools.NewDeleteSectionTool(), tools.DeleteSectionHandler(s.toolCtx, userID))

	s.mcpServer.AddTool(tools.NewAddObservationTool(), tools.AddObservationHandler(s.toolCtx, userID))
	s.mcpServer.AddTool(tools.NewHistoryTool(), tools.HistoryHandler(s.toolCtx, userID))

	s.mcpServer.AddTool(tools.NewProgressReportTool(), tools.ProgressReportHandler(s.toolCtx, userID))
}

// GetMCPServer returns the underlying MCP server
func (s *MCPServer) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves MCP over stdin/stdout until the input closes
func (s *MCPServer) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
