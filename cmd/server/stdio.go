// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tejzpr/dermtrack/internal/server"
	"go.uber.org/zap"
)

var withAccessingUser bool

var stdioCmd = &cobra.Command{
	Use:   "stdio",
	Short: "Serve MCP tools over stdin/stdout",
	Long: `Serve the MCP tools over stdio for the local user. The user is taken from
whoami, or from the ACCESSING_USER environment variable with
--with-accessinguser. Only JSON-RPC is written to stdout; logs go to stderr.

Examples:
  dermtrack stdio
  ACCESSING_USER=alice dermtrack stdio --with-accessinguser`,
	Args: cobra.NoArgs,
	RunE: runStdio,
}

func init() {
	stdioCmd.Flags().BoolVar(&withAccessingUser, "with-accessinguser", false, "Use ACCESSING_USER env var for user identity")
}

func runStdio(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(0)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.localAuthenticator(withAccessingUser).ResolveUser(a.db)
	if err != nil {
		return fmt.Errorf("failed to authenticate user: %w", err)
	}
	a.logger.Info("local user authenticated",
		zap.String("username", user.Username),
		zap.Uint("user_id", user.ID),
		zap.Bool("accessing_user", withAccessingUser))

	mcpServer := server.NewMCPServer(a.tracker, Version, a.logger.Named("mcp"))
	mcpServer.RegisterToolsForUser(user.ID)

	a.logger.Info("MCP server ready (stdio mode)", zap.Int("tools", server.ToolCount))
	if err := mcpServer.ServeStdio(); err != nil {
		return fmt.Errorf("MCP server error: %w", err)
	}
	return nil
}
