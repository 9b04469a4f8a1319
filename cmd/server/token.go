// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Issue an API token for the local user",
	Long: `Issue a bearer token for the system user (whoami) and print it as JSON.

Examples:
  TOKEN=$(dermtrack token | jq -r .access_token)
  curl -H "Authorization: Bearer $TOKEN" localhost:8080/api/v1/sections`,
	Args: cobra.NoArgs,
	RunE: runToken,
}

func runToken(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(0)
	if err != nil {
		return err
	}
	defer a.Close()

	user, token, err := a.localAuthenticator(false).Authenticate(a.db)
	if err != nil {
		return fmt.Errorf("failed to authenticate local user: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"username":      user.Username,
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.ExpiresAt,
	})
}
