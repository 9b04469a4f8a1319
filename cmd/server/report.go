// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/tejzpr/dermtrack/internal/tracker"
	"gopkg.in/yaml.v3"
)

var reportOpts struct {
	format     string
	narrative  bool
	regenerate bool
}

var reportCmd = &cobra.Command{
	Use:   "report <section-id>",
	Short: "Print the progress report of a section",
	Long: `Build the progress report of one of the local user's sections.

Examples:
  dermtrack report 3f1c... --format yaml
  dermtrack report 3f1c... --narrative`,
	Args: cobra.ExactArgs(1),
	RunE: runReport,
}

func init() {
	reportCmd.Flags().StringVar(&reportOpts.format, "format", "json", "Output format (json or yaml)")
	reportCmd.Flags().BoolVar(&reportOpts.narrative, "narrative", false, "Attach a narrative summary")
	reportCmd.Flags().BoolVar(&reportOpts.regenerate, "regenerate", false, "Replace the stored narrative")
}

func runReport(cmd *cobra.Command, args []string) error {
	if reportOpts.format != "json" && reportOpts.format != "yaml" {
		return fmt.Errorf("unsupported format %q (use json or yaml)", reportOpts.format)
	}

	a, err := bootstrap(0)
	if err != nil {
		return err
	}
	defer a.Close()

	user, err := a.localAuthenticator(false).ResolveUser(a.db)
	if err != nil {
		return fmt.Errorf("failed to authenticate local user: %w", err)
	}

	result, err := a.tracker.Report(cmd.Context(), user.ID, args[0], tracker.ReportOptions{
		Narrative:  reportOpts.narrative,
		Regenerate: reportOpts.regenerate,
	})
	if err != nil {
		return err
	}

	return writeReport(cmd.OutOrStdout(), result, reportOpts.format)
}

// writeReport encodes result as json or yaml
func writeReport(w io.Writer, result *tracker.ReportResult, format string) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("failed to encode report: %w", err)
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
}
