// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tejzpr/dermtrack/internal/config"
)

// Version is set at build time via ldflags (e.g. goreleaser -X main.Version={{.Version}}).
var Version string

// rootOptions are the persistent flags shared by all commands
type rootOptions struct {
	configPath string
	dbType     string
	dbPath     string
	dbDSN      string
	logLevel   string
}

var rootOpts rootOptions

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "dermtrack",
	Short: "Track how a skin lesion changes between photos",
	Long: `dermtrack records the vision analysis of repeated photos of a skin area,
compares each new photo against the earlier ones and classifies the trend as
improving, stable or worsening.

Examples:
  # Serve the REST API
  dermtrack serve

  # Serve MCP over stdio for the current system user
  dermtrack stdio

  # Print the progress report of a section as YAML
  dermtrack report 3f1c... --format yaml`,
	SilenceUsage: true,
}

func init() {
	if Version != "" {
		rootCmd.Version = Version
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&rootOpts.configPath, "config", "", "Path to config file (default ~/.dermtrack/configs/config.json)")
	flags.StringVar(&rootOpts.dbType, "db-type", "", "Database type (sqlite or postgres)")
	flags.StringVar(&rootOpts.dbPath, "db-path", "", "Database path (for sqlite)")
	flags.StringVar(&rootOpts.dbDSN, "db-dsn", "", "Database DSN (for postgres)")
	flags.StringVar(&rootOpts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stdioCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(reportCmd)
}

// loadConfig resolves the configuration: file, then environment, then flags
func loadConfig(port int) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if rootOpts.configPath != "" {
		cfg, err = config.LoadFromPath(rootOpts.configPath)
		if err != nil {
			return nil, err
		}
	} else {
		cfg, err = config.Load()
		if err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	applyCLIOverrides(cfg, rootOpts, port)

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to configuration
func applyEnvOverrides(cfg *config.Config) {
	if dbType := getEnv("DB_TYPE", "DERMTRACK_DB_TYPE"); dbType != "" {
		cfg.Database.Type = dbType
	}

	if dbPath := getEnv("DB_PATH", "DERMTRACK_DB_PATH"); dbPath != "" {
		cfg.Database.SQLitePath = dbPath
	}

	if dbDSN := getEnv("DB_DSN", "DERMTRACK_DB_DSN"); dbDSN != "" {
		cfg.Database.PostgresDSN = dbDSN
	}

	if portStr := getEnv("PORT", "DERMTRACK_PORT"); portStr != "" {
		if port, err := strconv.Atoi(portStr); err == nil {
			cfg.Server.Port = port
		}
	}

	if level := getEnv("LOG_LEVEL", "DERMTRACK_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}

	if enabled := getEnv("DERMTRACK_NARRATIVE_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Narrative.Enabled = b
		}
	}

	// NARRATIVE_API_KEY fills the configured key variable when that one is unset
	if key := getEnv("NARRATIVE_API_KEY", "DERMTRACK_NARRATIVE_API_KEY"); key != "" && cfg.Narrative.APIKey() == "" && cfg.Narrative.APIKeyEnv != "" {
		_ = os.Setenv(cfg.Narrative.APIKeyEnv, key)
	}
}

// applyCLIOverrides applies command-line flag overrides to configuration
func applyCLIOverrides(cfg *config.Config, opts rootOptions, port int) {
	if opts.dbType != "" {
		cfg.Database.Type = opts.dbType
	}

	if opts.dbPath != "" {
		cfg.Database.SQLitePath = opts.dbPath
	}

	if opts.dbDSN != "" {
		cfg.Database.PostgresDSN = opts.dbDSN
	}

	if opts.logLevel != "" {
		cfg.Logging.Level = opts.logLevel
	}

	if port > 0 {
		cfg.Server.Port = port
	}
}

// getEnv tries multiple environment variable names and returns the first non-empty value
func getEnv(names ...string) string {
	for _, name := range names {
		if val := os.Getenv(name); val != "" {
			return val
		}
	}
	return ""
}
