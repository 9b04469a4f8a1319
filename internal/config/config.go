// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	// DefaultConfigDir is the default configuration directory
	DefaultConfigDir = ".dermtrack/configs"
	// DefaultConfigFile is the default configuration filename
	DefaultConfigFile = "config.json"
	// DefaultDBPath is the default SQLite location relative to the home directory
	DefaultDBPath = ".dermtrack/db/dermtrack.db"
)

// Load reads configuration from ~/.dermtrack/configs/config.json
func Load() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(configPath)

	// Set defaults
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, use defaults
			return loadFromDefaults(v)
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

// LoadFromPath loads configuration from a specific path
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.tls.enabled", false)

	// Database defaults
	v.SetDefault("database.type", "sqlite")
	homeDir, _ := os.UserHomeDir()
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, DefaultDBPath))

	// Security defaults
	v.SetDefault("security.token_ttl_hours", 24)

	// Progress defaults
	v.SetDefault("progress.trend_tolerance", 5.0)
	v.SetDefault("progress.feature_dimensions", 0)

	// Narrative defaults
	v.SetDefault("narrative.enabled", false)
	v.SetDefault("narrative.provider", NarrativeProviderOpenAI)
	v.SetDefault("narrative.base_url", "https://api.openai.com/v1")
	v.SetDefault("narrative.model", "gpt-4o-mini")
	v.SetDefault("narrative.api_key_env", "OPENAI_API_KEY")
	v.SetDefault("narrative.timeout_seconds", 30)
	v.SetDefault("narrative.requests_per_minute", 20)
	v.SetDefault("narrative.max_retries", 2)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Scheduler defaults
	v.SetDefault("scheduler.narrative_backfill_minutes", 0)
}

// loadFromDefaults creates a config from default values
func loadFromDefaults(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal default config: %w", err)
	}
	return &cfg, nil
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	// Validate database type
	if cfg.Database.Type != "sqlite" && cfg.Database.Type != "postgres" {
		return fmt.Errorf("database.type must be 'sqlite' or 'postgres', got '%s'", cfg.Database.Type)
	}

	// Validate database connection info
	if cfg.Database.Type == "sqlite" && cfg.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required when type is 'sqlite'")
	}
	if cfg.Database.Type == "postgres" && cfg.Database.PostgresDSN == "" {
		return fmt.Errorf("database.postgres_dsn is required when type is 'postgres'")
	}

	// Validate server port
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	// Validate security settings
	if cfg.Security.TokenTTL < 1 {
		return fmt.Errorf("security.token_ttl_hours must be at least 1, got %d", cfg.Security.TokenTTL)
	}

	// Validate scoring policy
	if cfg.Progress.TrendTolerance < 0 || math.IsNaN(cfg.Progress.TrendTolerance) || cfg.Progress.TrendTolerance > 100 {
		return fmt.Errorf("progress.trend_tolerance must be between 0 and 100, got %v", cfg.Progress.TrendTolerance)
	}
	if cfg.Progress.FeatureDimensions < 0 {
		return fmt.Errorf("progress.feature_dimensions must not be negative, got %d", cfg.Progress.FeatureDimensions)
	}

	if cfg.Scheduler.NarrativeBackfillMinutes < 0 {
		return fmt.Errorf("scheduler.narrative_backfill_minutes must not be negative, got %d", cfg.Scheduler.NarrativeBackfillMinutes)
	}

	if cfg.Logging.Format != "" && cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got '%s'", cfg.Logging.Format)
	}

	return validateNarrative(&cfg.Narrative)
}

// validateNarrative only checks settings when narrative generation is on
func validateNarrative(n *NarrativeConfig) error {
	if !n.Enabled {
		return nil
	}

	if !IsValidNarrativeProvider(n.Provider) {
		return fmt.Errorf("narrative.provider must be one of %v, got '%s'", ValidNarrativeProviders(), n.Provider)
	}

	if n.Provider == NarrativeProviderOpenAI {
		if n.BaseURL == "" {
			return fmt.Errorf("narrative.base_url is required for provider '%s'", n.Provider)
		}
		if n.Model == "" {
			return fmt.Errorf("narrative.model is required for provider '%s'", n.Provider)
		}
		if n.APIKeyEnv == "" || os.Getenv(n.APIKeyEnv) == "" {
			return fmt.Errorf("narrative API key not found in environment variable '%s'", n.APIKeyEnv)
		}
	}

	if n.TimeoutSeconds < 1 {
		return fmt.Errorf("narrative.timeout_seconds must be at least 1, got %d", n.TimeoutSeconds)
	}
	if n.RequestsPerMinute < 0 {
		return fmt.Errorf("narrative.requests_per_minute must not be negative, got %d", n.RequestsPerMinute)
	}
	if n.MaxRetries < 0 {
		return fmt.Errorf("narrative.max_retries must not be negative, got %d", n.MaxRetries)
	}

	return nil
}

// APIKey returns the narrative API key from the configured environment variable
func (n NarrativeConfig) APIKey() string {
	if n.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(n.APIKeyEnv)
}

// Validate checks a configuration assembled outside of Load, e.g. after
// command-line overrides
func Validate(cfg *Config) error {
	return validate(cfg)
}

// EnsureConfigDir creates the configuration directory if it doesn't exist
func EnsureConfigDir() error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get user home directory: %w", err)
	}

	configPath := filepath.Join(homeDir, DefaultConfigDir)
	if err := os.MkdirAll(configPath, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return nil
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Type:       "sqlite",
			SQLitePath: filepath.Join(homeDir, DefaultDBPath),
		},
		Security: SecurityConfig{
			TokenTTL: 24,
		},
		Progress: ProgressConfig{
			TrendTolerance: 5.0,
		},
		Narrative: NarrativeConfig{
			Provider:          NarrativeProviderOpenAI,
			BaseURL:           "https://api.openai.com/v1",
			Model:             "gpt-4o-mini",
			APIKeyEnv:         "OPENAI_API_KEY",
			TimeoutSeconds:    30,
			RequestsPerMinute: 20,
			MaxRetries:        2,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
