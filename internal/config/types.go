// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at https://mozilla.org/MPL/2.0/.

package config

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Security  SecurityConfig  `mapstructure:"security"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Narrative NarrativeConfig `mapstructure:"narrative"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TLS  struct {
		Enabled  bool   `mapstructure:"enabled"`
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Type        string `mapstructure:"type"` // "sqlite" or "postgres"
	SQLitePath  string `mapstructure:"sqlite_path"`
	PostgresDSN string `mapstructure:"postgres_dsn"`
}

// SecurityConfig holds security-related settings
type SecurityConfig struct {
	TokenTTL int `mapstructure:"token_ttl_hours"`
}

// ProgressConfig holds the scoring policy
type ProgressConfig struct {
	TrendTolerance    float64 `mapstructure:"trend_tolerance"`    // percentage points
	FeatureDimensions int     `mapstructure:"feature_dimensions"` // 0 accepts any length
}

// NarrativeConfig holds configuration for the narrative text generator
type NarrativeConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	Provider          string `mapstructure:"provider"`    // "openai" or "mock"
	BaseURL           string `mapstructure:"base_url"`    // API base URL
	Model             string `mapstructure:"model"`       // Chat model name
	APIKeyEnv         string `mapstructure:"api_key_env"` // Environment variable name for API key
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute"`
	MaxRetries        int    `mapstructure:"max_retries"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // "json" or "console"
}

// SchedulerConfig holds background job settings
type SchedulerConfig struct {
	NarrativeBackfillMinutes int `mapstructure:"narrative_backfill_minutes"` // 0 disables
}

// Narrative providers
const (
	NarrativeProviderOpenAI = "openai"
	NarrativeProviderMock   = "mock"
)

// ValidNarrativeProviders returns all valid narrative provider values
func ValidNarrativeProviders() []string {
	return []string{
		NarrativeProviderOpenAI,
		NarrativeProviderMock,
	}
}

// isValidType is a generic helper to check if a type is in a list of valid types
func isValidType(aType string, validTypes []string) bool {
	for _, valid := range validTypes {
		if aType == valid {
			return true
		}
	}
	return false
}

// IsValidNarrativeProvider checks if a provider is valid
func IsValidNarrativeProvider(provider string) bool {
	return isValidType(provider, ValidNarrativeProviders())
}
