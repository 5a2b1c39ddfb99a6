package config

import (
	"fmt"
	"os"
	"strconv"
)

// Discovery strategies. "deals" walks the deal collection and fetches each
// deal's notes; "notes" scans the flat notes collection directly.
const (
	StrategyDeals = "deals"
	StrategyNotes = "notes"
)

// Config holds all application configuration
// Supports environment variables with sensible defaults
//
// Environment Variables:
// API Configuration:
// - ACTIVECAMPAIGN_API_KEY: API token for the account (required)
// - BASE_URL: API base URL (default: https://account.api-us1.com/api/3)
// - TARGET_USER_ID: owner whose notes get deleted (default: 112)
// - RATE_LIMIT: max requests per rolling second (default: 10)
//
// Run Configuration:
// - MAX_WORKERS: concurrent deletion workers (default: 20)
// - NOTES_PER_RUN: advisory per-run note cap, 0 = unlimited (default: 0)
// - BATCH_NUMBER: operator batch label, 0 = previous+1 (default: 0)
// - DISCOVERY_STRATEGY: "deals" or "notes" (default: deals)
//
// State Configuration:
// - STATE_FILE: durable progress file; .db/.sqlite selects the SQLite
//   backend (default: progress_state.json)
// - LOG_FILE: append-only run log (default: deletion_log.txt)
// - LOG_LEVEL: minimum log level (default: info)

type Config struct {
	// API Configuration
	API APIConfig `json:"api"`

	// Run Configuration
	Run RunConfig `json:"run"`

	// State Configuration
	State StateConfig `json:"state"`
}

// APIConfig holds the configuration for the ActiveCampaign client
type APIConfig struct {
	Key          string `json:"key"`
	BaseURL      string `json:"base_url"`
	TargetUserID string `json:"target_user_id"`
	RateLimit    int    `json:"rate_limit"`
}

// RunConfig holds the configuration for a single batch run
type RunConfig struct {
	MaxWorkers  int    `json:"max_workers"`
	NotesPerRun int    `json:"notes_per_run"` // advisory cap, 0 = unlimited
	BatchNumber int    `json:"batch_number"`  // 0 = auto-increment
	Strategy    string `json:"strategy"`
}

// StateConfig holds the durable state and log file locations
type StateConfig struct {
	StateFile string `json:"state_file"`
	LogFile   string `json:"log_file"`
	LogLevel  string `json:"log_level"`
}

// Option is a function type for configuring Config
type Option func(*Config)

// NewFromEnv creates a new Config instance with values from environment variables and options
func NewFromEnv(opts ...Option) (*Config, error) {
	config := &Config{
		API: APIConfig{
			Key:          getEnvString("ACTIVECAMPAIGN_API_KEY", ""),
			BaseURL:      getEnvString("BASE_URL", "https://account.api-us1.com/api/3"),
			TargetUserID: getEnvString("TARGET_USER_ID", "112"),
			RateLimit:    getEnvInt("RATE_LIMIT", 10),
		},
		Run: RunConfig{
			MaxWorkers:  getEnvInt("MAX_WORKERS", 20),
			NotesPerRun: getEnvInt("NOTES_PER_RUN", 0),
			BatchNumber: getEnvInt("BATCH_NUMBER", 0),
			Strategy:    getEnvString("DISCOVERY_STRATEGY", StrategyDeals),
		},
		State: StateConfig{
			StateFile: getEnvString("STATE_FILE", "progress_state.json"),
			LogFile:   getEnvString("LOG_FILE", "deletion_log.txt"),
			LogLevel:  getEnvString("LOG_LEVEL", "info"),
		},
	}

	// Apply custom options
	for _, opt := range opts {
		opt(config)
	}

	// Validate required configuration
	if err := config.validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// validate checks if all required configuration is properly set
func (c *Config) validate() error {
	if c.API.Key == "" {
		return fmt.Errorf("ACTIVECAMPAIGN_API_KEY is required")
	}
	if c.API.BaseURL == "" {
		return fmt.Errorf("BASE_URL is required")
	}
	if c.API.TargetUserID == "" {
		return fmt.Errorf("TARGET_USER_ID is required")
	}
	if c.API.RateLimit < 1 {
		return fmt.Errorf("RATE_LIMIT must be greater than 0")
	}
	if c.Run.MaxWorkers < 1 {
		return fmt.Errorf("MAX_WORKERS must be greater than 0")
	}
	if c.Run.NotesPerRun < 0 {
		return fmt.Errorf("NOTES_PER_RUN must not be negative")
	}
	if c.Run.BatchNumber < 0 {
		return fmt.Errorf("BATCH_NUMBER must not be negative")
	}
	if c.Run.Strategy != StrategyDeals && c.Run.Strategy != StrategyNotes {
		return fmt.Errorf("DISCOVERY_STRATEGY must be %q or %q", StrategyDeals, StrategyNotes)
	}
	if c.State.StateFile == "" {
		return fmt.Errorf("STATE_FILE is required")
	}
	if c.State.LogFile == "" {
		return fmt.Errorf("LOG_FILE is required")
	}
	return nil
}

// getEnvString gets a string value from environment variables with default
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer value from environment variables with default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
