// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration.
type Config struct {
	// Server settings
	Port     string
	LogLevel string // "debug", "info", "warn", "error"

	// Remote workflow scoring service
	WorkflowBaseURL string
	WorkflowAPIKey  string // bearer credential; empty disables the remote path
	WorkflowID      string // workflow identifier; empty disables the remote path
	RemoteTimeout   time.Duration

	// Scoring
	ScoreBase int // fallback rule base score
}

// Defaults.
const (
	DefaultPort            = "8080"
	DefaultLogLevel        = "info"
	DefaultWorkflowBaseURL = "https://workflow.opus.ai"
	DefaultRemoteTimeout   = 15 // seconds
	DefaultScoreBase       = 30
)

// Load reads configuration from environment variables.
// It loads a .env file if present (for local development).
func Load() (*Config, error) {
	// Ignore the error if no .env file exists.
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", DefaultPort),
		LogLevel:        getEnv("LOG_LEVEL", DefaultLogLevel),
		WorkflowBaseURL: getEnv("WORKFLOW_BASE_URL", DefaultWorkflowBaseURL),
		WorkflowAPIKey:  os.Getenv("WORKFLOW_API_KEY"), // optional, no default
		WorkflowID:      os.Getenv("WORKFLOW_ID"),      // optional, no default
		RemoteTimeout:   time.Duration(getEnvInt("REMOTE_TIMEOUT_SECONDS", DefaultRemoteTimeout)) * time.Second,
		ScoreBase:       getEnvInt("SCORE_BASE", DefaultScoreBase),
	}

	if cfg.RemoteTimeout <= 0 {
		return nil, fmt.Errorf("REMOTE_TIMEOUT_SECONDS must be positive")
	}
	if cfg.ScoreBase < 0 || cfg.ScoreBase > 100 {
		return nil, fmt.Errorf("SCORE_BASE must be between 0 and 100")
	}
	return cfg, nil
}

// RemoteEnabled reports whether the remote scoring path can be used.
// Both the API key and the workflow ID are required; with either missing the
// service runs in degraded local-only mode.
func (c *Config) RemoteEnabled() bool {
	return c.WorkflowAPIKey != "" && c.WorkflowID != ""
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
