package cleanup

import (
	"os"
	"strconv"
	"time"
)

// Config controls the cleanup queue and worker behavior.
type Config struct {
	Concurrency         int           // Max concurrent workers. Default 2.
	MaxRetries          int           // Max delete attempts per job. Default 5.
	PollInterval        time.Duration // How often workers poll for new jobs. Default 10s.
	ClaimTimeout        time.Duration // Max time a job can be running before it is re-queued. Default 5m.
	MaintenanceInterval time.Duration // How often stuck and old jobs are swept. Default 1m.
	RetentionDays       int           // How long to keep terminal jobs. Default 14.
	Enabled             bool          // Whether workers run. Default true.
}

// DefaultConfig returns the default cleanup configuration.
func DefaultConfig() *Config {
	return &Config{
		Concurrency:         2,
		MaxRetries:          5,
		PollInterval:        10 * time.Second,
		ClaimTimeout:        5 * time.Minute,
		MaintenanceInterval: time.Minute,
		RetentionDays:       14,
		Enabled:             true,
	}
}

// ConfigFromEnv loads config from environment variables.
// PORTFOLIO_CLEANUP_CONCURRENCY, PORTFOLIO_CLEANUP_MAX_RETRIES,
// PORTFOLIO_CLEANUP_POLL_INTERVAL_SECONDS, PORTFOLIO_CLEANUP_CLAIM_TIMEOUT_MINUTES,
// PORTFOLIO_CLEANUP_RETENTION_DAYS, PORTFOLIO_CLEANUP_ENABLED
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("PORTFOLIO_CLEANUP_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Concurrency = n
		}
	}

	if v := os.Getenv("PORTFOLIO_CLEANUP_MAX_RETRIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.MaxRetries = n
		}
	}

	if v := os.Getenv("PORTFOLIO_CLEANUP_POLL_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PollInterval = time.Duration(n) * time.Second
		}
	}

	if v := os.Getenv("PORTFOLIO_CLEANUP_CLAIM_TIMEOUT_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ClaimTimeout = time.Duration(n) * time.Minute
		}
	}

	if v := os.Getenv("PORTFOLIO_CLEANUP_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RetentionDays = n
		}
	}

	if v := os.Getenv("PORTFOLIO_CLEANUP_ENABLED"); v != "" {
		cfg.Enabled, _ = strconv.ParseBool(v)
	}

	return cfg
}
