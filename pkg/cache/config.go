package cache

import (
	"os"
	"strconv"
	"time"
)

// InvalidationConfig configures delivery of display-cache invalidation intents.
type InvalidationConfig struct {
	// RevalidateURL receives a POST per intent. Empty disables delivery.
	RevalidateURL string

	// Secret is sent in the X-Revalidate-Secret header.
	Secret string

	// Timeout bounds each webhook call.
	Timeout time.Duration
}

// DefaultInvalidationConfig returns a disabled configuration with a 5s timeout.
func DefaultInvalidationConfig() *InvalidationConfig {
	return &InvalidationConfig{
		Timeout: 5 * time.Second,
	}
}

// InvalidationConfigFromEnv reads configuration from environment variables,
// falling back to defaults for any unset variable.
//
// Environment variables:
//   - PORTFOLIO_CACHE_REVALIDATE_URL: webhook URL (default: disabled)
//   - PORTFOLIO_CACHE_REVALIDATE_SECRET: shared secret
//   - PORTFOLIO_CACHE_TIMEOUT_SECONDS: per-call timeout in seconds (default: 5)
func InvalidationConfigFromEnv() *InvalidationConfig {
	cfg := DefaultInvalidationConfig()

	cfg.RevalidateURL = os.Getenv("PORTFOLIO_CACHE_REVALIDATE_URL")
	cfg.Secret = os.Getenv("PORTFOLIO_CACHE_REVALIDATE_SECRET")

	if v := os.Getenv("PORTFOLIO_CACHE_TIMEOUT_SECONDS"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			cfg.Timeout = time.Duration(secs) * time.Second
		}
	}

	return cfg
}
