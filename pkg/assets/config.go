package assets

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// DefaultMaxBytes is the default upload size limit (10 MiB).
const DefaultMaxBytes int64 = 10 << 20

// Config holds object storage settings.
type Config struct {
	// Endpoint is host:port of the S3-compatible service. Empty selects the
	// in-memory store.
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
	Region          string
	UseSSL          bool
	// PublicBaseURL prefixes object keys to form public URLs. Defaults to
	// the bucket URL on the endpoint.
	PublicBaseURL string
	MaxBytes      int64
}

// DefaultConfig returns an in-memory configuration.
func DefaultConfig() *Config {
	return &Config{
		Bucket:   "portfolio-assets",
		MaxBytes: DefaultMaxBytes,
	}
}

// ConfigFromEnv loads config from environment variables.
// PORTFOLIO_ASSETS_ENDPOINT, PORTFOLIO_ASSETS_ACCESS_KEY, PORTFOLIO_ASSETS_SECRET_KEY,
// PORTFOLIO_ASSETS_BUCKET, PORTFOLIO_ASSETS_REGION, PORTFOLIO_ASSETS_USE_SSL,
// PORTFOLIO_ASSETS_PUBLIC_BASE_URL, PORTFOLIO_ASSETS_MAX_BYTES
func ConfigFromEnv() *Config {
	cfg := DefaultConfig()

	cfg.Endpoint = os.Getenv("PORTFOLIO_ASSETS_ENDPOINT")
	cfg.AccessKeyID = os.Getenv("PORTFOLIO_ASSETS_ACCESS_KEY")
	cfg.SecretAccessKey = os.Getenv("PORTFOLIO_ASSETS_SECRET_KEY")
	cfg.Region = os.Getenv("PORTFOLIO_ASSETS_REGION")
	cfg.PublicBaseURL = os.Getenv("PORTFOLIO_ASSETS_PUBLIC_BASE_URL")
	if v := os.Getenv("PORTFOLIO_ASSETS_BUCKET"); v != "" {
		cfg.Bucket = v
	}
	if v := os.Getenv("PORTFOLIO_ASSETS_USE_SSL"); v != "" {
		cfg.UseSSL = strings.EqualFold(v, "true")
	}
	if v := os.Getenv("PORTFOLIO_ASSETS_MAX_BYTES"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			cfg.MaxBytes = n
		}
	}
	return cfg
}

func (c *Config) publicBaseURL() string {
	if c.PublicBaseURL != "" {
		return c.PublicBaseURL
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s", scheme, c.Endpoint, c.Bucket)
}

// New returns the Store selected by cfg.
func New(cfg *Config, logger *slog.Logger) (Store, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Endpoint == "" {
		logger.Warn("asset storage not configured, using in-memory store")
		return NewMemoryStore(cfg.PublicBaseURL), nil
	}
	s, err := NewMinioStore(cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("asset storage configured", "endpoint", cfg.Endpoint, "bucket", cfg.Bucket)
	return s, nil
}
