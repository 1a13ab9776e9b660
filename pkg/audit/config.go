package audit

import (
	"os"
	"strconv"
	"time"
)

// AuditConfig controls which events are kept and for how long.
type AuditConfig struct {
	Enabled bool
	// LogDenied records 401/403 responses from the edge gate.
	LogDenied bool
	// RetentionDays bounds event age; zero keeps events forever.
	RetentionDays int
	// SweepInterval is the pause between retention sweeps.
	SweepInterval time.Duration
}

func DefaultAuditConfig() *AuditConfig {
	return &AuditConfig{
		Enabled:       true,
		LogDenied:     true,
		RetentionDays: 90,
		SweepInterval: 24 * time.Hour,
	}
}

// AuditConfigFromEnv reads PORTFOLIO_AUDIT_ENABLED, PORTFOLIO_AUDIT_LOG_DENIED,
// PORTFOLIO_AUDIT_RETENTION_DAYS and PORTFOLIO_AUDIT_SWEEP_INTERVAL over the
// defaults. Unparseable values are ignored.
func AuditConfigFromEnv() *AuditConfig {
	cfg := DefaultAuditConfig()
	if b, err := strconv.ParseBool(os.Getenv("PORTFOLIO_AUDIT_ENABLED")); err == nil {
		cfg.Enabled = b
	}
	if b, err := strconv.ParseBool(os.Getenv("PORTFOLIO_AUDIT_LOG_DENIED")); err == nil {
		cfg.LogDenied = b
	}
	if n, err := strconv.Atoi(os.Getenv("PORTFOLIO_AUDIT_RETENTION_DAYS")); err == nil && n >= 0 {
		cfg.RetentionDays = n
	}
	if d, err := time.ParseDuration(os.Getenv("PORTFOLIO_AUDIT_SWEEP_INTERVAL")); err == nil && d > 0 {
		cfg.SweepInterval = d
	}
	return cfg
}
