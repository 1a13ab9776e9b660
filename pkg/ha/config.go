// Package ha lets several portfolio-server replicas share one database:
// schema migrations are serialized and a database lease picks the replica
// that runs the background loops.
package ha

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// HAConfig configures migration locking and leader election.
type HAConfig struct {
	// Identity names this replica in lock and lease rows. Defaults to
	// POD_NAME, then the hostname.
	Identity string

	// LeaderElectionEnabled turns on the lease. Without it every replica
	// runs the background loops.
	LeaderElectionEnabled bool
	LeaseName             string
	LeaseDuration         time.Duration
	// RetryPeriod must be shorter than LeaseDuration.
	RetryPeriod time.Duration

	MigrationLockEnabled bool
	MigrationLockName    string
	// MigrationLockTimeout bounds the wait for a busy lock table.
	MigrationLockTimeout time.Duration
	// MigrationLockPoll is the wait between lock table attempts.
	MigrationLockPoll time.Duration
	// MigrationLockStaleAfter breaks lock rows left by crashed holders.
	MigrationLockStaleAfter time.Duration
}

func DefaultHAConfig() *HAConfig {
	return &HAConfig{
		Identity:                defaultIdentity(),
		LeaseName:               "portfolio-server-leader",
		LeaseDuration:           15 * time.Second,
		RetryPeriod:             5 * time.Second,
		MigrationLockEnabled:    true,
		MigrationLockName:       "portfolio-server-migration",
		MigrationLockTimeout:    30 * time.Second,
		MigrationLockPoll:       time.Second,
		MigrationLockStaleAfter: 5 * time.Minute,
	}
}

// HAConfigFromEnv overlays these variables on the defaults:
//
//	PORTFOLIO_LEADER_ELECTION_ENABLED  bool
//	PORTFOLIO_LEADER_LEASE_NAME        string
//	PORTFOLIO_LEADER_LEASE_DURATION    duration or whole seconds
//	PORTFOLIO_LEADER_RETRY_PERIOD      duration or whole seconds
//	PORTFOLIO_MIGRATION_LOCK_ENABLED   bool
//	PORTFOLIO_MIGRATION_LOCK_TIMEOUT   duration or whole seconds
//	POD_NAME                           replica identity
func HAConfigFromEnv() *HAConfig {
	cfg := DefaultHAConfig()
	envBool("PORTFOLIO_LEADER_ELECTION_ENABLED", &cfg.LeaderElectionEnabled)
	envBool("PORTFOLIO_MIGRATION_LOCK_ENABLED", &cfg.MigrationLockEnabled)
	envDuration("PORTFOLIO_LEADER_LEASE_DURATION", &cfg.LeaseDuration)
	envDuration("PORTFOLIO_LEADER_RETRY_PERIOD", &cfg.RetryPeriod)
	envDuration("PORTFOLIO_MIGRATION_LOCK_TIMEOUT", &cfg.MigrationLockTimeout)
	if v := os.Getenv("PORTFOLIO_LEADER_LEASE_NAME"); v != "" {
		cfg.LeaseName = v
	}
	return cfg
}

// Validate reports settings that would make the lease flap.
func (c *HAConfig) Validate() error {
	if !c.LeaderElectionEnabled {
		return nil
	}
	if c.LeaseName == "" {
		return fmt.Errorf("leader election: lease name is required")
	}
	if c.RetryPeriod <= 0 || c.RetryPeriod >= c.LeaseDuration {
		return fmt.Errorf("leader election: retry period %s must be positive and shorter than lease duration %s",
			c.RetryPeriod, c.LeaseDuration)
	}
	return nil
}

func envBool(key string, dst *bool) {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		*dst = b
	}
}

// envDuration accepts Go durations ("30s", "1m") and bare seconds ("30").
func envDuration(key string, dst *time.Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs > 0 {
			*dst = time.Duration(secs) * time.Second
		}
		return
	}
	if d, err := time.ParseDuration(v); err == nil && d > 0 {
		*dst = d
	}
}

func defaultIdentity() string {
	if v := os.Getenv("POD_NAME"); v != "" {
		return v
	}
	if host, err := os.Hostname(); err == nil {
		return host
	}
	return "unknown"
}
