package ha

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leaseRecord is the single row per lease name shared by all replicas.
type leaseRecord struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Holder    string    `gorm:"column:holder;not null"`
	ExpiresAt time.Time `gorm:"column:expires_at;not null"`
	RenewedAt time.Time `gorm:"column:renewed_at"`
}

func (leaseRecord) TableName() string { return "leader_leases" }

// LeaderElector runs singleton background loops (cleanup workers, audit
// retention) on exactly one replica. Leadership is a row in leader_leases
// whose holder renews it before it expires.
type LeaderElector struct {
	config   *HAConfig
	db       *gorm.DB
	identity string
	now      func() time.Time

	mu       sync.RWMutex
	isLeader bool

	logger  *slog.Logger
	onStart func(ctx context.Context)
	onStop  func()
}

// NewLeaderElector creates a LeaderElector. The identity should be unique
// per replica.
func NewLeaderElector(cfg *HAConfig, db *gorm.DB, identity string, logger *slog.Logger) *LeaderElector {
	if cfg == nil {
		cfg = DefaultHAConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderElector{
		config:   cfg,
		db:       db,
		identity: identity,
		now:      time.Now,
		logger:   logger,
	}
}

// AutoMigrate creates the leader_leases table.
func (le *LeaderElector) AutoMigrate() error {
	return le.db.AutoMigrate(&leaseRecord{})
}

// OnStartLeading registers a callback invoked when this instance becomes leader.
// The provided context is cancelled when leadership is lost.
func (le *LeaderElector) OnStartLeading(fn func(ctx context.Context)) {
	le.onStart = fn
}

// OnStopLeading registers a callback invoked when this instance loses leadership.
func (le *LeaderElector) OnStopLeading(fn func()) {
	le.onStop = fn
}

// IsLeader returns true if this instance is the current leader.
func (le *LeaderElector) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

func (le *LeaderElector) setLeader(v bool) {
	le.mu.Lock()
	le.isLeader = v
	le.mu.Unlock()
}

// TryAcquire takes or renews the lease. It returns true when this instance
// holds the lease afterwards.
func (le *LeaderElector) TryAcquire(ctx context.Context) (bool, error) {
	now := le.now()
	expires := now.Add(le.config.LeaseDuration)
	db := le.db.WithContext(ctx)

	result := db.Model(&leaseRecord{}).
		Where("name = ? AND (holder = ? OR expires_at < ?)", le.config.LeaseName, le.identity, now).
		Updates(map[string]any{
			"holder":     le.identity,
			"expires_at": expires,
			"renewed_at": now,
		})
	if result.Error != nil {
		return false, fmt.Errorf("renew lease: %w", result.Error)
	}
	if result.RowsAffected == 1 {
		return true, nil
	}

	// No row updated: either another replica holds a live lease or the row
	// does not exist yet.
	result = db.Clauses(clause.OnConflict{DoNothing: true}).Create(&leaseRecord{
		Name:      le.config.LeaseName,
		Holder:    le.identity,
		ExpiresAt: expires,
		RenewedAt: now,
	})
	if result.Error != nil {
		return false, fmt.Errorf("create lease: %w", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// Release gives up the lease if this instance holds it.
func (le *LeaderElector) Release(ctx context.Context) error {
	err := le.db.WithContext(ctx).
		Where("name = ? AND holder = ?", le.config.LeaseName, le.identity).
		Delete(&leaseRecord{}).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("release lease: %w", err)
	}
	return nil
}

// Run contends for the lease until ctx is cancelled. When this instance
// becomes leader it calls OnStartLeading with a context that is cancelled
// when leadership is lost; OnStopLeading runs after that.
func (le *LeaderElector) Run(ctx context.Context) {
	le.logger.Info("starting leader election",
		"identity", le.identity,
		"lease", le.config.LeaseName,
		"leaseDuration", le.config.LeaseDuration,
		"retryPeriod", le.config.RetryPeriod,
	)

	ticker := time.NewTicker(le.config.RetryPeriod)
	defer ticker.Stop()

	var (
		leadCancel context.CancelFunc
		leadDone   chan struct{}
	)
	stopLeading := func() {
		if leadCancel == nil {
			return
		}
		leadCancel()
		<-leadDone
		leadCancel = nil
		le.setLeader(false)
		le.logger.Info("lost leadership", "identity", le.identity)
		if le.onStop != nil {
			le.onStop()
		}
	}

	for {
		held, err := le.TryAcquire(ctx)
		if err != nil && ctx.Err() == nil {
			le.logger.Warn("lease attempt failed", "error", err)
		}

		switch {
		case held && leadCancel == nil:
			le.setLeader(true)
			le.logger.Info("elected as leader", "identity", le.identity)
			var leadCtx context.Context
			leadCtx, leadCancel = context.WithCancel(ctx)
			leadDone = make(chan struct{})
			go func(done chan struct{}) {
				defer close(done)
				if le.onStart != nil {
					le.onStart(leadCtx)
				}
			}(leadDone)
		case !held:
			stopLeading()
		}

		select {
		case <-ctx.Done():
			stopLeading()
			if err := le.Release(context.WithoutCancel(ctx)); err != nil {
				le.logger.Warn("failed to release lease", "error", err)
			}
			return
		case <-ticker.C:
		}
	}
}
