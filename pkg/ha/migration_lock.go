package ha

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// ErrMigrationLockTimeout is returned when the lock table stays busy past
// MigrationLockTimeout.
var ErrMigrationLockTimeout = errors.New("migration lock timeout")

// MigrationLocker runs schema migrations one replica at a time.
type MigrationLocker interface {
	WithLock(ctx context.Context, fn func() error) error
}

// NewMigrationLocker picks a locking strategy for db's dialect: a session
// advisory lock on PostgreSQL and a lock row elsewhere. A nil db or a
// disabled lock runs fn unguarded.
func NewMigrationLocker(db *gorm.DB, cfg *HAConfig, logger *slog.Logger) MigrationLocker {
	if cfg == nil {
		cfg = DefaultHAConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if db == nil || !cfg.MigrationLockEnabled {
		return unguarded{}
	}
	if db.Dialector.Name() == "postgres" {
		return &advisoryLock{db: db, key: int64(crc32.ChecksumIEEE([]byte(cfg.MigrationLockName))), logger: logger}
	}
	_ = db.AutoMigrate(&lockRow{})
	return &rowLock{db: db, cfg: *cfg, logger: logger}
}

type unguarded struct{}

func (unguarded) WithLock(_ context.Context, fn func() error) error { return fn() }

// advisoryLock blocks in pg_advisory_lock. The lock is released when fn
// returns or when the session dies.
type advisoryLock struct {
	db     *gorm.DB
	key    int64
	logger *slog.Logger
}

func (l *advisoryLock) WithLock(ctx context.Context, fn func() error) error {
	// Lock and unlock must run on the same pooled connection.
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("migration lock: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("migration lock: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "SELECT pg_advisory_lock($1)", l.key); err != nil {
		return fmt.Errorf("migration lock: acquire advisory lock %d: %w", l.key, err)
	}
	l.logger.Debug("migration lock acquired", "key", l.key)
	defer func() {
		if _, err := conn.ExecContext(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", l.key); err != nil {
			l.logger.Warn("migration lock release failed", "key", l.key, "error", err)
		}
	}()
	return fn()
}

type lockRow struct {
	Name     string    `gorm:"primaryKey;column:name"`
	Holder   string    `gorm:"column:holder;not null"`
	LockedAt time.Time `gorm:"column:locked_at;not null"`
}

func (lockRow) TableName() string { return "migration_locks" }

// rowLock claims the lock by inserting its row; the primary key makes the
// insert fail while another replica holds it.
type rowLock struct {
	db     *gorm.DB
	cfg    HAConfig
	logger *slog.Logger
}

func (l *rowLock) holder() string {
	if l.cfg.Identity == "" {
		return "unknown"
	}
	return l.cfg.Identity
}

func (l *rowLock) tryAcquire(ctx context.Context) error {
	db := l.db.WithContext(ctx)
	if l.cfg.MigrationLockStaleAfter > 0 {
		db.Where("name = ? AND locked_at < ?", l.cfg.MigrationLockName, time.Now().Add(-l.cfg.MigrationLockStaleAfter)).
			Delete(&lockRow{})
	}
	return db.Create(&lockRow{Name: l.cfg.MigrationLockName, Holder: l.holder(), LockedAt: time.Now()}).Error
}

func (l *rowLock) WithLock(ctx context.Context, fn func() error) error {
	poll := l.cfg.MigrationLockPoll
	if poll <= 0 {
		poll = time.Second
	}
	deadline := time.Now().Add(l.cfg.MigrationLockTimeout)

	for attempt := 1; ; attempt++ {
		err := l.tryAcquire(ctx)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if !time.Now().Before(deadline) {
			return fmt.Errorf("%w: %s after %d attempts: %v", ErrMigrationLockTimeout, l.cfg.MigrationLockName, attempt, err)
		}
		l.logger.Debug("migration lock busy", "name", l.cfg.MigrationLockName, "attempt", attempt)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(poll):
		}
	}

	defer l.db.WithContext(context.WithoutCancel(ctx)).
		Where("name = ? AND holder = ?", l.cfg.MigrationLockName, l.holder()).
		Delete(&lockRow{})
	return fn()
}
