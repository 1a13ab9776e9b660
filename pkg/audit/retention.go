package audit

import (
	"context"
	"log/slog"
	"time"
)

// RetentionWorker prunes events older than the configured horizon. It sweeps
// once on start and then every SweepInterval.
type RetentionWorker struct {
	store  *Store
	cfg    AuditConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewRetentionWorker(store *Store, cfg *AuditConfig, logger *slog.Logger) *RetentionWorker {
	if cfg == nil {
		cfg = DefaultAuditConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := *cfg
	if c.SweepInterval <= 0 {
		c.SweepInterval = 24 * time.Hour
	}
	return &RetentionWorker{store: store, cfg: c, now: time.Now, logger: logger}
}

// Run blocks until ctx is done. It returns at once when there is nothing to
// prune.
func (w *RetentionWorker) Run(ctx context.Context) {
	if w.store == nil || w.cfg.RetentionDays <= 0 {
		w.logger.Info("audit retention disabled", "retentionDays", w.cfg.RetentionDays)
		return
	}
	w.logger.Info("audit retention started", "retentionDays", w.cfg.RetentionDays, "interval", w.cfg.SweepInterval)

	ticker := time.NewTicker(w.cfg.SweepInterval)
	defer ticker.Stop()
	for {
		w.sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// cutoff is the oldest creation time that survives a sweep.
func (w *RetentionWorker) cutoff() time.Time {
	return w.now().AddDate(0, 0, -w.cfg.RetentionDays)
}

func (w *RetentionWorker) sweep(ctx context.Context) int64 {
	cutoff := w.cutoff()
	n, err := w.store.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		w.logger.Error("audit retention sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		w.logger.Info("pruned audit events", "count", n, "before", cutoff.Format(time.RFC3339))
	}
	return n
}
