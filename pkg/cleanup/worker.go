package cleanup

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/brandworks/portfolio-engine/pkg/assets"
)

// AssetDeleter is the part of the asset store the worker needs.
type AssetDeleter interface {
	Delete(ctx context.Context, ref assets.Ref) error
}

// ReferenceChecker reports whether a catalog item still shows an asset.
type ReferenceChecker interface {
	AssetReferenced(ctx context.Context, ref assets.Ref) (bool, error)
}

// WorkerPool processes queued cleanup jobs using a pool of goroutines.
type WorkerPool struct {
	store   *JobStore
	deleter AssetDeleter
	refs    ReferenceChecker
	cfg     *Config
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(store *JobStore, deleter AssetDeleter, cfg *Config, logger *slog.Logger) *WorkerPool {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	return &WorkerPool{
		store:   store,
		deleter: deleter,
		cfg:     cfg,
		logger:  logger,
	}
}

// WithReferenceChecker makes the pool skip assets that an item references
// again by the time their job is claimed.
func (wp *WorkerPool) WithReferenceChecker(refs ReferenceChecker) *WorkerPool {
	wp.refs = refs
	return wp
}

// Run starts cfg.Concurrency workers plus the maintenance loop. It blocks
// until ctx is cancelled, then waits for all workers to finish.
func (wp *WorkerPool) Run(ctx context.Context) {
	if wp.store == nil || wp.deleter == nil || !wp.cfg.Enabled {
		wp.logger.Info("asset cleanup worker pool disabled")
		return
	}

	wp.logger.Info("asset cleanup worker pool starting",
		"concurrency", wp.cfg.Concurrency,
		"maxRetries", wp.cfg.MaxRetries,
		"pollInterval", wp.cfg.PollInterval.String())

	wp.wg.Add(1)
	go func() {
		defer wp.wg.Done()
		wp.maintenanceLoop(ctx)
	}()

	for i := 0; i < wp.cfg.Concurrency; i++ {
		wp.wg.Add(1)
		go func(workerID int) {
			defer wp.wg.Done()
			wp.workerLoop(ctx, workerID)
		}(i)
	}

	<-ctx.Done()
	wp.logger.Info("asset cleanup worker pool shutting down, waiting for workers to finish")
	wp.wg.Wait()
	wp.logger.Info("asset cleanup worker pool stopped")
}

func (wp *WorkerPool) workerLoop(ctx context.Context, workerID int) {
	ticker := time.NewTicker(wp.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Drain the queue before waiting for the next tick.
			for ctx.Err() == nil && wp.ProcessOne(ctx, workerID) {
			}
		}
	}
}

// ProcessOne claims and processes a single job. It reports whether a job
// was claimed.
func (wp *WorkerPool) ProcessOne(ctx context.Context, workerID int) bool {
	job, err := wp.store.Claim(ctx, wp.cfg.MaxRetries)
	if err != nil {
		wp.logger.Error("failed to claim cleanup job", "workerID", workerID, "error", err)
		return false
	}
	if job == nil {
		return false
	}

	log := wp.logger.With("workerID", workerID, "jobID", job.ID, "assetRef", job.AssetRef, "attempt", job.AttemptCount)

	if wp.refs != nil {
		inUse, err := wp.refs.AssetReferenced(ctx, assets.Ref(job.AssetRef))
		if err != nil {
			log.Warn("asset reference check failed", "error", err)
			if failErr := wp.store.Fail(ctx, job.ID, "reference check: "+err.Error(), wp.cfg.MaxRetries); failErr != nil {
				log.Error("failed to mark cleanup job as failed", "error", failErr)
			}
			return true
		}
		if inUse {
			log.Info("asset is referenced by an item, not deleting", "itemID", job.ItemID)
			if err := wp.store.Abandon(ctx, job.ID, "asset is referenced by an item"); err != nil {
				log.Error("failed to cancel cleanup job", "error", err)
			}
			return true
		}
	}

	if err := wp.deleter.Delete(ctx, assets.Ref(job.AssetRef)); err != nil {
		log.Warn("asset cleanup attempt failed", "error", err)
		if failErr := wp.store.Fail(ctx, job.ID, err.Error(), wp.cfg.MaxRetries); failErr != nil {
			log.Error("failed to mark cleanup job as failed", "error", failErr)
		}
		return true
	}

	log.Info("leaked asset deleted", "itemID", job.ItemID)
	if err := wp.store.Complete(ctx, job.ID); err != nil {
		log.Error("failed to mark cleanup job as complete", "error", err)
	}
	return true
}

func (wp *WorkerPool) maintenanceLoop(ctx context.Context) {
	ticker := time.NewTicker(wp.cfg.MaintenanceInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			wp.maintain(ctx)
		}
	}
}

func (wp *WorkerPool) maintain(ctx context.Context) {
	if wp.cfg.ClaimTimeout > 0 {
		recovered, err := wp.store.CleanupStuckJobs(ctx, wp.cfg.ClaimTimeout)
		if err != nil {
			wp.logger.Error("failed to recover stuck cleanup jobs", "error", err)
		} else if recovered > 0 {
			wp.logger.Info("recovered stuck cleanup jobs", "count", recovered)
		}
	}

	if wp.cfg.RetentionDays > 0 {
		cutoff := time.Now().AddDate(0, 0, -wp.cfg.RetentionDays)
		deleted, err := wp.store.DeleteOlderThan(ctx, cutoff)
		if err != nil {
			wp.logger.Error("failed to delete old cleanup jobs", "error", err)
		} else if deleted > 0 {
			wp.logger.Info("deleted old cleanup jobs", "count", deleted)
		}
	}
}
