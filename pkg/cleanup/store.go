package cleanup

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brandworks/portfolio-engine/pkg/database"
)

// Errors returned by JobStore.
var (
	ErrJobNotFound      = errors.New("cleanup job not found")
	ErrNotCancelable    = errors.New("cleanup job is not queued")
	ErrInvalidPageToken = errors.New("invalid page token")
)

var activeStates = []JobState{JobStateQueued, JobStateRunning}
var terminalStates = []JobState{JobStateSucceeded, JobStateFailed, JobStateCanceled}

// JobStore provides database operations for cleanup jobs.
type JobStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewJobStore creates a new JobStore.
func NewJobStore(db *gorm.DB) *JobStore {
	return &JobStore{db: db, now: time.Now}
}

// AutoMigrate creates or updates the asset_cleanup_jobs table.
func (s *JobStore) AutoMigrate() error {
	return s.db.AutoMigrate(&AssetCleanupJob{})
}

// JobListFilter defines filters for listing jobs.
type JobListFilter struct {
	ItemID   string
	State    string
	AssetRef string
}

// Enqueue creates a new queued job. If a queued or running job with the
// same idempotency key exists, that job is returned instead. Safe for
// concurrent use.
func (s *JobStore) Enqueue(ctx context.Context, job *AssetCleanupJob) (*AssetCleanupJob, error) {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.State == "" {
		job.State = JobStateQueued
	}
	if job.RequestedAt.IsZero() {
		job.RequestedAt = s.now()
	}
	if job.IdempotencyKey == "" {
		job.IdempotencyKey = IdempotencyKeyFor(job.AssetRef)
	}
	db := s.db.WithContext(ctx)

	if existing, err := s.findActive(db, job.IdempotencyKey); err != nil || existing != nil {
		return existing, err
	}

	// Release the key held by terminal jobs so the unique index doesn't
	// block the new one.
	if err := db.Model(&AssetCleanupJob{}).
		Where("idempotency_key = ? AND state IN ?", job.IdempotencyKey, terminalStates).
		Update("idempotency_key", gorm.Expr("id")).Error; err != nil {
		return nil, fmt.Errorf("release idempotency key: %w", err)
	}

	if err := db.Create(job).Error; err != nil {
		if database.IsDuplicateKey(err) {
			// Lost a race with a concurrent enqueue for the same asset.
			if existing, lookupErr := s.findActive(db, job.IdempotencyKey); lookupErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("enqueue cleanup job: %w", err)
	}
	return job, nil
}

// EnqueueDelete queues deletion of assetRef, previously referenced by itemID.
func (s *JobStore) EnqueueDelete(ctx context.Context, assetRef, itemID, reason, requestedBy string) (*AssetCleanupJob, error) {
	if assetRef == "" {
		return nil, fmt.Errorf("asset reference is required")
	}
	return s.Enqueue(ctx, &AssetCleanupJob{
		AssetRef:    assetRef,
		ItemID:      itemID,
		Reason:      reason,
		RequestedBy: requestedBy,
	})
}

func (s *JobStore) findActive(db *gorm.DB, key string) (*AssetCleanupJob, error) {
	var existing AssetCleanupJob
	err := db.Where("idempotency_key = ? AND state IN ?", key, activeStates).First(&existing).Error
	if err == nil {
		return &existing, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return nil, fmt.Errorf("check idempotency key: %w", err)
}

// Claim atomically picks the oldest queued job and transitions it to
// running. Row locks with SKIP LOCKED are used on dialects that support
// them; SQLite serializes writers instead. Returns nil if no jobs are
// available.
func (s *JobStore) Claim(ctx context.Context, maxRetries int) (*AssetCleanupJob, error) {
	var job AssetCleanupJob
	claimed := false

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Where("state = ? AND attempt_count <= ?", JobStateQueued, maxRetries).
			Order("requested_at ASC").
			Limit(1)
		switch tx.Dialector.Name() {
		case database.TypePostgres, database.TypeMySQL:
			q = q.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}

		if err := q.Find(&job).Error; err != nil {
			return err
		}
		if job.ID == "" {
			return nil
		}

		now := s.now()
		result := tx.Model(&AssetCleanupJob{}).Where("id = ? AND state = ?", job.ID, JobStateQueued).
			Updates(map[string]any{
				"state":         JobStateRunning,
				"started_at":    now,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			})
		if result.Error != nil {
			return result.Error
		}
		claimed = result.RowsAffected == 1
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("claim cleanup job: %w", err)
	}
	if !claimed {
		return nil, nil
	}

	return s.Get(ctx, job.ID)
}

// Complete marks a job as succeeded.
func (s *JobStore) Complete(ctx context.Context, jobID string) error {
	result := s.db.WithContext(ctx).Model(&AssetCleanupJob{}).Where("id = ?", jobID).Updates(map[string]any{
		"state":       JobStateSucceeded,
		"finished_at": s.now(),
		"message":     "asset deleted",
	})
	if result.Error != nil {
		return fmt.Errorf("complete cleanup job: %w", result.Error)
	}
	return nil
}

// Fail records a failed attempt. Jobs within the retry budget are re-queued.
func (s *JobStore) Fail(ctx context.Context, jobID string, errMsg string, maxRetries int) error {
	db := s.db.WithContext(ctx)

	var job AssetCleanupJob
	if err := db.First(&job, "id = ?", jobID).Error; err != nil {
		return fmt.Errorf("load cleanup job for fail: %w", err)
	}

	updates := map[string]any{
		"last_error":  errMsg,
		"finished_at": s.now(),
	}
	if job.AttemptCount < maxRetries {
		updates["state"] = JobStateQueued
		updates["started_at"] = nil
		updates["finished_at"] = nil
	} else {
		updates["state"] = JobStateFailed
		updates["message"] = "max retries exceeded: " + errMsg
	}

	if err := db.Model(&AssetCleanupJob{}).Where("id = ?", jobID).Updates(updates).Error; err != nil {
		return fmt.Errorf("fail cleanup job: %w", err)
	}
	return nil
}

// Abandon cancels a claimed job without deleting its asset.
func (s *JobStore) Abandon(ctx context.Context, jobID, message string) error {
	result := s.db.WithContext(ctx).Model(&AssetCleanupJob{}).Where("id = ?", jobID).Updates(map[string]any{
		"state":       JobStateCanceled,
		"finished_at": s.now(),
		"message":     message,
	})
	if result.Error != nil {
		return fmt.Errorf("abandon cleanup job: %w", result.Error)
	}
	return nil
}

// Cancel marks a queued job as canceled.
func (s *JobStore) Cancel(ctx context.Context, jobID string) error {
	db := s.db.WithContext(ctx)
	result := db.Model(&AssetCleanupJob{}).
		Where("id = ? AND state = ?", jobID, JobStateQueued).
		Updates(map[string]any{
			"state":       JobStateCanceled,
			"finished_at": s.now(),
			"message":     "canceled by administrator",
		})
	if result.Error != nil {
		return fmt.Errorf("cancel cleanup job: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		job, err := s.Get(ctx, jobID)
		if err != nil {
			return err
		}
		return fmt.Errorf("%w: job %s is %s", ErrNotCancelable, jobID, job.State)
	}
	return nil
}

// Get retrieves a job by ID.
func (s *JobStore) Get(ctx context.Context, jobID string) (*AssetCleanupJob, error) {
	var job AssetCleanupJob
	if err := s.db.WithContext(ctx).First(&job, "id = ?", jobID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobNotFound, jobID)
		}
		return nil, fmt.Errorf("get cleanup job: %w", err)
	}
	return &job, nil
}

// List returns paginated jobs matching the given filter, newest first.
func (s *JobStore) List(ctx context.Context, filter JobListFilter, pageSize int, pageToken string) ([]AssetCleanupJob, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	db := s.db.WithContext(ctx)

	buildQuery := func(base *gorm.DB) *gorm.DB {
		q := base.Model(&AssetCleanupJob{})
		if filter.ItemID != "" {
			q = q.Where("item_id = ?", filter.ItemID)
		}
		if filter.State != "" {
			q = q.Where("state = ?", filter.State)
		}
		if filter.AssetRef != "" {
			q = q.Where("asset_ref = ?", filter.AssetRef)
		}
		return q
	}

	var totalSize int64
	if err := buildQuery(db).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count cleanup jobs: %w", err)
	}

	query := buildQuery(db).Order("requested_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
		}
		query = query.Where("requested_at < ?", t)
	}

	var records []AssetCleanupJob
	if err := query.Find(&records).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list cleanup jobs: %w", err)
	}

	var nextToken string
	if len(records) > pageSize {
		nextToken = records[pageSize-1].RequestedAt.Format(time.RFC3339Nano)
		records = records[:pageSize]
	}

	return records, nextToken, int(totalSize), nil
}

// CleanupStuckJobs re-queues running jobs whose claim is older than claimTimeout.
func (s *JobStore) CleanupStuckJobs(ctx context.Context, claimTimeout time.Duration) (int64, error) {
	cutoff := s.now().Add(-claimTimeout)
	result := s.db.WithContext(ctx).Model(&AssetCleanupJob{}).
		Where("state = ? AND started_at < ?", JobStateRunning, cutoff).
		Updates(map[string]any{
			"state":      JobStateQueued,
			"started_at": nil,
			"last_error": "timed out (stuck job recovery)",
		})
	if result.Error != nil {
		return 0, fmt.Errorf("cleanup stuck jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteOlderThan removes terminal jobs finished before cutoff.
func (s *JobStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("state IN ? AND finished_at < ?", terminalStates, cutoff).
		Delete(&AssetCleanupJob{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old cleanup jobs: %w", result.Error)
	}
	return result.RowsAffected, nil
}
