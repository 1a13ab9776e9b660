// Package cleanup retries asset deletions that failed after a successful
// catalog operation. Jobs are durable rows claimed by a worker pool, so a
// leaked asset is eventually removed without blocking the user-visible
// operation that leaked it.
package cleanup

import (
	"time"
)

// JobState represents the lifecycle state of a cleanup job.
type JobState string

const (
	JobStateQueued    JobState = "queued"
	JobStateRunning   JobState = "running"
	JobStateSucceeded JobState = "succeeded"
	JobStateFailed    JobState = "failed"
	JobStateCanceled  JobState = "canceled"
)

// AssetCleanupJob is the GORM model for a pending asset deletion.
type AssetCleanupJob struct {
	ID             string     `gorm:"primaryKey;column:id;type:varchar(36)"`
	AssetRef       string     `gorm:"column:asset_ref;not null"`
	ItemID         string     `gorm:"column:item_id;index:idx_cleanup_item"`
	Reason         string     `gorm:"column:reason"`
	RequestedBy    string     `gorm:"column:requested_by;not null"`
	RequestedAt    time.Time  `gorm:"column:requested_at;not null"`
	State          JobState   `gorm:"column:state;index:idx_cleanup_state;not null;default:queued"`
	Message        string     `gorm:"column:message"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	FinishedAt     *time.Time `gorm:"column:finished_at"`
	AttemptCount   int        `gorm:"column:attempt_count;default:0"`
	LastError      string     `gorm:"column:last_error"`
	IdempotencyKey string     `gorm:"column:idempotency_key;uniqueIndex:idx_cleanup_idemp_key"`
}

// TableName returns the GORM table name.
func (AssetCleanupJob) TableName() string { return "asset_cleanup_jobs" }

func (s JobState) valid() bool {
	switch s {
	case JobStateQueued, JobStateRunning, JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// IsTerminal returns true if the job is in a terminal state.
func (j *AssetCleanupJob) IsTerminal() bool {
	switch j.State {
	case JobStateSucceeded, JobStateFailed, JobStateCanceled:
		return true
	}
	return false
}

// IdempotencyKeyFor returns the key that deduplicates jobs for one asset.
func IdempotencyKeyFor(assetRef string) string {
	return "asset:" + assetRef
}
