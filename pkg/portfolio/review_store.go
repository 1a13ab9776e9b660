package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/database"
)

// ReviewStore persists reviews. One review per (item, reviewer) is
// enforced by a unique index.
type ReviewStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewReviewStore creates a new ReviewStore.
func NewReviewStore(db *gorm.DB) *ReviewStore {
	return &ReviewStore{db: db, now: time.Now}
}

// Get returns a single review.
func (s *ReviewStore) Get(ctx context.Context, id string) (*ReviewRecord, error) {
	var rec ReviewRecord
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("review %s: %w", id, ErrNotFound)
		}
		return nil, storageFailure("get review", err)
	}
	return &rec, nil
}

// ListByItem returns an item's reviews, oldest first.
func (s *ReviewStore) ListByItem(ctx context.Context, itemID string) ([]ReviewRecord, error) {
	var records []ReviewRecord
	err := s.db.WithContext(ctx).
		Where("item_id = ?", itemID).
		Order("created_at ASC").Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, storageFailure("list reviews", err)
	}
	return records, nil
}

// ListAllWithContext returns every review joined with its item, newest first.
func (s *ReviewStore) ListAllWithContext(ctx context.Context) ([]ReviewWithContext, error) {
	var rows []ReviewWithContext
	err := s.db.WithContext(ctx).
		Table("portfolio_reviews AS r").
		Select("r.*, i.title AS item_title, i.stream AS item_stream").
		Joins("JOIN portfolio_items AS i ON i.id = r.item_id").
		Order("r.created_at DESC").Order("r.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, storageFailure("list reviews with context", err)
	}
	return rows, nil
}

// Insert creates a review. A second review by the same reviewer on the same
// item fails with ErrDuplicateReview; a missing item fails with ErrNotFound.
func (s *ReviewStore) Insert(ctx context.Context, rec *ReviewRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}
	err := s.db.WithContext(ctx).Omit("Item").Create(rec).Error
	switch {
	case err == nil:
		return nil
	case database.IsDuplicateKey(err):
		return fmt.Errorf("item %s reviewer %s: %w", rec.ItemID, rec.ReviewerID, ErrDuplicateReview)
	case database.IsForeignKeyViolation(err):
		return fmt.Errorf("item %s: %w", rec.ItemID, ErrNotFound)
	default:
		return storageFailure("insert review", err)
	}
}

// Delete removes a review.
func (s *ReviewStore) Delete(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Where("id = ?", id).Delete(&ReviewRecord{})
	if result.Error != nil {
		return storageFailure("delete review", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("review %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExistsForReviewer reports whether reviewerID already reviewed itemID.
func (s *ReviewStore) ExistsForReviewer(ctx context.Context, itemID, reviewerID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ReviewRecord{}).
		Where("item_id = ? AND reviewer_id = ?", itemID, reviewerID).
		Count(&count).Error
	if err != nil {
		return false, storageFailure("check existing review", err)
	}
	return count > 0, nil
}

// ExistsForEmail reports whether a reviewer with the given email already
// reviewed itemID. The comparison ignores case.
func (s *ReviewStore) ExistsForEmail(ctx context.Context, itemID, email string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&ReviewRecord{}).
		Where("item_id = ? AND LOWER(reviewer_email) = ?", itemID, authz.NormalizeEmail(email)).
		Count(&count).Error
	if err != nil {
		return false, storageFailure("check existing review", err)
	}
	return count > 0, nil
}

// Ratings aggregates the reviews of the given items in one query. Items
// without reviews are absent from the result.
func (s *ReviewStore) Ratings(ctx context.Context, itemIDs []string) (map[string]Rating, error) {
	out := make(map[string]Rating, len(itemIDs))
	if len(itemIDs) == 0 {
		return out, nil
	}
	var rows []struct {
		ItemID      string
		Total       int
		ReviewCount int
	}
	err := s.db.WithContext(ctx).Model(&ReviewRecord{}).
		Select("item_id, SUM(rating) AS total, COUNT(*) AS review_count").
		Where("item_id IN ?", itemIDs).
		Group("item_id").
		Scan(&rows).Error
	if err != nil {
		return nil, storageFailure("aggregate ratings", err)
	}
	for _, r := range rows {
		out[r.ItemID] = NewRating(r.Total, r.ReviewCount)
	}
	return out, nil
}
