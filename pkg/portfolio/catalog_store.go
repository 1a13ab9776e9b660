package portfolio

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/database"
)

// CatalogStore persists portfolio items.
type CatalogStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewCatalogStore creates a new CatalogStore.
func NewCatalogStore(db *gorm.DB) *CatalogStore {
	return &CatalogStore{db: db, now: time.Now}
}

// Get returns the item with the given id.
func (s *CatalogStore) Get(ctx context.Context, id string) (*ItemRecord, error) {
	return getItem(s.db.WithContext(ctx), id)
}

func getItem(db *gorm.DB, id string) (*ItemRecord, error) {
	var rec ItemRecord
	if err := db.Where("id = ?", id).First(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return nil, storageFailure("get item", err)
	}
	return &rec, nil
}

// ListByStream returns the items of a stream, most recently created first.
func (s *CatalogStore) ListByStream(ctx context.Context, stream string) ([]ItemRecord, error) {
	var records []ItemRecord
	err := s.db.WithContext(ctx).
		Where("stream = ?", stream).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, storageFailure("list items by stream", err)
	}
	return records, nil
}

// ListAll returns every item, most recently created first.
func (s *CatalogStore) ListAll(ctx context.Context) ([]ItemRecord, error) {
	var records []ItemRecord
	err := s.db.WithContext(ctx).
		Order("created_at DESC").Order("id DESC").
		Find(&records).Error
	if err != nil {
		return nil, storageFailure("list items", err)
	}
	return records, nil
}

// Insert creates an item with an empty image and returns its id.
func (s *CatalogStore) Insert(ctx context.Context, fields ItemFields) (string, error) {
	now := s.now().UTC()
	emails := database.StringList(fields.EligibleEmails)
	if emails == nil {
		emails = database.StringList{}
	}
	rec := &ItemRecord{
		ID:               uuid.NewString(),
		Title:            fields.Title,
		Category:         fields.Category,
		Stream:           fields.Stream,
		ShortDescription: fields.ShortDescription,
		LongDescription:  fields.LongDescription,
		ServiceType:      fields.ServiceType,
		EligibleEmails:   emails,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return "", storageFailure("insert item", err)
	}
	return rec.ID, nil
}

// Update applies patch to the item. It fails with ErrNotFound if the item
// does not exist.
func (s *CatalogStore) Update(ctx context.Context, id string, patch ItemPatch) error {
	cols := patch.columns()
	cols["updated_at"] = s.now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := getItem(tx, id); err != nil {
			return err
		}
		if err := tx.Model(&ItemRecord{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return storageFailure("update item", err)
		}
		return nil
	})
}

// SetImage replaces the image column only if it still holds expected. It
// returns false when the item is gone or its image changed concurrently.
func (s *CatalogStore) SetImage(ctx context.Context, id, expected, image string) (bool, error) {
	result := s.db.WithContext(ctx).Model(&ItemRecord{}).
		Where("id = ? AND image = ?", id, expected).
		Updates(map[string]any{"image": image, "updated_at": s.now().UTC()})
	if result.Error != nil {
		return false, storageFailure("set item image", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// ImageReferenced reports whether any item other than exceptID has image
// as its image. An empty exceptID checks every item.
func (s *CatalogStore) ImageReferenced(ctx context.Context, image, exceptID string) (bool, error) {
	var count int64
	q := s.db.WithContext(ctx).Model(&ItemRecord{}).Where("image = ?", image)
	if exceptID != "" {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, storageFailure("check image references", err)
	}
	return count > 0, nil
}

// Delete removes the item and its reviews in one transaction. The foreign
// key cascade covers the same rows; deleting them explicitly keeps the
// result independent of the dialect's constraint support.
func (s *CatalogStore) Delete(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("item_id = ?", id).Delete(&ReviewRecord{}).Error; err != nil {
			return storageFailure("delete item reviews", err)
		}
		result := tx.Where("id = ?", id).Delete(&ItemRecord{})
		if result.Error != nil {
			return storageFailure("delete item", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("item %s: %w", id, ErrNotFound)
		}
		return nil
	})
}
