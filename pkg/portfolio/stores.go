package portfolio

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Stores groups the catalog and review stores over one connection.
type Stores struct {
	db      *gorm.DB
	Catalog *CatalogStore
	Reviews *ReviewStore
}

// NewStores creates the stores over db.
func NewStores(db *gorm.DB) *Stores {
	return &Stores{
		db:      db,
		Catalog: NewCatalogStore(db),
		Reviews: NewReviewStore(db),
	}
}

// AutoMigrate creates or updates the portfolio tables. Items are migrated
// first so the review foreign key can reference them.
func (s *Stores) AutoMigrate() error {
	if err := s.db.AutoMigrate(&ItemRecord{}); err != nil {
		return fmt.Errorf("auto-migrate portfolio_items: %w", err)
	}
	if err := s.db.AutoMigrate(&ReviewRecord{}); err != nil {
		return fmt.Errorf("auto-migrate portfolio_reviews: %w", err)
	}
	return nil
}

// InTx runs fn with stores bound to a single transaction. Only the stores
// passed to fn may be used inside it.
func (s *Stores) InTx(ctx context.Context, fn func(tx *Stores) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Stores{
			db:      tx,
			Catalog: &CatalogStore{db: tx, now: s.Catalog.now},
			Reviews: &ReviewStore{db: tx, now: s.Reviews.now},
		})
	})
}
