package portfolio

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/database"
	"github.com/brandworks/portfolio-engine/pkg/ha"
)

// setupPostgres starts a disposable postgres container. Set
// PORTFOLIO_INTEGRATION=1 to run these tests; they need a container runtime.
func setupPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	if os.Getenv("PORTFOLIO_INTEGRATION") == "" {
		t.Skip("set PORTFOLIO_INTEGRATION=1 to run postgres integration tests")
	}
	ctx := context.Background()

	ctr, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("portfolio"),
		tcpostgres.WithUsername("portfolio"),
		tcpostgres.WithPassword("portfolio"),
		tcpostgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Open(&database.Config{Type: database.TypePostgres, DSN: dsn, MaxOpenConns: 10})
	require.NoError(t, err)

	locker := ha.NewMigrationLocker(db, ha.DefaultHAConfig(), nil)
	require.NoError(t, locker.WithLock(ctx, func() error {
		return NewStores(db).AutoMigrate()
	}))
	return db
}

func TestPostgres_Constraints(t *testing.T) {
	db := setupPostgres(t)
	stores := NewStores(db)
	ctx := context.Background()

	itemID, err := stores.Catalog.Insert(ctx, ItemFields{Title: "Logo Pack", Stream: "branding", EligibleEmails: []string{"a@x.com"}})
	require.NoError(t, err)
	require.NoError(t, stores.Reviews.Insert(ctx, &ReviewRecord{ItemID: itemID, ReviewerID: "r1", Rating: 5}))

	err = stores.Reviews.Insert(ctx, &ReviewRecord{ItemID: itemID, ReviewerID: "r1", Rating: 4})
	assert.ErrorIs(t, err, ErrDuplicateReview)

	err = stores.Reviews.Insert(ctx, &ReviewRecord{ItemID: "00000000-0000-0000-0000-000000000000", ReviewerID: "r1", Rating: 4})
	assert.ErrorIs(t, err, ErrNotFound)

	err = stores.Reviews.Insert(ctx, &ReviewRecord{ItemID: itemID, ReviewerID: "r2", Rating: 0})
	assert.ErrorIs(t, err, ErrStorageFailure)

	require.NoError(t, db.Exec("DELETE FROM portfolio_items WHERE id = ?", itemID).Error)
	reviews, err := stores.Reviews.ListByItem(ctx, itemID)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestPostgres_ConcurrentReviewsSettleOnUniqueIndex(t *testing.T) {
	db := setupPostgres(t)
	svc := NewService(NewStores(db), Dependencies{}, nil)
	ctx := context.Background()

	id, err := svc.CreateItem(ctx, admin(), ItemFields{Title: "Logo Pack", Stream: "branding", EligibleEmails: []string{"a@x.com"}})
	require.NoError(t, err)

	const workers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		ok       int
		conflict int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.AddReview(ctx, customer("a@x.com"), id, 5, "")
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrAlreadyReviewed):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, workers-1, conflict)

	detail, err := svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Equal(t, 1, detail.ReviewCount)
}
