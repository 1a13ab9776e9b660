package portfolio

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/assets"
	"github.com/brandworks/portfolio-engine/pkg/audit"
	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/cache"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
	"github.com/brandworks/portfolio-engine/pkg/database"
)

// pngBytes is the smallest prefix http.DetectContentType reports as image/png.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&database.Config{
		Type: database.TypeSQLite,
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
	require.NoError(t, err)
	return db
}

type testEnv struct {
	db         *gorm.DB
	stores     *Stores
	svc        *Service
	assets     assets.Store
	jobs       *cleanup.JobStore
	auditStore *audit.Store
	intents    *cache.Recorder
}

func newTestEnv(t *testing.T, store assets.Store) *testEnv {
	t.Helper()
	db := setupTestDB(t)

	stores := NewStores(db)
	require.NoError(t, stores.AutoMigrate())
	jobs := cleanup.NewJobStore(db)
	require.NoError(t, jobs.AutoMigrate())
	auditStore := audit.NewStore(db)
	require.NoError(t, auditStore.AutoMigrate())

	if store == nil {
		store = assets.NewMemoryStore("")
	}
	intents := &cache.Recorder{}

	svc := NewService(stores, Dependencies{
		Assets:      store,
		Cleanup:     jobs,
		Audit:       audit.NewStoreRecorder(auditStore, nil),
		Invalidator: intents,
	}, nil)

	return &testEnv{
		db:         db,
		stores:     stores,
		svc:        svc,
		assets:     store,
		jobs:       jobs,
		auditStore: auditStore,
		intents:    intents,
	}
}

func admin() authz.CallerContext {
	return authz.AsPrincipal(authz.Principal{ID: "u-admin", Email: "boss@studio.com", DisplayName: "Boss", IsAdmin: true})
}

func customer(email string) authz.CallerContext {
	return authz.AsPrincipal(authz.Principal{ID: "u-" + strings.ToLower(email), Email: email, DisplayName: "Customer " + email})
}

// createItem creates a branding item eligible for the given emails.
func (e *testEnv) createItem(t *testing.T, title string, emails ...string) string {
	t.Helper()
	id, err := e.svc.CreateItem(context.Background(), admin(), ItemFields{
		Title:          title,
		Stream:         "branding",
		EligibleEmails: emails,
	})
	require.NoError(t, err)
	return id
}

// auditActions returns the recorded actions with their outcomes.
func (e *testEnv) auditActions(t *testing.T) []string {
	t.Helper()
	records, _, _, err := e.auditStore.ListFiltered(context.Background(), audit.ListFilter{}, 100, "")
	require.NoError(t, err)
	out := make([]string, len(records))
	for i, r := range records {
		out[len(records)-1-i] = r.Action + ":" + r.Outcome
	}
	return out
}

// mockAssets is a testify mock of assets.Store. URLs are
// https://cdn.test/<ref>.
type mockAssets struct {
	mock.Mock
}

const mockBaseURL = "https://cdn.test/"

func (m *mockAssets) Put(ctx context.Context, namespace string, data []byte, contentType string) (assets.Ref, error) {
	args := m.Called(namespace, contentType)
	return args.Get(0).(assets.Ref), args.Error(1)
}

func (m *mockAssets) Delete(ctx context.Context, ref assets.Ref) error {
	return m.Called(ref).Error(0)
}

func (m *mockAssets) Exists(ctx context.Context, ref assets.Ref) (bool, error) {
	args := m.Called(ref)
	return args.Bool(0), args.Error(1)
}

func (m *mockAssets) URL(ref assets.Ref) string {
	return mockBaseURL + string(ref)
}

func (m *mockAssets) RefFromURL(u string) (assets.Ref, bool) {
	if !strings.HasPrefix(u, mockBaseURL) {
		return "", false
	}
	return assets.Ref(strings.TrimPrefix(u, mockBaseURL)), true
}
