package portfolio

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/brandworks/portfolio-engine/pkg/assets"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
)

func TestReplaceImage_MemoryStore(t *testing.T) {
	e := newTestEnv(t, nil)
	mem := e.assets.(*assets.MemoryStore)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")

	var firstURL string

	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{
			name: "upload publishes the item",
			fn: func(t *testing.T) {
				result, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes, FileName: "logo.png"})
				require.NoError(t, err)
				assert.Equal(t, StatePublished, result.State)
				assert.False(t, result.Cleanup.Attempted)
				assert.Equal(t, 1, mem.Len())

				ref, ok := mem.RefFromURL(result.Image)
				require.True(t, ok)
				assert.Contains(t, string(ref), "portfolio/"+id+"/")
				_, contentType, found := mem.Get(ref)
				require.True(t, found)
				assert.Equal(t, "image/png", contentType)
				firstURL = result.Image
			},
		},
		{
			name: "replacement deletes the previous asset",
			fn: func(t *testing.T) {
				result, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
				require.NoError(t, err)
				assert.NotEqual(t, firstURL, result.Image)
				assert.True(t, result.Cleanup.Attempted)
				assert.False(t, result.Cleanup.Failed)
				assert.Equal(t, 1, mem.Len())

				detail, err := e.svc.GetItem(ctx, admin(), id)
				require.NoError(t, err)
				assert.Equal(t, result.Image, detail.Image)
			},
		},
		{
			name: "pre-uploaded asset by url",
			fn: func(t *testing.T) {
				ref, err := mem.Put(ctx, "portfolio/"+id, pngBytes, "image/png")
				require.NoError(t, err)

				result, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{URL: mem.URL(ref)})
				require.NoError(t, err)
				assert.Equal(t, mem.URL(ref), result.Image)
				assert.Equal(t, 1, mem.Len())
			},
		},
		{
			name: "url outside the asset store is rejected",
			fn: func(t *testing.T) {
				_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{URL: "https://elsewhere.example/a.png"})
				assert.ErrorIs(t, err, ErrInvalidArgument)
			},
		},
		{
			name: "url of a missing asset is rejected",
			fn: func(t *testing.T) {
				_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{URL: mem.URL(assets.Ref("portfolio/" + id + "/gone.png"))})
				assert.ErrorIs(t, err, ErrInvalidArgument)
			},
		},
		{
			name: "non-image content is rejected",
			fn: func(t *testing.T) {
				_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: []byte("hello"), ContentType: "text/plain"})
				assert.ErrorIs(t, err, ErrInvalidArgument)
				assert.Equal(t, 1, mem.Len())
			},
		},
		{
			name: "customer cannot replace images",
			fn: func(t *testing.T) {
				_, err := e.svc.ReplaceImage(ctx, customer("a@x.com"), id, NewAsset{Data: pngBytes})
				assert.ErrorIs(t, err, ErrUnauthorized)
			},
		},
		{
			name: "remove image returns the item to draft",
			fn: func(t *testing.T) {
				result, err := e.svc.RemoveImage(ctx, admin(), id)
				require.NoError(t, err)
				assert.True(t, result.Attempted)
				assert.False(t, result.Failed)
				assert.Zero(t, mem.Len())

				detail, err := e.svc.GetItem(ctx, admin(), id)
				require.NoError(t, err)
				assert.Equal(t, StateDraft, detail.State)
				assert.Empty(t, detail.Image)
			},
		},
		{
			name: "remove image on a draft is a no-op",
			fn: func(t *testing.T) {
				result, err := e.svc.RemoveImage(ctx, admin(), id)
				require.NoError(t, err)
				assert.False(t, result.Attempted)
			},
		},
		{
			name: "delete item removes its asset",
			fn: func(t *testing.T) {
				_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
				require.NoError(t, err)
				require.Equal(t, 1, mem.Len())

				result, err := e.svc.DeleteItem(ctx, admin(), id)
				require.NoError(t, err)
				assert.True(t, result.Attempted)
				assert.Zero(t, mem.Len())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func TestReplaceImage_SizeLimit(t *testing.T) {
	e := newTestEnv(t, nil)
	id := e.createItem(t, "Logo Pack")
	svc := NewService(e.stores, Dependencies{Assets: e.assets, MaxImageBytes: 4}, nil)

	_, err := svc.ReplaceImage(context.Background(), admin(), id, NewAsset{Data: pngBytes})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.ErrorIs(t, err, assets.ErrTooLarge)
}

// callLog records the order of asset store calls.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (c *callLog) record(name string) func(mock.Arguments) {
	return func(mock.Arguments) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls = append(c.calls, name)
	}
}

func (c *callLog) get() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

// seedImage points the item at an asset without touching the asset store.
func seedImage(t *testing.T, e *testEnv, id string) assets.Ref {
	t.Helper()
	ref := assets.Ref("portfolio/" + id + "/old.png")
	ok, err := e.stores.Catalog.SetImage(context.Background(), id, "", mockBaseURL+string(ref))
	require.NoError(t, err)
	require.True(t, ok)
	return ref
}

func queuedJobs(t *testing.T, e *testEnv, itemID string) []cleanup.AssetCleanupJob {
	t.Helper()
	jobs, _, _, err := e.jobs.List(context.Background(), cleanup.JobListFilter{ItemID: itemID}, 10, "")
	require.NoError(t, err)
	return jobs
}

func TestReplaceImage_DeletesOldAssetBeforeUpload(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)
	newRef := assets.Ref("portfolio/" + id + "/new.png")

	log := &callLog{}
	m.On("Delete", oldRef).Return(errors.New("bucket unavailable")).Run(log.record("delete"))
	m.On("Put", "portfolio/"+id, "image/png").Return(newRef, nil).Run(log.record("put"))

	result, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
	require.NoError(t, err)

	assert.Equal(t, []string{"delete", "put"}, log.get())
	assert.Equal(t, mockBaseURL+string(newRef), result.Image)
	assert.True(t, result.Cleanup.Attempted)
	assert.True(t, result.Cleanup.Failed)
	assert.Contains(t, result.Cleanup.Error, "bucket unavailable")
	assert.True(t, result.Cleanup.RetryQueued)

	jobs := queuedJobs(t, e, id)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(oldRef), jobs[0].AssetRef)
	assert.Equal(t, result.Cleanup.RetryJobID, jobs[0].ID)
	assert.Equal(t, cleanup.JobStateQueued, jobs[0].State)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Equal(t, mockBaseURL+string(newRef), detail.Image)
	m.AssertExpectations(t)
}

func TestReplaceImage_UploadFailureAfterDeleteClearsImage(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)

	m.On("Delete", oldRef).Return(nil)
	m.On("Put", "portfolio/"+id, "image/png").Return(assets.Ref(""), errors.New("upload failed"))

	_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStorageFailure)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Empty(t, detail.Image, "image must not point at a deleted asset")
	assert.Equal(t, StateDraft, detail.State)
	assert.Empty(t, queuedJobs(t, e, id))
	assert.Contains(t, e.auditActions(t), "replace-image:failure")
}

func TestReplaceImage_UploadFailureKeepsUndeletedImage(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)

	m.On("Delete", oldRef).Return(errors.New("bucket unavailable"))
	m.On("Put", "portfolio/"+id, "image/png").Return(assets.Ref(""), errors.New("upload failed"))

	_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
	assert.ErrorIs(t, err, ErrStorageFailure)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Equal(t, mockBaseURL+string(oldRef), detail.Image)
	assert.Equal(t, StatePublished, detail.State)
}

func TestReplaceImage_MissingItemSkipsAssetStore(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)

	_, err := e.svc.ReplaceImage(context.Background(), admin(), "missing", NewAsset{Data: pngBytes})
	assert.ErrorIs(t, err, ErrNotFound)
	m.AssertNotCalled(t, "Put", mock.Anything, mock.Anything)
	m.AssertNotCalled(t, "Delete", mock.Anything)
}

func TestRemoveImage_AssetDeleteFailureQueuesRetry(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)

	m.On("Delete", oldRef).Return(errors.New("bucket unavailable"))

	result, err := e.svc.RemoveImage(ctx, admin(), id)
	require.NoError(t, err)
	assert.True(t, result.Failed)
	assert.True(t, result.RetryQueued)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Empty(t, detail.Image)
	assert.Equal(t, StateDraft, detail.State)

	jobs := queuedJobs(t, e, id)
	require.Len(t, jobs, 1)
	assert.Equal(t, "remove-image", jobs[0].Reason)
	assert.Equal(t, admin().Actor(), jobs[0].RequestedBy)
}

func TestDeleteItem_AssetDeleteFailureStillDeletes(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack", "a@x.com")
	oldRef := seedImage(t, e, id)

	_, err := e.svc.AddReview(ctx, customer("a@x.com"), id, 5, "")
	require.NoError(t, err)

	m.On("Delete", oldRef).Return(errors.New("bucket unavailable"))

	result, err := e.svc.DeleteItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.True(t, result.Attempted)
	assert.True(t, result.Failed)
	assert.True(t, result.RetryQueued)

	_, err = e.svc.GetItem(ctx, admin(), id)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, reviewCount(t, e, id))

	jobs := queuedJobs(t, e, id)
	require.Len(t, jobs, 1)
	assert.Equal(t, string(oldRef), jobs[0].AssetRef)
}

func TestCleanupWorkerRetriesQueuedDeletion(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)

	m.On("Delete", oldRef).Return(errors.New("bucket unavailable")).Once()
	result, err := e.svc.RemoveImage(ctx, admin(), id)
	require.NoError(t, err)
	require.True(t, result.RetryQueued)

	m.On("Delete", oldRef).Return(nil).Once()
	pool := cleanup.NewWorkerPool(e.jobs, m, cleanup.DefaultConfig(), nil).WithReferenceChecker(e.svc)
	assert.True(t, pool.ProcessOne(ctx, 0))

	job, err := e.jobs.Get(ctx, result.RetryJobID)
	require.NoError(t, err)
	assert.Equal(t, cleanup.JobStateSucceeded, job.State)
	m.AssertExpectations(t)
}

func TestCleanupWorkerKeepsReattachedAsset(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)
	oldURL := mockBaseURL + string(oldRef)

	m.On("Delete", oldRef).Return(errors.New("bucket unavailable")).Once()
	result, err := e.svc.RemoveImage(ctx, admin(), id)
	require.NoError(t, err)
	require.True(t, result.RetryQueued)

	// The object survived, so an administrator puts it back.
	m.On("Exists", oldRef).Return(true, nil)
	require.NoError(t, e.svc.UpdateItem(ctx, admin(), id, ItemPatch{Image: &oldURL}))

	pool := cleanup.NewWorkerPool(e.jobs, m, cleanup.DefaultConfig(), nil).WithReferenceChecker(e.svc)
	assert.True(t, pool.ProcessOne(ctx, 0))

	job, err := e.jobs.Get(ctx, result.RetryJobID)
	require.NoError(t, err)
	assert.Equal(t, cleanup.JobStateCanceled, job.State)
	m.AssertNumberOfCalls(t, "Delete", 1)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Equal(t, oldURL, detail.Image)
}

func TestImageFromAnotherItemIsRejected(t *testing.T) {
	e := newTestEnv(t, nil)
	mem := e.assets.(*assets.MemoryStore)
	ctx := context.Background()
	first := e.createItem(t, "Logo Pack")
	second := e.createItem(t, "Type Specimen")

	uploaded, err := e.svc.ReplaceImage(ctx, admin(), first, NewAsset{Data: pngBytes})
	require.NoError(t, err)

	_, err = e.svc.ReplaceImage(ctx, admin(), second, NewAsset{URL: uploaded.Image})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	img := uploaded.Image
	assert.ErrorIs(t, e.svc.UpdateItem(ctx, admin(), second, ItemPatch{Image: &img}), ErrInvalidArgument)

	detail, err := e.svc.GetItem(ctx, admin(), second)
	require.NoError(t, err)
	assert.Empty(t, detail.Image)

	_, err = e.svc.DeleteItem(ctx, admin(), first)
	require.NoError(t, err)
	assert.Zero(t, mem.Len())
}

func TestSharedImageOutlivesOneItem(t *testing.T) {
	e := newTestEnv(t, nil)
	mem := e.assets.(*assets.MemoryStore)
	ctx := context.Background()
	first := e.createItem(t, "Logo Pack")
	second := e.createItem(t, "Type Specimen")
	third := e.createItem(t, "Brand Book")

	ref, err := mem.Put(ctx, "portfolio/"+first, pngBytes, "image/png")
	require.NoError(t, err)
	shared := mem.URL(ref)
	// Rows written before images were bound to their item's namespace.
	for _, id := range []string{first, second, third} {
		ok, err := e.stores.Catalog.SetImage(ctx, id, "", shared)
		require.NoError(t, err)
		require.True(t, ok)
	}

	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{
			name: "delete keeps an asset another item shows",
			fn: func(t *testing.T) {
				result, err := e.svc.DeleteItem(ctx, admin(), first)
				require.NoError(t, err)
				assert.False(t, result.Attempted)
				_, _, found := mem.Get(ref)
				assert.True(t, found)
			},
		},
		{
			name: "replace keeps an asset another item shows",
			fn: func(t *testing.T) {
				result, err := e.svc.ReplaceImage(ctx, admin(), second, NewAsset{Data: pngBytes})
				require.NoError(t, err)
				assert.False(t, result.Cleanup.Attempted)
				_, _, found := mem.Get(ref)
				assert.True(t, found)
			},
		},
		{
			name: "last reference releases the asset",
			fn: func(t *testing.T) {
				result, err := e.svc.RemoveImage(ctx, admin(), third)
				require.NoError(t, err)
				assert.True(t, result.Attempted)
				_, _, found := mem.Get(ref)
				assert.False(t, found)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func TestReplaceImage_SwapFailureAfterDeleteClearsImage(t *testing.T) {
	m := &mockAssets{}
	e := newTestEnv(t, m)
	ctx := context.Background()
	id := e.createItem(t, "Logo Pack")
	oldRef := seedImage(t, e, id)
	newRef := assets.Ref("portfolio/" + id + "/new.png")

	m.On("Delete", oldRef).Return(nil)
	m.On("Put", "portfolio/"+id, "image/png").Return(newRef, nil)
	m.On("Delete", newRef).Return(nil)

	// Fail the first UPDATE, which is the image swap.
	failed := false
	require.NoError(t, e.db.Callback().Update().Before("gorm:update").Register("test:fail_image_swap", func(tx *gorm.DB) {
		if !failed {
			failed = true
			_ = tx.AddError(errConnReset)
		}
	}))

	_, err := e.svc.ReplaceImage(ctx, admin(), id, NewAsset{Data: pngBytes})
	assert.ErrorIs(t, err, ErrStorageFailure)

	detail, err := e.svc.GetItem(ctx, admin(), id)
	require.NoError(t, err)
	assert.Empty(t, detail.Image, "image must not point at a deleted asset")
	assert.Equal(t, StateDraft, detail.State)
	m.AssertExpectations(t)
}
