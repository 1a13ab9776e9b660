package cleanup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanupRouter(t *testing.T) {
	store := NewJobStore(setupTestDB(t))
	job, err := store.EnqueueDelete(context.Background(), "a.png", "i1", "delete-item", "admin")
	require.NoError(t, err)

	srv := httptest.NewServer(Router(store))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/?itemId=i1")
	require.NoError(t, err)
	var list struct {
		Jobs      []jobResponse `json:"jobs"`
		TotalSize int           `json:"totalSize"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&list))
	resp.Body.Close()
	assert.Equal(t, 1, list.TotalSize)
	require.Len(t, list.Jobs, 1)
	assert.Equal(t, "a.png", list.Jobs[0].AssetRef)

	resp, err = http.Get(srv.URL + "/" + job.ID)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/"+job.ID+":cancel", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp.Body.Close()

	resp, err = http.Post(srv.URL+"/"+job.ID+":cancel", "application/json", nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestCleanupRouter_RejectsBadQueries(t *testing.T) {
	srv := httptest.NewServer(Router(NewJobStore(setupTestDB(t))))
	defer srv.Close()

	for _, query := range []string{"state=exploded", "pageSize=-1", "pageSize=x", "pageToken=yesterday"} {
		t.Run(query, func(t *testing.T) {
			resp, err := http.Get(srv.URL + "/?" + query)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		})
	}
}

func TestParseListQuery(t *testing.T) {
	q := url.Values{"state": {"queued"}, "itemId": {"i1"}, "pageSize": {"500"}}
	filter, size, err := parseListQuery(q)
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, size)
	assert.Equal(t, JobListFilter{ItemID: "i1", State: "queued"}, filter)
}
