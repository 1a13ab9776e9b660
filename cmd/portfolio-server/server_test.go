package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandworks/portfolio-engine/pkg/audit"
	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/database"
)

func newTestApp(t *testing.T) *app {
	t.Helper()
	db, err := database.Open(&database.Config{
		Type: database.TypeSQLite,
		DSN:  fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()),
	})
	require.NoError(t, err)

	a, err := newApp(db, serverConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, a.migrate(context.Background()))
	return a
}

func serve(h http.Handler, method, path string, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var adminHeaders = map[string]string{
	authz.HeaderUser:  "u-admin",
	authz.HeaderGroup: authz.DefaultAdminGroup,
}

func TestServer_Health(t *testing.T) {
	h := newTestApp(t).routes()

	for _, path := range []string{"/livez", "/healthz", "/readyz"} {
		t.Run(path, func(t *testing.T) {
			rec := serve(h, http.MethodGet, path, nil, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	rec := serve(h, http.MethodGet, "/readyz", nil, nil)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
	assert.Len(t, body["streams"], 3)
}

func TestServer_UnknownEndpoint(t *testing.T) {
	h := newTestApp(t).routes()
	rec := serve(h, http.MethodGet, "/api/unknown", nil, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_EndToEnd(t *testing.T) {
	a := newTestApp(t)
	h := a.routes()

	rec := serve(h, http.MethodPost, "/api/portfolio/v1/admin/items",
		[]byte(`{"title":"Logo Pack","stream":"branding","eligibleEmails":["a@x.com"]}`), adminHeaders)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	itemID := created["id"]

	customer := map[string]string{authz.HeaderUser: "u-a", authz.HeaderEmail: "a@x.com"}
	rec = serve(h, http.MethodPost, "/api/portfolio/v1/items/"+itemID+"/reviews", []byte(`{"rating":4}`), customer)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// The gate rejects administrator reviews at the edge.
	rec = serve(h, http.MethodPost, "/api/portfolio/v1/items/"+itemID+"/reviews", []byte(`{"rating":4}`), adminHeaders)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, http.MethodGet, "/api/portfolio/v1/items?stream=branding", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"rating":4`)

	rec = serve(h, http.MethodGet, "/api/audit/v1/events", nil, customer)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = serve(h, http.MethodGet, "/api/audit/v1/events", nil, adminHeaders)
	require.Equal(t, http.StatusOK, rec.Code)

	records, _, total, err := a.auditStore.ListFiltered(context.Background(), audit.ListFilter{}, 100, "")
	require.NoError(t, err)
	assert.Positive(t, total)

	var denied int
	for _, r := range records {
		if r.Outcome == audit.OutcomeDenied {
			denied++
		}
	}
	assert.Positive(t, denied, "edge denials are audited")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("warn").String())
	assert.Equal(t, "INFO", parseLevel("nonsense").String())
}
