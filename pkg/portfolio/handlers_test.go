package portfolio

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandworks/portfolio-engine/pkg/authz"
)

const apiPrefix = "/api/portfolio/v1"

func newTestServer(e *testEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(authz.IdentityMiddleware(authz.HeaderResolver{}, nil))
	r.Mount(apiPrefix, Router(e.svc, authz.NewGate(), e.jobs, nil))
	return r
}

type identity map[string]string

var (
	anonymous  = identity{}
	adminUser  = identity{authz.HeaderUser: "u-admin", authz.HeaderEmail: "boss@studio.com", authz.HeaderGroup: authz.DefaultAdminGroup}
	customerAx = identity{authz.HeaderUser: "u-a@x.com", authz.HeaderEmail: "a@x.com", authz.HeaderName: "Ada"}
	customerBx = identity{authz.HeaderUser: "u-b@x.com", authz.HeaderEmail: "b@x.com"}
)

func do(t *testing.T, h http.Handler, who identity, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, apiPrefix+path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	for k, v := range who {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func doJSON(t *testing.T, h http.Handler, who identity, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(b)
	}
	return do(t, h, who, method, path, "application/json", r)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHandlers_ItemAndReviewFlow(t *testing.T) {
	e := newTestEnv(t, nil)
	h := newTestServer(e)

	var itemID, reviewID string

	tests := []struct {
		name string
		fn   func(t *testing.T)
	}{
		{
			name: "list streams",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, anonymous, http.MethodGet, "/streams", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				body := decode[map[string][]map[string]any](t, rec)
				assert.Len(t, body["streams"], 3)
			},
		},
		{
			name: "create item requires an administrator",
			fn: func(t *testing.T) {
				item := map[string]any{"title": "Logo Pack", "stream": "branding", "eligibleEmails": []string{"a@x.com"}}

				rec := doJSON(t, h, anonymous, http.MethodPost, "/admin/items", item)
				assert.Equal(t, http.StatusUnauthorized, rec.Code)

				rec = doJSON(t, h, customerAx, http.MethodPost, "/admin/items", item)
				assert.Equal(t, http.StatusForbidden, rec.Code)
				assert.Equal(t, string(authz.ReasonNotAdmin), decode[map[string]string](t, rec)["reason"])

				rec = doJSON(t, h, adminUser, http.MethodPost, "/admin/items", item)
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				body := decode[map[string]string](t, rec)
				assert.Equal(t, string(StateDraft), body["state"])
				itemID = body["id"]
				require.NotEmpty(t, itemID)
			},
		},
		{
			name: "create item validation",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodPost, "/admin/items", map[string]any{"title": "X", "stream": "marketing"})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, CodeInvalidArgument, decode[map[string]string](t, rec)["error"])

				rec = do(t, h, adminUser, http.MethodPost, "/admin/items", "application/json", strings.NewReader("{"))
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			name: "list requires a stream",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, anonymous, http.MethodGet, "/items", nil)
				assert.Equal(t, http.StatusBadRequest, rec.Code)

				rec = doJSON(t, h, anonymous, http.MethodGet, "/items?stream=branding", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				body := decode[struct {
					Stream string     `json:"stream"`
					Items  []ItemView `json:"items"`
				}](t, rec)
				assert.Equal(t, "branding", body.Stream)
				require.Len(t, body.Items, 1)
				assert.Empty(t, body.Items[0].EligibleEmails)
			},
		},
		{
			name: "rating must be an integer",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, customerAx, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 4.5})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, CodeInvalidRating, decode[map[string]string](t, rec)["error"])

				rec = doJSON(t, h, customerAx, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 9})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
				assert.Equal(t, CodeInvalidRating, decode[map[string]string](t, rec)["error"])
			},
		},
		{
			name: "listed customer reviews",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, customerAx, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 5, "comment": "great"})
				require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
				review := decode[ReviewView](t, rec)
				assert.Equal(t, "Ada", review.ReviewerName)
				reviewID = review.ID
			},
		},
		{
			name: "second review conflicts",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, customerAx, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 1})
				assert.Equal(t, http.StatusConflict, rec.Code)
				assert.Equal(t, CodeAlreadyReviewed, decode[map[string]string](t, rec)["error"])
			},
		},
		{
			name: "review denials",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, anonymous, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 5})
				assert.Equal(t, http.StatusUnauthorized, rec.Code)

				rec = doJSON(t, h, adminUser, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 5})
				assert.Equal(t, http.StatusForbidden, rec.Code)
				assert.Equal(t, string(authz.ReasonAdminCannotReview), decode[map[string]string](t, rec)["reason"])

				rec = doJSON(t, h, customerBx, http.MethodPost, "/items/"+itemID+"/reviews", map[string]any{"rating": 5})
				assert.Equal(t, http.StatusForbidden, rec.Code)
				assert.Equal(t, string(authz.ReasonNotEligible), decode[map[string]string](t, rec)["reason"])

				rec = doJSON(t, h, customerAx, http.MethodPost, "/items/missing/reviews", map[string]any{"rating": 5})
				assert.Equal(t, http.StatusNotFound, rec.Code)
			},
		},
		{
			name: "get item shows rating",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, anonymous, http.MethodGet, "/items/"+itemID, nil)
				require.Equal(t, http.StatusOK, rec.Code)
				detail := decode[ItemDetail](t, rec)
				assert.Equal(t, 5.0, detail.Rating)
				assert.Equal(t, 1, detail.ReviewCount)
				require.Len(t, detail.Reviews, 1)
				assert.Empty(t, detail.Reviews[0].ReviewerEmail)

				rec = doJSON(t, h, adminUser, http.MethodGet, "/admin/items/"+itemID, nil)
				require.Equal(t, http.StatusOK, rec.Code)
				detail = decode[ItemDetail](t, rec)
				assert.Equal(t, []string{"a@x.com"}, detail.EligibleEmails)
				assert.Equal(t, "a@x.com", detail.Reviews[0].ReviewerEmail)
			},
		},
		{
			name: "upload raw image",
			fn: func(t *testing.T) {
				rec := do(t, h, adminUser, http.MethodPut, "/admin/items/"+itemID+"/image", "image/png", bytes.NewReader(pngBytes))
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				result := decode[ImageResult](t, rec)
				assert.Equal(t, StatePublished, result.State)
				assert.NotEmpty(t, result.Image)
			},
		},
		{
			name: "upload multipart image",
			fn: func(t *testing.T) {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				part, err := mw.CreateFormFile("file", "logo.png")
				require.NoError(t, err)
				_, err = part.Write(pngBytes)
				require.NoError(t, err)
				require.NoError(t, mw.Close())

				rec := do(t, h, adminUser, http.MethodPost, "/admin/items/"+itemID+"/image", mw.FormDataContentType(), &buf)
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				result := decode[ImageResult](t, rec)
				assert.True(t, result.Cleanup.Attempted)
				assert.False(t, result.Cleanup.Failed)
			},
		},
		{
			name: "upload rejects text",
			fn: func(t *testing.T) {
				rec := do(t, h, adminUser, http.MethodPut, "/admin/items/"+itemID+"/image", "text/plain", strings.NewReader("hello"))
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			name: "remove image",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodDelete, "/admin/items/"+itemID+"/image", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), `"state":"draft"`)
			},
		},
		{
			name: "update item",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodPatch, "/admin/items/"+itemID, map[string]any{"title": "Logo Pack v2"})
				require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
				assert.Equal(t, "Logo Pack v2", decode[ItemDetail](t, rec).Title)

				rec = doJSON(t, h, adminUser, http.MethodPatch, "/admin/items/"+itemID, map[string]any{})
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			},
		},
		{
			name: "eligibility",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodGet, "/admin/items/"+itemID+"/eligibility?email=A@x.com", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				got := decode[Eligibility](t, rec)
				assert.True(t, got.Listed)
				assert.True(t, got.AlreadyReviewed)
				assert.False(t, got.CanReview)

				rec = doJSON(t, h, customerAx, http.MethodGet, "/admin/items/"+itemID+"/eligibility?email=a@x.com", nil)
				assert.Equal(t, http.StatusForbidden, rec.Code)
			},
		},
		{
			name: "admin lists and deletes reviews",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodGet, "/admin/reviews", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				body := decode[struct {
					Reviews []AuditReview `json:"reviews"`
				}](t, rec)
				require.Len(t, body.Reviews, 1)
				assert.Equal(t, "Logo Pack v2", body.Reviews[0].ItemTitle)

				rec = doJSON(t, h, adminUser, http.MethodDelete, "/admin/reviews/"+reviewID, nil)
				require.Equal(t, http.StatusOK, rec.Code)
				rec = doJSON(t, h, adminUser, http.MethodDelete, "/admin/reviews/"+reviewID, nil)
				assert.Equal(t, http.StatusNotFound, rec.Code)
			},
		},
		{
			name: "cleanup jobs are mounted",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodGet, "/admin/cleanup-jobs/", nil)
				assert.Equal(t, http.StatusOK, rec.Code)

				rec = doJSON(t, h, customerAx, http.MethodGet, "/admin/cleanup-jobs/", nil)
				assert.Equal(t, http.StatusForbidden, rec.Code)
			},
		},
		{
			name: "delete item",
			fn: func(t *testing.T) {
				rec := doJSON(t, h, adminUser, http.MethodDelete, "/admin/items/"+itemID, nil)
				require.Equal(t, http.StatusOK, rec.Code)

				rec = doJSON(t, h, anonymous, http.MethodGet, "/items/"+itemID, nil)
				assert.Equal(t, http.StatusNotFound, rec.Code)

				rec = doJSON(t, h, adminUser, http.MethodGet, "/admin/items", nil)
				require.Equal(t, http.StatusOK, rec.Code)
				assert.Contains(t, rec.Body.String(), `"size":0`)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, tt.fn)
	}
}

func TestHandlers_ReplaceImageByURL(t *testing.T) {
	e := newTestEnv(t, nil)
	h := newTestServer(e)
	id := e.createItem(t, "Logo Pack")

	rec := doJSON(t, h, adminUser, http.MethodPut, "/admin/items/"+id+"/image", map[string]string{"url": "https://elsewhere.example/a.png"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, adminUser, http.MethodPut, "/admin/items/"+id+"/image", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "url is required")
}
