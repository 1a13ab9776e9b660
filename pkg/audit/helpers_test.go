package audit

import (
	"net/http"
	"reflect"
	"testing"
)

func TestExtractors(t *testing.T) {
	tests := []struct {
		method   string
		path     string
		resource string
		ids      []string
		action   string
	}{
		{http.MethodPost, "/api/portfolio/v1/admin/items", "items", nil, "create-item"},
		{http.MethodPatch, "/api/portfolio/v1/admin/items/i1", "items", []string{"i1"}, "update-item"},
		{http.MethodDelete, "/api/portfolio/v1/admin/items/i1", "items", []string{"i1"}, "delete-item"},
		{http.MethodPut, "/api/portfolio/v1/admin/items/i1/image", "items", []string{"i1"}, "replace-image"},
		{http.MethodDelete, "/api/portfolio/v1/admin/items/i1/image", "items", []string{"i1"}, "remove-image"},
		{http.MethodPost, "/api/portfolio/v1/items/i1/reviews", "reviews", []string{"i1"}, "add-review"},
		{http.MethodDelete, "/api/portfolio/v1/admin/reviews/r1", "reviews", []string{"r1"}, "delete-review"},
		{http.MethodPost, "/api/portfolio/v1/admin/cleanup-jobs/j1:cancel", "cleanup-jobs", []string{"j1"}, "cancel-cleanup-job"},
		{http.MethodPost, "/api/other", "", nil, "create"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			if got := extractResourceType(tt.path); got != tt.resource {
				t.Errorf("extractResourceType() = %q, want %q", got, tt.resource)
			}
			if got := extractResourceIDs(tt.path); !reflect.DeepEqual(got, tt.ids) {
				t.Errorf("extractResourceIDs() = %v, want %v", got, tt.ids)
			}
			if got := extractActionVerb(tt.method, tt.path); got != tt.action {
				t.Errorf("extractActionVerb() = %q, want %q", got, tt.action)
			}
		})
	}
}

func TestIsAuditedRequest(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   bool
	}{
		{http.MethodGet, "/api/portfolio/v1/items", false},
		{http.MethodPost, "/api/portfolio/v1/items/i1/reviews", true},
		{http.MethodDelete, "/api/portfolio/v1/admin/items/i1", true},
		{http.MethodPost, "/readyz", false},
	}
	for _, tt := range tests {
		if got := isAuditedRequest(tt.method, tt.path); got != tt.want {
			t.Errorf("isAuditedRequest(%s, %s) = %v, want %v", tt.method, tt.path, got, tt.want)
		}
	}
}

func TestOutcomeFromStatus(t *testing.T) {
	tests := map[int]string{
		200: OutcomeSuccess,
		201: OutcomeSuccess,
		401: OutcomeDenied,
		403: OutcomeDenied,
		404: OutcomeFailure,
		409: OutcomeFailure,
		500: OutcomeFailure,
	}
	for code, want := range tests {
		if got := outcomeFromStatus(code); got != want {
			t.Errorf("outcomeFromStatus(%d) = %q, want %q", code, got, want)
		}
	}
}
