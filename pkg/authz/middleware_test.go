package authz

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func serveWithCaller(h http.Handler, caller CallerContext, method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	req = req.WithContext(WithCaller(req.Context(), caller))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestGateMiddleware(t *testing.T) {
	h := GateMiddleware(NewGate())(okHandler)

	tests := []struct {
		name   string
		caller CallerContext
		method string
		path   string
		status int
		reason DenyReason
	}{
		{"anonymous public read", Anonymous(), http.MethodGet, "/api/portfolio/v1/items", http.StatusOK, ""},
		{"anonymous admin", Anonymous(), http.MethodGet, "/api/portfolio/v1/admin/items", http.StatusUnauthorized, ReasonNotAuthenticated},
		{"customer admin", customer("a@x.com"), http.MethodGet, "/api/portfolio/v1/admin/items", http.StatusForbidden, ReasonNotAdmin},
		{"admin admin", admin(), http.MethodGet, "/api/portfolio/v1/admin/items", http.StatusOK, ""},
		{"admin review", admin(), http.MethodPost, "/api/portfolio/v1/items/i1/reviews", http.StatusForbidden, ReasonAdminCannotReview},
		{"customer review passes edge", customer("a@x.com"), http.MethodPost, "/api/portfolio/v1/items/i1/reviews", http.StatusOK, ""},
		{"unknown route", admin(), http.MethodPut, "/api/portfolio/v1/items/i1", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serveWithCaller(h, tt.caller, tt.method, tt.path)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.status, rec.Body.String())
			}
			if tt.reason == "" {
				return
			}
			var body map[string]string
			if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["error"] != "UNAUTHORIZED" {
				t.Errorf("error = %q, want UNAUTHORIZED", body["error"])
			}
			if body["reason"] != string(tt.reason) {
				t.Errorf("reason = %q, want %q", body["reason"], tt.reason)
			}
		})
	}
}

func TestRequireOperation(t *testing.T) {
	h := RequireOperation(NewGate(), OpAdministrative)(okHandler)

	if rec := serveWithCaller(h, admin(), http.MethodGet, "/"); rec.Code != http.StatusOK {
		t.Errorf("admin: status = %d, want 200", rec.Code)
	}
	if rec := serveWithCaller(h, customer("a@x.com"), http.MethodGet, "/"); rec.Code != http.StatusForbidden {
		t.Errorf("customer: status = %d, want 403", rec.Code)
	}
	if rec := serveWithCaller(h, Anonymous(), http.MethodGet, "/"); rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: status = %d, want 401", rec.Code)
	}
}
