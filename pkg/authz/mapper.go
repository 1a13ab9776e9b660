package authz

import (
	"net/http"
	"strings"
)

// UnknownOperation is returned when no known route pattern matches.
// Callers should deny requests with this mapping by default.
const UnknownOperation Operation = ""

// API path prefixes recognised by MapRequest.
const (
	PortfolioAPIPrefix = "/api/portfolio/v1"
	AuditAPIPrefix     = "/api/audit/v1"
)

// MapRequest maps an HTTP method and URL path to the operation class the
// route belongs to.
func MapRequest(method, path string) Operation {
	path = strings.TrimRight(path, "/")

	switch path {
	case "/livez", "/readyz", "/healthz":
		return OpPublicRead
	}

	// Audit routes are administrative regardless of method.
	if strings.HasPrefix(path, AuditAPIPrefix+"/") || path == AuditAPIPrefix {
		return OpAdministrative
	}

	if !strings.HasPrefix(path, PortfolioAPIPrefix) {
		return UnknownOperation
	}
	sub := strings.TrimPrefix(path, PortfolioAPIPrefix)

	if strings.HasPrefix(sub, "/admin/") || sub == "/admin" {
		return OpAdministrative
	}

	// POST /items/{id}/reviews
	if method == http.MethodPost && strings.HasPrefix(sub, "/items/") && strings.HasSuffix(sub, "/reviews") {
		return OpReviewWrite
	}

	if method == http.MethodGet || method == http.MethodHead {
		switch {
		case sub == "/items", strings.HasPrefix(sub, "/items/"), sub == "/streams":
			return OpPublicRead
		}
	}

	return UnknownOperation
}
