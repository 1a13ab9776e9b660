package audit

import (
	"net/http"
	"strings"
)

// collections are the path segments followed by a resource id.
var collections = map[string]string{
	"items":        "item",
	"reviews":      "review",
	"cleanup-jobs": "cleanup-job",
	"events":       "event",
}

func pathSegments(path string) []string {
	var out []string
	for _, p := range strings.Split(strings.Trim(path, "/"), "/") {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func stripSuffix(seg string) string {
	if idx := strings.Index(seg, ":"); idx > 0 {
		return seg[:idx]
	}
	return seg
}

// extractResourceType returns the innermost collection named in the path:
// "reviews" for /items/{id}/reviews, "items" for /admin/items/{id}/image.
func extractResourceType(path string) string {
	resource := ""
	for _, p := range pathSegments(path) {
		if _, ok := collections[p]; ok {
			resource = p
		}
	}
	return resource
}

// extractResourceIDs returns the ids that follow collection segments.
func extractResourceIDs(path string) []string {
	parts := pathSegments(path)
	var ids []string
	for i, p := range parts {
		if _, ok := collections[p]; ok && i+1 < len(parts) {
			ids = append(ids, stripSuffix(parts[i+1]))
		}
	}
	return ids
}

// extractActionVerb names the action a mutating request performs.
func extractActionVerb(method, path string) string {
	parts := pathSegments(path)
	for _, p := range parts {
		if strings.HasSuffix(p, ":cancel") {
			return "cancel-cleanup-job"
		}
	}

	if len(parts) > 0 && parts[len(parts)-1] == "image" {
		switch method {
		case http.MethodPut, http.MethodPost:
			return "replace-image"
		case http.MethodDelete:
			return "remove-image"
		}
	}

	if noun, ok := collections[extractResourceType(path)]; ok {
		switch method {
		case http.MethodPost:
			if noun == "review" {
				return "add-review"
			}
			return "create-" + noun
		case http.MethodPut, http.MethodPatch:
			return "update-" + noun
		case http.MethodDelete:
			return "delete-" + noun
		}
	}

	switch method {
	case http.MethodPost:
		return "create"
	case http.MethodPut:
		return "update"
	case http.MethodPatch:
		return "patch"
	case http.MethodDelete:
		return "delete"
	default:
		return strings.ToLower(method)
	}
}

// isAuditedRequest reports whether a request is recorded by Middleware:
// mutating methods on anything but health endpoints.
func isAuditedRequest(method, path string) bool {
	if isHealthEndpoint(path) {
		return false
	}
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

func isHealthEndpoint(path string) bool {
	switch path {
	case "/livez", "/readyz", "/healthz":
		return true
	}
	return false
}

// outcomeFromStatus maps HTTP status codes to audit outcomes.
func outcomeFromStatus(code int) string {
	switch {
	case code >= 200 && code < 300:
		return OutcomeSuccess
	case code == http.StatusUnauthorized, code == http.StatusForbidden:
		return OutcomeDenied
	default:
		return OutcomeFailure
	}
}
