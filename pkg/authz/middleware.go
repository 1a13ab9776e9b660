package authz

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// RequireOperation returns middleware that runs the gate's edge check for a
// fixed operation class. The service layer repeats the full check; this only
// rejects callers early.
func RequireOperation(gate *Gate, op Operation) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			decision := gate.EdgeCheck(CallerFromContext(r.Context()), op)
			if !decision.Allowed() {
				writeDenied(w, decision, fmt.Sprintf("operation %s not permitted", op))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GateMiddleware returns middleware that maps the HTTP method and URL path
// to an operation class and performs the edge check. It can be mounted as
// global middleware on all routes.
func GateMiddleware(gate *Gate) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			op := MapRequest(r.Method, r.URL.Path)

			// If we cannot map the request, deny by default.
			if op == UnknownOperation {
				writeJSON(w, http.StatusNotFound, map[string]string{
					"error":   "NOT_FOUND",
					"message": "unknown endpoint",
				})
				return
			}

			decision := gate.EdgeCheck(CallerFromContext(r.Context()), op)
			if !decision.Allowed() {
				writeDenied(w, decision, fmt.Sprintf("operation %s not permitted", op))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// StatusForDecision returns 401 for unauthenticated callers and 403 otherwise.
func StatusForDecision(d Decision) int {
	if d.Outcome == DeniedUnauthenticated {
		return http.StatusUnauthorized
	}
	return http.StatusForbidden
}

func writeDenied(w http.ResponseWriter, d Decision, message string) {
	writeJSON(w, StatusForDecision(d), map[string]string{
		"error":   "UNAUTHORIZED",
		"reason":  string(d.Reason),
		"message": message,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
