package streams

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// QueryParam is the query parameter used for stream resolution.
const QueryParam = "stream"

// Header is the HTTP header used for stream resolution.
const Header = "X-Stream"

// Resolver resolves the stream a request is scoped to.
type Resolver struct {
	Registry *Registry
}

// Resolve reads the stream from the query parameter first, then the
// X-Stream header, and validates it against the registry.
func (res Resolver) Resolve(r *http.Request) (string, error) {
	s := r.URL.Query().Get(QueryParam)
	if s == "" {
		s = r.Header.Get(Header)
	}
	if s == "" {
		return "", fmt.Errorf("%w (use ?stream= query param or X-Stream header)", ErrMissing)
	}
	return res.Registry.Parse(s)
}

// Middleware returns HTTP middleware that resolves the stream and stores it
// in the request context. On resolution failure it responds with a 400 JSON
// error.
func Middleware(registry *Registry) func(http.Handler) http.Handler {
	res := Resolver{Registry: registry}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			stream, err := res.Resolve(r)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{
					"error":   "INVALID_ARGUMENT",
					"message": err.Error(),
				})
				return
			}
			next.ServeHTTP(w, r.WithContext(WithStream(r.Context(), stream)))
		})
	}
}
