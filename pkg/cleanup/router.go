package cleanup

import (
	"github.com/go-chi/chi/v5"
)

// Router creates a chi.Router for the cleanup job API. It is mounted under
// the administrative portfolio routes, so callers are already gated.
func Router(store *JobStore) chi.Router {
	r := chi.NewRouter()
	r.Get("/", ListJobsHandler(store))
	r.Get("/{jobId}", GetJobHandler(store))
	r.Post("/{jobId}:cancel", CancelJobHandler(store))
	return r
}
