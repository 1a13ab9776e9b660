package audit

import (
	"github.com/go-chi/chi/v5"

	"github.com/brandworks/portfolio-engine/pkg/authz"
)

// Router creates a chi.Router for the audit API. Every route is
// administrative.
func Router(store *Store, gate *authz.Gate) chi.Router {
	r := chi.NewRouter()
	r.Use(authz.RequireOperation(gate, authz.OpAdministrative))

	r.Get("/events", ListEventsHandler(store))
	r.Get("/events/{eventId}", GetEventHandler(store))

	return r
}
