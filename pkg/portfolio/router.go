package portfolio

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/cleanup"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

// Router creates a chi.Router for the portfolio API, mounted at
// /api/portfolio/v1. Administrative routes are edge-checked by the gate;
// the service repeats the check. jobs may be nil, in which case the
// cleanup job routes are not mounted.
func Router(svc *Service, gate *authz.Gate, jobs *cleanup.JobStore, logger *slog.Logger) chi.Router {
	if logger == nil {
		logger = slog.Default()
	}
	if gate == nil {
		gate = authz.NewGate()
	}

	r := chi.NewRouter()

	r.Get("/streams", listStreamsHandler(svc.Streams()))
	r.With(streams.Middleware(svc.Streams())).Get("/items", listItemsHandler(svc, logger))
	r.Get("/items/{itemId}", getItemHandler(svc, logger))
	r.Post("/items/{itemId}/reviews", addReviewHandler(svc, logger))

	r.Route("/admin", func(r chi.Router) {
		r.Use(authz.RequireOperation(gate, authz.OpAdministrative))

		r.Get("/items", adminListItemsHandler(svc, logger))
		r.Post("/items", createItemHandler(svc, logger))
		r.Get("/items/{itemId}", getItemHandler(svc, logger))
		r.Patch("/items/{itemId}", updateItemHandler(svc, logger))
		r.Delete("/items/{itemId}", deleteItemHandler(svc, logger))
		r.Put("/items/{itemId}/image", replaceImageHandler(svc, logger))
		r.Post("/items/{itemId}/image", replaceImageHandler(svc, logger))
		r.Delete("/items/{itemId}/image", removeImageHandler(svc, logger))
		r.Get("/items/{itemId}/eligibility", eligibilityHandler(svc, logger))

		r.Get("/reviews", listReviewsHandler(svc, logger))
		r.Delete("/reviews/{reviewId}", deleteReviewHandler(svc, logger))

		if jobs != nil {
			r.Mount("/cleanup-jobs", cleanup.Router(jobs))
		}
	})

	return r
}
