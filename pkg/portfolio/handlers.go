package portfolio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

// listStreamsHandler handles GET /streams.
func listStreamsHandler(registry *streams.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"streams": registry.Definitions()})
	}
}

// listItemsHandler handles GET /items. The stream is resolved by
// streams.Middleware.
func listItemsHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stream := streams.FromContext(r.Context())
		items, err := svc.ListItemsByStream(r.Context(), authz.CallerFromContext(r.Context()), stream)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"stream": stream,
			"items":  items,
			"size":   len(items),
		})
	}
}

// getItemHandler handles GET /items/{itemId}.
func getItemHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetItem(r.Context(), authz.CallerFromContext(r.Context()), chi.URLParam(r, "itemId"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

type addReviewRequest struct {
	Rating  json.Number `json:"rating"`
	Comment string      `json:"comment"`
}

// addReviewHandler handles POST /items/{itemId}/reviews.
func addReviewHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req addReviewRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		rating, err := req.Rating.Int64()
		if err != nil {
			writeServiceError(w, logger, fmt.Errorf("%w: %q", ErrInvalidRating, req.Rating))
			return
		}

		review, err := svc.AddReview(r.Context(), authz.CallerFromContext(r.Context()),
			chi.URLParam(r, "itemId"), int(rating), req.Comment)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, review)
	}
}

// adminListItemsHandler handles GET /admin/items.
func adminListItemsHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListAllAdminItems(r.Context(), authz.CallerFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items, "size": len(items)})
	}
}

// createItemHandler handles POST /admin/items.
func createItemHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var fields ItemFields
		if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		id, err := svc.CreateItem(r.Context(), authz.CallerFromContext(r.Context()), fields)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "state": StateDraft})
	}
}

// updateItemHandler handles PATCH /admin/items/{itemId} and returns the
// updated item.
func updateItemHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch ItemPatch
		if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, fmt.Sprintf("invalid request body: %v", err))
			return
		}
		caller := authz.CallerFromContext(r.Context())
		id := chi.URLParam(r, "itemId")
		if err := svc.UpdateItem(r.Context(), caller, id, patch); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		detail, err := svc.GetItem(r.Context(), caller, id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, detail)
	}
}

// deleteItemHandler handles DELETE /admin/items/{itemId}.
func deleteItemHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "itemId")
		result, err := svc.DeleteItem(r.Context(), authz.CallerFromContext(r.Context()), id)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": id, "cleanup": result})
	}
}

// replaceImageHandler handles PUT /admin/items/{itemId}/image. The image is
// read from a multipart "file" part, from a JSON body {"url": ...} naming an
// already stored asset, or from the raw request body.
func replaceImageHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		asset, err := readNewAsset(w, r, svc.maxImageBytes)
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArgument, err.Error())
			return
		}
		result, err := svc.ReplaceImage(r.Context(), authz.CallerFromContext(r.Context()), chi.URLParam(r, "itemId"), asset)
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

func readNewAsset(w http.ResponseWriter, r *http.Request, maxBytes int64) (NewAsset, error) {
	declared := r.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(declared)

	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
		file, header, err := r.FormFile("file")
		if err != nil {
			return NewAsset{}, fmt.Errorf("read multipart file: %w", err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
		if err != nil {
			return NewAsset{}, fmt.Errorf("read multipart file: %w", err)
		}
		return NewAsset{Data: data, ContentType: header.Header.Get("Content-Type"), FileName: header.Filename}, nil

	case "application/json":
		var body struct {
			URL string `json:"url"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return NewAsset{}, fmt.Errorf("invalid request body: %w", err)
		}
		if body.URL == "" {
			return NewAsset{}, errors.New("url is required")
		}
		return NewAsset{URL: body.URL}, nil

	default:
		data, err := io.ReadAll(io.LimitReader(r.Body, maxBytes+1))
		if err != nil {
			return NewAsset{}, fmt.Errorf("read request body: %w", err)
		}
		return NewAsset{Data: data, ContentType: declared}, nil
	}
}

// removeImageHandler handles DELETE /admin/items/{itemId}/image.
func removeImageHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.RemoveImage(r.Context(), authz.CallerFromContext(r.Context()), chi.URLParam(r, "itemId"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"state": StateDraft, "cleanup": result})
	}
}

// eligibilityHandler handles GET /admin/items/{itemId}/eligibility?email=.
func eligibilityHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		result, err := svc.ReviewEligibility(r.Context(), authz.CallerFromContext(r.Context()),
			chi.URLParam(r, "itemId"), r.URL.Query().Get("email"))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
	}
}

// listReviewsHandler handles GET /admin/reviews.
func listReviewsHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		reviews, err := svc.ListAllReviewsForAudit(r.Context(), authz.CallerFromContext(r.Context()))
		if err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"reviews": reviews, "size": len(reviews)})
	}
}

// deleteReviewHandler handles DELETE /admin/reviews/{reviewId}.
func deleteReviewHandler(svc *Service, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "reviewId")
		if err := svc.DeleteReview(r.Context(), authz.CallerFromContext(r.Context()), id); err != nil {
			writeServiceError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	}
}

// writeServiceError maps a service error to a response. Storage failures
// are logged and reported without their cause.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := HTTPStatus(err)
	code := Code(err)
	message := err.Error()
	if code == CodeStorageFailure {
		logger.Error("portfolio operation failed", "error", err)
		message = "the operation could not be completed, try again later"
	}
	body := map[string]string{"error": code, "message": message}
	if reason := denyReason(err); reason != "" {
		body["reason"] = reason
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
