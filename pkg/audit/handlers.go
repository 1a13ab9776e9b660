package audit

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

var validOutcomes = map[string]bool{OutcomeSuccess: true, OutcomeFailure: true, OutcomeDenied: true}

// filterFromQuery reads the list filter and page size from query
// parameters.
func filterFromQuery(q url.Values) (ListFilter, int, error) {
	filter := ListFilter{
		Stream:    q.Get("stream"),
		Actor:     q.Get("actor"),
		Action:    q.Get("action"),
		EventType: q.Get("eventType"),
		Outcome:   q.Get("outcome"),
	}
	if filter.Outcome != "" && !validOutcomes[filter.Outcome] {
		return filter, 0, fmt.Errorf("outcome must be one of success, failure, denied")
	}

	pageSize := defaultPageSize
	if ps := q.Get("pageSize"); ps != "" {
		n, err := strconv.Atoi(ps)
		if err != nil || n <= 0 {
			return filter, 0, fmt.Errorf("pageSize must be a positive integer")
		}
		pageSize = min(n, maxPageSize)
	}
	return filter, pageSize, nil
}

// ListEventsHandler serves GET /events, newest first. Filters: stream,
// actor, action, eventType, outcome. Paging: pageSize, pageToken.
func ListEventsHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter, pageSize, err := filterFromQuery(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}

		records, next, total, err := store.ListFiltered(r.Context(), filter, pageSize, q.Get("pageToken"))
		switch {
		case errors.Is(err, ErrInvalidPageToken):
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		case err != nil:
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "failed to list audit events")
			return
		}

		events := make([]eventResponse, 0, len(records))
		for _, rec := range records {
			events = append(events, toResponse(rec))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"events":        events,
			"nextPageToken": next,
			"totalSize":     total,
		})
	}
}

// GetEventHandler serves GET /events/{eventId}.
func GetEventHandler(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "eventId")
		rec, err := store.GetByID(r.Context(), id)
		switch {
		case errors.Is(err, ErrEventNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("audit event %q not found", id))
		case err != nil:
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "failed to get audit event")
		default:
			writeJSON(w, http.StatusOK, toResponse(*rec))
		}
	}
}

type eventResponse struct {
	ID            string         `json:"id"`
	Stream        string         `json:"stream,omitempty"`
	CorrelationID string         `json:"correlationId,omitempty"`
	EventType     string         `json:"eventType"`
	Actor         string         `json:"actor"`
	RequestID     string         `json:"requestId,omitempty"`
	ResourceType  string         `json:"resourceType,omitempty"`
	ResourceIDs   []string       `json:"resourceIds,omitempty"`
	Action        string         `json:"action,omitempty"`
	Outcome       string         `json:"outcome"`
	Reason        string         `json:"reason,omitempty"`
	StatusCode    int            `json:"statusCode,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	CreatedAt     string         `json:"createdAt"`
}

func toResponse(rec EventRecord) eventResponse {
	return eventResponse{
		ID:            rec.ID,
		Stream:        rec.Stream,
		CorrelationID: rec.CorrelationID,
		EventType:     rec.EventType,
		Actor:         rec.Actor,
		RequestID:     rec.RequestID,
		ResourceType:  rec.ResourceType,
		ResourceIDs:   rec.ResourceIDs,
		Action:        rec.Action,
		Outcome:       rec.Outcome,
		Reason:        rec.Reason,
		StatusCode:    rec.StatusCode,
		Metadata:      rec.Metadata,
		CreatedAt:     rec.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
