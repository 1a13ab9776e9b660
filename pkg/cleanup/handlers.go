package cleanup

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

const maxPageSize = 100

func parseListQuery(q url.Values) (JobListFilter, int, error) {
	filter := JobListFilter{
		ItemID:   q.Get("itemId"),
		State:    q.Get("state"),
		AssetRef: q.Get("assetRef"),
	}
	if filter.State != "" && !JobState(filter.State).valid() {
		return filter, 0, fmt.Errorf("unknown state %q", filter.State)
	}
	size := 20
	if v := q.Get("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return filter, 0, fmt.Errorf("pageSize must be a positive integer")
		}
		size = min(n, maxPageSize)
	}
	return filter, size, nil
}

// ListJobsHandler serves GET /cleanup-jobs, newest first. Filters: itemId,
// state, assetRef. Paging: pageSize, pageToken.
func ListJobsHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filter, size, err := parseListQuery(q)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}

		records, next, total, err := store.List(r.Context(), filter, size, q.Get("pageToken"))
		if errors.Is(err, ErrInvalidPageToken) {
			writeError(w, http.StatusBadRequest, "INVALID_ARGUMENT", err.Error())
			return
		}
		if err != nil {
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "failed to list cleanup jobs")
			return
		}

		jobs := make([]jobResponse, 0, len(records))
		for i := range records {
			jobs = append(jobs, newJobResponse(&records[i]))
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"jobs":          jobs,
			"nextPageToken": next,
			"totalSize":     total,
		})
	}
}

// GetJobHandler serves GET /cleanup-jobs/{jobId}.
func GetJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobId")
		job, err := store.Get(r.Context(), id)
		switch {
		case errors.Is(err, ErrJobNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("cleanup job %q not found", id))
		case err != nil:
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "failed to get cleanup job")
		default:
			writeJSON(w, http.StatusOK, newJobResponse(job))
		}
	}
}

// CancelJobHandler serves POST /cleanup-jobs/{jobId}:cancel. Only queued
// jobs can be canceled.
func CancelJobHandler(store *JobStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "jobId")
		err := store.Cancel(r.Context(), id)
		switch {
		case errors.Is(err, ErrJobNotFound):
			writeError(w, http.StatusNotFound, "NOT_FOUND", fmt.Sprintf("cleanup job %q not found", id))
		case errors.Is(err, ErrNotCancelable):
			writeError(w, http.StatusConflict, "INVALID_STATE", err.Error())
		case err != nil:
			writeError(w, http.StatusInternalServerError, "STORAGE_FAILURE", "failed to cancel cleanup job")
		default:
			writeJSON(w, http.StatusOK, map[string]string{"status": string(JobStateCanceled), "jobId": id})
		}
	}
}

type jobResponse struct {
	ID           string `json:"id"`
	AssetRef     string `json:"assetRef"`
	ItemID       string `json:"itemId,omitempty"`
	Reason       string `json:"reason,omitempty"`
	RequestedBy  string `json:"requestedBy"`
	RequestedAt  string `json:"requestedAt"`
	State        string `json:"state"`
	Message      string `json:"message,omitempty"`
	StartedAt    string `json:"startedAt,omitempty"`
	FinishedAt   string `json:"finishedAt,omitempty"`
	AttemptCount int    `json:"attemptCount"`
	LastError    string `json:"lastError,omitempty"`
}

func newJobResponse(job *AssetCleanupJob) jobResponse {
	stamp := func(t *time.Time) string {
		if t == nil {
			return ""
		}
		return t.UTC().Format(time.RFC3339)
	}
	return jobResponse{
		ID:           job.ID,
		AssetRef:     job.AssetRef,
		ItemID:       job.ItemID,
		Reason:       job.Reason,
		RequestedBy:  job.RequestedBy,
		RequestedAt:  stamp(&job.RequestedAt),
		State:        string(job.State),
		Message:      job.Message,
		StartedAt:    stamp(job.StartedAt),
		FinishedAt:   stamp(job.FinishedAt),
		AttemptCount: job.AttemptCount,
		LastError:    job.LastError,
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
