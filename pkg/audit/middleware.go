package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/brandworks/portfolio-engine/pkg/authz"
	"github.com/brandworks/portfolio-engine/pkg/streams"
)

// maxErrorBody bounds how much of an error response is kept to recover its
// denial reason.
const maxErrorBody = 1 << 10

// statusRecorder remembers the response status and, for error responses, the
// head of the body.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	errBody bytes.Buffer
}

func (sr *statusRecorder) WriteHeader(code int) {
	if sr.status == 0 {
		sr.status = code
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	if sr.status >= 400 && sr.errBody.Len() < maxErrorBody {
		n := min(len(b), maxErrorBody-sr.errBody.Len())
		sr.errBody.Write(b[:n])
	}
	return sr.ResponseWriter.Write(b)
}

// reason extracts the "reason" field of a JSON error body.
func (sr *statusRecorder) reason() string {
	if sr.errBody.Len() == 0 {
		return ""
	}
	var body struct {
		Reason string `json:"reason"`
	}
	if json.Unmarshal(sr.errBody.Bytes(), &body) != nil {
		return ""
	}
	return body.Reason
}

// Middleware records one request event per mutating call once the handler
// returns. Mount it after authz.IdentityMiddleware and before the gate so
// edge denials are recorded too. Write failures are logged and dropped.
func Middleware(store *Store, cfg *AuditConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	enabled := cfg != nil && cfg.Enabled && store != nil

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !enabled || !isAuditedRequest(r.Method, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			started := time.Now()
			rec := &statusRecorder{ResponseWriter: w}
			next.ServeHTTP(rec, r)
			if rec.status == 0 {
				rec.status = http.StatusOK
			}

			outcome := outcomeFromStatus(rec.status)
			if outcome == OutcomeDenied && !cfg.LogDenied {
				return
			}

			caller := authz.CallerFromContext(r.Context())
			event := &EventRecord{
				Stream:        requestStream(r),
				CorrelationID: caller.CorrelationID,
				EventType:     EventTypeRequest,
				Actor:         caller.Actor(),
				RequestID:     caller.RequestID,
				ResourceType:  extractResourceType(r.URL.Path),
				ResourceIDs:   extractResourceIDs(r.URL.Path),
				Action:        extractActionVerb(r.Method, r.URL.Path),
				Outcome:       outcome,
				StatusCode:    rec.status,
				CreatedAt:     started,
				Metadata: map[string]any{
					"method":    r.Method,
					"path":      r.URL.Path,
					"operation": string(authz.MapRequest(r.Method, r.URL.Path)),
					"duration":  time.Since(started).String(),
				},
			}
			if outcome != OutcomeSuccess {
				event.Reason = rec.reason()
			}

			if err := store.Append(context.WithoutCancel(r.Context()), event); err != nil {
				logger.Error("audit append failed", "error", err, "action", event.Action, "requestID", caller.RequestID)
			}
		})
	}
}

// requestStream returns the raw stream named by the request, if any. It is
// not validated; an unknown stream is still worth recording.
func requestStream(r *http.Request) string {
	s := r.URL.Query().Get(streams.QueryParam)
	if s == "" {
		s = r.Header.Get(streams.Header)
	}
	return strings.ToLower(strings.TrimSpace(s))
}
