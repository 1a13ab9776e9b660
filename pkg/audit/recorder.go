package audit

import (
	"context"
	"log/slog"

	"github.com/brandworks/portfolio-engine/pkg/authz"
)

// Event describes one service operation for the audit trail.
type Event struct {
	Caller       authz.CallerContext
	Action       string
	ResourceType string
	ResourceIDs  []string
	Stream       string
	Outcome      string
	Reason       string
	Metadata     map[string]any
}

// Recorder records service operation events. Implementations must not
// fail the calling operation.
type Recorder interface {
	Record(ctx context.Context, e Event)
}

// NopRecorder discards events.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, Event) {}

// StoreRecorder appends events to a Store. Write errors are logged.
type StoreRecorder struct {
	store  *Store
	logger *slog.Logger
}

// NewStoreRecorder creates a StoreRecorder.
func NewStoreRecorder(store *Store, logger *slog.Logger) *StoreRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &StoreRecorder{store: store, logger: logger}
}

func (r *StoreRecorder) Record(ctx context.Context, e Event) {
	rec := &EventRecord{
		Stream:        e.Stream,
		CorrelationID: e.Caller.CorrelationID,
		EventType:     EventTypeOperation,
		Actor:         e.Caller.Actor(),
		RequestID:     e.Caller.RequestID,
		ResourceType:  e.ResourceType,
		ResourceIDs:   e.ResourceIDs,
		Action:        e.Action,
		Outcome:       e.Outcome,
		Reason:        e.Reason,
		Metadata:      e.Metadata,
	}
	// The operation outcome is already decided; a cancelled request must not
	// drop its audit record.
	if err := r.store.Append(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Error("failed to write audit event", "error", err, "action", e.Action)
	}
}
