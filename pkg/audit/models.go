// Package audit keeps an append-only trail of portfolio mutations: one event
// per service operation and one per mutating HTTP request.
package audit

import (
	"time"

	"github.com/brandworks/portfolio-engine/pkg/database"
)

// Event types.
const (
	EventTypeOperation = "operation"
	EventTypeRequest   = "request"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeDenied  = "denied"
)

// EventRecord is an immutable audit log entry.
type EventRecord struct {
	ID            string              `gorm:"primaryKey;column:id;type:varchar(36)"`
	Stream        string              `gorm:"column:stream;index:idx_audit_stream_time,priority:1"`
	CorrelationID string              `gorm:"column:correlation_id;index"`
	EventType     string              `gorm:"column:event_type;index:idx_audit_type_time,priority:1;not null"`
	Actor         string              `gorm:"column:actor;index:idx_audit_actor_time,priority:1;not null"`
	RequestID     string              `gorm:"column:request_id;index"`
	ResourceType  string              `gorm:"column:resource_type"`
	ResourceIDs   database.StringList `gorm:"column:resource_ids;type:text"`
	Action        string              `gorm:"column:action;index"`
	Outcome       string              `gorm:"column:outcome;not null"`
	Reason        string              `gorm:"column:reason"`
	StatusCode    int                 `gorm:"column:status_code"`
	Metadata      database.JSONMap    `gorm:"column:metadata;type:text"`
	CreatedAt     time.Time           `gorm:"column:created_at;index:idx_audit_type_time,priority:2;index:idx_audit_actor_time,priority:2;index:idx_audit_stream_time,priority:2"`
}

// TableName returns the GORM table name.
func (EventRecord) TableName() string { return "audit_events" }
