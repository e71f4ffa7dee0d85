package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	OutboxStatusPending   = "pending"
	OutboxStatusPublished = "published"
	OutboxStatusFailed    = "failed"
)

// Event types emitted by the dispatch engine. The work_events table is
// append-only; rows are never mutated except for the outbox relay columns.
const (
	EventWorkAssigned        = "work_assigned"
	EventStatusChanged       = "status_changed"
	EventAssignmentCompleted = "assignment_completed"
	EventAutoHandoff         = "auto_handoff"
	EventHandoffPending      = "handoff_pending"
	EventStaleRelease        = "stale_release"
	EventClaimAcquired       = "claim_acquired"
	EventClaimReleased       = "claim_released"
)

type WorkEvent struct {
	EventID       uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"event_id"`
	WorkItemID    uuid.UUID   `gorm:"type:uuid;not null;index" json:"work_item_id"`
	EventType     string      `gorm:"not null;index" json:"event_type"`
	CorrelationID string      `gorm:"index" json:"correlation_id"`
	Actor         string      `json:"actor"`
	FromStatus    VideoStatus `gorm:"type:varchar(50)" json:"from_status,omitempty"`
	ToStatus      VideoStatus `gorm:"type:varchar(50)" json:"to_status,omitempty"`
	Details       JSONB       `gorm:"type:jsonb" json:"details,omitempty"`

	// Outbox relay state; not part of the audit payload.
	Status      string     `gorm:"not null;default:'pending';index" json:"-"`
	CreatedAt   time.Time  `gorm:"autoCreateTime;not null;index" json:"created_at"`
	PublishedAt *time.Time `json:"-"`
}

func (WorkEvent) TableName() string {
	return "work_events"
}
