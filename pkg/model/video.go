package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type VideoStatus string

const (
	StatusNotRecorded VideoStatus = "NOT_RECORDED"
	StatusRecorded    VideoStatus = "RECORDED"
	StatusEdited      VideoStatus = "EDITED"
	StatusReadyToPost VideoStatus = "READY_TO_POST"
	StatusPosted      VideoStatus = "POSTED"
	StatusRejected    VideoStatus = "REJECTED"
)

// Terminal reports whether a video in this status accepts further
// transitions or leases.
func (s VideoStatus) Terminal() bool {
	return s == StatusPosted || s == StatusRejected
}

func (s VideoStatus) Valid() bool {
	switch s {
	case StatusNotRecorded, StatusRecorded, StatusEdited, StatusReadyToPost, StatusPosted, StatusRejected:
		return true
	}
	return false
}

// AllStatuses returns every status in pipeline order.
func AllStatuses() []VideoStatus {
	return []VideoStatus{
		StatusNotRecorded,
		StatusRecorded,
		StatusEdited,
		StatusReadyToPost,
		StatusPosted,
		StatusRejected,
	}
}

type Role string

const (
	RoleRecorder Role = "recorder"
	RoleEditor   Role = "editor"
	RoleUploader Role = "uploader"
	RoleAdmin    Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleRecorder, RoleEditor, RoleUploader, RoleAdmin:
		return true
	}
	return false
}

type AssignmentState string

const (
	AssignmentUnassigned AssignmentState = "UNASSIGNED"
	AssignmentAssigned   AssignmentState = "ASSIGNED"
	AssignmentCompleted  AssignmentState = "COMPLETED"
	AssignmentExpired    AssignmentState = "EXPIRED"
)

// Video is one work item moving through the production pipeline. It carries
// the status state machine, the stage artifacts used for completeness checks,
// and the two parallel lease sub-records (manual claim, dispatched assignment).
type Video struct {
	ID                  uuid.UUID   `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Title               string      `gorm:"not null" json:"title"`
	Status              VideoStatus `gorm:"type:varchar(50);default:'NOT_RECORDED';index" json:"status"`
	LastStatusChangedAt time.Time   `gorm:"index" json:"last_status_changed_at"`

	// Stage artifacts. The engine only checks presence; the content is
	// owned by the workers and display layers.
	ScriptText        string         `json:"script_text,omitempty"`
	ScriptLocked      bool           `gorm:"default:false" json:"script_locked"`
	ScriptNotRequired bool           `gorm:"default:false" json:"script_not_required"`
	FinalMediaURL     string         `json:"final_media_url,omitempty"`
	AltMediaURL       string         `json:"alt_media_url,omitempty"`
	PostedURL         string         `json:"posted_url,omitempty"`
	PostedPlatform    string         `json:"posted_platform,omitempty"`
	RecordingNotes    string         `json:"recording_notes,omitempty"`
	EditingNotes      string         `json:"editing_notes,omitempty"`
	PostingNotes      string         `json:"posting_notes,omitempty"`
	Tags              pq.StringArray `gorm:"type:text[]" json:"tags,omitempty"`

	// Canonical stage timestamps, stamped the first time each status is
	// reached unless explicitly supplied.
	RecordedAt *time.Time `json:"recorded_at,omitempty"`
	EditedAt   *time.Time `json:"edited_at,omitempty"`
	PostedAt   *time.Time `json:"posted_at,omitempty"`

	// Claim lease (manual, user-initiated).
	ClaimedBy      string     `gorm:"index" json:"claimed_by,omitempty"`
	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	ClaimExpiresAt *time.Time `json:"claim_expires_at,omitempty"`
	ClaimRole      Role       `gorm:"type:varchar(50)" json:"claim_role,omitempty"`

	// Assignment lease (system-dispatched).
	AssignedTo         string          `gorm:"index" json:"assigned_to,omitempty"`
	AssignedAt         *time.Time      `json:"assigned_at,omitempty"`
	AssignedExpiresAt  *time.Time      `gorm:"index" json:"assigned_expires_at,omitempty"`
	AssignedRole       Role            `gorm:"type:varchar(50)" json:"assigned_role,omitempty"`
	AssignmentState    AssignmentState `gorm:"type:varchar(50);default:'UNASSIGNED';index" json:"assignment_state"`
	AssignedTTLMinutes int             `gorm:"column:assigned_ttl_minutes" json:"assigned_ttl_minutes,omitempty"`
	WorkPriority       float64         `json:"work_priority"`
	WorkLane           VideoStatus     `gorm:"type:varchar(50)" json:"work_lane,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type JSONB map[string]interface{}

func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	bytes, ok := value.([]byte)
	if !ok {
		return fmt.Errorf("failed to scan JSONB: %v", value)
	}
	return json.Unmarshal(bytes, j)
}

func (j JSONB) GormDataType() string {
	return "jsonb"
}
