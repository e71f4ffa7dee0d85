package dispatch

import (
	"time"

	"github.com/flashflow/flashflow/pkg/model"
)

// SLAWindow holds the due-soon and overdue elapsed-time thresholds for one
// status. Items past DueSoon rank ahead of on-track items; items past Overdue
// rank ahead of everything.
type SLAWindow struct {
	DueSoon time.Duration
	Overdue time.Duration
}

// Handoff keys the auto-handoff table by the exact transition taken.
type Handoff struct {
	From model.VideoStatus
	To   model.VideoStatus
}

// Rules is the immutable configuration the engine components are constructed
// with. Tests inject alternate rule sets; production builds one from viper
// config. Nothing in here is computed at runtime.
type Rules struct {
	// SLA thresholds per non-terminal status.
	SLA map[model.VideoStatus]SLAWindow

	// Lanes maps a worker role to the status it dispatches from.
	Lanes map[model.Role]model.VideoStatus

	// Handoffs maps a completed transition to the next role, if any.
	Handoffs map[Handoff]model.Role

	// AllowedRoles maps a target status to the roles permitted to drive an
	// item into it. Admin always passes regardless of this table.
	AllowedRoles map[model.VideoStatus][]model.Role

	// RoleTTL is the default assignment TTL per role; DefaultTTL applies
	// when a role has no entry.
	RoleTTL    map[model.Role]time.Duration
	DefaultTTL time.Duration

	// ClaimTTL bounds manual claims.
	ClaimTTL time.Duration

	// FallbackUsers receive auto-handoff assignments for their role when
	// configured; otherwise the item waits unassigned in the next lane.
	FallbackUsers map[model.Role]string

	// CandidateLimit bounds the dispatch candidate fetch.
	CandidateLimit int

	// GatingFailClosed blocks dispatch/transition when the billing gate is
	// unreachable. Default is fail-open: work is never silently starved by
	// a degraded collaborator.
	GatingFailClosed bool

	// AllowAnonymous skips the actor-identity requirement. Test and system
	// maintenance paths only.
	AllowAnonymous bool
}

// DefaultRules mirrors the production pipeline policy. Thresholds follow the
// VA SLA bands: recording should start within 4h, edits complete within 24h,
// review within 8h, posting within 4h.
func DefaultRules() Rules {
	return Rules{
		SLA: map[model.VideoStatus]SLAWindow{
			model.StatusNotRecorded: {DueSoon: 4 * time.Hour, Overdue: 8 * time.Hour},
			model.StatusRecorded:    {DueSoon: 24 * time.Hour, Overdue: 48 * time.Hour},
			model.StatusEdited:      {DueSoon: 8 * time.Hour, Overdue: 16 * time.Hour},
			model.StatusReadyToPost: {DueSoon: 4 * time.Hour, Overdue: 8 * time.Hour},
		},
		Lanes: map[model.Role]model.VideoStatus{
			model.RoleRecorder: model.StatusNotRecorded,
			model.RoleEditor:   model.StatusRecorded,
			model.RoleUploader: model.StatusReadyToPost,
		},
		Handoffs: map[Handoff]model.Role{
			{From: model.StatusNotRecorded, To: model.StatusRecorded}: model.RoleEditor,
			{From: model.StatusEdited, To: model.StatusReadyToPost}:   model.RoleUploader,
		},
		AllowedRoles: map[model.VideoStatus][]model.Role{
			model.StatusRecorded:    {model.RoleRecorder},
			model.StatusEdited:      {model.RoleEditor},
			model.StatusReadyToPost: {model.RoleEditor},
			model.StatusPosted:      {model.RoleUploader},
			model.StatusRejected:    {model.RoleRecorder, model.RoleEditor, model.RoleUploader},
		},
		RoleTTL: map[model.Role]time.Duration{
			model.RoleRecorder: 4 * time.Hour,
			model.RoleEditor:   24 * time.Hour,
			model.RoleUploader: 4 * time.Hour,
		},
		DefaultTTL:     60 * time.Minute,
		ClaimTTL:       2 * time.Hour,
		FallbackUsers:  map[model.Role]string{},
		CandidateLimit: 50,
	}
}

// NextRole resolves the auto-handoff target for a completed transition.
func (r Rules) NextRole(from, to model.VideoStatus) (model.Role, bool) {
	role, ok := r.Handoffs[Handoff{From: from, To: to}]
	return role, ok
}

// TTLFor picks the assignment TTL for a role, honoring an explicit override.
func (r Rules) TTLFor(role model.Role, override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	if ttl, ok := r.RoleTTL[role]; ok && ttl > 0 {
		return ttl
	}
	return r.DefaultTTL
}
