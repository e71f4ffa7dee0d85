package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/flashflow/flashflow/pkg/model"
)

// memStore is an in-memory VideoStore with the same compare-and-swap
// semantics as the Postgres repository, so concurrency properties can be
// exercised without a database.
type memStore struct {
	mu     sync.Mutex
	videos map[uuid.UUID]*model.Video
}

func newMemStore(videos ...*model.Video) *memStore {
	s := &memStore{videos: make(map[uuid.UUID]*model.Video)}
	for _, v := range videos {
		copied := *v
		s.videos[v.ID] = &copied
	}
	return s
}

func (s *memStore) put(v *model.Video) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *v
	s.videos[v.ID] = &copied
}

func (s *memStore) Get(_ context.Context, id uuid.UUID) (*model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *v
	return &copied, nil
}

func (s *memStore) ListLane(_ context.Context, lane model.VideoStatus, now time.Time, limit int) ([]model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Video
	for _, v := range s.videos {
		if v.Status != lane {
			continue
		}
		liveAssignment := v.AssignmentState == model.AssignmentAssigned &&
			v.AssignedExpiresAt != nil && v.AssignedExpiresAt.After(now)
		if liveAssignment {
			continue
		}
		out = append(out, *v)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastStatusChangedAt.Before(out[j].LastStatusChangedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status model.VideoStatus, limit int) ([]model.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Video
	for _, v := range s.videos {
		if v.Status == status {
			out = append(out, *v)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastStatusChangedAt.Before(out[j].LastStatusChangedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) Update(_ context.Context, id uuid.UUID, fields map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return ErrNotFound
	}
	for key, value := range fields {
		applyField(v, key, value)
	}
	return nil
}

func applyField(v *model.Video, key string, value interface{}) {
	switch key {
	case "status":
		v.Status = value.(model.VideoStatus)
	case "last_status_changed_at":
		v.LastStatusChangedAt = value.(time.Time)
	case "title":
		v.Title = value.(string)
	case "script_text":
		v.ScriptText = value.(string)
	case "script_locked":
		v.ScriptLocked = value.(bool)
	case "script_not_required":
		v.ScriptNotRequired = value.(bool)
	case "final_media_url":
		v.FinalMediaURL = value.(string)
	case "alt_media_url":
		v.AltMediaURL = value.(string)
	case "posted_url":
		v.PostedURL = value.(string)
	case "posted_platform":
		v.PostedPlatform = value.(string)
	case "recording_notes":
		v.RecordingNotes = value.(string)
	case "editing_notes":
		v.EditingNotes = value.(string)
	case "posting_notes":
		v.PostingNotes = value.(string)
	case "tags":
		v.Tags = value.([]string)
	case "recorded_at":
		v.RecordedAt = timePtr(value)
	case "edited_at":
		v.EditedAt = timePtr(value)
	case "posted_at":
		v.PostedAt = timePtr(value)
	case "assignment_state":
		v.AssignmentState = value.(model.AssignmentState)
	case "assigned_to":
		v.AssignedTo = value.(string)
	case "assigned_role":
		v.AssignedRole = value.(model.Role)
	case "claimed_by":
		v.ClaimedBy = value.(string)
	case "claimed_at":
		v.ClaimedAt = timePtr(value)
	case "claim_expires_at":
		v.ClaimExpiresAt = timePtr(value)
	case "claim_role":
		if role, ok := value.(model.Role); ok {
			v.ClaimRole = role
		} else {
			v.ClaimRole = model.Role(value.(string))
		}
	}
}

func timePtr(value interface{}) *time.Time {
	if value == nil {
		return nil
	}
	if t, ok := value.(*time.Time); ok {
		return t
	}
	t := value.(time.Time)
	return &t
}

func (s *memStore) TryAssign(_ context.Context, id uuid.UUID, grant AssignmentGrant, now time.Time, force bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok || v.Status != grant.Lane {
		return false, nil
	}
	if !force {
		live := v.AssignmentState == model.AssignmentAssigned &&
			v.AssignedExpiresAt != nil && !v.AssignedExpiresAt.Before(now)
		if live {
			return false, nil
		}
	}
	expires := grant.ExpiresAt
	assignedAt := now
	v.AssignedTo = grant.AssignedTo
	v.AssignedRole = grant.Role
	v.AssignmentState = model.AssignmentAssigned
	v.AssignedAt = &assignedAt
	v.AssignedExpiresAt = &expires
	v.AssignedTTLMinutes = grant.TTLMinutes
	v.WorkPriority = grant.Priority
	v.WorkLane = grant.Lane
	return true, nil
}

func (s *memStore) TryClaim(_ context.Context, id uuid.UUID, grant ClaimGrant, now time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return false, nil
	}
	available := v.ClaimedBy == "" || v.ClaimedBy == grant.ClaimedBy ||
		v.ClaimExpiresAt == nil || v.ClaimExpiresAt.Before(now)
	if !available {
		return false, nil
	}
	expires := grant.ExpiresAt
	claimedAt := now
	v.ClaimedBy = grant.ClaimedBy
	v.ClaimedAt = &claimedAt
	v.ClaimExpiresAt = &expires
	v.ClaimRole = grant.Role
	return true, nil
}

func (s *memStore) ReleaseClaim(_ context.Context, id uuid.UUID, actor string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.videos[id]
	if !ok {
		return false, ErrNotFound
	}
	if v.ClaimedBy != actor || actor == "" {
		return false, nil
	}
	v.ClaimedBy = ""
	v.ClaimedAt = nil
	v.ClaimExpiresAt = nil
	v.ClaimRole = ""
	return true, nil
}

func (s *memStore) ReleaseExpiredClaims(_ context.Context, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, v := range s.videos {
		if v.ClaimedBy != "" && v.ClaimExpiresAt != nil && v.ClaimExpiresAt.Before(now) {
			v.ClaimedBy = ""
			v.ClaimedAt = nil
			v.ClaimExpiresAt = nil
			v.ClaimRole = ""
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

func (s *memStore) ExpireAssignments(_ context.Context, lane *model.VideoStatus, now time.Time) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []uuid.UUID
	for _, v := range s.videos {
		if lane != nil && v.Status != *lane {
			continue
		}
		if v.AssignmentState == model.AssignmentAssigned &&
			v.AssignedExpiresAt != nil && v.AssignedExpiresAt.Before(now) {
			v.AssignmentState = model.AssignmentExpired
			ids = append(ids, v.ID)
		}
	}
	return ids, nil
}

// memEvents records appended events for assertions.
type memEvents struct {
	mu     sync.Mutex
	events []model.WorkEvent
}

func (s *memEvents) Append(_ context.Context, event *model.WorkEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *event)
	return nil
}

func (s *memEvents) ofType(eventType string) []model.WorkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.WorkEvent
	for _, e := range s.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// recordingNotifier captures deliveries for assertions.
type recordingNotifier struct {
	mu    sync.Mutex
	sent  []string
	kinds []string
}

func (n *recordingNotifier) Notify(_ context.Context, userID, kind string, _ uuid.UUID, _ map[string]interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, userID)
	n.kinds = append(n.kinds, kind)
}

// stubGate scripts the billing gate's answer.
type stubGate struct {
	allowed bool
	err     error
}

func (g stubGate) CanAct(context.Context, string, bool) (bool, error) {
	return g.allowed, g.err
}
