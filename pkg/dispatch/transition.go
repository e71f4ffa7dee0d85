package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/metrics"
	"github.com/flashflow/flashflow/pkg/model"
)

// Updates carries the optional field changes a transition may apply. Nil
// pointers leave the stored value untouched.
type Updates struct {
	Title             *string
	ScriptText        *string
	ScriptLocked      *bool
	ScriptNotRequired *bool
	FinalMediaURL     *string
	AltMediaURL       *string
	PostedURL         *string
	PostedPlatform    *string
	RecordingNotes    *string
	EditingNotes      *string
	PostingNotes      *string
	Tags              []string
	RecordedAt        *time.Time
	EditedAt          *time.Time
	PostedAt          *time.Time
}

type TransitionRequest struct {
	VideoID uuid.UUID
	Target  model.VideoStatus
	Updates Updates
	Actor   string
	Role    model.Role
	IsAdmin bool
	Force   bool
}

// PostedHook is best-effort side work run when an item reaches POSTED
// (downstream suggestion generation, usage counters). A hook failure is
// logged and never rolls back the transition.
type PostedHook func(ctx context.Context, v *model.Video) error

// Executor applies validated status changes, settles the actor's leases, and
// drives auto-handoff to the next role.
type Executor struct {
	videos      VideoStore
	events      EventStore
	notifier    Notifier
	gate        Gate
	leases      *LeaseManager
	rules       Rules
	logger      *zap.Logger
	now         func() time.Time
	postedHooks []PostedHook
}

func NewExecutor(videos VideoStore, events EventStore, notifier Notifier, gate Gate, rules Rules, logger *zap.Logger) *Executor {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if gate == nil {
		gate = AllowAllGate{}
	}
	return &Executor{
		videos:   videos,
		events:   events,
		notifier: notifier,
		gate:     gate,
		leases:   NewLeaseManager(rules),
		rules:    rules,
		logger:   logger,
		now:      time.Now,
	}
}

// WithClock overrides the executor's time source. Tests only.
func (e *Executor) WithClock(now func() time.Time) *Executor {
	e.now = now
	return e
}

// OnPosted registers best-effort side work for the terminal POSTED status.
func (e *Executor) OnPosted(hooks ...PostedHook) *Executor {
	e.postedHooks = append(e.postedHooks, hooks...)
	return e
}

// Transition validates, authorizes, and commits a status change, then settles
// leases and hands the item to the next role per the handoff table.
func (e *Executor) Transition(ctx context.Context, req TransitionRequest) (*model.Video, error) {
	if !req.Target.Valid() {
		return nil, newError(KindValidation, CodeInvalidStatus, "unsupported status %q", req.Target)
	}
	if req.Actor == "" && !e.rules.AllowAnonymous {
		return nil, newError(KindValidation, CodeInvalidInput, "actor identity is required")
	}
	if err := e.leases.AuthorizeForce(req.Force, req.IsAdmin); err != nil {
		return nil, err
	}
	if err := e.checkGate(ctx, req.Actor, req.IsAdmin); err != nil {
		return nil, err
	}

	v, err := e.videos.Get(ctx, req.VideoID)
	if err != nil {
		if err == ErrNotFound {
			return nil, newError(KindValidation, CodeVideoNotFound, "video %s not found", req.VideoID)
		}
		return nil, err
	}

	now := e.now()
	force := req.Force && req.IsAdmin

	if v.Status.Terminal() && !force {
		return nil, newError(KindState, CodeTerminalStatus,
			"video is %s and accepts no further transitions", v.Status)
	}

	if !force {
		if err := e.leases.CheckClaimOwnership(v, req.Actor, now); err != nil {
			return nil, err
		}
		if err := e.leases.CheckAssignmentOwnership(v, req.Actor, now); err != nil {
			return nil, err
		}
		if err := e.leases.CheckRoleMatch(req.Role, req.Target); err != nil {
			return nil, err
		}
	}

	merged := *v
	applyUpdates(&merged, req.Updates)
	if err := ValidateTransition(req.Target, &merged, force); err != nil {
		return nil, err
	}

	fromStatus := v.Status
	statusChanged := req.Target != fromStatus

	fields := fieldUpdates(req.Updates)
	if statusChanged {
		fields["status"] = req.Target
		fields["last_status_changed_at"] = now
		stampStage(fields, &merged, req.Target, now)
	}

	held := AssignmentOf(v)
	actorHoldsAssignment := held.Active(now) && held.To == req.Actor

	// Completing the actor's own lease is part of the same write: the lease
	// is settled atomically with the status change.
	if statusChanged && actorHoldsAssignment {
		fields["assignment_state"] = model.AssignmentCompleted
	}
	// A transition consumes the actor's claim.
	if statusChanged && ClaimOf(v).OwnedBy(req.Actor, now) {
		fields["claimed_by"] = ""
		fields["claimed_at"] = nil
		fields["claim_expires_at"] = nil
		fields["claim_role"] = ""
	}

	if err := e.videos.Update(ctx, v.ID, fields); err != nil {
		return nil, err
	}

	correlationID := uuid.NewString()

	if statusChanged {
		metrics.TransitionsTotal.WithLabelValues(string(fromStatus), string(req.Target)).Inc()
		e.appendEvent(ctx, &model.WorkEvent{
			EventID:       uuid.New(),
			WorkItemID:    v.ID,
			EventType:     model.EventStatusChanged,
			CorrelationID: correlationID,
			Actor:         req.Actor,
			FromStatus:    fromStatus,
			ToStatus:      req.Target,
			Details:       transitionDetails(&merged, force),
		})

		if actorHoldsAssignment {
			e.appendEvent(ctx, &model.WorkEvent{
				EventID:       uuid.New(),
				WorkItemID:    v.ID,
				EventType:     model.EventAssignmentCompleted,
				CorrelationID: correlationID,
				Actor:         req.Actor,
				FromStatus:    fromStatus,
				ToStatus:      req.Target,
				Details:       model.JSONB{"role": string(held.Role)},
			})
		}

		e.handoff(ctx, v.ID, fromStatus, req.Target, correlationID, now)
	}

	updated, err := e.videos.Get(ctx, v.ID)
	if err != nil {
		return nil, err
	}

	if statusChanged && req.Target == model.StatusPosted {
		e.runPostedHooks(ctx, updated)
	}

	return updated, nil
}

// handoff looks up the transition in the handoff table and either grants the
// next role's fallback user a fresh assignment or parks the item unassigned
// in the next lane.
func (e *Executor) handoff(ctx context.Context, id uuid.UUID, from, to model.VideoStatus, correlationID string, now time.Time) {
	nextRole, ok := e.rules.NextRole(from, to)
	if !ok || nextRole == "" {
		return
	}

	if fallback, ok := e.rules.FallbackUsers[nextRole]; ok && fallback != "" {
		ttl := e.rules.TTLFor(nextRole, 0)
		grant := AssignmentGrant{
			AssignedTo: fallback,
			Role:       nextRole,
			Lane:       to,
			ExpiresAt:  now.Add(ttl),
			TTLMinutes: int(ttl / time.Minute),
		}
		granted, err := e.videos.TryAssign(ctx, id, grant, now, false)
		if err != nil || !granted {
			e.logger.Warn("auto-handoff grant failed, leaving item for dispatch",
				zap.String("video_id", id.String()),
				zap.String("next_role", string(nextRole)),
				zap.Error(err))
			metrics.HandoffsTotal.WithLabelValues(string(nextRole), "failed").Inc()
			e.parkUnassigned(ctx, id, nextRole, correlationID)
			return
		}

		metrics.HandoffsTotal.WithLabelValues(string(nextRole), "assigned").Inc()
		e.appendEvent(ctx, &model.WorkEvent{
			EventID:       uuid.New(),
			WorkItemID:    id,
			EventType:     model.EventAutoHandoff,
			CorrelationID: correlationID,
			Actor:         "system",
			FromStatus:    from,
			ToStatus:      to,
			Details: model.JSONB{
				"next_role":   string(nextRole),
				"assigned_to": fallback,
				"ttl_minutes": grant.TTLMinutes,
			},
		})
		e.notifier.Notify(ctx, fallback, model.EventAutoHandoff, id, map[string]interface{}{
			"role":       string(nextRole),
			"expires_at": grant.ExpiresAt,
		})
		return
	}

	metrics.HandoffsTotal.WithLabelValues(string(nextRole), "pending").Inc()
	e.parkUnassigned(ctx, id, nextRole, correlationID)
	e.appendEvent(ctx, &model.WorkEvent{
		EventID:       uuid.New(),
		WorkItemID:    id,
		EventType:     model.EventHandoffPending,
		CorrelationID: correlationID,
		Actor:         "system",
		FromStatus:    from,
		ToStatus:      to,
		Details:       model.JSONB{"next_role": string(nextRole)},
	})
}

func (e *Executor) parkUnassigned(ctx context.Context, id uuid.UUID, nextRole model.Role, correlationID string) {
	err := e.videos.Update(ctx, id, map[string]interface{}{
		"assignment_state": model.AssignmentUnassigned,
		"assigned_to":      "",
		"assigned_role":    nextRole,
	})
	if err != nil {
		e.logger.Warn("failed to park item for next role",
			zap.String("video_id", id.String()),
			zap.String("next_role", string(nextRole)),
			zap.Error(err))
	}
}

func (e *Executor) runPostedHooks(ctx context.Context, v *model.Video) {
	for _, hook := range e.postedHooks {
		if err := hook(ctx, v); err != nil {
			e.logger.Warn("posted side work failed",
				zap.String("video_id", v.ID.String()), zap.Error(err))
		}
	}
}

func (e *Executor) checkGate(ctx context.Context, actor string, isAdmin bool) error {
	allowed, err := e.gate.CanAct(ctx, actor, isAdmin)
	if err != nil {
		if e.rules.GatingFailClosed {
			return newError(KindUpstream, CodeUpgradeRequired, "billing gate unreachable")
		}
		e.logger.Warn("billing gate unreachable, failing open", zap.Error(err))
		return nil
	}
	if !allowed {
		return newError(KindUpstream, CodeUpgradeRequired, "account is not allowed to act")
	}
	return nil
}

func (e *Executor) appendEvent(ctx context.Context, event *model.WorkEvent) {
	if e.events == nil {
		return
	}
	if err := e.events.Append(ctx, event); err != nil {
		e.logger.Warn("failed to append work event",
			zap.String("event_type", event.EventType),
			zap.String("video_id", event.WorkItemID.String()),
			zap.Error(err))
	}
}

func applyUpdates(v *model.Video, u Updates) {
	if u.Title != nil {
		v.Title = *u.Title
	}
	if u.ScriptText != nil {
		v.ScriptText = *u.ScriptText
	}
	if u.ScriptLocked != nil {
		v.ScriptLocked = *u.ScriptLocked
	}
	if u.ScriptNotRequired != nil {
		v.ScriptNotRequired = *u.ScriptNotRequired
	}
	if u.FinalMediaURL != nil {
		v.FinalMediaURL = *u.FinalMediaURL
	}
	if u.AltMediaURL != nil {
		v.AltMediaURL = *u.AltMediaURL
	}
	if u.PostedURL != nil {
		v.PostedURL = *u.PostedURL
	}
	if u.PostedPlatform != nil {
		v.PostedPlatform = *u.PostedPlatform
	}
	if u.RecordingNotes != nil {
		v.RecordingNotes = *u.RecordingNotes
	}
	if u.EditingNotes != nil {
		v.EditingNotes = *u.EditingNotes
	}
	if u.PostingNotes != nil {
		v.PostingNotes = *u.PostingNotes
	}
	if u.Tags != nil {
		v.Tags = u.Tags
	}
	if u.RecordedAt != nil {
		v.RecordedAt = u.RecordedAt
	}
	if u.EditedAt != nil {
		v.EditedAt = u.EditedAt
	}
	if u.PostedAt != nil {
		v.PostedAt = u.PostedAt
	}
}

func fieldUpdates(u Updates) map[string]interface{} {
	fields := map[string]interface{}{}
	if u.Title != nil {
		fields["title"] = *u.Title
	}
	if u.ScriptText != nil {
		fields["script_text"] = *u.ScriptText
	}
	if u.ScriptLocked != nil {
		fields["script_locked"] = *u.ScriptLocked
	}
	if u.ScriptNotRequired != nil {
		fields["script_not_required"] = *u.ScriptNotRequired
	}
	if u.FinalMediaURL != nil {
		fields["final_media_url"] = *u.FinalMediaURL
	}
	if u.AltMediaURL != nil {
		fields["alt_media_url"] = *u.AltMediaURL
	}
	if u.PostedURL != nil {
		fields["posted_url"] = *u.PostedURL
	}
	if u.PostedPlatform != nil {
		fields["posted_platform"] = *u.PostedPlatform
	}
	if u.RecordingNotes != nil {
		fields["recording_notes"] = *u.RecordingNotes
	}
	if u.EditingNotes != nil {
		fields["editing_notes"] = *u.EditingNotes
	}
	if u.PostingNotes != nil {
		fields["posting_notes"] = *u.PostingNotes
	}
	if u.Tags != nil {
		fields["tags"] = u.Tags
	}
	if u.RecordedAt != nil {
		fields["recorded_at"] = u.RecordedAt
	}
	if u.EditedAt != nil {
		fields["edited_at"] = u.EditedAt
	}
	if u.PostedAt != nil {
		fields["posted_at"] = u.PostedAt
	}
	return fields
}

// stampStage records the canonical timestamp the first time a stage is
// reached, unless the caller supplied one explicitly.
func stampStage(fields map[string]interface{}, merged *model.Video, target model.VideoStatus, now time.Time) {
	switch target {
	case model.StatusRecorded:
		if merged.RecordedAt == nil {
			fields["recorded_at"] = &now
		}
	case model.StatusEdited:
		if merged.EditedAt == nil {
			fields["edited_at"] = &now
		}
	case model.StatusPosted:
		if merged.PostedAt == nil {
			fields["posted_at"] = &now
		}
	}
}

func transitionDetails(merged *model.Video, forced bool) model.JSONB {
	details := model.JSONB{"forced": forced}
	if merged.RecordingNotes != "" {
		details["recording_notes"] = merged.RecordingNotes
	}
	if merged.EditingNotes != "" {
		details["editing_notes"] = merged.EditingNotes
	}
	if merged.PostingNotes != "" {
		details["posting_notes"] = merged.PostingNotes
	}
	if merged.PostedURL != "" {
		details["posted_url"] = merged.PostedURL
	}
	if merged.PostedPlatform != "" {
		details["posted_platform"] = merged.PostedPlatform
	}
	return details
}
