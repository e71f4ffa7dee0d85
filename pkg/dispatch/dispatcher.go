package dispatch

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/metrics"
	"github.com/flashflow/flashflow/pkg/model"
)

// Dispatcher selects the best eligible work item for a requesting worker and
// grants a time-boxed assignment. Grants go through the store's conditional
// TryAssign so two concurrent dispatches never hand out the same item.
type Dispatcher struct {
	videos    VideoStore
	events    EventStore
	notifier  Notifier
	gate      Gate
	leases    *LeaseManager
	reclaimer *Reclaimer
	rules     Rules
	logger    *zap.Logger
	now       func() time.Time
}

func NewDispatcher(videos VideoStore, events EventStore, notifier Notifier, gate Gate, rules Rules, logger *zap.Logger) *Dispatcher {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if gate == nil {
		gate = AllowAllGate{}
	}
	return &Dispatcher{
		videos:    videos,
		events:    events,
		notifier:  notifier,
		gate:      gate,
		leases:    NewLeaseManager(rules),
		reclaimer: NewReclaimer(videos, events, rules, logger),
		rules:     rules,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock overrides the dispatcher's time source. Tests only.
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	d.reclaimer.now = now
	return d
}

type DispatchRequest struct {
	Role        model.Role
	Requester   string
	TTLOverride time.Duration
	IsAdmin     bool
	Force       bool
}

type candidate struct {
	video *model.Video
	sla   SLAResult
}

// Dispatch resolves the role's lane, reclaims expired leases in it, ranks the
// eligible items by SLA urgency, and grants the top one. ErrNoWorkAvailable
// is the empty result, not a failure.
func (d *Dispatcher) Dispatch(ctx context.Context, req DispatchRequest) (*model.Video, error) {
	if req.Requester == "" && !d.rules.AllowAnonymous {
		return nil, newError(KindValidation, CodeInvalidInput, "requester identity is required")
	}
	if !req.Role.Valid() {
		return nil, newError(KindValidation, CodeInvalidInput, "unknown role %q", req.Role)
	}
	if err := d.leases.AuthorizeForce(req.Force, req.IsAdmin); err != nil {
		return nil, err
	}
	if err := d.checkGate(ctx, req.Requester, req.IsAdmin); err != nil {
		return nil, err
	}

	lane, ok := d.rules.Lanes[req.Role]
	if !ok {
		return nil, newError(KindValidation, CodeInvalidInput, "role %q has no dispatch lane", req.Role)
	}

	now := d.now()

	// Expired assignments in this lane become eligible within the same call.
	if _, err := d.reclaimer.ReclaimExpired(ctx, &lane); err != nil {
		d.logger.Warn("lane reclaim failed, continuing with current lease state",
			zap.String("lane", string(lane)), zap.Error(err))
	}

	items, err := d.videos.ListLane(ctx, lane, now, d.rules.CandidateLimit)
	if err != nil {
		return nil, err
	}

	candidates := d.filter(items, req, now)
	if len(candidates) == 0 {
		metrics.DispatchesTotal.WithLabelValues(string(req.Role), "no_work").Inc()
		return nil, ErrNoWorkAvailable
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].sla.Tier != candidates[j].sla.Tier {
			return candidates[i].sla.Tier.rank() < candidates[j].sla.Tier.rank()
		}
		return candidates[i].sla.PriorityScore > candidates[j].sla.PriorityScore
	})

	ttl := d.rules.TTLFor(req.Role, req.TTLOverride)

	// Walk best-first: a lost CAS race just means another worker got that
	// item, so the next candidate is still fair game.
	for _, c := range candidates {
		granted, err := d.grant(ctx, c, req, ttl, now)
		if err != nil {
			return nil, err
		}
		if granted != nil {
			metrics.DispatchesTotal.WithLabelValues(string(req.Role), "assigned").Inc()
			return granted, nil
		}
	}

	metrics.DispatchesTotal.WithLabelValues(string(req.Role), "no_work").Inc()
	return nil, ErrNoWorkAvailable
}

func (d *Dispatcher) filter(items []model.Video, req DispatchRequest, now time.Time) []candidate {
	candidates := make([]candidate, 0, len(items))
	for i := range items {
		v := &items[i]
		if v.Status.Terminal() {
			continue
		}
		// Claimed by someone else and still live: hands off, unless an
		// admin is force-dispatching.
		if err := d.leases.CheckClaimOwnership(v, req.Requester, now); err != nil && !(req.Force && req.IsAdmin) {
			continue
		}
		if !CanActNext(req.Role, v) {
			continue
		}
		candidates = append(candidates, candidate{
			video: v,
			sla:   Score(v.Status, v.LastStatusChangedAt, now, d.rules),
		})
	}
	return candidates
}

func (d *Dispatcher) grant(ctx context.Context, c candidate, req DispatchRequest, ttl time.Duration, now time.Time) (*model.Video, error) {
	grant := AssignmentGrant{
		AssignedTo: req.Requester,
		Role:       req.Role,
		Lane:       c.video.Status,
		ExpiresAt:  now.Add(ttl),
		TTLMinutes: int(ttl / time.Minute),
		Priority:   c.sla.PriorityScore,
	}

	ok, err := d.videos.TryAssign(ctx, c.video.ID, grant, now, req.Force && req.IsAdmin)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	// A forced grant may have displaced a live holder; that is never silent.
	if displaced := AssignmentOf(c.video); req.Force && req.IsAdmin && displaced.Active(now) {
		d.appendEvent(ctx, &model.WorkEvent{
			EventID:       uuid.New(),
			WorkItemID:    c.video.ID,
			EventType:     model.EventStaleRelease,
			CorrelationID: uuid.NewString(),
			Actor:         req.Requester,
			Details: model.JSONB{
				"lease_kind": "assignment",
				"displaced":  displaced.To,
				"forced":     true,
			},
		})
	}

	d.appendEvent(ctx, &model.WorkEvent{
		EventID:       uuid.New(),
		WorkItemID:    c.video.ID,
		EventType:     model.EventWorkAssigned,
		CorrelationID: uuid.NewString(),
		Actor:         req.Requester,
		Details: model.JSONB{
			"role":        string(req.Role),
			"lane":        string(c.video.Status),
			"ttl_minutes": grant.TTLMinutes,
			"sla_status":  string(c.sla.Tier),
			"priority":    c.sla.PriorityScore,
			"forced":      req.Force && req.IsAdmin,
		},
	})

	d.notifier.Notify(ctx, req.Requester, model.EventWorkAssigned, c.video.ID, map[string]interface{}{
		"title":      c.video.Title,
		"status":     string(c.video.Status),
		"expires_at": grant.ExpiresAt,
	})

	updated, err := d.videos.Get(ctx, c.video.ID)
	if err != nil {
		// The grant committed; reconstruct from what we know rather than
		// failing the dispatch.
		d.logger.Warn("failed to re-read granted item", zap.String("video_id", c.video.ID.String()), zap.Error(err))
		v := *c.video
		v.AssignedTo = grant.AssignedTo
		v.AssignedRole = grant.Role
		v.AssignmentState = model.AssignmentAssigned
		v.AssignedAt = &now
		expires := grant.ExpiresAt
		v.AssignedExpiresAt = &expires
		v.AssignedTTLMinutes = grant.TTLMinutes
		v.WorkPriority = grant.Priority
		v.WorkLane = grant.Lane
		return &v, nil
	}
	return updated, nil
}

// checkGate consults the billing gate before any lease logic. A degraded
// gate fails open unless configured otherwise: a broken collaborator must
// not silently starve the pipeline.
func (d *Dispatcher) checkGate(ctx context.Context, actor string, isAdmin bool) error {
	allowed, err := d.gate.CanAct(ctx, actor, isAdmin)
	if err != nil {
		if d.rules.GatingFailClosed {
			return newError(KindUpstream, CodeUpgradeRequired, "billing gate unreachable")
		}
		d.logger.Warn("billing gate unreachable, failing open", zap.Error(err))
		return nil
	}
	if !allowed {
		return newError(KindUpstream, CodeUpgradeRequired, "account is not allowed to take work")
	}
	return nil
}

func (d *Dispatcher) appendEvent(ctx context.Context, event *model.WorkEvent) {
	if d.events == nil {
		return
	}
	if err := d.events.Append(ctx, event); err != nil {
		d.logger.Warn("failed to append work event",
			zap.String("event_type", event.EventType),
			zap.String("video_id", event.WorkItemID.String()),
			zap.Error(err))
	}
}
