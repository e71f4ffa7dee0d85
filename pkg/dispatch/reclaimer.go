package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/metrics"
	"github.com/flashflow/flashflow/pkg/model"
)

// ReclaimResult reports what a sweep narrowed.
type ReclaimResult struct {
	Count int         `json:"count"`
	IDs   []uuid.UUID `json:"ids"`
}

// Reclaimer clears expired leases system-wide. It only ever narrows leases
// whose expiry has already passed, so it is safe to run concurrently with
// dispatch and transitions, and running it twice is a no-op the second time.
type Reclaimer struct {
	videos VideoStore
	events EventStore
	rules  Rules
	logger *zap.Logger
	now    func() time.Time
}

func NewReclaimer(videos VideoStore, events EventStore, rules Rules, logger *zap.Logger) *Reclaimer {
	return &Reclaimer{
		videos: videos,
		events: events,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the reclaimer's time source. Tests only.
func (r *Reclaimer) WithClock(now func() time.Time) *Reclaimer {
	r.now = now
	return r
}

// ReclaimExpired sweeps both lease kinds. A non-nil lane scopes the
// assignment sweep to that status; expired claims are always cleared
// system-wide since claims are not lane-bound.
func (r *Reclaimer) ReclaimExpired(ctx context.Context, lane *model.VideoStatus) (ReclaimResult, error) {
	now := r.now()
	result := ReclaimResult{IDs: []uuid.UUID{}}

	claimIDs, err := r.videos.ReleaseExpiredClaims(ctx, now)
	if err != nil {
		return result, err
	}
	for _, id := range claimIDs {
		r.emit(ctx, id, "claim")
	}
	if len(claimIDs) > 0 {
		metrics.ReclaimedLeasesTotal.WithLabelValues("claim").Add(float64(len(claimIDs)))
	}

	assignIDs, err := r.videos.ExpireAssignments(ctx, lane, now)
	if err != nil {
		result.Count = len(claimIDs)
		result.IDs = claimIDs
		return result, err
	}
	for _, id := range assignIDs {
		r.emit(ctx, id, "assignment")
	}
	if len(assignIDs) > 0 {
		metrics.ReclaimedLeasesTotal.WithLabelValues("assignment").Add(float64(len(assignIDs)))
	}

	result.IDs = append(claimIDs, assignIDs...)
	result.Count = len(result.IDs)
	return result, nil
}

func (r *Reclaimer) emit(ctx context.Context, id uuid.UUID, kind string) {
	if r.events == nil {
		return
	}
	event := &model.WorkEvent{
		EventID:       uuid.New(),
		WorkItemID:    id,
		EventType:     model.EventStaleRelease,
		CorrelationID: uuid.NewString(),
		Actor:         "system",
		Details:       model.JSONB{"lease_kind": kind},
	}
	if err := r.events.Append(ctx, event); err != nil {
		r.logger.Warn("failed to append stale_release event",
			zap.String("video_id", id.String()), zap.Error(err))
	}
}
