package dispatch

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/model"
)

// ClaimService owns the manual, user-initiated lease. Acquisition goes
// through the store's conditional TryClaim so two workers never both hold a
// live claim on the same item.
type ClaimService struct {
	videos VideoStore
	events EventStore
	rules  Rules
	logger *zap.Logger
	now    func() time.Time
}

func NewClaimService(videos VideoStore, events EventStore, rules Rules, logger *zap.Logger) *ClaimService {
	return &ClaimService{
		videos: videos,
		events: events,
		rules:  rules,
		logger: logger,
		now:    time.Now,
	}
}

// WithClock overrides the service's time source. Tests only.
func (s *ClaimService) WithClock(now func() time.Time) *ClaimService {
	s.now = now
	return s
}

// Acquire grants actor a time-boxed claim on the item. Re-claiming an item
// you already hold refreshes the expiry.
func (s *ClaimService) Acquire(ctx context.Context, videoID uuid.UUID, actor string, role model.Role, ttl time.Duration) (*model.Video, error) {
	if actor == "" && !s.rules.AllowAnonymous {
		return nil, newError(KindValidation, CodeInvalidInput, "actor identity is required")
	}
	if !role.Valid() {
		return nil, newError(KindValidation, CodeInvalidInput, "unknown role %q", role)
	}
	if ttl <= 0 {
		ttl = s.rules.ClaimTTL
	}

	v, err := s.videos.Get(ctx, videoID)
	if err != nil {
		if err == ErrNotFound {
			return nil, newError(KindValidation, CodeVideoNotFound, "video %s not found", videoID)
		}
		return nil, err
	}
	if v.Status.Terminal() {
		return nil, newError(KindState, CodeTerminalStatus,
			"video is %s and accepts no further leasing", v.Status)
	}

	now := s.now()
	grant := ClaimGrant{ClaimedBy: actor, Role: role, ExpiresAt: now.Add(ttl)}
	ok, err := s.videos.TryClaim(ctx, videoID, grant, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		current, err := s.videos.Get(ctx, videoID)
		if err == nil && ClaimOf(current).Active(now) {
			return nil, newError(KindAuthorization, CodeClaimHeld,
				"item is claimed by %s", current.ClaimedBy)
		}
		return nil, newError(KindAuthorization, CodeClaimHeld, "item claim was taken concurrently")
	}

	s.appendEvent(ctx, videoID, model.EventClaimAcquired, actor, model.JSONB{
		"role":       string(role),
		"expires_at": grant.ExpiresAt,
	})

	return s.videos.Get(ctx, videoID)
}

// Release clears actor's own claim. Releasing a claim you do not hold is an
// authorization error; an already-expired claim releases cleanly.
func (s *ClaimService) Release(ctx context.Context, videoID uuid.UUID, actor string) error {
	if actor == "" && !s.rules.AllowAnonymous {
		return newError(KindValidation, CodeInvalidInput, "actor identity is required")
	}

	ok, err := s.videos.ReleaseClaim(ctx, videoID, actor)
	if err != nil {
		if err == ErrNotFound {
			return newError(KindValidation, CodeVideoNotFound, "video %s not found", videoID)
		}
		return err
	}
	if !ok {
		return newError(KindAuthorization, CodeClaimNotOwned, "you do not hold the claim on this item")
	}

	s.appendEvent(ctx, videoID, model.EventClaimReleased, actor, nil)
	return nil
}

func (s *ClaimService) appendEvent(ctx context.Context, videoID uuid.UUID, eventType, actor string, details model.JSONB) {
	if s.events == nil {
		return
	}
	event := &model.WorkEvent{
		EventID:       uuid.New(),
		WorkItemID:    videoID,
		EventType:     eventType,
		CorrelationID: uuid.NewString(),
		Actor:         actor,
		Details:       details,
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.Warn("failed to append claim event",
			zap.String("event_type", eventType),
			zap.String("video_id", videoID.String()),
			zap.Error(err))
	}
}
