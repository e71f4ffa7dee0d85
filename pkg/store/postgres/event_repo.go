package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/flashflow/flashflow/pkg/model"
)

// EventRepository persists the append-only audit trail. Rows double as the
// outbox for the Kafka relay; the audit payload itself is never mutated.
type EventRepository struct {
	db *gorm.DB
}

func NewEventRepository(db *gorm.DB) *EventRepository {
	return &EventRepository{db: db}
}

func (r *EventRepository) Append(ctx context.Context, event *model.WorkEvent) error {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Status == "" {
		event.Status = model.OutboxStatusPending
	}
	return r.db.WithContext(ctx).Create(event).Error
}

func (r *EventRepository) ListByVideo(ctx context.Context, videoID uuid.UUID, limit int) ([]model.WorkEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []model.WorkEvent
	err := r.db.WithContext(ctx).
		Where("work_item_id = ?", videoID).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *EventRepository) ListPending(ctx context.Context, limit int) ([]model.WorkEvent, error) {
	if limit <= 0 {
		limit = 100
	}
	var events []model.WorkEvent
	err := r.db.WithContext(ctx).
		Where("status = ?", model.OutboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

func (r *EventRepository) MarkPublished(ctx context.Context, eventID uuid.UUID, publishedAt time.Time) error {
	return r.db.WithContext(ctx).
		Model(&model.WorkEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status":       model.OutboxStatusPublished,
			"published_at": publishedAt,
		}).Error
}

func (r *EventRepository) MarkFailed(ctx context.Context, eventID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&model.WorkEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]interface{}{
			"status": model.OutboxStatusFailed,
		}).Error
}
