package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/model"
)

// VideoRepository implements dispatch.VideoStore on Postgres. Every lease
// grant is a single conditional UPDATE; RowsAffected decides whether the
// compare-and-swap won.
type VideoRepository struct {
	db *gorm.DB
}

func NewVideoRepository(db *gorm.DB) *VideoRepository {
	return &VideoRepository{db: db}
}

func (r *VideoRepository) Create(ctx context.Context, video *model.Video) error {
	return r.db.WithContext(ctx).Create(video).Error
}

func (r *VideoRepository) Get(ctx context.Context, id uuid.UUID) (*model.Video, error) {
	var video model.Video
	err := r.db.WithContext(ctx).First(&video, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, dispatch.ErrNotFound
		}
		return nil, err
	}
	return &video, nil
}

func (r *VideoRepository) List(ctx context.Context, status *model.VideoStatus, limit, offset int) ([]model.Video, int64, error) {
	var videos []model.Video
	var total int64

	query := r.db.WithContext(ctx).Model(&model.Video{})
	if status != nil {
		query = query.Where("status = ?", *status)
	}
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Order("last_status_changed_at ASC").
		Limit(limit).
		Offset(offset).
		Find(&videos).Error

	return videos, total, err
}

func (r *VideoRepository) ListByStatus(ctx context.Context, status model.VideoStatus, limit int) ([]model.Video, error) {
	var videos []model.Video
	query := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("last_status_changed_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&videos).Error
	return videos, err
}

func (r *VideoRepository) ListLane(ctx context.Context, lane model.VideoStatus, now time.Time, limit int) ([]model.Video, error) {
	var videos []model.Video
	err := r.db.WithContext(ctx).
		Where("status = ?", lane).
		Where("(assignment_state IN ? OR assigned_expires_at IS NULL OR assigned_expires_at < ?)",
			[]model.AssignmentState{model.AssignmentUnassigned, model.AssignmentExpired}, now).
		Order("last_status_changed_at ASC").
		Limit(limit).
		Find(&videos).Error
	return videos, err
}

func (r *VideoRepository) Update(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	if len(fields) == 0 {
		return nil
	}
	if tags, ok := fields["tags"].([]string); ok {
		fields["tags"] = pq.StringArray(tags)
	}
	fields["updated_at"] = time.Now()
	res := r.db.WithContext(ctx).Model(&model.Video{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return dispatch.ErrNotFound
	}
	return nil
}

func (r *VideoRepository) TryAssign(ctx context.Context, id uuid.UUID, grant dispatch.AssignmentGrant, now time.Time, force bool) (bool, error) {
	query := r.db.WithContext(ctx).Model(&model.Video{}).
		Where("id = ? AND status = ?", id, grant.Lane)
	if !force {
		query = query.Where(
			"(assignment_state <> ? OR assigned_expires_at IS NULL OR assigned_expires_at < ?)",
			model.AssignmentAssigned, now,
		)
	}

	expires := grant.ExpiresAt
	res := query.Updates(map[string]interface{}{
		"assigned_to":          grant.AssignedTo,
		"assigned_role":        grant.Role,
		"assignment_state":     model.AssignmentAssigned,
		"assigned_at":          &now,
		"assigned_expires_at":  &expires,
		"assigned_ttl_minutes": grant.TTLMinutes,
		"work_priority":        grant.Priority,
		"work_lane":            grant.Lane,
		"updated_at":           now,
	})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VideoRepository) TryClaim(ctx context.Context, id uuid.UUID, grant dispatch.ClaimGrant, now time.Time) (bool, error) {
	expires := grant.ExpiresAt
	res := r.db.WithContext(ctx).Model(&model.Video{}).
		Where("id = ?", id).
		Where("(claimed_by = '' OR claimed_by = ? OR claim_expires_at IS NULL OR claim_expires_at < ?)",
			grant.ClaimedBy, now).
		Updates(map[string]interface{}{
			"claimed_by":       grant.ClaimedBy,
			"claimed_at":       &now,
			"claim_expires_at": &expires,
			"claim_role":       grant.Role,
			"updated_at":       now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VideoRepository) ReleaseClaim(ctx context.Context, id uuid.UUID, actor string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&model.Video{}).
		Where("id = ? AND claimed_by = ?", id, actor).
		Updates(map[string]interface{}{
			"claimed_by":       "",
			"claimed_at":       nil,
			"claim_expires_at": nil,
			"claim_role":       "",
			"updated_at":       time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *VideoRepository) ReleaseExpiredClaims(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := r.selectIDs(ctx, "claimed_by <> '' AND claim_expires_at < ?", now)
	if err != nil {
		return nil, err
	}

	released := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		res := r.db.WithContext(ctx).Model(&model.Video{}).
			Where("id = ? AND claimed_by <> '' AND claim_expires_at < ?", id, now).
			Updates(map[string]interface{}{
				"claimed_by":       "",
				"claimed_at":       nil,
				"claim_expires_at": nil,
				"claim_role":       "",
				"updated_at":       now,
			})
		if res.Error != nil {
			return released, res.Error
		}
		if res.RowsAffected > 0 {
			released = append(released, id)
		}
	}
	return released, nil
}

func (r *VideoRepository) ExpireAssignments(ctx context.Context, lane *model.VideoStatus, now time.Time) ([]uuid.UUID, error) {
	condition := "assignment_state = ? AND assigned_expires_at < ?"
	args := []interface{}{model.AssignmentAssigned, now}
	if lane != nil {
		condition += " AND status = ?"
		args = append(args, *lane)
	}

	ids, err := r.selectIDs(ctx, condition, args...)
	if err != nil {
		return nil, err
	}

	expired := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		res := r.db.WithContext(ctx).Model(&model.Video{}).
			Where("id = ? AND assignment_state = ? AND assigned_expires_at < ?",
				id, model.AssignmentAssigned, now).
			Updates(map[string]interface{}{
				"assignment_state": model.AssignmentExpired,
				"updated_at":       now,
			})
		if res.Error != nil {
			return expired, res.Error
		}
		if res.RowsAffected > 0 {
			expired = append(expired, id)
		}
	}
	return expired, nil
}

func (r *VideoRepository) CountByStatus(ctx context.Context) (map[model.VideoStatus]int64, error) {
	type row struct {
		Status model.VideoStatus
		Total  int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&model.Video{}).
		Select("status, count(*) as total").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.VideoStatus]int64, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.Total
	}
	return counts, nil
}

func (r *VideoRepository) selectIDs(ctx context.Context, condition string, args ...interface{}) ([]uuid.UUID, error) {
	var rows []model.Video
	err := r.db.WithContext(ctx).Model(&model.Video{}).
		Select("id").
		Where(condition, args...).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	return ids, nil
}
