package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/apiserver/middleware"
	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/model"
	"github.com/flashflow/flashflow/pkg/store/postgres"
)

type VideoHandler struct {
	videos   *postgres.VideoRepository
	events   *postgres.EventRepository
	executor *dispatch.Executor
	claims   *dispatch.ClaimService
	rules    dispatch.Rules
	logger   *zap.Logger
}

func NewVideoHandler(
	videos *postgres.VideoRepository,
	events *postgres.EventRepository,
	executor *dispatch.Executor,
	claims *dispatch.ClaimService,
	rules dispatch.Rules,
	logger *zap.Logger,
) *VideoHandler {
	return &VideoHandler{
		videos:   videos,
		events:   events,
		executor: executor,
		claims:   claims,
		rules:    rules,
		logger:   logger,
	}
}

type videoCreateRequest struct {
	Title             string   `json:"title" binding:"required"`
	ScriptText        string   `json:"script_text"`
	ScriptLocked      bool     `json:"script_locked"`
	ScriptNotRequired bool     `json:"script_not_required"`
	Tags              []string `json:"tags"`
}

type videoResponse struct {
	ID                  string              `json:"id"`
	Title               string              `json:"title"`
	Status              string              `json:"status"`
	LastStatusChangedAt string              `json:"last_status_changed_at"`
	SLA                 *dispatch.SLAResult `json:"sla,omitempty"`

	ScriptText        string   `json:"script_text,omitempty"`
	ScriptLocked      bool     `json:"script_locked"`
	ScriptNotRequired bool     `json:"script_not_required"`
	FinalMediaURL     string   `json:"final_media_url,omitempty"`
	AltMediaURL       string   `json:"alt_media_url,omitempty"`
	PostedURL         string   `json:"posted_url,omitempty"`
	PostedPlatform    string   `json:"posted_platform,omitempty"`
	RecordingNotes    string   `json:"recording_notes,omitempty"`
	EditingNotes      string   `json:"editing_notes,omitempty"`
	PostingNotes      string   `json:"posting_notes,omitempty"`
	Tags              []string `json:"tags,omitempty"`

	RecordedAt *string `json:"recorded_at,omitempty"`
	EditedAt   *string `json:"edited_at,omitempty"`
	PostedAt   *string `json:"posted_at,omitempty"`

	ClaimedBy      string  `json:"claimed_by,omitempty"`
	ClaimRole      string  `json:"claim_role,omitempty"`
	ClaimExpiresAt *string `json:"claim_expires_at,omitempty"`

	AssignedTo        string  `json:"assigned_to,omitempty"`
	AssignedRole      string  `json:"assigned_role,omitempty"`
	AssignmentState   string  `json:"assignment_state"`
	AssignedExpiresAt *string `json:"assigned_expires_at,omitempty"`
	WorkPriority      float64 `json:"work_priority"`

	CreatedAt string `json:"created_at"`
}

func mapVideo(v *model.Video) videoResponse {
	return videoResponse{
		ID:                  v.ID.String(),
		Title:               v.Title,
		Status:              string(v.Status),
		LastStatusChangedAt: v.LastStatusChangedAt.UTC().Format(time.RFC3339Nano),
		ScriptText:          v.ScriptText,
		ScriptLocked:        v.ScriptLocked,
		ScriptNotRequired:   v.ScriptNotRequired,
		FinalMediaURL:       v.FinalMediaURL,
		AltMediaURL:         v.AltMediaURL,
		PostedURL:           v.PostedURL,
		PostedPlatform:      v.PostedPlatform,
		RecordingNotes:      v.RecordingNotes,
		EditingNotes:        v.EditingNotes,
		PostingNotes:        v.PostingNotes,
		Tags:                v.Tags,
		RecordedAt:          formatTime(v.RecordedAt),
		EditedAt:            formatTime(v.EditedAt),
		PostedAt:            formatTime(v.PostedAt),
		ClaimedBy:           v.ClaimedBy,
		ClaimRole:           string(v.ClaimRole),
		ClaimExpiresAt:      formatTime(v.ClaimExpiresAt),
		AssignedTo:          v.AssignedTo,
		AssignedRole:        string(v.AssignedRole),
		AssignmentState:     string(v.AssignmentState),
		AssignedExpiresAt:   formatTime(v.AssignedExpiresAt),
		WorkPriority:        v.WorkPriority,
		CreatedAt:           v.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func (h *VideoHandler) Create(c *gin.Context) {
	var req videoCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	now := time.Now().UTC()
	video := &model.Video{
		ID:                  uuid.New(),
		Title:               req.Title,
		Status:              model.StatusNotRecorded,
		LastStatusChangedAt: now,
		ScriptText:          req.ScriptText,
		ScriptLocked:        req.ScriptLocked,
		ScriptNotRequired:   req.ScriptNotRequired,
		Tags:                req.Tags,
		AssignmentState:     model.AssignmentUnassigned,
	}

	if err := h.videos.Create(c.Request.Context(), video); err != nil {
		h.logger.Error("failed to create video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create video"})
		return
	}

	c.JSON(http.StatusCreated, mapVideo(video))
}

func (h *VideoHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	video, err := h.videos.Get(c.Request.Context(), id)
	if err != nil {
		if err == dispatch.ErrNotFound {
			c.JSON(http.StatusNotFound, gin.H{"error": "video not found"})
			return
		}
		h.logger.Error("failed to load video", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load video"})
		return
	}

	response := mapVideo(video)
	if !video.Status.Terminal() {
		sla := dispatch.Score(video.Status, video.LastStatusChangedAt, time.Now(), h.rules)
		response.SLA = &sla
	}
	c.JSON(http.StatusOK, response)
}

// Queue lists work items with their SLA annotations, oldest-in-status first.
func (h *VideoHandler) Queue(c *gin.Context) {
	var status *model.VideoStatus
	if raw := c.Query("status"); raw != "" {
		s := model.VideoStatus(raw)
		if !s.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status filter"})
			return
		}
		status = &s
	}

	limit := parseLimit(c.Query("limit"), 100)
	offset := parseOffset(c.Query("offset"))

	videos, total, err := h.videos.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.logger.Error("failed to list queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queue"})
		return
	}

	now := time.Now()
	items := make([]videoResponse, 0, len(videos))
	for i := range videos {
		response := mapVideo(&videos[i])
		if !videos[i].Status.Terminal() {
			sla := dispatch.Score(videos[i].Status, videos[i].LastStatusChangedAt, now, h.rules)
			response.SLA = &sla
		}
		items = append(items, response)
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "total": total})
}

type transitionRequest struct {
	Status            string     `json:"status" binding:"required"`
	Force             bool       `json:"force"`
	Title             *string    `json:"title"`
	ScriptText        *string    `json:"script_text"`
	ScriptLocked      *bool      `json:"script_locked"`
	ScriptNotRequired *bool      `json:"script_not_required"`
	FinalMediaURL     *string    `json:"final_media_url"`
	AltMediaURL       *string    `json:"alt_media_url"`
	PostedURL         *string    `json:"posted_url"`
	PostedPlatform    *string    `json:"posted_platform"`
	RecordingNotes    *string    `json:"recording_notes"`
	EditingNotes      *string    `json:"editing_notes"`
	PostingNotes      *string    `json:"posting_notes"`
	Tags              []string   `json:"tags"`
	RecordedAt        *time.Time `json:"recorded_at"`
	EditedAt          *time.Time `json:"edited_at"`
	PostedAt          *time.Time `json:"posted_at"`
}

func (h *VideoHandler) Transition(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	var req transitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	actorID, role, isAdmin := middleware.Actor(c)

	video, err := h.executor.Transition(c.Request.Context(), dispatch.TransitionRequest{
		VideoID: id,
		Target:  model.VideoStatus(req.Status),
		Updates: dispatch.Updates{
			Title:             req.Title,
			ScriptText:        req.ScriptText,
			ScriptLocked:      req.ScriptLocked,
			ScriptNotRequired: req.ScriptNotRequired,
			FinalMediaURL:     req.FinalMediaURL,
			AltMediaURL:       req.AltMediaURL,
			PostedURL:         req.PostedURL,
			PostedPlatform:    req.PostedPlatform,
			RecordingNotes:    req.RecordingNotes,
			EditingNotes:      req.EditingNotes,
			PostingNotes:      req.PostingNotes,
			Tags:              req.Tags,
			RecordedAt:        req.RecordedAt,
			EditedAt:          req.EditedAt,
			PostedAt:          req.PostedAt,
		},
		Actor:   actorID,
		Role:    role,
		IsAdmin: isAdmin,
		Force:   req.Force,
	})
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapVideo(video))
}

type claimRequest struct {
	TTLMinutes int `json:"ttl_minutes"`
}

func (h *VideoHandler) Claim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	var req claimRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	actorID, role, _ := middleware.Actor(c)

	video, err := h.claims.Acquire(c.Request.Context(), id, actorID, role,
		time.Duration(req.TTLMinutes)*time.Minute)
	if err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, mapVideo(video))
}

func (h *VideoHandler) ReleaseClaim(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	actorID, _, _ := middleware.Actor(c)

	if err := h.claims.Release(c.Request.Context(), id, actorID); err != nil {
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"released": true})
}

func (h *VideoHandler) Events(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid video id"})
		return
	}

	limit := parseLimit(c.Query("limit"), 100)

	events, err := h.events.ListByVideo(c.Request.Context(), id, limit)
	if err != nil {
		h.logger.Error("failed to list events", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list events"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}
