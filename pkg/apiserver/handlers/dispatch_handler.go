package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/apiserver/middleware"
	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/model"
)

type DispatchHandler struct {
	dispatcher *dispatch.Dispatcher
	logger     *zap.Logger
}

func NewDispatchHandler(dispatcher *dispatch.Dispatcher, logger *zap.Logger) *DispatchHandler {
	return &DispatchHandler{dispatcher: dispatcher, logger: logger}
}

type dispatchRequest struct {
	Role       string `json:"role" binding:"required"`
	TTLMinutes int    `json:"ttl_minutes"`
	Force      bool   `json:"force"`
}

// Dispatch grants the caller the most urgent eligible item in their role's
// lane. An empty lane is a 200 with no_work_available, not an error.
func (h *DispatchHandler) Dispatch(c *gin.Context) {
	var req dispatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	actorID, _, isAdmin := middleware.Actor(c)

	video, err := h.dispatcher.Dispatch(c.Request.Context(), dispatch.DispatchRequest{
		Role:        model.Role(req.Role),
		Requester:   actorID,
		TTLOverride: time.Duration(req.TTLMinutes) * time.Minute,
		IsAdmin:     isAdmin,
		Force:       req.Force,
	})
	if err != nil {
		var engineErr *dispatch.Error
		if errors.As(err, &engineErr) && engineErr.Code == dispatch.CodeNoWorkAvailable {
			c.JSON(http.StatusOK, gin.H{"no_work_available": true, "role": req.Role})
			return
		}
		writeEngineError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assigned": mapVideo(video)})
}
