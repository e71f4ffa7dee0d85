package handlers

import (
	"net/http"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/apiserver/middleware"
	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/metrics"
	"github.com/flashflow/flashflow/pkg/model"
	"github.com/flashflow/flashflow/pkg/store/postgres"
)

type AdminHandler struct {
	videos    *postgres.VideoRepository
	reclaimer *dispatch.Reclaimer
	rules     dispatch.Rules
	logger    *zap.Logger
}

func NewAdminHandler(videos *postgres.VideoRepository, reclaimer *dispatch.Reclaimer, rules dispatch.Rules, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{
		videos:    videos,
		reclaimer: reclaimer,
		rules:     rules,
		logger:    logger,
	}
}

// ReclaimStale sweeps expired claims and assignments across all lanes.
func (h *AdminHandler) ReclaimStale(c *gin.Context) {
	_, _, isAdmin := middleware.Actor(c)
	if !isAdmin {
		c.JSON(http.StatusForbidden, gin.H{"error": "admin role required"})
		return
	}

	result, err := h.reclaimer.ReclaimExpired(c.Request.Context(), nil)
	if err != nil {
		h.logger.Error("reclaim sweep failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "reclaim sweep failed"})
		return
	}

	ids := make([]string, 0, len(result.IDs))
	for _, id := range result.IDs {
		ids = append(ids, id.String())
	}
	c.JSON(http.StatusOK, gin.H{"reclaimed": result.Count, "ids": ids})
}

type statusSummary struct {
	Total   int64 `json:"total"`
	DueSoon int   `json:"due_soon"`
	Overdue int   `json:"overdue"`
}

// QueueSummary reports per-status queue depth and SLA tier counts, and
// refreshes the queue gauges as a side effect.
func (h *AdminHandler) QueueSummary(c *gin.Context) {
	counts, err := h.videos.CountByStatus(c.Request.Context())
	if err != nil {
		h.logger.Error("failed to count queue", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to count queue"})
		return
	}

	now := time.Now()
	summary := make(map[string]statusSummary, len(counts))
	for _, status := range model.AllStatuses() {
		entry := statusSummary{Total: counts[status]}
		if !status.Terminal() && counts[status] > 0 {
			videos, err := h.videos.ListByStatus(c.Request.Context(), status, 0)
			if err != nil {
				h.logger.Error("failed to list status", zap.String("status", string(status)), zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queue"})
				return
			}
			for i := range videos {
				switch dispatch.Score(status, videos[i].LastStatusChangedAt, now, h.rules).Tier {
				case dispatch.TierDueSoon:
					entry.DueSoon++
				case dispatch.TierOverdue:
					entry.Overdue++
				}
			}
		}
		metrics.QueueDepth.WithLabelValues(string(status)).Set(float64(entry.Total))
		metrics.OverdueItems.WithLabelValues(string(status)).Set(float64(entry.Overdue))
		summary[string(status)] = entry
	}

	c.JSON(http.StatusOK, gin.H{"statuses": summary})
}

// Stuck lists items past their overdue threshold, most overdue first.
func (h *AdminHandler) Stuck(c *gin.Context) {
	limit := parseLimit(c.Query("limit"), 100)

	now := time.Now()
	type stuckItem struct {
		videoResponse
		MinutesOverdue float64 `json:"minutes_overdue"`
	}
	items := make([]stuckItem, 0)
	for _, status := range model.AllStatuses() {
		if status.Terminal() {
			continue
		}
		videos, err := h.videos.ListByStatus(c.Request.Context(), status, 0)
		if err != nil {
			h.logger.Error("failed to list status", zap.String("status", string(status)), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list queue"})
			return
		}
		window := h.rules.SLA[status]
		for i := range videos {
			sla := dispatch.Score(status, videos[i].LastStatusChangedAt, now, h.rules)
			if sla.Tier != dispatch.TierOverdue {
				continue
			}
			response := mapVideo(&videos[i])
			response.SLA = &sla
			items = append(items, stuckItem{
				videoResponse:  response,
				MinutesOverdue: now.Sub(videos[i].LastStatusChangedAt.Add(window.Overdue)).Minutes(),
			})
		}
	}

	sort.Slice(items, func(i, j int) bool {
		return items[i].MinutesOverdue > items[j].MinutesOverdue
	})
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}
