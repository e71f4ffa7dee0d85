package apiserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/flashflow/flashflow/pkg/apiserver/handlers"
	"github.com/flashflow/flashflow/pkg/apiserver/middleware"
	"github.com/flashflow/flashflow/pkg/auth"
	"github.com/flashflow/flashflow/pkg/config"
	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/eventbus"
	"github.com/flashflow/flashflow/pkg/gating"
	"github.com/flashflow/flashflow/pkg/model"
	"github.com/flashflow/flashflow/pkg/notify"
	"github.com/flashflow/flashflow/pkg/store/postgres"
	redisclient "github.com/flashflow/flashflow/pkg/store/redis"
)

type Server struct {
	router *gin.Engine
	db     *postgres.Store
	redis  *redisclient.Client
	cfg    *config.Config
	logger *zap.Logger
	tokens *auth.WorkerTokenManager
	rules  dispatch.Rules
}

func NewServer(db *postgres.Store, redis *redisclient.Client, cfg *config.Config, logger *zap.Logger) *Server {
	s := &Server{
		db:     db,
		redis:  redis,
		cfg:    cfg,
		logger: logger,
		tokens: auth.NewWorkerTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL),
		rules:  cfg.Pipeline.Rules(cfg.Gating.FailClosed),
	}
	s.setupRouter()
	return s
}

func (s *Server) setupRouter() {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.Logger(s.logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.CORS())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	var gormDB *gorm.DB
	if s.db != nil {
		gormDB = s.db.DB()
	}
	videos := postgres.NewVideoRepository(gormDB)
	events := postgres.NewEventRepository(gormDB)

	var gate dispatch.Gate = dispatch.AllowAllGate{}
	if s.cfg.Gating.Enabled {
		gate = gating.NewCreditGate(gormDB)
	}

	var notifier dispatch.Notifier = dispatch.NopNotifier{}
	var bus *eventbus.Bus
	if s.redis != nil {
		bus = eventbus.NewBus(s.redis.Client())
		notifier = notify.NewBusNotifier(bus, s.logger)
	}

	dispatcher := dispatch.NewDispatcher(videos, events, notifier, gate, s.rules, s.logger)
	executor := dispatch.NewExecutor(videos, events, notifier, gate, s.rules, s.logger)
	claims := dispatch.NewClaimService(videos, events, s.rules, s.logger)
	reclaimer := dispatch.NewReclaimer(videos, events, s.rules, s.logger)

	if bus != nil {
		published := bus
		executor.OnPosted(func(ctx context.Context, v *model.Video) error {
			event, err := eventbus.NewEvent("video.posted", eventbus.VideoEvent{
				VideoID:   v.ID.String(),
				EventType: "video.posted",
				ToStatus:  string(v.Status),
			})
			if err != nil {
				return err
			}
			return published.Publish(ctx, eventbus.ChannelVideo, event)
		})
	}

	api := r.Group("/api/v1")
	{
		api.Use(middleware.Auth(s.tokens))

		videoHandler := handlers.NewVideoHandler(videos, events, executor, claims, s.rules, s.logger)
		api.POST("/videos", videoHandler.Create)
		api.GET("/videos/queue", videoHandler.Queue)
		api.GET("/videos/:id", videoHandler.Get)
		api.PATCH("/videos/:id", videoHandler.Transition)
		api.POST("/videos/:id/claim", videoHandler.Claim)
		api.DELETE("/videos/:id/claim", videoHandler.ReleaseClaim)
		api.GET("/videos/:id/events", videoHandler.Events)

		dispatchHandler := handlers.NewDispatchHandler(dispatcher, s.logger)
		api.POST("/dispatch", dispatchHandler.Dispatch)

		adminHandler := handlers.NewAdminHandler(videos, reclaimer, s.rules, s.logger)
		api.POST("/admin/reclaim-stale", adminHandler.ReclaimStale)
		api.GET("/observability/queue-summary", adminHandler.QueueSummary)
		api.GET("/observability/stuck", adminHandler.Stuck)
	}

	s.router = r
}

func (s *Server) Router() *gin.Engine {
	return s.router
}
