package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/flashflow/flashflow/pkg/config"
	"github.com/flashflow/flashflow/pkg/dispatch"
	"github.com/flashflow/flashflow/pkg/store/postgres"
)

// The reclaimer sweeps expired claims and assignments back into the pool.
// Dispatch already reclaims its own lane on demand; this process covers items
// in lanes nobody is pulling from.
func main() {
	daemon := flag.Bool("daemon", false, "run the sweep on an interval instead of once")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	rules := cfg.Pipeline.Rules(cfg.Gating.FailClosed)
	reclaimer := dispatch.NewReclaimer(
		postgres.NewVideoRepository(db.DB()),
		postgres.NewEventRepository(db.DB()),
		rules,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sweep := func() {
		result, err := reclaimer.ReclaimExpired(ctx, nil)
		if err != nil {
			logger.Error("reclaim sweep failed", zap.Error(err))
			return
		}
		logger.Info("reclaim sweep finished", zap.Int("reclaimed", result.Count))
	}

	sweep()
	if !*daemon {
		return
	}

	interval := cfg.Pipeline.ReclaimInterval
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			logger.Info("reclaimer shutting down")
			return
		case <-ticker.C:
			sweep()
		}
	}
}
