package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	_ "time/tzdata"

	"github.com/couchcryptid/ev-station-service/internal/adapter/csvsource"
	httpadapter "github.com/couchcryptid/ev-station-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/ev-station-service/internal/adapter/kafka"
	"github.com/couchcryptid/ev-station-service/internal/adapter/livestatus"
	"github.com/couchcryptid/ev-station-service/internal/cache"
	"github.com/couchcryptid/ev-station-service/internal/config"
	"github.com/couchcryptid/ev-station-service/internal/observability"
	"github.com/couchcryptid/ev-station-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	// Nothing can be served without the bulk dataset.
	source := csvsource.NewSource(cfg.StationDataPath, logger)
	if err := source.Check(); err != nil {
		logger.Error("station dataset unavailable", "path", cfg.StationDataPath, "error", err)
		os.Exit(1)
	}

	var fetcher cache.StatusFetcher = livestatus.Disabled{}
	if cfg.LiveFeedEnabled {
		fetcher = livestatus.NewClient(livestatus.Options{
			BaseURL:        cfg.LiveFeedURL,
			ServiceKey:     cfg.LiveFeedServiceKey,
			PageSize:       cfg.LiveFeedPageSize,
			Zone:           cfg.LiveFeedZone,
			ConnectTimeout: cfg.LiveFeedConnectTimeout,
			ReadTimeout:    cfg.LiveFeedReadTimeout,
		}, metrics, logger)
		logger.Info("live status feed enabled", "zone", cfg.LiveFeedZone, "page_size", cfg.LiveFeedPageSize)
	} else {
		logger.Info("live status feed disabled, all statuses are synthetic")
	}

	opts := cache.Options{
		StationsTTL:   cfg.StationsTTL,
		LiveStatusTTL: cfg.LiveStatusTTL,
	}
	var publisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		publisher = kafkaadapter.NewPublisher(cfg, metrics, logger)
		opts.Publisher = publisher
		logger.Info("status snapshot publishing enabled", "topic", cfg.KafkaStatusTopic)
	}

	manager := cache.NewManager(source, fetcher, opts, metrics, logger)
	svc := service.New(manager, cfg.Timezone, cfg.UsageCacheSize, metrics, logger)
	srv := httpadapter.NewServer(cfg.HTTPAddr, cfg.HTTPPathPrefix, svc, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	if cfg.WarmupEnabled {
		go manager.Warmup(ctx)
	}
	if cfg.LiveFeedEnabled && cfg.LiveRefreshInterval > 0 {
		go manager.RunLiveRefresh(ctx, cfg.LiveRefreshInterval)
	}

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	manager.Close()
	if publisher != nil {
		if err := publisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
