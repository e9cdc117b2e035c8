package main

import (
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/config"
	"github.com/Dominus-Gray/polaris-analytics/internal/handler"
	"github.com/Dominus-Gray/polaris-analytics/internal/logger"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/postgres"
	"github.com/Dominus-Gray/polaris-analytics/internal/service"
)

// @title Polaris Analytics API
// @version 1.0
// @description Event ingestion and client analytics read API
// @host localhost:8080
// @BasePath /
// @schemes http https
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("version", cfg.Service.Version),
		zap.String("port", cfg.Service.APIPort))

	// Initialize Postgres
	db, err := postgres.Connect(cfg.Postgres.DSN)
	if err != nil {
		log.Fatal("Failed to connect to Postgres", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Failed to close Postgres connection", zap.Error(err))
		}
	}()

	if err := db.Migrate(); err != nil {
		log.Fatal("Failed to run migrations", zap.Error(err))
	}
	log.Info("Database schema initialized")

	// Initialize metrics
	obs, err := observability.New(otel.GetMeterProvider(), cfg.Analytics.LagWarnThreshold, log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}

	// Initialize repositories
	outboxRepo := postgres.NewOutboxRepository(db, log)
	metricsRepo := postgres.NewMetricsRepository(db, log)
	directory := postgres.NewDirectory(db, log)

	// The projection is never registered here. The watermark only tolerates
	// events arriving in (occurred_at, event_id) order, and only the worker's
	// outbox scan provides that ordering; concurrent API requests do not.
	syncRegistry := outbox.NewRegistry()

	dispatcher := outbox.NewDispatcher(outboxRepo, syncRegistry, obs, log)
	dispatcher.SetSyncDispatch(cfg.Outbox.SyncDispatchEnabled)

	// Initialize services
	analyticsService := service.NewAnalyticsService(metricsRepo, directory, outboxRepo, obs, log, cfg.Service.Version)
	ingestService := service.NewIngestService(dispatcher, log)

	// Initialize handler
	h := handler.New(analyticsService, ingestService, obs, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	log.Info("API server starting", zap.String("address", addr))

	if err := http.ListenAndServe(addr, h); err != nil {
		log.Fatal("Failed to start API server", zap.Error(err))
	}
}
