package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	"github.com/Dominus-Gray/polaris-analytics/internal/archive"
	"github.com/Dominus-Gray/polaris-analytics/internal/config"
	"github.com/Dominus-Gray/polaris-analytics/internal/logger"
	"github.com/Dominus-Gray/polaris-analytics/internal/observability"
	"github.com/Dominus-Gray/polaris-analytics/internal/outbox"
	"github.com/Dominus-Gray/polaris-analytics/internal/projection"
	"github.com/Dominus-Gray/polaris-analytics/internal/queue"
	"github.com/Dominus-Gray/polaris-analytics/internal/queue/sqs"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/clickhouse"
	"github.com/Dominus-Gray/polaris-analytics/internal/repository/postgres"
)

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

	log.Info("Starting worker service",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

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
	stateRepo := postgres.NewStateRepository(db, log)

	// Async handlers: projection first, then the optional side channels.
	engine := projection.NewEngine(metricsRepo, stateRepo, obs, log)

	asyncRegistry := outbox.NewRegistry()
	if err := asyncRegistry.RegisterAll(engine.Handler()); err != nil {
		log.Fatal("Failed to register projection handler", zap.Error(err))
	}

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Optional relay of processed events to SQS.
	if cfg.SQS.QueueURL != "" {
		sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
		if err != nil {
			log.Fatal("Failed to create SQS client", zap.Error(err))
		}
		if err := asyncRegistry.RegisterAll(queue.Relay(sqsClient)); err != nil {
			log.Fatal("Failed to register queue relay", zap.Error(err))
		}
		log.Info("Queue relay enabled", zap.String("queue_url", cfg.SQS.QueueURL))
	}

	// Optional ClickHouse event archive.
	if cfg.ClickHouse.Host != "" {
		chClient, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
		if err != nil {
			log.Fatal("Failed to create ClickHouse client", zap.Error(err))
		}
		defer func() {
			if err := chClient.Close(); err != nil {
				log.Error("Failed to close ClickHouse client", zap.Error(err))
			}
		}()

		chRepo := clickhouse.NewRepository(chClient, log)
		if err := chRepo.InitSchema(ctx); err != nil {
			log.Fatal("Failed to initialize archive schema", zap.Error(err))
		}

		sink := archive.NewSink(chRepo, archive.SinkConfig{}, log)
		if err := asyncRegistry.RegisterAll(sink.Handler()); err != nil {
			log.Fatal("Failed to register archive sink", zap.Error(err))
		}
		go sink.Start(workerCtx)
		log.Info("Event archive enabled", zap.String("host", cfg.ClickHouse.Host))
	}

	markPolicy, err := outbox.ParseMarkPolicy(cfg.Outbox.MarkPolicy)
	if err != nil {
		log.Fatal("Invalid outbox configuration", zap.Error(err))
	}

	processor := outbox.NewProcessor(outboxRepo, asyncRegistry, outbox.ProcessorConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
		MarkPolicy:   markPolicy,
	}, log)

	// Health check endpoint
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := db.Ping(r.Context()); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		addr := ":" + cfg.Outbox.HealthCheckPort
		log.Info("Health check server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	go func() {
		if err := processor.Start(workerCtx); err != nil {
			log.Fatal("Outbox processor error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down worker gracefully")
	processor.Stop()
	cancel()
}
