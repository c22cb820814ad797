package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-coach/internal/config"
	"github.com/benvon/smart-coach/internal/database"
	"github.com/benvon/smart-coach/internal/learning"
	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/queue"
	"github.com/benvon/smart-coach/internal/workers"
	"go.uber.org/zap"
)

const (
	serviceName          = "smart-coach-worker"
	healthReportInterval = time.Minute
)

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.WorkerDebugMode || *debugFlag

	zapLogger, err := logger.New(logger.Options{Debug: debugMode, Service: serviceName})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	if cfg.RabbitMQURL == "" {
		zapLogger.Fatal("rabbitmq_url_required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zapLogger.Info("starting_worker",
		zap.Bool("debug_mode", debugMode),
		zap.Int("prefetch", cfg.RabbitMQPrefetch),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
	)

	var eventLog workers.EventLog
	if cfg.DatabaseURL != "" {
		db, err := database.New(cfg.DatabaseURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				zapLogger.Warn("failed_to_close_database_connection", zap.Error(err))
			}
		}()
		if err := db.Migrate(ctx); err != nil {
			zapLogger.Fatal("failed_to_migrate_database", zap.Error(err))
		}
		eventLog = database.NewLearningEventRepository(db)
		zapLogger.Info("connected_to_database")
	}

	jobQueue, err := queue.ConnectRabbitMQ(ctx, cfg.RabbitMQURL, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
	}
	defer func() {
		if err := jobQueue.Close(); err != nil {
			zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
		}
	}()
	zapLogger.Info("connected_to_rabbitmq")

	optimizer := learning.New(zapLogger)
	processor := workers.NewLearningProcessor(optimizer, eventLog, jobQueue, zapLogger)

	go reportHealth(ctx, optimizer, zapLogger)

	zapLogger.Info("worker_started")
	if err := processor.Run(ctx, cfg.RabbitMQPrefetch); err != nil {
		zapLogger.Error("worker_stopped_with_error", zap.Error(err))
		return
	}
	zapLogger.Info("worker_stopped")
}

// reportHealth periodically logs the aggregate the worker has built from the
// events it consumed
func reportHealth(ctx context.Context, optimizer *learning.Optimizer, log *zap.Logger) {
	ticker := time.NewTicker(healthReportInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h := optimizer.GetSystemHealth()
			log.Info("learning_health",
				zap.String("status", string(h.Status)),
				zap.Int("components", len(h.Components)),
				zap.Int("anomalies", h.Anomalies),
				zap.Int("insights", len(optimizer.Insights(0))),
			)
		}
	}
}
