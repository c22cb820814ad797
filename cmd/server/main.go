package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/benvon/smart-coach/internal/config"
	"github.com/benvon/smart-coach/internal/contextstore"
	"github.com/benvon/smart-coach/internal/database"
	"github.com/benvon/smart-coach/internal/extraction"
	"github.com/benvon/smart-coach/internal/handlers"
	"github.com/benvon/smart-coach/internal/learning"
	"github.com/benvon/smart-coach/internal/logger"
	"github.com/benvon/smart-coach/internal/middleware"
	"github.com/benvon/smart-coach/internal/orchestrator"
	"github.com/benvon/smart-coach/internal/prompts"
	"github.com/benvon/smart-coach/internal/queue"
	"github.com/benvon/smart-coach/internal/router"
	"github.com/benvon/smart-coach/internal/telemetry"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
)

const serviceName = "smart-coach-api"

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	debugFlag := flag.Bool("debug", false, "Enable debug logging, including AI prompt logging")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	debugMode := cfg.ServerDebugMode || *debugFlag
	cfg.ServerDebugMode = debugMode

	zapLogger, err := logger.New(logger.Options{Debug: debugMode, Service: serviceName})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = logger.Sync(zapLogger) }()

	zapLogger.Info("starting_server",
		zap.String("version", version),
		zap.Bool("debug_mode", debugMode),
		zap.String("server_port", cfg.ServerPort),
		zap.String("catalog_path", cfg.CatalogPath),
		zap.Bool("postgres", cfg.DatabaseURL != ""),
		zap.Bool("redis", cfg.RedisURL != ""),
		zap.Bool("rabbitmq", cfg.RabbitMQURL != ""),
		zap.Bool("learning_enabled", cfg.LearningEnabled),
		zap.Bool("otel_enabled", cfg.OTELEnabled),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tracerProvider := initTracing(ctx, cfg, zapLogger)
	if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telemetry.Shutdown(shutdownCtx, tracerProvider); err != nil {
				zapLogger.Error("failed_to_shutdown_otel_tracer", zap.Error(err))
			}
		}()
	}

	healthChecker := handlers.NewHealthChecker(zapLogger)

	var db *database.DB
	if cfg.DatabaseURL != "" {
		db, err = database.New(cfg.DatabaseURL)
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
		healthChecker.AddCheck("database", db.PingContext)
		zapLogger.Info("connected_to_database")
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = connectRedis(ctx, cfg.RedisURL)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_redis", zap.Error(err))
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				zapLogger.Warn("failed_to_close_redis_connection", zap.Error(err))
			}
		}()
		healthChecker.AddCheck("redis", func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
		zapLogger.Info("connected_to_redis")
	}

	var jobQueue queue.JobQueue
	if cfg.RabbitMQURL != "" && cfg.LearningEnabled {
		rabbit, err := queue.ConnectRabbitMQ(ctx, cfg.RabbitMQURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("failed_to_connect_to_rabbitmq", zap.Error(err))
		}
		defer func() {
			if err := rabbit.Close(); err != nil {
				zapLogger.Warn("failed_to_close_rabbitmq_connection", zap.Error(err))
			}
		}()
		healthChecker.AddCheck("queue", rabbit.HealthCheck)
		zapLogger.Info("connected_to_rabbitmq")
		jobQueue = rabbit
	}

	coach, err := buildOrchestrator(cfg, db, redisClient, jobQueue, zapLogger)
	if err != nil {
		zapLogger.Fatal("failed_to_build_orchestrator", zap.Error(err))
	}
	zapLogger.Info("orchestrator_ready", zap.Strings("services", coach.Router().ServiceNames()))

	rateLimitStore, err := middleware.NewRateLimitStore(redisClient)
	if err != nil {
		zapLogger.Fatal("failed_to_create_rate_limit_store", zap.Error(err))
	}
	rateLimitMW, err := middleware.RateLimit(rateLimitStore, cfg.RateLimit)
	if err != nil {
		zapLogger.Fatal("invalid_rate_limit", zap.String("rate", cfg.RateLimit), zap.Error(err))
	}

	r := mux.NewRouter()
	// gorilla/mux runs middleware in registration order, outermost first
	r.Use(middleware.RequestID)
	if tracerProvider != nil {
		r.Use(otelmux.Middleware(serviceName))
	}
	r.Use(middleware.Logging(zapLogger))
	r.Use(middleware.Audit(zapLogger))
	r.Use(middleware.ErrorHandler(zapLogger))
	r.Use(middleware.SecurityHeaders(cfg.EnableHSTS))
	r.Use(middleware.MaxRequestSize(middleware.DefaultMaxRequestSize))
	r.Use(middleware.ContentType)
	r.Use(middleware.Timeout(middleware.DefaultRequestTimeout))

	r.HandleFunc("/healthz", healthChecker.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/version", versionInfo).Methods(http.MethodGet)
	handlers.NewOpenAPIHandler().RegisterRoutes(r)

	api := r.PathPrefix("/api/v1").Subrouter()

	coachRouter := api.PathPrefix("/coach").Subrouter()
	coachRouter.Use(rateLimitMW)
	handlers.NewCoachHandler(coach).RegisterRoutes(coachRouter)

	handlers.NewContextHandler(coach.Contexts(), coach).RegisterRoutes(api.PathPrefix("/users").Subrouter())
	handlers.NewServiceHandler(coach.Router()).RegisterRoutes(api.PathPrefix("/services").Subrouter())
	handlers.NewLearningHandler(coach.Learning()).RegisterRoutes(api.PathPrefix("/learning").Subrouter())

	// CORS wraps the router so that preflight requests are answered even
	// when no route matches OPTIONS
	srv := &http.Server{
		Addr:           ":" + cfg.ServerPort,
		Handler:        middleware.CORS(cfg.FrontendURL, zapLogger)(r),
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   middleware.DefaultRequestTimeout + 5*time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	if purger, ok := jobQueue.(queue.DLQPurger); ok {
		dlqGC := queue.NewGarbageCollector(purger, time.Hour, 24*time.Hour, zapLogger)
		go func() {
			if err := dlqGC.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				zapLogger.Error("dlq_garbage_collector_stopped_with_error", zap.Error(err))
			}
		}()
	}

	go func() {
		zapLogger.Info("server_listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("server_failed_to_start", zap.Error(err))
		}
	}()

	<-ctx.Done()
	zapLogger.Info("server_shutting_down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("server_forced_to_shutdown", zap.Error(err))
	}
	zapLogger.Info("server_exited")
}

// buildOrchestrator assembles the coaching pipeline from the configured backends
func buildOrchestrator(cfg *config.Config, db *database.DB, redisClient *redis.Client, jobQueue queue.JobQueue, log *zap.Logger) (*orchestrator.Orchestrator, error) {
	routerOpts := []router.Option{router.WithCacheTTL(cfg.CacheTTL)}
	if redisClient != nil {
		routerOpts = append(routerOpts, router.WithCache(router.NewRedisCache(redisClient, cfg.CacheTTL, cfg.CacheMaxEntries)))
	} else {
		routerOpts = append(routerOpts, router.WithCache(router.NewMemoryCache(cfg.CacheMaxEntries)))
	}
	rt := router.New(log, routerOpts...)
	generator := prompts.New(log)

	catalog, err := cfg.ResolveCatalog()
	if err != nil {
		return nil, err
	}
	if err := catalog.Register(rt, generator); err != nil {
		return nil, err
	}

	optimizer := learning.New(log)
	opts := []orchestrator.Option{
		orchestrator.WithBatchConcurrency(cfg.BatchConcurrency),
		orchestrator.WithEventSink(eventSink(cfg, optimizer, jobQueue, log)),
	}
	if db != nil {
		opts = append(opts, orchestrator.WithProfileStore(database.NewProfileRepository(db)))
	}

	return orchestrator.New(orchestrator.Components{
		Contexts:  contextstore.New(log),
		Extractor: extraction.New(log),
		Prompts:   generator,
		Router:    rt,
		Learning:  optimizer,
	}, log, opts...)
}

// eventSink keeps the local optimizer current and, when a queue is
// configured, also hands every event to the worker for the audit log
func eventSink(cfg *config.Config, optimizer *learning.Optimizer, jobQueue queue.JobQueue, log *zap.Logger) orchestrator.EventSink {
	if !cfg.LearningEnabled {
		return orchestrator.DiscardSink{}
	}
	local := orchestrator.NewInProcessSink(optimizer, log)
	if jobQueue == nil {
		return local
	}
	return orchestrator.MultiSink{local, queue.NewEventPublisher(jobQueue)}
}

// initTracing returns nil when tracing is disabled or unavailable
func initTracing(ctx context.Context, cfg *config.Config, log *zap.Logger) *sdktrace.TracerProvider {
	if !cfg.OTELEnabled {
		return nil
	}
	if cfg.OTELEndpoint == "" {
		log.Warn("otel_enabled_but_endpoint_not_configured")
		return nil
	}
	tp, err := telemetry.InitTracer(ctx, serviceName, cfg.OTELEndpoint)
	if err != nil {
		log.Warn("failed_to_initialize_otel_tracer", zap.Error(err))
		return nil
	}
	log.Info("otel_tracer_initialized", zap.String("endpoint", cfg.OTELEndpoint))
	return tp
}

func connectRedis(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return client, nil
}

func versionInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, `{"version":%q,"timestamp":%q}`, version, time.Now().UTC().Format(time.RFC3339))
}
