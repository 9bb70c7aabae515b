// Package main is the entry point for the quillforge-api server.
// Note: User identity, OAuth, and checkout UI are handled upstream; this
// service owns balances, usage metering, and monitoring reconciliation.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/quillforge/quillforge-api/internal/config"
	"github.com/quillforge/quillforge-api/internal/constants"
	"github.com/quillforge/quillforge-api/internal/database"
	"github.com/quillforge/quillforge-api/internal/http/handlers"
	"github.com/quillforge/quillforge-api/internal/http/mw"
	"github.com/quillforge/quillforge-api/internal/http/routes"
	"github.com/quillforge/quillforge-api/internal/logging"
	"github.com/quillforge/quillforge-api/internal/reconcile"
	"github.com/quillforge/quillforge-api/internal/repository"
	"github.com/quillforge/quillforge-api/internal/service"
	"github.com/quillforge/quillforge-api/internal/version"
)

func main() {
	// Initialize logger with TTY detection, source paths, and format control
	logger := logging.SetDefault()

	// Log version info first thing
	v := version.Get()
	logger.Info("starting quillforge-api",
		"version", v.Version,
		"commit", v.Commit,
		"built", v.Date,
		"go_version", v.GoVersion,
	)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Initialize the billing database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	// Run migrations (with logging for each migration applied)
	if err := database.MigrateWithLogger(db, logger); err != nil {
		logger.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}

	// Log current schema version
	schemaVersion, err := database.GetLatestSchemaVersion(db)
	if err != nil {
		logger.Warn("failed to get schema version", "error", err)
	} else if schemaVersion != "" {
		migrationCount, _ := database.GetMigrationCount(db)
		logger.Info("database schema ready", "schema_version", schemaVersion, "migrations_applied", migrationCount)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Connect to the content store
	mongoClient, err := database.NewMongo(ctx, cfg.MongoURI)
	if err != nil {
		logger.Error("failed to connect to content store", "error", err)
		os.Exit(1)
	}
	defer func() { _ = mongoClient.Disconnect(context.Background()) }()
	mongoDB := mongoClient.Database(cfg.MongoDatabase)

	// Initialize repositories
	repos := repository.NewRepositories(db, mongoDB)

	// Object storage for runtime config overrides (service catalog)
	storage, err := service.NewStorageService(cfg, logger)
	if err != nil {
		logger.Error("failed to initialize storage", "error", err)
		os.Exit(1)
	}

	// Service catalog loader (S3-backed with built-in defaults)
	catalogLoader := config.NewCatalogLoader(config.S3LoaderConfig{
		S3Client: storage.Client(),
		Bucket:   storage.Bucket(),
		Key:      cfg.CatalogKey,
		Logger:   logger,
	})
	catalogLoader.Load(ctx)

	// Initialize services
	services, err := service.NewServices(cfg, repos, catalogLoader, logger)
	if err != nil {
		logger.Error("failed to initialize services", "error", err)
		os.Exit(1)
	}

	// Monitoring reconciler and its schedule
	reconciler := reconcile.New(repos, services.GSC, logger)
	scheduler := reconcile.NewScheduler(reconciler, cfg.ReconcileInterval, logger)
	if cfg.ReconcileEnabled {
		scheduler.Start(ctx)
		logger.Info("reconcile scheduler started", "interval", cfg.ReconcileInterval.String())
	}

	// Create router
	router := chi.NewRouter()

	// Global middleware
	router.Use(mw.RequestID())
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(mw.Metrics())
	router.Use(mw.APIVersion())

	// Request timeout middleware with an extended window for reconciliation
	router.Use(mw.Timeout(mw.TimeoutConfig{
		Default:          constants.DefaultRequestTimeout,
		Extended:         constants.ReconcileRequestTimeout,
		ExtendedPatterns: []string{"/refresh-monitoring"},
	}))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Link", "X-Request-Id", "X-RateLimit-Limit", "X-RateLimit-Remaining", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Request size limit - prevent large payload attacks
	router.Use(middleware.RequestSize(constants.RequestSizeLimit))

	// Global rate limit by IP (fallback for unauthenticated requests)
	router.Use(mw.RateLimitByIP(100))

	// Huma API with OpenAPI docs; bearer auth enforced per-operation
	api := humachi.New(router, routes.NewHumaConfig(cfg.BaseURL))
	api.UseMiddleware(mw.HumaAuth(api, []byte(cfg.JWTSecret)))

	routes.Register(api, &routes.Handlers{
		Balance:    handlers.NewBalanceHandler(services.Balance),
		Usage:      handlers.NewUsageHandler(services.Usage),
		Monitoring: handlers.NewMonitoringHandler(repos),
		Readyz: handlers.NewReadyzHandler(
			handlers.PingerFunc(db.Ping),
			handlers.PingerFunc(func() error {
				pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer pingCancel()
				return mongoClient.Ping(pingCtx, nil)
			}),
		),
	})

	// Cron-triggered monitoring refresh (api-key header, not user auth)
	refreshHandler := handlers.NewRefreshMonitoringHandler(cfg.CronAPIKey, reconciler, logger)
	router.Post("/api/public/refresh-monitoring", refreshHandler.ServeHTTP)

	// Stripe webhook (signature verified by handler, not user auth)
	if cfg.StripeWebhookSecret != "" {
		stripeWebhook := handlers.NewStripeWebhookHandler(cfg, services.Balance, logger)
		router.Post("/api/v1/webhooks/stripe", stripeWebhook.HandleWebhook)
		logger.Info("stripe webhook endpoint enabled")
	}

	// Prometheus metrics
	router.Handle("/metrics", promhttp.Handler())

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: constants.ServerWriteTimeout,
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
		<-sigChan

		logger.Info("shutting down server")

		// Stop the scheduler first so no reconcile run starts mid-shutdown
		cancel()
		if cfg.ReconcileEnabled {
			scheduler.Stop()
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown error", "error", err)
		}
	}()

	// Start server
	logger.Info("starting server", "port", cfg.Port, "base_url", cfg.BaseURL)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
