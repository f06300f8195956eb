package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DukeRupert/arcana/internal"
	"github.com/DukeRupert/arcana/internal/ai"
	"github.com/DukeRupert/arcana/internal/ai/anthropic"
	"github.com/DukeRupert/arcana/internal/ai/mock"
	"github.com/DukeRupert/arcana/internal/auth"
	"github.com/DukeRupert/arcana/internal/csrf"
	"github.com/DukeRupert/arcana/internal/handler"
	"github.com/DukeRupert/arcana/internal/jobs"
	"github.com/DukeRupert/arcana/internal/metrics"
	"github.com/DukeRupert/arcana/internal/middleware"
	"github.com/DukeRupert/arcana/internal/repository"
	"github.com/DukeRupert/arcana/internal/service"
	"github.com/DukeRupert/arcana/internal/storage"
	"github.com/DukeRupert/arcana/internal/tarot"
	"github.com/DukeRupert/arcana/internal/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)
	slog.SetDefault(logger)

	// Initialize database pool
	pool, err := repository.NewPool(ctx, cfg.PoolConfig())
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer pool.Close()

	// Run migrations
	if err := internal.RunMigrations(ctx, pool, logger); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database ready")

	// Initialize repository
	queries := repository.New(pool)
	txManager := repository.NewTxManager(pool)

	// Initialize AI provider
	provider, err := newProvider(cfg, logger)
	if err != nil {
		return fmt.Errorf("ai provider initialization failed: %w", err)
	}

	// Initialize services
	planService := service.NewPlanService(queries, service.SystemClock, logger)
	topicService := service.NewTopicService(queries, planService, cfg.DefaultLanguage, logger)
	usageService := service.NewUsageService(queries, cfg.DailyLimits(), cfg.UsageTimezone, service.SystemClock, logger)
	redeemService := service.NewRedeemService(queries, txManager, service.SystemClock, logger)
	adminService := service.NewAdminService(queries, cfg.AdminEmails, cfg.UsageTimezone, service.SystemClock, logger)
	userService := service.NewUserService(queries, logger)

	readingDeps := service.ReadingDeps{
		Usage:           usageService,
		Provider:        provider,
		Drawer:          tarot.NewDrawer(),
		Store:           queries,
		DefaultLanguage: cfg.DefaultLanguage,
		Clock:           service.SystemClock,
	}

	// Background worker archives readings to object storage
	var jobWorker *worker.Worker
	if cfg.WorkerEnabled {
		store, err := storage.New(cfg.StorageConfig(), logger)
		if err != nil {
			return fmt.Errorf("storage initialization failed: %w", err)
		}

		jobWorker, err = worker.New(queries, txManager, cfg.WorkerConfig(), logger)
		if err != nil {
			return fmt.Errorf("worker initialization failed: %w", err)
		}
		jobWorker.Register(jobs.NewArchiveReadingHandler(store, logger))
		readingDeps.Archiver = worker.ReadingArchiver{Queue: queries}
	} else {
		logger.Info("Worker disabled, readings will not be archived")
	}

	readingService := service.NewReadingService(readingDeps, logger)

	// Initialize middleware
	isSecure := !cfg.IsDevelopment()
	verifier := auth.NewVerifier(cfg.AuthTokenSecret, cfg.AuthTokenIssuer)
	authMw := middleware.NewAuthMiddleware(verifier, userService, adminService, logger, isSecure)
	loggingMw := middleware.NewRequestLoggingMiddleware(logger)
	securityMw := middleware.NewSecurityHeadersMiddleware(isSecure)
	csrfMw := middleware.NewCSRFMiddleware(logger, isSecure)
	metricsAuthMw := middleware.NewMetricsAuthMiddleware(cfg.MetricsUsername, cfg.MetricsPassword, cfg.IsDevelopment(), logger)

	redeemLimiter := middleware.NewRateLimiter(cfg.RedeemRateLimit, cfg.RedeemRateWindow, logger)
	redeemLimitMw := middleware.NewRateLimitMiddleware(redeemLimiter, middleware.KeyByUserOrIP, logger)

	// Initialize handlers
	validate := handler.NewValidator()
	topicHandler := handler.NewTopicHandler(topicService, validate, logger)
	usageHandler := handler.NewUsageHandler(usageService, logger)
	redeemHandler := handler.NewRedeemHandler(redeemService, validate, logger)
	planHandler := handler.NewPlanHandler(planService, usageService, logger)
	readingHandler := handler.NewReadingHandler(readingService, validate, logger)
	adminHandler := handler.NewAdminHandler(adminService, validate, logger)

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	mux := http.NewServeMux()

	mux.Handle("GET /health", handler.Health(pool, logger))
	mux.Handle("GET /metrics", metricsAuthMw.Handler(promhttp.Handler()))

	// WithUser wraps the whole mux, so per-route stacks only gate.
	withUser := middleware.Stack()
	requireUser := authMw.RequireUser
	requireAdmin := authMw.RequireAdmin

	topicHandler.RegisterRoutes(mux, requireUser)
	usageHandler.RegisterRoutes(mux, requireUser)
	redeemHandler.RegisterRoutes(mux, requireUser, redeemLimitMw.Limit)
	planHandler.RegisterRoutes(mux, withUser, requireUser)
	readingHandler.RegisterRoutes(mux, requireUser)
	adminHandler.RegisterRoutes(mux, requireAdmin)

	mux.HandleFunc("/", handler.NotFoundResponse)

	var root http.Handler = middleware.Stack(
		metrics.Middleware,
		securityMw.Handler,
		csrfMw.Handler,
		authMw.WithUser,
		loggingMw.Handler,
	)(mux)

	if len(cfg.CORSOrigins) > 0 {
		root = cors.New(cors.Options{
			AllowedOrigins:   cfg.CORSOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Authorization", "Content-Type", csrf.HeaderName},
			AllowCredentials: true,
			MaxAge:           600,
		}).Handler(root)
	}

	// ==========================================================================
	// Start server and worker
	// ==========================================================================

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           root,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// Readings wait on the provider, including its retries.
		WriteTimeout: cfg.AIRequestTimeout*time.Duration(cfg.AIMaxRetries+1) + 30*time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Server started", "address", server.Addr, "env", cfg.Env, "ai_provider", cfg.AIProvider)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	if jobWorker != nil {
		g.Go(func() error {
			return jobWorker.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received, initiating graceful shutdown...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("Graceful shutdown complete")
	return nil
}

// newProvider builds the reading provider selected by AI_PROVIDER.
func newProvider(cfg *internal.Config, logger *slog.Logger) (ai.ReadingProvider, error) {
	if cfg.AIProvider == "anthropic" {
		return anthropic.New(cfg.AnthropicConfig(), logger)
	}
	logger.Warn("Using mock AI provider, readings are canned")
	return mock.New(logger), nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
