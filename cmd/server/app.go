package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ledgerlift/receipt-api/internal/api/middleware"
	"github.com/ledgerlift/receipt-api/internal/cache"
	"github.com/ledgerlift/receipt-api/internal/config"
	"github.com/ledgerlift/receipt-api/internal/pipeline"
	"github.com/ledgerlift/receipt-api/internal/platform/gemini"
	"github.com/ledgerlift/receipt-api/internal/platform/postgres"
	"github.com/ledgerlift/receipt-api/internal/service"
	"github.com/ledgerlift/receipt-api/internal/storage"
	"github.com/ledgerlift/receipt-api/internal/store"
)

// application holds all the shared application dependencies to simplify
// management and ensure proper cleanup on shutdown.
type application struct {
	// Configuration
	config *config.Config

	// Core services
	logger *slog.Logger
	db     *sql.DB

	// Stores (using interfaces for proper abstraction)
	jobStore     store.JobStore
	receiptStore store.ReceiptStore
	objectStore  storage.ObjectStore

	// Result cache, Redis-backed with an in-memory fallback
	resultCache pipeline.ResultCache
	redisCache  *cache.RedisCache

	// Pipeline components
	limiter    *pipeline.TokenBucket
	submitter  *pipeline.Submitter
	workerPool *pipeline.WorkerPool

	// Service interfaces
	receiptService service.ReceiptService

	// API key authentication for the HTTP surface
	authMiddleware *middleware.AuthMiddleware
}

// newApplication creates a new application instance with all dependencies
// initialized. It accepts core dependencies like configuration, logger and
// database connection that must be established before initialization.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	// Initialize stores
	app.jobStore = postgres.NewPostgresJobStore(db, logger)
	app.receiptStore = postgres.NewPostgresReceiptStore(db, logger)

	var err error
	app.objectStore, err = storage.NewFilesystemStore(cfg.Storage.Root)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize object store: %w", err)
	}

	// Initialize the result cache. Redis is preferred; if it is unreachable
	// at startup the process falls back to an in-memory cache, trading
	// cross-process dedup for availability.
	app.resultCache = app.setupResultCache(ctx, cfg, logger)

	// Initialize the analyzer for the external LLM
	analyzer, err := gemini.NewGeminiAnalyzer(ctx, logger.With("component", "analyzer"), cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize analyzer: %w", err)
	}
	logger.Info("analyzer initialized", "model", cfg.LLM.ModelName)

	// Rate limiter shared by all workers
	app.limiter, err = pipeline.NewTokenBucket(
		cfg.Pipeline.LimiterCapacity,
		cfg.Pipeline.LimiterRefillPerSec,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize rate limiter: %w", err)
	}

	// Submitter: the idempotency layer in front of the queue
	app.submitter, err = pipeline.NewSubmitter(app.jobStore, app.resultCache, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize submitter: %w", err)
	}

	// Receipt service; it doubles as the pipeline's result persister
	app.receiptService, err = service.NewReceiptService(
		app.objectStore,
		app.submitter,
		app.jobStore,
		app.receiptStore,
		db,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create receipt service: %w", err)
	}

	retry := pipeline.NewRetryController(pipeline.RetryPolicy{
		MaxAttempts: cfg.Pipeline.MaxAttempts,
		Base:        cfg.Pipeline.BackoffBase,
		Cap:         cfg.Pipeline.BackoffCap,
	})

	app.workerPool, err = pipeline.NewWorkerPool(
		app.jobStore,
		app.resultCache,
		app.limiter,
		analyzer,
		app.objectStore,
		app.receiptService,
		retry,
		pipeline.WorkerPoolConfig{
			WorkerCount:     cfg.Pipeline.WorkerCount,
			PollInterval:    cfg.Pipeline.PollInterval,
			LeaseDuration:   cfg.Pipeline.LeaseDuration,
			ReclaimInterval: cfg.Pipeline.ReclaimInterval,
			CallTimeout:     cfg.LLM.RequestTimeout,
			CacheTTL:        cfg.Pipeline.CacheTTL,
		},
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	app.authMiddleware, err = middleware.NewAuthMiddleware(cfg.Auth.APIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authentication: %w", err)
	}

	logger.Info("application initialized")
	return app, nil
}

// setupResultCache connects to Redis, falling back to an in-memory cache
// when the connection cannot be established.
func (app *application) setupResultCache(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
) pipeline.ResultCache {
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err == nil {
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		err = redisCache.Ping(pingCtx)
		if err == nil {
			logger.Info("result cache connected", "backend", "redis")
			app.redisCache = redisCache
			return cache.NewResultCache(redisCache)
		}
		if closeErr := redisCache.Close(); closeErr != nil {
			logger.Debug("error closing failed redis connection", "error", closeErr)
		}
	}

	logger.Warn("redis unavailable, using in-memory result cache", "error", err)
	return cache.NewResultCache(cache.NewMemoryCache())
}

// Run starts the worker pool and the HTTP server, handling lifecycle and
// cleanup. It blocks until shutdown completes.
func (app *application) Run(ctx context.Context) error {
	app.workerPool.Start()
	app.logger.Info("worker pool started",
		"worker_count", app.config.Pipeline.WorkerCount)

	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.workerPool != nil {
		app.workerPool.Stop()
	}

	if app.limiter != nil {
		app.limiter.Close()
	}

	if app.redisCache != nil {
		if err := app.redisCache.Close(); err != nil {
			app.logger.Error("error closing redis connection", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", "error", err)
		}
	}

	app.logger.Info("application shutdown completed")
}
