// Package main is the entry point for the jsonpage server. It wires all
// dependencies together and starts the HTTP server.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/lk-keep-fighting/jsonpage/internal/action"
	"github.com/lk-keep-fighting/jsonpage/internal/config"
	"github.com/lk-keep-fighting/jsonpage/internal/observability"
	"github.com/lk-keep-fighting/jsonpage/internal/query"
	"github.com/lk-keep-fighting/jsonpage/internal/schema"
	"github.com/lk-keep-fighting/jsonpage/internal/source"
	"github.com/lk-keep-fighting/jsonpage/internal/transport"
	"github.com/lk-keep-fighting/jsonpage/model"
)

// Build-time variables set via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=abc1234"
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		return 1
	}

	observability.Version = version
	observability.Commit = commit

	logger, err := observability.NewLogger(cfg.Observability)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger error: %v\n", err)
		return 1
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	tracingShutdown, err := observability.InitTracing(ctx, cfg.Observability.Tracing, "jsonpage", version)
	if err != nil {
		logger.Error("tracing initialization failed", zap.Error(err))
		return 1
	}

	promRegistry := prometheus.NewRegistry()
	metrics := observability.InitMetrics(promRegistry)

	// Load, validate, and normalize page configurations.
	validator, err := schema.NewValidator()
	if err != nil {
		logger.Error("schema validator initialization failed", zap.Error(err))
		return 1
	}
	loader := schema.NewLoader(validator)
	pages, err := loader.LoadAll(cfg.Pages.Directories)
	if err != nil {
		logger.Error("page loading failed", zap.Error(err))
		return 1
	}
	registry := schema.NewRegistry(pages)
	metrics.RecordPageReload("success", registry.Len())

	engine := query.NewEngine(cfg.Query.DefaultTimeout)
	engine.SetMetrics(metrics)

	idemStore, idemCloser, storeChecker := buildIdempotencyStore(cfg.Idempotency, logger)

	executor := action.NewExecutor(logger,
		action.WithConfirmer(transport.RequestConfirmer),
		action.WithIdempotencyStore(idemStore, cfg.Idempotency.TTL),
	)

	// Start background controllers for pages that declare a refresh interval.
	bgCtx, bgCancel := context.WithCancel(ctx)
	defer bgCancel()
	controllers := startControllers(bgCtx, registry, engine, logger)
	defer controllers.CloseAll()

	router := transport.NewRouter(transport.Dependencies{
		Config:       cfg,
		Logger:       logger,
		Registry:     registry,
		Engine:       engine,
		Executor:     executor,
		Metrics:      metrics,
		Controllers:  controllers,
		PromRegistry: promRegistry,
		StoreChecker: storeChecker,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	logger.Info("server started",
		zap.Int("port", cfg.Server.Port),
		zap.String("version", version),
		zap.String("commit", commit),
		zap.Int("pages", registry.Len()),
		zap.String("pages_checksum", registry.Checksum()),
	)

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown initiated")
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		return 1
	}

	shutdownTimeout := cfg.Server.ShutdownTimeout
	if shutdownTimeout == 0 {
		shutdownTimeout = 30 * time.Second
	}
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	// Stop accepting new connections and drain in-flight requests.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	bgCancel()
	controllers.CloseAll()

	if idemCloser != nil {
		idemCloser()
	}

	if err := tracingShutdown(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", zap.Error(err))
	}

	logger.Info("shutdown complete")
	return 0
}

// buildIdempotencyStore creates the configured action result store. The third
// return value is non-nil when the store has a meaningful readiness probe.
func buildIdempotencyStore(cfg config.IdempotencyConfig, logger *zap.Logger) (action.IdempotencyStore, func(), observability.HealthChecker) {
	switch cfg.Store {
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		logger.Info("using redis idempotency store", zap.String("addr", cfg.Redis.Addr))
		store := action.NewRedisIdempotencyStore(client)
		return store, func() { client.Close() }, store
	default:
		logger.Info("using in-memory idempotency store")
		return action.NewMemoryIdempotencyStore(), nil, nil
	}
}

// startControllers builds a background data source controller for every page
// with a refresh interval and starts its refresh loop.
func startControllers(ctx context.Context, registry *schema.Registry, engine *query.Engine, logger *zap.Logger) *source.Manager {
	manager := source.NewManager()
	for _, page := range registry.All() {
		if page.RefreshInterval <= 0 {
			continue
		}
		page := page
		load := func(ctx context.Context, params model.LoadParams) (model.QueryResult, error) {
			return engine.Query(ctx, page.DataSource, params, page.Filters)
		}

		pageSize := 25
		if page.Table != nil && page.Table.Pagination != nil && page.Table.Pagination.DefaultPageSize > 0 {
			pageSize = page.Table.Pagination.DefaultPageSize
		}
		filters := make(map[string]any)
		for _, f := range page.Filters {
			if f.Default != nil {
				filters[f.ID] = f.Default
			}
		}
		ctrl := source.NewController(load,
			model.LoadParams{Page: 1, PageSize: pageSize, Filters: filters},
			logger.With(zap.String("page_id", page.ID)),
		)
		manager.Add(page.ID, ctrl)
		go ctrl.Run(ctx, page.RefreshInterval)

		logger.Info("background refresh started",
			zap.String("page_id", page.ID),
			zap.Duration("interval", page.RefreshInterval),
		)
	}
	return manager
}
