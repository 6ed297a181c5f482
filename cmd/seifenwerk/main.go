package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/seifenwerk/seifenwerk/internal/app"
	"github.com/seifenwerk/seifenwerk/internal/audit"
	"github.com/seifenwerk/seifenwerk/internal/catalog"
	"github.com/seifenwerk/seifenwerk/internal/observability"
	"github.com/seifenwerk/seifenwerk/internal/platform/cache"
	"github.com/seifenwerk/seifenwerk/internal/platform/db"
	"github.com/seifenwerk/seifenwerk/internal/sales"
	"github.com/seifenwerk/seifenwerk/internal/shared"
	"github.com/seifenwerk/seifenwerk/internal/stock"
	"github.com/seifenwerk/seifenwerk/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The engine degrades to uncached reads without Redis.
		logger.Warn("redis unavailable", slog.Any("error", err))
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	store := stock.NewPGStore(pool)
	ledger := stock.NewPGLedger(pool)
	auditLogger := shared.NewAuditLogger(pool)
	idempotency := shared.NewIdempotencyStore(pool)
	lowStockCache := stock.NewLowStockCache(redisClient, cfg.LowStockCacheTTL)

	catalogRepo := catalog.NewRepository(pool)
	catalogService := catalog.NewService(catalogRepo)
	gateway := catalog.NewStockGateway(catalogRepo)

	stockService := stock.NewService(store, ledger, gateway, auditLogger, idempotency, lowStockCache)
	stockHandler := stock.NewHandler(logger, stockService)
	catalogHandler := catalog.NewHandler(logger, catalogService, store)

	salesService := sales.NewService(logger, sales.NewRepository(pool), stockService)
	salesHandler := sales.NewHandler(logger, salesService)

	auditService := audit.NewService(pool)
	auditHandler := audit.NewHandler(logger, auditService, audit.NewCSVExporter(), audit.ExportLimit{
		Requests: cfg.ExportRateLimit,
		Window:   cfg.ExportRateInterval,
	})

	metrics := observability.NewMetrics()

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Warn("job client init", slog.Any("error", err))
	} else {
		defer func() {
			if err := jobClient.Close(); err != nil {
				logger.Warn("job client close", slog.Any("error", err))
			}
		}()
	}
	jobHandler := jobs.NewHandler(inspector, jobClient, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		StockHandler:   stockHandler,
		CatalogHandler: catalogHandler,
		SalesHandler:   salesHandler,
		AuditHandler:   auditHandler,
		JobHandler:     jobHandler,
		Metrics:        metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
