package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/mamadbah2/stockbook/internal/cache"
	"github.com/mamadbah2/stockbook/internal/config"
	"github.com/mamadbah2/stockbook/internal/metrics"
	"github.com/mamadbah2/stockbook/internal/repository"
	"github.com/mamadbah2/stockbook/internal/repository/memory"
	"github.com/mamadbah2/stockbook/internal/repository/mongodb"
	"github.com/mamadbah2/stockbook/internal/repository/sheets"
	"github.com/mamadbah2/stockbook/internal/scheduler"
	"github.com/mamadbah2/stockbook/internal/server/handlers"
	"github.com/mamadbah2/stockbook/internal/server/router"
	"github.com/mamadbah2/stockbook/internal/service/forecast"
	ledgersvc "github.com/mamadbah2/stockbook/internal/service/ledger"
	reportingsvc "github.com/mamadbah2/stockbook/internal/service/reporting"
	"github.com/mamadbah2/stockbook/pkg/clients/webhook"
	"github.com/mamadbah2/stockbook/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		panic(err)
	}

	baseLogger := logger.Must(logger.New(cfg.Log.Level))
	defer func() { _ = baseLogger.Sync() }()

	zap.ReplaceGlobals(baseLogger)

	ctx := context.Background()
	reg := metrics.NewRegistry()

	var (
		store repository.Store
		sinks []scheduler.ReportSink
	)
	switch cfg.Store.Backend {
	case config.BackendMemory:
		store = memory.NewStore()
		baseLogger.Warn("using in-memory store, data is lost on restart")
	default:
		mongoRepo, err := mongodb.NewMongoDBRepository(ctx, cfg.MongoDB.URI, cfg.MongoDB.DBName, baseLogger.Named("repo.mongodb"))
		if err != nil {
			baseLogger.Fatal("failed to init mongodb repository", zap.Error(err))
		}
		defer func() {
			if err := mongoRepo.Close(context.Background()); err != nil {
				baseLogger.Error("failed to close mongodb connection", zap.Error(err))
			}
		}()
		if err := mongoRepo.EnsureIndexes(ctx); err != nil {
			baseLogger.Fatal("failed to create mongodb indexes", zap.Error(err))
		}
		store = mongoRepo
		sinks = append(sinks, mongoRepo)
	}

	var snapshotCache *cache.SnapshotCache
	if cfg.Redis.Addr != "" {
		client, err := cache.NewRedisClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			baseLogger.Fatal("failed to init redis", zap.Error(err))
		}
		defer func() { _ = client.Close() }()
		snapshotCache = cache.NewSnapshotCache(client, cfg.Redis.SnapshotTTL)
		baseLogger.Info("snapshot cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	if cfg.Sheets.SpreadsheetID != "" {
		sheetsRepo, err := sheets.NewGoogleSheetRepository(ctx, cfg.Sheets, baseLogger.Named("repo.sheets"))
		if err != nil {
			baseLogger.Fatal("failed to init sheets repository", zap.Error(err))
		}
		sinks = append(sinks, sheets.NewReportExporter(sheetsRepo, ""))
	}

	forecaster := forecast.New(forecast.Config{
		SafetyStockDays: cfg.Forecast.SafetyStockDays,
		LookbackDays:    cfg.Forecast.LookbackDays,
	})

	// A nil *SnapshotCache must not reach the services as a non-nil interface.
	var (
		invalidator ledgersvc.Invalidator
		readCache   reportingsvc.SnapshotCache
	)
	if snapshotCache != nil {
		invalidator, readCache = snapshotCache, snapshotCache
	}

	ledgerSvc := ledgersvc.NewService(store, invalidator, reg, ledgersvc.Config{MaxRetries: cfg.Ledger.MaxRetries}, baseLogger.Named("svc.ledger"))
	reportingSvc := reportingsvc.NewService(store, readCache, reg, forecaster, baseLogger.Named("svc.reporting"))

	if err := handlers.RegisterValidators(); err != nil {
		baseLogger.Fatal("failed to register validators", zap.Error(err))
	}
	inventoryHandler := handlers.NewInventoryHandler(ledgerSvc, reportingSvc, baseLogger.Named("handlers.inventory"))
	engine := router.New(inventoryHandler, reg.Handler(), baseLogger.Named("router"))

	opts := scheduler.Options{Sinks: sinks, Observer: reg}
	if cfg.Alerts.WebhookURL != "" {
		opts.Notifier = webhook.NewClient(cfg.Alerts)
	}
	sched, err := scheduler.NewScheduler(cfg.Reporting, reportingSvc, store, opts, baseLogger.Named("scheduler"))
	if err != nil {
		baseLogger.Fatal("failed to init scheduler", zap.Error(err))
	}
	if err := sched.Start(); err != nil {
		baseLogger.Fatal("failed to start scheduler", zap.Error(err))
	}
	defer sched.Stop()

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      engine,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		baseLogger.Info("server starting", zap.String("port", cfg.Server.Port), zap.String("store", cfg.Store.Backend))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			baseLogger.Fatal("http server crashed", zap.Error(err))
		}
	}()

	<-sigCtx.Done()
	baseLogger.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		baseLogger.Error("graceful shutdown failed", zap.Error(err))
	}
}
