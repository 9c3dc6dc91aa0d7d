package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mosaicfin/bill-insights-go/internal/config"
	"github.com/mosaicfin/bill-insights-go/internal/domain"
	"github.com/mosaicfin/bill-insights-go/internal/handler"
	"github.com/mosaicfin/bill-insights-go/internal/infra/cache"
	"github.com/mosaicfin/bill-insights-go/internal/infra/client"
	"github.com/mosaicfin/bill-insights-go/internal/infra/observability"
	"github.com/mosaicfin/bill-insights-go/internal/infra/remote"
	"github.com/mosaicfin/bill-insights-go/internal/infra/resilience"
	"github.com/mosaicfin/bill-insights-go/internal/infra/sqlite"
	"github.com/mosaicfin/bill-insights-go/internal/port"
	"github.com/mosaicfin/bill-insights-go/internal/service"

	"go.uber.org/zap"
)

func main() {
	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.Int("port", cfg.Port),
		zap.String("log_level", cfg.LogLevel),
		zap.String("db_path", cfg.DBPath),
		zap.Bool("remote_sync", cfg.RemoteSyncURL != ""),
		zap.Duration("http_timeout", cfg.HTTPTimeout),
		zap.Duration("insight_cache_ttl", cfg.InsightCacheTTL),
		zap.Duration("report_load_timeout", cfg.ReportLoadTimeout),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
		zap.Duration("jwt_access_ttl", cfg.JWTAccessTTL),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "bill-insights")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	// --- Metrics ---
	metrics := observability.NewMetrics()

	// --- Store ---
	store, err := sqlite.New(cfg.DBPath, logger)
	if err != nil {
		logger.Fatal("failed to open store", zap.Error(err))
	}
	defer store.Close()

	// --- Resilience ---
	resilienceCfg := resilience.Config{
		MaxRetries:     cfg.MaxRetries,
		InitialBackoff: cfg.InitialBackoff,
		MaxConcurrency: cfg.MaxConcurrency,
	}
	cb := resilience.NewCircuitBreaker("external-apis")

	// --- Clients ---
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var remoteStore port.RemoteSyncStore
	if cfg.RemoteSyncURL != "" {
		logger.Info("remote sync enabled", zap.String("remote_sync_url", cfg.RemoteSyncURL))
		remoteStore = remote.NewClient(httpClient, cfg.RemoteSyncURL, cfg.RemoteSyncToken, cb, resilienceCfg, logger)
	} else {
		logger.Warn("remote sync: REMOTE_SYNC_URL not set, reconcile unavailable")
	}

	// --- Services ---
	reportSvc := service.NewReportService(store, logger)

	coords := service.NewCoordinatorSet(reportSvc, metrics, logger)
	coords.SetLoadTimeout(cfg.ReportLoadTimeout)

	syncSvc := service.NewSyncService(store, remoteStore, metrics, logger)

	authSvc := service.NewAuthService(store, cfg.JWTSecret, cfg.JWTAccessTTL, logger)

	var insightSvc *service.InsightService
	if cfg.InsightAgentURL != "" {
		agentClient := client.NewAgentClient(httpClient, cfg.InsightAgentURL, cb, resilienceCfg)
		insightCache := cache.New[[]domain.Insight](cfg.InsightCacheTTL)
		insightSvc = service.NewInsightService(reportSvc, agentClient, insightCache, metrics, logger)
	} else {
		logger.Warn("insight service: INSIGHT_AGENT_URL not set, insights unavailable")
	}

	// --- Router ---
	router := handler.NewRouter(handler.Deps{
		Store:    store,
		DB:       store,
		Coords:   coords,
		Reports:  reportSvc,
		Sync:     syncSvc,
		Insights: insightSvc,
		Auth:     authSvc,
		Metrics:  metrics,
		Logger:   logger,
	})

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	go func() {
		logger.Info("server starting", zap.Int("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
