package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/odyssey-erp/scm-dashboard/internal/api"
	"github.com/odyssey-erp/scm-dashboard/internal/app"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard"
	"github.com/odyssey-erp/scm-dashboard/internal/dashboard/export"
	dashboardhttp "github.com/odyssey-erp/scm-dashboard/internal/dashboard/http"
	"github.com/odyssey-erp/scm-dashboard/internal/observability"
	"github.com/odyssey-erp/scm-dashboard/internal/platform/cache"
	"github.com/odyssey-erp/scm-dashboard/internal/shared"
	"github.com/odyssey-erp/scm-dashboard/internal/view"
	"github.com/odyssey-erp/scm-dashboard/report"
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
	slog.SetDefault(logger)

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	client := api.NewClient(cfg.APIBaseURL(), cfg.APITimeout).WithObserver(metrics)
	store := dashboard.NewRedisStore(redisClient, cfg.SessionTTL, cfg.BusyTTL)
	service := dashboard.NewService(client, store, logger, metrics)

	sessionManager := shared.NewSessionManager(redisClient, "dashboard_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	var reportClient *report.Client
	if cfg.GotenbergURL != "" {
		reportClient = report.NewClient(cfg.GotenbergURL, 0)
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := reportClient.Ping(pingCtx); err != nil {
			logger.Warn("gotenberg unavailable, pdf export will fail until it is reachable", slog.Any("error", err))
		}
		cancel()
	}

	var pdfRenderer export.Renderer
	if reportClient != nil {
		pdfRenderer = reportClient
	}
	dashboardHandler := dashboardhttp.NewHandler(logger, service, templates, csrfManager, pdfRenderer, cfg.Locale())

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		DashboardHandler: dashboardHandler,
		ReportHandler:    report.NewHandler(reportClient, logger),
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", client.BaseURL()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
