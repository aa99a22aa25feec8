package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"

	"github.com/airshed-labs/estimate-service/internal/adapter/elevation"
	"github.com/airshed-labs/estimate-service/internal/adapter/httpapi"
	"github.com/airshed-labs/estimate-service/internal/adapter/modelsvc"
	"github.com/airshed-labs/estimate-service/internal/adapter/postgres"
	"github.com/airshed-labs/estimate-service/internal/config"
	"github.com/airshed-labs/estimate-service/internal/domain"
	"github.com/airshed-labs/estimate-service/internal/observability"
	"github.com/airshed-labs/estimate-service/internal/pipeline"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	areas, err := config.LoadAreaModels(cfg.AreasPath)
	if err != nil {
		logger.Error("failed to load areas", "error", err)
		os.Exit(1)
	}
	logger.Info("areas loaded", "count", len(areas), "path", cfg.AreasPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to telemetry store", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	models := modelsvc.NewClient(cfg.ModelServiceURL, cfg.ModelServiceTimeout)
	elevations := elevation.NewProvider(cfg.ElevationDir)

	estimator := pipeline.NewEstimator(
		store,
		models,
		elevations,
		logger,
		metrics,
		pipeline.Params{
			SpaceKernelPadding:    cfg.SpaceKernelPadding,
			TimeKernelPadding:     cfg.TimeKernelPadding,
			ChunkSizeFactor:       cfg.ChunkSizeFactor,
			MinAcceptableEstimate: cfg.MinAcceptableEstimate,
		},
		domain.ConditionParams{
			DayMeanCeiling: cfg.DayMeanCeiling,
			QuarantineDays: cfg.QuarantineDays,
		},
	)

	server := httpapi.NewServer(areas, estimator, store, clockwork.NewRealClock(), logger)
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: server.Router(),
	}

	go func() {
		logger.Info("http server listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
