package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/couchcryptid/streamflow-engine/internal/adapter/curvecache"
	"github.com/couchcryptid/streamflow-engine/internal/adapter/httpadapter"
	kafkaadapter "github.com/couchcryptid/streamflow-engine/internal/adapter/kafka"
	"github.com/couchcryptid/streamflow-engine/internal/adapter/sqlite"
	"github.com/couchcryptid/streamflow-engine/internal/config"
	"github.com/couchcryptid/streamflow-engine/internal/observability"
	"github.com/couchcryptid/streamflow-engine/internal/pipeline"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	settings := pipeline.DefaultSettings()
	settings.Calibration.A = cfg.DefaultMeterA
	settings.Calibration.B = cfg.DefaultMeterB
	settings.Calibration.UncertaintyPercent = cfg.DefaultMeterUncertainty
	settings.Baseflow.Alpha = cfg.BaseflowAlpha
	settings.Baseflow.BFIMax = cfg.BaseflowBFIMax

	// Rating-curve registry (disabled when CURVE_DB_PATH is empty).
	var (
		curves   pipeline.CurveStore
		registry *sqlite.Registry
	)
	if cfg.CurveDBPath != "" {
		registry, err = sqlite.Open(cfg.CurveDBPath, logger)
		if err != nil {
			logger.Error("failed to open rating-curve registry", "path", cfg.CurveDBPath, "error", err)
			os.Exit(1)
		}
		curves = curvecache.New(registry, cfg.CurveCacheSize, metrics)
		logger.Info("rating-curve registry enabled", "path", cfg.CurveDBPath, "cache_size", cfg.CurveCacheSize)
	} else {
		logger.Info("rating-curve registry disabled")
	}

	reader := kafkaadapter.NewReader(cfg, logger)
	writer := kafkaadapter.NewWriter(cfg, logger)
	transformer := pipeline.NewTransformer(curves, settings, clockwork.NewRealClock(), logger, metrics)

	p := pipeline.New(reader, transformer, writer, logger, metrics, cfg.BatchSize, cfg.TransformWorkers)

	checks := []sharedobs.ReadinessChecker{p}
	if registry != nil {
		checks = append(checks, registry)
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, transformer, logger, checks...)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	go func() {
		if err := p.Run(ctx); err != nil {
			logger.Error("pipeline error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	if err := reader.Close(); err != nil {
		logger.Error("kafka reader close error", "error", err)
	}
	if err := writer.Close(); err != nil {
		logger.Error("kafka writer close error", "error", err)
	}
	if registry != nil {
		if err := registry.Close(); err != nil {
			logger.Error("registry close error", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
