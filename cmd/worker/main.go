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

	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/core/domain"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
	"github.com/kirillkom/manual-assistant/internal/observability/metrics"
)

const (
	serviceName      = "worker"
	perManualTimeout = 5 * time.Minute
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{WithQueue: true})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", workerMetrics.Handler())
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("worker_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	logger.Info("worker_subscribed", "subject", cfg.NATSSubject, "chunk_store", cfg.ChunkStore)
	err = app.Queue.SubscribeManualIngested(ctx, func(handlerCtx context.Context, event domain.IngestEvent) error {
		processCtx, cancel := context.WithTimeout(handlerCtx, perManualTimeout)
		defer cancel()

		started := time.Now()
		workerMetrics.StartManual()
		chunks, err := app.ProcessUC.IngestManual(processCtx, event)
		workerMetrics.FinishManual(serviceName, time.Since(started), chunks, err)
		if err != nil {
			return err
		}
		logger.InfoContext(processCtx, "manual_ingested",
			"manual_id", event.ManualID,
			"version", event.Version,
			"chunks", chunks,
			"duration_ms", time.Since(started).Milliseconds(),
		)
		return nil
	})
	if err != nil {
		logger.Error("worker_subscribe_failed", "error", err)
		os.Exit(1)
	}
}
