package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	mcpadapter "github.com/kirillkom/manual-assistant/internal/adapters/mcp"
	"github.com/kirillkom/manual-assistant/internal/bootstrap"
	"github.com/kirillkom/manual-assistant/internal/config"
	"github.com/kirillkom/manual-assistant/internal/observability/logging"
)

const (
	serviceName = "mcp"
	version     = "0.1.0"
)

func main() {
	cfg := config.Load()
	logger := logging.NewJSONLoggerTo(os.Stderr, serviceName, cfg.LogLevel)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		logger.Error("bootstrap_failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	s := mcpadapter.NewServer(version, mcpadapter.NewTools(app.QueryUC, app.QueryUC.Citations()))
	logger.Info("mcp_serving_stdio", "chunk_store", cfg.ChunkStore)
	if err := mcpadapter.ServeStdio(s); err != nil {
		logger.Error("mcp_server_failed", "error", err)
		os.Exit(1)
	}
}
