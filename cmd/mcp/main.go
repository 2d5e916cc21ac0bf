package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"

	mcpadapter "github.com/kirillkom/dataset-analytics/internal/adapters/mcp"
	"github.com/kirillkom/dataset-analytics/internal/bootstrap"
	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/observability/logging"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	// stdout carries the protocol.
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "mcp", cfg.LogLevel))
	if cfg.MCPOwnerID == "" {
		log.Fatalf("MCP_OWNER_ID is required")
	}

	app, err := bootstrap.New(context.Background(), cfg, bootstrap.Options{})
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	tools := mcpadapter.NewTools(app.ReaderUC, app.AnalyticsUC, cfg.MCPOwnerID)
	slog.Info("mcp_server_started", "owner_id", cfg.MCPOwnerID)
	if err := server.ServeStdio(tools.Server()); err != nil {
		slog.Error("mcp_server_stopped", "error", err)
	}
}
