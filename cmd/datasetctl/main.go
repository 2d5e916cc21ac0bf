package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/kirillkom/dataset-analytics/internal/bootstrap"
	"github.com/kirillkom/dataset-analytics/internal/cli"
	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/dataset-analytics/internal/observability/logging"
)

func newBackend(ctx context.Context, cfg config.Config) (*cli.Backend, error) {
	slog.SetDefault(logging.NewJSONLoggerTo(os.Stderr, "datasetctl", cfg.LogLevel))

	app, err := bootstrap.New(ctx, cfg, bootstrap.Options{})
	if err != nil {
		return nil, fmt.Errorf("bootstrap: %w", err)
	}
	return &cli.Backend{
		Migrate: func(ctx context.Context) (int64, error) {
			if err := postgres.Migrate(ctx, app.DB); err != nil {
				return 0, err
			}
			return postgres.MigrationVersion(ctx, app.DB)
		},
		Processor: app.ProcessUC,
		Reader:    app.ReaderUC,
		Analytics: app.AnalyticsUC,
		Close:     app.Close,
	}, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCmd(newBackend).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}
