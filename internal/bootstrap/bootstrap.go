package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
	"github.com/kirillkom/dataset-analytics/internal/core/usecase"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/cleaning"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/queue/nats"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/resilience"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/tabular"
)

// Options selects the pieces a process needs. Processes that never publish
// or consume skip the NATS connection.
type Options struct {
	ConnectQueue bool
	Migrate      bool
}

type App struct {
	Config config.Config
	DB     *sql.DB

	Queue ports.MessageQueue
	Repo  ports.DatasetRepository

	UploadUC    ports.DatasetUploader
	ProcessUC   *usecase.ProcessDatasetUseCase
	ReaderUC    ports.DatasetReader
	AnalyticsUC ports.AnalyticsService

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN, postgres.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime(),
	})
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if opts.Migrate {
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate schema: %w", err)
		}
	}

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init object storage: %w", err)
	}

	executor := resilience.NewExecutor(cfg.Resilience)
	repo := postgres.NewDatasetRepository(db)
	warehouse := postgres.NewWarehouse(db, cfg.IngestBatchSize).WithExecutor(executor)
	store := postgres.NewAnalyticsStore(db, cfg.AnalyticsConcurrency, cfg.FilterDistinctLimit)

	app := &App{
		Config:      cfg,
		DB:          db,
		Repo:        repo,
		ProcessUC:   usecase.NewProcessDatasetUseCase(repo, tabular.NewLoader(storage), cleaning.New(), warehouse),
		ReaderUC:    usecase.NewDatasetQueryUseCase(repo),
		AnalyticsUC: usecase.NewAnalyticsUseCase(repo, store),
	}

	if !opts.ConnectQueue {
		app.closeFn = func() { _ = db.Close() }
		return app, nil
	}

	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	app.Queue = queue
	app.UploadUC = usecase.NewUploadDatasetUseCase(repo, storage, queue)
	app.closeFn = func() {
		queue.Close()
		_ = db.Close()
	}
	return app, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
