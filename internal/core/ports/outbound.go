package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

// DatasetRepository persists project and dataset metadata.
type DatasetRepository interface {
	CreateProject(ctx context.Context, project *domain.Project) error
	GetProject(ctx context.Context, ownerID string, projectID int64) (*domain.Project, error)
	Create(ctx context.Context, ds *domain.Dataset) error
	GetByID(ctx context.Context, id int64) (*domain.Dataset, error)
	GetForOwner(ctx context.Context, ownerID string, id int64) (*domain.Dataset, error)
	UpdateStatus(ctx context.Context, id int64, status domain.DatasetStatus, errMessage string, at time.Time) error
	SaveProfile(ctx context.Context, id int64, profile domain.DataProfile) error
}

// ObjectStorage stores uploaded source files.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) (int64, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// MessageQueue publishes/consumes dataset upload events.
type MessageQueue interface {
	PublishDatasetUploaded(ctx context.Context, datasetID int64) error
	SubscribeDatasetUploaded(ctx context.Context, handler func(context.Context, int64) error) error
}

// TableLoader parses a stored upload into an in-memory table.
type TableLoader interface {
	Load(ctx context.Context, ds *domain.Dataset) (*domain.Table, error)
}

// Cleaner normalizes headers, imputes missing values and drops duplicate rows.
type Cleaner interface {
	Clean(table *domain.Table) (domain.CleanResult, error)
}

// Warehouse hands out job-scoped sessions against the relational store.
type Warehouse interface {
	OpenSession(ctx context.Context) (WarehouseSession, error)
}

// WarehouseSession materializes one dataset. Index and aggregation builds are
// best-effort and report per-step results instead of failing.
type WarehouseSession interface {
	ReplaceRawTable(ctx context.Context, datasetID int64, table *domain.Table) (tableName string, rows int64, err error)
	BuildIndexes(ctx context.Context, datasetID int64, columns []string) []domain.StepResult
	BuildAggregations(ctx context.Context, datasetID int64, columns []string) []domain.StepResult
	Close() error
}

// AnalyticsStore runs read-only queries against a materialized dataset.
type AnalyticsStore interface {
	RunViews(ctx context.Context, datasetID int64, filters domain.Filters) (*domain.AnalyticsReport, error)
	DistinctValues(ctx context.Context, datasetID int64, dims []domain.Dimension) map[domain.Dimension][]any
}

// JobObserver receives ingestion telemetry. Implementations must not block.
type JobObserver interface {
	ObserveQueueLag(lag time.Duration)
	ObserveJob(report domain.JobReport, duration time.Duration, err error)
}
