package ports

import (
	"context"
	"io"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

type UploadRequest struct {
	OwnerID   string
	ProjectID int64
	Name      string
	Filename  string
	MimeType  string
	Body      io.Reader
}

// DatasetUploader is the inbound contract for project creation and dataset upload.
type DatasetUploader interface {
	CreateProject(ctx context.Context, ownerID, name string) (*domain.Project, error)
	Upload(ctx context.Context, req UploadRequest) (*domain.Dataset, error)
}

// DatasetProcessor is the inbound contract for the asynchronous ingestion job.
type DatasetProcessor interface {
	ProcessByID(ctx context.Context, datasetID int64) error
}

// DatasetReader is the inbound read model for dataset metadata/state.
type DatasetReader interface {
	GetForOwner(ctx context.Context, ownerID string, datasetID int64) (*domain.Dataset, error)
}

// AnalyticsService serves filter discovery and aggregate views over a completed dataset.
type AnalyticsService interface {
	Filters(ctx context.Context, ownerID string, datasetID int64) (domain.FilterOptions, error)
	Analytics(ctx context.Context, ownerID string, datasetID int64, filters domain.Filters) (*domain.AnalyticsReport, error)
}
