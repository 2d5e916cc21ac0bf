package httpadapter

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/kirillkom/dataset-analytics/internal/config"
	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

type uploaderFake struct {
	err     error
	lastReq ports.UploadRequest
	body    string
}

func (f *uploaderFake) CreateProject(_ context.Context, ownerID, name string) (*domain.Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Project{ID: 3, OwnerID: ownerID, Name: name, CreatedAt: time.Now().UTC()}, nil
}

func (f *uploaderFake) Upload(_ context.Context, req ports.UploadRequest) (*domain.Dataset, error) {
	if f.err != nil {
		return nil, f.err
	}
	raw, err := io.ReadAll(req.Body)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload", errors.New("empty file"))
	}
	f.lastReq = req
	f.body = string(raw)
	now := time.Now().UTC()
	return &domain.Dataset{
		ID:            11,
		ProjectID:     req.ProjectID,
		Name:          req.Name,
		Status:        domain.StatusPending,
		FileSizeBytes: int64(len(raw)),
		MimeType:      req.MimeType,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

type readerFake struct {
	datasets map[int64]*domain.Dataset
}

func (f readerFake) GetForOwner(_ context.Context, ownerID string, datasetID int64) (*domain.Dataset, error) {
	ds, ok := f.datasets[datasetID]
	if !ok || ownerID != "owner-1" {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("no match"))
	}
	return ds, nil
}

type analyticsFake struct {
	status      domain.DatasetStatus
	err         error
	lastFilters domain.Filters
}

func (f *analyticsFake) Filters(_ context.Context, ownerID string, _ int64) (domain.FilterOptions, error) {
	if ownerID != "owner-1" {
		return domain.FilterOptions{}, domain.WrapError(domain.ErrDatasetNotFound, "filters", errors.New("no match"))
	}
	opts := domain.EmptyFilterOptions(f.status)
	if f.status == domain.StatusCompleted {
		opts.Values[domain.DimBrand] = []any{"Alpha", "Beta"}
		opts.Values[domain.DimYear] = []any{int64(2023), int64(2024)}
	}
	return opts, nil
}

func (f *analyticsFake) Analytics(_ context.Context, ownerID string, datasetID int64, filters domain.Filters) (*domain.AnalyticsReport, error) {
	f.lastFilters = filters
	if ownerID != "owner-1" {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "analytics", errors.New("no match"))
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.status != domain.StatusCompleted {
		return nil, &domain.NotReadyError{Status: f.status}
	}
	return &domain.AnalyticsReport{
		DatasetInfo:       domain.DatasetInfo{ID: datasetID, Name: "sales"},
		SalesByBrandYear:  []domain.Row{{"brand": "Alpha", "year": int64(2023), "total_sales": 10.5}},
		VolumeByBrandYear: []domain.Row{},
		YearlyComparison:  []domain.Row{},
		MonthlyTrend:      []domain.Row{},
		MarketShare:       []domain.Row{},
	}, nil
}

type recorderFake struct {
	uploads  int
	reads    []string
	notReady []string
}

func (r *recorderFake) RecordUpload(string, int64, error) { r.uploads++ }
func (r *recorderFake) RecordRead(_, endpoint string)     { r.reads = append(r.reads, endpoint) }
func (r *recorderFake) RecordNotReady(_, endpoint, status string) {
	r.notReady = append(r.notReady, endpoint+":"+status)
}

type testDeps struct {
	uploader  *uploaderFake
	analytics *analyticsFake
	recorder  *recorderFake
}

func newTestHandler(t *testing.T, cfg config.Config) (http.Handler, testDeps) {
	t.Helper()
	deps := testDeps{
		uploader:  &uploaderFake{},
		analytics: &analyticsFake{status: domain.StatusCompleted},
		recorder:  &recorderFake{},
	}
	reader := readerFake{datasets: map[int64]*domain.Dataset{
		7: {ID: 7, ProjectID: 3, Name: "sales", Status: domain.StatusCompleted},
	}}
	handler, err := NewRouter(cfg, deps.uploader, reader, deps.analytics).
		WithRecorder("api-test", deps.recorder).
		Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}
	return handler, deps
}
