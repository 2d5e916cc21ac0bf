package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

// AnalyticsUseCase gates the read path on dataset ownership and readiness.
type AnalyticsUseCase struct {
	repo  ports.DatasetRepository
	store ports.AnalyticsStore
}

func NewAnalyticsUseCase(repo ports.DatasetRepository, store ports.AnalyticsStore) *AnalyticsUseCase {
	return &AnalyticsUseCase{repo: repo, store: store}
}

// Filters lists distinct dimension values. A dataset that is not completed
// yields empty lists rather than an error.
func (uc *AnalyticsUseCase) Filters(ctx context.Context, ownerID string, datasetID int64) (domain.FilterOptions, error) {
	ds, err := ownedDataset(ctx, uc.repo, ownerID, datasetID)
	if err != nil {
		return domain.FilterOptions{}, err
	}
	if !ds.Ready() {
		return domain.EmptyFilterOptions(ds.Status), nil
	}

	values := uc.store.DistinctValues(ctx, ds.ID, domain.FilterDimensions)
	out := domain.EmptyFilterOptions(ds.Status)
	for dim, list := range values {
		if list != nil {
			out.Values[dim] = list
		}
	}
	return out, nil
}

func (uc *AnalyticsUseCase) Analytics(ctx context.Context, ownerID string, datasetID int64, filters domain.Filters) (*domain.AnalyticsReport, error) {
	ds, err := ownedDataset(ctx, uc.repo, ownerID, datasetID)
	if err != nil {
		return nil, err
	}
	if !ds.Ready() {
		return nil, &domain.NotReadyError{Status: ds.Status}
	}

	report, err := uc.store.RunViews(ctx, ds.ID, filters)
	if err != nil {
		return nil, fmt.Errorf("run analytics views: %w", err)
	}
	report.DatasetInfo = domain.DatasetInfo{ID: ds.ID, Name: ds.Name}
	return report, nil
}
