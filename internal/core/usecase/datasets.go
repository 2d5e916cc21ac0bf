package usecase

import (
	"context"
	"errors"
	"strings"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

type DatasetQueryUseCase struct {
	repo ports.DatasetRepository
}

func NewDatasetQueryUseCase(repo ports.DatasetRepository) *DatasetQueryUseCase {
	return &DatasetQueryUseCase{repo: repo}
}

func (uc *DatasetQueryUseCase) GetForOwner(ctx context.Context, ownerID string, datasetID int64) (*domain.Dataset, error) {
	return ownedDataset(ctx, uc.repo, ownerID, datasetID)
}

func ownedDataset(ctx context.Context, repo ports.DatasetRepository, ownerID string, datasetID int64) (*domain.Dataset, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, domain.WrapError(domain.ErrUnauthorized, "get dataset", errors.New("missing owner"))
	}
	if datasetID <= 0 {
		return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("non-positive id"))
	}
	return repo.GetForOwner(ctx, ownerID, datasetID)
}
