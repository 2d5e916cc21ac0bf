package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

func TestAnalyticsRejectsNotReadyDataset(t *testing.T) {
	for _, status := range []domain.DatasetStatus{domain.StatusPending, domain.StatusProcessing, domain.StatusFailed} {
		repo := newRepoFake()
		repo.seed("owner-1", status)
		store := &storeFake{}
		uc := NewAnalyticsUseCase(repo, store)

		_, err := uc.Analytics(context.Background(), "owner-1", 7, domain.Filters{})
		if !domain.IsKind(err, domain.ErrDatasetNotReady) {
			t.Fatalf("status %s: expected ErrDatasetNotReady, got %v", status, err)
		}
		var notReady *domain.NotReadyError
		if !errors.As(err, &notReady) || notReady.Status != status {
			t.Fatalf("status %s: missing status detail in %v", status, err)
		}
		if store.runCalls != 0 {
			t.Fatalf("store must not be queried before completion")
		}
	}
}

func TestAnalyticsHidesForeignDatasets(t *testing.T) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusCompleted)
	uc := NewAnalyticsUseCase(repo, &storeFake{})

	_, err := uc.Analytics(context.Background(), "owner-2", 7, domain.Filters{})
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	_, err = uc.Filters(context.Background(), "owner-2", 7)
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
}

func TestAnalyticsFillsDatasetInfo(t *testing.T) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusCompleted)
	store := &storeFake{report: &domain.AnalyticsReport{MarketShare: []domain.Row{{"brand": "A"}}}}
	uc := NewAnalyticsUseCase(repo, store)

	report, err := uc.Analytics(context.Background(), "owner-1", 7, domain.Filters{Brand: "A"})
	if err != nil {
		t.Fatalf("Analytics() error = %v", err)
	}
	if report.DatasetInfo != (domain.DatasetInfo{ID: 7, Name: "sales.csv"}) {
		t.Fatalf("dataset info = %+v", report.DatasetInfo)
	}
}

func TestAnalyticsPropagatesInvalidFilter(t *testing.T) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusCompleted)
	store := &storeFake{err: domain.WrapError(domain.ErrInvalidFilterValue, "build filter", errors.New("year"))}
	uc := NewAnalyticsUseCase(repo, store)

	if _, err := uc.Analytics(context.Background(), "owner-1", 7, domain.Filters{Year: "x"}); !domain.IsKind(err, domain.ErrInvalidFilterValue) {
		t.Fatalf("expected ErrInvalidFilterValue, got %v", err)
	}
}

func TestFiltersAreEmptyUntilCompleted(t *testing.T) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusProcessing)
	store := &storeFake{}
	uc := NewAnalyticsUseCase(repo, store)

	opts, err := uc.Filters(context.Background(), "owner-1", 7)
	if err != nil {
		t.Fatalf("Filters() error = %v", err)
	}
	if opts.Status != domain.StatusProcessing || len(opts.Values) != len(domain.FilterDimensions) {
		t.Fatalf("unexpected options: %+v", opts)
	}
	for dim, values := range opts.Values {
		if values == nil || len(values) != 0 {
			t.Fatalf("%s should be an empty list, got %v", dim, values)
		}
	}
	if store.runCalls != 0 {
		t.Fatalf("store must not be queried before completion")
	}
}

func TestFiltersKeepsEveryDimension(t *testing.T) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusCompleted)
	store := &storeFake{values: map[domain.Dimension][]any{domain.DimBrand: {"A", "B"}}}
	uc := NewAnalyticsUseCase(repo, store)

	opts, err := uc.Filters(context.Background(), "owner-1", 7)
	if err != nil {
		t.Fatalf("Filters() error = %v", err)
	}
	if len(opts.Values[domain.DimBrand]) != 2 || opts.Values[domain.DimYear] == nil {
		t.Fatalf("unexpected options: %+v", opts.Values)
	}
}

func TestGetForOwnerRequiresOwner(t *testing.T) {
	uc := NewDatasetQueryUseCase(newRepoFake())
	if _, err := uc.GetForOwner(context.Background(), "", 7); !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
}
