package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/cleaning"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/tabular"
)

func newProcessFixture(csv string) (*ProcessDatasetUseCase, *repoFake, *warehouseFake) {
	repo := newRepoFake()
	repo.seed("owner-1", domain.StatusPending)
	storage := &storageFake{files: map[string]string{"k/sales.csv": csv}}
	warehouse := &warehouseFake{aggregates: []domain.StepResult{{Name: "agg_market_share_7", Outcome: domain.StepSucceeded}}}
	uc := NewProcessDatasetUseCase(repo, tabular.NewLoader(storage), cleaning.New(), warehouse)
	return uc, repo, warehouse
}

func TestProcessByIDSuccess(t *testing.T) {
	uc, repo, warehouse := newProcessFixture("Brand,SalesValue,Volume,Year\nA,10,1,2023\nB,,2,2023\nC,30,3,2024\n")

	if err := uc.ProcessByID(context.Background(), 7); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(repo.statusCalls) != 2 {
		t.Fatalf("expected 2 status calls, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[0].status != domain.StatusProcessing || repo.statusCalls[1].status != domain.StatusCompleted {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
	if repo.statusCalls[1].errMsg != "" {
		t.Fatalf("completed must clear the error message, got %q", repo.statusCalls[1].errMsg)
	}

	table := warehouse.replaced
	if table == nil || len(table.Rows) != 3 {
		t.Fatalf("unexpected materialized table: %+v", table)
	}
	if got := strings.Join(table.ColumnNames(), ","); got != "brand,salesvalue,volume,year" {
		t.Fatalf("columns = %s", got)
	}
	if got := table.Rows[1][1].Value; got != "20" {
		t.Fatalf("imputed sales value = %s, want median 20", got)
	}
	if warehouse.closed != 1 {
		t.Fatalf("session closed %d times", warehouse.closed)
	}
	if repo.profile == nil || repo.profile.Cleaning.CellsImputed != 1 || len(repo.profile.Aggregations) != 1 {
		t.Fatalf("unexpected profile: %+v", repo.profile)
	}
}

func TestProcessByIDMarksFailedOnMalformedEncoding(t *testing.T) {
	uc, repo, warehouse := newProcessFixture("brand,year\n\xff\xfe,2023\n")

	err := uc.ProcessByID(context.Background(), 7)
	if !domain.IsKind(err, domain.ErrUnparseableFile) {
		t.Fatalf("expected ErrUnparseableFile, got %v", err)
	}
	if len(repo.statusCalls) != 2 || repo.statusCalls[1].status != domain.StatusFailed {
		t.Fatalf("expected processing + failed, got %+v", repo.statusCalls)
	}
	if repo.statusCalls[1].errMsg == "" {
		t.Fatalf("failed status must carry a message")
	}
	if warehouse.replaced != nil || warehouse.closed != 0 {
		t.Fatalf("raw table must never be created")
	}
}

func TestProcessByIDMarksFailedOnDuplicateColumns(t *testing.T) {
	uc, repo, _ := newProcessFixture("Pack Type,pack type\na,b\n")

	err := uc.ProcessByID(context.Background(), 7)
	if !domain.IsKind(err, domain.ErrDuplicateColumn) {
		t.Fatalf("expected ErrDuplicateColumn, got %v", err)
	}
	if repo.statusCalls[len(repo.statusCalls)-1].status != domain.StatusFailed {
		t.Fatalf("unexpected status sequence: %+v", repo.statusCalls)
	}
}

func TestProcessByIDMarksFailedOnMaterializeError(t *testing.T) {
	uc, repo, warehouse := newProcessFixture("brand\nA\n")
	warehouse.replaceErr = errors.New(strings.Repeat("x", 5000))

	if err := uc.ProcessByID(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	last := repo.statusCalls[len(repo.statusCalls)-1]
	if last.status != domain.StatusFailed {
		t.Fatalf("expected failed, got %+v", last)
	}
	if n := utf8.RuneCountInString(last.errMsg); n != domain.MaxErrorMessageRunes {
		t.Fatalf("error message has %d runes", n)
	}
	if warehouse.closed != 1 {
		t.Fatalf("session must be released on failure")
	}
}

func TestProcessByIDReportsMarkFailedError(t *testing.T) {
	uc, repo, _ := newProcessFixture("")
	repo.failErr = errors.New("db down")

	err := uc.ProcessByID(context.Background(), 7)
	if err == nil || !strings.Contains(err.Error(), "db down") || !domain.IsKind(err, domain.ErrUnparseableFile) {
		t.Fatalf("expected combined error, got %v", err)
	}
}

func TestProcessByIDStopsWhenProcessingCannotBePersisted(t *testing.T) {
	uc, repo, warehouse := newProcessFixture("brand\nA\n")
	repo.statusErr = errors.New("db down")

	if err := uc.ProcessByID(context.Background(), 7); err == nil {
		t.Fatalf("expected error")
	}
	if len(repo.statusCalls) != 1 || warehouse.replaced != nil {
		t.Fatalf("no work may start before processing is persisted: %+v", repo.statusCalls)
	}
}

func TestProcessByIDUnknownDataset(t *testing.T) {
	uc, repo, _ := newProcessFixture("brand\nA\n")

	err := uc.ProcessByID(context.Background(), 999)
	if !domain.IsKind(err, domain.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
	if len(repo.statusCalls) != 0 {
		t.Fatalf("unexpected status calls: %+v", repo.statusCalls)
	}
}

type observerFake struct {
	lags    []time.Duration
	reports []domain.JobReport
	errs    []error
}

func (o *observerFake) ObserveQueueLag(lag time.Duration) { o.lags = append(o.lags, lag) }

func (o *observerFake) ObserveJob(report domain.JobReport, _ time.Duration, err error) {
	o.reports = append(o.reports, report)
	o.errs = append(o.errs, err)
}

func TestProcessByIDNotifiesObserver(t *testing.T) {
	uc, _, _ := newProcessFixture("brand,volume\nA,1\nA,1\n")
	observer := &observerFake{}
	uc.WithObserver(observer)

	if err := uc.ProcessByID(context.Background(), 7); err != nil {
		t.Fatalf("ProcessByID() error = %v", err)
	}
	if len(observer.lags) != 1 || len(observer.reports) != 1 || observer.errs[0] != nil {
		t.Fatalf("unexpected observations: %+v", observer)
	}
	report := observer.reports[0]
	if report.RawTable != "raw_data_7" || report.RowsLoaded != 1 || report.Cleaning.DuplicatesRemoved != 1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
