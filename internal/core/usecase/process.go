package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

// ProcessDatasetUseCase runs the ingestion job for one dataset:
// load, clean, materialize, then best-effort indexes and aggregations.
type ProcessDatasetUseCase struct {
	repo      ports.DatasetRepository
	loader    ports.TableLoader
	cleaner   ports.Cleaner
	warehouse ports.Warehouse
	observer  ports.JobObserver
	now       func() time.Time
}

func NewProcessDatasetUseCase(
	repo ports.DatasetRepository,
	loader ports.TableLoader,
	cleaner ports.Cleaner,
	warehouse ports.Warehouse,
) *ProcessDatasetUseCase {
	return &ProcessDatasetUseCase{
		repo:      repo,
		loader:    loader,
		cleaner:   cleaner,
		warehouse: warehouse,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithObserver attaches job telemetry.
func (uc *ProcessDatasetUseCase) WithObserver(observer ports.JobObserver) *ProcessDatasetUseCase {
	uc.observer = observer
	return uc
}

// ProcessByID executes the job exactly once. It never retries and imposes no
// deadline of its own; the caller owns both.
func (uc *ProcessDatasetUseCase) ProcessByID(ctx context.Context, datasetID int64) error {
	ds, err := uc.repo.GetByID(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("load dataset metadata: %w", err)
	}

	startedAt := uc.now()
	if uc.observer != nil && ds.Status == domain.StatusPending {
		uc.observer.ObserveQueueLag(startedAt.Sub(ds.CreatedAt))
	}
	if err := uc.markStatus(ctx, datasetID, domain.StatusProcessing, ""); err != nil {
		return fmt.Errorf("set status=processing: %w", err)
	}
	slog.Info("dataset_processing_started", "dataset_id", datasetID, "storage_path", ds.StoragePath)

	report, profile, err := uc.processPipeline(ctx, ds)
	if err == nil {
		if err = uc.repo.SaveProfile(ctx, datasetID, profile); err != nil {
			err = fmt.Errorf("save data profile: %w", err)
		}
	}
	if err != nil {
		uc.observe(report, startedAt, err)
		if failErr := uc.markFailed(ctx, datasetID, err); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}

	if err := uc.markStatus(ctx, datasetID, domain.StatusCompleted, ""); err != nil {
		uc.observe(report, startedAt, err)
		return fmt.Errorf("set status=completed: %w", err)
	}
	uc.observe(report, startedAt, nil)

	slog.Info("dataset_processing_completed",
		"dataset_id", datasetID,
		"raw_table", report.RawTable,
		"rows_before", report.Cleaning.RowsBefore,
		"rows_loaded", report.RowsLoaded,
		"duplicates_removed", report.Cleaning.DuplicatesRemoved,
		"cells_imputed", report.Cleaning.CellsImputed,
		"indexes_failed", domain.CountOutcomes(report.Indexes, domain.StepFailed),
		"aggregations_built", domain.CountOutcomes(report.Aggregations, domain.StepSucceeded),
		"duration_ms", uc.now().Sub(startedAt).Milliseconds(),
	)
	return nil
}

func (uc *ProcessDatasetUseCase) processPipeline(ctx context.Context, ds *domain.Dataset) (domain.JobReport, domain.DataProfile, error) {
	report := domain.JobReport{DatasetID: ds.ID}

	table, err := uc.loader.Load(ctx, ds)
	if err != nil {
		return report, domain.DataProfile{}, fmt.Errorf("load dataset file: %w", err)
	}

	cleaned, err := uc.cleaner.Clean(table)
	if err != nil {
		return report, domain.DataProfile{}, fmt.Errorf("clean dataset: %w", err)
	}
	report.Cleaning = cleaned.Stats

	session, err := uc.warehouse.OpenSession(ctx)
	if err != nil {
		return report, domain.DataProfile{}, fmt.Errorf("open warehouse session: %w", err)
	}
	defer func() {
		if closeErr := session.Close(); closeErr != nil {
			slog.Warn("warehouse_session_close_failed", "dataset_id", ds.ID, "error", closeErr)
		}
	}()

	rawTable, loaded, err := session.ReplaceRawTable(ctx, ds.ID, cleaned.Table)
	if err != nil {
		return report, domain.DataProfile{}, fmt.Errorf("materialize dataset: %w", err)
	}
	report.RawTable = rawTable
	report.RowsLoaded = loaded

	columns := cleaned.Table.ColumnNames()
	report.Indexes = session.BuildIndexes(ctx, ds.ID, columns)
	report.Aggregations = session.BuildAggregations(ctx, ds.ID, columns)

	profile := domain.DataProfile{
		Cleaning:     cleaned.Stats,
		Columns:      cleaned.Columns,
		Indexes:      report.Indexes,
		Aggregations: report.Aggregations,
	}
	return report, profile, nil
}

func (uc *ProcessDatasetUseCase) observe(report domain.JobReport, startedAt time.Time, err error) {
	if uc.observer != nil {
		uc.observer.ObserveJob(report, uc.now().Sub(startedAt), err)
	}
}

func (uc *ProcessDatasetUseCase) markStatus(ctx context.Context, datasetID int64, status domain.DatasetStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, datasetID, status, errMessage, uc.now())
}

// markFailed persists the failure even when ctx is already cancelled, so a
// shutdown mid-job does not leave the dataset looking alive.
func (uc *ProcessDatasetUseCase) markFailed(ctx context.Context, datasetID int64, cause error) error {
	msg := domain.TruncateErrorMessage(cause.Error())
	slog.Error("dataset_processing_failed", "dataset_id", datasetID, "error", msg)
	return uc.markStatus(context.WithoutCancel(ctx), datasetID, domain.StatusFailed, msg)
}
