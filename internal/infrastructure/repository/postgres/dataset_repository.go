package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

const pgUniqueViolation = "23505"

type DatasetRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewDatasetRepository(db *sql.DB) *DatasetRepository {
	return &DatasetRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *DatasetRepository) CreateProject(ctx context.Context, project *domain.Project) error {
	if project.CreatedAt.IsZero() {
		project.CreatedAt = r.now()
	}
	err := r.db.QueryRowContext(ctx, `
INSERT INTO projects (owner_id, name, created_at)
VALUES ($1, $2, $3)
RETURNING id
`, project.OwnerID, project.Name, project.CreatedAt).Scan(&project.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return domain.WrapError(domain.ErrInvalidInput, "create project", fmt.Errorf("project %q already exists", project.Name))
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}

func (r *DatasetRepository) GetProject(ctx context.Context, ownerID string, projectID int64) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRowContext(ctx, `
SELECT id, owner_id, name, created_at
FROM projects
WHERE id = $1 AND owner_id = $2
`, projectID, ownerID).Scan(&p.ID, &p.OwnerID, &p.Name, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrProjectNotFound, "get project", fmt.Errorf("id=%d", projectID))
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}
	return &p, nil
}

func (r *DatasetRepository) Create(ctx context.Context, ds *domain.Dataset) error {
	now := r.now()
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = now
	}
	ds.UpdatedAt = ds.CreatedAt
	if ds.Status == "" {
		ds.Status = domain.StatusPending
	}

	err := r.db.QueryRowContext(ctx, `
INSERT INTO datasets (
	project_id, name, status, file_size_bytes, file_mime_type, storage_path, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
RETURNING id
`,
		ds.ProjectID, ds.Name, string(ds.Status), ds.FileSizeBytes, ds.MimeType, ds.StoragePath, ds.CreatedAt, ds.UpdatedAt,
	).Scan(&ds.ID)
	if err != nil {
		return fmt.Errorf("insert dataset: %w", err)
	}
	return nil
}

const datasetColumns = `d.id, d.project_id, d.name, d.status, d.error_message, d.file_size_bytes, d.file_mime_type,
	d.storage_path, d.data_profile, d.processing_started_at, d.processing_completed_at, d.created_at, d.updated_at`

func (r *DatasetRepository) GetByID(ctx context.Context, id int64) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+datasetColumns+`
FROM datasets d
WHERE d.id = $1
`, id)
	return scanDataset(row, id)
}

// GetForOwner hides datasets of other owners behind the same not-found error
// as missing ones.
func (r *DatasetRepository) GetForOwner(ctx context.Context, ownerID string, id int64) (*domain.Dataset, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT `+datasetColumns+`
FROM datasets d
JOIN projects p ON p.id = d.project_id
WHERE d.id = $1 AND p.owner_id = $2
`, id, ownerID)
	return scanDataset(row, id)
}

func scanDataset(row *sql.Row, id int64) (*domain.Dataset, error) {
	var (
		ds          domain.Dataset
		status      string
		errMessage  sql.NullString
		profile     []byte
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(
		&ds.ID, &ds.ProjectID, &ds.Name, &status, &errMessage, &ds.FileSizeBytes, &ds.MimeType,
		&ds.StoragePath, &profile, &startedAt, &completedAt, &ds.CreatedAt, &ds.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDatasetNotFound, "get dataset", errors.New("id="+strconv.FormatInt(id, 10)))
		}
		return nil, fmt.Errorf("scan dataset: %w", err)
	}

	ds.Status = domain.DatasetStatus(status)
	ds.Error = errMessage.String
	if len(profile) > 0 {
		ds.Profile = json.RawMessage(profile)
	}
	if startedAt.Valid {
		t := startedAt.Time
		ds.ProcessingStartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		ds.ProcessingCompletedAt = &t
	}
	return &ds, nil
}

// UpdateStatus records a state transition. Entering processing stamps the
// start time and clears leftovers of a previous run; terminal states stamp the
// completion time and store the (truncated) error message, empty meaning none.
func (r *DatasetRepository) UpdateStatus(ctx context.Context, id int64, status domain.DatasetStatus, errMessage string, at time.Time) error {
	var (
		res sql.Result
		err error
	)
	switch status {
	case domain.StatusProcessing:
		res, err = r.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, error_message = NULL, processing_started_at = $3, processing_completed_at = NULL, updated_at = $3
WHERE id = $1
`, id, string(status), at)
	case domain.StatusCompleted, domain.StatusFailed:
		res, err = r.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, error_message = $3, processing_completed_at = $4, updated_at = $4
WHERE id = $1
`, id, string(status), nullableMessage(errMessage), at)
	default:
		res, err = r.db.ExecContext(ctx, `
UPDATE datasets
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), nullableMessage(errMessage), at)
	}
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	return requireAffected(res, id)
}

func (r *DatasetRepository) SaveProfile(ctx context.Context, id int64, profile domain.DataProfile) error {
	raw, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("marshal data profile: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE datasets
SET data_profile = $2, updated_at = $3
WHERE id = $1
`, id, raw, r.now())
	if err != nil {
		return fmt.Errorf("save data profile: %w", err)
	}
	return requireAffected(res, id)
}

func nullableMessage(msg string) sql.NullString {
	if msg == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: domain.TruncateErrorMessage(msg), Valid: true}
}

func requireAffected(res sql.Result, id int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDatasetNotFound, "update dataset", fmt.Errorf("id=%d", id))
	}
	return nil
}
