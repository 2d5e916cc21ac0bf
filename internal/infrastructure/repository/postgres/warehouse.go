package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/resilience"
)

const DefaultBatchSize = 5000

// Warehouse materializes cleaned tables as raw_data_<id> plus derived tables.
type Warehouse struct {
	db        *sql.DB
	batchSize int
	executor  *resilience.Executor
}

func NewWarehouse(db *sql.DB, batchSize int) *Warehouse {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Warehouse{db: db, batchSize: batchSize}
}

// WithExecutor retries connection acquisition through exec.
func (w *Warehouse) WithExecutor(exec *resilience.Executor) *Warehouse {
	w.executor = exec
	return w
}

// OpenSession pins one pooled connection for the duration of a job.
func (w *Warehouse) OpenSession(ctx context.Context) (ports.WarehouseSession, error) {
	var conn *sql.Conn
	acquire := func(ctx context.Context) error {
		c, err := w.db.Conn(ctx)
		if err != nil {
			return domain.WrapError(domain.ErrTemporary, "acquire warehouse connection", err)
		}
		conn = c
		return nil
	}

	var err error
	if w.executor != nil {
		err = w.executor.Execute(ctx, "warehouse.acquire", acquire, resilience.ClassifyDomain)
	} else {
		err = acquire(ctx)
	}
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn, batchSize: w.batchSize}, nil
}

type Session struct {
	conn      *sql.Conn
	batchSize int
}

func (s *Session) Close() error {
	return s.conn.Close()
}

var columnTypes = map[domain.ColumnKind]string{
	domain.KindInteger: "BIGINT",
	domain.KindFloat:   "DOUBLE PRECISION",
	domain.KindDate:    "DATE",
	domain.KindText:    "TEXT",
}

func createTableSQL(target identifier.Table, columns []domain.Column) (string, error) {
	defs := make([]string, 0, len(columns))
	for _, col := range columns {
		quoted, err := target.Column(col.Name)
		if err != nil {
			return "", err
		}
		typ, ok := columnTypes[col.Kind]
		if !ok {
			return "", fmt.Errorf("column %s: unsupported kind %q", col.Name, col.Kind)
		}
		defs = append(defs, quoted+" "+typ)
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", target.Quoted(), strings.Join(defs, ", ")), nil
}

// ReplaceRawTable drops and recreates the dataset's raw table and loads every
// row inside one transaction, so a failed load leaves no partial table behind.
func (s *Session) ReplaceRawTable(ctx context.Context, datasetID int64, table *domain.Table) (string, int64, error) {
	target, err := identifier.RawTable(datasetID)
	if err != nil {
		return "", 0, err
	}
	if len(table.Columns) == 0 {
		return "", 0, domain.WrapError(domain.ErrInvalidInput, "replace raw table", errors.New("table has no columns"))
	}
	createSQL, err := createTableSQL(target, table.Columns)
	if err != nil {
		return "", 0, err
	}
	rows, err := newRowSource(table)
	if err != nil {
		return "", 0, err
	}

	loaded, err := s.replaceWithCopy(ctx, target, createSQL, rows)
	if errors.Is(err, errNotPgxConn) {
		loaded, err = s.replaceWithInsert(ctx, target, createSQL, rows)
	}
	if err != nil {
		return "", 0, fmt.Errorf("replace %s: %w", target.Name(), err)
	}
	return target.Name(), loaded, nil
}

func (s *Session) replaceWithInsert(ctx context.Context, target identifier.Table, createSQL string, rows *rowSource) (int64, error) {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin load tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target.Quoted()); err != nil {
		return 0, fmt.Errorf("drop table: %w", err)
	}
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return 0, fmt.Errorf("create table: %w", err)
	}
	loaded, err := insertBatches(ctx, tx, target, rows, s.batchSize)
	if err != nil {
		return 0, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit load tx: %w", err)
	}
	return loaded, nil
}

// BuildIndexes creates secondary indexes on the analytic columns that exist.
// Failures are reported per index and never abort the job.
func (s *Session) BuildIndexes(ctx context.Context, datasetID int64, columns []string) []domain.StepResult {
	target, err := identifier.RawTable(datasetID)
	if err != nil {
		return []domain.StepResult{{Name: "indexes", Outcome: domain.StepFailed, Detail: err.Error()}}
	}

	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}

	var results []domain.StepResult
	for _, col := range domain.IndexColumns {
		if _, ok := present[col]; !ok {
			continue
		}
		result := s.buildIndex(ctx, target, col)
		if result.Outcome == domain.StepFailed {
			slog.Warn("index_build_failed", "dataset_id", datasetID, "column", col, "error", result.Detail)
		}
		results = append(results, result)
	}
	return results
}

func (s *Session) buildIndex(ctx context.Context, target identifier.Table, column string) domain.StepResult {
	name, err := target.IndexName(column)
	if err != nil {
		return domain.StepResult{Name: column, Outcome: domain.StepFailed, Detail: err.Error()}
	}
	quotedCol, err := target.Column(column)
	if err != nil {
		return domain.StepResult{Name: name, Outcome: domain.StepFailed, Detail: err.Error()}
	}
	stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", identifier.Quote(name), target.Quoted(), quotedCol)
	if _, err := s.conn.ExecContext(ctx, stmt); err != nil {
		return domain.StepResult{Name: name, Outcome: domain.StepFailed, Detail: err.Error()}
	}
	return domain.StepResult{Name: name, Outcome: domain.StepSucceeded}
}
