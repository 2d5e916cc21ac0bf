package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
)

// maxBindParams is the Postgres wire-protocol limit on parameters per statement.
const maxBindParams = 65535

var errNotPgxConn = errors.New("driver connection is not pgx")

// rowSource converts cleaned text cells into values matching the column types.
type rowSource struct {
	columns []string
	kinds   []domain.ColumnKind
	rows    [][]domain.Cell
}

func newRowSource(table *domain.Table) (*rowSource, error) {
	src := &rowSource{
		columns: make([]string, len(table.Columns)),
		kinds:   make([]domain.ColumnKind, len(table.Columns)),
		rows:    table.Rows,
	}
	for i, col := range table.Columns {
		if !identifier.Valid(col.Name) {
			return nil, domain.WrapError(domain.ErrInvalidIdentifier, "prepare load", fmt.Errorf("column %q", col.Name))
		}
		src.columns[i] = col.Name
		src.kinds[i] = col.Kind
	}
	return src, nil
}

func (s *rowSource) Len() int { return len(s.rows) }

func (s *rowSource) values(i int) ([]any, error) {
	row := s.rows[i]
	out := make([]any, len(row))
	for j, cell := range row {
		v, err := convertCell(cell, s.kinds[j])
		if err != nil {
			return nil, fmt.Errorf("row %d column %s: %w", i+1, s.columns[j], err)
		}
		out[j] = v
	}
	return out, nil
}

func convertCell(cell domain.Cell, kind domain.ColumnKind) (any, error) {
	if cell.Missing {
		return nil, nil
	}
	switch kind {
	case domain.KindInteger:
		return strconv.ParseInt(cell.Value, 10, 64)
	case domain.KindFloat:
		return strconv.ParseFloat(cell.Value, 64)
	case domain.KindDate:
		return time.Parse("2006-01-02", cell.Value)
	default:
		return cell.Value, nil
	}
}

// replaceWithCopy runs the whole replacement on the underlying pgx connection
// so rows can be streamed with COPY. It returns errNotPgxConn for other drivers.
func (s *Session) replaceWithCopy(ctx context.Context, target identifier.Table, createSQL string, rows *rowSource) (int64, error) {
	var loaded int64
	err := s.conn.Raw(func(driverConn any) error {
		stdConn, ok := driverConn.(*stdlib.Conn)
		if !ok {
			return errNotPgxConn
		}

		tx, err := stdConn.Conn().Begin(ctx)
		if err != nil {
			return fmt.Errorf("begin load tx: %w", err)
		}
		defer func() {
			_ = tx.Rollback(ctx)
		}()

		if _, err := tx.Exec(ctx, "DROP TABLE IF EXISTS "+target.Quoted()); err != nil {
			return fmt.Errorf("drop table: %w", err)
		}
		if _, err := tx.Exec(ctx, createSQL); err != nil {
			return fmt.Errorf("create table: %w", err)
		}

		for start := 0; start < rows.Len(); start += s.batchSize {
			end := min(start+s.batchSize, rows.Len())
			offset := start
			n, err := tx.CopyFrom(ctx, pgx.Identifier{target.Name()}, rows.columns,
				pgx.CopyFromSlice(end-start, func(i int) ([]any, error) {
					return rows.values(offset + i)
				}))
			if err != nil {
				return fmt.Errorf("copy rows %d-%d: %w", start+1, end, err)
			}
			loaded += n
		}

		if err := tx.Commit(ctx); err != nil {
			return fmt.Errorf("commit load tx: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return loaded, nil
}

// insertBatches loads rows with multi-row parameterized INSERTs.
func insertBatches(ctx context.Context, tx *sql.Tx, target identifier.Table, rows *rowSource, batchSize int) (int64, error) {
	width := len(rows.columns)
	if limit := maxBindParams / width; batchSize > limit {
		batchSize = limit
	}

	quotedCols := make([]string, width)
	for i, c := range rows.columns {
		quotedCols[i] = identifier.Quote(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", target.Quoted(), strings.Join(quotedCols, ", "))

	var loaded int64
	for start := 0; start < rows.Len(); start += batchSize {
		end := min(start+batchSize, rows.Len())

		var b strings.Builder
		b.WriteString(prefix)
		args := make([]any, 0, (end-start)*width)
		for i := start; i < end; i++ {
			values, err := rows.values(i)
			if err != nil {
				return 0, err
			}
			if i > start {
				b.WriteString(", ")
			}
			b.WriteByte('(')
			for j := range values {
				if j > 0 {
					b.WriteString(", ")
				}
				b.WriteByte('$')
				b.WriteString(strconv.Itoa(len(args) + j + 1))
			}
			b.WriteByte(')')
			args = append(args, values...)
		}

		res, err := tx.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return 0, fmt.Errorf("insert rows %d-%d: %w", start+1, end, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("insert rows affected: %w", err)
		}
		loaded += n
	}
	return loaded, nil
}
