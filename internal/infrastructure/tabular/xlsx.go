package tabular

import (
	"errors"
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

// parseXLSX reads the first sheet; its first row is the header.
func parseXLSX(r io.Reader) (*domain.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "open xlsx", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "parse xlsx", errors.New("workbook has no sheets"))
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "read xlsx sheet", err)
	}
	defer rows.Close()

	var table *domain.Table
	for rows.Next() {
		values, err := rows.Columns()
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnparseableFile, "read xlsx row", err)
		}
		if table == nil {
			if len(values) == 0 {
				return nil, domain.WrapError(domain.ErrUnparseableFile, "parse xlsx", errors.New("header has no columns"))
			}
			table = &domain.Table{Columns: make([]domain.Column, len(values))}
			for i, name := range values {
				table.Columns[i] = domain.Column{Name: name}
			}
			continue
		}
		if len(values) > len(table.Columns) {
			return nil, domain.WrapError(domain.ErrUnparseableFile, "parse xlsx",
				fmt.Errorf("row %d has %d cells, header has %d", len(table.Rows)+2, len(values), len(table.Columns)))
		}
		row := make([]domain.Cell, len(table.Columns))
		for i := range row {
			if i < len(values) {
				row[i] = newCell(values[i])
			} else {
				row[i] = domain.MissingCell()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	if err := rows.Error(); err != nil {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "read xlsx rows", err)
	}
	if table == nil {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "parse xlsx", errors.New("sheet has no header row"))
	}
	return table, nil
}
