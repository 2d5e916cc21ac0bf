package tabular

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func parseCSV(r io.Reader) (*domain.Table, error) {
	br := bufio.NewReader(r)
	if prefix, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(prefix, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.ReuseRecord = false
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "parse csv", errors.New("file has no header row"))
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "parse csv header", err)
	}
	if err := validateRecord(header, 1); err != nil {
		return nil, err
	}
	if len(header) == 0 || (len(header) == 1 && header[0] == "") {
		return nil, domain.WrapError(domain.ErrUnparseableFile, "parse csv", errors.New("header has no columns"))
	}

	table := &domain.Table{Columns: make([]domain.Column, len(header))}
	for i, name := range header {
		table.Columns[i] = domain.Column{Name: name}
	}

	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, domain.WrapError(domain.ErrUnparseableFile, "parse csv", err)
		}
		if err := validateRecord(record, line); err != nil {
			return nil, err
		}
		if len(record) > len(header) {
			return nil, domain.WrapError(domain.ErrUnparseableFile, "parse csv",
				fmt.Errorf("line %d has %d fields, header has %d", line, len(record), len(header)))
		}
		// short rows are padded with missing cells
		row := make([]domain.Cell, len(header))
		for i := range row {
			if i < len(record) {
				row[i] = newCell(record[i])
			} else {
				row[i] = domain.MissingCell()
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}

func validateRecord(record []string, line int) error {
	for _, field := range record {
		if !utf8.ValidString(field) {
			return domain.WrapError(domain.ErrUnparseableFile, "parse csv", fmt.Errorf("line %d is not valid UTF-8", line))
		}
	}
	return nil
}
