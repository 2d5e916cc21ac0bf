// Package tabular turns stored uploads into typed in-memory tables.
package tabular

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/core/ports"
)

type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat picks the parser from the declared mime type, falling back to
// the file extension. Unknown inputs are treated as CSV.
func DetectFormat(filename, mimeType string) Format {
	if strings.HasPrefix(strings.ToLower(mimeType), domain.MimeXLSX) {
		return FormatXLSX
	}
	if strings.EqualFold(filepath.Ext(filename), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// Parse reads a whole file, infers column kinds and normalizes date cells.
func Parse(format Format, r io.Reader) (*domain.Table, error) {
	var (
		table *domain.Table
		err   error
	)
	switch format {
	case FormatXLSX:
		table, err = parseXLSX(r)
	default:
		table, err = parseCSV(r)
	}
	if err != nil {
		return nil, err
	}
	typeColumns(table)
	return table, nil
}

// Loader reads dataset uploads from object storage.
type Loader struct {
	storage ports.ObjectStorage
}

func NewLoader(storage ports.ObjectStorage) *Loader {
	return &Loader{storage: storage}
}

func (l *Loader) Load(ctx context.Context, ds *domain.Dataset) (*domain.Table, error) {
	rc, err := l.storage.Open(ctx, ds.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("open dataset file: %w", err)
	}
	defer rc.Close()

	return Parse(DetectFormat(ds.StoragePath, ds.MimeType), rc)
}
