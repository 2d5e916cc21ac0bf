// Package identifier is the only place where untrusted text becomes part of a
// SQL identifier. Column names pass through Sanitize; table and index names are
// derived from dataset ids and fixed kinds only.
package identifier

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/jackc/pgx/v5"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

// MaxLength is the Postgres identifier limit (NAMEDATALEN - 1).
const MaxLength = 63

// reserved holds the system columns present on every table. SQL keywords pass:
// every identifier is emitted through Quote.
var reserved = map[string]struct{}{
	"oid": {}, "ctid": {}, "xmin": {}, "xmax": {}, "cmin": {}, "cmax": {}, "tableoid": {},
}

var accentStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Sanitize normalizes raw into an identifier matching ^[a-z0-9_]+$.
func Sanitize(raw string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if ascii, _, err := transform.String(accentStripper, s); err == nil {
		s = ascii
	}

	var b strings.Builder
	pendingUnderscore := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			if pendingUnderscore && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingUnderscore = false
			b.WriteRune(r)
		case r == '_' || r == '-' || r == '.' || unicode.IsSpace(r):
			pendingUnderscore = true
		}
	}

	out := b.String()
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "_")
	}
	if out == "" {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "sanitize identifier", fmt.Errorf("%q is empty after normalization", raw))
	}
	if _, ok := reserved[out]; ok {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "sanitize identifier", fmt.Errorf("%q is a reserved system column", out))
	}
	if strings.HasPrefix(out, "pg_") {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "sanitize identifier", fmt.Errorf("%q uses the system prefix pg_", out))
	}
	return out, nil
}

// Valid reports whether name is already a sanitized identifier.
func Valid(name string) bool {
	out, err := Sanitize(name)
	return err == nil && out == name
}

// Quote renders an already-sanitized name as a quoted SQL identifier.
func Quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

// Table is a handle on a physical per-dataset table.
type Table struct {
	name string
}

func (t Table) Name() string   { return t.name }
func (t Table) Quoted() string { return Quote(t.name) }

// Column returns the quoted reference of a sanitized column of this table.
func (t Table) Column(name string) (string, error) {
	if !Valid(name) {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "column reference", fmt.Errorf("%q", name))
	}
	return Quote(name), nil
}

// IndexName names the secondary index of column on this table.
func (t Table) IndexName(column string) (string, error) {
	if !Valid(column) {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "index name", fmt.Errorf("%q", column))
	}
	name := "idx_" + t.name + "_" + column
	if len(name) > MaxLength {
		return "", domain.WrapError(domain.ErrInvalidIdentifier, "index name", fmt.Errorf("%q exceeds %d bytes", name, MaxLength))
	}
	return name, nil
}

var errInvalidDatasetID = errors.New("dataset id must be positive")

// RawTable is the materialized table of a dataset: raw_data_<id>.
func RawTable(datasetID int64) (Table, error) {
	if datasetID <= 0 {
		return Table{}, domain.WrapError(domain.ErrInvalidIdentifier, "raw table name", errInvalidDatasetID)
	}
	return Table{name: fmt.Sprintf("raw_data_%d", datasetID)}, nil
}

// AggregateTable is a derived summary table: agg_<kind>_<id>.
func AggregateTable(kind string, datasetID int64) (Table, error) {
	if datasetID <= 0 {
		return Table{}, domain.WrapError(domain.ErrInvalidIdentifier, "aggregate table name", errInvalidDatasetID)
	}
	if !Valid(kind) {
		return Table{}, domain.WrapError(domain.ErrInvalidIdentifier, "aggregate table name", fmt.Errorf("kind %q", kind))
	}
	return Table{name: fmt.Sprintf("agg_%s_%d", kind, datasetID)}, nil
}
