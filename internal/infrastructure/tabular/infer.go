package tabular

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
)

// missingTokens mirrors the default NA markers of common dataframe readers.
var missingTokens = map[string]struct{}{
	"": {}, "#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {}, "N/A": {},
	"NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {}, "nan": {}, "null": {},
}

// DateLayouts are tried in order when inferring a date column.
var DateLayouts = []string{"2006-01-02", "2006/01/02", "01/02/2006"}

const canonicalDateLayout = "2006-01-02"

func newCell(raw string) domain.Cell {
	v := strings.TrimSpace(raw)
	if _, ok := missingTokens[v]; ok {
		return domain.MissingCell()
	}
	return domain.Value(v)
}

func isInteger(v string) bool {
	_, err := strconv.ParseInt(v, 10, 64)
	return err == nil
}

func isFloat(v string) bool {
	f, err := strconv.ParseFloat(v, 64)
	return err == nil && !math.IsInf(f, 0) && !math.IsNaN(f)
}

func parseDate(v string) (time.Time, bool) {
	for _, layout := range DateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func isDate(v string) bool {
	_, ok := parseDate(v)
	return ok
}

// inferKind picks the narrowest kind every non-missing cell of column col fits.
// A column with no values at all is numeric so it can be imputed with zero.
func inferKind(rows [][]domain.Cell, col int) domain.ColumnKind {
	candidates := []struct {
		kind domain.ColumnKind
		fits func(string) bool
	}{
		{domain.KindInteger, isInteger},
		{domain.KindFloat, isFloat},
		{domain.KindDate, isDate},
	}

	seen := false
	for _, c := range candidates {
		fits := true
		for _, row := range rows {
			cell := row[col]
			if cell.Missing {
				continue
			}
			seen = true
			if !c.fits(cell.Value) {
				fits = false
				break
			}
		}
		if !seen {
			return domain.KindFloat
		}
		if fits {
			return c.kind
		}
	}
	return domain.KindText
}

// Canonical renders v of the given kind in the single text form it is stored
// and compared by: "10.0" and "1e1" in a float column both become "10", dates
// become ISO. Values that do not parse as kind are returned unchanged.
func Canonical(kind domain.ColumnKind, v string) string {
	switch kind {
	case domain.KindInteger:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return strconv.FormatInt(n, 10)
		}
	case domain.KindFloat:
		if f, err := strconv.ParseFloat(v, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			if f == 0 {
				f = 0 // drop the sign of -0
			}
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
	case domain.KindDate:
		if t, ok := parseDate(v); ok {
			return t.Format(canonicalDateLayout)
		}
	}
	return v
}

// typeColumns infers every column kind and rewrites typed cells to their
// canonical form.
func typeColumns(table *domain.Table) {
	for i := range table.Columns {
		kind := inferKind(table.Rows, i)
		table.Columns[i].Kind = kind
		if kind == domain.KindText {
			continue
		}
		for _, row := range table.Rows {
			if row[i].Missing {
				continue
			}
			row[i].Value = Canonical(kind, row[i].Value)
		}
	}
}
