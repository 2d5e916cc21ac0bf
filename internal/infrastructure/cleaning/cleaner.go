// Package cleaning normalizes loaded tables before they are materialized.
package cleaning

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/zeebo/xxh3"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/tabular"
)

// UnknownValue fills missing cells of non-numeric columns.
const UnknownValue = "Unknown"

type Cleaner struct{}

func New() *Cleaner {
	return &Cleaner{}
}

// Clean is pure: the input table is never modified.
func (c *Cleaner) Clean(input *domain.Table) (domain.CleanResult, error) {
	if input == nil {
		return domain.CleanResult{}, domain.WrapError(domain.ErrInvalidInput, "clean table", fmt.Errorf("nil table"))
	}
	table := input.Clone()

	profiles, err := normalizeHeaders(table)
	if err != nil {
		return domain.CleanResult{}, err
	}

	stats := domain.CleaningStats{RowsBefore: len(table.Rows)}
	for col := range table.Columns {
		stats.CellsImputed += impute(table, col, &profiles[col])
	}

	stats.DuplicatesRemoved = dropDuplicates(table)
	stats.RowsAfter = len(table.Rows)

	for col := range table.Columns {
		describe(table, col, &profiles[col])
	}

	return domain.CleanResult{Table: table, Stats: stats, Columns: profiles}, nil
}

func normalizeHeaders(table *domain.Table) ([]domain.ColumnProfile, error) {
	profiles := make([]domain.ColumnProfile, len(table.Columns))
	seen := make(map[string]string, len(table.Columns))
	for i, col := range table.Columns {
		name, err := identifier.Sanitize(NormalizeHeader(col.Name))
		if err != nil {
			return nil, fmt.Errorf("column %d %q: %w", i+1, col.Name, err)
		}
		if prev, ok := seen[name]; ok {
			return nil, domain.WrapError(domain.ErrDuplicateColumn, "normalize headers",
				fmt.Errorf("%q and %q both normalize to %q", prev, col.Name, name))
		}
		seen[name] = col.Name
		table.Columns[i].Name = name
		profiles[i] = domain.ColumnProfile{Name: name, SourceName: col.Name}
	}
	return profiles, nil
}

// NormalizeHeader trims, lowercases and joins whitespace runs with underscores.
func NormalizeHeader(raw string) string {
	return strings.Join(strings.FieldsFunc(strings.ToLower(raw), unicode.IsSpace), "_")
}

// impute fills missing cells of one column and returns how many were filled.
func impute(table *domain.Table, col int, profile *domain.ColumnProfile) int {
	kind := table.Columns[col].Kind
	missing := 0
	for _, row := range table.Rows {
		if row[col].Missing {
			missing++
		}
	}
	profile.MissingCount = missing

	profile.Kind = kind
	if missing == 0 {
		return 0
	}

	var fill string
	switch {
	case kind.Numeric():
		median, ok := columnMedian(table.Rows, col)
		if !ok {
			median = 0
		}
		if kind == domain.KindInteger && median != math.Trunc(median) {
			kind = domain.KindFloat
		}
		fill = formatNumber(median, kind)
	default:
		fill = UnknownValue
		if kind == domain.KindDate {
			kind = domain.KindText
		}
	}
	table.Columns[col].Kind = kind
	profile.Kind = kind
	profile.FillValue = fill

	for _, row := range table.Rows {
		if row[col].Missing {
			row[col] = domain.Value(fill)
		}
	}
	return missing
}

func columnMedian(rows [][]domain.Cell, col int) (float64, bool) {
	values := make([]float64, 0, len(rows))
	for _, row := range rows {
		if row[col].Missing {
			continue
		}
		v, err := strconv.ParseFloat(row[col].Value, 64)
		if err != nil {
			continue
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return 0, false
	}
	sort.Float64s(values)
	mid := len(values) / 2
	if len(values)%2 == 1 {
		return values[mid], true
	}
	return (values[mid-1] + values[mid]) / 2, true
}

func formatNumber(v float64, kind domain.ColumnKind) string {
	if kind == domain.KindInteger {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// dropDuplicates keeps the first occurrence of every distinct row. Cells are
// compared by their canonical typed value, so 10 and 10.0 in a float column
// are the same value.
func dropDuplicates(table *domain.Table) int {
	buckets := make(map[uint64][]int, len(table.Rows))
	kept := table.Rows[:0]
	keptKeys := make([][]string, 0, len(table.Rows))
	removed := 0
	h := xxh3.New()

	for _, row := range table.Rows {
		key := rowKey(table.Columns, row)
		h.Reset()
		for _, v := range key {
			_, _ = h.WriteString(v)
			_, _ = h.Write([]byte{0})
		}
		sum := h.Sum64()

		duplicate := false
		for _, idx := range buckets[sum] {
			if slices.Equal(keptKeys[idx], key) {
				duplicate = true
				break
			}
		}
		if duplicate {
			removed++
			continue
		}
		buckets[sum] = append(buckets[sum], len(kept))
		kept = append(kept, row)
		keptKeys = append(keptKeys, key)
	}
	for i := len(kept); i < len(table.Rows); i++ {
		table.Rows[i] = nil
	}
	table.Rows = kept
	return removed
}

// rowKey renders each cell in canonical form. Missing cells get a marker no
// parsed value can take.
func rowKey(columns []domain.Column, row []domain.Cell) []string {
	key := make([]string, len(row))
	for i, cell := range row {
		if cell.Missing {
			key[i] = "\x00missing"
			continue
		}
		key[i] = tabular.Canonical(columns[i].Kind, cell.Value)
	}
	return key
}

func describe(table *domain.Table, col int, profile *domain.ColumnProfile) {
	if table.Columns[col].Kind.Numeric() {
		if len(table.Rows) == 0 {
			return
		}
		minV, maxV, sum := math.Inf(1), math.Inf(-1), 0.0
		n := 0
		for _, row := range table.Rows {
			v, err := strconv.ParseFloat(row[col].Value, 64)
			if err != nil {
				continue
			}
			minV = math.Min(minV, v)
			maxV = math.Max(maxV, v)
			sum += v
			n++
		}
		if n == 0 {
			return
		}
		mean := sum / float64(n)
		profile.Min, profile.Max, profile.Mean = &minV, &maxV, &mean
		return
	}

	distinct := make(map[string]struct{})
	for _, row := range table.Rows {
		distinct[row[col].Value] = struct{}{}
	}
	count := len(distinct)
	profile.DistinctCount = &count
}
