package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
)

// Filter is a WHERE fragment with its bound parameters.
type Filter struct {
	Predicates []string
	Args       []any
}

// Where joins the predicates, or yields an always-true condition when there are none.
func (f Filter) Where() string {
	if len(f.Predicates) == 0 {
		return "1=1"
	}
	return strings.Join(f.Predicates, " AND ")
}

// And appends a parameterless predicate.
func (f Filter) And(predicate string) Filter {
	return Filter{Predicates: append(append([]string(nil), f.Predicates...), predicate), Args: f.Args}
}

// BuildFilter turns optional dimension values into equality predicates in
// dimension order. Dimensions in skip are ignored even when set.
func BuildFilter(filters domain.Filters, skip ...domain.Dimension) (Filter, error) {
	var out Filter
	for _, dim := range domain.FilterDimensions {
		if containsDimension(skip, dim) {
			continue
		}
		raw := filters.Get(dim)
		if raw == "" {
			continue
		}

		var value any = raw
		if dim == domain.DimYear {
			year, err := strconv.Atoi(strings.TrimSpace(raw))
			if err != nil {
				return Filter{}, domain.WrapError(domain.ErrInvalidFilterValue, "build filter", fmt.Errorf("year %q is not an integer", raw))
			}
			value = year
		}

		out.Args = append(out.Args, value)
		out.Predicates = append(out.Predicates, fmt.Sprintf("%s = $%d", identifier.Quote(string(dim)), len(out.Args)))
	}
	return out, nil
}

func containsDimension(dims []domain.Dimension, dim domain.Dimension) bool {
	for _, d := range dims {
		if d == dim {
			return true
		}
	}
	return false
}
