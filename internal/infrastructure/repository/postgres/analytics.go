package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
)

const (
	DefaultAnalyticsConcurrency = 5
	DefaultDistinctLimit        = 500
)

// AnalyticsStore serves the read path over completed raw tables. Every query
// degrades to an empty result on failure.
type AnalyticsStore struct {
	db            *sql.DB
	concurrency   int
	distinctLimit int
}

func NewAnalyticsStore(db *sql.DB, concurrency, distinctLimit int) *AnalyticsStore {
	if concurrency <= 0 {
		concurrency = DefaultAnalyticsConcurrency
	}
	if distinctLimit <= 0 {
		distinctLimit = DefaultDistinctLimit
	}
	return &AnalyticsStore{db: db, concurrency: concurrency, distinctLimit: distinctLimit}
}

type analyticsView struct {
	name   string
	skip   []domain.Dimension
	extra  string
	render func(source, where string) string
}

var analyticsViews = []analyticsView{
	{
		name: "sales_by_brand_year",
		render: func(source, where string) string {
			return `SELECT "brand", "year", ` + roundedSum("salesvalue") + ` AS total_sales
FROM ` + source + `
WHERE ` + where + `
GROUP BY "brand", "year"
ORDER BY "year", total_sales DESC`
		},
	},
	{
		name: "volume_by_brand_year",
		render: func(source, where string) string {
			return `SELECT "brand", "year", ` + roundedSum("volume") + ` AS total_volume
FROM ` + source + `
WHERE ` + where + `
GROUP BY "brand", "year"
ORDER BY "year", total_volume DESC`
		},
	},
	{
		name: "yearly_comparison",
		skip: []domain.Dimension{domain.DimYear},
		render: func(source, where string) string {
			return `SELECT "brand", "year", ` + roundedSum("salesvalue") + ` AS total_sales
FROM ` + source + `
WHERE ` + where + `
GROUP BY "brand", "year"
ORDER BY "brand", "year"`
		},
	},
	{
		name:  "monthly_trend",
		extra: `"date" IS NOT NULL`,
		render: func(source, where string) string {
			return `SELECT "date", "year", "month", ` + roundedSum("salesvalue") + ` AS total_sales
FROM ` + source + `
WHERE ` + where + `
GROUP BY "date", "year", "month"
ORDER BY "date"`
		},
	},
	{
		name: "market_share",
		skip: []domain.Dimension{domain.DimBrand},
		render: func(source, where string) string {
			return `SELECT "brand",
	` + roundedSum("salesvalue") + ` AS total_sales,
	` + roundedSum("volume") + ` AS total_volume,
	` + sharePct("salesvalue") + ` AS sales_share_pct
FROM ` + source + `
WHERE ` + where + `
GROUP BY "brand"
ORDER BY total_sales DESC`
		},
	},
}

type preparedQuery struct {
	view string
	sql  string
	args []any
}

// prepareViews renders every view for the given filters. Invalid filter values
// fail here, before anything touches the database.
func prepareViews(datasetID int64, filters domain.Filters) ([]preparedQuery, error) {
	source, err := identifier.RawTable(datasetID)
	if err != nil {
		return nil, err
	}
	out := make([]preparedQuery, 0, len(analyticsViews))
	for _, v := range analyticsViews {
		f, err := BuildFilter(filters, v.skip...)
		if err != nil {
			return nil, err
		}
		if v.extra != "" {
			f = f.And(v.extra)
		}
		out = append(out, preparedQuery{view: v.name, sql: v.render(source.Quoted(), f.Where()), args: f.Args})
	}
	return out, nil
}

func (s *AnalyticsStore) RunViews(ctx context.Context, datasetID int64, filters domain.Filters) (*domain.AnalyticsReport, error) {
	queries, err := prepareViews(datasetID, filters)
	if err != nil {
		return nil, err
	}

	results := make([][]domain.Row, len(queries))
	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			rows, err := s.queryRows(ctx, q.sql, q.args...)
			if err != nil {
				slog.Warn("analytics_view_failed", "dataset_id", datasetID, "view", q.view, "error", err.Error())
				rows = []domain.Row{}
			}
			results[i] = rows
			return nil
		})
	}
	_ = g.Wait()

	return &domain.AnalyticsReport{
		DatasetInfo:       domain.DatasetInfo{ID: datasetID},
		SalesByBrandYear:  results[0],
		VolumeByBrandYear: results[1],
		YearlyComparison:  results[2],
		MonthlyTrend:      results[3],
		MarketShare:       results[4],
	}, nil
}

// DistinctValues lists filter choices per dimension; a failing dimension gets
// an empty list without affecting the others.
func (s *AnalyticsStore) DistinctValues(ctx context.Context, datasetID int64, dims []domain.Dimension) map[domain.Dimension][]any {
	out := make(map[domain.Dimension][]any, len(dims))
	for _, dim := range dims {
		out[dim] = []any{}
	}
	source, err := identifier.RawTable(datasetID)
	if err != nil {
		slog.Warn("filter_discovery_failed", "dataset_id", datasetID, "error", err.Error())
		return out
	}

	for _, dim := range dims {
		col := identifier.Quote(string(dim))
		query := fmt.Sprintf("SELECT DISTINCT %s FROM %s WHERE %s IS NOT NULL ORDER BY %s LIMIT $1", col, source.Quoted(), col, col)
		rows, err := s.queryRows(ctx, query, s.distinctLimit)
		if err != nil {
			slog.Warn("filter_discovery_column_failed", "dataset_id", datasetID, "column", string(dim), "error", err.Error())
			continue
		}
		values := make([]any, 0, len(rows))
		for _, r := range rows {
			values = append(values, r[string(dim)])
		}
		out[dim] = values
	}
	return out
}

func (s *AnalyticsStore) queryRows(ctx context.Context, query string, args ...any) ([]domain.Row, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	out := []domain.Row{}
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(domain.Row, len(columns))
		for i, c := range columns {
			row[c] = jsonValue(values[i])
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// jsonValue renders driver values the way API clients expect them.
func jsonValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format("2006-01-02")
		}
		return t.Format(time.RFC3339)
	default:
		return v
	}
}
