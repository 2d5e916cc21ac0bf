package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/dataset-analytics/internal/core/domain"
	"github.com/kirillkom/dataset-analytics/internal/infrastructure/identifier"
)

// aggregation is one derived table kind: agg_<kind>_<id>.
type aggregation struct {
	kind     string
	requires []string
	// selectSQL renders the SELECT materialized from the quoted source table.
	selectSQL func(source string) string
}

func roundedSum(column string) string {
	return fmt.Sprintf("ROUND(SUM(%s)::numeric, 2)::float8", identifier.Quote(column))
}

// sharePct is the group's percentage of the whole result set, 0 on a zero total.
func sharePct(column string) string {
	q := identifier.Quote(column)
	return fmt.Sprintf("COALESCE(ROUND(100.0 * SUM(%s)::numeric / NULLIF(SUM(SUM(%s)) OVER ()::numeric, 0), 2), 0)::float8", q, q)
}

var aggregations = []aggregation{
	{
		kind:     "market_share",
		requires: []string{"brand", "salesvalue", "volume"},
		selectSQL: func(source string) string {
			return `SELECT "brand",
	` + roundedSum("salesvalue") + ` AS brand_sales,
	` + roundedSum("volume") + ` AS brand_volume,
	` + sharePct("salesvalue") + ` AS sales_share_pct,
	` + sharePct("volume") + ` AS volume_share_pct
FROM ` + source + `
GROUP BY "brand"
ORDER BY brand_sales DESC`
		},
	},
	{
		kind:     "brand_year",
		requires: []string{"brand", "year", "salesvalue", "volume"},
		selectSQL: func(source string) string {
			return `SELECT "brand", "year",
	` + roundedSum("salesvalue") + ` AS total_sales,
	` + roundedSum("volume") + ` AS total_volume
FROM ` + source + `
GROUP BY "brand", "year"
ORDER BY "brand", "year"`
		},
	},
}

// BuildAggregations recreates every derived table whose prerequisite columns
// exist. Each kind is independent; failures are reported, not returned.
func (s *Session) BuildAggregations(ctx context.Context, datasetID int64, columns []string) []domain.StepResult {
	source, err := identifier.RawTable(datasetID)
	if err != nil {
		return []domain.StepResult{{Name: "aggregations", Outcome: domain.StepFailed, Detail: err.Error()}}
	}
	present := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		present[c] = struct{}{}
	}

	results := make([]domain.StepResult, 0, len(aggregations))
	for _, agg := range aggregations {
		result := s.buildAggregation(ctx, datasetID, source, agg, present)
		switch result.Outcome {
		case domain.StepFailed:
			slog.Warn("aggregation_build_failed", "dataset_id", datasetID, "table", result.Name, "error", result.Detail)
		case domain.StepSkipped:
			slog.Info("aggregation_build_skipped", "dataset_id", datasetID, "table", result.Name, "reason", result.Detail)
		}
		results = append(results, result)
	}
	return results
}

func (s *Session) buildAggregation(ctx context.Context, datasetID int64, source identifier.Table, agg aggregation, present map[string]struct{}) domain.StepResult {
	target, err := identifier.AggregateTable(agg.kind, datasetID)
	if err != nil {
		return domain.StepResult{Name: agg.kind, Outcome: domain.StepFailed, Detail: err.Error()}
	}

	var missing []string
	for _, col := range agg.requires {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return domain.StepResult{Name: target.Name(), Outcome: domain.StepSkipped, Detail: "missing columns: " + strings.Join(missing, ", ")}
	}

	if err := s.replaceAggregate(ctx, target, agg.selectSQL(source.Quoted())); err != nil {
		return domain.StepResult{Name: target.Name(), Outcome: domain.StepFailed, Detail: err.Error()}
	}
	return domain.StepResult{Name: target.Name(), Outcome: domain.StepSucceeded}
}

func (s *Session) replaceAggregate(ctx context.Context, target identifier.Table, selectSQL string) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin aggregate tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+target.Quoted()); err != nil {
		return fmt.Errorf("drop aggregate: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "CREATE TABLE "+target.Quoted()+" AS\n"+selectSQL); err != nil {
		return fmt.Errorf("create aggregate: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit aggregate tx: %w", err)
	}
	return nil
}
