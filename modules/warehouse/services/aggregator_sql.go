package services

import (
	"fmt"
	"strings"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/registry"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/run"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// aggStatement is one SQL statement of an aggregation plan.
type aggStatement struct {
	SQL  string
	Args []any
}

// aggPlan is the ordered statement list for one aggregation run. DeleteSQL
// (when present) executes strictly before InsertSQL; LockSQL, when present,
// executes first.
type aggPlan struct {
	Lock      *aggStatement
	Delete    *aggStatement
	Insert    aggStatement
	CountSQL  string
	CountArgs []any
}

func (p aggPlan) Statements() []aggStatement {
	out := make([]aggStatement, 0, 3)
	if p.Lock != nil {
		out = append(out, *p.Lock)
	}
	if p.Delete != nil {
		out = append(out, *p.Delete)
	}
	return append(out, p.Insert)
}

// dateGrainColumn picks the grain column that carries the date dimension,
// required by date_range mode. Recognition is by name: the registry names
// date grains year_month, event_date, week, day and the like.
func dateGrainColumn(a registry.Aggregation) (registry.GrainColumn, bool) {
	for _, col := range a.Grain.Columns {
		lowered := strings.ToLower(col.Name)
		for _, marker := range []string{"date", "month", "week", "day", "year"} {
			if strings.Contains(lowered, marker) {
				return col, true
			}
		}
	}
	return registry.GrainColumn{}, false
}

// buildAggregationPlan constructs the rewrite for one aggregation and mode.
//
// replace+full takes a per-target advisory lock and deletes rather than
// truncates, so concurrent readers of the target see the old rows until
// commit instead of blocking on an exclusive table lock.
func buildAggregationPlan(a registry.Aggregation, mode run.Mode, window run.Window) (aggPlan, error) {
	filters := strings.TrimSpace(a.Filters)
	if filters == "" {
		filters = "TRUE"
	}

	grainNames := a.Grain.Names()
	metricCols := a.MetricColumns()

	var dateCol *registry.GrainColumn
	var args []any
	wherePreds := []string{filters}

	switch mode {
	case run.ModeFull:
	case run.ModeDateRange:
		col, ok := dateGrainColumn(a)
		if !ok {
			return aggPlan{}, serrors.NewFieldInvalidError("mode",
				"date_range requires a date-valued grain column")
		}
		if window.Since.IsZero() && window.Until.IsZero() {
			return aggPlan{}, serrors.NewFieldRequiredError("since")
		}
		dateCol = &col
		if !window.Since.IsZero() {
			args = append(args, window.Since)
			wherePreds = append(wherePreds, fmt.Sprintf("%s >= $%d", col.Expr, len(args)))
		}
		if !window.Until.IsZero() {
			args = append(args, window.UpperBound())
			wherePreds = append(wherePreds, fmt.Sprintf("%s < $%d", col.Expr, len(args)))
		}
	default:
		return aggPlan{}, serrors.NewFieldInvalidError("mode",
			"aggregations support full|date_range")
	}

	selectCols := make([]string, 0, len(grainNames)+len(metricCols)+1)
	groupBy := make([]string, 0, len(grainNames))
	for i, col := range a.Grain.Columns {
		selectCols = append(selectCols, fmt.Sprintf("%s AS %s", col.Expr, col.Name))
		groupBy = append(groupBy, fmt.Sprintf("%d", i+1))
	}
	for _, col := range metricCols {
		selectCols = append(selectCols, fmt.Sprintf("%s AS %s", a.Metrics[col], col))
	}
	selectCols = append(selectCols, "NOW() AS created_at")

	insertCols := append(append([]string{}, grainNames...), metricCols...)
	insertCols = append(insertCols, "created_at")

	var insert strings.Builder
	fmt.Fprintf(&insert, "INSERT INTO %s (%s)\n", a.TargetTable, strings.Join(insertCols, ", "))
	fmt.Fprintf(&insert, "SELECT %s\nFROM %s\nWHERE %s\nGROUP BY %s",
		strings.Join(selectCols, ", "),
		a.SourceTable,
		strings.Join(wherePreds, " AND "),
		strings.Join(groupBy, ", "),
	)

	plan := aggPlan{}

	switch a.UpdateStrategy {
	case registry.StrategyReplace:
		if mode == run.ModeFull {
			// hashtext keys the advisory lock by target table, serializing
			// full rewrites of the same table across processes.
			plan.Lock = &aggStatement{
				SQL:  "SELECT pg_advisory_xact_lock(hashtext($1))",
				Args: []any{a.TargetTable},
			}
			plan.Delete = &aggStatement{SQL: fmt.Sprintf("DELETE FROM %s", a.TargetTable)}
		} else {
			delPreds := make([]string, 0, 2)
			var delArgs []any
			if !window.Since.IsZero() {
				delArgs = append(delArgs, window.Since)
				delPreds = append(delPreds, fmt.Sprintf("%s >= $%d", dateCol.Name, len(delArgs)))
			}
			if !window.Until.IsZero() {
				delArgs = append(delArgs, window.UpperBound())
				delPreds = append(delPreds, fmt.Sprintf("%s < $%d", dateCol.Name, len(delArgs)))
			}
			plan.Delete = &aggStatement{
				SQL:  fmt.Sprintf("DELETE FROM %s WHERE %s", a.TargetTable, strings.Join(delPreds, " AND ")),
				Args: delArgs,
			}
		}
		plan.Insert = aggStatement{SQL: insert.String(), Args: args}

	case registry.StrategyUpsert:
		updates := make([]string, 0, len(metricCols)+1)
		for _, col := range metricCols {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col, col))
		}
		updates = append(updates, "updated_at = NOW()")
		sql := insert.String() + fmt.Sprintf("\nON CONFLICT (%s) DO UPDATE SET %s",
			strings.Join(grainNames, ", "), strings.Join(updates, ", "))
		plan.Insert = aggStatement{SQL: sql, Args: args}

	case registry.StrategyAppend:
		plan.Insert = aggStatement{SQL: insert.String(), Args: args}

	default:
		return aggPlan{}, serrors.NewRegistryError("update_strategy",
			"unknown strategy "+string(a.UpdateStrategy))
	}

	plan.CountSQL = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s", a.SourceTable, strings.Join(wherePreds, " AND "))
	plan.CountArgs = args
	return plan, nil
}
