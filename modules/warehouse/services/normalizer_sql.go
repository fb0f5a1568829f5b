package services

import (
	"fmt"
	"strings"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/registry"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/run"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// sourcePlan is the executable plan for one source of a domain: the big
// INSERT ... SELECT plus a row count over the same window.
type sourcePlan struct {
	SourceID  string
	InsertSQL string
	CountSQL  string
	Args      []any
}

// buildSourcePlan constructs the lift for one source. The field-mapping
// expressions are computed in an inner select aliased `src`, so the
// incremental NOT EXISTS check can reference mapped columns without
// capturing target column names.
func buildSourcePlan(d registry.Domain, src registry.Source, mode run.Mode, window run.Window) (sourcePlan, error) {
	cols := src.MappedColumns()

	var inner strings.Builder
	inner.WriteString("SELECT ")
	for i, col := range cols {
		if i > 0 {
			inner.WriteString(", ")
		}
		fmt.Fprintf(&inner, "%s AS %s", src.FieldMapping[col], col)
	}
	fmt.Fprintf(&inner, " FROM %s", src.Table)

	var args []any
	switch mode {
	case run.ModeFull, run.ModeIncremental:
		// no source-side predicate
	case run.ModeDateRange:
		preds := make([]string, 0, 2)
		if !window.Since.IsZero() {
			args = append(args, window.Since)
			preds = append(preds, fmt.Sprintf("collected_at >= $%d", len(args)))
		}
		if !window.Until.IsZero() {
			args = append(args, window.UpperBound())
			preds = append(preds, fmt.Sprintf("collected_at < $%d", len(args)))
		}
		if len(preds) == 0 {
			return sourcePlan{}, serrors.NewFieldRequiredError("since")
		}
		inner.WriteString(" WHERE " + strings.Join(preds, " AND "))
	default:
		return sourcePlan{}, serrors.NewFieldInvalidError("mode", "expected full|incremental|date_range")
	}

	var stmt strings.Builder
	fmt.Fprintf(&stmt, "INSERT INTO %s (%s)\n", d.TargetTable, strings.Join(cols, ", "))
	fmt.Fprintf(&stmt, "SELECT %s FROM (%s) src", strings.Join(qualify("src", cols), ", "), inner.String())

	if mode == run.ModeIncremental {
		preds := make([]string, len(src.UniqueKey))
		for i, k := range src.UniqueKey {
			preds[i] = fmt.Sprintf("t.%s = src.%s", k, k)
		}
		fmt.Fprintf(&stmt, "\nWHERE NOT EXISTS (SELECT 1 FROM %s t WHERE %s)",
			d.TargetTable, strings.Join(preds, " AND "))
	}

	fmt.Fprintf(&stmt, "\nON CONFLICT (%s) %s", strings.Join(src.UniqueKey, ", "), strings.TrimSpace(d.ConflictResolution))

	countSQL := fmt.Sprintf("SELECT COUNT(*) FROM (%s) src", inner.String())

	return sourcePlan{
		SourceID:  src.SourceID,
		InsertSQL: stmt.String(),
		CountSQL:  countSQL,
		Args:      args,
	}, nil
}

// buildDomainPlans builds plans for every source of the domain, respecting an
// optional source filter. Source order follows the registry declaration.
func buildDomainPlans(d registry.Domain, mode run.Mode, window run.Window, sourceFilter string) ([]sourcePlan, error) {
	plans := make([]sourcePlan, 0, len(d.Sources))
	for _, src := range d.Sources {
		if sourceFilter != "" && src.SourceID != sourceFilter {
			continue
		}
		plan, err := buildSourcePlan(d, src, mode, window)
		if err != nil {
			return nil, err
		}
		plans = append(plans, plan)
	}
	if len(plans) == 0 {
		return nil, serrors.NewFieldInvalidError("source_filter",
			fmt.Sprintf("no source matches %q", sourceFilter))
	}
	return plans, nil
}

func qualify(alias string, cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = alias + "." + c
	}
	return out
}
