package registry

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// aggregateHeads is the set of aggregate function names accepted in metric
// expressions. Metric validation is a guard against plain column references
// sneaking into metrics, not a SQL parser; the database stays the evaluator.
var aggregateHeads = []string{
	"sum(", "count(", "avg(", "min(", "max(",
	"array_agg(", "string_agg(", "jsonb_agg(", "json_agg(",
	"bool_and(", "bool_or(", "stddev", "variance", "percentile_",
}

// Validate checks the registry for structural errors. The first violation is
// returned as a REGISTRY_LOAD_ERROR carrying the offending document path.
func (r *Registry) Validate() error {
	if len(r.Domains) == 0 && len(r.Aggregations) == 0 {
		return serrors.NewRegistryError("$", "document defines no domains and no aggregations")
	}

	targets := r.targetTables()

	for _, id := range r.DomainIDs() {
		if err := validateDomain(id, r.Domains[id], targets); err != nil {
			return err
		}
	}
	for _, id := range r.AggregationIDs() {
		if err := validateAggregation(id, r.Aggregations[id]); err != nil {
			return err
		}
	}
	return nil
}

// targetTables returns every canonical and aggregated table the registry
// writes to. Sources reading from any of them would be a layering violation.
func (r *Registry) targetTables() map[string]bool {
	out := map[string]bool{}
	for _, d := range r.Domains {
		out[d.TargetTable] = true
	}
	for _, a := range r.Aggregations {
		out[a.TargetTable] = true
	}
	return out
}

func validateDomain(id string, d Domain, targets map[string]bool) error {
	path := "domains." + id

	if err := validateTableName(d.TargetTable); err != nil {
		return serrors.NewRegistryError(path+".target_table", err.Error())
	}
	if err := validateConflictResolution(d.ConflictResolution); err != nil {
		return serrors.NewRegistryError(path+".conflict_resolution", err.Error())
	}
	if len(d.Sources) == 0 {
		return serrors.NewRegistryError(path+".sources", "domain has no sources")
	}

	seen := map[string]bool{}
	for i, src := range d.Sources {
		sp := fmt.Sprintf("%s.sources[%d]", path, i)

		if src.SourceID == "" {
			return serrors.NewRegistryError(sp+".source_id", "source_id is required")
		}
		if seen[src.SourceID] {
			return serrors.NewRegistryError(sp+".source_id", "duplicate source_id "+quote(src.SourceID))
		}
		seen[src.SourceID] = true

		if err := validateTableName(src.Table); err != nil {
			return serrors.NewRegistryError(sp+".table", err.Error())
		}
		if targets[src.Table] {
			return serrors.NewRegistryError(sp+".table",
				"source reads from managed target table "+quote(src.Table)+"; collectors must write to staging tables only")
		}

		for _, required := range []string{"source", "source_id"} {
			if _, ok := src.FieldMapping[required]; !ok {
				return serrors.NewRegistryError(sp+".field_mapping", "missing required mapping for "+quote(required))
			}
		}
		for col := range src.FieldMapping {
			if !identifierRe.MatchString(col) {
				return serrors.NewRegistryError(sp+".field_mapping", "invalid canonical column name "+quote(col))
			}
		}

		if len(src.UniqueKey) == 0 {
			return serrors.NewRegistryError(sp+".unique_key", "unique_key is required")
		}
		for _, col := range src.UniqueKey {
			if _, ok := src.FieldMapping[col]; !ok {
				return serrors.NewRegistryError(sp+".unique_key",
					"unique_key column "+quote(col)+" is not present in field_mapping")
			}
		}
	}
	return nil
}

func validateAggregation(id string, a Aggregation) error {
	path := "aggregations." + id

	if err := validateTableName(a.SourceTable); err != nil {
		return serrors.NewRegistryError(path+".source_table", err.Error())
	}
	if err := validateTableName(a.TargetTable); err != nil {
		return serrors.NewRegistryError(path+".target_table", err.Error())
	}

	switch a.UpdateStrategy {
	case StrategyReplace, StrategyUpsert, StrategyAppend:
	default:
		return serrors.NewRegistryError(path+".update_strategy",
			"unknown update_strategy "+quote(string(a.UpdateStrategy))+" (expected replace|upsert|append)")
	}

	if len(a.Grain.Columns) == 0 {
		return serrors.NewRegistryError(path+".grain", "grain is required")
	}
	grainNames := map[string]bool{}
	for _, col := range a.Grain.Columns {
		if !identifierRe.MatchString(col.Name) {
			return serrors.NewRegistryError(path+".grain", "invalid grain column name "+quote(col.Name))
		}
		if grainNames[col.Name] {
			return serrors.NewRegistryError(path+".grain", "duplicate grain column "+quote(col.Name))
		}
		grainNames[col.Name] = true
		if strings.TrimSpace(col.Expr) == "" {
			return serrors.NewRegistryError(path+".grain", "empty expression for grain column "+quote(col.Name))
		}
	}

	if len(a.Metrics) == 0 {
		return serrors.NewRegistryError(path+".metrics", "metrics are required")
	}
	for _, col := range a.MetricColumns() {
		if !identifierRe.MatchString(col) {
			return serrors.NewRegistryError(path+".metrics", "invalid metric column name "+quote(col))
		}
		if grainNames[col] {
			return serrors.NewRegistryError(path+".metrics", "metric column "+quote(col)+" collides with grain column")
		}
		if !looksAggregated(a.Metrics[col]) {
			return serrors.NewRegistryError(path+".metrics."+col,
				"expression "+quote(a.Metrics[col])+" does not look like a grouped aggregate")
		}
	}
	return nil
}

// validateTableName requires a fully-qualified schema.table reference.
func validateTableName(name string) error {
	parts := strings.Split(name, ".")
	if len(parts) != 2 {
		return fmt.Errorf("table %q is not fully qualified as schema.table", name)
	}
	for _, part := range parts {
		if !identifierRe.MatchString(part) {
			return fmt.Errorf("table %q contains invalid identifier %q", name, part)
		}
	}
	return nil
}

// validateConflictResolution accepts the action fragment that follows the
// ON CONFLICT target: DO NOTHING or DO UPDATE SET ...
func validateConflictResolution(fragment string) error {
	f := strings.ToUpper(strings.TrimSpace(fragment))
	if f == "" {
		return fmt.Errorf("conflict_resolution is required")
	}
	if f != "DO NOTHING" && !strings.HasPrefix(f, "DO UPDATE SET ") {
		return fmt.Errorf("conflict_resolution must be DO NOTHING or DO UPDATE SET ...")
	}
	return nil
}

func looksAggregated(expr string) bool {
	lowered := strings.ToLower(expr)
	for _, head := range aggregateHeads {
		if strings.Contains(lowered, head) {
			return true
		}
	}
	return false
}
