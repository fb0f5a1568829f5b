package registry

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

const fundingRegistryJSON = `{
  "domains": {
    "funding": {
      "enabled": true,
      "target_table": "sofia.funding_rounds",
      "conflict_resolution": "DO UPDATE SET updated_at = NOW(), raw_payload = EXCLUDED.raw_payload",
      "sources": [
        {
          "source_id": "crunchbase",
          "table": "raw.funding",
          "field_mapping": {
            "source": "'crunchbase'",
            "source_id": "external_id",
            "announced_date": "announced_on::date",
            "amount_usd": "NULLIF(amount_usd, 0)",
            "organization_id": "sofia_resolve_org(company_name, website, NULL, country, 'crunchbase')",
            "country_id": "sofia_resolve_country(country)"
          },
          "unique_key": ["source", "source_id"]
        }
      ]
    }
  },
  "aggregations": {
    "funding_monthly_by_country": {
      "enabled": true,
      "source_table": "sofia.funding_rounds",
      "target_table": "sofia.agg_funding_monthly_by_country",
      "grain": {
        "country_id": "country_id",
        "year_month": "date_trunc('month', announced_date)"
      },
      "metrics": {
        "total_usd": "SUM(amount_usd)",
        "deal_count": "COUNT(*)",
        "org_count": "COUNT(DISTINCT organization_id)"
      },
      "filters": "announced_date IS NOT NULL",
      "update_strategy": "replace"
    }
  }
}`

func TestParse_JSON(t *testing.T) {
	r, err := Parse([]byte(fundingRegistryJSON), FormatJSON)
	require.NoError(t, err)

	d, err := r.Domain("funding")
	require.NoError(t, err)
	require.True(t, d.Enabled)
	require.Equal(t, "sofia.funding_rounds", d.TargetTable)
	require.Len(t, d.Sources, 1)
	require.Equal(t, "crunchbase", d.Sources[0].SourceID)

	a, err := r.Aggregation("funding_monthly_by_country")
	require.NoError(t, err)
	require.Equal(t, StrategyReplace, a.UpdateStrategy)

	// Grain mapping keeps declaration order.
	require.Equal(t, []string{"country_id", "year_month"}, a.Grain.Names())
	require.False(t, a.Grain.Columns[0].Derived())
	require.True(t, a.Grain.Columns[1].Derived())
	require.Equal(t, "date_trunc('month', announced_date)", a.Grain.Columns[1].Expr)
}

func TestParse_YAMLGrainList(t *testing.T) {
	doc := `
domains: {}
aggregations:
  jobs_by_country:
    enabled: true
    source_table: sofia.jobs
    target_table: sofia.agg_jobs_by_country
    grain:
      - country_id
      - seniority_level
    metrics:
      posting_count: COUNT(*)
    update_strategy: upsert
`
	r, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)

	a, err := r.Aggregation("jobs_by_country")
	require.NoError(t, err)
	require.Equal(t, []string{"country_id", "seniority_level"}, a.Grain.Names())
	for _, col := range a.Grain.Columns {
		require.False(t, col.Derived())
	}
}

func TestParse_YAMLGrainMappingOrder(t *testing.T) {
	doc := `
domains: {}
aggregations:
  security_monthly:
    enabled: true
    source_table: sofia.security_events
    target_table: sofia.agg_security_monthly
    grain:
      year_month: date_trunc('month', event_date)
      country_id: country_id
    metrics:
      fatalities: SUM(fatalities)
    update_strategy: upsert
`
	r, err := Parse([]byte(doc), FormatYAML)
	require.NoError(t, err)
	a, err := r.Aggregation("security_monthly")
	require.NoError(t, err)
	require.Equal(t, []string{"year_month", "country_id"}, a.Grain.Names())
}

func TestDomain_NotFoundListsAvailable(t *testing.T) {
	r, err := Parse([]byte(fundingRegistryJSON), FormatJSON)
	require.NoError(t, err)

	_, err = r.Domain("does_not_exist")
	require.Error(t, err)
	var serr *serrors.BaseError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, serrors.CodeDomainNotFound, serr.Code)
	require.Contains(t, serr.Message, "funding")
}

func TestAggregation_NotFound(t *testing.T) {
	r, err := Parse([]byte(fundingRegistryJSON), FormatJSON)
	require.NoError(t, err)

	_, err = r.Aggregation("nope")
	var serr *serrors.BaseError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, serrors.CodeAggregationNotFound, serr.Code)
	require.Contains(t, serr.Message, "funding_monthly_by_country")
}

func TestMappedColumns_SourceFirstThenAlphabetical(t *testing.T) {
	src := Source{
		FieldMapping: map[string]string{
			"source":        "'x'",
			"source_id":     "id",
			"country_id":    "sofia_resolve_country(country)",
			"amount_usd":    "amount",
			"announced_date": "d",
		},
	}
	require.Equal(t,
		[]string{"source", "source_id", "amount_usd", "announced_date", "country_id"},
		src.MappedColumns())
}

func mutateRegistry(t *testing.T, mutate func(*Registry)) error {
	t.Helper()
	r, err := Parse([]byte(fundingRegistryJSON), FormatJSON)
	require.NoError(t, err)
	mutate(r)
	return r.Validate()
}

func requireRegistryError(t *testing.T, err error, pathFragment string) {
	t.Helper()
	require.Error(t, err)
	var serr *serrors.BaseError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, serrors.CodeRegistryLoadError, serr.Code)
	require.Contains(t, serr.Message, pathFragment)
}

func TestValidate_MissingSourceIDMapping(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		d := r.Domains["funding"]
		delete(d.Sources[0].FieldMapping, "source_id")
		r.Domains["funding"] = d
	})
	requireRegistryError(t, err, "domains.funding.sources[0].field_mapping")
}

func TestValidate_UniqueKeyNotMapped(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		d := r.Domains["funding"]
		d.Sources[0].UniqueKey = []string{"source", "source_id", "platform"}
		r.Domains["funding"] = d
	})
	requireRegistryError(t, err, "unique_key")
}

func TestValidate_UnqualifiedTable(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		d := r.Domains["funding"]
		d.Sources[0].Table = "raw_funding"
		r.Domains["funding"] = d
	})
	requireRegistryError(t, err, "schema.table")
}

func TestValidate_SourceReadingFromTarget(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		d := r.Domains["funding"]
		d.Sources[0].Table = "sofia.agg_funding_monthly_by_country"
		r.Domains["funding"] = d
	})
	requireRegistryError(t, err, "staging tables only")
}

func TestValidate_BadConflictResolution(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		d := r.Domains["funding"]
		d.ConflictResolution = "REPLACE EVERYTHING"
		r.Domains["funding"] = d
	})
	requireRegistryError(t, err, "conflict_resolution")
}

func TestValidate_BadUpdateStrategy(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		a := r.Aggregations["funding_monthly_by_country"]
		a.UpdateStrategy = "merge"
		r.Aggregations["funding_monthly_by_country"] = a
	})
	requireRegistryError(t, err, "update_strategy")
}

func TestValidate_MetricNotAggregated(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		a := r.Aggregations["funding_monthly_by_country"]
		a.Metrics = map[string]string{"total_usd": "amount_usd"}
		r.Aggregations["funding_monthly_by_country"] = a
	})
	requireRegistryError(t, err, "grouped aggregate")
}

func TestValidate_MetricCollidesWithGrain(t *testing.T) {
	err := mutateRegistry(t, func(r *Registry) {
		a := r.Aggregations["funding_monthly_by_country"]
		a.Metrics["country_id"] = "COUNT(*)"
		r.Aggregations["funding_monthly_by_country"] = a
	})
	requireRegistryError(t, err, "collides")
}

func TestParse_MalformedJSON(t *testing.T) {
	_, err := Parse([]byte(`{"domains": `), FormatJSON)
	requireRegistryError(t, err, "$")
}

func TestLoad_DetectsFormat(t *testing.T) {
	// Extension routing only; parse behavior is covered above.
	_, err := Load("testdata/does_not_exist.yaml")
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "REGISTRY_LOAD_ERROR"))
}
