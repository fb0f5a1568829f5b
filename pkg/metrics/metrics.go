package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Run metrics are labelled by component ("normalizer"/"aggregator"), target
// (domain or aggregation id) and terminal status ("committed"/"rolled_back").
var (
	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_runs_total",
		Help: "Completed normalization and aggregation runs.",
	}, []string{"component", "target", "status"})

	RunDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pulse_run_duration_seconds",
		Help:    "Wall-clock duration of runs.",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
	}, []string{"component", "target"})

	RowsAffected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_rows_affected_total",
		Help: "Rows written to canonical and aggregated tables.",
	}, []string{"component", "target"})

	ResolverGaps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_resolver_gaps_total",
		Help: "Resolver inputs that could not be mapped to a dimension id.",
	}, []string{"level"})
)
