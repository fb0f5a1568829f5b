package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/run"
	"github.com/sofiapulse/pulse/modules/warehouse/infrastructure/persistence"
	"github.com/sofiapulse/pulse/pkg/composables"
	"github.com/sofiapulse/pulse/pkg/eventbus"
	"github.com/sofiapulse/pulse/pkg/metrics"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// NormalizeParams are the caller-supplied parameters of one normalization run.
type NormalizeParams struct {
	Domain       string `validate:"required"`
	Mode         string `validate:"required"`
	Since        string
	Until        string
	SourceFilter string
	DryRun       bool
}

// SourceResult reports one source's contribution to a run.
type SourceResult struct {
	SourceID   string `json:"source_id"`
	Candidates int64  `json:"candidates"`
	Affected   int64  `json:"affected"`
}

// NormalizeResult is the Data payload of a successful normalization run.
// Queries is populated only on dry runs.
type NormalizeResult struct {
	RunID    uuid.UUID      `json:"run_id"`
	Domain   string         `json:"domain"`
	Mode     run.Mode       `json:"mode"`
	DryRun   bool           `json:"dry_run"`
	Affected int64          `json:"affected"`
	Sources  []SourceResult `json:"sources"`
	Queries  []string       `json:"queries,omitempty"`
}

// NormalizerService lifts staging rows into canonical tables. All movement is
// set-based SQL built from the registry; no rows pass through Go.
type NormalizerService struct {
	registry  *RegistryService
	runs      *persistence.RunRepository
	publisher eventbus.EventBus
}

func NewNormalizerService(reg *RegistryService, runs *persistence.RunRepository, publisher eventbus.EventBus) *NormalizerService {
	return &NormalizerService{registry: reg, runs: runs, publisher: publisher}
}

// Run executes one normalization run for a domain. The lift for every source
// runs inside a single transaction; a dry run executes the same statements in
// a transaction that is always rolled back, so reported counts are real.
func (s *NormalizerService) Run(ctx context.Context, params NormalizeParams) (*NormalizeResult, error) {
	reg, err := s.registry.Current(ctx)
	if err != nil {
		return nil, err
	}

	domain, err := reg.Domain(params.Domain)
	if err != nil {
		return nil, err
	}
	if !domain.Enabled {
		return nil, serrors.NewError(serrors.CodeDomainDisabled,
			"domain "+params.Domain+" is disabled in the registry")
	}

	mode, window, err := parseModeAndWindow(params.Mode, params.Since, params.Until)
	if err != nil {
		return nil, err
	}

	plans, err := buildDomainPlans(domain, mode, window, params.SourceFilter)
	if err != nil {
		return nil, err
	}

	result := &NormalizeResult{
		RunID:  uuid.New(),
		Domain: params.Domain,
		Mode:   mode,
		DryRun: params.DryRun,
	}
	if params.DryRun {
		for _, plan := range plans {
			result.Queries = append(result.Queries, plan.InsertSQL)
		}
	}

	if !params.DryRun {
		if err := s.runs.Start(ctx, run.Record{
			RunID:     result.RunID,
			Component: run.ComponentNormalizer,
			Target:    params.Domain,
			Mode:      mode,
			Params:    runParams(params.Since, params.Until, params.SourceFilter),
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return nil, dbError(err)
		}
	}

	s.publisher.Publish(run.Started{
		RunID:     result.RunID,
		Component: run.ComponentNormalizer,
		Target:    params.Domain,
		Mode:      mode,
		DryRun:    params.DryRun,
	})

	started := time.Now()
	runErr := inRunTx(ctx, params.DryRun, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		for _, plan := range plans {
			var candidates int64
			if err := tx.QueryRow(txCtx, plan.CountSQL, plan.Args...).Scan(&candidates); err != nil {
				return normalizationError(plan.SourceID, err)
			}
			tag, err := tx.Exec(txCtx, plan.InsertSQL, plan.Args...)
			if err != nil {
				return normalizationError(plan.SourceID, err)
			}
			result.Sources = append(result.Sources, SourceResult{
				SourceID:   plan.SourceID,
				Candidates: candidates,
				Affected:   tag.RowsAffected(),
			})
			result.Affected += tag.RowsAffected()
		}
		return nil
	})
	duration := time.Since(started)

	status := run.StatusCommitted
	if runErr != nil {
		status = run.StatusRolledBack
		result.Affected = 0
		result.Sources = nil
	}

	if !params.DryRun {
		errMsg := ""
		if runErr != nil {
			errMsg = runErr.Error()
		}
		if err := s.runs.Finish(ctx, result.RunID, status, result.Affected, 0, errMsg); err != nil {
			logEntry(ctx, logrus.Fields{"run_id": result.RunID}).WithError(err).Error("failed to finish run record")
		}
	}

	s.publisher.Publish(run.Completed{
		RunID:     result.RunID,
		Component: run.ComponentNormalizer,
		Target:    params.Domain,
		Mode:      mode,
		DryRun:    params.DryRun,
		Status:    status,
		Affected:  result.Affected,
		Duration:  duration,
		Err:       runErr,
	})
	observeRun(run.ComponentNormalizer, params.Domain, status, duration, result.Affected)

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

func normalizationError(sourceID string, err error) error {
	return serrors.NewError(serrors.CodeNormalizationError,
		"source "+sourceID+": "+err.Error()).AsRetryable().WithCause(err)
}

func dbError(err error) error {
	return serrors.NewError(serrors.CodeDBConnectionError, err.Error()).AsRetryable().WithCause(err)
}

// inRunTx runs fn in a committed transaction, or a rolled-back one for dry
// runs. Both paths execute identical SQL.
func inRunTx(ctx context.Context, dryRun bool, fn func(context.Context) error) error {
	if dryRun {
		return composables.InRolledBackTx(ctx, fn)
	}
	return composables.InTx(ctx, fn)
}

// parseModeAndWindow validates mode and the since/until pair. Dates use
// YYYY-MM-DD; date_range requires at least one bound, other modes reject both.
func parseModeAndWindow(modeStr, since, until string) (run.Mode, run.Window, error) {
	mode, err := run.ParseMode(modeStr)
	if err != nil {
		return "", run.Window{}, err
	}

	var window run.Window
	if since != "" {
		t, err := time.Parse("2006-01-02", since)
		if err != nil {
			return "", run.Window{}, serrors.NewFieldInvalidError("since", "expected YYYY-MM-DD")
		}
		window.Since = t
	}
	if until != "" {
		t, err := time.Parse("2006-01-02", until)
		if err != nil {
			return "", run.Window{}, serrors.NewFieldInvalidError("until", "expected YYYY-MM-DD")
		}
		window.Until = t
	}
	if !window.Since.IsZero() && !window.Until.IsZero() && window.Until.Before(window.Since) {
		return "", run.Window{}, serrors.NewFieldInvalidError("until", "until precedes since")
	}

	switch mode {
	case run.ModeDateRange:
		if window.IsZero() {
			return "", run.Window{}, serrors.NewFieldRequiredError("since")
		}
	default:
		if !window.IsZero() {
			return "", run.Window{}, serrors.NewFieldInvalidError("since",
				"date bounds are only valid with mode=date_range")
		}
	}
	return mode, window, nil
}

func runParams(since, until, filter string) map[string]any {
	params := map[string]any{}
	if since != "" {
		params["since"] = since
	}
	if until != "" {
		params["until"] = until
	}
	if filter != "" {
		params["source_filter"] = filter
	}
	return params
}

func observeRun(component run.Component, target string, status run.Status, d time.Duration, affected int64) {
	metrics.RunsTotal.WithLabelValues(string(component), target, string(status)).Inc()
	metrics.RunDuration.WithLabelValues(string(component), target).Observe(d.Seconds())
	metrics.RowsAffected.WithLabelValues(string(component), target).Add(float64(affected))
}
