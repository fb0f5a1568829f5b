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
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// AggregateParams are the caller-supplied parameters of one aggregation run.
type AggregateParams struct {
	Aggregation string `validate:"required"`
	Mode        string `validate:"required"`
	Since       string
	Until       string
	DryRun      bool
}

// AggregateResult is the Data payload of a successful aggregation run.
// Queries is populated only on dry runs.
type AggregateResult struct {
	RunID       uuid.UUID `json:"run_id"`
	Aggregation string    `json:"aggregation"`
	Mode        run.Mode  `json:"mode"`
	DryRun      bool      `json:"dry_run"`
	SourceRows  int64     `json:"source_rows"`
	Affected    int64     `json:"affected"`
	Queries     []string  `json:"queries,omitempty"`
}

// AggregatorService rebuilds aggregate tables from canonical ones. Like the
// normalizer it is pure SQL movement: one transaction per run, statements
// built from the registry.
type AggregatorService struct {
	registry  *RegistryService
	runs      *persistence.RunRepository
	publisher eventbus.EventBus
}

func NewAggregatorService(reg *RegistryService, runs *persistence.RunRepository, publisher eventbus.EventBus) *AggregatorService {
	return &AggregatorService{registry: reg, runs: runs, publisher: publisher}
}

// Run executes one aggregation run. Affected counts the rows written by the
// insert; for replace strategies the preceding delete is bookkeeping, not
// part of the reported count.
func (s *AggregatorService) Run(ctx context.Context, params AggregateParams) (*AggregateResult, error) {
	reg, err := s.registry.Current(ctx)
	if err != nil {
		return nil, err
	}

	agg, err := reg.Aggregation(params.Aggregation)
	if err != nil {
		return nil, err
	}
	if !agg.Enabled {
		return nil, serrors.NewError(serrors.CodeAggregationDisabled,
			"aggregation "+params.Aggregation+" is disabled in the registry")
	}

	mode, window, err := parseModeAndWindow(params.Mode, params.Since, params.Until)
	if err != nil {
		return nil, err
	}

	plan, err := buildAggregationPlan(agg, mode, window)
	if err != nil {
		return nil, err
	}

	result := &AggregateResult{
		RunID:       uuid.New(),
		Aggregation: params.Aggregation,
		Mode:        mode,
		DryRun:      params.DryRun,
	}
	if params.DryRun {
		for _, stmt := range plan.Statements() {
			result.Queries = append(result.Queries, stmt.SQL)
		}
	}

	if !params.DryRun {
		if err := s.runs.Start(ctx, run.Record{
			RunID:     result.RunID,
			Component: run.ComponentAggregator,
			Target:    params.Aggregation,
			Mode:      mode,
			Params:    runParams(params.Since, params.Until, ""),
			StartedAt: time.Now().UTC(),
		}); err != nil {
			return nil, dbError(err)
		}
	}

	s.publisher.Publish(run.Started{
		RunID:     result.RunID,
		Component: run.ComponentAggregator,
		Target:    params.Aggregation,
		Mode:      mode,
		DryRun:    params.DryRun,
	})

	started := time.Now()
	runErr := inRunTx(ctx, params.DryRun, func(txCtx context.Context) error {
		tx, err := composables.UseTx(txCtx)
		if err != nil {
			return err
		}
		if err := tx.QueryRow(txCtx, plan.CountSQL, plan.CountArgs...).Scan(&result.SourceRows); err != nil {
			return aggregationError(params.Aggregation, err)
		}
		for _, stmt := range plan.Statements() {
			tag, err := tx.Exec(txCtx, stmt.SQL, stmt.Args...)
			if err != nil {
				return aggregationError(params.Aggregation, err)
			}
			result.Affected = tag.RowsAffected()
		}
		return nil
	})
	duration := time.Since(started)

	status := run.StatusCommitted
	if runErr != nil {
		status = run.StatusRolledBack
		result.Affected = 0
		result.SourceRows = 0
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
		Component: run.ComponentAggregator,
		Target:    params.Aggregation,
		Mode:      mode,
		DryRun:    params.DryRun,
		Status:    status,
		Affected:  result.Affected,
		Duration:  duration,
		Err:       runErr,
	})
	observeRun(run.ComponentAggregator, params.Aggregation, status, duration, result.Affected)

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

func aggregationError(target string, err error) error {
	return serrors.NewError(serrors.CodeAggregationError,
		"aggregation "+target+": "+err.Error()).AsRetryable().WithCause(err)
}
