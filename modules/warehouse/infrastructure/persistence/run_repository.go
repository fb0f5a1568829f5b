package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/run"
	"github.com/sofiapulse/pulse/pkg/composables"
)

// RunRepository writes collector_runs rows. Run records live OUTSIDE the run
// transaction: a rolled-back run must still leave its failure visible, so all
// statements here go straight to the pool.
type RunRepository struct{}

func NewRunRepository() *RunRepository {
	return &RunRepository{}
}

func (r *RunRepository) Start(ctx context.Context, rec run.Record) error {
	pool, err := composables.UsePool(ctx)
	if err != nil {
		return err
	}

	params := "{}"
	if rec.Params != nil {
		b, err := json.Marshal(rec.Params)
		if err != nil {
			return err
		}
		params = string(b)
	}

	_, err = pool.Exec(ctx, `
INSERT INTO sofia.collector_runs (run_id, component, target, mode, params_json, started_at, status)
VALUES ($1, $2, $3, $4, $5::jsonb, $6, $7)
`,
		rec.RunID,
		string(rec.Component),
		rec.Target,
		string(rec.Mode),
		params,
		rec.StartedAt,
		string(run.StatusRunning),
	)
	return err
}

func (r *RunRepository) Finish(ctx context.Context, runID uuid.UUID, status run.Status, processed, failed int64, errMsg string) error {
	pool, err := composables.UsePool(ctx)
	if err != nil {
		return err
	}
	_, err = pool.Exec(ctx, `
UPDATE sofia.collector_runs
SET finished_at = $2, status = $3, items_processed = $4, items_failed = $5, error_message = NULLIF($6, '')
WHERE run_id = $1
`, runID, time.Now().UTC(), string(status), processed, failed, errMsg)
	return err
}

// Find returns one run record, used by operators and tests.
func (r *RunRepository) Find(ctx context.Context, runID uuid.UUID) (*run.Record, error) {
	pool, err := composables.UsePool(ctx)
	if err != nil {
		return nil, err
	}

	var (
		rec        run.Record
		paramsJSON []byte
		errMsg     *string
	)
	err = pool.QueryRow(ctx, `
SELECT run_id, component, target, mode, params_json, started_at, finished_at, status, items_processed, items_failed, error_message
FROM sofia.collector_runs
WHERE run_id = $1
`, runID).Scan(
		&rec.RunID,
		&rec.Component,
		&rec.Target,
		&rec.Mode,
		&paramsJSON,
		&rec.StartedAt,
		&rec.FinishedAt,
		&rec.Status,
		&rec.ItemsProcessed,
		&rec.ItemsFailed,
		&errMsg,
	)
	if err != nil {
		return nil, err
	}
	if len(paramsJSON) > 0 {
		if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
			return nil, err
		}
	}
	if errMsg != nil {
		rec.ErrorMessage = *errMsg
	}
	return &rec, nil
}
