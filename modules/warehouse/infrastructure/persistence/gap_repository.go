package persistence

import (
	"context"
	"encoding/json"

	"github.com/sofiapulse/pulse/pkg/composables"
)

// GapRepository appends to normalization_gaps, the remediation log for
// resolver misses. Gaps are advisory; writing one never fails a run except on
// a database error, and repeats of the same (level, raw_value) are no-ops.
type GapRepository struct{}

func NewGapRepository() *GapRepository {
	return &GapRepository{}
}

func (r *GapRepository) Insert(ctx context.Context, level, rawValue string, details map[string]any) error {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return err
	}

	ctxJSON := "{}"
	if details != nil {
		b, err := json.Marshal(details)
		if err != nil {
			return err
		}
		ctxJSON = string(b)
	}

	_, err = tx.Exec(ctx, `
INSERT INTO sofia.normalization_gaps (level, raw_value, context_json)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (level, raw_value) DO NOTHING
`, level, rawValue, ctxJSON)
	return err
}
