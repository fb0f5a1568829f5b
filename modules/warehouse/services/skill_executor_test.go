package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/run"
	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

func TestExecute_MissingRequiredParam(t *testing.T) {
	exec := NewSkillExecutor(nil)

	resp := exec.Execute(context.Background(), "normalize_domain", skill.Request{
		Params: NormalizeParams{Domain: "funding"}, // no mode
	}, serrors.CodeNormalizationError, func(ctx context.Context) (map[string]any, error) {
		t.Fatal("handler must not run on invalid params")
		return nil, nil
	})

	require.False(t, resp.OK)
	require.Len(t, resp.Errors, 1)
	require.Equal(t, serrors.CodeParamMissing, resp.Errors[0].Code)
	require.Equal(t, "mode", resp.Errors[0].Field)
	require.Equal(t, "normalize_domain", resp.Meta.Skill)
	require.NotEmpty(t, resp.Meta.TraceID)
}

func TestExecute_CodedErrorPassesThrough(t *testing.T) {
	exec := NewSkillExecutor(nil)

	resp := exec.Execute(context.Background(), "aggregate", skill.Request{
		TraceID: "trace-42",
		Params:  AggregateParams{Aggregation: "funding_monthly_by_country", Mode: "full"},
	}, serrors.CodeAggregationError, func(ctx context.Context) (map[string]any, error) {
		return nil, serrors.NewError(serrors.CodeAggregationDisabled, "aggregation is disabled")
	})

	require.False(t, resp.OK)
	require.Equal(t, serrors.CodeAggregationDisabled, resp.Errors[0].Code)
	require.Equal(t, "trace-42", resp.Meta.TraceID)
}

func TestExecute_UncodedErrorGetsFallbackCode(t *testing.T) {
	exec := NewSkillExecutor(nil)

	resp := exec.Execute(context.Background(), "normalize_domain", skill.Request{
		Params: NormalizeParams{Domain: "funding", Mode: "full"},
	}, serrors.CodeNormalizationError, func(ctx context.Context) (map[string]any, error) {
		return nil, context.DeadlineExceeded
	})

	require.False(t, resp.OK)
	require.Equal(t, serrors.CodeNormalizationError, resp.Errors[0].Code)
	require.True(t, resp.Errors[0].Retryable)
}

func TestExecute_Success(t *testing.T) {
	exec := NewSkillExecutor(nil)

	resp := exec.Execute(context.Background(), "normalize_domain", skill.Request{
		Params: NormalizeParams{Domain: "funding", Mode: "incremental"},
	}, serrors.CodeNormalizationError, func(ctx context.Context) (map[string]any, error) {
		return map[string]any{"affected": int64(7)}, nil
	})

	require.True(t, resp.OK)
	require.Equal(t, int64(7), resp.Data["affected"])
	require.Empty(t, resp.Errors)
	require.Equal(t, Version, resp.Meta.Version)
}

func TestParseModeAndWindow(t *testing.T) {
	t.Run("date range with both bounds", func(t *testing.T) {
		mode, window, err := parseModeAndWindow("date_range", "2025-03-01", "2025-03-31")
		require.NoError(t, err)
		require.Equal(t, run.ModeDateRange, mode)
		require.Equal(t, time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), window.Since)
		require.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), window.UpperBound())
	})

	t.Run("date range without bounds", func(t *testing.T) {
		_, _, err := parseModeAndWindow("date_range", "", "")
		requireCode(t, err, serrors.CodeParamMissing)
	})

	t.Run("bounds outside date range mode", func(t *testing.T) {
		_, _, err := parseModeAndWindow("full", "2025-03-01", "")
		requireCode(t, err, serrors.CodeParamInvalid)
	})

	t.Run("inverted bounds", func(t *testing.T) {
		_, _, err := parseModeAndWindow("date_range", "2025-03-31", "2025-03-01")
		requireCode(t, err, serrors.CodeParamInvalid)
	})

	t.Run("malformed date", func(t *testing.T) {
		_, _, err := parseModeAndWindow("date_range", "03/01/2025", "")
		requireCode(t, err, serrors.CodeParamInvalid)
	})

	t.Run("unknown mode", func(t *testing.T) {
		_, _, err := parseModeAndWindow("weekly", "", "")
		requireCode(t, err, serrors.CodeParamInvalid)
	})
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	var serr *serrors.BaseError
	require.ErrorAs(t, err, &serr)
	require.Equal(t, code, serr.Code)
}

func TestSnakeCase(t *testing.T) {
	require.Equal(t, "source_filter", snakeCase("SourceFilter"))
	require.Equal(t, "mode", snakeCase("Mode"))
	require.Equal(t, "dry_run", snakeCase("DryRun"))
}
