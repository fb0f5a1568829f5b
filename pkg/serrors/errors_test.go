package serrors_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sofiapulse/pulse/pkg/serrors"
)

func TestBaseError(t *testing.T) {
	err := serrors.NewError(serrors.CodeDomainNotFound, "domain nosuch not found")
	require.Equal(t, "DOMAIN_NOT_FOUND: domain nosuch not found", err.Error())
	require.False(t, err.Retryable)

	withField := serrors.NewFieldRequiredError("mode")
	require.Equal(t, serrors.CodeParamMissing, withField.Code)
	require.Equal(t, "mode", withField.Field)
	require.Contains(t, withField.Error(), "field=mode")
}

func TestBaseErrorUnwrap(t *testing.T) {
	cause := errors.New("connection refused")
	err := serrors.NewError(serrors.CodeDBConnectionError, "cannot reach database").
		AsRetryable().
		WithCause(cause)

	require.True(t, err.Retryable)
	require.ErrorIs(t, err, cause)

	var base *serrors.BaseError
	wrapped := fmt.Errorf("run failed: %w", err)
	require.ErrorAs(t, wrapped, &base)
	require.Equal(t, serrors.CodeDBConnectionError, base.Code)
}

func TestNewRegistryError(t *testing.T) {
	err := serrors.NewRegistryError("domains.funding.sources[0].table", "must be schema-qualified")
	require.Equal(t, serrors.CodeRegistryLoadError, err.Code)
	require.Equal(t, "domains.funding.sources[0].table", err.Field)
	require.Contains(t, err.Message, "must be schema-qualified")
}
