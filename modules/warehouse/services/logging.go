package services

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/pkg/constants"
)

func loggerFromContext(ctx context.Context) *logrus.Logger {
	logger, ok := ctx.Value(constants.LoggerKey).(*logrus.Logger)
	if !ok {
		return nil
	}
	return logger
}

func logEntry(ctx context.Context, fields logrus.Fields) *logrus.Entry {
	logger := loggerFromContext(ctx)
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if trace, ok := ctx.Value(constants.TraceKey).(string); ok && trace != "" {
		fields["trace_id"] = trace
	}
	return logger.WithFields(fields)
}
