package tracking

import (
	"context"
	"log/slog"

	"github.com/archielabs/archie/domain/task"
)

// LoggingReporter logs status changes.
type LoggingReporter struct {
	logger *slog.Logger
}

// NewLoggingReporter creates a LoggingReporter.
func NewLoggingReporter(logger *slog.Logger) *LoggingReporter {
	return &LoggingReporter{logger: logger}
}

// OnChange logs the change, at error level for failures.
func (r *LoggingReporter) OnChange(_ context.Context, status task.Status) error {
	state := status.State()

	if state == task.ReportingStateFailed {
		r.logger.Error(status.Operation().String(),
			slog.String("state", string(state)),
			slog.Float64("completion_percent", status.CompletionPercent()),
			slog.String("error", status.Error()),
		)
		return nil
	}

	r.logger.Info(status.Operation().String(),
		slog.String("state", string(state)),
		slog.Float64("completion_percent", status.CompletionPercent()),
	)
	return nil
}
