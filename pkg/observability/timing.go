package observability

import (
	"context"
	"log/slog"
	"time"
)

// Outcome tag values for MetricOperations.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// TimeOperationResult runs fn and records how it went: one count and one
// timing under operation, tagged with its outcome, plus a log record at info
// on success or error on failure. logger and metrics may be nil.
func TimeOperationResult[T any](ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() (T, error)) (T, error) {
	start := time.Now()
	result, err := fn()
	recordOperation(ctx, logger, metrics, operation, time.Since(start), err)
	return result, err
}

// TimeOperation is TimeOperationResult for functions with no result.
func TimeOperation(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, fn func() error) error {
	_, err := TimeOperationResult(ctx, logger, metrics, operation, func() (struct{}, error) {
		return struct{}{}, fn()
	})
	return err
}

func recordOperation(ctx context.Context, logger *slog.Logger, metrics Metrics, operation string, elapsed time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}

	if metrics != nil {
		tags := []Tag{T(OperationKey, operation), T(OutcomeKey, outcome)}
		metrics.Counter(MetricOperations, 1, tags...)
		metrics.Timing(MetricOperationDuration, elapsed, tags...)
	}

	if logger == nil {
		return
	}
	if err != nil {
		logger.ErrorContext(ctx, operation+" failed", DurationKey, elapsed.Milliseconds(), ErrorKey, err.Error())
		return
	}
	logger.InfoContext(ctx, operation+" completed", DurationKey, elapsed.Milliseconds())
}
