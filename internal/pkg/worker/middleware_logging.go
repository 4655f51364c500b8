package worker

import (
	"context"
	"time"

	"leadgen/internal/pkg/logctx"
	"leadgen/internal/pkg/logger"

	"go.uber.org/zap"
)

// LoggingMiddleware creates a middleware that logs handler execution
func LoggingMiddleware(log *logger.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			exec, _ := ExecutionFromContext(ctx)
			taskLog := log.With(
				zap.String("task_name", exec.Name),
				zap.Int("attempt", exec.Attempt),
				zap.Int("retry", exec.RetryCount),
			).With(logctx.Fields(ctx)...)

			taskLog.Debug("Task handler started")
			start := time.Now()

			result, err := next.Execute(ctx, args)

			taskLog = taskLog.With(zap.Duration("duration", time.Since(start)))
			if err != nil {
				taskLog.Warn("Task handler returned error", zap.Error(err))
			} else {
				taskLog.Debug("Task handler finished")
			}

			return result, err
		})
	}
}
