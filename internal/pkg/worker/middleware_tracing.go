package worker

import (
	"context"

	"leadgen/internal/pkg/logctx"
)

// TracingMiddleware adds the task id to the context. A correlation id passed in
// the "correlation_id" argument is kept so submissions from a request can be traced.
func TracingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			exec, ok := ExecutionFromContext(ctx)
			if ok {
				ctx = logctx.WithTaskID(ctx, exec.TaskID)
			}

			correlationID := args.String("correlation_id")
			if correlationID == "" {
				correlationID = exec.TaskID
			}
			if correlationID != "" {
				ctx = logctx.WithCorrelationID(ctx, correlationID)
			}

			return next.Execute(ctx, args)
		})
	}
}
