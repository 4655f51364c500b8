package worker

import "context"

// Middleware is a function that wraps a Handler with additional functionality
type Middleware func(Handler) Handler

// Chain combines multiple middlewares into a single middleware
func Chain(middlewares ...Middleware) Middleware {
	return func(handler Handler) Handler {
		// Apply middlewares in reverse order so they execute in the correct order
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// Execution describes the attempt a handler is running for
type Execution struct {
	TaskID     string
	Name       string
	Priority   Priority
	Attempt    int
	RetryCount int
}

type executionKeyType struct{}

var executionKey = executionKeyType{}

func withExecution(ctx context.Context, e Execution) context.Context {
	return context.WithValue(ctx, executionKey, e)
}

// ExecutionFromContext returns the attempt metadata set by the manager
func ExecutionFromContext(ctx context.Context) (Execution, bool) {
	e, ok := ctx.Value(executionKey).(Execution)
	return e, ok
}
