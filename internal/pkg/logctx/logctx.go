package logctx

import (
	"context"

	"go.uber.org/zap"
)

type correlationKeyType struct{}
type taskKeyType struct{}

var correlationKey = correlationKeyType{}
var taskKey = taskKeyType{}

// WithCorrelationID stores the id used to tie together log lines of one unit of work
func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

func CorrelationID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(correlationKey).(string)
	return s, ok && s != ""
}

// WithTaskID marks the context as belonging to a background task execution
func WithTaskID(ctx context.Context, taskID string) context.Context {
	return context.WithValue(ctx, taskKey, taskID)
}

func TaskID(ctx context.Context) (string, bool) {
	s, ok := ctx.Value(taskKey).(string)
	return s, ok && s != ""
}

// Fields returns the zap fields carried by ctx
func Fields(ctx context.Context) []zap.Field {
	fields := make([]zap.Field, 0, 2)
	if id, ok := CorrelationID(ctx); ok {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if id, ok := TaskID(ctx); ok {
		fields = append(fields, zap.String("task_id", id))
	}
	return fields
}
