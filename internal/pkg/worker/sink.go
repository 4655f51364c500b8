package worker

import (
	"context"
	"errors"
	"sort"

	"leadgen/internal/pkg/logger"

	"go.uber.org/zap"
)

// Sink receives a metrics snapshot every metrics cycle
type Sink interface {
	Publish(ctx context.Context, snapshot MetricsSnapshot) error
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(ctx context.Context, snapshot MetricsSnapshot) error

func (f SinkFunc) Publish(ctx context.Context, snapshot MetricsSnapshot) error {
	return f(ctx, snapshot)
}

// LogSink writes the flattened snapshot as one structured log line
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(_ context.Context, snapshot MetricsSnapshot) error {
	flat := snapshot.Flatten()
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]zap.Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, zap.Any(k, flat[k]))
	}
	s.log.Info("Background task metrics", fields...)
	return nil
}

// MultiSink publishes to every sink and joins their errors
type MultiSink []Sink

func (m MultiSink) Publish(ctx context.Context, snapshot MetricsSnapshot) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, snapshot); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Archiver stores terminal task records before maintenance evicts them
type Archiver interface {
	Archive(ctx context.Context, tasks []TaskInfo) error
}

// NopArchiver drops evicted records
type NopArchiver struct{}

func (NopArchiver) Archive(context.Context, []TaskInfo) error { return nil }
