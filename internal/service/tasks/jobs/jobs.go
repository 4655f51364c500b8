package jobs

import (
	"fmt"
	"reflect"
	"strconv"

	"leadgen/internal/pkg/errorsx"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/worker"

	"go.uber.org/zap"
)

// Task names registered by this service
const (
	NameB2BExport        = "b2b_export"
	NameArchivePurge     = "archive_purge"
	NameAnalyticsRefresh = "analytics_refresh"
)

// Job is a handler that knows its registry name
type Job interface {
	worker.Handler
	Name() string
}

// Registrar accepts named handlers. *worker.Manager satisfies it.
type Registrar interface {
	Register(name string, h worker.Handler) error
}

// Register installs jobs under their names. Nil jobs are skipped so optional
// dependencies (no archive database, no export endpoint) simply omit a kind.
func Register(r Registrar, log *logger.Logger, jobs ...Job) error {
	for _, j := range jobs {
		if isNil(j) {
			continue
		}
		if err := r.Register(j.Name(), j); err != nil {
			return fmt.Errorf("register %s: %w", j.Name(), err)
		}
		log.Info("Task handler registered", zap.String("task_name", j.Name()))
	}
	return nil
}

// isNil catches typed nil pointers from constructors that opt out
func isNil(j Job) bool {
	if j == nil {
		return true
	}
	v := reflect.ValueOf(j)
	return v.Kind() == reflect.Ptr && v.IsNil()
}

// intArg reads a non-negative integer argument that may arrive as a Go int,
// a JSON number or a string. Malformed values are permanent failures.
func intArg(args worker.Args, key string, def int) (int, error) {
	raw, ok := args[key]
	if !ok || raw == nil {
		return def, nil
	}
	var n int
	switch v := raw.(type) {
	case int:
		n = v
	case int64:
		n = int(v)
	case float64:
		if v != float64(int(v)) {
			return 0, errorsx.WrapPermanent(fmt.Errorf("argument %s must be an integer, got %v", key, v))
		}
		n = int(v)
	case string:
		parsed, err := strconv.Atoi(v)
		if err != nil {
			return 0, errorsx.WrapPermanent(fmt.Errorf("argument %s must be an integer: %w", key, err))
		}
		n = parsed
	default:
		return 0, errorsx.WrapPermanent(fmt.Errorf("argument %s has unsupported type %T", key, raw))
	}
	if n < 0 {
		return 0, errorsx.WrapPermanent(fmt.Errorf("argument %s must be non-negative, got %d", key, n))
	}
	return n, nil
}
