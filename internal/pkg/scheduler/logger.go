package scheduler

import (
	"leadgen/internal/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// cronLogger adapts the service logger to cron.Logger
type cronLogger struct {
	log *zap.SugaredLogger
}

var _ cron.Logger = (*cronLogger)(nil)

func newCronLogger(log *logger.Logger) *cronLogger {
	return &cronLogger{log: log.Logger.Sugar()}
}

// Info is used by cron for scheduling chatter, kept at debug level
func (l *cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l *cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
