package scheduler

import "go.uber.org/zap"

// Logger defines the logging interface for the scheduler.
// Both *zap.Logger and *logger.Logger satisfy it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// NewNopLogger returns a logger that does nothing.
func NewNopLogger() Logger {
	return zap.NewNop()
}

func taskFields(t *Task) []zap.Field {
	return []zap.Field{
		zap.String("task_id", t.ID),
		zap.String("task_type", t.Type),
		zap.Stringer("priority", t.Priority),
		zap.Int("retries", t.Retries),
	}
}
