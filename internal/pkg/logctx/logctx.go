package logctx

import (
	"context"

	"go.uber.org/zap"
)

type traceKeyType struct{}
type correlationKeyType struct{}
type taskKeyType struct{}

var (
	traceKey       = traceKeyType{}
	correlationKey = correlationKeyType{}
	taskKey        = taskKeyType{}
)

func WithTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceKey, traceID)
}

func TraceID(ctx context.Context) (string, bool) {
	return stringValue(ctx, traceKey)
}

func WithCorrelationID(ctx context.Context, correlationID string) context.Context {
	return context.WithValue(ctx, correlationKey, correlationID)
}

func CorrelationID(ctx context.Context) (string, bool) {
	return stringValue(ctx, correlationKey)
}

// WithTask records the task a handler is working on
func WithTask(ctx context.Context, taskID, taskType string) context.Context {
	return context.WithValue(ctx, taskKey, [2]string{taskID, taskType})
}

// Task returns the task id and type stored by WithTask
func Task(ctx context.Context) (id, taskType string, ok bool) {
	v, ok := ctx.Value(taskKey).([2]string)
	if !ok {
		return "", "", false
	}
	return v[0], v[1], true
}

// Fields returns zap fields for every identifier carried by ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if id, ok := TraceID(ctx); ok {
		fields = append(fields, zap.String("trace_id", id))
	}
	if id, ok := CorrelationID(ctx); ok {
		fields = append(fields, zap.String("correlation_id", id))
	}
	if id, typ, ok := Task(ctx); ok {
		fields = append(fields, zap.String("task_id", id), zap.String("task_type", typ))
	}
	return fields
}

func stringValue(ctx context.Context, key any) (string, bool) {
	s, ok := ctx.Value(key).(string)
	return s, ok
}
