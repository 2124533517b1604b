package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	"taskdash/internal/pkg/logctx"

	"go.uber.org/zap"
)

// Middleware is a function that wraps a Handler with additional functionality
type Middleware func(Handler) Handler

// Chain combines multiple middlewares into a single middleware.
// The first middleware is the outermost.
func Chain(middlewares ...Middleware) Middleware {
	return func(handler Handler) Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			handler = middlewares[i](handler)
		}
		return handler
	}
}

// RecoveryMiddleware turns a handler panic into an error
func RecoveryMiddleware(log Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (res json.RawMessage, err error) {
			defer func() {
				if r := recover(); r != nil {
					log.Error("task handler panicked",
						zap.String("task_id", task.ID),
						zap.String("task_type", task.Type),
						zap.Any("panic", r),
						zap.String("stack", string(debug.Stack())),
					)
					res, err = nil, fmt.Errorf("panic recovered: %v", r)
				}
			}()

			return next.Process(ctx, task)
		})
	}
}

// LoggingMiddleware logs every handler invocation with its duration
func LoggingMiddleware(log Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (json.RawMessage, error) {
			fields := taskFields(task)
			log.Debug("task handler started", fields...)

			start := time.Now()
			res, err := next.Process(ctx, task)
			fields = append(fields, zap.Duration("duration", time.Since(start)))

			if err != nil {
				log.Debug("task handler returned error", append(fields, zap.Error(err))...)
			} else {
				log.Debug("task handler finished", fields...)
			}
			return res, err
		})
	}
}

// TracingMiddleware puts the task identity into the handler context.
// The task id doubles as correlation id unless one is already set.
func TracingMiddleware() Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, task *Task) (json.RawMessage, error) {
			if _, ok := logctx.CorrelationID(ctx); !ok {
				ctx = logctx.WithCorrelationID(ctx, task.ID)
			}
			ctx = logctx.WithTask(ctx, task.ID, task.Type)
			return next.Process(ctx, task)
		})
	}
}

// TimeoutMiddleware bounds handler execution. A handler that ignores its
// context is abandoned once the deadline passes and the attempt fails.
func TimeoutMiddleware(timeout time.Duration, log Logger) Middleware {
	return func(next Handler) Handler {
		if timeout <= 0 {
			return next
		}
		return HandlerFunc(func(ctx context.Context, task *Task) (json.RawMessage, error) {
			timeoutCtx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			type outcome struct {
				res json.RawMessage
				err error
			}
			done := make(chan outcome, 1)
			go func() {
				defer func() {
					if r := recover(); r != nil {
						done <- outcome{err: fmt.Errorf("panic recovered: %v", r)}
					}
				}()
				res, err := next.Process(timeoutCtx, task)
				done <- outcome{res: res, err: err}
			}()

			select {
			case o := <-done:
				return o.res, o.err
			case <-timeoutCtx.Done():
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				log.Error("task handler timed out",
					zap.String("task_id", task.ID),
					zap.String("task_type", task.Type),
					zap.Duration("timeout", timeout),
				)
				return nil, fmt.Errorf("handler timed out after %s: %w", timeout, context.DeadlineExceeded)
			}
		})
	}
}
