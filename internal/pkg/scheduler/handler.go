package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler defines the interface for processing tasks
type Handler interface {
	// Process executes the task logic and returns its JSON result
	Process(ctx context.Context, task *Task) (json.RawMessage, error)
}

// HandlerFunc is a function adapter that implements the Handler interface
type HandlerFunc func(ctx context.Context, task *Task) (json.RawMessage, error)

// Process implements the Handler interface
func (f HandlerFunc) Process(ctx context.Context, task *Task) (json.RawMessage, error) {
	return f(ctx, task)
}

// TypedHandler adapts a function over a decoded payload. A payload that does
// not decode into P, or a result that does not encode, fails the task
// permanently.
func TypedHandler[P, R any](fn func(ctx context.Context, payload P) (R, error)) Handler {
	return HandlerFunc(func(ctx context.Context, task *Task) (json.RawMessage, error) {
		var payload P
		if err := task.Decode(&payload); err != nil {
			return nil, Permanent(fmt.Errorf("decode %s payload: %w", task.Type, err))
		}

		res, err := fn(ctx, payload)
		if err != nil {
			return nil, err
		}

		out, err := json.Marshal(res)
		if err != nil {
			return nil, Permanent(fmt.Errorf("encode %s result: %w", task.Type, err))
		}
		return out, nil
	})
}

// Registry maps task types to handlers
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
	log      Logger
}

// NewRegistry creates an empty registry
func NewRegistry(log Logger) *Registry {
	if log == nil {
		log = NewNopLogger()
	}
	return &Registry{
		handlers: make(map[string]Handler),
		log:      log,
	}
}

// Register stores h for taskType. Registering a type twice replaces the
// earlier handler and logs a warning.
func (r *Registry) Register(taskType string, h Handler) error {
	if taskType == "" || h == nil {
		return ErrInvalidHandler
	}

	r.mu.Lock()
	_, exists := r.handlers[taskType]
	r.handlers[taskType] = h
	r.mu.Unlock()

	if exists {
		r.log.Warn("handler overwritten", zap.String("task_type", taskType))
	} else {
		r.log.Debug("handler registered", zap.String("task_type", taskType))
	}
	return nil
}

// Unregister removes the handler for taskType
func (r *Registry) Unregister(taskType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.handlers[taskType]; !ok {
		return false
	}
	delete(r.handlers, taskType)
	return true
}

// Lookup returns the handler for taskType
func (r *Registry) Lookup(taskType string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, ok := r.handlers[taskType]
	return h, ok
}

// Types returns the registered task types in sorted order
func (r *Registry) Types() []string {
	r.mu.RLock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	r.mu.RUnlock()

	sort.Strings(types)
	return types
}
