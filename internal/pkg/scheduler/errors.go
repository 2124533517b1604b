package scheduler

import (
	"errors"
	"fmt"

	"taskdash/internal/pkg/errorsx"
)

var (
	// Task creation errors
	ErrValidation          = errors.New("task validation failed")
	ErrUnregisteredHandler = errors.New("no handler registered for task type")
	ErrInvalidResult       = errors.New("handler returned invalid JSON result")

	// Task operation errors
	ErrNotFound     = errors.New("task not found")
	ErrInvalidState = errors.New("invalid task state")

	// Registration errors
	ErrInvalidHandler = errors.New("handler requires a task type and a non-nil handler")
	ErrUnknownEvent   = errors.New("unknown event type")

	// Scheduler errors
	ErrAlreadyStarted = errors.New("scheduler already started")
	ErrNotStarted     = errors.New("scheduler not started")
)

// HandlerExecutionError describes a failed handler attempt. Listeners receive
// it in Event.Err; it never reaches CreateTask callers.
type HandlerExecutionError struct {
	TaskID  string
	Type    string
	Attempt int
	Err     error
}

func (e *HandlerExecutionError) Error() string {
	return fmt.Sprintf("task %s (%s) attempt %d: %v", e.TaskID, e.Type, e.Attempt, e.Err)
}

func (e *HandlerExecutionError) Unwrap() error {
	return e.Err
}

// Permanent marks a handler error as not worth retrying. The task fails at
// once and records err's own message.
func Permanent(err error) error {
	return errorsx.WrapPermanent(err)
}

// IsPermanent reports whether err was marked with Permanent
func IsPermanent(err error) bool {
	return errorsx.IsPermanent(err)
}
