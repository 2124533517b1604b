package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Tick runs one dispatcher step: it takes the oldest task of the highest
// non-empty priority, runs its handler to completion and applies the outcome.
// It reports whether a task was processed. A tick that starts while another
// is still in progress returns false immediately.
func (s *Scheduler) Tick(ctx context.Context) (processed bool) {
	if !s.processing.CompareAndSwap(false, true) {
		return false
	}
	defer s.processing.Store(false)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("dispatcher tick panicked", zap.Any("panic", r), zap.Stack("stack"))
			processed = false
		}
	}()
	defer s.refreshGauges()

	task, ok := s.next()
	if !ok {
		return false
	}
	s.execute(ctx, task)
	return true
}

// next pops the next runnable task and marks it running. It returns a copy
// for the handler; the stored record stays under the mutex.
func (s *Scheduler) next() (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	var eligible func(*Task) bool
	if s.cfg.EnforceBackoff {
		eligible = func(t *Task) bool {
			return t.NextRetryAt == nil || !t.NextRetryAt.After(now)
		}
	}

	task := s.queues.popNext(eligible)
	if task == nil {
		return nil, false
	}

	s.metrics.SetQueueResidence(task.Priority, now.Sub(task.enqueuedAt))
	task.Status = StatusRunning
	if task.StartedAt == nil {
		started := now
		task.StartedAt = &started
	}
	return task.Clone(), true
}

func (s *Scheduler) execute(ctx context.Context, task *Task) {
	handler, ok := s.registry.Lookup(task.Type)
	if !ok {
		err := fmt.Errorf("%w: %q", ErrUnregisteredHandler, task.Type)
		s.log.Error("task has no handler", append(taskFields(task), zap.Error(err))...)
		s.finish(ctx, task, nil, err, false)
		return
	}

	s.log.Info("task started", append(taskFields(task), zap.Int("attempt", task.Retries+1))...)
	result, err := s.wrap(handler).Process(ctx, task)
	if err == nil && len(result) > 0 && !json.Valid(result) {
		err = Permanent(ErrInvalidResult)
	}
	s.finish(ctx, task, result, err, !IsPermanent(err))
}

// finish applies a handler outcome to the stored record. A failure consumes a
// retry when retryable is set and the ceiling has not been reached.
func (s *Scheduler) finish(ctx context.Context, ran *Task, result json.RawMessage, err error, retryable bool) {
	attempt := ran.Retries + 1

	s.mu.Lock()
	task, ok := s.tasks[ran.ID]
	if !ok {
		s.mu.Unlock()
		return
	}

	now := s.clock.Now()
	var event EventType
	switch {
	case err == nil:
		task.Status = StatusCompleted
		task.Result = cloneRaw(result)
		task.Error = ""
		task.NextRetryAt = nil
		task.CompletedAt = &now
		event = EventTaskCompleted

	case retryable && task.Retries < task.MaxRetries:
		task.Retries++
		task.Status = StatusRetrying
		task.Error = err.Error()
		nextRetry := now.Add(s.backoff.Delay(task.Retries + 1))
		task.NextRetryAt = &nextRetry
		task.enqueuedAt = now
		s.queues.push(task)
		event = EventTaskRetrying

	default:
		task.Status = StatusFailed
		task.Error = err.Error()
		task.NextRetryAt = nil
		task.CompletedAt = &now
		event = EventTaskFailed
	}
	snapshot := task.Clone()
	s.mu.Unlock()

	var eventErr error
	if err != nil {
		eventErr = &HandlerExecutionError{TaskID: snapshot.ID, Type: snapshot.Type, Attempt: attempt, Err: err}
	}

	fields := append(taskFields(snapshot), zap.Int("attempt", attempt))
	switch event {
	case EventTaskCompleted:
		s.metrics.IncOperation(OpExecute, OutcomeSuccess, snapshot.Type)
		s.metrics.ObserveTaskDuration(snapshot.Type, StatusCompleted, runDuration(snapshot))
		s.log.Info("task completed", append(fields, zap.Duration("duration", runDuration(snapshot)))...)
	case EventTaskRetrying:
		s.metrics.IncOperation(OpExecute, OutcomeRetry, snapshot.Type)
		s.metrics.IncRetry(snapshot.Type)
		s.log.Warn("task failed, will retry", append(fields,
			zap.Error(err),
			zap.Timep("next_retry_at", snapshot.NextRetryAt),
		)...)
	case EventTaskFailed:
		s.metrics.IncOperation(OpExecute, OutcomeError, snapshot.Type)
		s.metrics.ObserveTaskDuration(snapshot.Type, StatusFailed, runDuration(snapshot))
		s.log.Error("task failed", append(fields, zap.Error(err), zap.Bool("permanent", IsPermanent(err)))...)
	}

	s.emit(ctx, event, snapshot, eventErr)
}

func runDuration(t *Task) time.Duration {
	if t.StartedAt == nil || t.CompletedAt == nil {
		return 0
	}
	return t.CompletedAt.Sub(*t.StartedAt)
}
