package taskd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"taskdash/internal/pkg/scheduler"
)

// SleepPayload is the payload of the sleep task type
type SleepPayload struct {
	Duration string `json:"duration"`
}

// SleepResult reports how long the sleep handler waited
type SleepResult struct {
	Slept string `json:"slept"`
}

// FailPayload is the payload of the fail task type
type FailPayload struct {
	Message   string `json:"message"`
	Permanent bool   `json:"permanent"`
}

// EchoHandler returns the task payload as its result
func EchoHandler() scheduler.Handler {
	return scheduler.HandlerFunc(func(_ context.Context, task *scheduler.Task) (json.RawMessage, error) {
		return task.Data, nil
	})
}

// SleepHandler waits for the payload duration or until ctx is done
func SleepHandler() scheduler.Handler {
	return scheduler.TypedHandler(func(ctx context.Context, p SleepPayload) (SleepResult, error) {
		d, err := time.ParseDuration(p.Duration)
		if err != nil {
			return SleepResult{}, scheduler.Permanent(fmt.Errorf("sleep: %w", err))
		}
		if d < 0 {
			return SleepResult{}, scheduler.Permanent(fmt.Errorf("sleep: negative duration %s", d))
		}

		timer := time.NewTimer(d)
		defer timer.Stop()
		select {
		case <-timer.C:
			return SleepResult{Slept: d.String()}, nil
		case <-ctx.Done():
			return SleepResult{}, ctx.Err()
		}
	})
}

// FailHandler always fails. A permanent failure skips the retry policy.
func FailHandler() scheduler.Handler {
	return scheduler.TypedHandler(func(_ context.Context, p FailPayload) (struct{}, error) {
		msg := p.Message
		if msg == "" {
			msg = "forced failure"
		}
		err := errors.New(msg)
		if p.Permanent {
			return struct{}{}, scheduler.Permanent(err)
		}
		return struct{}{}, err
	})
}

// RegisterBuiltins registers the echo, sleep and fail task types
func RegisterBuiltins(s *scheduler.Scheduler) error {
	for name, h := range map[string]scheduler.Handler{
		"echo":  EchoHandler(),
		"sleep": SleepHandler(),
		"fail":  FailHandler(),
	} {
		if err := s.RegisterHandler(name, h); err != nil {
			return fmt.Errorf("register %s handler: %w", name, err)
		}
	}
	return nil
}
