package scheduler

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Priority orders tasks in the dispatcher. Higher values run first.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

const numPriorities = int(PriorityCritical) + 1

var priorityNames = [numPriorities]string{"low", "medium", "high", "critical"}

// Priorities lists every priority from highest to lowest
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow}
}

func (p Priority) Valid() bool {
	return p >= PriorityLow && p <= PriorityCritical
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority accepts a priority name in any case
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return Priority(i), nil
		}
	}
	return 0, fmt.Errorf("%w: unknown priority %q", ErrValidation, s)
}

func (p Priority) MarshalText() ([]byte, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("invalid priority %d", int(p))
	}
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is the lifecycle state of a task
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusRetrying  Status = "retrying"
)

// Statuses lists every status
func Statuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled, StatusRetrying}
}

// IsTerminal reports whether no further transition is possible
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

func (s Status) Valid() bool {
	for _, v := range Statuses() {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus validates a status name
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(s))
	if !st.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrValidation, s)
	}
	return st, nil
}

// Task is a unit of work tracked by the scheduler.
type Task struct {
	ID          string          `json:"id" validate:"required,max=128"`
	Name        string          `json:"name" validate:"required"`
	Type        string          `json:"type" validate:"required,max=128"`
	Status      Status          `json:"status" validate:"required,oneof=pending running completed failed cancelled retrying"`
	Priority    Priority        `json:"priority" validate:"gte=0,lte=3"`
	Data        json.RawMessage `json:"data,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at" validate:"required"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
	Retries     int             `json:"retries" validate:"gte=0,ltefield=MaxRetries"`
	MaxRetries  int             `json:"max_retries" validate:"gte=0,lte=100"`
	NextRetryAt *time.Time      `json:"next_retry_at,omitempty"`

	// when the task last entered its queue
	enqueuedAt time.Time
}

// Clone returns a deep copy of the task
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	c := *t
	c.Data = cloneRaw(t.Data)
	c.Result = cloneRaw(t.Result)
	c.StartedAt = cloneTime(t.StartedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	c.NextRetryAt = cloneTime(t.NextRetryAt)
	return &c
}

// Decode unmarshals the payload into v
func (t *Task) Decode(v any) error {
	if len(t.Data) == 0 {
		return nil
	}
	return json.Unmarshal(t.Data, v)
}

func cloneRaw(b json.RawMessage) json.RawMessage {
	if b == nil {
		return nil
	}
	out := make(json.RawMessage, len(b))
	copy(out, b)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// encodePayload turns caller data into the stored JSON payload.
// Raw JSON is kept verbatim after a validity check; empty raw input means
// no payload.
func encodePayload(data any) (json.RawMessage, error) {
	switch v := data.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		if len(v) == 0 {
			return nil, nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return cloneRaw(v), nil
	case []byte:
		if len(v) == 0 {
			return nil, nil
		}
		if !json.Valid(v) {
			return nil, fmt.Errorf("payload is not valid JSON")
		}
		return cloneRaw(v), nil
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
}

type taskOptions struct {
	priority   Priority
	maxRetries int
}

// TaskOption customizes CreateTask
type TaskOption func(*taskOptions)

// WithPriority sets the task priority (default medium)
func WithPriority(p Priority) TaskOption {
	return func(o *taskOptions) { o.priority = p }
}

// WithMaxRetries sets the retry ceiling (default Config.DefaultMaxRetries)
func WithMaxRetries(n int) TaskOption {
	return func(o *taskOptions) { o.maxRetries = n }
}
