package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taskdash/internal/pkg/retry"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scheduler owns the task store, the priority queues and the background
// dispatcher and sweeper loops.
type Scheduler struct {
	cfg      Config
	log      Logger
	metrics  MetricsCollector
	clock    clockwork.Clock
	newID    func() string
	validate *validator.Validate
	backoff  retry.Policy

	registry *Registry
	bus      *EventBus

	// guards tasks and queues
	mu     sync.Mutex
	tasks  map[string]*Task
	queues *priorityQueues

	mwMu       sync.RWMutex
	middleware []Middleware

	processing atomic.Bool

	lifecycleMu sync.Mutex
	cancel      context.CancelFunc
	group       *errgroup.Group
}

// Option configures a Scheduler
type Option func(*Scheduler)

// WithClock replaces the wall clock, typically with clockwork.NewFakeClock()
func WithClock(c clockwork.Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithIDGenerator replaces uuid.NewString as the source of task ids. Ids must
// be unique for the lifetime of the scheduler.
func WithIDGenerator(fn func() string) Option {
	return func(s *Scheduler) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// WithMiddleware appends handler middleware
func WithMiddleware(mw ...Middleware) Option {
	return func(s *Scheduler) { s.middleware = append(s.middleware, mw...) }
}

// New creates a scheduler. A nil logger or metrics collector is replaced by a no-op.
func New(cfg Config, log Logger, metrics MetricsCollector, opts ...Option) (*Scheduler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = NewNopLogger()
	}
	if metrics == nil {
		metrics = NoOpMetrics{}
	}

	s := &Scheduler{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		clock:    clockwork.NewRealClock(),
		newID:    uuid.NewString,
		validate: validator.New(),
		backoff:  retry.Policy{BaseDelay: cfg.BackoffBase},
		registry: NewRegistry(log),
		bus:      NewEventBus(log),
		tasks:    make(map[string]*Task),
		queues:   newPriorityQueues(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.log.Info("scheduler initialized",
		zap.Duration("worker_interval", cfg.WorkerInterval),
		zap.Duration("cleanup_interval", cfg.CleanupInterval),
		zap.Int("default_max_retries", cfg.DefaultMaxRetries),
		zap.Duration("retention", cfg.Retention),
		zap.Bool("enforce_backoff", cfg.EnforceBackoff),
	)
	s.refreshGauges()
	return s, nil
}

// Config returns the configuration the scheduler was built with
func (s *Scheduler) Config() Config {
	return s.cfg
}

// Registry exposes the handler registry
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// RegisterHandler registers h for taskType
func (s *Scheduler) RegisterHandler(taskType string, h Handler) error {
	return s.registry.Register(taskType, h)
}

// Use appends handler middleware. It applies to tasks started afterwards.
func (s *Scheduler) Use(mw ...Middleware) {
	s.mwMu.Lock()
	defer s.mwMu.Unlock()
	s.middleware = append(s.middleware, mw...)
}

// wrap applies recovery and tracing outermost and the timeout innermost
func (s *Scheduler) wrap(h Handler) Handler {
	s.mwMu.RLock()
	chain := make([]Middleware, 0, len(s.middleware)+3)
	chain = append(chain, RecoveryMiddleware(s.log), TracingMiddleware())
	chain = append(chain, s.middleware...)
	s.mwMu.RUnlock()

	chain = append(chain, TimeoutMiddleware(s.cfg.HandlerTimeout, s.log))
	return Chain(chain...)(h)
}

// On registers a lifecycle listener
func (s *Scheduler) On(event EventType, l Listener) (Subscription, error) {
	return s.bus.On(event, l)
}

// Off removes a lifecycle listener
func (s *Scheduler) Off(sub Subscription) bool {
	return s.bus.Off(sub)
}

// CreateTask validates and enqueues a new task
func (s *Scheduler) CreateTask(ctx context.Context, taskType string, data any, opts ...TaskOption) (*Task, error) {
	o := taskOptions{priority: PriorityMedium, maxRetries: s.cfg.DefaultMaxRetries}
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := s.registry.Lookup(taskType); !ok {
		s.metrics.IncOperation(OpCreate, OutcomeError, taskType)
		s.log.Warn("task rejected: no handler", zap.String("task_type", taskType))
		return nil, fmt.Errorf("%w: %q", ErrUnregisteredHandler, taskType)
	}

	payload, err := encodePayload(data)
	if err != nil {
		s.metrics.IncOperation(OpCreate, OutcomeError, taskType)
		return nil, fmt.Errorf("%w: data: %v", ErrValidation, err)
	}

	now := s.clock.Now()
	task := &Task{
		ID:         s.newID(),
		Name:       fmt.Sprintf("%s-%d", taskType, now.UnixMilli()),
		Type:       taskType,
		Status:     StatusPending,
		Priority:   o.priority,
		Data:       payload,
		CreatedAt:  now,
		MaxRetries: o.maxRetries,
		enqueuedAt: now,
	}
	if err := s.validate.Struct(task); err != nil {
		s.metrics.IncOperation(OpCreate, OutcomeError, taskType)
		s.log.Warn("task rejected: invalid", zap.String("task_type", taskType), zap.Error(err))
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	s.mu.Lock()
	s.tasks[task.ID] = task
	s.queues.push(task)
	snapshot := task.Clone()
	s.mu.Unlock()

	s.metrics.IncOperation(OpCreate, OutcomeSuccess, taskType)
	s.log.Info("task created", append(taskFields(snapshot), zap.Int("max_retries", snapshot.MaxRetries))...)
	s.emit(ctx, EventTaskCreated, snapshot, nil)
	s.refreshGauges()
	return snapshot, nil
}

// CancelTask cancels a pending or retrying task
func (s *Scheduler) CancelTask(ctx context.Context, id string) error {
	s.mu.Lock()
	task, ok := s.tasks[id]
	if !ok {
		s.mu.Unlock()
		s.metrics.IncOperation(OpCancel, OutcomeError, "")
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if task.Status == StatusRunning || task.Status.IsTerminal() {
		status := task.Status
		s.mu.Unlock()
		s.metrics.IncOperation(OpCancel, OutcomeError, task.Type)
		return fmt.Errorf("%w: task %s is %s", ErrInvalidState, id, status)
	}

	now := s.clock.Now()
	task.Status = StatusCancelled
	task.CompletedAt = &now
	s.queues.remove(id)
	snapshot := task.Clone()
	s.mu.Unlock()

	s.metrics.IncOperation(OpCancel, OutcomeSuccess, snapshot.Type)
	s.log.Info("task cancelled", taskFields(snapshot)...)
	s.emit(ctx, EventTaskCancelled, snapshot, nil)
	s.refreshGauges()
	return nil
}

// GetTask returns a copy of the task
func (s *Scheduler) GetTask(id string) (*Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// GetTasks returns copies of the tasks in any of the given statuses, or of
// every task when none are given, ordered by creation time.
func (s *Scheduler) GetTasks(statuses ...Status) []*Task {
	want := make(map[Status]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}

	s.mu.Lock()
	out := make([]*Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		if len(want) == 0 || want[t.Status] {
			out = append(out, t.Clone())
		}
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Stats is a point-in-time summary used by health checks and the API
type Stats struct {
	Running    bool             `json:"running"`
	Total      int              `json:"total"`
	Queued     int              `json:"queued"`
	QueueSizes map[Priority]int `json:"queue_sizes"`
	ByStatus   map[Status]int   `json:"by_status"`
}

// Stats returns queue sizes and task counts by status
func (s *Scheduler) Stats() Stats {
	st := s.snapshotStats()
	st.Running = s.IsRunning()
	return st
}

func (s *Scheduler) snapshotStats() Stats {
	st := Stats{
		QueueSizes: make(map[Priority]int, numPriorities),
		ByStatus:   make(map[Status]int, len(Statuses())),
	}
	for _, status := range Statuses() {
		st.ByStatus[status] = 0
	}

	s.mu.Lock()
	for _, p := range Priorities() {
		st.QueueSizes[p] = s.queues.len(p)
	}
	st.Queued = s.queues.total()
	st.Total = len(s.tasks)
	for _, t := range s.tasks {
		st.ByStatus[t.Status]++
	}
	s.mu.Unlock()
	return st
}

func (s *Scheduler) refreshGauges() {
	st := s.snapshotStats()
	for p, n := range st.QueueSizes {
		s.metrics.SetQueueSize(p, n)
	}
	for status, n := range st.ByStatus {
		s.metrics.SetTasksByStatus(status, n)
	}
}

func (s *Scheduler) emit(ctx context.Context, typ EventType, task *Task, err error) {
	s.bus.Emit(ctx, Event{Type: typ, Task: task, Err: err, Time: s.clock.Now()})
}

// Start launches the dispatcher and sweeper loops. They keep running until
// Stop; ctx only contributes its values.
func (s *Scheduler) Start(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.cancel != nil {
		return ErrAlreadyStarted
	}

	// Stop ends the loops through loopCtx; ticks and sweeps get workCtx so a
	// running handler is never cancelled by shutdown.
	workCtx := context.WithoutCancel(ctx)
	loopCtx, cancel := context.WithCancel(workCtx)
	group, groupCtx := errgroup.WithContext(loopCtx)
	group.Go(func() error {
		return s.loop(groupCtx, s.cfg.WorkerInterval, func() { s.Tick(workCtx) })
	})
	group.Go(func() error {
		return s.loop(groupCtx, s.cfg.CleanupInterval, func() { s.Sweep(workCtx) })
	})

	s.cancel = cancel
	s.group = group
	s.log.Info("scheduler started", zap.Strings("task_types", s.registry.Types()))
	return nil
}

// Stop stops both loops and waits for an in-flight tick to finish, or for
// ctx to expire. The running handler keeps its context and completes
// normally.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.lifecycleMu.Lock()
	if s.cancel == nil {
		s.lifecycleMu.Unlock()
		return ErrNotStarted
	}
	s.cancel()
	group := s.group
	s.cancel, s.group = nil, nil
	s.lifecycleMu.Unlock()

	s.log.Info("stopping scheduler")

	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	select {
	case err := <-done:
		s.log.Info("scheduler stopped gracefully")
		return err
	case <-ctx.Done():
		s.log.Warn("scheduler stop timeout")
		return ctx.Err()
	}
}

// IsRunning reports whether the loops have been started and not stopped
func (s *Scheduler) IsRunning() bool {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()
	return s.cancel != nil
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, fn func()) error {
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.Chan():
			fn()
		}
	}
}
