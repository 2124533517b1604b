package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

type recordingMetrics struct {
	mu        sync.Mutex
	ops       map[string]int
	retries   map[string]int
	durations map[string][]time.Duration
	residence []time.Duration
	queue     map[Priority]int
	status    map[Status]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{
		ops:       make(map[string]int),
		retries:   make(map[string]int),
		durations: make(map[string][]time.Duration),
		queue:     make(map[Priority]int),
		status:    make(map[Status]int),
	}
}

func (m *recordingMetrics) SetQueueSize(p Priority, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue[p] = n
}

func (m *recordingMetrics) SetTasksByStatus(s Status, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status[s] = n
}

func (m *recordingMetrics) IncOperation(op, outcome, taskType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ops[fmt.Sprintf("%s/%s/%s", op, outcome, taskType)]++
}

func (m *recordingMetrics) IncRetry(taskType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.retries[taskType]++
}

func (m *recordingMetrics) ObserveTaskDuration(taskType string, s Status, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := taskType + "/" + string(s)
	m.durations[key] = append(m.durations[key], d)
}

func (m *recordingMetrics) SetQueueResidence(_ Priority, age time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.residence = append(m.residence, age)
}

func (m *recordingMetrics) op(op, outcome, taskType string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ops[fmt.Sprintf("%s/%s/%s", op, outcome, taskType)]
}

func (m *recordingMetrics) statusGauge(s Status) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status[s]
}

func (m *recordingMetrics) queueGauge(p Priority) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.queue[p]
}

type harness struct {
	s       *Scheduler
	clock   clockwork.FakeClock
	metrics *recordingMetrics
	logs    *observer.ObservedLogs
}

func newHarness(t *testing.T, mutate ...func(*Config)) *harness {
	t.Helper()

	cfg := DefaultConfig()
	for _, m := range mutate {
		m(&cfg)
	}

	core, logs := observer.New(zap.DebugLevel)
	clock := clockwork.NewFakeClockAt(epoch)
	metrics := newRecordingMetrics()

	s, err := New(cfg, zap.New(core), metrics, WithClock(clock))
	require.NoError(t, err)

	return &harness{s: s, clock: clock, metrics: metrics, logs: logs}
}

func (h *harness) mustCreate(t *testing.T, taskType string, data any, opts ...TaskOption) *Task {
	t.Helper()
	task, err := h.s.CreateTask(context.Background(), taskType, data, opts...)
	require.NoError(t, err)
	return task
}

func (h *harness) mustGet(t *testing.T, id string) *Task {
	t.Helper()
	task, ok := h.s.GetTask(id)
	require.True(t, ok, "task %s not found", id)
	return task
}

func echoHandler() Handler {
	return HandlerFunc(func(_ context.Context, task *Task) (json.RawMessage, error) {
		return task.Data, nil
	})
}

func failingHandler(msg string) Handler {
	return HandlerFunc(func(context.Context, *Task) (json.RawMessage, error) {
		return nil, errors.New(msg)
	})
}

// eventLog records every event the scheduler emits
type eventLog struct {
	mu     sync.Mutex
	events []Event
}

func (l *eventLog) HandleEvent(_ context.Context, ev Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
	return nil
}

func (l *eventLog) types() []EventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventType, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Type)
	}
	return out
}

func (l *eventLog) last() Event {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func subscribeAll(t *testing.T, s *Scheduler) *eventLog {
	t.Helper()
	log := &eventLog{}
	for _, ev := range EventTypes() {
		_, err := s.On(ev, log)
		require.NoError(t, err)
	}
	return log
}
