package eventsink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"taskdash/internal/pkg/errorsx"
	"taskdash/internal/pkg/redis"
	"taskdash/internal/pkg/redis/dlq"
	"taskdash/internal/pkg/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	mu      sync.Mutex
	entries []redis.XAddArgs
	fail    []error
}

func (f *fakeStream) XAdd(_ context.Context, args redis.XAddArgs) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.fail) > 0 {
		err := f.fail[0]
		f.fail = f.fail[1:]
		return "", err
	}
	f.entries = append(f.entries, args)
	return "1-0", nil
}

func (f *fakeStream) streams() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Stream
	}
	return out
}

func testConfig() Config {
	return Config{Enabled: true, Stream: "t:events", DeadLetter: "t:dead", MaxLen: 100, Attempts: 3}
}

func TestSink_MirrorsLifecycle(t *testing.T) {
	stream := &fakeStream{}
	sink := New(stream, dlq.New(stream, "t:dead", 100), testConfig(), nil)

	s, err := scheduler.New(scheduler.DefaultConfig(), nil, nil)
	require.NoError(t, err)
	require.NoError(t, s.RegisterHandler("boom", scheduler.HandlerFunc(func(context.Context, *scheduler.Task) (json.RawMessage, error) {
		return nil, errors.New("nope")
	})))
	subs, err := sink.Subscribe(s)
	require.NoError(t, err)
	assert.Len(t, subs, len(scheduler.EventTypes()))

	ctx := context.Background()
	task, err := s.CreateTask(ctx, "boom", map[string]int{"n": 1}, scheduler.WithMaxRetries(1))
	require.NoError(t, err)
	for s.Tick(ctx) {
	}

	assert.Equal(t, []string{"t:events", "t:events", "t:events", "t:dead"}, stream.streams())

	failed := stream.entries[2]
	assert.Equal(t, int64(100), failed.MaxLen)
	assert.Equal(t, "taskFailed", failed.Values["event"])
	assert.Equal(t, task.ID, failed.Values["task_id"])
	assert.Equal(t, "nope", failed.Values["error"])
	assert.Equal(t, "1", failed.Values["retries"])
	assert.Equal(t, "false", failed.Values["permanent"])
	assert.Equal(t, failed.Values, stream.entries[3].Values)
}

func TestSink_RetriesTransientErrors(t *testing.T) {
	stream := &fakeStream{fail: []error{
		errorsx.WrapRetryable(errors.New("conn reset")),
		errorsx.WrapRetryable(errors.New("conn reset")),
	}}
	sink := New(stream, nil, testConfig(), nil)

	err := sink.HandleEvent(context.Background(), scheduler.Event{
		Type: scheduler.EventTaskCreated,
		Task: &scheduler.Task{ID: "t-1", Type: "echo"},
		Time: time.Now(),
	})
	require.NoError(t, err)
	assert.Len(t, stream.entries, 1)
}

func TestSink_StopsOnPermanentError(t *testing.T) {
	stream := &fakeStream{fail: []error{errorsx.WrapPermanent(errors.New("WRONGTYPE"))}}
	sink := New(stream, nil, testConfig(), nil)

	err := sink.HandleEvent(context.Background(), scheduler.Event{
		Type: scheduler.EventTaskCreated,
		Task: &scheduler.Task{ID: "t-1"},
	})
	assert.ErrorContains(t, err, "WRONGTYPE")
	assert.Empty(t, stream.entries)
}

func TestSink_UnclassifiedErrorIsNotRetried(t *testing.T) {
	stream := &fakeStream{fail: []error{errors.New("unexpected"), errors.New("unexpected")}}
	sink := New(stream, nil, testConfig(), nil)

	err := sink.HandleEvent(context.Background(), scheduler.Event{
		Type: scheduler.EventTaskCreated,
		Task: &scheduler.Task{ID: "t-1"},
	})
	assert.ErrorContains(t, err, "unexpected")
	assert.Len(t, stream.fail, 1)
	assert.Empty(t, stream.entries)
}

func TestValues(t *testing.T) {
	next := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	v := Values(scheduler.Event{
		Type: scheduler.EventTaskRetrying,
		Task: &scheduler.Task{
			ID: "t-1", Name: "echo-1", Type: "echo", Status: scheduler.StatusRetrying,
			Priority: scheduler.PriorityHigh, Retries: 1, MaxRetries: 3,
			Data: json.RawMessage(`{"a":1}`), Error: "nope", NextRetryAt: &next,
		},
		Err:  scheduler.Permanent(errors.New("nope")),
		Time: next,
	})

	assert.Equal(t, "high", v["priority"])
	assert.Equal(t, "retrying", v["status"])
	assert.Equal(t, `{"a":1}`, v["data"])
	assert.Equal(t, "2024-01-02T03:04:05Z", v["next_retry_at"])
	assert.Equal(t, "true", v["permanent"])
	assert.NotContains(t, v, "result")
}
