package scheduler

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventBus_UnknownEvent(t *testing.T) {
	bus := NewEventBus(nil)
	_, err := bus.On(EventType("taskExploded"), &eventLog{})
	assert.ErrorIs(t, err, ErrUnknownEvent)

	_, err = bus.On(EventTaskCreated, nil)
	assert.ErrorIs(t, err, ErrInvalidHandler)
}

func TestEventBus_DeliversInRegistrationOrder(t *testing.T) {
	bus := NewEventBus(nil)
	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		_, err := bus.On(EventTaskCompleted, ListenerFunc(func(context.Context, Event) error {
			order = append(order, i)
			return nil
		}))
		require.NoError(t, err)
	}

	bus.Emit(context.Background(), Event{Type: EventTaskCompleted, Task: &Task{ID: "t"}})
	bus.Emit(context.Background(), Event{Type: EventTaskFailed, Task: &Task{ID: "t"}})
	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestEventBus_Off(t *testing.T) {
	bus := NewEventBus(nil)
	first, second := &eventLog{}, &eventLog{}

	sub, err := bus.On(EventTaskCreated, first)
	require.NoError(t, err)
	_, err = bus.On(EventTaskCreated, second)
	require.NoError(t, err)
	assert.Equal(t, EventTaskCreated, sub.Event())

	assert.True(t, bus.Off(sub))
	assert.False(t, bus.Off(sub))

	bus.Emit(context.Background(), Event{Type: EventTaskCreated, Task: &Task{ID: "t"}})
	assert.Empty(t, first.types())
	assert.Equal(t, []EventType{EventTaskCreated}, second.types())
}

func TestEventBus_FailingListenersAreIsolated(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.RegisterHandler("echo", echoHandler()))

	_, err := h.s.On(EventTaskCreated, ListenerFunc(func(context.Context, Event) error {
		return errors.New("listener down")
	}))
	require.NoError(t, err)
	_, err = h.s.On(EventTaskCreated, ListenerFunc(func(context.Context, Event) error {
		panic("listener exploded")
	}))
	require.NoError(t, err)
	events := subscribeAll(t, h.s)

	task := h.mustCreate(t, "echo", nil)
	require.True(t, h.s.Tick(context.Background()))

	assert.Equal(t, StatusCompleted, h.mustGet(t, task.ID).Status)
	assert.Equal(t, []EventType{EventTaskCreated, EventTaskCompleted}, events.types())
	assert.Equal(t, 1, h.logs.FilterMessage("event listener failed").Len())
	assert.Equal(t, 1, h.logs.FilterMessage("event listener panicked").Len())
}

func TestEventBus_ListenerReceivesCopy(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.RegisterHandler("echo", echoHandler()))
	_, err := h.s.On(EventTaskCreated, ListenerFunc(func(_ context.Context, ev Event) error {
		ev.Task.Status = StatusFailed
		return nil
	}))
	require.NoError(t, err)

	task := h.mustCreate(t, "echo", nil)
	assert.Equal(t, StatusPending, task.Status)
	assert.Equal(t, StatusPending, h.mustGet(t, task.ID).Status)
}

func TestEventBus_ListenerCanCallScheduler(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.s.RegisterHandler("boom", failingHandler("nope")))
	require.NoError(t, h.s.RegisterHandler("alert", echoHandler()))

	// a failed task schedules an alert from inside the listener
	_, err := h.s.On(EventTaskFailed, ListenerFunc(func(ctx context.Context, ev Event) error {
		_, err := h.s.CreateTask(ctx, "alert", map[string]string{"failed": ev.Task.ID}, WithPriority(PriorityCritical))
		return err
	}))
	require.NoError(t, err)

	failed := h.mustCreate(t, "boom", nil, WithMaxRetries(0))
	require.True(t, h.s.Tick(context.Background()))
	require.Equal(t, StatusFailed, h.mustGet(t, failed.ID).Status)

	alerts := h.s.GetTasks(StatusPending)
	require.Len(t, alerts, 1)
	assert.Equal(t, "alert", alerts[0].Type)
	assert.JSONEq(t, `{"failed":"`+failed.ID+`"}`, string(alerts[0].Data))
}
