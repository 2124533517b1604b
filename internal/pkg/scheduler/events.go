package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EventType names a task lifecycle event
type EventType string

const (
	EventTaskCreated   EventType = "taskCreated"
	EventTaskCompleted EventType = "taskCompleted"
	EventTaskFailed    EventType = "taskFailed"
	EventTaskRetrying  EventType = "taskRetrying"
	EventTaskCancelled EventType = "taskCancelled"
)

// EventTypes lists every event type
func EventTypes() []EventType {
	return []EventType{EventTaskCreated, EventTaskCompleted, EventTaskFailed, EventTaskRetrying, EventTaskCancelled}
}

func (e EventType) Valid() bool {
	switch e {
	case EventTaskCreated, EventTaskCompleted, EventTaskFailed, EventTaskRetrying, EventTaskCancelled:
		return true
	}
	return false
}

// Event carries a snapshot of the task at the time of the transition.
// Err is a *HandlerExecutionError for taskRetrying and taskFailed.
type Event struct {
	Type EventType
	Task *Task
	Err  error
	Time time.Time
}

// Listener receives lifecycle events
type Listener interface {
	HandleEvent(ctx context.Context, event Event) error
}

// ListenerFunc is a function adapter that implements the Listener interface
type ListenerFunc func(ctx context.Context, event Event) error

// HandleEvent implements the Listener interface
func (f ListenerFunc) HandleEvent(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Subscription identifies a registered listener for Off
type Subscription struct {
	event EventType
	id    uint64
}

// Event returns the event type the subscription listens to
func (s Subscription) Event() EventType {
	return s.event
}

type subscriber struct {
	id       uint64
	listener Listener
}

// EventBus delivers events synchronously to listeners in registration order.
// A failing or panicking listener is logged and does not affect the others.
type EventBus struct {
	mu        sync.RWMutex
	nextID    uint64
	listeners map[EventType][]subscriber
	log       Logger
}

// NewEventBus creates an event bus
func NewEventBus(log Logger) *EventBus {
	if log == nil {
		log = NewNopLogger()
	}
	return &EventBus{
		listeners: make(map[EventType][]subscriber),
		log:       log,
	}
}

// On registers l for event
func (b *EventBus) On(event EventType, l Listener) (Subscription, error) {
	if !event.Valid() {
		return Subscription{}, fmt.Errorf("%w: %q", ErrUnknownEvent, event)
	}
	if l == nil {
		return Subscription{}, fmt.Errorf("%w: nil listener", ErrInvalidHandler)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.listeners[event] = append(b.listeners[event], subscriber{id: b.nextID, listener: l})
	return Subscription{event: event, id: b.nextID}, nil
}

// Off removes a listener registered with On
func (b *EventBus) Off(sub Subscription) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.listeners[sub.event]
	for i, s := range subs {
		if s.id != sub.id {
			continue
		}
		// copy so snapshots held by in-flight Emit calls stay intact
		next := make([]subscriber, 0, len(subs)-1)
		next = append(next, subs[:i]...)
		next = append(next, subs[i+1:]...)
		b.listeners[sub.event] = next
		return true
	}
	return false
}

// Emit delivers ev to every listener of its type
func (b *EventBus) Emit(ctx context.Context, ev Event) {
	b.mu.RLock()
	subs := b.listeners[ev.Type]
	b.mu.RUnlock()

	for _, s := range subs {
		b.deliver(ctx, s, ev)
	}
}

func (b *EventBus) deliver(ctx context.Context, s subscriber, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event listener panicked",
				zap.String("event", string(ev.Type)),
				zap.Uint64("subscription", s.id),
				zap.Any("panic", r),
			)
		}
	}()

	// each listener gets its own copy of the task
	ev.Task = ev.Task.Clone()
	if err := s.listener.HandleEvent(ctx, ev); err != nil {
		b.log.Error("event listener failed",
			zap.String("event", string(ev.Type)),
			zap.Uint64("subscription", s.id),
			zap.Error(err),
		)
	}
}
