package eventsink

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"taskdash/internal/pkg/errorsx"
	"taskdash/internal/pkg/redis"
	"taskdash/internal/pkg/redis/dlq"
	"taskdash/internal/pkg/retry"
	"taskdash/internal/pkg/scheduler"

	"go.uber.org/zap"
)

// Config controls how lifecycle events are mirrored to Redis
type Config struct {
	Enabled        bool          `mapstructure:"enabled" yaml:"enabled"`
	Stream         string        `mapstructure:"stream" yaml:"stream"`
	DeadLetter     string        `mapstructure:"dead_letter" yaml:"dead_letter"`
	MaxLen         int64         `mapstructure:"max_len" yaml:"max_len" validate:"gte=0"`
	PublishTimeout time.Duration `mapstructure:"publish_timeout" yaml:"publish_timeout" validate:"gte=0"`
	Attempts       int           `mapstructure:"attempts" yaml:"attempts" validate:"gte=1,lte=10"`
}

// DefaultValues returns the event sink defaults as a config tree
func DefaultValues() map[string]any {
	return map[string]any{
		"enabled":         true,
		"stream":          "",
		"dead_letter":     "",
		"max_len":         10000,
		"publish_timeout": "2s",
		"attempts":        3,
	}
}

// RedisStreamSink is a scheduler listener that appends every lifecycle event
// to a Redis stream and failed tasks to a dead-letter stream.
type RedisStreamSink struct {
	stream redis.StreamWriter
	dead   *dlq.DLQ
	cfg    Config
	policy retry.Policy
	log    scheduler.Logger
}

// New creates a sink writing to cfg.Stream. A nil dead letter queue disables
// dead-lettering.
func New(stream redis.StreamWriter, dead *dlq.DLQ, cfg Config, log scheduler.Logger) *RedisStreamSink {
	if log == nil {
		log = scheduler.NewNopLogger()
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	return &RedisStreamSink{
		stream: stream,
		dead:   dead,
		cfg:    cfg,
		policy: retry.ExponentialBackoff(50*time.Millisecond, time.Second, true, attempts),
		log:    log,
	}
}

// Subscribe registers the sink for every lifecycle event
func (s *RedisStreamSink) Subscribe(sched *scheduler.Scheduler) ([]scheduler.Subscription, error) {
	subs := make([]scheduler.Subscription, 0, len(scheduler.EventTypes()))
	for _, ev := range scheduler.EventTypes() {
		sub, err := sched.On(ev, s)
		if err != nil {
			for _, done := range subs {
				sched.Off(done)
			}
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, nil
}

// HandleEvent implements scheduler.Listener. Only errors the stream marks
// retryable are retried.
func (s *RedisStreamSink) HandleEvent(ctx context.Context, ev scheduler.Event) error {
	if s.cfg.PublishTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.PublishTimeout)
		defer cancel()
	}

	values := Values(ev)
	id, err := retry.Do(ctx, s.policy, func(ctx context.Context) (string, error) {
		return s.stream.XAdd(ctx, redis.XAddArgs{
			Stream: s.cfg.Stream,
			MaxLen: s.cfg.MaxLen,
			Values: values,
		})
	}, errorsx.IsRetryable)
	if err != nil {
		return fmt.Errorf("publish %s for task %s: %w", ev.Type, ev.Task.ID, err)
	}
	s.log.Debug("event published",
		zap.String("event", string(ev.Type)),
		zap.String("task_id", ev.Task.ID),
		zap.String("entry_id", id),
	)

	if ev.Type == scheduler.EventTaskFailed && s.dead != nil {
		entry, err := s.dead.Push(ctx, values)
		if err != nil {
			return fmt.Errorf("dead-letter task %s: %w", ev.Task.ID, err)
		}
		s.log.Debug("task dead-lettered",
			zap.String("task_id", ev.Task.ID),
			zap.String("stream", s.dead.Stream()),
			zap.String("entry_id", entry),
		)
	}
	return nil
}

// Values flattens an event into stream fields
func Values(ev scheduler.Event) map[string]interface{} {
	t := ev.Task
	v := map[string]interface{}{
		"event":       string(ev.Type),
		"time":        ev.Time.UTC().Format(time.RFC3339Nano),
		"task_id":     t.ID,
		"task_name":   t.Name,
		"task_type":   t.Type,
		"status":      string(t.Status),
		"priority":    t.Priority.String(),
		"retries":     strconv.Itoa(t.Retries),
		"max_retries": strconv.Itoa(t.MaxRetries),
	}
	if len(t.Data) > 0 {
		v["data"] = string(t.Data)
	}
	if len(t.Result) > 0 {
		v["result"] = string(t.Result)
	}
	if t.Error != "" {
		v["error"] = t.Error
	}
	if t.NextRetryAt != nil {
		v["next_retry_at"] = t.NextRetryAt.UTC().Format(time.RFC3339Nano)
	}
	if ev.Err != nil {
		v["permanent"] = strconv.FormatBool(scheduler.IsPermanent(ev.Err))
	}
	return v
}
