package dlq

import (
	"context"

	"taskdash/internal/pkg/redis"
)

// DLQ appends permanently failed work to a capped dead-letter stream
type DLQ struct {
	stream redis.StreamWriter
	name   string
	maxLen int64
}

func New(stream redis.StreamWriter, name string, maxLen int64) *DLQ {
	return &DLQ{stream: stream, name: name, maxLen: maxLen}
}

// Stream returns the dead-letter stream name
func (d *DLQ) Stream() string {
	return d.name
}

func (d *DLQ) Push(ctx context.Context, values map[string]interface{}) (string, error) {
	return d.stream.XAdd(ctx, redis.XAddArgs{
		Stream: d.name,
		MaxLen: d.maxLen,
		Values: values,
	})
}
