package logctx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFields(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, Fields(ctx))

	ctx = WithCorrelationID(ctx, "c-1")
	ctx = WithTask(ctx, "t-1", "echo")

	id, typ, ok := Task(ctx)
	assert.True(t, ok)
	assert.Equal(t, "t-1", id)
	assert.Equal(t, "echo", typ)

	fields := Fields(ctx)
	keys := make([]string, 0, len(fields))
	for _, f := range fields {
		keys = append(keys, f.Key)
	}
	assert.Equal(t, []string{"correlation_id", "task_id", "task_type"}, keys)

	_, ok = TraceID(ctx)
	assert.False(t, ok)
}
