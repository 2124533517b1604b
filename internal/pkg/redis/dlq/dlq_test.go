package dlq

import (
	"context"
	"errors"
	"testing"

	"taskdash/internal/pkg/redis"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingStream struct {
	args []redis.XAddArgs
	err  error
}

func (r *recordingStream) XAdd(_ context.Context, args redis.XAddArgs) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.args = append(r.args, args)
	return "7-0", nil
}

func TestPush_WritesToDeadLetterStream(t *testing.T) {
	stream := &recordingStream{}
	dead := New(stream, "taskd:dead", 500)
	assert.Equal(t, "taskd:dead", dead.Stream())

	id, err := dead.Push(context.Background(), map[string]interface{}{"task_id": "t-1"})
	require.NoError(t, err)
	assert.Equal(t, "7-0", id)

	require.Len(t, stream.args, 1)
	assert.Equal(t, dead.Stream(), stream.args[0].Stream)
	assert.Equal(t, int64(500), stream.args[0].MaxLen)
	assert.Equal(t, "t-1", stream.args[0].Values["task_id"])
}

func TestPush_ReturnsStreamError(t *testing.T) {
	boom := errors.New("down")
	dead := New(&recordingStream{err: boom}, "taskd:dead", 0)

	_, err := dead.Push(context.Background(), map[string]interface{}{"task_id": "t-1"})
	assert.ErrorIs(t, err, boom)
}
