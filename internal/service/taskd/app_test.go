package taskd

import (
	"context"
	"testing"

	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/scheduler"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHandlerLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	s, err := scheduler.New(scheduler.DefaultConfig(), nil, nil, handlerLogging(logger.New(zap.New(core))))
	require.NoError(t, err)
	require.NoError(t, s.RegisterHandler("echo", EchoHandler()))

	task, err := s.CreateTask(context.Background(), "echo", map[string]string{"msg": "hi"})
	require.NoError(t, err)
	require.True(t, s.Tick(context.Background()))

	started := logs.FilterMessage("task handler started").All()
	require.Len(t, started, 1)
	assert.Equal(t, "handler", started[0].LoggerName)
	assert.Equal(t, task.ID, started[0].ContextMap()["task_id"])
	assert.Equal(t, 1, logs.FilterMessage("task handler finished").Len())
}
