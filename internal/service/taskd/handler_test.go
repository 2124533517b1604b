package taskd

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskdash/internal/pkg/config"
	"taskdash/internal/pkg/health"
	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/metrics"
	"taskdash/internal/pkg/scheduler"
	"taskdash/internal/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type apiHarness struct {
	e     *echo.Echo
	sched *scheduler.Scheduler
}

func newAPI(t *testing.T, api APIConfig) *apiHarness {
	t.Helper()
	reg := metrics.NewRegistry()
	collector, err := metrics.NewCollector(reg)
	require.NoError(t, err)

	s, err := scheduler.New(scheduler.DefaultConfig(), nil, collector)
	require.NoError(t, err)
	require.NoError(t, RegisterBuiltins(s))

	hs := health.NewService(health.DefaultConfig())
	hs.Register(health.NewSchedulerProvider(health.SchedulerProviderConfig{Scheduler: s}))

	if api.MaxListed == 0 {
		api.MaxListed = 100
	}
	srv := server.NewEchoServer(&config.Config{Server: config.ServerConfig{Host: "127.0.0.1", Port: 8080}}, logger.NewNop())
	h := NewTaskHandler(s, &ServiceConfig{API: api}, logger.NewNop())
	RegisterRoutes(srv.Echo(), h, api, hs, reg)
	return &apiHarness{e: srv.Echo(), sched: s}
}

func (a *apiHarness) do(t *testing.T, method, path, body string, header ...string) (*httptest.ResponseRecorder, server.Response) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var resp server.Response
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get(echo.HeaderContentType), echo.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

// taskData re-decodes the envelope data into a task
func taskData(t *testing.T, resp server.Response) scheduler.Task {
	t.Helper()
	raw, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var task scheduler.Task
	require.NoError(t, json.Unmarshal(raw, &task))
	return task
}

func TestAPI_CreateAndGet(t *testing.T) {
	a := newAPI(t, APIConfig{})

	rec, resp := a.do(t, http.MethodPost, "/api/v1/tasks", `{"type":"echo","data":{"msg":"hi"},"priority":"high","max_retries":1}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, resp.Success)
	created := taskData(t, resp)
	assert.Equal(t, scheduler.StatusPending, created.Status)
	assert.Equal(t, scheduler.PriorityHigh, created.Priority)
	assert.Equal(t, 1, created.MaxRetries)
	assert.JSONEq(t, `{"msg":"hi"}`, string(created.Data))

	require.True(t, a.sched.Tick(context.Background()))

	rec, resp = a.do(t, http.MethodGet, "/api/v1/tasks/"+created.ID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := taskData(t, resp)
	assert.Equal(t, scheduler.StatusCompleted, got.Status)
	assert.JSONEq(t, `{"msg":"hi"}`, string(got.Result))
}

func TestAPI_CreateDefaults(t *testing.T) {
	a := newAPI(t, APIConfig{})

	rec, resp := a.do(t, http.MethodPost, "/api/v1/tasks", `{"type":"fail"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	task := taskData(t, resp)
	assert.Equal(t, scheduler.PriorityMedium, task.Priority)
	assert.Equal(t, scheduler.DefaultConfig().DefaultMaxRetries, task.MaxRetries)
	assert.Empty(t, task.Data)
}

func TestAPI_CreateRejected(t *testing.T) {
	a := newAPI(t, APIConfig{})

	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"unregistered type", `{"type":"missing"}`, "Failed to create task"},
		{"empty type", `{"type":""}`, "Failed to create task"},
		{"bad priority", `{"type":"echo","priority":"urgent"}`, "Invalid priority"},
		{"negative retries", `{"type":"echo","max_retries":-1}`, "Failed to create task"},
		{"malformed body", `{"type":`, "Invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, resp := a.do(t, http.MethodPost, "/api/v1/tasks", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.False(t, resp.Success)
			assert.Equal(t, tt.message, resp.Message)
		})
	}
	assert.Empty(t, a.sched.GetTasks())
}

func TestAPI_ListFiltersByStatus(t *testing.T) {
	a := newAPI(t, APIConfig{})
	ctx := context.Background()

	done, err := a.sched.CreateTask(ctx, "echo", nil, scheduler.WithPriority(scheduler.PriorityCritical))
	require.NoError(t, err)
	require.True(t, a.sched.Tick(ctx))
	_, err = a.sched.CreateTask(ctx, "echo", nil)
	require.NoError(t, err)

	_, resp := a.do(t, http.MethodGet, "/api/v1/tasks", "")
	assert.Len(t, resp.Data, 2)

	rec, resp := a.do(t, http.MethodGet, "/api/v1/tasks?status=completed", "")
	require.Equal(t, http.StatusOK, rec.Code)
	list := resp.Data.([]any)
	require.Len(t, list, 1)
	assert.Equal(t, done.ID, list[0].(map[string]any)["id"])

	_, resp = a.do(t, http.MethodGet, "/api/v1/tasks?status=completed,pending", "")
	assert.Len(t, resp.Data, 2)

	rec, _ = a.do(t, http.MethodGet, "/api/v1/tasks?status=paused", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAPI_ListIsCapped(t *testing.T) {
	a := newAPI(t, APIConfig{MaxListed: 2})
	for i := 0; i < 3; i++ {
		_, err := a.sched.CreateTask(context.Background(), "echo", nil)
		require.NoError(t, err)
	}
	_, resp := a.do(t, http.MethodGet, "/api/v1/tasks", "")
	assert.Len(t, resp.Data, 2)
}

func TestAPI_Cancel(t *testing.T) {
	a := newAPI(t, APIConfig{})
	task, err := a.sched.CreateTask(context.Background(), "echo", nil)
	require.NoError(t, err)

	rec, _ := a.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec, resp := a.do(t, http.MethodDelete, "/api/v1/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Failed to cancel task", resp.Message)

	rec, _ = a.do(t, http.MethodDelete, "/api/v1/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/api/v1/tasks/nope", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAPI_TypesAndStats(t *testing.T) {
	a := newAPI(t, APIConfig{})
	_, err := a.sched.CreateTask(context.Background(), "echo", nil, scheduler.WithPriority(scheduler.PriorityLow))
	require.NoError(t, err)

	_, resp := a.do(t, http.MethodGet, "/api/v1/tasks/types", "")
	assert.Equal(t, []any{"echo", "fail", "sleep"}, resp.Data)

	rec, resp := a.do(t, http.MethodGet, "/api/v1/tasks/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := resp.Data.(map[string]any)
	assert.Equal(t, float64(1), stats["queued"])
	assert.Equal(t, float64(1), stats["queue_sizes"].(map[string]any)["low"])
}

func TestAPI_JWT(t *testing.T) {
	a := newAPI(t, APIConfig{JWTSecret: "s3cret"})

	rec, _ := a.do(t, http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := server.SignToken("s3cret", "ops", time.Minute)
	require.NoError(t, err)
	rec, _ = a.do(t, http.MethodGet, "/api/v1/tasks", "", echo.HeaderAuthorization, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code, "health stays public")
}

func TestAPI_CreateRateLimit(t *testing.T) {
	a := newAPI(t, APIConfig{CreateRatePerSec: 0.1, CreateBurst: 2})

	for i := 0; i < 2; i++ {
		rec, _ := a.do(t, http.MethodPost, "/api/v1/tasks", `{"type":"echo"}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec, _ := a.do(t, http.MethodPost, "/api/v1/tasks", `{"type":"echo"}`)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	rec, _ = a.do(t, http.MethodGet, "/api/v1/tasks", "")
	assert.Equal(t, http.StatusOK, rec.Code, "reads are not limited")
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	a := newAPI(t, APIConfig{})

	rec, _ := a.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code, "scheduler loops not started")

	require.NoError(t, a.sched.Start(context.Background()))
	defer a.sched.Stop(context.Background())
	rec, _ = a.do(t, http.MethodGet, "/health/ready", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	_, err := a.sched.CreateTask(context.Background(), "echo", nil)
	require.NoError(t, err)

	rec, _ = a.do(t, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `taskdash_operations_total{operation="create",status="success",type="echo"} 1`)
}
