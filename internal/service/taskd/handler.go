package taskd

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"taskdash/internal/pkg/logger"
	"taskdash/internal/pkg/scheduler"
	"taskdash/internal/pkg/server"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// CreateTaskRequest is the body of POST /api/v1/tasks
type CreateTaskRequest struct {
	Type       string          `json:"type"`
	Data       json.RawMessage `json:"data,omitempty"`
	Priority   string          `json:"priority,omitempty"`
	MaxRetries *int            `json:"max_retries,omitempty"`
}

// TaskHandler serves the task API
type TaskHandler struct {
	scheduler *scheduler.Scheduler
	logger    *logger.Logger
	maxListed int
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(s *scheduler.Scheduler, cfg *ServiceConfig, log *logger.Logger) *TaskHandler {
	return &TaskHandler{
		scheduler: s,
		logger:    log,
		maxListed: cfg.API.MaxListed,
	}
}

// Create handles task submission
func (h *TaskHandler) Create(c echo.Context) error {
	var req CreateTaskRequest
	if err := c.Bind(&req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid request body")
	}

	var opts []scheduler.TaskOption
	if req.Priority != "" {
		p, err := scheduler.ParsePriority(req.Priority)
		if err != nil {
			return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid priority")
		}
		opts = append(opts, scheduler.WithPriority(p))
	}
	if req.MaxRetries != nil {
		opts = append(opts, scheduler.WithMaxRetries(*req.MaxRetries))
	}

	var data any
	if len(req.Data) > 0 {
		data = req.Data
	}
	task, err := h.scheduler.CreateTask(c.Request().Context(), req.Type, data, opts...)
	if err != nil {
		return h.schedulerError(c, err, "Failed to create task")
	}
	return server.SuccessResponse(c, http.StatusCreated, task, "Task created successfully")
}

// Get handles retrieving a task by id
func (h *TaskHandler) Get(c echo.Context) error {
	task, ok := h.scheduler.GetTask(c.Param("id"))
	if !ok {
		return server.ErrorResponse(c, http.StatusNotFound, nil, "Task not found")
	}
	return server.SuccessResponse(c, http.StatusOK, task, "Task retrieved successfully")
}

// List handles listing tasks, optionally filtered by ?status=a,b
func (h *TaskHandler) List(c echo.Context) error {
	var statuses []scheduler.Status
	for _, param := range c.QueryParams()["status"] {
		for _, raw := range strings.Split(param, ",") {
			if raw = strings.TrimSpace(raw); raw == "" {
				continue
			}
			st, err := scheduler.ParseStatus(raw)
			if err != nil {
				return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid status filter")
			}
			statuses = append(statuses, st)
		}
	}

	tasks := h.scheduler.GetTasks(statuses...)
	if h.maxListed > 0 && len(tasks) > h.maxListed {
		tasks = tasks[:h.maxListed]
	}
	return server.SuccessResponse(c, http.StatusOK, tasks, "Tasks retrieved successfully")
}

// Cancel handles cancelling a pending or retrying task
func (h *TaskHandler) Cancel(c echo.Context) error {
	if err := h.scheduler.CancelTask(c.Request().Context(), c.Param("id")); err != nil {
		return h.schedulerError(c, err, "Failed to cancel task")
	}
	return c.NoContent(http.StatusNoContent)
}

// Types lists the registered task types
func (h *TaskHandler) Types(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.scheduler.Registry().Types(), "Task types retrieved successfully")
}

// Stats reports queue sizes and task counts
func (h *TaskHandler) Stats(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.scheduler.Stats(), "Stats retrieved successfully")
}

func (h *TaskHandler) schedulerError(c echo.Context, err error, message string) error {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, scheduler.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, scheduler.ErrInvalidState):
		code = http.StatusConflict
	case errors.Is(err, scheduler.ErrValidation), errors.Is(err, scheduler.ErrUnregisteredHandler):
		code = http.StatusBadRequest
	default:
		h.logger.Error(message, zap.Error(err))
	}
	return server.ErrorResponse(c, code, err.Error(), message)
}
