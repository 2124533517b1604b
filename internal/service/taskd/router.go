package taskd

import (
	"taskdash/internal/pkg/health"
	"taskdash/internal/pkg/metrics"
	"taskdash/internal/pkg/server"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
)

// RegisterRoutes mounts health, metrics and the task API on e
func RegisterRoutes(e *echo.Echo, h *TaskHandler, api APIConfig, hs *health.Service, reg *prometheus.Registry) {
	health.Register(e, hs)
	if reg != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(reg)))
	}

	tasks := e.Group("/api/v1/tasks")
	if api.JWTSecret != "" {
		tasks.Use(server.JWTMiddleware(api.JWTSecret))
	}

	create := []echo.MiddlewareFunc{}
	if api.CreateRatePerSec > 0 {
		create = append(create, server.NewRateLimiter(api.CreateRatePerSec, api.CreateBurst, nil).Middleware())
	}

	tasks.GET("/types", h.Types)
	tasks.GET("/stats", h.Stats)
	tasks.POST("", h.Create, create...)
	tasks.GET("", h.List)
	tasks.GET("/:id", h.Get)
	tasks.DELETE("/:id", h.Cancel)
}
