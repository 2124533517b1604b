package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// LivenessHandler answers as long as the process can serve HTTP
func LivenessHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"success": true,
		"message": "Server is healthy",
		"data":    map[string]string{"status": "ok"},
	})
}

// ReadinessHandler serves the aggregated checks. DOWN maps to 503; DEGRADED
// still counts as ready.
func ReadinessHandler(s *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		resp := s.Response(c.Request().Context())
		code := http.StatusOK
		if resp.Status == StatusDown {
			code = http.StatusServiceUnavailable
		}
		return c.JSON(code, resp)
	}
}

// Register mounts /health and /health/ready on e
func Register(e *echo.Echo, s *Service) {
	e.GET("/health", LivenessHandler)
	e.GET("/health/ready", ReadinessHandler(s))
}
