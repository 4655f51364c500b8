package health

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes mounts the health endpoints on e
func RegisterRoutes(e *echo.Echo, service *Service) {
	e.GET("/health", Handler(service))
	e.GET("/health/ready", ReadinessHandler(service))
	e.GET("/health/live", LivenessHandler())
}

// Handler reports every check; DOWN maps to 503, DEGRADED stays 200
func Handler(service *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := service.GetHealthResponse(c.Request().Context())

		statusCode := http.StatusOK
		if response.Status == StatusDown {
			statusCode = http.StatusServiceUnavailable
		}
		return c.JSON(statusCode, response)
	}
}

// ReadinessHandler is strict: only UP is ready
func ReadinessHandler(service *Service) echo.HandlerFunc {
	return func(c echo.Context) error {
		response := service.GetHealthResponse(c.Request().Context())
		if response.Status == StatusUp {
			return c.String(http.StatusOK, "OK")
		}
		return c.String(http.StatusServiceUnavailable, "NOT READY")
	}
}

// LivenessHandler answers as long as the process serves HTTP
func LivenessHandler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	}
}
