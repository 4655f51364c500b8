package handler

import (
	"github.com/labstack/echo/v4"
)

// BasePath is where the admin API is mounted
const BasePath = "/admin/background-tasks"

// RegisterRoutes mounts the admin API on e behind the given middlewares
func RegisterRoutes(e *echo.Echo, h *TaskHandler, mw ...echo.MiddlewareFunc) {
	g := e.Group(BasePath, mw...)

	g.GET("", h.ListTasks)
	g.POST("", h.SubmitTask, h.submitMW...)
	g.GET("/metrics", h.GetMetrics)
	g.GET("/health", h.Health)
	g.GET("/names", h.ListNames)
	g.GET("/archive", h.ListArchive)
	g.GET("/recurring", h.ListRecurring)
	g.POST("/recurring/:name/trigger", h.TriggerRecurring)
	g.GET("/:id", h.GetTask)
}
