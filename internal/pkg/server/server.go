package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"leadgen/internal/pkg/config"
	"leadgen/internal/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

// Server wraps Echo server
type Server struct {
	echo   *echo.Echo
	config *config.Config
	logger *logger.Logger
}

// NewEchoServer creates a new Echo server instance
func NewEchoServer(cfg *config.Config, log *logger.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Server.ReadTimeout = time.Duration(cfg.Server.ReadTimeout) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.Server.WriteTimeout) * time.Second

	setupMiddleware(e, log)

	log.Debug("Echo server initialized")

	return &Server{
		echo:   e,
		config: cfg,
		logger: log,
	}
}

// setupMiddleware configures Echo middleware
func setupMiddleware(e *echo.Echo, log *logger.Logger) {
	e.Use(middleware.Recover())

	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{http.MethodGet, http.MethodPost},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept, echo.HeaderAuthorization},
	}))

	e.Use(middleware.RequestID())
	e.Use(requestLoggerMiddleware(log))

	e.Use(middleware.TimeoutWithConfig(middleware.TimeoutConfig{
		Timeout: 30 * time.Second,
	}))
}

// requestLoggerMiddleware logs one line per request
func requestLoggerMiddleware(log *logger.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			req := c.Request()

			err := next(c)

			fields := []zap.Field{
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", req.Method),
				zap.String("uri", req.RequestURI),
				zap.String("remote_ip", c.RealIP()),
				zap.Int("status", c.Response().Status),
				zap.Int64("latency_ms", time.Since(start).Milliseconds()),
			}
			// probes and scrapes are noisy
			if req.URL.Path == "/metrics" || req.URL.Path == "/health/live" {
				log.Debug("HTTP request", fields...)
			} else {
				log.Info("HTTP request", fields...)
			}

			return err
		}
	}
}

// GetEcho returns the Echo instance
func (s *Server) GetEcho() *echo.Echo {
	return s.echo
}

// Address returns host:port the server listens on
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := s.Address()
	s.logger.Info("Starting HTTP server", zap.String("address", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	return s.echo.Shutdown(ctx)
}

// Response is a standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   interface{} `json:"error,omitempty"`
	Message string      `json:"message"`
}

// SuccessResponse creates a success response
func SuccessResponse(c echo.Context, statusCode int, data interface{}, message string) error {
	return c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// ErrorResponse creates an error response
func ErrorResponse(c echo.Context, statusCode int, err interface{}, message string) error {
	return c.JSON(statusCode, Response{
		Success: false,
		Error:   err,
		Message: message,
	})
}
