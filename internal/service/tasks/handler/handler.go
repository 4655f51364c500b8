package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"leadgen/internal/pkg/idempotency"
	"leadgen/internal/pkg/logger"
	"leadgen/internal/pkg/scheduler"
	"leadgen/internal/pkg/server"
	"leadgen/internal/pkg/worker"
	"leadgen/internal/service/tasks/repository"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 100
	maxListLimit     = 1000
)

// TaskManager is the slice of *worker.Manager the admin API needs
type TaskManager interface {
	SubmitNamed(name string, args worker.Args, opts ...worker.SubmitOption) (string, error)
	GetTaskStatus(id string) (worker.TaskInfo, error)
	GetAllTasks() []worker.TaskInfo
	GetMetrics() worker.MetricsSnapshot
	RegisteredNames() []string
	IsRunning() bool
	IsHealthy() bool
	QueueDepth() int
}

// ArchiveLister reads evicted tasks
type ArchiveLister interface {
	List(ctx context.Context, f repository.ListFilter) ([]*repository.TaskArchive, int64, error)
}

// Recurring exposes the cron scheduler
type Recurring interface {
	Entries() []scheduler.EntryInfo
	Trigger(name string) (string, error)
}

// IdempotencyHeader lets clients retry a submission without enqueuing it twice
const IdempotencyHeader = "Idempotency-Key"

// IdempotencyGuard runs a submission at most once per key
type IdempotencyGuard interface {
	Execute(ctx context.Context, key string, fn func(ctx context.Context) (string, error)) (string, bool, error)
}

// TaskHandler serves the background task admin API
type TaskHandler struct {
	manager     TaskManager
	archive     ArchiveLister
	recurring   Recurring
	idempotency IdempotencyGuard
	submitMW    []echo.MiddlewareFunc
	validate    *validator.Validate
	logger      *logger.Logger
}

// Option configures a TaskHandler
type Option func(*TaskHandler)

// WithIdempotency honours the Idempotency-Key header on submit
func WithIdempotency(g IdempotencyGuard) Option {
	return func(h *TaskHandler) { h.idempotency = g }
}

// WithSubmitMiddleware wraps only the submit route, e.g. with a rate limiter
func WithSubmitMiddleware(mw ...echo.MiddlewareFunc) Option {
	return func(h *TaskHandler) { h.submitMW = append(h.submitMW, mw...) }
}

// NewTaskHandler creates a new handler. archive and recurring may be nil.
func NewTaskHandler(manager TaskManager, archive ArchiveLister, recurring Recurring, log *logger.Logger, opts ...Option) *TaskHandler {
	h := &TaskHandler{
		manager:   manager,
		archive:   archive,
		recurring: recurring,
		validate:  validator.New(),
		logger:    log,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// SubmitTaskRequest is the body of POST /admin/background-tasks
type SubmitTaskRequest struct {
	Name           string                 `json:"name" validate:"required,max=128"`
	Args           map[string]interface{} `json:"args"`
	Priority       string                 `json:"priority" validate:"omitempty,oneof=critical high normal low"`
	MaxRetries     *int                   `json:"max_retries" validate:"omitempty,min=0,max=20"`
	TimeoutSeconds int                    `json:"timeout_seconds" validate:"min=0,max=86400"`
}

// TaskList is the list response payload
type TaskList struct {
	Tasks []worker.TaskInfo `json:"tasks"`
	Count int               `json:"count"`
	Total int               `json:"total"`
}

// ListTasks handles GET /admin/background-tasks?status=&name=&limit=
func (h *TaskHandler) ListTasks(c echo.Context) error {
	var status worker.Status
	if s := c.QueryParam("status"); s != "" {
		parsed, err := worker.ParseStatus(s)
		if err != nil {
			return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid status filter")
		}
		status = parsed
	}
	name := c.QueryParam("name")
	limit := queryInt(c, "limit", defaultListLimit, maxListLimit)

	all := h.manager.GetAllTasks()
	out := make([]worker.TaskInfo, 0, len(all))
	for _, t := range all {
		if status != "" && t.Status != status {
			continue
		}
		if name != "" && t.Name != name {
			continue
		}
		out = append(out, t)
	}
	total := len(out)
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if len(out) > limit {
		out = out[:limit]
	}

	return server.SuccessResponse(c, http.StatusOK, TaskList{Tasks: out, Count: len(out), Total: total}, "Tasks retrieved successfully")
}

// GetTask handles GET /admin/background-tasks/:id
func (h *TaskHandler) GetTask(c echo.Context) error {
	info, err := h.manager.GetTaskStatus(c.Param("id"))
	if err != nil {
		if errors.Is(err, worker.ErrTaskNotFound) {
			return server.ErrorResponse(c, http.StatusNotFound, err.Error(), "Task not found")
		}
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to get task")
	}
	return server.SuccessResponse(c, http.StatusOK, info, "Task retrieved successfully")
}

// SubmitTask handles POST /admin/background-tasks
func (h *TaskHandler) SubmitTask(c echo.Context) error {
	var req SubmitTaskRequest
	if err := c.Bind(&req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid request body")
	}
	req.Priority = strings.ToLower(strings.TrimSpace(req.Priority))
	if err := h.validate.Struct(req); err != nil {
		return server.ErrorResponse(c, http.StatusBadRequest, validationErrors(err), "Validation failed")
	}

	var opts []worker.SubmitOption
	if req.Priority != "" {
		p, err := worker.ParsePriority(req.Priority)
		if err != nil {
			return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid priority")
		}
		opts = append(opts, worker.WithPriority(p))
	}
	if req.MaxRetries != nil {
		opts = append(opts, worker.WithMaxRetries(*req.MaxRetries))
	}
	if req.TimeoutSeconds > 0 {
		opts = append(opts, worker.WithTimeout(time.Duration(req.TimeoutSeconds)*time.Second))
	}

	submit := func(context.Context) (string, error) {
		return h.manager.SubmitNamed(req.Name, worker.Args(req.Args), opts...)
	}

	var (
		id       string
		replayed bool
		err      error
	)
	if key := c.Request().Header.Get(IdempotencyHeader); key != "" && h.idempotency != nil {
		id, replayed, err = h.idempotency.Execute(c.Request().Context(), key, submit)
	} else {
		id, err = submit(c.Request().Context())
	}
	if err != nil {
		switch {
		case errors.Is(err, worker.ErrUnknownTask):
			return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Unknown task name")
		case errors.Is(err, idempotency.ErrInvalidKey):
			return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Invalid idempotency key")
		case errors.Is(err, idempotency.ErrAlreadyProcessing):
			return server.ErrorResponse(c, http.StatusConflict, err.Error(), "Submission in progress")
		}
		h.logger.Error("Failed to submit task", zap.String("task_name", req.Name), zap.Error(err))
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to submit task")
	}

	if replayed {
		c.Response().Header().Set("Idempotent-Replayed", "true")
		if info, err := h.manager.GetTaskStatus(id); err == nil {
			return server.SuccessResponse(c, http.StatusOK, info, "Task already submitted")
		}
		return server.SuccessResponse(c, http.StatusOK, map[string]string{"id": id}, "Task already submitted")
	}

	subject, _ := server.SubjectFromContext(c)
	h.logger.Info("Task submitted via admin API",
		zap.String("task_id", id),
		zap.String("task_name", req.Name),
		zap.String("subject", subject),
	)

	info, err := h.manager.GetTaskStatus(id)
	if err != nil {
		// already evicted or picked up and finished; the id is still valid to report
		return server.SuccessResponse(c, http.StatusAccepted, map[string]string{"id": id}, "Task submitted")
	}
	return server.SuccessResponse(c, http.StatusAccepted, info, "Task submitted")
}

// GetMetrics handles GET /admin/background-tasks/metrics
func (h *TaskHandler) GetMetrics(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.manager.GetMetrics(), "Metrics retrieved successfully")
}

// Health handles GET /admin/background-tasks/health
func (h *TaskHandler) Health(c echo.Context) error {
	healthy := h.manager.IsHealthy()
	data := map[string]interface{}{
		"running":     h.manager.IsRunning(),
		"healthy":     healthy,
		"queue_depth": h.manager.QueueDepth(),
	}
	if !healthy {
		return c.JSON(http.StatusServiceUnavailable, server.Response{Success: false, Data: data, Message: "Task manager unhealthy"})
	}
	return server.SuccessResponse(c, http.StatusOK, data, "Task manager healthy")
}

// ListNames handles GET /admin/background-tasks/names
func (h *TaskHandler) ListNames(c echo.Context) error {
	return server.SuccessResponse(c, http.StatusOK, h.manager.RegisteredNames(), "Task names retrieved successfully")
}

// ListArchive handles GET /admin/background-tasks/archive?name=&status=&limit=&offset=
func (h *TaskHandler) ListArchive(c echo.Context) error {
	if h.archive == nil {
		return server.ErrorResponse(c, http.StatusNotFound, nil, "Task archive is disabled")
	}
	filter := repository.ListFilter{
		Name:   c.QueryParam("name"),
		Status: strings.ToLower(c.QueryParam("status")),
		Limit:  queryInt(c, "limit", defaultListLimit, maxListLimit),
		Offset: queryInt(c, "offset", 0, 0),
	}
	rows, total, err := h.archive.List(c.Request().Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list task archive", zap.Error(err))
		return server.ErrorResponse(c, http.StatusInternalServerError, err.Error(), "Failed to list task archive")
	}
	return server.SuccessResponse(c, http.StatusOK, map[string]interface{}{
		"tasks": rows,
		"total": total,
	}, "Archived tasks retrieved successfully")
}

// ListRecurring handles GET /admin/background-tasks/recurring
func (h *TaskHandler) ListRecurring(c echo.Context) error {
	if h.recurring == nil {
		return server.SuccessResponse(c, http.StatusOK, []scheduler.EntryInfo{}, "No recurring tasks configured")
	}
	return server.SuccessResponse(c, http.StatusOK, h.recurring.Entries(), "Recurring tasks retrieved successfully")
}

// TriggerRecurring handles POST /admin/background-tasks/recurring/:name/trigger
func (h *TaskHandler) TriggerRecurring(c echo.Context) error {
	if h.recurring == nil {
		return server.ErrorResponse(c, http.StatusNotFound, nil, "No recurring tasks configured")
	}
	id, err := h.recurring.Trigger(c.Param("name"))
	if err != nil {
		if errors.Is(err, scheduler.ErrEntryNotFound) {
			return server.ErrorResponse(c, http.StatusNotFound, err.Error(), "Recurring task not found")
		}
		return server.ErrorResponse(c, http.StatusBadRequest, err.Error(), "Failed to trigger recurring task")
	}
	return server.SuccessResponse(c, http.StatusAccepted, map[string]string{"id": id}, "Recurring task triggered")
}

// queryInt parses a positive query parameter, falling back to def. A zero ceiling means unbounded.
func queryInt(c echo.Context, key string, def, ceiling int) int {
	v, err := strconv.Atoi(c.QueryParam(key))
	if err != nil || v <= 0 {
		return def
	}
	if ceiling > 0 && v > ceiling {
		return ceiling
	}
	return v
}

func validationErrors(err error) interface{} {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[strings.ToLower(fe.Field())] = fe.Tag()
	}
	return out
}
