package worker

import (
	"fmt"
	"strings"
	"time"
)

// Priority selects which queue, and therefore which worker, serves a task
type Priority int

const (
	PriorityCritical Priority = iota
	PriorityHigh
	PriorityNormal
	PriorityLow
)

var priorityNames = [...]string{"critical", "high", "normal", "low"}

// Priorities returns every priority level, most urgent first
func Priorities() []Priority {
	return []Priority{PriorityCritical, PriorityHigh, PriorityNormal, PriorityLow}
}

// Valid reports whether p is one of the known levels
func (p Priority) Valid() bool {
	return p >= PriorityCritical && p <= PriorityLow
}

func (p Priority) String() string {
	if !p.Valid() {
		return fmt.Sprintf("priority(%d)", int(p))
	}
	return priorityNames[p]
}

// ParsePriority converts a case-insensitive name into a Priority
func ParsePriority(s string) (Priority, error) {
	for i, name := range priorityNames {
		if strings.EqualFold(s, name) {
			return Priority(i), nil
		}
	}
	return PriorityNormal, fmt.Errorf("unknown priority %q", s)
}

func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

func (p *Priority) UnmarshalText(b []byte) error {
	parsed, err := ParsePriority(string(b))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// Status is the lifecycle state of a task
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Statuses returns every status in lifecycle order
func Statuses() []Status {
	return []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed, StatusCancelled}
}

// ParseStatus converts a case-insensitive name into a Status
func ParseStatus(s string) (Status, error) {
	for _, st := range Statuses() {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// Args are the named arguments handed to a handler
type Args map[string]interface{}

func (a Args) clone() Args {
	if a == nil {
		return nil
	}
	out := make(Args, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// String returns the named argument as a string, or "" when absent or not a string
func (a Args) String(key string) string {
	s, _ := a[key].(string)
	return s
}

// task is the mutable record owned by the manager; every field is guarded by Manager.mu
type task struct {
	id         string
	name       string
	handler    Handler
	args       Args
	priority   Priority
	status     Status
	result     interface{}
	createdAt  time.Time
	startedAt  *time.Time
	finishedAt *time.Time
	errMessage string
	retryCount int
	maxRetries int
	timeout    time.Duration

	// attempt increases each time a worker takes the task; results from an older
	// attempt are discarded
	attempt     int
	nextRetryAt *time.Time
}

// terminal reports whether no further transition can happen
func (t *task) terminal() bool {
	switch t.status {
	case StatusCompleted, StatusCancelled:
		return true
	case StatusFailed:
		return t.nextRetryAt == nil
	}
	return false
}

func (t *task) info() TaskInfo {
	return TaskInfo{
		ID:             t.id,
		Name:           t.name,
		Priority:       t.priority,
		Status:         t.status,
		Args:           t.args.clone(),
		Result:         t.result,
		CreatedAt:      t.createdAt,
		StartedAt:      copyTime(t.startedAt),
		CompletedAt:    copyTime(t.finishedAt),
		ErrorMessage:   t.errMessage,
		RetryCount:     t.retryCount,
		MaxRetries:     t.maxRetries,
		TimeoutSeconds: t.timeout.Seconds(),
		NextRetryAt:    copyTime(t.nextRetryAt),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TaskInfo is a point-in-time copy of a task record
type TaskInfo struct {
	ID             string      `json:"id"`
	Name           string      `json:"name"`
	Priority       Priority    `json:"priority"`
	Status         Status      `json:"status"`
	Args           Args        `json:"args,omitempty"`
	Result         interface{} `json:"result,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	StartedAt      *time.Time  `json:"started_at,omitempty"`
	CompletedAt    *time.Time  `json:"completed_at,omitempty"`
	ErrorMessage   string      `json:"error_message,omitempty"`
	RetryCount     int         `json:"retry_count"`
	MaxRetries     int         `json:"max_retries"`
	TimeoutSeconds float64     `json:"timeout_seconds"`
	NextRetryAt    *time.Time  `json:"next_retry_at,omitempty"`
}

// IsTerminal reports whether the snapshot is in a final state.
// A failed task with a retry scheduled is not terminal.
func (i TaskInfo) IsTerminal() bool {
	switch i.Status {
	case StatusCompleted, StatusCancelled:
		return true
	case StatusFailed:
		return i.NextRetryAt == nil
	}
	return false
}

// Duration is the time between start and completion, zero until both are set
func (i TaskInfo) Duration() time.Duration {
	if i.StartedAt == nil || i.CompletedAt == nil {
		return 0
	}
	return i.CompletedAt.Sub(*i.StartedAt)
}

// SubmitOption customises a single submission
type SubmitOption func(*submitOptions)

type submitOptions struct {
	priority   Priority
	maxRetries int
	timeout    time.Duration
}

// WithPriority selects the queue; unknown levels fall back to normal
func WithPriority(p Priority) SubmitOption {
	return func(o *submitOptions) {
		if p.Valid() {
			o.priority = p
		}
	}
}

// WithMaxRetries caps how many times a failed task is re-enqueued
func WithMaxRetries(n int) SubmitOption {
	return func(o *submitOptions) {
		if n < 0 {
			n = 0
		}
		o.maxRetries = n
	}
}

// WithTimeout sets the per-attempt deadline; non-positive values are ignored
func WithTimeout(d time.Duration) SubmitOption {
	return func(o *submitOptions) {
		if d > 0 {
			o.timeout = d
		}
	}
}
