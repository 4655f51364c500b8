package health

import (
	"context"
	"time"
)

// HealthStatus represents the health status of a component
type HealthStatus string

const (
	// StatusUp indicates the component is healthy
	StatusUp HealthStatus = "UP"
	// StatusDown indicates the component is unhealthy
	StatusDown HealthStatus = "DOWN"
	// StatusDegraded indicates the component works with reduced capacity
	StatusDegraded HealthStatus = "DEGRADED"
)

// HealthCheckResult represents the result of a health check
type HealthCheckResult struct {
	Name      string                 `json:"name"`
	Status    HealthStatus           `json:"status"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CheckedAt time.Time              `json:"checked_at"`
	Error     string                 `json:"error,omitempty"`
}

// HealthProvider is implemented by every component that can report its health
type HealthProvider interface {
	Name() string
	Check(ctx context.Context) HealthCheckResult
}

// AggregationStrategy defines how provider statuses combine into one
type AggregationStrategy string

const (
	// StrategyAll reports the worst provider status
	StrategyAll AggregationStrategy = "ALL"
	// StrategyCritical reports DOWN only for critical providers; other failures degrade
	StrategyCritical AggregationStrategy = "CRITICAL"
)

// HealthResponse is the JSON body of the health endpoints
type HealthResponse struct {
	Status    HealthStatus           `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    []HealthCheckResult    `json:"checks"`
	Details   map[string]interface{} `json:"details,omitempty"`
}
