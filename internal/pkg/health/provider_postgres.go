package health

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// PostgresProvider checks the archive database
type PostgresProvider struct {
	name string
	db   *sql.DB
}

// NewPostgresProvider creates a new Postgres health provider
func NewPostgresProvider(name string, db *sql.DB) *PostgresProvider {
	if name == "" {
		name = "postgres"
	}
	return &PostgresProvider{name: name, db: db}
}

func (p *PostgresProvider) Name() string {
	return p.name
}

func (p *PostgresProvider) Check(ctx context.Context) HealthCheckResult {
	result := HealthCheckResult{
		Name:      p.name,
		CheckedAt: time.Now(),
		Details:   make(map[string]interface{}),
	}

	start := time.Now()
	err := p.db.PingContext(ctx)
	latency := time.Since(start)
	result.Details["latency_ms"] = latency.Milliseconds()

	if err != nil {
		result.Status = StatusDown
		result.Error = fmt.Sprintf("failed to ping database: %v", err)
		return result
	}

	stats := p.db.Stats()
	result.Details["open_connections"] = stats.OpenConnections
	result.Details["in_use"] = stats.InUse
	result.Details["idle"] = stats.Idle

	switch {
	case latency > time.Second:
		result.Status = StatusDegraded
		result.Details["message"] = "high latency detected"
	case stats.MaxOpenConnections > 0 && stats.InUse >= stats.MaxOpenConnections:
		result.Status = StatusDegraded
		result.Details["message"] = "connection pool exhausted"
	default:
		result.Status = StatusUp
	}
	return result
}
