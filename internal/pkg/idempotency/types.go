package idempotency

import (
	"context"
	"time"
)

// Status represents the state of an idempotency record
type Status string

const (
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
)

// Record is what storage keeps per key
type Record struct {
	Key       string    `json:"key"`
	Status    Status    `json:"status"`
	Result    string    `json:"result,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage persists records with a TTL
type Storage interface {
	// Load returns the record for key, or nil when absent or expired
	Load(ctx context.Context, key string) (*Record, error)

	// TryMarkProcessing atomically claims key; false means someone else holds it
	TryMarkProcessing(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// SaveResult replaces the processing marker with the completed result
	SaveResult(ctx context.Context, key string, result string, ttl time.Duration) error

	// Release drops a claim so the key can be retried
	Release(ctx context.Context, key string) error
}
