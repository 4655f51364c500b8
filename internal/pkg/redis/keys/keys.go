package keys

import "fmt"

// Namespaces/prefixes
const (
	PrefixMetrics = "metrics"
	ScopeTasks    = "background_tasks"
)

// TaskMetricsKey returns the hash holding the latest task metrics of one manager
// Example: metrics:background_tasks:<instanceID>
func TaskMetricsKey(instanceID string) string {
	return fmt.Sprintf("%s:%s:%s", PrefixMetrics, ScopeTasks, instanceID)
}

// TaskMetricsIndexKey returns the set of manager instances that published metrics
// Example: metrics:background_tasks:instances
func TaskMetricsIndexKey() string {
	return fmt.Sprintf("%s:%s:instances", PrefixMetrics, ScopeTasks)
}

// SubmitIdempotencyKey returns the key guarding one client-supplied Idempotency-Key
// Example: idempotency:background_tasks:<key>
func SubmitIdempotencyKey(key string) string {
	return fmt.Sprintf("idempotency:%s:%s", ScopeTasks, key)
}
