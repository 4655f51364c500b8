package worker

import (
	"context"
	"sort"
	"sync"
	"time"
)

// NameStats aggregates handler executions for one task name
type NameStats struct {
	Succeeded    int64         `json:"succeeded"`
	Failed       int64         `json:"failed"`
	Retried      int64         `json:"retried"`
	TotalTime    time.Duration `json:"-"`
	AvgSeconds   float64       `json:"avg_seconds"`
	LastDuration time.Duration `json:"-"`
}

// StatsCollector records per-name execution counts and durations
type StatsCollector struct {
	mu    sync.RWMutex
	stats map[string]*NameStats
}

// NewStatsCollector creates an empty collector
func NewStatsCollector() *StatsCollector {
	return &StatsCollector{stats: make(map[string]*NameStats)}
}

// Record adds one execution outcome
func (c *StatsCollector) Record(name string, err error, duration time.Duration, retry int) {
	if name == "" {
		name = "unknown"
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.stats[name]
	if !ok {
		s = &NameStats{}
		c.stats[name] = s
	}
	if err != nil {
		s.Failed++
	} else {
		s.Succeeded++
	}
	if retry > 0 {
		s.Retried++
	}
	s.TotalTime += duration
	s.LastDuration = duration
}

// Snapshot returns a copy of every name's stats with averages filled in
func (c *StatsCollector) Snapshot() map[string]NameStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]NameStats, len(c.stats))
	for name, s := range c.stats {
		cp := *s
		if n := cp.Succeeded + cp.Failed; n > 0 {
			cp.AvgSeconds = cp.TotalTime.Seconds() / float64(n)
		}
		out[name] = cp
	}
	return out
}

// Names returns every name seen so far, sorted
func (c *StatsCollector) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	names := make([]string, 0, len(c.stats))
	for name := range c.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// MetricsMiddleware records every handler execution into collector
func MetricsMiddleware(collector *StatsCollector) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, args Args) (interface{}, error) {
			exec, _ := ExecutionFromContext(ctx)

			start := time.Now()
			result, err := next.Execute(ctx, args)
			collector.Record(exec.Name, err, time.Since(start), exec.RetryCount)

			return result, err
		})
	}
}
