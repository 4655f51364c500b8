package worker

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink mirrors each snapshot into gauges on a registry
type PrometheusSink struct {
	tasks        *prometheus.GaugeVec
	queueDepth   *prometheus.GaugeVec
	totals       *prometheus.GaugeVec
	nameOutcomes *prometheus.GaugeVec
	uptime       prometheus.Gauge
	tasksPerHour prometheus.Gauge
	successRate  prometheus.Gauge
	workersAlive prometheus.Gauge
	abandoned    prometheus.Gauge
	managerUp    prometheus.Gauge
	collectors   []prometheus.Collector
}

// NewPrometheusSink registers the task gauges on reg under namespace
func NewPrometheusSink(reg prometheus.Registerer, namespace string) (*PrometheusSink, error) {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "background_tasks", Name: name, Help: help,
		})
	}
	gaugeVec := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "background_tasks", Name: name, Help: help,
		}, labels)
	}

	s := &PrometheusSink{
		tasks:        gaugeVec("tasks", "Tasks in the registry by status", "status"),
		queueDepth:   gaugeVec("queue_depth", "Tasks waiting per priority queue", "priority"),
		totals:       gaugeVec("lifetime_total", "Lifetime task counters", "counter"),
		nameOutcomes: gaugeVec("executions", "Handler executions per task name and outcome", "name", "outcome"),
		uptime:       gauge("uptime_seconds", "Seconds since the task manager started"),
		tasksPerHour: gauge("tasks_per_hour", "Finished tasks per hour of uptime"),
		successRate:  gauge("success_rate_percent", "Completed share of finished tasks"),
		workersAlive: gauge("workers_alive", "Live worker loops"),
		abandoned:    gauge("abandoned_handlers", "Handlers still running after their deadline"),
		managerUp:    gauge("manager_running", "1 when the task manager is running"),
	}
	s.collectors = []prometheus.Collector{
		s.tasks, s.queueDepth, s.totals, s.nameOutcomes, s.uptime,
		s.tasksPerHour, s.successRate, s.workersAlive, s.abandoned, s.managerUp,
	}
	for _, c := range s.collectors {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("register task metrics: %w", err)
		}
	}
	return s, nil
}

// Publish sets every gauge from the snapshot
func (s *PrometheusSink) Publish(_ context.Context, snapshot MetricsSnapshot) error {
	for _, st := range Statuses() {
		s.tasks.WithLabelValues(string(st)).Set(float64(snapshot.StatusCounts[st]))
	}
	for _, p := range Priorities() {
		s.queueDepth.WithLabelValues(p.String()).Set(float64(snapshot.QueueDepth[p]))
	}
	s.totals.WithLabelValues("submitted").Set(float64(snapshot.Submitted))
	s.totals.WithLabelValues("completed").Set(float64(snapshot.Completed))
	s.totals.WithLabelValues("failed").Set(float64(snapshot.Failed))

	for name, st := range snapshot.Names {
		s.nameOutcomes.WithLabelValues(name, "succeeded").Set(float64(st.Succeeded))
		s.nameOutcomes.WithLabelValues(name, "failed").Set(float64(st.Failed))
	}

	s.uptime.Set(snapshot.UptimeSeconds)
	s.tasksPerHour.Set(snapshot.TasksPerHour)
	s.successRate.Set(snapshot.SuccessRate)
	s.workersAlive.Set(float64(snapshot.WorkersAlive))
	s.abandoned.Set(float64(snapshot.AbandonedHandlers))
	if snapshot.Running {
		s.managerUp.Set(1)
	} else {
		s.managerUp.Set(0)
	}
	return nil
}
