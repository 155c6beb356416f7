// Package metrics exposes Prometheus instruments for the execution engine.
//
// A nil *Collector is valid and records nothing, so sessions built without
// metrics pay no cost.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Execution modes used as the "mode" label.
const (
	ModeSingle  = "single"
	ModeBatched = "batched"
)

// Collector groups the engine's instruments.
type Collector struct {
	commands  *prometheus.CounterVec
	queries   prometheus.Counter
	failures  prometheus.Counter
	batchSize prometheus.Histogram
	discarded prometheus.Counter
}

// NewCollector creates unregistered instruments.
func NewCollector() *Collector {
	return &Collector{
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "litebatch_commands_total",
			Help: "Physical commands executed, by mode.",
		}, []string{"mode"}),
		queries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litebatch_queries_total",
			Help: "Logical queries resolved.",
		}),
		failures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litebatch_command_failures_total",
			Help: "Physical commands that failed.",
		}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "litebatch_batch_size",
			Help:    "Logical queries per physical command.",
			Buckets: []float64{1, 2, 4, 8, 16, 32, 64},
		}),
		discarded: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "litebatch_discarded_queries_total",
			Help: "Deferred queries dropped by closing a session before draining.",
		}),
	}
}

// Register adds every instrument to reg.
func (c *Collector) Register(reg prometheus.Registerer) error {
	for _, col := range []prometheus.Collector{c.commands, c.queries, c.failures, c.batchSize, c.discarded} {
		if err := reg.Register(col); err != nil {
			return err
		}
	}
	return nil
}

// CommandExecuted records one successful command carrying n queries.
func (c *Collector) CommandExecuted(mode string, n int) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(mode).Inc()
	c.queries.Add(float64(n))
	c.batchSize.Observe(float64(n))
}

// CommandFailed records one failed command.
func (c *Collector) CommandFailed() {
	if c == nil {
		return
	}
	c.failures.Inc()
}

// QueriesDiscarded records deferred queries dropped at close.
func (c *Collector) QueriesDiscarded(n int) {
	if c == nil || n == 0 {
		return
	}
	c.discarded.Add(float64(n))
}
