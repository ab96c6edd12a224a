package observability

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the Prometheus collectors for the execution engine,
// grounded on internal/metrics/metrics.go's per-subsystem CounterVec/
// HistogramVec/GaugeVec shape (same "<namespace>_<subject>_<unit>"
// naming, same constant-bucket histograms) narrowed to this engine's
// own subsystems.
type Metrics struct {
	ExecutionsTotal    *prometheus.CounterVec
	ExecutionDuration  *prometheus.HistogramVec
	ExecutionsActive   *prometheus.GaugeVec
	NodeExecutionTotal *prometheus.CounterVec
	NodeDuration       *prometheus.HistogramVec
	ApprovalResolved   *prometheus.CounterVec
	EventBackpressure  prometheus.Counter
	ArchiveBatchSize   prometheus.Histogram
}

// NewMetrics constructs and registers every collector on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ExecutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_executions_total",
			Help: "Total number of executions by trigger type and terminal status.",
		}, []string{"trigger_type", "status"}),
		ExecutionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_execution_duration_seconds",
			Help:    "Execution duration in seconds by trigger type.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"trigger_type"}),
		ExecutionsActive: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "engine_executions_active",
			Help: "Number of executions currently running or waiting.",
		}, []string{"status"}),
		NodeExecutionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_node_executions_total",
			Help: "Total number of node executions by node type and status.",
		}, []string{"node_type", "status"}),
		NodeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "engine_node_execution_duration_seconds",
			Help:    "Node execution duration in seconds by node type.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
		}, []string{"node_type"}),
		ApprovalResolved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "engine_approvals_resolved_total",
			Help: "Total number of approvals resolved by mode and final status.",
		}, []string{"mode", "status"}),
		EventBackpressure: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "engine_event_backpressure_total",
			Help: "Total number of events dropped across all subscribers due to a full queue.",
		}),
		ArchiveBatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "engine_archive_batch_size",
			Help:    "Number of executions archived per sweep.",
			Buckets: []float64{1, 5, 10, 25, 50, 100},
		}),
	}

	reg.MustRegister(
		m.ExecutionsTotal,
		m.ExecutionDuration,
		m.ExecutionsActive,
		m.NodeExecutionTotal,
		m.NodeDuration,
		m.ApprovalResolved,
		m.EventBackpressure,
		m.ArchiveBatchSize,
	)
	return m
}
