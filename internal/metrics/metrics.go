// Package metrics exposes Prometheus counters and histograms for the
// pipeline's stage executions, simulator-adapter calls, and workflow
// outcomes, served on a dedicated /metrics endpoint the way the teacher's
// ServerConfig.EnableMetrics/MetricsPort anticipate.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns its own registry so multiple instances (one per test) never
// collide on Prometheus's global default registerer.
type Metrics struct {
	registry *prometheus.Registry

	StageRunsTotal *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec

	SimulatorCallsTotal   *prometheus.CounterVec
	SimulatorCallDuration *prometheus.HistogramVec

	WorkflowsStarted   prometheus.Counter
	WorkflowsCompleted prometheus.Counter
	WorkflowsFailed    prometheus.Counter
}

// New builds and registers a fresh set of metrics under namespace
// "robustness_pipeline" (or the given one).
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "robustness_pipeline"
	}
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		StageRunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_runs_total",
			Help:      "Total number of stage executions by stage name and outcome",
		}, []string{"stage", "status"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"stage"}),
		SimulatorCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "calls_total",
			Help:      "Total number of simulator adapter calls by operation and outcome",
		}, []string{"operation", "status"}),
		SimulatorCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "simulator",
			Name:      "call_duration_seconds",
			Help:      "Simulator adapter call duration in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		}, []string{"operation"}),
		WorkflowsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "workflows_started_total",
			Help:      "Total number of workflows started",
		}),
		WorkflowsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "workflows_completed_total",
			Help:      "Total number of workflows that completed without an unrecovered failure",
		}),
		WorkflowsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "workflows_failed_total",
			Help:      "Total number of workflows that ended in a failed state",
		}),
	}

	reg.MustRegister(
		m.StageRunsTotal, m.StageDuration,
		m.SimulatorCallsTotal, m.SimulatorCallDuration,
		m.WorkflowsStarted, m.WorkflowsCompleted, m.WorkflowsFailed,
	)
	return m
}

// Handler serves this instance's registry in the Prometheus exposition
// format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func statusLabel(success bool, okWord, failWord string) string {
	if success {
		return okWord
	}
	return failWord
}

// RecordStage records one stage execution's outcome and wall-clock cost.
func (m *Metrics) RecordStage(stage string, success bool, seconds float64) {
	m.StageRunsTotal.WithLabelValues(stage, statusLabel(success, "passed", "failed")).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordSimulatorCall records one simulator adapter call (compile,
// optimize, backtest).
func (m *Metrics) RecordSimulatorCall(operation string, success bool, seconds float64) {
	m.SimulatorCallsTotal.WithLabelValues(operation, statusLabel(success, "ok", "error")).Inc()
	m.SimulatorCallDuration.WithLabelValues(operation).Observe(seconds)
}
