// Package metrics provides the concrete metrics and tracing backends for the
// pipeline: a Prometheus recorder and an OpenTelemetry tracer.
package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	metrics "github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Graph metrics
	graphStatusCounter   *prometheus.CounterVec
	graphDurationSeconds *prometheus.HistogramVec

	// Stage metrics
	stageStatusCounter   *prometheus.CounterVec
	stageSkipCounter     *prometheus.CounterVec
	structureSkipCounter *prometheus.CounterVec

	// Generic operation durations (stage execution, tool invocations)
	operationDurationSeconds *prometheus.HistogramVec

	mu         sync.Mutex
	graphStart map[string]time.Time
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() *PrometheusRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		graphStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_graph_status_total",
			Help: "Total number of graph runs by terminal status.",
		}, []string{"status"}),
		graphDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_graph_duration_seconds",
			Help:    "Duration of whole-graph runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"status"}),
		stageStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_status_total",
			Help: "Total number of stage executions by stage and status.",
		}, []string{"stage_name", "status"}),
		stageSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_stage_skip_total",
			Help: "Total stages skipped by stage and reason.",
		}, []string{"stage_name", "reason"}),
		structureSkipCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pipeline_structure_skip_total",
			Help: "Total input structures dropped before execution, by reason.",
		}, []string{"reason"}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "pipeline_operation_duration_seconds",
			Help:    "Duration of named pipeline operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "stage_name"}),

		graphStart: make(map[string]time.Time),
	}

	registry.MustRegister(r.graphStatusCounter)
	registry.MustRegister(r.graphDurationSeconds)
	registry.MustRegister(r.stageStatusCounter)
	registry.MustRegister(r.stageSkipCounter)
	registry.MustRegister(r.structureSkipCounter)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry, for exposing via an HTTP
// handler.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordGraphStart records the start of one structure's graph run.
func (r *PrometheusRecorder) RecordGraphStart(ctx context.Context, structureName string) {
	r.mu.Lock()
	r.graphStart[structureName] = time.Now()
	r.mu.Unlock()
	logger.Debugf("Metrics: Graph for '%s' started.", structureName)
}

// RecordGraphEnd records the completion of one structure's graph run.
func (r *PrometheusRecorder) RecordGraphEnd(ctx context.Context, structureName string, status model.JobStatus) {
	r.graphStatusCounter.WithLabelValues(status.String()).Inc()
	r.mu.Lock()
	start, ok := r.graphStart[structureName]
	if ok {
		delete(r.graphStart, structureName)
	}
	r.mu.Unlock()
	if ok {
		duration := time.Since(start).Seconds()
		r.graphDurationSeconds.WithLabelValues(status.String()).Observe(duration)
		logger.Debugf("Metrics: Graph for '%s' ended. Duration: %.3fs", structureName, duration)
	}
}

// RecordStageStart records the start of one stage execution.
func (r *PrometheusRecorder) RecordStageStart(ctx context.Context, record *model.JobRecord) {
	r.stageStatusCounter.WithLabelValues(record.Name, record.Status.String()).Inc()
	logger.Debugf("Metrics: Stage '%s' started for '%s'.", record.Name, record.StructureName())
}

// RecordStageEnd records the end of one stage execution.
func (r *PrometheusRecorder) RecordStageEnd(ctx context.Context, record *model.JobRecord) {
	r.stageStatusCounter.WithLabelValues(record.Name, record.Status.String()).Inc()
	logger.Debugf("Metrics: Stage '%s' ended with status %s.", record.Name, record.Status)
}

// RecordStageSkip records a stage that was not run.
func (r *PrometheusRecorder) RecordStageSkip(ctx context.Context, stageName string, reason string) {
	r.stageSkipCounter.WithLabelValues(stageName, reason).Inc()
}

// RecordStructureSkip records an input structure dropped before execution.
func (r *PrometheusRecorder) RecordStructureSkip(ctx context.Context, structureName string, reason string) {
	r.structureSkipCounter.WithLabelValues(reason).Inc()
}

// RecordDuration records the execution time of a named operation.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name, tags["stage_name"]).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
