package metrics

import (
	"context"
	"time"

	model "github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordGraphStart does nothing.
func (r *NoOpMetricRecorder) RecordGraphStart(ctx context.Context, structureName string) {}

// RecordGraphEnd does nothing.
func (r *NoOpMetricRecorder) RecordGraphEnd(ctx context.Context, structureName string, status model.JobStatus) {
}

// RecordStageStart does nothing.
func (r *NoOpMetricRecorder) RecordStageStart(ctx context.Context, record *model.JobRecord) {}

// RecordStageEnd does nothing.
func (r *NoOpMetricRecorder) RecordStageEnd(ctx context.Context, record *model.JobRecord) {}

// RecordStageSkip does nothing.
func (r *NoOpMetricRecorder) RecordStageSkip(ctx context.Context, stageName string, reason string) {}

// RecordStructureSkip does nothing.
func (r *NoOpMetricRecorder) RecordStructureSkip(ctx context.Context, structureName string, reason string) {
}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartGraphSpan returns the context unchanged.
func (t *NoOpTracer) StartGraphSpan(ctx context.Context, structureName string) (context.Context, func()) {
	return ctx, func() {}
}

// StartStageSpan returns the context unchanged.
func (t *NoOpTracer) StartStageSpan(ctx context.Context, record *model.JobRecord) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
