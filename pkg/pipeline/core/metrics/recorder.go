package metrics

import (
	"context"
	"time"

	model "github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics about
// pipeline execution: graph runs, stage executions, skips, and durations.
// It decouples the executor from the metrics backend (e.g. Prometheus).
type MetricRecorder interface {
	// RecordGraphStart records the start of one structure's graph run.
	RecordGraphStart(ctx context.Context, structureName string)

	// RecordGraphEnd records the completion of one structure's graph run with
	// its terminal status.
	RecordGraphEnd(ctx context.Context, structureName string, status model.JobStatus)

	// RecordStageStart records the start of one stage execution.
	RecordStageStart(ctx context.Context, record *model.JobRecord)

	// RecordStageEnd records the end of one stage execution. The record's
	// status distinguishes success from failure.
	RecordStageEnd(ctx context.Context, record *model.JobRecord)

	// RecordStageSkip records a stage that was not run because its guard
	// rejected it or an upstream stage failed.
	RecordStageSkip(ctx context.Context, stageName string, reason string)

	// RecordStructureSkip records an input structure dropped before any graph
	// was built (e.g. a parse failure).
	RecordStructureSkip(ctx context.Context, structureName string, reason string)

	// RecordDuration records the execution time of a named operation with
	// optional tags.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
