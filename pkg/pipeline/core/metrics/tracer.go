package metrics

import (
	"context"

	model "github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing of pipeline runs.
// It integrates with tracing systems like OpenTelemetry to visualize graph
// and stage execution flows.
type Tracer interface {
	// StartGraphSpan starts a span covering one structure's whole graph run.
	// Returns a context carrying the span and a function to end it; call the
	// returned function in a defer statement.
	StartGraphSpan(ctx context.Context, structureName string) (context.Context, func())

	// StartStageSpan starts a span for a single stage execution, as a child of
	// the graph span.
	StartStageSpan(ctx context.Context, record *model.JobRecord) (context.Context, func())

	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records a named event with attributes in the current span.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
