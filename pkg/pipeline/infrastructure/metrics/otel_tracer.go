package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkresource "go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	model "github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	metrics "github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const tracerName = "github.com/karstlab/mofpipe/pipeline"

// OpenTelemetryTracer is an implementation of metrics.Tracer using
// OpenTelemetry. Spans are created against the global tracer provider, so it
// works with or without an exporter installed.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer() *OpenTelemetryTracer {
	return &OpenTelemetryTracer{tracer: otel.Tracer(tracerName)}
}

// InstallOTLPExporter configures the global tracer provider with an OTLP gRPC
// exporter. Returns a shutdown function that flushes pending spans; call it
// before process exit.
func InstallOTLPExporter(ctx context.Context, endpoint string) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(sdkresource.NewSchemaless(
			attribute.String("service.name", "mofpipe"),
		)),
	)
	otel.SetTracerProvider(provider)
	logger.Infof("Tracing: OTLP exporter installed (endpoint: %s).", endpoint)
	return provider.Shutdown, nil
}

// StartGraphSpan starts a span covering one structure's whole graph run.
func (t *OpenTelemetryTracer) StartGraphSpan(ctx context.Context, structureName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.graph",
		trace.WithAttributes(attribute.String("structure.name", structureName)),
	)
	return ctx, func() { span.End() }
}

// StartStageSpan starts a span for a single stage execution, as a child of
// the graph span carried in ctx.
func (t *OpenTelemetryTracer) StartStageSpan(ctx context.Context, record *model.JobRecord) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.stage."+record.Name,
		trace.WithAttributes(
			attribute.String("record.id", record.ID),
			attribute.String("structure.name", record.StructureName()),
		),
	)
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, module)
}

// RecordEvent records a named event with attributes in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", v)))
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
