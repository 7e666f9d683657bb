package metrics

import (
	"context"

	"go.uber.org/fx"

	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
	metrics "github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and
// OpenTelemetryTracer. The concrete recorder is provided alongside the
// interface so the worker can mount its registry on an HTTP endpoint.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(func(r *PrometheusRecorder) metrics.MetricRecorder { return r }),
	// Provide OpenTelemetryTracer as a core metrics.Tracer interface.
	fx.Provide(fx.Annotate(
		NewOpenTelemetryTracer,
		fx.As(new(metrics.Tracer)),
	)),
	fx.Invoke(installTracing),
)

// installTracing installs the OTLP span exporter when an endpoint is
// configured, tying its flush to the container lifecycle. Without an
// endpoint spans stay on the global no-op provider.
func installTracing(lc fx.Lifecycle, cfg *config.Config) {
	endpoint := cfg.Mofpipe.System.Tracing.OTLPEndpoint
	if endpoint == "" {
		return
	}
	var flush func(context.Context) error
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			shutdown, err := InstallOTLPExporter(ctx, endpoint)
			if err != nil {
				return err
			}
			flush = shutdown
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if flush == nil {
				return nil
			}
			return flush(ctx)
		},
	})
}
