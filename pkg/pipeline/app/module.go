package app

import (
	"go.uber.org/fx"

	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
	inframetrics "github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/metrics"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// Module assembles every pipeline component into one Fx module. Commands
// populate just the pieces they need; constructors for the rest never run.
var Module = fx.Options(
	logger.Module,
	config.Module,
	inframetrics.Module,

	fx.Provide(NewPoreAnalyzer),
	fx.Provide(NewValidator),
	fx.Provide(NewRelaxer),
	fx.Provide(NewStageGraphBuilder),
	fx.Provide(NewResultStore),
	fx.Provide(NewExecutor),
	fx.Provide(NewGraphSubmitter),
	fx.Provide(NewBatchLauncher),
	fx.Provide(NewArtifactStore),
	fx.Provide(NewAggregator),
	fx.Provide(NewArtifactWriter),
	fx.Provide(NewParquetExporter),
	fx.Provide(NewBatchAggregator),
	fx.Provide(NewQueueServer),
)
