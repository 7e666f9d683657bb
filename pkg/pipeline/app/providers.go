// Package app assembles the pipeline's components into a runnable
// application using uber-fx, bridging the loaded configuration to each
// component's constructor.
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"

	storageAdapter "github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage"
	storageConfig "github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage/config"
	"github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage/gcs"
	"github.com/karstlab/mofpipe/pkg/pipeline/adapter/storage/local"
	"github.com/karstlab/mofpipe/pkg/pipeline/aggregate"
	"github.com/karstlab/mofpipe/pkg/pipeline/component/assess"
	"github.com/karstlab/mofpipe/pkg/pipeline/component/relax"
	"github.com/karstlab/mofpipe/pkg/pipeline/component/zeopp"
	config "github.com/karstlab/mofpipe/pkg/pipeline/core/config"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/graph"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/usecase"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/remote"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/gormstore"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/inmemory"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// NewPoreAnalyzer builds the zeo++ pore analyzer from configuration.
func NewPoreAnalyzer(cfg *config.Config) (*zeopp.PoreAnalyzer, error) {
	z := cfg.Mofpipe.Zeopp
	return zeopp.NewPoreAnalyzer(zeopp.Config{
		BinaryPath: z.BinaryPath,
		WorkDir:    z.WorkDir,
		Sorbates:   z.Sorbates,
		NumWorkers: z.Nproc,
		Timeout:    time.Duration(z.TimeoutSeconds) * time.Second,
	})
}

// NewValidator builds the MOF criteria validator from configuration.
func NewValidator(cfg *config.Config) *assess.Validator {
	return assess.NewValidator(cfg.Mofpipe.Zeopp.DecisionProbe)
}

// NewRelaxer builds the force-field relaxer from configuration.
func NewRelaxer(cfg *config.Config) (*relax.ForceFieldRelaxer, error) {
	r := cfg.Mofpipe.Relax
	calc, err := relax.NewCommandCalculator(r.CalculatorPath, r.WorkDir,
		time.Duration(r.TimeoutSeconds)*time.Second)
	if err != nil {
		return nil, err
	}
	return relax.NewForceFieldRelaxer(calc, relax.Config{
		Fmax:     r.Fmax,
		MaxSteps: r.MaxSteps,
		StepSize: r.StepSize,
	})
}

// NewStageGraphBuilder wires the components into the graph builder.
func NewStageGraphBuilder(analyzer *zeopp.PoreAnalyzer, validator *assess.Validator, relaxer *relax.ForceFieldRelaxer) (*graph.StageGraphBuilder, error) {
	return graph.NewStageGraphBuilder(analyzer, validator, relaxer)
}

// NewResultStore opens the configured result store backend and registers its
// Close with the Fx lifecycle.
func NewResultStore(lc fx.Lifecycle, cfg *config.Config) (store.ResultStore, error) {
	var (
		s   store.ResultStore
		err error
	)
	switch driver := cfg.Mofpipe.Store.Driver; driver {
	case "", "memory":
		s = inmemory.NewStore()
		logger.Debugf("Result store: in-memory.")
	default:
		s, err = gormstore.Open(gormstore.Config{Driver: driver, DSN: cfg.Mofpipe.Store.DSN})
		if err != nil {
			return nil, err
		}
		logger.Debugf("Result store: %s (%s).", driver, cfg.Mofpipe.Store.DSN)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// ExecutorParams defines the dependencies for NewExecutor. Recorder and
// Tracer fall back to no-ops when no backend module is loaded.
type ExecutorParams struct {
	fx.In
	Store    store.ResultStore
	Recorder metrics.MetricRecorder `optional:"true"`
	Tracer   metrics.Tracer         `optional:"true"`
}

// NewExecutor builds the local executor.
func NewExecutor(p ExecutorParams) (executor.Executor, error) {
	return executor.NewLocalExecutor(p.Store, p.Recorder, p.Tracer)
}

// NewGraphSubmitter builds the queue submitter when an endpoint is
// configured; otherwise distributed mode is unavailable and nil is provided.
func NewGraphSubmitter(cfg *config.Config) (executor.GraphSubmitter, error) {
	q := cfg.Mofpipe.Queue
	if q.Endpoint == "" {
		return nil, nil
	}
	return remote.NewQueueSubmitter(q.Endpoint, time.Duration(q.TimeoutSeconds)*time.Second)
}

// LauncherParams defines the dependencies for NewBatchLauncher.
type LauncherParams struct {
	fx.In
	Builder   *graph.StageGraphBuilder
	Executor  executor.Executor
	Submitter executor.GraphSubmitter `optional:"true"`
	Recorder  metrics.MetricRecorder  `optional:"true"`
}

// NewBatchLauncher builds the batch submission usecase.
func NewBatchLauncher(p LauncherParams) (*usecase.BatchLauncher, error) {
	return usecase.NewBatchLauncher(p.Builder, p.Executor, p.Submitter, p.Recorder)
}

// NewArtifactStore resolves the storage connection named by the output
// configuration and opens the matching object store adapter.
func NewArtifactStore(lc fx.Lifecycle, cfg *config.Config) (storageAdapter.ObjectStore, error) {
	out := cfg.Mofpipe.Output
	raw, ok := cfg.Mofpipe.StorageConfigs[out.StorageRef]
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' is not configured", out.StorageRef)
	}
	rawMap, ok := raw.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("storage connection '%s' has a malformed configuration", out.StorageRef)
	}
	sc, err := storageConfig.FromMap(rawMap)
	if err != nil {
		return nil, err
	}

	var objectStore storageAdapter.ObjectStore
	switch sc.Type {
	case local.ProviderType, "":
		objectStore, err = local.NewLocalAdapter(sc, out.StorageRef)
	case gcs.ProviderType:
		objectStore, err = gcs.NewGCSAdapter(context.Background(), sc, out.StorageRef)
	default:
		return nil, fmt.Errorf("unsupported storage type '%s' for connection '%s'", sc.Type, out.StorageRef)
	}
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return objectStore.Close()
		},
	})
	return objectStore, nil
}

// NewAggregator builds the summary fold with the configured validator.
func NewAggregator(validator *assess.Validator) (*aggregate.Aggregator, error) {
	return aggregate.NewAggregator(validator)
}

// NewArtifactWriter builds the compressed summary artifact writer.
func NewArtifactWriter(objectStore storageAdapter.ObjectStore, cfg *config.Config) (*aggregate.ArtifactWriter, error) {
	out := cfg.Mofpipe.Output
	return aggregate.NewArtifactWriter(objectStore, out.Bucket, out.BaseDir)
}

// NewParquetExporter builds the Parquet exporter when enabled.
func NewParquetExporter(objectStore storageAdapter.ObjectStore, cfg *config.Config) (*aggregate.ParquetExporter, error) {
	out := cfg.Mofpipe.Output
	if !out.ParquetExport {
		return nil, nil
	}
	return aggregate.NewParquetExporter(objectStore, out.Bucket, out.BaseDir)
}

// AggregatorParams defines the dependencies for NewBatchAggregator.
type AggregatorParams struct {
	fx.In
	Store      store.ResultStore
	Aggregator *aggregate.Aggregator
	Artifacts  *aggregate.ArtifactWriter
	Exporter   *aggregate.ParquetExporter `optional:"true"`
}

// NewBatchAggregator builds the aggregation service.
func NewBatchAggregator(p AggregatorParams) (*aggregate.BatchAggregator, error) {
	return aggregate.NewBatchAggregator(p.Store, p.Aggregator, p.Artifacts, p.Exporter)
}

// NewQueueServer builds the worker-side queue server.
func NewQueueServer(builder *graph.StageGraphBuilder, exec executor.Executor, cfg *config.Config) (*remote.QueueServer, error) {
	return remote.NewQueueServer(builder, exec, cfg.Mofpipe.Zeopp.Nproc)
}
