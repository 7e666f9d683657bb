package aggregate

import (
	"context"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

// BatchAggregator is the aggregation entry point: it pulls a batch's records
// from the result store, folds them into summaries, and persists the
// artifacts. Safe to run against a batch still in flight; each pass
// overwrites the previous artifact.
type BatchAggregator struct {
	store      store.ResultStore
	aggregator *Aggregator
	artifacts  *ArtifactWriter
	exporter   *ParquetExporter
}

// NewBatchAggregator creates a BatchAggregator. The Parquet exporter is
// optional; pass nil to skip analytical exports.
func NewBatchAggregator(resultStore store.ResultStore, aggregator *Aggregator, artifacts *ArtifactWriter, exporter *ParquetExporter) (*BatchAggregator, error) {
	if resultStore == nil || aggregator == nil || artifacts == nil {
		return nil, exception.NewPipelineError(moduleName, "result store, aggregator and artifact writer are required", nil, false, false)
	}
	return &BatchAggregator{
		store:      resultStore,
		aggregator: aggregator,
		artifacts:  artifacts,
		exporter:   exporter,
	}, nil
}

// Run aggregates all records tagged with batchTag. afterSequence restricts
// the pass to records appended after the given store sequence; zero selects
// the whole batch.
func (b *BatchAggregator) Run(ctx context.Context, batchTag string, afterSequence int64) (*BatchReport, map[string]*model.SummaryRecord, error) {
	conditions := []store.Condition{
		store.Eq("metadata."+model.MetaBatchTag, batchTag),
		store.Eq("metadata."+model.MetaJobInfo, model.JobInfoMOFDiscovery),
	}
	if afterSequence > 0 {
		conditions = append(conditions, store.Gt("sequence", afterSequence))
	}

	records, err := b.store.Query(ctx, store.Where(conditions...))
	if err != nil {
		return nil, nil, err
	}
	logger.Infof("Aggregating %d job records for batch '%s'.", len(records), batchTag)

	summaries, err := b.aggregator.Aggregate(records)
	if err != nil {
		return nil, nil, err
	}

	report := BuildReport(batchTag, summaries)
	logger.Infof("%s", report.String())

	if err := b.artifacts.Write(ctx, batchTag, summaries); err != nil {
		return nil, nil, err
	}
	if b.exporter != nil {
		if err := b.exporter.Export(ctx, batchTag, summaries); err != nil {
			return nil, nil, err
		}
	}
	return report, summaries, nil
}
