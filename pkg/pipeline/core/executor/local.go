package executor

import (
	"context"
	"time"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/serialization"
)

const moduleName = "executor"

// LocalExecutor runs stage graphs in-process.
type LocalExecutor struct {
	store    store.ResultStore
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer
}

// NewLocalExecutor creates a LocalExecutor writing records to the given
// store. Nil recorder or tracer fall back to no-op implementations.
func NewLocalExecutor(resultStore store.ResultStore, recorder metrics.MetricRecorder, tracer metrics.Tracer) (*LocalExecutor, error) {
	if resultStore == nil {
		return nil, exception.NewPipelineError(moduleName, "result store is required", nil, false, false)
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &LocalExecutor{store: resultStore, recorder: recorder, tracer: tracer}, nil
}

// Execute walks the graph in dependency order. A stage runs only when every
// incoming edge is satisfied: its source stage completed and its guard, if
// any, admitted the source's output. Guards are evaluated once, immediately
// after the producing stage completes. A stage failure is recorded and its
// downstream stays unexecuted; independent branches are unaffected. Stages
// are never retried.
func (e *LocalExecutor) Execute(ctx context.Context, g *model.StageGraph) (*RunResult, error) {
	ctx, endSpan := e.tracer.StartGraphSpan(ctx, g.StructureName)
	defer endSpan()
	e.recorder.RecordGraphStart(ctx, g.StructureName)

	result := &RunResult{
		StructureName: g.StructureName,
		Status:        model.StatusCompleted,
		Skipped:       make(map[string]SkipReason),
	}

	outputs := make(map[string]interface{}, g.Len())
	completed := make(map[string]bool, g.Len())
	failed := make(map[string]bool)

	for _, node := range g.Topological() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		name := node.Stage.Name()
		if reason, skip := e.skipReason(g, name, completed, failed, outputs, result.Skipped); skip {
			result.Skipped[name] = reason
			e.recorder.RecordStageSkip(ctx, name, string(reason))
			logger.Debugf("Stage '%s' for structure '%s' skipped (%s).", name, g.StructureName, reason)
			continue
		}

		record := model.NewJobRecord(name, node.Metadata)
		stageCtx, endStageSpan := e.tracer.StartStageSpan(ctx, record)
		e.recorder.RecordStageStart(stageCtx, record)
		started := time.Now()

		output, err := e.runStage(stageCtx, node, model.StageInput{
			Structure: g.Structure,
			Upstream:  outputs,
		})

		e.recorder.RecordDuration(stageCtx, "stage_execution", time.Since(started),
			map[string]string{"stage": name, "structure": g.StructureName})

		if err != nil {
			record.MarkAsFailed(err)
			failed[name] = true
			result.Status = model.StatusFailed
			e.tracer.RecordError(stageCtx, moduleName, err)
			logger.Errorf("Stage '%s' for structure '%s' failed: %v", name, g.StructureName, err)
		} else {
			payload, merr := serialization.MarshalOutput(output)
			if merr != nil {
				endStageSpan()
				return nil, merr
			}
			record.MarkAsCompleted(payload)
			completed[name] = true
			outputs[name] = output
		}

		e.recorder.RecordStageEnd(stageCtx, record)
		endStageSpan()

		if perr := e.store.Put(ctx, record); perr != nil {
			return nil, perr
		}
		result.Records = append(result.Records, record)
	}

	e.recorder.RecordGraphEnd(ctx, g.StructureName, result.Status)
	return result, nil
}

// skipReason decides whether a stage must be skipped given the state of its
// incoming edges.
func (e *LocalExecutor) skipReason(
	g *model.StageGraph,
	name string,
	completed, failed map[string]bool,
	outputs map[string]interface{},
	skipped map[string]SkipReason,
) (SkipReason, bool) {
	for _, edge := range g.InEdges(name) {
		if failed[edge.From] {
			return SkipUpstreamFailed, true
		}
		if _, wasSkipped := skipped[edge.From]; wasSkipped {
			return SkipUpstreamSkipped, true
		}
		if !completed[edge.From] {
			// Source never ran for another reason; treat as skipped upstream.
			return SkipUpstreamSkipped, true
		}
		if edge.Guard != nil && !edge.Guard.Allow(outputs[edge.From]) {
			return SkipGuardRejected, true
		}
	}
	return "", false
}

// runStage executes one stage, converting panics into failures so a
// misbehaving component cannot take down the batch.
func (e *LocalExecutor) runStage(ctx context.Context, node *model.StageNode, in model.StageInput) (output interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.NewPipelineErrorf(moduleName,
				"stage '%s' panicked: %v", node.Stage.Name(), r, false, false)
		}
	}()
	return node.Stage.Execute(ctx, in)
}

var _ Executor = (*LocalExecutor)(nil)
