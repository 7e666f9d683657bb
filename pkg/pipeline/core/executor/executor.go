// Package executor runs stage graphs. The local executor walks a graph in
// dependency order, evaluating guards as producing stages complete and
// appending one job record per executed stage to the result store. Skipped
// branches leave no records behind.
package executor

import (
	"context"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
)

// Executor runs one structure's stage graph to completion.
type Executor interface {
	// Execute walks the graph and returns the run outcome. Stage failures are
	// folded into the result, not returned as errors; the error return is
	// reserved for infrastructure failures (store writes, context
	// cancellation).
	Execute(ctx context.Context, g *model.StageGraph) (*RunResult, error)
}

// GraphSubmitter hands a stage graph to a remote execution backend instead of
// running it in-process. Submission is fire-and-forget: results land in the
// shared result store and are observed by querying it.
type GraphSubmitter interface {
	Submit(ctx context.Context, g *model.StageGraph) error
}

// SkipReason explains why a stage did not run.
type SkipReason string

const (
	// SkipGuardRejected means the guard on an incoming edge evaluated false.
	SkipGuardRejected SkipReason = "guard_rejected"
	// SkipUpstreamFailed means an upstream stage failed.
	SkipUpstreamFailed SkipReason = "upstream_failed"
	// SkipUpstreamSkipped means an upstream stage was itself skipped.
	SkipUpstreamSkipped SkipReason = "upstream_skipped"
)

// RunResult is the outcome of one graph run.
type RunResult struct {
	// StructureName identifies the input structure.
	StructureName string
	// Status is COMPLETED when every stage that was enabled completed, FAILED
	// when any executed stage failed.
	Status model.JobStatus
	// Records holds the job records appended during the run, one per executed
	// stage, in execution order.
	Records []*model.JobRecord
	// Skipped maps stage labels that did not run to the reason.
	Skipped map[string]SkipReason
}

// Failed reports whether any executed stage failed.
func (r *RunResult) Failed() bool {
	return r.Status == model.StatusFailed
}

// Record returns the record of the named stage, if it executed.
func (r *RunResult) Record(stageName string) (*model.JobRecord, bool) {
	for _, rec := range r.Records {
		if rec.Name == stageName {
			return rec, true
		}
	}
	return nil, false
}
