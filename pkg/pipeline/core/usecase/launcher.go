// Package usecase wires the pipeline's components into the caller-facing
// batch submission flow: load structures, build their stage graphs, and run
// them locally or hand them to the distributed queue.
package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/karstlab/mofpipe/pkg/pipeline/component/cif"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/graph"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/metrics"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "usecase"

// Execution modes.
const (
	ModeLocal       = "local"
	ModeDistributed = "distributed"
)

// SubmitRequest describes one batch submission.
type SubmitRequest struct {
	// Paths are the structure file paths to submit.
	Paths []string
	// BatchTag groups the submission's records for later aggregation.
	BatchTag string
	// Mode selects local or distributed execution.
	Mode string
	// Metadata is merged into every job record's metadata.
	Metadata map[string]string
}

// InputReport is the per-input outcome of a submission.
type InputReport struct {
	Path          string `json:"path"`
	StructureName string `json:"structure_name,omitempty"`
	Submitted     bool   `json:"submitted"`
	// Reason explains a skip; empty for submitted inputs.
	Reason string `json:"reason,omitempty"`
}

// SubmitReport summarizes one batch submission: per input, either
// "submitted" or "skipped" with a reason.
type SubmitReport struct {
	BatchTag  string        `json:"batch_tag"`
	Mode      string        `json:"mode"`
	Submitted int           `json:"submitted"`
	Skipped   int           `json:"skipped"`
	Inputs    []InputReport `json:"inputs"`
}

// BatchLauncher accepts batch submissions and drives them through the
// configured execution path.
type BatchLauncher struct {
	builder   *graph.StageGraphBuilder
	executor  executor.Executor
	submitter executor.GraphSubmitter
	recorder  metrics.MetricRecorder
}

// NewBatchLauncher creates a BatchLauncher. The submitter may be nil when
// distributed mode is not configured.
func NewBatchLauncher(builder *graph.StageGraphBuilder, exec executor.Executor, submitter executor.GraphSubmitter, recorder metrics.MetricRecorder) (*BatchLauncher, error) {
	if builder == nil || exec == nil {
		return nil, exception.NewPipelineError(moduleName, "graph builder and executor are required", nil, false, false)
	}
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	return &BatchLauncher{
		builder:   builder,
		executor:  exec,
		submitter: submitter,
		recorder:  recorder,
	}, nil
}

// Submit runs one batch. A structure file that fails to parse skips that
// entry with a reason and the batch continues; a fatal configuration error
// aborts the whole batch immediately. In local mode each graph runs to
// completion before the next begins; in distributed mode the call returns
// once every graph's submission is acknowledged.
func (l *BatchLauncher) Submit(ctx context.Context, req SubmitRequest) (*SubmitReport, error) {
	if req.BatchTag == "" {
		return nil, exception.NewPipelineError(moduleName, "batch tag is required", nil, false, false)
	}
	mode := req.Mode
	if mode == "" {
		mode = ModeLocal
	}
	if mode == ModeDistributed && l.submitter == nil {
		return nil, exception.NewPipelineError(moduleName, "distributed mode requested but no queue submitter is configured", nil, false, false)
	}

	report := &SubmitReport{BatchTag: req.BatchTag, Mode: mode}
	for _, path := range req.Paths {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		entry, err := l.submitOne(ctx, path, req, mode)
		if err != nil {
			// Only fatal configuration errors propagate; everything else became
			// a skip entry.
			return report, err
		}
		report.Inputs = append(report.Inputs, entry)
		if entry.Submitted {
			report.Submitted++
		} else {
			report.Skipped++
		}
	}

	logger.Infof("Batch '%s': %d submitted, %d skipped (%s mode).", req.BatchTag, report.Submitted, report.Skipped, mode)
	return report, nil
}

// submitOne loads, builds, and dispatches a single structure.
func (l *BatchLauncher) submitOne(ctx context.Context, path string, req SubmitRequest, mode string) (InputReport, error) {
	structure, err := cif.Load(path)
	if err != nil {
		if errors.Is(err, exception.ErrStructureParse) {
			logger.Warnf("Skipping structure file '%s': %v", path, err)
			l.recorder.RecordStructureSkip(ctx, path, "parse_error")
			return InputReport{Path: path, Submitted: false, Reason: fmt.Sprintf("parse error: %v", err)}, nil
		}
		return InputReport{}, err
	}

	metadata := map[string]string{
		model.MetaBatchTag: req.BatchTag,
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	g, err := l.builder.Build(*structure, metadata)
	if err != nil {
		return InputReport{}, err
	}

	if mode == ModeDistributed {
		if err := l.submitter.Submit(ctx, g); err != nil {
			if exception.IsFatal(err) {
				return InputReport{}, err
			}
			logger.Warnf("Skipping structure '%s': queue submission failed: %v", structure.Name, err)
			return InputReport{Path: path, StructureName: structure.Name, Submitted: false,
				Reason: fmt.Sprintf("submission failed: %v", exception.ExtractErrorMessage(err))}, nil
		}
		return InputReport{Path: path, StructureName: structure.Name, Submitted: true}, nil
	}

	result, err := l.executor.Execute(ctx, g)
	if err != nil {
		if exception.IsFatal(err) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return InputReport{}, err
		}
		logger.Warnf("Skipping structure '%s': execution could not start: %v", structure.Name, err)
		return InputReport{Path: path, StructureName: structure.Name, Submitted: false,
			Reason: fmt.Sprintf("execution failed: %v", exception.ExtractErrorMessage(err))}, nil
	}
	if result.Failed() {
		logger.Infof("Structure '%s' finished with stage failures; records were persisted.", structure.Name)
	}
	return InputReport{Path: path, StructureName: structure.Name, Submitted: true}, nil
}
