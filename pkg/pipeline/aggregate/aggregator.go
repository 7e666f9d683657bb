// Package aggregate reduces a batch's job records into one summary per input
// structure. A batch's records arrive out of order and possibly incomplete;
// aggregation is a pure fold over whatever records exist, so running it
// against an in-flight batch is valid, partial, and idempotent.
package aggregate

import (
	"encoding/json"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/serialization"
)

const moduleName = "aggregate"

// Validator re-derives the MOF verdict from post-relaxation metrics.
type Validator interface {
	Validate(metrics model.PoreMetrics) (*model.ValidationVerdict, error)
}

// Aggregator folds job records into per-structure summaries.
type Aggregator struct {
	validator Validator
}

// NewAggregator creates an Aggregator using the given validator for
// post-relaxation verdicts.
func NewAggregator(validator Validator) (*Aggregator, error) {
	if validator == nil {
		return nil, exception.NewPipelineError(moduleName, "validator is required", nil, false, false)
	}
	return &Aggregator{validator: validator}, nil
}

// Aggregate groups records by structure name and reduces each group to a
// SummaryRecord:
//
//   - no positive initial verdict: the chain legitimately ended after
//     validation; the structure is complete and not a MOF.
//   - positive initial verdict but no relaxation output yet: incomplete; the
//     initial verdict is reported as provisional.
//   - relaxation ran but did not converge: terminal; the last-trusted
//     analysis is the initial one.
//   - relaxation converged: the post-relaxation analysis decides. Structures
//     whose initial verdict was positive but whose final verdict is negative
//     are flagged NoLongerMOF.
//
// When a (structure, stage) pair has several records, e.g. after a rerun,
// the one written last wins; earlier records are ignored, never averaged.
func (a *Aggregator) Aggregate(records []*model.JobRecord) (map[string]*model.SummaryRecord, error) {
	groups := make(map[string]map[string]*model.JobRecord)
	metadata := make(map[string]map[string]string)

	for _, r := range records {
		name := r.StructureName()
		if name == "" {
			logger.Warnf("Ignoring job record '%s' without a structure name.", r.ID)
			continue
		}
		stages, ok := groups[name]
		if !ok {
			stages = make(map[string]*model.JobRecord)
			groups[name] = stages
		}
		if prev, exists := stages[r.Name]; !exists || r.Sequence > prev.Sequence {
			stages[r.Name] = r
		}
		if _, ok := metadata[name]; !ok {
			metadata[name] = r.Metadata
		}
	}

	summaries := make(map[string]*model.SummaryRecord, len(groups))
	for name, stages := range groups {
		summary, err := a.reduce(stages)
		if err != nil {
			return nil, err
		}
		summary.Metadata = cloneMetadata(metadata[name])
		delete(summary.Metadata, model.MetaStageName)
		summaries[name] = summary
	}
	return summaries, nil
}

// reduce folds one structure's latest per-stage records into a summary.
func (a *Aggregator) reduce(stages map[string]*model.JobRecord) (*model.SummaryRecord, error) {
	summary := &model.SummaryRecord{
		StageOutputs: stageOutputs(stages),
	}

	verdict, err := initialVerdict(stages)
	if err != nil {
		return nil, err
	}
	if verdict == nil || !verdict.IsMOF {
		// Absence of relaxation is expected here, not incomplete.
		summary.HasCompleteOutput = true
		summary.IsMOF = false
		return summary, nil
	}

	relaxation, err := relaxationOutput(stages)
	if err != nil {
		return nil, err
	}
	if relaxation == nil {
		// Still in flight or failed upstream; the verdict is not final.
		summary.HasCompleteOutput = false
		summary.IsMOF = true
		summary.Provisional = true
		return summary, nil
	}

	if !relaxation.ForceConverged {
		// Terminal: the last-trusted analysis is the initial one.
		summary.HasCompleteOutput = true
		summary.IsMOF = true
		return summary, nil
	}

	finalMetrics, err := finalAnalysisOutput(stages)
	if err != nil {
		return nil, err
	}
	if finalMetrics == nil {
		summary.HasCompleteOutput = false
		summary.IsMOF = true
		summary.Provisional = true
		return summary, nil
	}

	finalVerdict, err := a.validator.Validate(finalMetrics)
	if err != nil {
		// The relaxed structure lost the decision probe's metrics; the final
		// verdict cannot be computed yet.
		logger.Warnf("Post-relaxation verdict unavailable: %v", err)
		summary.HasCompleteOutput = false
		summary.IsMOF = true
		summary.Provisional = true
		return summary, nil
	}

	summary.HasCompleteOutput = true
	summary.IsMOF = finalVerdict.IsMOF
	summary.NoLongerMOF = !finalVerdict.IsMOF
	return summary, nil
}

// initialVerdict extracts the initial validation verdict, or nil when the
// validation stage has not completed.
func initialVerdict(stages map[string]*model.JobRecord) (*model.ValidationVerdict, error) {
	r, ok := stages[model.StageValidateInitial]
	if !ok || r.Status != model.StatusCompleted {
		return nil, nil
	}
	var verdict model.ValidationVerdict
	if err := serialization.UnmarshalOutput(r.Output, &verdict); err != nil {
		return nil, err
	}
	return &verdict, nil
}

// relaxationOutput extracts the relaxation result, or nil when the stage has
// not completed.
func relaxationOutput(stages map[string]*model.JobRecord) (*model.RelaxationResult, error) {
	r, ok := stages[model.StageRelax]
	if !ok || r.Status != model.StatusCompleted {
		return nil, nil
	}
	var result model.RelaxationResult
	if err := serialization.UnmarshalOutput(r.Output, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// finalAnalysisOutput extracts the post-relaxation pore metrics, or nil when
// the stage has not completed.
func finalAnalysisOutput(stages map[string]*model.JobRecord) (model.PoreMetrics, error) {
	r, ok := stages[model.StageAnalyzeFinal]
	if !ok || r.Status != model.StatusCompleted {
		return nil, nil
	}
	metrics := model.PoreMetrics{}
	if err := serialization.UnmarshalOutput(r.Output, &metrics); err != nil {
		return nil, err
	}
	if len(metrics) == 0 {
		return nil, nil
	}
	return metrics, nil
}

// stageOutputs collects the winning record's payload per completed stage.
func stageOutputs(stages map[string]*model.JobRecord) map[string]json.RawMessage {
	out := make(map[string]json.RawMessage, len(stages))
	for stage, r := range stages {
		if r.Status == model.StatusCompleted && len(r.Output) > 0 {
			out[stage] = r.Output
		}
	}
	return out
}

func cloneMetadata(md map[string]string) map[string]string {
	out := make(map[string]string, len(md))
	for k, v := range md {
		out[k] = v
	}
	return out
}
