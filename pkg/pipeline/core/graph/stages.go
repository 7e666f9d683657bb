package graph

import (
	"context"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

const moduleName = "graph"

// PoreAnalyzer computes geometric pore metrics for a structure.
type PoreAnalyzer interface {
	Analyze(ctx context.Context, s *model.Structure) (model.PoreMetrics, error)
}

// Validator derives a MOF verdict from pore metrics.
type Validator interface {
	Validate(metrics model.PoreMetrics) (*model.ValidationVerdict, error)
}

// Relaxer relaxes a structure's atomic positions.
type Relaxer interface {
	Relax(ctx context.Context, s *model.Structure) (*model.RelaxationResult, error)
}

// analyzeStage runs pore analysis. The same type backs both the initial and
// post-relaxation analysis stages; they differ only in name and in where the
// structure comes from.
type analyzeStage struct {
	name     string
	analyzer PoreAnalyzer
	source   func(in model.StageInput) (model.Structure, error)
}

func (s *analyzeStage) Name() string { return s.name }

func (s *analyzeStage) Execute(ctx context.Context, in model.StageInput) (interface{}, error) {
	structure, err := s.source(in)
	if err != nil {
		return nil, err
	}
	return s.analyzer.Analyze(ctx, &structure)
}

// rawStructure feeds a stage the graph's input structure.
func rawStructure(in model.StageInput) (model.Structure, error) {
	return in.Structure, nil
}

// relaxedStructure feeds a stage the structure produced by the relaxation
// stage.
func relaxedStructure(in model.StageInput) (model.Structure, error) {
	out, ok := in.Upstream[model.StageRelax]
	if !ok {
		return model.Structure{}, exception.NewPipelineErrorf(moduleName,
			"stage '%s' did not run before post-relaxation analysis", model.StageRelax, false, false)
	}
	result, ok := out.(*model.RelaxationResult)
	if !ok {
		return model.Structure{}, exception.NewPipelineErrorf(moduleName,
			"stage '%s' produced %T, want *model.RelaxationResult", model.StageRelax, out, false, false)
	}
	return result.Structure, nil
}

// validateStage applies the MOF criteria to the initial analysis output.
type validateStage struct {
	validator Validator
}

func (s *validateStage) Name() string { return model.StageValidateInitial }

func (s *validateStage) Execute(ctx context.Context, in model.StageInput) (interface{}, error) {
	out, ok := in.Upstream[model.StageAnalyzeInitial]
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName,
			"stage '%s' did not run before validation", model.StageAnalyzeInitial, false, false)
	}
	metrics, ok := out.(model.PoreMetrics)
	if !ok {
		return nil, exception.NewPipelineErrorf(moduleName,
			"stage '%s' produced %T, want model.PoreMetrics", model.StageAnalyzeInitial, out, false, false)
	}
	return s.validator.Validate(metrics)
}

// relaxStage relaxes the graph's input structure.
type relaxStage struct {
	relaxer Relaxer
}

func (s *relaxStage) Name() string { return model.StageRelax }

func (s *relaxStage) Execute(ctx context.Context, in model.StageInput) (interface{}, error) {
	structure := in.Structure
	return s.relaxer.Relax(ctx, &structure)
}

// IsMOFGuard admits downstream stages only for structures whose validation
// verdict is positive.
func IsMOFGuard() *model.Guard {
	return &model.Guard{
		Name: "is_mof",
		Allow: func(output interface{}) bool {
			verdict, ok := output.(*model.ValidationVerdict)
			return ok && verdict.IsMOF
		},
	}
}

// ForceConvergedGuard admits downstream stages only when relaxation converged.
func ForceConvergedGuard() *model.Guard {
	return &model.Guard{
		Name: "force_converged",
		Allow: func(output interface{}) bool {
			result, ok := output.(*model.RelaxationResult)
			return ok && result.ForceConverged
		},
	}
}
