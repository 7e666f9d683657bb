// Package graph assembles the MOF discovery chain for one structure: pore
// analysis, validation, conditional relaxation, and conditional
// post-relaxation analysis.
package graph

import (
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

// StageGraphBuilder builds per-structure stage graphs from the pipeline's
// components.
type StageGraphBuilder struct {
	analyzer  PoreAnalyzer
	validator Validator
	relaxer   Relaxer
}

// NewStageGraphBuilder creates a builder over the given components.
func NewStageGraphBuilder(analyzer PoreAnalyzer, validator Validator, relaxer Relaxer) (*StageGraphBuilder, error) {
	if analyzer == nil || validator == nil || relaxer == nil {
		return nil, exception.NewPipelineError(moduleName, "analyzer, validator and relaxer are required", nil, false, false)
	}
	return &StageGraphBuilder{
		analyzer:  analyzer,
		validator: validator,
		relaxer:   relaxer,
	}, nil
}

// Build assembles the discovery chain for one structure:
//
//	zeopp_initial -> validate_initial -[is_mof]-> ff_relax -[force_converged]-> zeopp_final
//
// Building executes nothing. Guards are evaluated by the executor after the
// producing stage completes, so a rejected structure's graph simply stops
// after validation at run time.
func (b *StageGraphBuilder) Build(structure model.Structure, metadata map[string]string) (*model.StageGraph, error) {
	md := make(map[string]string, len(metadata)+2)
	for k, v := range metadata {
		md[k] = v
	}
	md[model.MetaStructureName] = structure.Name
	if _, ok := md[model.MetaJobInfo]; !ok {
		md[model.MetaJobInfo] = model.JobInfoMOFDiscovery
	}

	g := model.NewStageGraph(structure, md)

	stages := []model.Stage{
		&analyzeStage{name: model.StageAnalyzeInitial, analyzer: b.analyzer, source: rawStructure},
		&validateStage{validator: b.validator},
		&relaxStage{relaxer: b.relaxer},
		&analyzeStage{name: model.StageAnalyzeFinal, analyzer: b.analyzer, source: relaxedStructure},
	}
	for _, s := range stages {
		if _, err := g.AddStage(s); err != nil {
			return nil, exception.NewPipelineErrorf(moduleName, "adding stage to graph for '%s'", structure.Name, false, false, err)
		}
	}

	edges := []model.Edge{
		{From: model.StageAnalyzeInitial, To: model.StageValidateInitial},
		{From: model.StageValidateInitial, To: model.StageRelax, Guard: IsMOFGuard()},
		{From: model.StageRelax, To: model.StageAnalyzeFinal, Guard: ForceConvergedGuard()},
	}
	for _, e := range edges {
		if err := g.AddEdge(e.From, e.To, e.Guard); err != nil {
			return nil, exception.NewPipelineErrorf(moduleName, "wiring graph for '%s'", structure.Name, false, false, err)
		}
	}
	return g, nil
}
