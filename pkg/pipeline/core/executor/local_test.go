package executor_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/store"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/infrastructure/store/inmemory"
)

// scriptedStage returns a fixed output or error, or panics.
type scriptedStage struct {
	name   string
	output interface{}
	err    error
	panick bool
	calls  int
}

func (s *scriptedStage) Name() string { return s.name }

func (s *scriptedStage) Execute(ctx context.Context, in model.StageInput) (interface{}, error) {
	s.calls++
	if s.panick {
		panic("boom")
	}
	return s.output, s.err
}

func newExecutor(t *testing.T) (*executor.LocalExecutor, store.ResultStore) {
	t.Helper()
	st := inmemory.NewStore()
	ex, err := executor.NewLocalExecutor(st, nil, nil)
	require.NoError(t, err)
	return ex, st
}

func chainGraph(t *testing.T, stages []model.Stage, edges []model.Edge) *model.StageGraph {
	t.Helper()
	g := model.NewStageGraph(model.Structure{Name: "s1", Species: []string{"C"}, Coords: [][3]float64{{0, 0, 0}}},
		map[string]string{model.MetaStructureName: "s1", model.MetaBatchTag: "b1"})
	for _, s := range stages {
		_, err := g.AddStage(s)
		require.NoError(t, err)
	}
	for _, e := range edges {
		require.NoError(t, g.AddEdge(e.From, e.To, e.Guard))
	}
	return g
}

func alwaysGuard(allow bool) *model.Guard {
	return &model.Guard{Name: "scripted", Allow: func(interface{}) bool { return allow }}
}

func TestExecuteFullChain(t *testing.T) {
	ex, st := newExecutor(t)
	a := &scriptedStage{name: "a", output: "out-a"}
	b := &scriptedStage{name: "b", output: "out-b"}
	g := chainGraph(t, []model.Stage{a, b}, []model.Edge{{From: "a", To: "b"}})

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.False(t, result.Failed())
	require.Len(t, result.Records, 2)
	assert.Empty(t, result.Skipped)
	assert.Equal(t, 1, a.calls)
	assert.Equal(t, 1, b.calls)

	stored, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 2)
	assert.Equal(t, model.StatusCompleted, stored[0].Status)
	assert.Equal(t, "s1", stored[0].StructureName())
	assert.Less(t, stored[0].Sequence, stored[1].Sequence)
}

func TestExecuteGuardRejectsDownstream(t *testing.T) {
	ex, st := newExecutor(t)
	a := &scriptedStage{name: "a", output: "out-a"}
	b := &scriptedStage{name: "b", output: "out-b"}
	c := &scriptedStage{name: "c", output: "out-c"}
	g := chainGraph(t, []model.Stage{a, b, c}, []model.Edge{
		{From: "a", To: "b", Guard: alwaysGuard(false)},
		{From: "b", To: "c"},
	})

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err)

	// a ran; b was rejected by guard; c skipped because b never ran
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, 0, b.calls)
	assert.Equal(t, 0, c.calls)
	assert.Equal(t, executor.SkipGuardRejected, result.Skipped["b"])
	assert.Equal(t, executor.SkipUpstreamSkipped, result.Skipped["c"])

	// skipped stages leave no records at all
	stored, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "a", stored[0].Name)
}

func TestExecuteFailureIsolatesDownstream(t *testing.T) {
	ex, st := newExecutor(t)
	a := &scriptedStage{name: "a", err: errors.New("tool crashed")}
	b := &scriptedStage{name: "b", output: "out-b"}
	g := chainGraph(t, []model.Stage{a, b}, []model.Edge{{From: "a", To: "b"}})

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err, "stage failures must not become Execute errors")

	assert.Equal(t, model.StatusFailed, result.Status)
	assert.True(t, result.Failed())
	assert.Equal(t, 0, b.calls)
	assert.Equal(t, executor.SkipUpstreamFailed, result.Skipped["b"])

	stored, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.StatusFailed, stored[0].Status)
	assert.NotEmpty(t, stored[0].Failures)
}

func TestExecuteIndependentBranchUnaffected(t *testing.T) {
	ex, _ := newExecutor(t)
	a := &scriptedStage{name: "a", err: errors.New("broken")}
	b := &scriptedStage{name: "b", output: "out-b"}
	g := chainGraph(t, []model.Stage{a, b}, nil) // no edges: b independent of a

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, result.Status)
	assert.Equal(t, 1, b.calls)
	rec, ok := result.Record("b")
	require.True(t, ok)
	assert.Equal(t, model.StatusCompleted, rec.Status)
}

func TestExecuteRecoversPanics(t *testing.T) {
	ex, st := newExecutor(t)
	a := &scriptedStage{name: "a", panick: true}
	g := chainGraph(t, []model.Stage{a}, nil)

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err)

	assert.Equal(t, model.StatusFailed, result.Status)
	stored, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.StatusFailed, stored[0].Status)
}

func TestExecuteContextCanceled(t *testing.T) {
	ex, _ := newExecutor(t)
	a := &scriptedStage{name: "a", output: "x"}
	g := chainGraph(t, []model.Stage{a}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ex.Execute(ctx, g)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestExecuteMOFDiscoveryChainShape(t *testing.T) {
	// mirrors the builder's chain using scripted stages and real guards
	ex, st := newExecutor(t)
	analyze := &scriptedStage{name: model.StageAnalyzeInitial, output: model.PoreMetrics{}}
	validate := &scriptedStage{name: model.StageValidateInitial, output: &model.ValidationVerdict{IsMOF: true}}
	relaxStage := &scriptedStage{name: model.StageRelax, output: &model.RelaxationResult{ForceConverged: false}}
	final := &scriptedStage{name: model.StageAnalyzeFinal, output: model.PoreMetrics{}}

	isMOF := &model.Guard{Name: "is_mof", Allow: func(o interface{}) bool {
		v, ok := o.(*model.ValidationVerdict)
		return ok && v.IsMOF
	}}
	converged := &model.Guard{Name: "force_converged", Allow: func(o interface{}) bool {
		r, ok := o.(*model.RelaxationResult)
		return ok && r.ForceConverged
	}}

	g := chainGraph(t, []model.Stage{analyze, validate, relaxStage, final}, []model.Edge{
		{From: model.StageAnalyzeInitial, To: model.StageValidateInitial},
		{From: model.StageValidateInitial, To: model.StageRelax, Guard: isMOF},
		{From: model.StageRelax, To: model.StageAnalyzeFinal, Guard: converged},
	})

	result, err := ex.Execute(context.Background(), g)
	require.NoError(t, err)

	// relaxation ran but did not converge, so the final analysis is absent
	assert.Equal(t, model.StatusCompleted, result.Status)
	assert.Equal(t, 1, relaxStage.calls)
	assert.Equal(t, 0, final.calls)
	assert.Equal(t, executor.SkipGuardRejected, result.Skipped[model.StageAnalyzeFinal])

	stored, err := st.Query(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, stored, 3)
}
