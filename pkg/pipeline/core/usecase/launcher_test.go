package usecase_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/executor"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/graph"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/usecase"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

const sampleCIF = `data_MgMOF74
_cell_length_a 10.0
_cell_length_b 10.0
_cell_length_c 10.0
_cell_angle_alpha 90.0
_cell_angle_beta 90.0
_cell_angle_gamma 90.0
loop_
_atom_site_type_symbol
_atom_site_label
_atom_site_fract_x
_atom_site_fract_y
_atom_site_fract_z
Mg Mg1 0.1 0.2 0.3
O O1 0.6 0.7 0.8
`

func writeCIF(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(sampleCIF), 0644))
	return path
}

type stubAnalyzer struct{}

func (stubAnalyzer) Analyze(ctx context.Context, s *model.Structure) (model.PoreMetrics, error) {
	return model.PoreMetrics{"N2": model.ProbeMetrics{model.MetricPLD: 8}}, nil
}

type stubValidator struct{}

func (stubValidator) Validate(metrics model.PoreMetrics) (*model.ValidationVerdict, error) {
	return &model.ValidationVerdict{IsMOF: false, Probe: "N2"}, nil
}

type stubRelaxer struct{}

func (stubRelaxer) Relax(ctx context.Context, s *model.Structure) (*model.RelaxationResult, error) {
	return &model.RelaxationResult{Structure: *s, ForceConverged: true}, nil
}

type fakeExecutor struct {
	executed []string
	err      error
}

func (f *fakeExecutor) Execute(ctx context.Context, g *model.StageGraph) (*executor.RunResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.executed = append(f.executed, g.StructureName)
	return &executor.RunResult{StructureName: g.StructureName, Status: model.StatusCompleted}, nil
}

type fakeSubmitter struct {
	submitted []*model.StageGraph
	err       error
}

func (f *fakeSubmitter) Submit(ctx context.Context, g *model.StageGraph) error {
	if f.err != nil {
		return f.err
	}
	f.submitted = append(f.submitted, g)
	return nil
}

func newLauncher(t *testing.T, exec executor.Executor, submitter executor.GraphSubmitter) *usecase.BatchLauncher {
	t.Helper()
	builder, err := graph.NewStageGraphBuilder(stubAnalyzer{}, stubValidator{}, stubRelaxer{})
	require.NoError(t, err)
	l, err := usecase.NewBatchLauncher(builder, exec, submitter, nil)
	require.NoError(t, err)
	return l
}

func TestSubmitLocalMode(t *testing.T) {
	dir := t.TempDir()
	a := writeCIF(t, dir, "a.cif")
	b := writeCIF(t, dir, "b.cif")
	exec := &fakeExecutor{}
	l := newLauncher(t, exec, nil)

	report, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{a, b},
		BatchTag: "b1",
	})
	require.NoError(t, err)

	assert.Equal(t, "b1", report.BatchTag)
	assert.Equal(t, usecase.ModeLocal, report.Mode)
	assert.Equal(t, 2, report.Submitted)
	assert.Equal(t, 0, report.Skipped)
	assert.Len(t, exec.executed, 2)
	for _, in := range report.Inputs {
		assert.True(t, in.Submitted)
		assert.NotEmpty(t, in.StructureName)
	}
}

func TestSubmitSkipsUnparseableStructure(t *testing.T) {
	dir := t.TempDir()
	good := writeCIF(t, dir, "good.cif")
	bad := filepath.Join(dir, "bad.cif")
	require.NoError(t, os.WriteFile(bad, []byte("not a structure"), 0644))
	exec := &fakeExecutor{}
	l := newLauncher(t, exec, nil)

	report, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{bad, good},
		BatchTag: "b1",
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Submitted)
	assert.Equal(t, 1, report.Skipped)
	require.Len(t, report.Inputs, 2)
	assert.False(t, report.Inputs[0].Submitted)
	assert.Contains(t, report.Inputs[0].Reason, "parse error")
	assert.True(t, report.Inputs[1].Submitted)
}

func TestSubmitDistributedMode(t *testing.T) {
	dir := t.TempDir()
	path := writeCIF(t, dir, "a.cif")
	submitter := &fakeSubmitter{}
	exec := &fakeExecutor{}
	l := newLauncher(t, exec, submitter)

	report, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{path},
		BatchTag: "b1",
		Mode:     usecase.ModeDistributed,
		Metadata: map[string]string{"source": "core-mof"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.Submitted)
	require.Len(t, submitter.submitted, 1)
	assert.Equal(t, "b1", submitter.submitted[0].Metadata[model.MetaBatchTag])
	assert.Equal(t, "core-mof", submitter.submitted[0].Metadata["source"])
	// nothing executes locally in distributed mode
	assert.Empty(t, exec.executed)
}

func TestSubmitDistributedRetryableFailureSkips(t *testing.T) {
	dir := t.TempDir()
	path := writeCIF(t, dir, "a.cif")
	submitter := &fakeSubmitter{
		err: exception.NewPipelineError("remote", "queue unreachable", nil, false, true),
	}
	l := newLauncher(t, &fakeExecutor{}, submitter)

	report, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{path},
		BatchTag: "b1",
		Mode:     usecase.ModeDistributed,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Skipped)
	assert.Contains(t, report.Inputs[0].Reason, "submission failed")
}

func TestSubmitRequiresBatchTag(t *testing.T) {
	l := newLauncher(t, &fakeExecutor{}, nil)
	_, err := l.Submit(context.Background(), usecase.SubmitRequest{Paths: []string{"x.cif"}})
	assert.Error(t, err)
}

func TestSubmitDistributedWithoutSubmitter(t *testing.T) {
	l := newLauncher(t, &fakeExecutor{}, nil)
	_, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{"x.cif"},
		BatchTag: "b1",
		Mode:     usecase.ModeDistributed,
	})
	assert.Error(t, err)
}

func TestSubmitFatalErrorAborts(t *testing.T) {
	dir := t.TempDir()
	path := writeCIF(t, dir, "a.cif")
	exec := &fakeExecutor{err: exception.NewToolNotConfiguredError("zeopp", "network")}
	l := newLauncher(t, exec, nil)

	report, err := l.Submit(context.Background(), usecase.SubmitRequest{
		Paths:    []string{path},
		BatchTag: "b1",
	})
	require.Error(t, err)
	assert.Empty(t, report.Inputs)
}

func TestSubmitContextCanceled(t *testing.T) {
	dir := t.TempDir()
	path := writeCIF(t, dir, "a.cif")
	l := newLauncher(t, &fakeExecutor{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := l.Submit(ctx, usecase.SubmitRequest{Paths: []string{path}, BatchTag: "b1"})
	assert.ErrorIs(t, err, context.Canceled)
}
