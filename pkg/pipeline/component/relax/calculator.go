package relax

import (
	"context"
	"encoding/json"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/karstlab/mofpipe/pkg/pipeline/component/cif"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

// Evaluation is one potential-energy surface evaluation: total energy in eV
// and per-site cartesian forces in eV/angstrom.
type Evaluation struct {
	Energy float64      `json:"energy"`
	Forces [][3]float64 `json:"forces"`
}

// Calculator computes energy and forces for a structure. Implementations
// wrap an interatomic potential.
type Calculator interface {
	Compute(ctx context.Context, s *model.Structure) (*Evaluation, error)
}

// CommandCalculator shells out to an external force-field binary. The binary
// is invoked as `<path> <structure.cif> <output.json>` and must write an
// Evaluation-shaped JSON document to the output path.
type CommandCalculator struct {
	binaryPath string
	workDir    string
	timeout    time.Duration
	run        func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewCommandCalculator creates a CommandCalculator. It fails fast with a
// ToolNotConfigured error when the binary path is empty. A positive timeout
// bounds each invocation; zero disables the bound.
func NewCommandCalculator(binaryPath, workDir string, timeout time.Duration) (*CommandCalculator, error) {
	if binaryPath == "" {
		return nil, exception.NewToolNotConfiguredError(moduleName, "force-field calculator")
	}
	if workDir == "" {
		workDir = os.TempDir()
	}
	return &CommandCalculator{
		binaryPath: binaryPath,
		workDir:    workDir,
		timeout:    timeout,
		run: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).CombinedOutput()
		},
	}, nil
}

// Compute evaluates the structure with one binary invocation.
func (c *CommandCalculator) Compute(ctx context.Context, s *model.Structure) (*Evaluation, error) {
	scratch, err := os.MkdirTemp(c.workDir, "relax-"+s.Name+"-")
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "creating scratch directory in '%s'", c.workDir, false, true, err)
	}
	defer os.RemoveAll(scratch)

	cifPath := filepath.Join(scratch, s.Name+".cif")
	if err := cif.Write(cifPath, s); err != nil {
		return nil, err
	}
	outPath := filepath.Join(scratch, "evaluation.json")

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	out, err := c.run(ctx, c.binaryPath, cifPath, outPath)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName,
			"force-field evaluation of '%s' failed: %s", s.Name, string(out), false, true, err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "reading evaluation output '%s'", outPath, false, true, err)
	}
	var eval Evaluation
	if err := json.Unmarshal(data, &eval); err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "decoding evaluation output for '%s'", s.Name, false, false, err)
	}
	if len(eval.Forces) != s.NumSites() {
		return nil, exception.NewPipelineErrorf(moduleName,
			"evaluation returned %d force vectors for %d sites", len(eval.Forces), s.NumSites(), false, false)
	}
	return &eval, nil
}
