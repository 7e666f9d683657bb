// Package zeopp wraps the zeo++ pore-analysis binary. For each probe sorbate
// it runs two passes over a structure, a probe-occupiable volume pass and a
// pore-diameter pass, and merges the parsed reports into per-probe metrics.
package zeopp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"

	"github.com/karstlab/mofpipe/pkg/pipeline/component/cif"
	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"
)

const moduleName = "zeopp"

// envBinaryPath is consulted when no explicit binary path is configured and
// the binary is not on PATH.
const envBinaryPath = "ZEO_PATH"

// DefaultSorbates are the probes analyzed when none are configured.
var DefaultSorbates = []string{"N2", "CO2", "H2O"}

// Config holds the pore analyzer settings.
type Config struct {
	// BinaryPath is the zeo++ "network" binary. When empty, PATH and then the
	// ZEO_PATH environment variable are consulted.
	BinaryPath string
	// WorkDir is where per-analysis scratch directories are created. Defaults
	// to the system temp directory.
	WorkDir string
	// Sorbates are the probe molecules to analyze.
	Sorbates []string
	// NumWorkers caps concurrent probe analyses. Defaults to 1; it is never
	// raised above the number of sorbates.
	NumWorkers int
	// Timeout bounds a single binary invocation. Zero means no bound beyond
	// the caller's context.
	Timeout time.Duration
}

// commandRunner executes the analysis binary and returns its combined output.
// Swappable in tests.
type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// PoreAnalyzer runs geometric pore analysis over structures.
type PoreAnalyzer struct {
	binaryPath string
	workDir    string
	sorbates   []string
	numWorkers int
	timeout    time.Duration
	run        commandRunner
}

// NewPoreAnalyzer creates a PoreAnalyzer from config. It fails fast with a
// ToolNotConfigured error when no binary can be resolved, so a whole batch
// aborts before any structure is touched.
func NewPoreAnalyzer(cfg Config) (*PoreAnalyzer, error) {
	binary := cfg.BinaryPath
	if binary == "" {
		if p, err := exec.LookPath("network"); err == nil {
			binary = p
		} else {
			binary = os.Getenv(envBinaryPath)
		}
	}
	if binary == "" {
		return nil, exception.NewToolNotConfiguredError(moduleName, "zeo++ network")
	}

	sorbates := cfg.Sorbates
	if len(sorbates) == 0 {
		sorbates = DefaultSorbates
	}
	if err := KnownSorbates(sorbates); err != nil {
		return nil, err
	}

	workers := cfg.NumWorkers
	if workers < 1 {
		workers = 1
	}
	if workers > len(sorbates) {
		workers = len(sorbates)
	}

	workDir := cfg.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}

	return &PoreAnalyzer{
		binaryPath: binary,
		workDir:    workDir,
		sorbates:   sorbates,
		numWorkers: workers,
		timeout:    cfg.Timeout,
		run:        runCommand,
	}, nil
}

// Sorbates returns the configured probe names.
func (a *PoreAnalyzer) Sorbates() []string {
	out := make([]string, len(a.sorbates))
	copy(out, a.sorbates)
	return out
}

// Analyze runs both analysis passes for every configured probe against the
// structure. Probes run concurrently up to the worker cap. A failing probe is
// logged and left out of the result; a result with every probe failed is
// still a valid, empty PoreMetrics, not an error.
func (a *PoreAnalyzer) Analyze(ctx context.Context, s *model.Structure) (model.PoreMetrics, error) {
	scratch, err := os.MkdirTemp(a.workDir, "zeopp-"+s.Name+"-")
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "creating scratch directory in '%s'", a.workDir, false, true, err)
	}
	defer os.RemoveAll(scratch)

	cifPath := filepath.Join(scratch, s.Name+".cif")
	if err := cif.Write(cifPath, s); err != nil {
		return nil, err
	}

	var (
		mu        sync.Mutex
		metrics   = model.PoreMetrics{}
		probeErrs *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.numWorkers)
	for _, sorbate := range a.sorbates {
		sorbate := sorbate
		g.Go(func() error {
			pm, perr := a.analyzeProbe(gctx, cifPath, scratch, s.Name, sorbate)
			mu.Lock()
			defer mu.Unlock()
			if perr != nil {
				logger.Warnf("Pore analysis for probe '%s' on structure '%s' failed: %v", sorbate, s.Name, perr)
				probeErrs = multierror.Append(probeErrs, perr)
				return nil
			}
			metrics[sorbate] = pm
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(metrics) == 0 {
		combined := fmt.Errorf("%w: %w", exception.ErrAnalysisFailed, probeErrs.ErrorOrNil())
		logger.Warnf("All %d probes failed for structure '%s': %v", len(a.sorbates), s.Name, combined)
	}
	return metrics, nil
}

// analyzeProbe runs the two passes for one sorbate and merges their metrics.
func (a *PoreAnalyzer) analyzeProbe(ctx context.Context, cifPath, outDir, name, sorbate string) (model.ProbeMetrics, error) {
	radius, err := ProbeRadius(sorbate)
	if err != nil {
		return nil, err
	}
	r := strconv.FormatFloat(radius, 'f', -1, 64)

	volpoPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.volpo", name, sorbate))
	if err := a.invoke(ctx, []string{"-ha", "-volpo", r, r, "50000", volpoPath, cifPath}); err != nil {
		return nil, err
	}
	volpoData, err := os.ReadFile(volpoPath)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "reading volpo report '%s'", volpoPath, true, false, err)
	}
	metrics, err := parseVolpo(string(volpoData))
	if err != nil {
		return nil, err
	}

	resPath := filepath.Join(outDir, fmt.Sprintf("%s_%s.res", name, sorbate))
	if err := a.invoke(ctx, []string{"-ha", "-res", resPath, cifPath}); err != nil {
		return nil, err
	}
	resData, err := os.ReadFile(resPath)
	if err != nil {
		return nil, exception.NewPipelineErrorf(moduleName, "reading res report '%s'", resPath, true, false, err)
	}
	resMetrics, err := parseRes(string(resData))
	if err != nil {
		return nil, err
	}

	metrics.Merge(resMetrics)
	return metrics, nil
}

// invoke runs the binary once, applying the per-invocation timeout.
func (a *PoreAnalyzer) invoke(ctx context.Context, args []string) error {
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	out, err := a.run(ctx, a.binaryPath, args...)
	if err != nil {
		return exception.NewPipelineErrorf(moduleName,
			"'%s %v' failed: %s", a.binaryPath, args, string(out), true, true, err)
	}
	return nil
}
