package zeopp

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/domain/model"
	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
)

func testStructure() *model.Structure {
	return &model.Structure{
		Name:    "mof5",
		Species: []string{"Zn", "O"},
		Coords:  [][3]float64{{0.25, 0.25, 0.25}, {0.5, 0.5, 0.5}},
		Lattice: [3][3]float64{{10, 0, 0}, {0, 10, 0}, {0, 0, 10}},
	}
}

// fakeRunner writes plausible report files instead of invoking the binary.
// outPath sits at args[5] for the volpo pass and args[2] for the res pass.
func fakeRunner(fail map[string]bool) commandRunner {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		var outPath string
		switch args[1] {
		case "-volpo":
			outPath = args[5]
		case "-res":
			outPath = args[2]
		default:
			return nil, errors.New("unexpected invocation")
		}
		for probe, shouldFail := range fail {
			if shouldFail && (strings.HasSuffix(outPath, "_"+probe+".volpo") || strings.HasSuffix(outPath, "_"+probe+".res")) {
				return []byte("simulation crashed"), errors.New("exit status 1")
			}
		}
		var content string
		if args[1] == "-volpo" {
			content = "@ out.volpo Unitcell_volume: 1000 POAV_A^3: 400 POAV_Volume_fraction: 0.4 PONAV_A^3: 10 PONAV_Volume_fraction: 0.01\n"
		} else {
			content = "out.res 12.5 8.25 12.5\n"
		}
		return nil, os.WriteFile(outPath, []byte(content), 0o644)
	}
}

func newTestAnalyzer(t *testing.T, sorbates []string) *PoreAnalyzer {
	t.Helper()
	a, err := NewPoreAnalyzer(Config{
		BinaryPath: "/opt/zeopp/network",
		WorkDir:    t.TempDir(),
		Sorbates:   sorbates,
		NumWorkers: 2,
	})
	require.NoError(t, err)
	return a
}

func TestAnalyzeAllProbes(t *testing.T) {
	a := newTestAnalyzer(t, []string{"N2", "CO2"})
	a.run = fakeRunner(nil)

	metrics, err := a.Analyze(context.Background(), testStructure())
	require.NoError(t, err)
	require.Len(t, metrics, 2)

	for _, probe := range []string{"N2", "CO2"} {
		pm, ok := metrics.Probe(probe)
		require.True(t, ok, probe)
		pld, ok := pm.Get(model.MetricPLD)
		require.True(t, ok)
		assert.InDelta(t, 8.25, pld, 1e-9)
		poav, ok := pm.Get(model.MetricPOAVFraction)
		require.True(t, ok)
		assert.InDelta(t, 0.4, poav, 1e-9)
	}
}

func TestAnalyzePartialProbeFailure(t *testing.T) {
	a := newTestAnalyzer(t, []string{"N2", "CO2"})
	a.run = fakeRunner(map[string]bool{"CO2": true})

	metrics, err := a.Analyze(context.Background(), testStructure())
	require.NoError(t, err)

	_, ok := metrics.Probe("N2")
	assert.True(t, ok)
	_, ok = metrics.Probe("CO2")
	assert.False(t, ok)
}

func TestAnalyzeAllProbesFail(t *testing.T) {
	a := newTestAnalyzer(t, []string{"N2", "CO2"})
	a.run = fakeRunner(map[string]bool{"N2": true, "CO2": true})

	metrics, err := a.Analyze(context.Background(), testStructure())
	require.NoError(t, err)
	assert.Empty(t, metrics)
}

func TestNewPoreAnalyzerToolNotConfigured(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("ZEO_PATH", "")

	_, err := NewPoreAnalyzer(Config{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrToolNotConfigured))
}

func TestNewPoreAnalyzerBinaryFromEnv(t *testing.T) {
	t.Setenv("PATH", t.TempDir())
	t.Setenv("ZEO_PATH", "/custom/network")

	a, err := NewPoreAnalyzer(Config{})
	require.NoError(t, err)
	assert.Equal(t, "/custom/network", a.binaryPath)
	assert.Equal(t, DefaultSorbates, a.sorbates)
}

func TestNewPoreAnalyzerUnknownSorbate(t *testing.T) {
	_, err := NewPoreAnalyzer(Config{BinaryPath: "/opt/zeopp/network", Sorbates: []string{"XX"}})
	require.Error(t, err)
}
