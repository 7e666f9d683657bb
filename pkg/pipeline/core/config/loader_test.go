package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/karstlab/mofpipe/pkg/pipeline/core/config"
)

const sampleYAML = `
mofpipe:
  batch:
    mode: distributed
    idle_polls: 5
  zeopp:
    binary_path: /opt/zeopp/network
    sorbates: [N2, CO2]
    nproc: 4
    decision_probe: N2
  relax:
    calculator_path: ${FF_CALCULATOR_PATH}
    fmax: 0.05
    max_steps: 200
  store:
    driver: postgres
    dsn: host=localhost dbname=mofpipe
  queue:
    endpoint: http://queue:8080/submit
  output:
    storage_ref: artifacts
    bucket: results
    parquet_export: true
  storage:
    artifacts:
      type: local
      base_dir: ./artifacts
  system:
    logging:
      level: DEBUG
`

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := config.LoadConfig("", []byte("mofpipe: {}"))
	require.NoError(t, err)

	assert.Equal(t, "local", cfg.Mofpipe.Batch.Mode)
	assert.Equal(t, 10, cfg.Mofpipe.Batch.PollingIntervalSeconds)
	assert.Equal(t, 3, cfg.Mofpipe.Batch.IdlePolls)
	assert.Equal(t, 1, cfg.Mofpipe.Zeopp.Nproc)
	assert.Equal(t, 600, cfg.Mofpipe.Zeopp.TimeoutSeconds)
	assert.Equal(t, 600, cfg.Mofpipe.Relax.TimeoutSeconds)
	assert.Equal(t, "sqlite", cfg.Mofpipe.Store.Driver)
	assert.Equal(t, "mofpipe.db", cfg.Mofpipe.Store.DSN)
	assert.Equal(t, "artifacts", cfg.Mofpipe.Output.StorageRef)
	assert.Equal(t, "INFO", cfg.Mofpipe.System.Logging.Level)
}

func TestLoadConfigYAMLOverridesDefaults(t *testing.T) {
	t.Setenv("FF_CALCULATOR_PATH", "/opt/ff/relax")

	cfg, err := config.LoadConfig("", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "distributed", cfg.Mofpipe.Batch.Mode)
	assert.Equal(t, 5, cfg.Mofpipe.Batch.IdlePolls)
	// untouched defaults survive the merge
	assert.Equal(t, 10, cfg.Mofpipe.Batch.PollingIntervalSeconds)

	assert.Equal(t, "/opt/zeopp/network", cfg.Mofpipe.Zeopp.BinaryPath)
	assert.Equal(t, []string{"N2", "CO2"}, cfg.Mofpipe.Zeopp.Sorbates)
	assert.Equal(t, 4, cfg.Mofpipe.Zeopp.Nproc)

	assert.Equal(t, 0.05, cfg.Mofpipe.Relax.Fmax)
	assert.Equal(t, 200, cfg.Mofpipe.Relax.MaxSteps)

	assert.Equal(t, "postgres", cfg.Mofpipe.Store.Driver)
	assert.Equal(t, "http://queue:8080/submit", cfg.Mofpipe.Queue.Endpoint)
	assert.True(t, cfg.Mofpipe.Output.ParquetExport)
	assert.Equal(t, "DEBUG", cfg.Mofpipe.System.Logging.Level)

	require.Contains(t, cfg.Mofpipe.StorageConfigs, "artifacts")
}

func TestLoadConfigExpandsPlaceholders(t *testing.T) {
	t.Setenv("FF_CALCULATOR_PATH", "/opt/ff/relax")

	cfg, err := config.LoadConfig("", []byte(sampleYAML))
	require.NoError(t, err)
	assert.Equal(t, "/opt/ff/relax", cfg.Mofpipe.Relax.CalculatorPath)
}

func TestLoadConfigEnvOverridesYAML(t *testing.T) {
	t.Setenv("FF_CALCULATOR_PATH", "/opt/ff/relax")
	t.Setenv("MOFPIPE_ZEOPP_BINARY_PATH", "/usr/local/bin/network")
	t.Setenv("MOFPIPE_ZEOPP_NPROC", "8")
	t.Setenv("MOFPIPE_ZEOPP_SORBATES", "N2, H2O")
	t.Setenv("MOFPIPE_BATCH_MODE", "local")
	t.Setenv("MOFPIPE_OUTPUT_PARQUET_EXPORT", "false")

	cfg, err := config.LoadConfig("", []byte(sampleYAML))
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/network", cfg.Mofpipe.Zeopp.BinaryPath)
	assert.Equal(t, 8, cfg.Mofpipe.Zeopp.Nproc)
	assert.Equal(t, []string{"N2", "H2O"}, cfg.Mofpipe.Zeopp.Sorbates)
	assert.Equal(t, "local", cfg.Mofpipe.Batch.Mode)
	assert.False(t, cfg.Mofpipe.Output.ParquetExport)
}

func TestLoadConfigMalformedYAML(t *testing.T) {
	_, err := config.LoadConfig("", []byte("mofpipe: [not a map"))
	assert.Error(t, err)
}

func TestLoadConfigBadEnvValue(t *testing.T) {
	t.Setenv("MOFPIPE_ZEOPP_NPROC", "many")
	_, err := config.LoadConfig("", []byte("mofpipe: {}"))
	assert.Error(t, err)
}
