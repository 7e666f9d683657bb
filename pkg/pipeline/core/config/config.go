package config

// Package config provides structures and utilities for managing application configuration.

// EmbeddedConfig holds the content of the configuration file, typically passed from main.go.
type EmbeddedConfig []byte

// ZeoppConfig holds the pore-analysis tool settings.
type ZeoppConfig struct {
	// BinaryPath is the zeo++ "network" binary. Empty falls back to PATH and
	// the ZEO_PATH environment variable.
	BinaryPath string `yaml:"binary_path"`
	// WorkDir is where per-analysis scratch directories are created.
	WorkDir string `yaml:"work_dir"`
	// Sorbates are the probe molecules to analyze. Empty selects the default
	// probe set.
	Sorbates []string `yaml:"sorbates"`
	// Nproc caps concurrent probe analyses per structure.
	Nproc int `yaml:"nproc"`
	// TimeoutSeconds bounds a single binary invocation.
	TimeoutSeconds int `yaml:"timeout_seconds"`
	// DecisionProbe is the sorbate whose metrics drive the MOF criteria.
	DecisionProbe string `yaml:"decision_probe"`
}

// RelaxConfig holds the force-field relaxation settings.
type RelaxConfig struct {
	// CalculatorPath is the external force-field binary.
	CalculatorPath string `yaml:"calculator_path"`
	// WorkDir is where per-evaluation scratch directories are created.
	WorkDir string `yaml:"work_dir"`
	// Fmax is the convergence threshold on the largest per-site force norm.
	Fmax float64 `yaml:"fmax"`
	// MaxSteps bounds the number of optimizer steps.
	MaxSteps int `yaml:"max_steps"`
	// StepSize scales the steepest-descent displacement.
	StepSize float64 `yaml:"step_size"`
	// TimeoutSeconds bounds one force-field binary invocation. Zero disables
	// the timeout.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// StoreConfig holds the result store settings.
type StoreConfig struct {
	// Driver selects the store backend ("memory", "sqlite", "postgres",
	// "mysql").
	Driver string `yaml:"driver"`
	// DSN is the driver-specific data source name.
	DSN string `yaml:"dsn"`
}

// QueueConfig holds the distributed execution queue settings.
type QueueConfig struct {
	// Endpoint is the workflow queue's HTTP submission endpoint.
	Endpoint string `yaml:"endpoint"`
	// TimeoutSeconds bounds one submission request.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// OutputConfig holds the aggregation artifact settings.
type OutputConfig struct {
	// StorageRef names the storage connection artifacts are written through.
	StorageRef string `yaml:"storage_ref"`
	// Bucket is the target bucket (or directory, for local storage).
	Bucket string `yaml:"bucket"`
	// BaseDir is the prefix under which artifacts are placed.
	BaseDir string `yaml:"base_dir"`
	// ParquetExport additionally writes a Parquet export per aggregation pass.
	ParquetExport bool `yaml:"parquet_export"`
}

// BatchConfig holds batch submission settings.
type BatchConfig struct {
	// Tag groups all jobs submitted together for later aggregation.
	Tag string `yaml:"tag"`
	// Mode selects "local" or "distributed" execution.
	Mode string `yaml:"mode"`
	// PollingIntervalSeconds is the result store polling interval when
	// awaiting a distributed batch.
	PollingIntervalSeconds int `yaml:"polling_interval_seconds"`
	// IdlePolls is the number of unchanged polls that counts as quiescence.
	IdlePolls int `yaml:"idle_polls"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the logging level (e.g., "INFO", "DEBUG").
	Level string `yaml:"level"`
}

// TracingConfig holds distributed tracing settings.
type TracingConfig struct {
	// OTLPEndpoint is the OTLP gRPC collector address (host:port). Empty
	// disables span export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
}

// SystemConfig holds system-wide settings.
type SystemConfig struct {
	// Timezone is the application timezone (e.g., "UTC").
	Timezone string `yaml:"timezone"`
	// Logging is the logging configuration.
	Logging LoggingConfig `yaml:"logging"`
	// Tracing is the distributed tracing configuration.
	Tracing TracingConfig `yaml:"tracing"`
}

// MofpipeConfig holds all configuration under the "mofpipe" top-level key.
type MofpipeConfig struct {
	Batch  BatchConfig  `yaml:"batch"`
	Zeopp  ZeoppConfig  `yaml:"zeopp"`
	Relax  RelaxConfig  `yaml:"relax"`
	Store  StoreConfig  `yaml:"store"`
	Queue  QueueConfig  `yaml:"queue"`
	Output OutputConfig `yaml:"output"`
	System SystemConfig `yaml:"system"`
	// StorageConfigs holds raw configurations for named storage connections,
	// decoded by the adapters themselves.
	StorageConfigs map[string]interface{} `yaml:"storage"`
}

// Config is the root structure for the entire application configuration.
type Config struct {
	Mofpipe MofpipeConfig `yaml:"mofpipe"`
	// EmbeddedConfig holds configuration loaded from an embedded source, not from YAML.
	EmbeddedConfig EmbeddedConfig `yaml:"-"`
}

// NewConfig returns a new instance of Config with default values.
func NewConfig() *Config {
	cfg := &Config{
		Mofpipe: MofpipeConfig{
			Batch: BatchConfig{
				Mode:                   "local",
				PollingIntervalSeconds: 10,
				IdlePolls:              3,
			},
			Zeopp: ZeoppConfig{
				Nproc:          1,
				TimeoutSeconds: 600,
			},
			Relax: RelaxConfig{
				TimeoutSeconds: 600,
			},
			Store: StoreConfig{
				Driver: "sqlite",
				DSN:    "mofpipe.db",
			},
			Queue: QueueConfig{
				TimeoutSeconds: 30,
			},
			Output: OutputConfig{
				StorageRef: "artifacts",
				BaseDir:    "mof_discovery",
			},
			System: SystemConfig{
				Timezone: "UTC",
				Logging:  LoggingConfig{Level: "INFO"},
			},
		},
	}
	cfg.Mofpipe.StorageConfigs = map[string]interface{}{}
	return cfg
}
