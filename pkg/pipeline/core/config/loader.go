package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/karstlab/mofpipe/pkg/pipeline/support/util/exception"
	logger "github.com/karstlab/mofpipe/pkg/pipeline/support/util/logger"

	"go.uber.org/fx"
)

// Package config provides utilities for loading and managing application configuration
// from various sources, including YAML files and environment variables.

const moduleName = "config"

// ConfigParams defines the dependencies for NewConfigProvider.
type ConfigParams struct {
	fx.In
	EmbeddedConfig EmbeddedConfig // EmbeddedConfig contains the raw bytes of the configuration file.
	EnvFilePath    string         `name:"envFilePath" optional:"true"` // EnvFilePath is the path to the .env file, if any.
}

// loadConfig loads configuration from a file and environment variables.
// Precedence, lowest to highest: built-in defaults, YAML (with ${VAR}
// placeholders expanded), then MOFPIPE_* environment variables.
func loadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	if envFilePath != "" {
		if err := godotenv.Load(envFilePath); err != nil {
			logger.Warnf(".env file (%s) not found or could not be loaded: %v", envFilePath, err)
		}
	} else {
		if err := godotenv.Load(); err != nil {
			logger.Debugf(".env file not found or could not be loaded: %v", err)
		}
	}

	cfg := NewConfig()

	expanded, err := NewOsEnvironmentExpander().Expand(embeddedConfig)
	if err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to expand environment variables in config", err, false, false)
	}

	var yamlConfig Config
	if err := yaml.Unmarshal(expanded, &yamlConfig); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to unmarshal embedded config", err, false, false)
	}

	mergeConfig(cfg, &yamlConfig)

	if err := loadStructFromEnv(reflect.ValueOf(cfg).Elem(), ""); err != nil {
		return nil, exception.NewPipelineError(moduleName, "failed to load config from environment variables", err, false, false)
	}
	return cfg, nil
}

// NewConfigProvider is an Fx provider that loads and provides *Config. It
// also sets the global logger level from the loaded configuration.
func NewConfigProvider(params ConfigParams) (*Config, error) {
	cfg, err := loadConfig(params.EnvFilePath, params.EmbeddedConfig)
	if err != nil {
		return nil, err
	}

	logger.SetLogLevel(cfg.Mofpipe.System.Logging.Level)
	logger.Infof("Log level set to: %s", cfg.Mofpipe.System.Logging.Level)

	return cfg, nil
}

// LoadConfig loads configuration from configuration files and environment
// variables. It is expected to be called only once during application
// startup.
func LoadConfig(envFilePath string, embeddedConfig EmbeddedConfig) (*Config, error) {
	return loadConfig(envFilePath, embeddedConfig)
}

// mergeConfig performs a deep merge from sourceConfig into destConfig.
// Values in sourceConfig overwrite corresponding values in destConfig when
// they are not zero values for their type.
func mergeConfig(destConfig, sourceConfig *Config) {
	dest, source := &destConfig.Mofpipe, &sourceConfig.Mofpipe

	if source.Batch.Tag != "" {
		dest.Batch.Tag = source.Batch.Tag
	}
	if source.Batch.Mode != "" {
		dest.Batch.Mode = source.Batch.Mode
	}
	if source.Batch.PollingIntervalSeconds != 0 {
		dest.Batch.PollingIntervalSeconds = source.Batch.PollingIntervalSeconds
	}
	if source.Batch.IdlePolls != 0 {
		dest.Batch.IdlePolls = source.Batch.IdlePolls
	}

	if source.Zeopp.BinaryPath != "" {
		dest.Zeopp.BinaryPath = source.Zeopp.BinaryPath
	}
	if source.Zeopp.WorkDir != "" {
		dest.Zeopp.WorkDir = source.Zeopp.WorkDir
	}
	if source.Zeopp.Sorbates != nil {
		dest.Zeopp.Sorbates = source.Zeopp.Sorbates
	}
	if source.Zeopp.Nproc != 0 {
		dest.Zeopp.Nproc = source.Zeopp.Nproc
	}
	if source.Zeopp.TimeoutSeconds != 0 {
		dest.Zeopp.TimeoutSeconds = source.Zeopp.TimeoutSeconds
	}
	if source.Zeopp.DecisionProbe != "" {
		dest.Zeopp.DecisionProbe = source.Zeopp.DecisionProbe
	}

	if source.Relax.CalculatorPath != "" {
		dest.Relax.CalculatorPath = source.Relax.CalculatorPath
	}
	if source.Relax.WorkDir != "" {
		dest.Relax.WorkDir = source.Relax.WorkDir
	}
	if source.Relax.Fmax != 0 {
		dest.Relax.Fmax = source.Relax.Fmax
	}
	if source.Relax.MaxSteps != 0 {
		dest.Relax.MaxSteps = source.Relax.MaxSteps
	}
	if source.Relax.StepSize != 0 {
		dest.Relax.StepSize = source.Relax.StepSize
	}

	if source.Store.Driver != "" {
		dest.Store.Driver = source.Store.Driver
	}
	if source.Store.DSN != "" {
		dest.Store.DSN = source.Store.DSN
	}

	if source.Queue.Endpoint != "" {
		dest.Queue.Endpoint = source.Queue.Endpoint
	}
	if source.Queue.TimeoutSeconds != 0 {
		dest.Queue.TimeoutSeconds = source.Queue.TimeoutSeconds
	}

	if source.Output.StorageRef != "" {
		dest.Output.StorageRef = source.Output.StorageRef
	}
	if source.Output.Bucket != "" {
		dest.Output.Bucket = source.Output.Bucket
	}
	if source.Output.BaseDir != "" {
		dest.Output.BaseDir = source.Output.BaseDir
	}
	if source.Output.ParquetExport {
		dest.Output.ParquetExport = true
	}

	if source.System.Timezone != "" {
		dest.System.Timezone = source.System.Timezone
	}
	if source.System.Logging.Level != "" {
		dest.System.Logging.Level = source.System.Logging.Level
	}

	if source.StorageConfigs != nil {
		if dest.StorageConfigs == nil {
			dest.StorageConfigs = make(map[string]interface{})
		}
		for key, value := range source.StorageConfigs {
			dest.StorageConfigs[key] = value
		}
	}
}

// loadStructFromEnv recursively loads configuration values into a struct
// from environment variables, using the "yaml" tag to derive the variable
// name (e.g., MOFPIPE_ZEOPP_BINARY_PATH).
func loadStructFromEnv(val reflect.Value, prefix string) error {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := val.Field(i)
		fieldType := typ.Field(i)
		yamlTag := fieldType.Tag.Get("yaml")
		if yamlTag == "" || yamlTag == "-" {
			continue
		}
		envVarName := strings.ToUpper(prefix + yamlTag)

		if field.Kind() == reflect.Struct {
			if err := loadStructFromEnv(field, envVarName+"_"); err != nil {
				return err
			}
			continue
		}

		envValue, exists := os.LookupEnv(envVarName)
		if !exists {
			continue
		}

		if err := setField(field, envValue); err != nil {
			return fmt.Errorf("failed to set field '%s' from env var '%s': %w", fieldType.Name, envVarName, err)
		}
	}
	return nil
}

// setField sets the value of a reflect.Value field based on its kind.
func setField(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		intValue, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Float64, reflect.Float32:
		floatValue, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}
	return nil
}
