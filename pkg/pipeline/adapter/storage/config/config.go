// Package config holds storage adapter configuration.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type" mapstructure:"type"`                         // Type of storage ("gcs", "local").
	BucketName      string `yaml:"bucket_name" mapstructure:"bucket_name"`           // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file" mapstructure:"credentials_file"` // Path to a service account key for GCS.
	BaseDir         string `yaml:"base_dir" mapstructure:"base_dir"`                 // Base directory for local file system operations.
}

// DatasourcesConfig holds a map of named storage configurations.
type DatasourcesConfig map[string]StorageConfig

// FromMap decodes a raw configuration map into a StorageConfig. Used when
// storage settings arrive as loosely-typed YAML fragments.
func FromMap(raw map[string]interface{}) (StorageConfig, error) {
	var cfg StorageConfig
	if err := mapstructure.Decode(raw, &cfg); err != nil {
		return StorageConfig{}, fmt.Errorf("failed to decode storage configuration: %w", err)
	}
	return cfg, nil
}
