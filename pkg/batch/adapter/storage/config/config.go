// Package config decodes named object storage settings.
package config

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// StorageConfig holds configuration for a single storage connection.
type StorageConfig struct {
	Type            string `yaml:"type"`             // "local" or "gcs"
	BucketName      string `yaml:"bucket_name"`      // Default bucket name for operations.
	CredentialsFile string `yaml:"credentials_file"` // Service account key for GCS.
	BaseDir         string `yaml:"base_dir"`         // Root directory for the local adapter.
	// Endpoint overrides the GCS API endpoint, e.g. for an emulator. Requests are then unauthenticated.
	Endpoint string `yaml:"endpoint"`
}

// Lookup decodes the storage settings registered under name.
func Lookup(configs map[string]interface{}, name string) (StorageConfig, error) {
	var cfg StorageConfig
	raw, ok := configs[name]
	if !ok {
		return cfg, fmt.Errorf("storage configuration for name '%s' not found", name)
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &cfg,
		TagName:          "yaml",
		WeaklyTypedInput: true,
	})
	if err != nil {
		return cfg, fmt.Errorf("failed to create decoder for storage config '%s': %w", name, err)
	}
	if err := decoder.Decode(raw); err != nil {
		return cfg, fmt.Errorf("failed to decode storage config for '%s': %w", name, err)
	}
	if cfg.Type == "" {
		return cfg, fmt.Errorf("storage config '%s' has no type", name)
	}
	return cfg, nil
}
