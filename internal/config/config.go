// Package config loads run configuration from JSON files. Fields omitted
// from the file retain their defaults through the Get* accessors on the
// config structs, so partial configs are safe.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/radiant-data/gaussnerf/internal/model"
)

// maxFileSize caps config reads at 1MB.
const maxFileSize = 1 * 1024 * 1024

// Load reads a model configuration from a JSON file. The file must have a
// .json extension and fit under the size cap, and the parsed values must
// validate.
func Load(path string) (*model.Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse JSON into an empty config. The Get* methods provide fallback
	// defaults for any fields not specified in the JSON.
	cfg := &model.Config{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}
