package embedstore

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultFlushBatchSize is the number of rows Flush writes per backend call.
const DefaultFlushBatchSize = 1024

// Config describes one embedding table.
type Config struct {
	// EmbeddingKey identifies the table across a deployment. Backends use it
	// to namespace rows.
	EmbeddingKey int32 `yaml:"embedding_key"`
	// Dim is the number of elements per row.
	Dim int `yaml:"dim"`
	// Capacity is the number of rows the value buffer holds.
	Capacity int `yaml:"capacity"`
	// DType optionally pins the element type; Initialize rejects a store
	// whose element type disagrees.
	DType DType `yaml:"dtype"`
	// FlushBatchSize bounds the rows per backend write during Flush.
	FlushBatchSize int `yaml:"flush_batch_size"`
}

// ApplyDefaults fills unset optional fields.
func (c *Config) ApplyDefaults() {
	if c.FlushBatchSize == 0 {
		c.FlushBatchSize = DefaultFlushBatchSize
	}
}

// Validate checks the fields that do not depend on collaborators.
func (c Config) Validate() error {
	if c.Capacity <= 0 {
		return &ConfigError{Field: "capacity", Value: c.Capacity, Reason: "must be positive"}
	}
	if c.Dim <= 0 {
		return &ConfigError{Field: "dim", Value: c.Dim, Reason: "must be positive"}
	}
	if !c.DType.Valid() {
		return &ConfigError{Field: "dtype", Value: c.DType, Reason: "unknown element type"}
	}
	if c.FlushBatchSize < 0 {
		return &ConfigError{Field: "flush_batch_size", Value: c.FlushBatchSize, Reason: "must not be negative"}
	}
	return nil
}

// BufferSize returns the value buffer size in bytes for elements of elemSize bytes.
func (c Config) BufferSize(elemSize int) int {
	return c.Capacity * c.Dim * elemSize
}

// LoadConfig reads a YAML table description, applies defaults and validates it.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a YAML table description, applies defaults and validates it.
func ParseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
