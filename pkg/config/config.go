// Package config holds the process-wide settings of the journal and
// specification layers. A Config is built once at startup (defaults, then an
// optional YAML file, then CHEWY_* environment variables) and passed by value
// afterwards; nothing in the core reads global state.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultJournalName is the journal index suffix when none is configured.
	DefaultJournalName = "chewy_journal"
	// DefaultSpecificationName is the specification index suffix when none is configured.
	DefaultSpecificationName = "chewy_specifications"
	// DefaultBatchSize is the page size used by journal queries and cleanups.
	DefaultBatchSize = 1000
)

// Config represents the complete configuration.
type Config struct {
	// Prefix is prepended (with "_") to every index name. May be empty.
	Prefix string `yaml:"prefix" envconfig:"PREFIX"`

	// JournalName overrides the journal index suffix.
	JournalName string `yaml:"journal_name" envconfig:"JOURNAL_NAME"`

	// SpecificationName overrides the specification index suffix.
	SpecificationName string `yaml:"specification_name" envconfig:"SPECIFICATION_NAME"`

	// IndexSettings are merged under settings.index of every declared
	// index before it is fingerprinted or created.
	IndexSettings map[string]any `yaml:"index" ignored:"true"`

	Journal JournalConfig `yaml:"journal" envconfig:"JOURNAL"`
}

// JournalConfig controls journaling of indexing runs.
type JournalConfig struct {
	// Enabled makes indexing runs record journal entries by default.
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`

	// BatchSize is the page size of journal queries and cleanups.
	BatchSize int `yaml:"batch_size" envconfig:"BATCH_SIZE"`
}

// Default returns the default configuration.
func Default() Config {
	return Config{
		IndexSettings: map[string]any{
			"number_of_shards":   1,
			"number_of_replicas": 0,
		},
		Journal: JournalConfig{
			BatchSize: DefaultBatchSize,
		},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// path is empty) and CHEWY_* environment variables, in that order.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if cfg, err = Parse(bytes.NewReader(data)); err != nil {
			return Config{}, err
		}
	}
	if err := envconfig.Process("chewy", &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate reports configuration values the layers cannot work with.
func (c Config) Validate() error {
	if c.Journal.BatchSize <= 0 {
		return fmt.Errorf("journal.batch_size must be positive, got %d", c.Journal.BatchSize)
	}
	return nil
}

// IndexName returns the store name of a declared index: the prefix joined with
// name by "_", blank parts dropped.
func (c Config) IndexName(name string) string {
	return join(c.Prefix, name)
}

// JournalIndex returns the store name of the journal index.
func (c Config) JournalIndex() string {
	name := c.JournalName
	if strings.TrimSpace(name) == "" {
		name = DefaultJournalName
	}
	return join(c.Prefix, name)
}

// SpecificationIndex returns the store name of the specification index.
func (c Config) SpecificationIndex() string {
	name := c.SpecificationName
	if strings.TrimSpace(name) == "" {
		name = DefaultSpecificationName
	}
	return join(c.Prefix, name)
}

// BatchSize returns the journal page size, falling back to the default for a
// zero-value Config.
func (c Config) BatchSize() int {
	if c.Journal.BatchSize <= 0 {
		return DefaultBatchSize
	}
	return c.Journal.BatchSize
}

func join(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "_")
}
