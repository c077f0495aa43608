package main

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/robert-malhotra/go-freesurfer/internal/stream"
)

// Config is the optional fsdump configuration loaded from YAML.
type Config struct {
	Stream struct {
		// GzipSuffixes overrides the filename suffixes treated as
		// gzip-compressed.
		GzipSuffixes []string `yaml:"gzipSuffixes"`
	} `yaml:"stream"`

	Output struct {
		// Color enables colored section headers.
		Color bool `yaml:"color"`

		// MaxRows caps how many table or data rows a section prints.
		MaxRows int `yaml:"maxRows"`
	} `yaml:"output"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.Stream.GzipSuffixes = stream.DefaultPolicy().GzipSuffixes
	cfg.Output.Color = true
	cfg.Output.MaxRows = 12
	return cfg
}

// LoadConfig loads configuration from a YAML file. A missing file yields
// the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return cfg, nil
}

// Policy builds the stream policy the configured suffixes describe.
func (c *Config) Policy() stream.Policy {
	return stream.Policy{GzipSuffixes: c.Stream.GzipSuffixes}
}
