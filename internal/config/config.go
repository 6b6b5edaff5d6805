// Package config loads the ambient settings around a buflog.Manager:
// buffer capacity, group-fsync period, durability mode, and the log file
// path. None of this is part of the batching engine itself — the spec
// treats configuration loading as an external collaborator — but a
// runnable binary needs it.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the tunables for a buflog.Manager plus the lifecycle
// details needed to wire one up: which file it writes to.
type Config struct {
	// BufferCapacity is the reserved size, in bytes, of each of the two
	// buffers. Default: 10000.
	BufferCapacity int `yaml:"buffer_capacity"`

	// GroupFsyncPeriod is the worker's full-durability wait period.
	// Default: 10ms. Accepts a Go duration string (e.g. "10ms").
	GroupFsyncPeriod time.Duration `yaml:"group_fsync_period"`

	// FullDurability selects the initial durability regime.
	FullDurability bool `yaml:"full_durability"`

	// LogFilePath is the append-only file the engine writes to.
	LogFilePath string `yaml:"log_file_path"`
}

// DefaultConfig returns a Config populated with the values observed in
// the source implementation.
func DefaultConfig() Config {
	return Config{
		BufferCapacity:   10000,
		GroupFsyncPeriod: 10 * time.Millisecond,
		FullDurability:   false,
		LogFilePath:      "audit.log",
	}
}

// Validate clamps invalid fields to their defaults in place, mirroring
// the teacher's Config.Validate rather than rejecting the whole struct
// for one bad field.
func (c *Config) Validate() error {
	defaults := DefaultConfig()
	if c.BufferCapacity <= 0 {
		c.BufferCapacity = defaults.BufferCapacity
	}
	if c.GroupFsyncPeriod <= 0 {
		c.GroupFsyncPeriod = defaults.GroupFsyncPeriod
	}
	if c.LogFilePath == "" {
		c.LogFilePath = defaults.LogFilePath
	}
	return nil
}

// Load reads a YAML config file at path, applying DefaultConfig values
// for anything absent from the file and then Validate to clamp any
// remaining out-of-range values.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
