// Package coreconfig loads the YAML-driven configuration for a running
// core: completion defaults, dispatcher tuning, and solver tuning.
package coreconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kadirpekel/agentcore/pkg/corerrors"
)

// CompletionConfig mirrors gateway.CompletionConfig's tunables in
// YAML-friendly form.
type CompletionConfig struct {
	Temperature float64 `yaml:"temperature,omitempty"`
	NumCtx      int     `yaml:"num_ctx,omitempty"`
	MaxTokens   int     `yaml:"max_tokens,omitempty"`
}

// SetDefaults fills unset fields with the documented defaults
// (temperature 1.0, num_ctx 32768, max_tokens 16384).
func (c *CompletionConfig) SetDefaults() {
	if c.Temperature == 0 {
		c.Temperature = 1.0
	}
	if c.NumCtx == 0 {
		c.NumCtx = 32768
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = 16384
	}
}

// Validate checks the completion tunables are within sane ranges.
func (c *CompletionConfig) Validate() error {
	if c.Temperature < 0 || c.Temperature > 2 {
		return &corerrors.ConfigError{Field: "temperature", Message: "must be between 0 and 2"}
	}
	if c.MaxTokens < 1 {
		return &corerrors.ConfigError{Field: "max_tokens", Message: "must be positive"}
	}
	return nil
}

// DispatcherConfig tunes an AsyncDispatcher.
type DispatcherConfig struct {
	BatchSize    int           `yaml:"batch_size,omitempty"`
	TickInterval time.Duration `yaml:"tick_interval,omitempty"`
}

// SetDefaults fills unset fields with the dispatcher's documented
// defaults (batch size 5, tick interval 100ms).
func (c *DispatcherConfig) SetDefaults() {
	if c.BatchSize == 0 {
		c.BatchSize = 5
	}
	if c.TickInterval == 0 {
		c.TickInterval = 100 * time.Millisecond
	}
}

// Validate checks the dispatcher tunables.
func (c *DispatcherConfig) Validate() error {
	if c.BatchSize < 1 {
		return &corerrors.ConfigError{Field: "batch_size", Message: "must be positive"}
	}
	if c.TickInterval <= 0 {
		return &corerrors.ConfigError{Field: "tick_interval", Message: "must be positive"}
	}
	return nil
}

// SolverKind selects which solver strategy a SolverConfig configures.
type SolverKind string

const (
	SolverKindSimple SolverKind = "simple"
	SolverKindReact  SolverKind = "react"
)

// SolverConfig tunes either SimpleSolver or ReactSolver.
type SolverConfig struct {
	Kind          SolverKind    `yaml:"kind,omitempty"`
	Model         string        `yaml:"model,omitempty"`
	MaxIterations int           `yaml:"max_iterations,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// SetDefaults fills unset fields: kind "simple", max_iterations 5 for
// simple (10 for react), timeout 300s.
func (c *SolverConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = SolverKindSimple
	}
	if c.MaxIterations == 0 {
		if c.Kind == SolverKindReact {
			c.MaxIterations = 10
		} else {
			c.MaxIterations = 5
		}
	}
	if c.Timeout == 0 {
		c.Timeout = 300 * time.Second
	}
}

// Validate checks the solver tunables.
func (c *SolverConfig) Validate() error {
	if c.Kind != SolverKindSimple && c.Kind != SolverKindReact {
		return &corerrors.ConfigError{Field: "kind", Message: fmt.Sprintf("invalid solver kind %q", c.Kind)}
	}
	if c.Model == "" {
		return &corerrors.ConfigError{Field: "model", Message: "required"}
	}
	if c.MaxIterations < 1 {
		return &corerrors.ConfigError{Field: "max_iterations", Message: "must be positive"}
	}
	return nil
}

// Config is the root configuration document for a running core.
type Config struct {
	Completion CompletionConfig `yaml:"completion,omitempty"`
	Dispatcher DispatcherConfig `yaml:"dispatcher,omitempty"`
	Solver     SolverConfig     `yaml:"solver,omitempty"`
}

// SetDefaults fills every section's unset fields with its documented
// defaults.
func (c *Config) SetDefaults() {
	c.Completion.SetDefaults()
	c.Dispatcher.SetDefaults()
	c.Solver.SetDefaults()
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Completion.Validate(); err != nil {
		return err
	}
	if err := c.Dispatcher.Validate(); err != nil {
		return err
	}
	return c.Solver.Validate()
}

// Load reads and parses a YAML configuration file at path, applies
// defaults, and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &corerrors.SerializationError{Message: "parsing config yaml", Err: err}
	}

	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
