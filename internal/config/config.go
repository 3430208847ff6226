// Package config loads agent configuration from YAML.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/roach88/prodsys/internal/engine"
	"github.com/roach88/prodsys/internal/reorder"
)

// Defaults applied to absent fields.
const (
	DefaultMaxElaborations = 100
	DefaultMaxDecisions    = 100
)

// Config is the agent configuration file.
type Config struct {
	// SupportMode applies to productions without a support declaration.
	SupportMode string `yaml:"support_mode"`

	// BranchingFactors weighs unbound values of the named attributes when
	// reordering conditions.
	BranchingFactors map[string]int `yaml:"branching_factors"`

	ReorderNCCs *bool `yaml:"reorder_nccs"`

	// MaxElaborations bounds the elaboration waves of one decision.
	MaxElaborations int `yaml:"max_elaborations"`

	// MaxDecisions bounds the decision cycles of one run.
	MaxDecisions int `yaml:"max_decisions"`

	// TraceDB is the SQLite trace path. Empty disables recording.
	TraceDB string `yaml:"trace_db"`

	Log LogConfig `yaml:"log"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level     string `yaml:"level"`  // debug | info | warn | error
	Format    string `yaml:"format"` // text | json
	AddSource bool   `yaml:"add_source"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	c := &Config{}
	c.applyDefaults()
	return c
}

// Load reads and validates the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes YAML, applies defaults and validates. Unknown keys are
// rejected.
func Parse(data []byte) (*Config, error) {
	c := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	c.applyDefaults()
	if errs := c.Validate(); len(errs) > 0 {
		return nil, errors.Join(toErrors(errs)...)
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.MaxElaborations == 0 {
		c.MaxElaborations = DefaultMaxElaborations
	}
	if c.MaxDecisions == 0 {
		c.MaxDecisions = DefaultMaxDecisions
	}
	if c.ReorderNCCs == nil {
		on := true
		c.ReorderNCCs = &on
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Support returns the parsed support mode.
func (c *Config) Support() engine.SupportMode {
	mode, err := engine.ParseSupportMode(c.SupportMode)
	if err != nil {
		return engine.SupportAutomatic
	}
	return mode
}

// Branching returns the branching factors in reorderer form.
func (c *Config) Branching() reorder.BranchingFactors {
	if len(c.BranchingFactors) == 0 {
		return nil
	}
	out := make(reorder.BranchingFactors, len(c.BranchingFactors))
	for attr, f := range c.BranchingFactors {
		out[attr] = f
	}
	return out
}

// NCCs reports whether conjunctive negations are reordered.
func (c *Config) NCCs() bool {
	return c.ReorderNCCs == nil || *c.ReorderNCCs
}

// NewLogger builds the logger described by lc, writing to w.
func (lc LogConfig) NewLogger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level:     parseLevel(lc.Level),
		AddSource: lc.AddSource,
	}
	if strings.EqualFold(lc.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
