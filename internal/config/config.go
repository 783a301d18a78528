// Package config loads run configurations for the synchrony command from
// YAML files. Values missing from a file keep their defaults.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	synchrony "github.com/tphakala/go-synchrony"
)

// Config is the full run configuration of the command line tool.
type Config struct {
	Engine EngineConfig `yaml:"engine"`
	Input  InputConfig  `yaml:"input"`
	Output OutputConfig `yaml:"output"`
}

// EngineConfig mirrors synchrony.Config.
type EngineConfig struct {
	Dimension int     `yaml:"dimension"`
	Lag       int     `yaml:"lag"`
	PRef      float64 `yaml:"pref"`
	Stride    int     `yaml:"stride"`
	W2        int     `yaml:"w2"`
	Step      float64 `yaml:"step"`
	MaxSteps  int64   `yaml:"max_steps"`
	Workers   int     `yaml:"workers"`
	Parallel  bool    `yaml:"parallel"`
}

// InputConfig selects the part of a recording to analyse.
type InputConfig struct {
	Rate    float64  `yaml:"rate"` // required for plain text recordings
	Exclude []string `yaml:"exclude"`
	Start   float64  `yaml:"start"`
	End     float64  `yaml:"end"`
}

// OutputConfig controls the text matrix format.
type OutputConfig struct {
	Precision int    `yaml:"precision"`
	Delimiter string `yaml:"delimiter"`
}

// DefaultConfig returns the library defaults with the standard text format.
func DefaultConfig() *Config {
	def := synchrony.DefaultConfig()
	return &Config{
		Engine: EngineConfig{
			Dimension: def.Dimension,
			Lag:       def.Lag,
			PRef:      def.PRef,
			Stride:    def.Stride,
			W2:        def.W2,
			Step:      def.Step,
			MaxSteps:  def.MaxSteps,
			Workers:   def.Workers,
			Parallel:  def.EnableParallel,
		},
		Output: OutputConfig{
			Precision: synchrony.DefaultPrecision,
			Delimiter: synchrony.DefaultDelimiter,
		},
	}
}

// Load reads a YAML file over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes cfg as YAML. The file can be passed back to Load.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LibraryConfig returns the library configuration, validated.
func (c *Config) LibraryConfig() (*synchrony.Config, error) {
	cfg := &synchrony.Config{
		Dimension:      c.Engine.Dimension,
		Lag:            c.Engine.Lag,
		PRef:           c.Engine.PRef,
		Stride:         c.Engine.Stride,
		W2:             c.Engine.W2,
		Step:           c.Engine.Step,
		MaxSteps:       c.Engine.MaxSteps,
		Workers:        c.Engine.Workers,
		EnableParallel: c.Engine.Parallel,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TextOptions returns the matrix formatting options.
func (c *Config) TextOptions() []synchrony.TextOption {
	return []synchrony.TextOption{
		synchrony.WithPrecision(c.Output.Precision),
		synchrony.WithDelimiter(c.Output.Delimiter),
	}
}
