package core

import (
	"fmt"
	"math/rand"
	"os"

	"gopkg.in/yaml.v3"
)

// Config describes one stencil run. It can be loaded from YAML and then
// overridden field by field.
type Config struct {
	Engine     string  `json:"engine" yaml:"engine"`
	Iterations int     `json:"iterations" yaml:"iterations"`
	N          int     `json:"n" yaml:"n"`
	Tasks      int     `json:"tasks" yaml:"tasks"`
	Seed       int64   `json:"seed" yaml:"seed"`
	Left       float64 `json:"left" yaml:"left"`
	Right      float64 `json:"right" yaml:"right"`
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() Config {
	return Config{
		Engine:     EngineFuzzyBarrier,
		Iterations: 100,
		N:          1000,
		Tasks:      DefaultTasks,
		Seed:       1,
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects configurations no engine can run.
func (c Config) Validate() error {
	known := false
	for _, name := range EngineNames() {
		if c.Engine == name {
			known = true
		}
	}
	if !known {
		return invalidf("unknown engine %q", c.Engine)
	}
	if c.Iterations < 0 {
		return invalidf("iterations must be >= 0, got %d", c.Iterations)
	}
	if c.N < 0 {
		return invalidf("n must be >= 0, got %d", c.N)
	}
	return validateTasks(c.Tasks)
}

// Workspace generates a workspace with uniform random interior values in
// [0, 1) drawn from Seed.
func (c Config) Workspace() *Workspace {
	r := rand.New(rand.NewSource(c.Seed))
	initial := make([]float64, c.N)
	for i := range initial {
		initial[i] = r.Float64()
	}
	return NewWorkspace(initial, c.Left, c.Right)
}
