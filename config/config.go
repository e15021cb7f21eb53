package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/notargets/espoisson/grid"
	"github.com/notargets/espoisson/multigrid"
	"github.com/notargets/espoisson/solver"
)

const (
	DefaultGridSize      = 8
	DefaultH             = 0.25
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 10000
	DefaultMaxCycles     = 50
	DefaultCoarsestSize  = 2
	DefaultSmoothSweeps  = 2
)

// Config holds every solver setting recognized across the module.
type Config struct {
	GridSize         int     `yaml:"grid_size"`
	H                float64 `yaml:"h"`
	Charge           float64 `yaml:"charge"`
	Method           string  `yaml:"method"`
	Tolerance        float64 `yaml:"tolerance"`
	MaxIterations    int     `yaml:"max_iterations"`
	RelaxationWeight float64 `yaml:"relaxation_weight"`

	Multigrid MultigridConfig `yaml:"multigrid"`
}

// MultigridConfig holds the hierarchy settings.
type MultigridConfig struct {
	CoarsestSize   int    `yaml:"coarsest_size"`
	MaxCycles      int    `yaml:"max_cycles"`
	PreSmooth      int    `yaml:"pre_smooth"`
	PostSmooth     int    `yaml:"post_smooth"`
	Smoother       string `yaml:"smoother"`
	BoundaryPolicy string `yaml:"boundary_policy"`
	Prolongation   string `yaml:"prolongation"`
}

// Default returns the baseline configuration.
func Default() *Config {
	return &Config{
		GridSize:         DefaultGridSize,
		H:                DefaultH,
		Charge:           1,
		Method:           string(solver.ConjugateGradient),
		Tolerance:        DefaultTolerance,
		MaxIterations:    DefaultMaxIterations,
		RelaxationWeight: solver.DefaultWeight,
		Multigrid: MultigridConfig{
			CoarsestSize:   DefaultCoarsestSize,
			MaxCycles:      DefaultMaxCycles,
			PreSmooth:      DefaultSmoothSweeps,
			PostSmooth:     DefaultSmoothSweeps,
			Smoother:       string(solver.GaussSeidel),
			BoundaryPolicy: string(multigrid.RecomputeFlux),
			Prolongation:   string(multigrid.Trilinear),
		},
	}
}

// Presets are named ready-made configurations. "validation" is the
// 3-cell reference problem used to cross-check solvers against the
// direct solve; "benchmark" is a multigrid-sized problem.
var Presets = map[string]func() *Config{
	"validation": func() *Config {
		c := Default()
		c.GridSize = 3
		c.H = 2.0 / 3.0
		return c
	},
	"benchmark": func() *Config {
		c := Default()
		c.GridSize = 16
		c.H = 0.125
		return c
	},
}

// Preset returns a named preset configuration.
func Preset(name string) (*Config, error) {
	f, ok := Presets[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown preset %q: %w", name, grid.ErrConfiguration)
	}
	return f(), nil
}

// Load reads a yaml configuration file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	c := Default()
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Validate checks every field against the parameter constraints shared
// by the solver packages.
func (c *Config) Validate() error {
	if _, err := grid.New(c.GridSize, c.H); err != nil {
		return err
	}
	if _, err := solver.ParseMethod(c.Method); err != nil {
		return err
	}
	if c.Tolerance <= 0 {
		return fmt.Errorf("config: tolerance must be > 0, got %g: %w", c.Tolerance, grid.ErrConfiguration)
	}
	if c.MaxIterations < 1 {
		return fmt.Errorf("config: max_iterations must be >= 1, got %d: %w", c.MaxIterations, grid.ErrConfiguration)
	}
	if c.RelaxationWeight <= 0 || c.RelaxationWeight > 1 {
		return fmt.Errorf("config: relaxation_weight must be in (0, 1], got %g: %w", c.RelaxationWeight, grid.ErrConfiguration)
	}
	if c.Multigrid.CoarsestSize < 2 {
		return fmt.Errorf("config: coarsest_size must be >= 2, got %d: %w", c.Multigrid.CoarsestSize, grid.ErrConfiguration)
	}
	if c.Multigrid.MaxCycles < 1 {
		return fmt.Errorf("config: max_cycles must be >= 1, got %d: %w", c.Multigrid.MaxCycles, grid.ErrConfiguration)
	}
	if c.Multigrid.PreSmooth < 1 || c.Multigrid.PostSmooth < 1 {
		return fmt.Errorf("config: pre_smooth and post_smooth must be >= 1, got %d/%d: %w",
			c.Multigrid.PreSmooth, c.Multigrid.PostSmooth, grid.ErrConfiguration)
	}
	if _, err := multigrid.ParseSmoother(c.Multigrid.Smoother); err != nil {
		return err
	}
	if _, err := multigrid.ParseBoundaryPolicy(c.Multigrid.BoundaryPolicy); err != nil {
		return err
	}
	if _, err := multigrid.ParseProlongation(c.Multigrid.Prolongation); err != nil {
		return err
	}
	return nil
}

// SolverOptions converts the configuration into iterative solver
// options.
func (c *Config) SolverOptions() solver.Options {
	return solver.Options{
		Tolerance:     c.Tolerance,
		MaxIterations: c.MaxIterations,
		Weight:        c.RelaxationWeight,
	}
}

// MultigridOptions converts the configuration into multigrid options.
func (c *Config) MultigridOptions() multigrid.Options {
	return multigrid.Options{
		Tolerance:    c.Tolerance,
		MaxCycles:    c.Multigrid.MaxCycles,
		PreSmooth:    c.Multigrid.PreSmooth,
		PostSmooth:   c.Multigrid.PostSmooth,
		Smoother:     solver.Method(c.Multigrid.Smoother),
		Weight:       c.RelaxationWeight,
		Prolongation: multigrid.Prolongation(c.Multigrid.Prolongation),
	}
}
