package sampler

import (
	"io/ioutil"
	"log/slog"
	"math"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Progress is reported after every completed iteration
type Progress struct {
	Phase     Phase
	Iteration int // 1-based within the phase
	Total     int // iterations in the phase
	Accepted  bool
	Divergent bool
}

// Config controls a sampling run. The zero value is not useful: start from
// DefaultConfig and override what you need.
type Config struct {
	Warmup         int     `yaml:"warmup"`           // adaptation iterations, never returned
	Samples        int     `yaml:"samples"`          // recorded iterations
	MinSteps       int     `yaml:"min_steps"`        // leapfrog steps per trajectory, inclusive range
	MaxSteps       int     `yaml:"max_steps"`        //
	TargetAccept   float64 `yaml:"target_accept"`    // dual averaging goal
	StepSize       float64 `yaml:"step_size"`        // initial (or pre-tuned) step size
	MaxEnergyError float64 `yaml:"max_energy_error"` // Hamiltonian error counted as a divergence
	FailureWindow  int     `yaml:"failure_window"`   // consecutive non-finite proposals before giving up
	InitTries      int     `yaml:"init_tries"`       // random starting points tried before giving up
	DriftWindow    int     `yaml:"drift_window"`     // late warmup log densities compared for drift
	Seed           int64   `yaml:"seed"`

	// InvMass is a pre-tuned inverse mass diagonal. When set (with Warmup 0)
	// sampling uses it as is.
	InvMass []float64 `yaml:"inv_mass"`

	// Initial is a starting point on the natural scale of the parameters
	Initial []float64 `yaml:"initial"`

	Logger   *slog.Logger   `yaml:"-"`
	Metrics  *Metrics       `yaml:"-"`
	Progress func(Progress) `yaml:"-"`
}

// DefaultConfig returns the standard settings
func DefaultConfig() Config {
	return Config{
		Warmup:         100,
		Samples:        1000,
		MinSteps:       10,
		MaxSteps:       20,
		TargetAccept:   0.65,
		StepSize:       0.1,
		MaxEnergyError: 1000,
		FailureWindow:  50,
		InitTries:      20,
		DriftWindow:    50,
		Seed:           1,
	}
}

// LoadConfig overlays a YAML file on the defaults
func LoadConfig(filename string) (Config, error) {
	cfg := DefaultConfig()
	data, err := ioutil.ReadFile(filename)
	if err != nil {
		return cfg, errors.Wrapf(err, "Could not READ config from %s", filename)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "Could not PARSE config %s", filename)
	}
	return cfg, cfg.Check()
}

// Check returns an error for settings that cannot work
func (c *Config) Check() error {
	if c.Warmup < 0 {
		return errors.Errorf("Warmup must be >= 0, got %d", c.Warmup)
	}
	if c.Samples < 0 {
		return errors.Errorf("Samples must be >= 0, got %d", c.Samples)
	}
	if c.MinSteps < 1 || c.MaxSteps < c.MinSteps {
		return errors.Errorf("Need 1 <= MinSteps <= MaxSteps, got %d and %d", c.MinSteps, c.MaxSteps)
	}
	if !(c.TargetAccept > 0 && c.TargetAccept < 1) {
		return errors.Errorf("TargetAccept must be in (0, 1), got %v", c.TargetAccept)
	}
	if !(c.StepSize > 0) || math.IsInf(c.StepSize, 0) {
		return errors.Errorf("StepSize must be positive and finite, got %v", c.StepSize)
	}
	if !(c.MaxEnergyError > 0) {
		return errors.Errorf("MaxEnergyError must be positive, got %v", c.MaxEnergyError)
	}
	if c.FailureWindow < 1 {
		return errors.Errorf("FailureWindow must be >= 1, got %d", c.FailureWindow)
	}
	if c.InitTries < 1 {
		return errors.Errorf("InitTries must be >= 1, got %d", c.InitTries)
	}
	if c.DriftWindow < 0 {
		return errors.Errorf("DriftWindow must be >= 0, got %d", c.DriftWindow)
	}
	for i, m := range c.InvMass {
		if !(m > 0) || math.IsInf(m, 0) {
			return errors.Errorf("InvMass[%d] must be positive and finite, got %v", i, m)
		}
	}
	return nil
}
