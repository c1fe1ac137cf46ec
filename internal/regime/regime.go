// Package regime holds market regime configuration and the synthetic price
// path generator used to stress candidate designs.
package regime

import (
	"errors"
	"fmt"
	"math"

	"github.com/ManiFed/invariant-sub001/internal/model"
)

var ErrInvalidConfig = errors.New("invalid regime config")

// Config parameterises one regime. Drift and volatility are per unit horizon;
// a path spans one horizon split into Steps increments.
type Config struct {
	ID                  model.Regime `json:"id" yaml:"id"`
	Drift               float64      `json:"drift" yaml:"drift"`
	Volatility          float64      `json:"volatility" yaml:"volatility"`
	JumpIntensity       float64      `json:"jump_intensity" yaml:"jump_intensity"`
	JumpMean            float64      `json:"jump_mean" yaml:"jump_mean"`
	JumpStd             float64      `json:"jump_std" yaml:"jump_std"`
	ShiftDrift          float64      `json:"shift_drift" yaml:"shift_drift"`
	ShiftVolMultiplier  float64      `json:"shift_vol_multiplier" yaml:"shift_vol_multiplier"`
	ShiftJumpMultiplier float64      `json:"shift_jump_multiplier" yaml:"shift_jump_multiplier"`
	// NoiseFlow is the mean uninformed order size as a fraction of initial LP value.
	NoiseFlow float64 `json:"noise_flow" yaml:"noise_flow"`
	Steps     int     `json:"steps" yaml:"steps"`
	Paths     int     `json:"paths" yaml:"paths"`
}

// HasShift reports whether paths switch parameters mid-path.
func (c Config) HasShift() bool {
	return c.ID == model.RegimeShift
}

func (c Config) Validate() error {
	if !c.ID.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInvalidConfig, model.ErrUnknownRegime, c.ID)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: %s steps must be > 0", ErrInvalidConfig, c.ID)
	}
	if c.Paths <= 0 {
		return fmt.Errorf("%w: %s paths must be > 0", ErrInvalidConfig, c.ID)
	}
	if c.Volatility < 0 || c.JumpIntensity < 0 || c.JumpStd < 0 || c.NoiseFlow < 0 {
		return fmt.Errorf("%w: %s volatility, jump and flow parameters must be >= 0", ErrInvalidConfig, c.ID)
	}
	if c.HasShift() && (c.ShiftVolMultiplier < 0 || c.ShiftJumpMultiplier < 0) {
		return fmt.Errorf("%w: %s shift multipliers must be >= 0", ErrInvalidConfig, c.ID)
	}
	for name, v := range map[string]float64{
		"drift": c.Drift, "volatility": c.Volatility, "jump_mean": c.JumpMean, "shift_drift": c.ShiftDrift,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: %s %s is not finite", ErrInvalidConfig, c.ID, name)
		}
	}
	return nil
}

// Defaults returns the built-in configuration for the four regimes.
func Defaults() []Config {
	return []Config{
		{
			ID:         model.RegimeLowVolatility,
			Volatility: 0.15,
			NoiseFlow:  0.01,
			Steps:      96,
			Paths:      6,
		},
		{
			ID:         model.RegimeHighVolatility,
			Volatility: 0.6,
			NoiseFlow:  0.015,
			Steps:      96,
			Paths:      6,
		},
		{
			ID:            model.RegimeJumpDiffusion,
			Volatility:    0.3,
			JumpIntensity: 4,
			JumpMean:      -0.02,
			JumpStd:       0.12,
			NoiseFlow:     0.012,
			Steps:         96,
			Paths:         6,
		},
		{
			ID:                  model.RegimeShift,
			Volatility:          0.25,
			JumpIntensity:       1.5,
			JumpStd:             0.08,
			ShiftDrift:          -0.3,
			ShiftVolMultiplier:  3,
			ShiftJumpMultiplier: 2,
			NoiseFlow:           0.012,
			Steps:               96,
			Paths:               6,
		},
	}
}

// Catalog indexes configs by regime.
type Catalog map[model.Regime]Config

// NewCatalog validates cfgs and requires every regime to be covered exactly once.
func NewCatalog(cfgs []Config) (Catalog, error) {
	out := make(Catalog, len(cfgs))
	for _, cfg := range cfgs {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, dup := out[cfg.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate regime %s", ErrInvalidConfig, cfg.ID)
		}
		out[cfg.ID] = cfg
	}
	for _, r := range model.Regimes() {
		if _, ok := out[r]; !ok {
			return nil, fmt.Errorf("%w: missing regime %s", ErrInvalidConfig, r)
		}
	}
	return out, nil
}

// DefaultCatalog panics only if the built-in defaults are broken.
func DefaultCatalog() Catalog {
	c, err := NewCatalog(Defaults())
	if err != nil {
		panic(err)
	}
	return c
}

func (c Catalog) Lookup(r model.Regime) (Config, error) {
	cfg, ok := c[r]
	if !ok {
		return Config{}, fmt.Errorf("%w: %q", model.ErrUnknownRegime, r)
	}
	return cfg, nil
}
