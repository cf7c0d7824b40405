package config

import (
	"fmt"
	"sort"

	"github.com/glmoritz/labscimadr/src/estimator"
	"github.com/glmoritz/labscimadr/src/policy"
)

var presets = map[string]func(*Config){
	"lorawan": func(c *Config) {
		c.Engine.Estimator = string(estimator.Maximum)
	},
	"plus": func(c *Config) {
		c.Engine.Estimator = string(estimator.Average)
	},
	"ema": func(c *Config) {
		c.Engine.Estimator = string(estimator.Smoothing)
		c.Engine.RequireADRAckReq = true
	},
	"gaussian": func(c *Config) {
		c.Engine.Estimator = string(estimator.Gaussian)
		c.Engine.RequireADRAckReq = true
	},
	"mb": func(c *Config) {
		c.Engine.Estimator = string(estimator.Quartile)
	},
	"emb": func(c *Config) {
		c.Engine.Estimator = string(estimator.Quartile)
		c.Engine.TxPowerStep = 2
	},
	"kalman": func(c *Config) {
		c.Engine.Estimator = string(estimator.Kalman)
	},
	"kriging": func(c *Config) {
		c.Engine.Estimator = string(estimator.Kriging)
	},
	"pf": func(c *Config) {
		c.Engine.Estimator = string(estimator.Particle)
		c.Engine.TxPowerStep = 2
		c.Engine.DeviceMargin = 0
	},
	"pid": func(c *Config) {
		c.Engine.Estimator = string(estimator.Average)
		c.Engine.Policy = string(policy.Feedback)
		c.Engine.HistoryRange = 10
	},
	"fuzzy-mb": func(c *Config) {
		c.Engine.Estimator = string(estimator.Quartile)
		c.Engine.Policy = string(policy.Fuzzy)
		c.Fuzzy.Builtin = "fuzzy-mb"
	},
	"fuzzy-rep": func(c *Config) {
		c.Engine.Estimator = string(estimator.Average)
		c.Engine.Policy = string(policy.Fuzzy)
		c.Fuzzy.Builtin = "fuzzy-rep"
	},
}

// Presets returns the known preset names, sorted.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset resets the engine to the standard ADR and then applies the
// named variant on top.
func (c *Config) ApplyPreset(name string) error {
	apply, ok := presets[name]
	if !ok {
		return fmt.Errorf("%w: unknown preset %q", ErrInvalid, name)
	}
	d := Default()
	c.Engine = d.Engine
	c.Fuzzy = d.Fuzzy
	c.Engine.Preset = name
	apply(c)
	return nil
}
