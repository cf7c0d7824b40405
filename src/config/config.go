// Package config loads the YAML configuration of the ADR engine.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"

	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/glmoritz/labscimadr/src/estimator"
	"github.com/glmoritz/labscimadr/src/policy"
	"github.com/glmoritz/labscimadr/src/signal"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents the main application configuration
type Config struct {
	Settings Settings       `yaml:"settings"`
	Engine   EngineConfig   `yaml:"engine"`
	Bounds   BoundsConfig   `yaml:"bounds"`
	Link     LinkConfig     `yaml:"link"`
	Feedback FeedbackConfig `yaml:"feedback"`
	Particle ParticleConfig `yaml:"particle"`
	Fuzzy    FuzzyConfig    `yaml:"fuzzy"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel string `yaml:"logLevel"`
}

// EngineConfig selects the estimator and policy and tunes the pipeline.
type EngineConfig struct {
	Preset             string  `yaml:"preset"`
	Estimator          string  `yaml:"estimator"`
	Policy             string  `yaml:"policy"`
	CombiningMethod    string  `yaml:"combiningMethod"`
	HistoryRange       int     `yaml:"historyRange"`
	AllowTxPowerChange bool    `yaml:"allowTxPowerChange"`
	DeviceMargin       float64 `yaml:"deviceMargin"`
	TxPowerStep        float64 `yaml:"txPowerStep"`
	PersistentKalman   bool    `yaml:"persistentKalman"`
	RequireADRAckReq   bool    `yaml:"requireAdrAckReq"`
	Seed               uint64  `yaml:"seed"`
}

// BoundsConfig limits the configurations the engine may hand out.
type BoundsConfig struct {
	SFMin    int     `yaml:"sfMin"`
	SFMax    int     `yaml:"sfMax"`
	TPMinDbm float64 `yaml:"tpMinDbm"`
	TPMaxDbm float64 `yaml:"tpMaxDbm"`
}

// LinkConfig is the receiver link budget.
type LinkConfig struct {
	BandwidthHz float64 `yaml:"bandwidthHz"`
	NoiseFigure float64 `yaml:"noiseFigure"`
}

// FeedbackConfig holds the PID gains.
type FeedbackConfig struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// ParticleConfig tunes the particle filter.
type ParticleConfig struct {
	Count            int     `yaml:"count"`
	ProcessNoise     float64 `yaml:"processNoise"`
	MeasurementNoise float64 `yaml:"measurementNoise"`
}

// FuzzyConfig picks the rule base. RuleBase, a file path, wins over Builtin.
type FuzzyConfig struct {
	RuleBase string `yaml:"ruleBase"`
	Builtin  string `yaml:"builtin"`
}

// MetricsConfig enables the Prometheus listener when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// Default returns the configuration of the standard network-server ADR.
func Default() Config {
	b := signal.DefaultBounds
	l := signal.DefaultLinkBudget
	p := estimator.DefaultParticleOptions
	return Config{
		Settings: Settings{LogLevel: "info"},
		Engine: EngineConfig{
			Preset:             "lorawan",
			Estimator:          string(estimator.Maximum),
			Policy:             string(policy.Stepwise),
			CombiningMethod:    signal.Maximum.String(),
			HistoryRange:       20,
			AllowTxPowerChange: true,
			DeviceMargin:       10,
			TxPowerStep:        policy.DefaultTxPowerStep,
			Seed:               1,
		},
		Bounds: BoundsConfig{
			SFMin:    b.SFMin,
			SFMax:    b.SFMax,
			TPMinDbm: b.TPMinDbm,
			TPMaxDbm: b.TPMaxDbm,
		},
		Link: LinkConfig{BandwidthHz: l.BandwidthHz, NoiseFigure: l.NoiseFigureDb},
		Feedback: FeedbackConfig{
			Kp: policy.DefaultGains.Kp,
			Ki: policy.DefaultGains.Ki,
			Kd: policy.DefaultGains.Kd,
		},
		Particle: ParticleConfig{
			Count:            p.Count,
			ProcessNoise:     p.ProcessNoise,
			MeasurementNoise: p.MeasurementNoise,
		},
		Fuzzy: FuzzyConfig{Builtin: "fuzzy-mb"},
	}
}

// Load reads and validates the configuration at path.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of the defaults. When engine.preset is set the
// preset is applied first, so explicit fields in data override it.
func Parse(data []byte) (Config, error) {
	var head struct {
		Engine struct {
			Preset string `yaml:"preset"`
		} `yaml:"engine"`
	}
	if err := yaml.Unmarshal(data, &head); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg := Default()
	if head.Engine.Preset != "" {
		if err := cfg.ApplyPreset(head.Engine.Preset); err != nil {
			return Config{}, err
		}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks ranges and names.
func (c Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalid}, args...)...))
	}

	if _, err := log.ParseLevel(c.Settings.LogLevel); err != nil {
		add("settings.logLevel: %v", err)
	}

	e := c.Engine
	if !slices.Contains(estimator.Kinds, estimator.Kind(e.Estimator)) {
		add("engine.estimator: unknown %q", e.Estimator)
	}
	switch policy.Kind(e.Policy) {
	case policy.Stepwise, policy.Fuzzy, policy.Feedback:
	default:
		add("engine.policy: unknown %q", e.Policy)
	}
	if _, err := signal.ParseCombiningMethod(e.CombiningMethod); err != nil {
		add("engine.combiningMethod: %v", err)
	}
	if e.HistoryRange < 1 || e.HistoryRange > 100 {
		add("engine.historyRange: %d not in [1, 100]", e.HistoryRange)
	}
	if e.TxPowerStep <= 0 {
		add("engine.txPowerStep: must be positive")
	}

	b := c.Bounds
	if b.SFMin < 7 || b.SFMax > 12 || b.SFMin > b.SFMax {
		add("bounds: spreading factor range [%d, %d] outside SF7..SF12", b.SFMin, b.SFMax)
	}
	if b.TPMinDbm > b.TPMaxDbm {
		add("bounds: tpMinDbm %v above tpMaxDbm %v", b.TPMinDbm, b.TPMaxDbm)
	}

	if c.Link.BandwidthHz <= 0 {
		add("link.bandwidthHz: must be positive")
	}
	if c.Particle.Count < 0 || c.Particle.ProcessNoise < 0 || c.Particle.MeasurementNoise < 0 {
		add("particle: negative parameter")
	}
	if policy.Kind(e.Policy) == policy.Fuzzy && c.Fuzzy.RuleBase == "" && c.Fuzzy.Builtin == "" {
		add("fuzzy: a rule base is required by the fuzzy policy")
	}

	return errors.Join(errs...)
}

// SignalBounds converts the bounds section.
func (c Config) SignalBounds() signal.Bounds {
	return signal.Bounds{
		SFMin:    c.Bounds.SFMin,
		SFMax:    c.Bounds.SFMax,
		TPMinDbm: c.Bounds.TPMinDbm,
		TPMaxDbm: c.Bounds.TPMaxDbm,
	}
}

// LinkBudget converts the link section.
func (c Config) LinkBudget() signal.LinkBudget {
	return signal.LinkBudget{BandwidthHz: c.Link.BandwidthHz, NoiseFigureDb: c.Link.NoiseFigure}
}
