// Package engine runs the ADR pipeline: window, estimator, policy and the
// resulting LinkADRReq.
package engine

import (
	"errors"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/glmoritz/labscimadr/src/config"
	"github.com/glmoritz/labscimadr/src/estimator"
	"github.com/glmoritz/labscimadr/src/fuzzy"
	"github.com/glmoritz/labscimadr/src/metrics"
	"github.com/glmoritz/labscimadr/src/policy"
	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// DeviceStatus is what the MAC layer knows about a device when it asks for a
// decision.
type DeviceStatus interface {
	DeviceID() string
	ADREnabled() bool
	ADRAckRequested() bool
	History() signal.History
	Current() signal.Configuration
}

// Status is a plain DeviceStatus.
type Status struct {
	ID        string
	ADR       bool
	ADRAckReq bool
	Samples   signal.History
	Config    signal.Configuration
}

func (s Status) DeviceID() string              { return s.ID }
func (s Status) ADREnabled() bool              { return s.ADR }
func (s Status) ADRAckRequested() bool         { return s.ADRAckReq }
func (s Status) History() signal.History       { return s.Samples }
func (s Status) Current() signal.Configuration { return s.Config }

// Engine decides configurations for any number of devices. It is safe for
// concurrent use; decisions for the same device are serialized.
type Engine struct {
	cfg       config.Config
	combining signal.CombiningMethod
	bounds    signal.Bounds
	link      signal.LinkBudget

	estimator estimator.Estimator
	policy    policy.Policy
	registry  *state.Registry

	clock    Clock
	log      *log.Entry
	metrics  *metrics.Metrics
	ruleBase *fuzzy.RuleBase
}

// New builds an engine from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	combining, err := signal.ParseCombiningMethod(cfg.Engine.CombiningMethod)
	if err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:       cfg,
		combining: combining,
		bounds:    cfg.SignalBounds(),
		link:      cfg.LinkBudget(),
		registry:  state.NewRegistry(cfg.Engine.Seed),
		clock:     monotonic{origin: time.Now()},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = log.WithField("component", "adr")
	}

	kind := estimator.Kind(cfg.Engine.Estimator)
	e.estimator, err = estimator.New(kind, estimator.Options{
		PersistentKalman: cfg.Engine.PersistentKalman,
		Particles: estimator.ParticleOptions{
			Count:            cfg.Particle.Count,
			ProcessNoise:     cfg.Particle.ProcessNoise,
			MeasurementNoise: cfg.Particle.MeasurementNoise,
		},
		Logger: e.log,
	})
	if err != nil {
		return nil, err
	}

	e.policy, err = e.newPolicy()
	if err != nil {
		return nil, err
	}

	e.log.WithFields(log.Fields{
		"preset":    cfg.Engine.Preset,
		"estimator": e.estimator.Kind(),
		"policy":    e.policy.Kind(),
		"history":   cfg.Engine.HistoryRange,
	}).Info("adr engine ready")
	return e, nil
}

func (e *Engine) newPolicy() (policy.Policy, error) {
	switch policy.Kind(e.cfg.Engine.Policy) {
	case policy.Stepwise:
		return policy.NewStepwise(e.cfg.Engine.TxPowerStep), nil
	case policy.Feedback:
		return policy.NewFeedback(policy.Gains{
			Kp: e.cfg.Feedback.Kp,
			Ki: e.cfg.Feedback.Ki,
			Kd: e.cfg.Feedback.Kd,
		}), nil
	case policy.Fuzzy:
		rb, err := e.loadRuleBase()
		if err != nil {
			return nil, err
		}
		fe, err := fuzzy.NewEngine(rb)
		if err != nil {
			return nil, fmt.Errorf("rule base %s: %w", rb.Name, err)
		}
		return policy.NewFuzzy(fe, e.log.WithField("ruleBase", fe.Name())), nil
	}
	return nil, fmt.Errorf("%w: unknown policy %q", config.ErrInvalid, e.cfg.Engine.Policy)
}

func (e *Engine) loadRuleBase() (fuzzy.RuleBase, error) {
	switch {
	case e.ruleBase != nil:
		return *e.ruleBase, nil
	case e.cfg.Fuzzy.RuleBase != "":
		return fuzzy.LoadRuleBase(e.cfg.Fuzzy.RuleBase)
	default:
		return fuzzy.Builtin(e.cfg.Fuzzy.Builtin)
	}
}

// Config returns the configuration the engine was built with.
func (e *Engine) Config() config.Config { return e.cfg }

// Devices reports how many devices carry adaptive state.
func (e *Engine) Devices() int { return e.registry.Len() }

// Forget drops the adaptive state of a deregistered device.
func (e *Engine) Forget(deviceID string) {
	e.registry.Forget(deviceID)
	e.metrics.SetDevices(e.registry.Len())
}

// OnUplinkReceived is a no-op; the MAC layer keeps the history.
func (e *Engine) OnUplinkReceived(d DeviceStatus) {
	e.log.WithField("device", d.DeviceID()).Trace("uplink received")
}

// OnFailedReply is a no-op.
func (e *Engine) OnFailedReply(d DeviceStatus) {
	e.log.WithField("device", d.DeviceID()).Trace("downlink reply failed")
}

// BeforeDownlinkReply decides on a new configuration for d. It returns a nil
// command when nothing should be sent. Too little history returns an error
// wrapping signal.ErrInsufficientHistory and leaves all state untouched.
func (e *Engine) BeforeDownlinkReply(d DeviceStatus) (*ControlCommand, error) {
	id := d.DeviceID()
	logger := e.log.WithField("device", id)

	if !d.ADREnabled() || (e.cfg.Engine.RequireADRAckReq && !d.ADRAckRequested()) {
		logger.Debug("adr skipped")
		e.observe(metrics.OutcomeSkipped)
		return nil, nil
	}

	w, err := d.History().Window(e.cfg.Engine.HistoryRange, e.combining, e.link)
	if errors.Is(err, signal.ErrInsufficientHistory) {
		logger.WithError(err).Error("not enough uplink history for adr")
		e.observe(metrics.OutcomeInsufficientHistory)
		return nil, err
	}
	if err != nil {
		e.observe(metrics.OutcomeError)
		return nil, fmt.Errorf("device %s: %w", id, err)
	}

	out, err := e.Decide(id, w, d.Current())
	if err != nil {
		return nil, err
	}
	if !out.Changed {
		return nil, nil
	}

	cmd := NewControlCommand(out.Configuration())
	logger.WithField("command", cmd).Debug("sending link adr request")
	return cmd, nil
}

// Decide runs the estimator and the policy over w using the requirement
// table, the configured device margin and the configured bounds.
func (e *Engine) Decide(deviceID string, w signal.Window, current signal.Configuration) (policy.Output, error) {
	return e.DecideFor(deviceID, w, current, signal.RequiredSNR(current.DataRate()), e.cfg.Engine.DeviceMargin, e.bounds)
}

// DecideFor is Decide with a caller supplied requirement, margin and bounds.
// The bounds must contain current, or the clamp moves it.
func (e *Engine) DecideFor(deviceID string, w signal.Window, current signal.Configuration, required, margin float64, bounds signal.Bounds) (policy.Output, error) {
	dev, release := e.registry.Acquire(deviceID)
	defer release()
	e.metrics.SetDevices(e.registry.Len())

	logger := e.log.WithField("device", deviceID)

	est, err := e.estimator.Estimate(w, dev)
	if err != nil {
		logger.WithError(err).Error("estimate link quality")
		e.observe(metrics.OutcomeError)
		return policy.Output{SpreadingFactor: current.SpreadingFactor, TxPowerDbm: current.TxPowerDbm},
			fmt.Errorf("device %s: %w", deviceID, err)
	}
	e.metrics.ObserveEstimate(string(e.estimator.Kind()), est)

	out := e.policy.Decide(policy.Input{
		Estimate:    est,
		Requirement: required,
		Margin:      margin,
		Current:     current,
		Bounds:      bounds,
		Now:         e.clock.Now(),
	}, dev)

	if !e.cfg.Engine.AllowTxPowerChange {
		out.TxPowerDbm = current.TxPowerDbm
		out.Changed = out.Configuration() != current
	}

	logger.WithFields(log.Fields{
		"snr":      est,
		"required": required,
		"margin":   margin,
		"sf":       out.SpreadingFactor,
		"tp":       out.TxPowerDbm,
		"changed":  out.Changed,
	}).Debug("adr decision")

	if out.Changed {
		e.observe(metrics.OutcomeChanged)
	} else {
		e.observe(metrics.OutcomeUnchanged)
	}
	return out, nil
}

func (e *Engine) observe(outcome string) {
	e.metrics.ObserveDecision(string(e.estimator.Kind()), string(e.policy.Kind()), outcome)
}
