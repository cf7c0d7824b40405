package engine

import (
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/glmoritz/labscimadr/src/fuzzy"
	"github.com/glmoritz/labscimadr/src/metrics"
)

// Clock reports monotonic time since an arbitrary origin.
type Clock interface {
	Now() time.Duration
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Duration

func (f ClockFunc) Now() time.Duration { return f() }

type monotonic struct {
	origin time.Time
}

func (m monotonic) Now() time.Duration { return time.Since(m.origin) }

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the wall clock, typically with simulated time.
func WithClock(c Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithLogger sets the entry the engine logs through.
func WithLogger(l *log.Entry) Option {
	return func(e *Engine) {
		e.log = l
	}
}

// WithRuleBase overrides the configured fuzzy rule base.
func WithRuleBase(rb fuzzy.RuleBase) Option {
	return func(e *Engine) {
		e.ruleBase = &rb
	}
}

// WithMetrics records decisions on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}
