// Package estimator reduces a window of per-uplink SNR values to the single
// figure the decision policies work with.
//
// Every variant implements Estimator and is picked by its Kind. Stateless
// variants ignore the device state; the recursive filter (when persistent)
// and the particle filter keep their memory in it.
package estimator

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

var (
	// ErrEmptyWindow is returned when there is nothing to estimate from.
	ErrEmptyWindow = errors.New("empty sample window")

	// ErrNoState is returned by stateful variants called without device state.
	ErrNoState = errors.New("estimator needs device state")
)

// Kind names an estimator variant.
type Kind string

const (
	Maximum   Kind = "max"
	Minimum   Kind = "min"
	Average   Kind = "average"
	Smoothing Kind = "ema"
	Quartile  Kind = "quartile"
	Gaussian  Kind = "gaussian"
	Kalman    Kind = "kalman"
	Kriging   Kind = "kriging"
	Particle  Kind = "particle"
)

// Kinds lists every known variant.
var Kinds = []Kind{Maximum, Minimum, Average, Smoothing, Quartile, Gaussian, Kalman, Kriging, Particle}

// Estimator turns a most-recent-first window into an SNR estimate in dB.
type Estimator interface {
	Kind() Kind
	Estimate(w signal.Window, dev *state.Device) (float64, error)
}

// ParticleOptions tunes the particle filter.
type ParticleOptions struct {
	Count            int
	ProcessNoise     float64
	MeasurementNoise float64
}

// DefaultParticleOptions are 50 particles with the noise figures used by the
// reference simulations.
var DefaultParticleOptions = ParticleOptions{
	Count:            50,
	ProcessNoise:     0.005,
	MeasurementNoise: 0.01,
}

// Options configures New.
type Options struct {
	// PersistentKalman keeps the recursive filter state between decisions
	// instead of re-running it over the window every time.
	PersistentKalman bool
	Particles        ParticleOptions
	Logger           *log.Entry
}

// New returns the estimator for kind.
func New(kind Kind, opts Options) (Estimator, error) {
	if opts.Logger == nil {
		opts.Logger = log.NewEntry(log.StandardLogger())
	}
	logger := opts.Logger.WithField("estimator", string(kind))

	switch kind {
	case Maximum:
		return extremum{max: true}, nil
	case Minimum:
		return extremum{}, nil
	case Average:
		return average{}, nil
	case Smoothing:
		return smoothing{beta: 0.7}, nil
	case Quartile:
		return quartile{}, nil
	case Gaussian:
		return gaussian{}, nil
	case Kalman:
		return &kalman{
			processVariance:     1.0,
			measurementVariance: 7.5,
			initialUncertainty:  1.0,
			persistent:          opts.PersistentKalman,
		}, nil
	case Kriging:
		return &kriging{size: 20, alpha: 1.0, log: logger}, nil
	case Particle:
		p := opts.Particles
		if p.Count <= 0 {
			p.Count = DefaultParticleOptions.Count
		}
		if p.ProcessNoise <= 0 {
			p.ProcessNoise = DefaultParticleOptions.ProcessNoise
		}
		if p.MeasurementNoise <= 0 {
			p.MeasurementNoise = DefaultParticleOptions.MeasurementNoise
		}
		return &particleFilter{opts: p, log: logger}, nil
	}
	return nil, fmt.Errorf("unknown estimator %q", kind)
}
