package estimator

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

type extremum struct {
	max bool
}

func (e extremum) Kind() Kind {
	if e.max {
		return Maximum
	}
	return Minimum
}

func (e extremum) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	if e.max {
		return floats.Max(w), nil
	}
	return floats.Min(w), nil
}

type average struct{}

func (average) Kind() Kind { return Average }

func (average) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	return stat.Mean(w, nil), nil
}

// smoothing is an exponential moving average run oldest to newest, so the
// newest uplink carries weight beta.
type smoothing struct {
	beta float64
}

func (smoothing) Kind() Kind { return Smoothing }

func (s smoothing) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	series := w.Chronological()
	st := series[0]
	for _, q := range series[1:] {
		st = s.beta*q + (1-s.beta)*st
	}
	return st, nil
}
