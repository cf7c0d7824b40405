package estimator

import (
	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// kalman is a scalar recursive Bayesian filter over the window, oldest
// sample first. When persistent, the filter state lives in the device
// registry: the first decision folds the whole window and later decisions
// fold only the newest uplink. Each call counts as one new uplink, so callers
// decide once per received uplink.
type kalman struct {
	processVariance     float64
	measurementVariance float64
	initialUncertainty  float64
	persistent          bool
}

func (*kalman) Kind() Kind { return Kalman }

func (k *kalman) Estimate(w signal.Window, dev *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}

	if k.persistent && dev != nil {
		if dev.Recursive == nil {
			f := k.run(w.Chronological())
			dev.Recursive = &f
			return f.Estimate, nil
		}
		k.update(dev.Recursive, w.Newest())
		return dev.Recursive.Estimate, nil
	}

	f := k.run(w.Chronological())
	return f.Estimate, nil
}

func (k *kalman) run(series []float64) state.RecursiveFilter {
	f := state.RecursiveFilter{
		Estimate:    series[0],
		Uncertainty: k.initialUncertainty,
	}
	for _, z := range series {
		k.update(&f, z)
	}
	return f
}

func (k *kalman) update(f *state.RecursiveFilter, z float64) {
	predicted := f.Uncertainty + k.processVariance
	gain := predicted / (predicted + k.measurementVariance)
	f.Estimate += gain * (z - f.Estimate)
	f.Uncertainty = (1 - gain) * predicted
}
