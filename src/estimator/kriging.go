package estimator

import (
	"math"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// kriging interpolates the window with ordinary-kriging weights built from
// an exponential variogram over sample index separation.
//
// The right-hand side of the kriging system is the zero vector, so the
// weights vanish and the estimate is zero clamped into the window range.
// TODO: build the right-hand side from the variogram to the target once its
// construction is settled.
type kriging struct {
	size  int
	alpha float64
	log   *log.Entry
}

func (*kriging) Kind() Kind { return Kriging }

func (k *kriging) Estimate(w signal.Window, _ *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}

	weights := k.weights()

	n := k.size
	if len(w) < n {
		n = len(w)
	}
	var est float64
	for i := 0; i < n; i++ {
		est += weights[i] * w[i]
	}
	rmse := math.Sqrt(math.Abs(est + weights[k.size]))

	lo, hi := floats.Min(w), floats.Max(w)
	est = clamp(est, lo, hi)
	rmse = clamp(rmse, lo, hi)

	k.log.WithFields(log.Fields{
		"snr":  est,
		"rmse": rmse,
	}).Debug("kriging estimate")

	return est, nil
}

// weights solves K*lambda = rhs for the augmented variogram matrix K. The
// last element of the result is the Lagrange multiplier.
func (k *kriging) weights() []float64 {
	n := k.size
	a := mat.NewDense(n+1, n+1, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i == j {
				continue
			}
			h := float64(i - j)
			a.Set(i, j, 1-math.Exp(-(h*h)/(k.alpha*k.alpha)))
		}
		a.Set(i, n, 1)
		a.Set(n, i, 1)
	}

	rhs := mat.NewVecDense(n+1, nil)

	var lambda mat.VecDense
	if err := lambda.SolveVec(a, rhs); err != nil {
		k.log.WithError(err).Debug("kriging system is singular, using zero weights")
		return make([]float64, n+1)
	}

	out := make([]float64, n+1)
	for i := range out {
		v := lambda.AtVec(i)
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return make([]float64, n+1)
		}
		out[i] = v
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(math.Max(v, lo), hi)
}
