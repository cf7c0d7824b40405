package estimator

import (
	"math"
	"math/rand/v2"
	"sort"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// particleFilter tracks the SNR of a device with a weighted particle
// population kept in the device registry. The measurement for each step is
// the median of the window. When no particle explains the measurement the
// population starts over at it.
type particleFilter struct {
	opts ParticleOptions
	log  *log.Entry
}

func (*particleFilter) Kind() Kind { return Particle }

func (p *particleFilter) Estimate(w signal.Window, dev *state.Device) (float64, error) {
	if len(w) == 0 {
		return 0, ErrEmptyWindow
	}
	if dev == nil {
		return 0, ErrNoState
	}
	measured := signal.Median(w.Sorted())

	if dev.Particles == nil || len(dev.Particles.Particles) != p.opts.Count {
		dev.Particles = &state.ParticlePopulation{
			Particles: p.seed(measured),
		}
	}
	particles := dev.Particles.Particles
	src := dev.Rand()

	var total float64
	for i := range particles {
		particles[i].SNR = distuv.Normal{
			Mu:    particles[i].SNR,
			Sigma: p.opts.ProcessNoise,
			Src:   src,
		}.Rand()
		particles[i].Weight = p.likelihood(particles[i].SNR, measured)
		total += particles[i].Weight
	}

	if total > 0 && !math.IsInf(total, 0) && !math.IsNaN(total) {
		for i := range particles {
			particles[i].Weight /= total
		}
		particles = p.resample(particles, src)
	} else {
		p.log.WithFields(log.Fields{
			"device":   dev.ID,
			"measured": measured,
		}).Debug("particle weights collapsed, reseeding at measurement")
		particles = p.seed(measured)
	}
	dev.Particles.Particles = particles

	var est float64
	for _, pt := range particles {
		est += pt.SNR * pt.Weight
	}
	return est, nil
}

func (p *particleFilter) seed(snr float64) []state.Particle {
	particles := make([]state.Particle, p.opts.Count)
	for i := range particles {
		particles[i].SNR = snr
	}
	uniform(particles)
	return particles
}

func (p *particleFilter) likelihood(predicted, measured float64) float64 {
	d := predicted - measured
	s := p.opts.MeasurementNoise
	return math.Exp(-d * d / (2 * s * s))
}

// resample draws a new population of the same size, each particle picked
// with probability proportional to its weight. The result carries uniform
// weights.
func (p *particleFilter) resample(particles []state.Particle, src rand.Source) []state.Particle {
	weights := make([]float64, len(particles))
	for i, pt := range particles {
		weights[i] = pt.Weight
	}
	cumulative := floats.CumSum(make([]float64, len(weights)), weights)
	draw := distuv.Uniform{Min: 0, Max: cumulative[len(cumulative)-1], Src: src}

	out := make([]state.Particle, len(particles))
	for i := range out {
		j := sort.SearchFloat64s(cumulative, draw.Rand())
		if j >= len(particles) {
			j = len(particles) - 1
		}
		out[i] = particles[j]
	}
	uniform(out)
	return out
}

func uniform(particles []state.Particle) {
	for i := range particles {
		particles[i].Weight = 1 / float64(len(particles))
	}
}
