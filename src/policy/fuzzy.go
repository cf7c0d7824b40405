package policy

import (
	"math"

	log "github.com/sirupsen/logrus"

	"github.com/glmoritz/labscimadr/src/fuzzy"
	"github.com/glmoritz/labscimadr/src/state"
)

// Variable names a fuzzy rule base must declare.
const (
	FuzzyInput    = "SNR"
	FuzzySFOutput = "SF"
	FuzzyTPOutput = "TP"
)

// Inference is a fuzzy engine mapping crisp inputs to crisp outputs. An
// output that no rule activated is NaN.
type Inference interface {
	Evaluate(inputs map[string]float64) (map[string]float64, error)
}

// FuzzyPolicy feeds the SNR margin to a fuzzy rule base and adopts each of
// its outputs that is defined.
type FuzzyPolicy struct {
	engine      Inference
	calibration *fuzzy.Calibration
	log         *log.Entry
}

// NewFuzzy wraps engine. When the rule base carries a calibration the margin
// is normalised with it before inference.
func NewFuzzy(engine *fuzzy.Engine, logger *log.Entry) *FuzzyPolicy {
	p := &FuzzyPolicy{engine: engine, log: logger}
	if c, ok := engine.Calibration(); ok {
		p.calibration = &c
	}
	if p.log == nil {
		p.log = log.NewEntry(log.StandardLogger())
	}
	return p
}

func (*FuzzyPolicy) Kind() Kind { return Fuzzy }

func (p *FuzzyPolicy) Decide(in Input, _ *state.Device) Output {
	x := in.SNRMargin()
	if p.calibration != nil {
		x = p.calibration.Normalize(x)
	}

	out, err := p.engine.Evaluate(map[string]float64{FuzzyInput: x})
	if err != nil {
		p.log.WithError(err).Error("fuzzy inference failed")
		return unchanged(in)
	}

	sf := in.Current.SpreadingFactor
	if v, ok := out[FuzzySFOutput]; ok && finite(v) {
		sf = int(math.Round(v))
	}
	tp := in.Current.TxPowerDbm
	if v, ok := out[FuzzyTPOutput]; ok && finite(v) {
		// Radios take whole dBm.
		tp = math.Trunc(v)
	}

	return finish(in, sf, tp)
}
