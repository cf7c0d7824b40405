package policy

import (
	"math"

	"github.com/glmoritz/labscimadr/src/state"
)

// DefaultTxPowerStep is the power change per step, in dB.
const DefaultTxPowerStep = 3.0

// StepwisePolicy is the network-server ADR algorithm: every 3 dB of margin
// buys one step, spent first on lowering the spreading factor and then on
// lowering transmit power. A negative margin only raises transmit power;
// the device raises its own spreading factor when it loses the link.
type StepwisePolicy struct {
	TxPowerStep float64
}

// NewStepwise returns a stepwise policy. A non-positive step selects
// DefaultTxPowerStep.
func NewStepwise(txPowerStep float64) *StepwisePolicy {
	if txPowerStep <= 0 {
		txPowerStep = DefaultTxPowerStep
	}
	return &StepwisePolicy{TxPowerStep: txPowerStep}
}

func (*StepwisePolicy) Kind() Kind { return Stepwise }

func (p *StepwisePolicy) Decide(in Input, _ *state.Device) Output {
	margin := in.SNRMargin()
	if !finite(margin) {
		return unchanged(in)
	}
	// No configuration has more than a few dozen steps between its bounds.
	steps := int(math.Max(-64, math.Min(64, math.Floor(margin/3))))

	sf := in.Current.SpreadingFactor
	tp := in.Current.TxPowerDbm

	for steps > 0 && sf > in.Bounds.SFMin {
		sf--
		steps--
	}
	for steps > 0 && tp > in.Bounds.TPMinDbm {
		tp -= p.TxPowerStep
		steps--
	}
	for steps < 0 && tp < in.Bounds.TPMaxDbm {
		tp += p.TxPowerStep
		steps++
	}

	return finish(in, sf, tp)
}
