// Package policy turns an SNR estimate into a new device configuration.
package policy

import (
	"fmt"
	"math"
	"time"

	"github.com/glmoritz/labscimadr/src/signal"
	"github.com/glmoritz/labscimadr/src/state"
)

// Kind names a decision policy.
type Kind string

const (
	Stepwise Kind = "stepwise"
	Fuzzy    Kind = "fuzzy"
	Feedback Kind = "feedback"
)

// Input is everything a policy decides on.
type Input struct {
	Estimate    float64 // SNR estimate, dB
	Requirement float64 // demodulation floor for the current data rate, dB
	Margin      float64 // device margin, dB
	Current     signal.Configuration
	Bounds      signal.Bounds
	Now         time.Duration
}

// SNRMargin is the headroom left once the requirement and margin are taken
// out of the estimate.
func (in Input) SNRMargin() float64 {
	return in.Estimate - in.Requirement - in.Margin
}

// Output is a decision. Changed is set when it differs from Input.Current.
type Output struct {
	SpreadingFactor int
	TxPowerDbm      float64
	Changed         bool
}

// Configuration returns the decided configuration.
func (o Output) Configuration() signal.Configuration {
	return signal.Configuration{SpreadingFactor: o.SpreadingFactor, TxPowerDbm: o.TxPowerDbm}
}

// DataRate returns the data-rate index of the decision.
func (o Output) DataRate() int {
	return signal.SFToDR(o.SpreadingFactor)
}

func (o Output) String() string {
	return fmt.Sprintf("SF%d/%gdBm changed=%t", o.SpreadingFactor, o.TxPowerDbm, o.Changed)
}

// Policy maps an Input to an Output. Stateful policies keep their memory in
// dev.
type Policy interface {
	Kind() Kind
	Decide(in Input, dev *state.Device) Output
}

// unchanged keeps the current configuration.
func unchanged(in Input) Output {
	return Output{
		SpreadingFactor: in.Current.SpreadingFactor,
		TxPowerDbm:      in.Current.TxPowerDbm,
	}
}

// finish replaces undefined numbers with the current values, clamps to the
// bounds and sets Changed.
func finish(in Input, sf int, tp float64) Output {
	if !finite(tp) {
		tp = in.Current.TxPowerDbm
	}
	c := in.Bounds.Clamp(signal.Configuration{SpreadingFactor: sf, TxPowerDbm: tp})
	return Output{
		SpreadingFactor: c.SpreadingFactor,
		TxPowerDbm:      c.TxPowerDbm,
		Changed:         c != in.Current,
	}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
