package policy

import (
	"math"

	"github.com/glmoritz/labscimadr/src/state"
)

// Gains of a PID controller.
type Gains struct {
	Kp float64
	Ki float64
	Kd float64
}

// DefaultGains make the controller purely proportional.
var DefaultGains = Gains{Kp: 0.5}

// FeedbackPolicy is a PID loop on the SNR error. Its output, rounded, is
// added to both the spreading factor and the transmit power.
type FeedbackPolicy struct {
	Gains Gains
}

// NewFeedback returns a feedback policy with the given gains.
func NewFeedback(g Gains) *FeedbackPolicy {
	return &FeedbackPolicy{Gains: g}
}

func (*FeedbackPolicy) Kind() Kind { return Feedback }

func (p *FeedbackPolicy) Decide(in Input, dev *state.Device) Output {
	loop := &state.FeedbackLoop{PrevTime: in.Now}
	if dev != nil {
		if dev.Feedback == nil {
			dev.Feedback = loop
		}
		loop = dev.Feedback
	}

	errSNR := in.Requirement - in.Estimate
	if !finite(errSNR) {
		return unchanged(in)
	}

	dt := math.Max((in.Now - loop.PrevTime).Seconds(), 1.0)

	loop.Integral += p.Gains.Ki * errSNR * dt
	derivative := p.Gains.Kd * (errSNR - loop.PrevError) / dt
	u := p.Gains.Kp*errSNR + loop.Integral + derivative

	loop.PrevError = errSNR
	loop.PrevTime = in.Now

	if !finite(u) {
		return unchanged(in)
	}
	delta := math.Round(u)
	// Keep the int conversion defined; the bounds clamp anyway.
	delta = math.Max(-64, math.Min(64, delta))

	return finish(in, in.Current.SpreadingFactor+int(delta), in.Current.TxPowerDbm+delta)
}
