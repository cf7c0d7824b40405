package signal

import "math"

// Configuration is the radio setup of an end device.
type Configuration struct {
	SpreadingFactor int
	TxPowerDbm      float64
}

// DataRate returns the protocol data-rate index of the configuration.
func (c Configuration) DataRate() int {
	return SFToDR(c.SpreadingFactor)
}

// Bounds limits what a decision may produce.
type Bounds struct {
	SFMin    int
	SFMax    int
	TPMinDbm float64
	TPMaxDbm float64
}

// DefaultBounds are the EU868 limits for SF7..SF12 and 2..14 dBm.
var DefaultBounds = Bounds{SFMin: 7, SFMax: 12, TPMinDbm: 2, TPMaxDbm: 14}

// Clamp forces c into the bounds.
func (b Bounds) Clamp(c Configuration) Configuration {
	if c.SpreadingFactor < b.SFMin {
		c.SpreadingFactor = b.SFMin
	}
	if c.SpreadingFactor > b.SFMax {
		c.SpreadingFactor = b.SFMax
	}
	c.TxPowerDbm = math.Max(b.TPMinDbm, math.Min(b.TPMaxDbm, c.TxPowerDbm))
	return c
}

// Contains reports whether c satisfies the bounds.
func (b Bounds) Contains(c Configuration) bool {
	return c.SpreadingFactor >= b.SFMin && c.SpreadingFactor <= b.SFMax &&
		c.TxPowerDbm >= b.TPMinDbm && c.TxPowerDbm <= b.TPMaxDbm
}

// demodulation floor per data rate, SF12 (DR0) to SF7 (DR5)
var requiredSNR = [6]float64{-20, -17.5, -15, -12.5, -10, -7.5}

// RequiredSNR returns the minimum SNR needed to demodulate dr.
func RequiredSNR(dr int) float64 {
	if dr < 0 {
		dr = 0
	}
	if dr >= len(requiredSNR) {
		dr = len(requiredSNR) - 1
	}
	return requiredSNR[dr]
}

// SFToDR maps SF12..SF8 to DR0..DR4 and everything else to DR5.
func SFToDR(sf int) int {
	if sf >= 8 && sf <= 12 {
		return 12 - sf
	}
	return 5
}

// DRToSF is the inverse of SFToDR for DR0..DR5.
func DRToSF(dr int) int {
	return 12 - dr
}

// TxPowerIndex encodes a transmit power for a LinkADRReq.
func TxPowerIndex(dbm float64) int {
	switch {
	case dbm >= 16:
		return 0
	case dbm >= 14:
		return 1
	case dbm >= 12:
		return 2
	case dbm >= 10:
		return 3
	case dbm >= 8:
		return 4
	case dbm >= 6:
		return 5
	case dbm >= 4:
		return 6
	default:
		return 7
	}
}

// TxPowerDbm decodes a LinkADRReq power index back to dBm.
func TxPowerDbm(index int) float64 {
	return 16 - 2*float64(index)
}
