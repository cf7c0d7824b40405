package signal

import (
	"fmt"
	"math"
	"sort"
)

// LinkBudget converts received power into SNR. Interference is ignored.
type LinkBudget struct {
	BandwidthHz   float64
	NoiseFigureDb float64
}

// DefaultLinkBudget is a 125 kHz channel with a 6 dB receiver noise figure.
var DefaultLinkBudget = LinkBudget{BandwidthHz: 125000, NoiseFigureDb: 6}

// SNR returns the signal to noise ratio of a reception at rxPowerDbm.
func (l LinkBudget) SNR(rxPowerDbm float64) float64 {
	return rxPowerDbm + 174 - 10*math.Log10(l.BandwidthHz) - l.NoiseFigureDb
}

// RxPower is the inverse of SNR.
func (l LinkBudget) RxPower(snr float64) float64 {
	return snr - 174 + 10*math.Log10(l.BandwidthHz) + l.NoiseFigureDb
}

// History holds the samples received from one device, most recent first.
type History []Sample

// Window converts the n most recent samples into SNR values.
func (h History) Window(n int, m CombiningMethod, link LinkBudget) (Window, error) {
	if len(h) < n {
		return nil, fmt.Errorf("%w: have %d, need %d", ErrInsufficientHistory, len(h), n)
	}

	w := make(Window, n)
	for i := 0; i < n; i++ {
		p, err := Combine(h[i], m)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", i, err)
		}
		w[i] = link.SNR(p)
	}
	return w, nil
}

// Window is a run of per-uplink SNR values in dB, most recent first.
type Window []float64

// Newest returns the most recent value.
func (w Window) Newest() float64 { return w[0] }

// Oldest returns the least recent value.
func (w Window) Oldest() float64 { return w[len(w)-1] }

// Chronological returns a copy ordered oldest first.
func (w Window) Chronological() []float64 {
	out := make([]float64, len(w))
	for i, v := range w {
		out[len(w)-1-i] = v
	}
	return out
}

// Sorted returns an ascending copy.
func (w Window) Sorted() []float64 {
	out := make([]float64, len(w))
	copy(out, w)
	sort.Float64s(out)
	return out
}

// Median of an ascending slice; the two middle values are averaged when the
// length is even.
func Median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n%2 != 0 {
		return sorted[n/2]
	}
	return (sorted[(n-1)/2] + sorted[n/2]) / 2
}
