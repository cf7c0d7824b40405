// Package metrics exposes Prometheus collectors for ADR decisions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Decision outcomes.
const (
	OutcomeChanged             = "changed"
	OutcomeUnchanged           = "unchanged"
	OutcomeSkipped             = "skipped"
	OutcomeInsufficientHistory = "insufficient_history"
	OutcomeError               = "error"
)

// Metrics groups the engine collectors. A nil *Metrics records nothing.
type Metrics struct {
	Decisions   *prometheus.CounterVec
	SNREstimate *prometheus.HistogramVec
	Devices     prometheus.Gauge
}

// New registers the collectors on reg. A nil reg leaves them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "labscimadr",
			Subsystem: "engine",
			Name:      "decisions_total",
			Help:      "Total ADR decisions by outcome",
		}, []string{"estimator", "policy", "outcome"}),

		SNREstimate: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "labscimadr",
			Subsystem: "engine",
			Name:      "snr_estimate_db",
			Help:      "Link quality estimate fed to the policy",
			Buckets:   prometheus.LinearBuckets(-25, 5, 12),
		}, []string{"estimator"}),

		Devices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "labscimadr",
			Subsystem: "engine",
			Name:      "devices",
			Help:      "Devices with adaptive state in the registry",
		}),
	}
}

func (m *Metrics) ObserveDecision(estimator, policy, outcome string) {
	if m == nil {
		return
	}
	m.Decisions.WithLabelValues(estimator, policy, outcome).Inc()
}

func (m *Metrics) ObserveEstimate(estimator string, snr float64) {
	if m == nil {
		return
	}
	m.SNREstimate.WithLabelValues(estimator).Observe(snr)
}

func (m *Metrics) SetDevices(n int) {
	if m == nil {
		return
	}
	m.Devices.Set(float64(n))
}
