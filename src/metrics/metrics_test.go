package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveDecision("max", "stepwise", OutcomeChanged)
	m.ObserveDecision("max", "stepwise", OutcomeChanged)
	m.ObserveDecision("max", "stepwise", OutcomeSkipped)
	m.ObserveEstimate("max", -3.5)
	m.SetDevices(4)

	families, err := reg.Gather()
	require.NoError(t, err)
	names := map[string]*dto.MetricFamily{}
	for _, f := range families {
		names[f.GetName()] = f
	}
	require.Contains(t, names, "labscimadr_engine_decisions_total")
	require.Contains(t, names, "labscimadr_engine_snr_estimate_db")
	require.Contains(t, names, "labscimadr_engine_devices")

	assert.Len(t, names["labscimadr_engine_decisions_total"].GetMetric(), 2)
	assert.Equal(t, uint64(1), names["labscimadr_engine_snr_estimate_db"].GetMetric()[0].GetHistogram().GetSampleCount())
	assert.Equal(t, 4.0, names["labscimadr_engine_devices"].GetMetric()[0].GetGauge().GetValue())
}

func TestCounterValue(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveDecision("kalman", "feedback", OutcomeUnchanged)
	m.ObserveDecision("kalman", "feedback", OutcomeUnchanged)

	metric := &dto.Metric{}
	require.NoError(t, m.Decisions.WithLabelValues("kalman", "feedback", OutcomeUnchanged).Write(metric))
	assert.Equal(t, 2.0, metric.GetCounter().GetValue())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDecision("max", "stepwise", OutcomeError)
		m.ObserveEstimate("max", 1)
		m.SetDevices(1)
	})
}

func TestDuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
