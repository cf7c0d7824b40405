package signal

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCombine(t *testing.T) {
	s := Sample{"gw1": -120, "gw2": -110, "gw3": -100}

	tests := []struct {
		method CombiningMethod
		want   float64
	}{
		{Average, -110},
		{Maximum, -100},
		{Minimum, -120},
	}
	for _, tt := range tests {
		t.Run(tt.method.String(), func(t *testing.T) {
			got, err := Combine(s, tt.method)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestCombineEmpty(t *testing.T) {
	_, err := Combine(Sample{}, Maximum)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestParseCombiningMethod(t *testing.T) {
	m, err := ParseCombiningMethod("AVG")
	require.NoError(t, err)
	assert.Equal(t, Average, m)

	_, err = ParseCombiningMethod("median")
	assert.Error(t, err)
}

func TestLinkBudgetRoundTrip(t *testing.T) {
	l := DefaultLinkBudget
	// 174 - 10*log10(125000) - 6 = 117.03...
	assert.InDelta(t, -120+174-10*math.Log10(125000)-6, l.SNR(-120), 1e-9)
	assert.InDelta(t, -115.0, l.RxPower(l.SNR(-115)), 1e-9)
}

func TestHistoryWindow(t *testing.T) {
	l := LinkBudget{BandwidthHz: 1, NoiseFigureDb: 174}
	h := History{
		{"a": 3},
		{"a": 2, "b": 5},
		{"a": 1},
	}

	w, err := h.Window(2, Maximum, l)
	require.NoError(t, err)
	assert.Equal(t, Window{3, 5}, w)
	assert.Equal(t, []float64{5, 3}, w.Chronological())
	assert.Equal(t, 3.0, w.Newest())
	assert.Equal(t, 5.0, w.Oldest())

	_, err = h.Window(4, Maximum, l)
	assert.ErrorIs(t, err, ErrInsufficientHistory)

	_, err = History{{"a": 1}, {}}.Window(2, Maximum, l)
	assert.ErrorIs(t, err, ErrEmptySample)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 2.0, Median([]float64{1, 2, 3}))
	assert.Equal(t, 2.5, Median([]float64{1, 2, 3, 4}))
	assert.True(t, math.IsNaN(Median(nil)))
}

func TestTxPowerIndex(t *testing.T) {
	tests := []struct {
		dbm  float64
		want int
	}{
		{20, 0}, {16, 0}, {14, 1}, {13, 2}, {12, 2}, {10, 3},
		{8, 4}, {6, 5}, {4, 6}, {2, 7}, {-3, 7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, TxPowerIndex(tt.dbm), "dbm=%v", tt.dbm)
	}
	for i := 0; i <= 7; i++ {
		assert.Equal(t, i, TxPowerIndex(TxPowerDbm(i)))
	}
}

func TestDataRateTables(t *testing.T) {
	assert.Equal(t, 0, SFToDR(12))
	assert.Equal(t, 4, SFToDR(8))
	assert.Equal(t, 5, SFToDR(7))
	assert.Equal(t, 5, SFToDR(6))
	assert.Equal(t, 9, DRToSF(3))
	assert.Equal(t, 3, Configuration{SpreadingFactor: 9}.DataRate())

	assert.Equal(t, -20.0, RequiredSNR(0))
	assert.Equal(t, -15.0, RequiredSNR(2))
	assert.Equal(t, -7.5, RequiredSNR(5))
	assert.Equal(t, -7.5, RequiredSNR(9))
	assert.Equal(t, -20.0, RequiredSNR(-1))
}

func TestBoundsClamp(t *testing.T) {
	b := DefaultBounds
	got := b.Clamp(Configuration{SpreadingFactor: 14, TxPowerDbm: 20})
	assert.Equal(t, Configuration{SpreadingFactor: 12, TxPowerDbm: 14}, got)
	got = b.Clamp(Configuration{SpreadingFactor: 5, TxPowerDbm: -1})
	assert.Equal(t, Configuration{SpreadingFactor: 7, TxPowerDbm: 2}, got)
	assert.True(t, b.Contains(got))
	assert.False(t, b.Contains(Configuration{SpreadingFactor: 13, TxPowerDbm: 2}))
}
