package adr

import (
	"testing"

	"github.com/brocaar/chirpstack-network-server/v3/adr"
	"github.com/brocaar/lorawan"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glmoritz/labscimadr/src/config"
	"github.com/glmoritz/labscimadr/src/engine"
	"github.com/glmoritz/labscimadr/src/signal"
)

func newHandler(t *testing.T, preset string) *LabSCimHandler {
	t.Helper()
	c := config.Default()
	require.NoError(t, c.ApplyPreset(preset))

	logger, _ := test.NewNullLogger()
	e, err := engine.New(c, engine.WithLogger(log.NewEntry(logger)))
	require.NoError(t, err)
	return NewHandler(e, log.NewEntry(logger))
}

func uplinks(n int, snr float32, txPowerIndex int, fCntStep uint32) []adr.UplinkMetaData {
	out := make([]adr.UplinkMetaData, n)
	for i := range out {
		out[i] = adr.UplinkMetaData{
			FCnt:         uint32(i) * fCntStep,
			MaxSNR:       snr,
			TXPowerIndex: txPowerIndex,
			GatewayCount: 1,
		}
	}
	return out
}

func request(history []adr.UplinkMetaData) adr.HandleRequest {
	return adr.HandleRequest{
		DevEUI:             lorawan.EUI64{1, 2, 3, 4, 5, 6, 7, 8},
		ADR:                true,
		DR:                 2,
		TxPowerIndex:       1,
		NbTrans:            1,
		MaxTxPowerIndex:    7,
		RequiredSNRForDR:   -15,
		InstallationMargin: 10,
		MinDR:              0,
		MaxDR:              5,
		UplinkHistory:      history,
	}
}

func TestIDAndName(t *testing.T) {
	h := newHandler(t, "kalman")
	id, err := h.ID()
	require.NoError(t, err)
	assert.Equal(t, "labscimadr", id)

	name, err := h.Name()
	require.NoError(t, err)
	assert.Equal(t, "LabSCim ADR algorithm (kalman)", name)
}

func TestHandle(t *testing.T) {
	tests := []struct {
		name   string
		preset string
		req    func() adr.HandleRequest
		want   adr.HandleResponse
	}{
		{
			name:   "adr disabled",
			preset: "lorawan",
			req: func() adr.HandleRequest {
				r := request(uplinks(20, 0, 1, 1))
				r.ADR = false
				return r
			},
			want: adr.HandleResponse{DR: 2, TxPowerIndex: 1, NbTrans: 1},
		},
		{
			name:   "one step raises the data rate",
			preset: "lorawan",
			req:    func() adr.HandleRequest { return request(uplinks(20, 0, 1, 1)) },
			want:   adr.HandleResponse{DR: 3, TxPowerIndex: 1, NbTrans: 1},
		},
		{
			name:   "not enough history",
			preset: "lorawan",
			req:    func() adr.HandleRequest { return request(uplinks(5, 20, 1, 1)) },
			want:   adr.HandleResponse{DR: 2, TxPowerIndex: 1, NbTrans: 1},
		},
		{
			name:   "history at other tx power ignored",
			preset: "lorawan",
			req:    func() adr.HandleRequest { return request(uplinks(20, 20, 0, 1)) },
			want:   adr.HandleResponse{DR: 2, TxPowerIndex: 1, NbTrans: 1},
		},
		{
			name:   "clamped to device limits",
			preset: "lorawan",
			req: func() adr.HandleRequest {
				r := request(uplinks(20, 10, 1, 1))
				r.MaxDR = 2
				r.MaxTxPowerIndex = 3
				return r
			},
			want: adr.HandleResponse{DR: 2, TxPowerIndex: 3, NbTrans: 1},
		},
		{
			name:   "dr above max is lowered",
			preset: "lorawan",
			req: func() adr.HandleRequest {
				r := request(uplinks(20, -20, 1, 1))
				r.DR = 5
				r.MaxDR = 4
				return r
			},
			// weak link: power goes up to index 0
			want: adr.HandleResponse{DR: 4, TxPowerIndex: 0, NbTrans: 1},
		},
		{
			name:   "weak link at max power keeps power",
			preset: "lorawan",
			req: func() adr.HandleRequest {
				r := request(uplinks(20, -20, 0, 1))
				r.TxPowerIndex = 0
				return r
			},
			want: adr.HandleResponse{DR: 2, TxPowerIndex: 0, NbTrans: 1},
		},
		{
			name:   "strong link at max power lowers it",
			preset: "lorawan",
			req: func() adr.HandleRequest {
				r := request(uplinks(20, 20, 0, 1))
				r.TxPowerIndex = 0
				r.MaxDR = 2
				return r
			},
			// margin 25: eight steps, power 16 down to the 2 dBm floor
			want: adr.HandleResponse{DR: 2, TxPowerIndex: 7, NbTrans: 1},
		},
		{
			name:   "packet loss raises nbtrans",
			preset: "lorawan",
			req:    func() adr.HandleRequest { return request(uplinks(20, -10, 1, 2)) },
			want:   adr.HandleResponse{DR: 2, TxPowerIndex: 0, NbTrans: 3},
		},
		{
			name:   "feedback preset",
			preset: "pid",
			req:    func() adr.HandleRequest { return request(uplinks(10, -19, 1, 1)) },
			// error 4, output 2: two data rates down, 14 to 16 dBm
			want: adr.HandleResponse{DR: 0, TxPowerIndex: 0, NbTrans: 1},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := newHandler(t, tt.preset).Handle(tt.req())
			require.NoError(t, err)
			assert.Equal(t, tt.want, resp)
		})
	}
}

func TestGetWindowNewestFirst(t *testing.T) {
	h := newHandler(t, "lorawan")
	hist := uplinks(25, 0, 1, 1)
	for i := range hist {
		hist[i].MaxSNR = float32(i)
	}
	hist[24].TXPowerIndex = 4

	w := h.getWindow(request(hist))
	require.Len(t, w, 20)
	assert.Equal(t, 23.0, w.Newest())
	assert.Equal(t, 4.0, w.Oldest())
}

func TestGetBounds(t *testing.T) {
	h := newHandler(t, "lorawan")

	r := request(nil)
	assert.Equal(t, signal.Bounds{SFMin: 7, SFMax: 12, TPMinDbm: 2, TPMaxDbm: 16}, h.getBounds(r))

	r.MinDR, r.MaxDR, r.MaxTxPowerIndex = 1, 3, 5
	assert.Equal(t, signal.Bounds{SFMin: 9, SFMax: 11, TPMinDbm: 6, TPMaxDbm: 16}, h.getBounds(r))

	r.MinDR, r.MaxDR = 7, 7
	assert.Equal(t, signal.Bounds{SFMin: 7, SFMax: 7, TPMinDbm: 6, TPMaxDbm: 16}, h.getBounds(r))
}

func TestGetNbTrans(t *testing.T) {
	h := &LabSCimHandler{}
	tests := []struct {
		nbTrans int
		loss    float32
		want    int
	}{
		{0, 0, 1},
		{1, 4.9, 1},
		{3, 4.9, 2},
		{2, 5, 2},
		{1, 29, 2},
		{2, 29, 3},
		{1, 30, 3},
		{9, 50, 3},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, h.getNbTrans(tt.nbTrans, tt.loss), "nbTrans=%d loss=%v", tt.nbTrans, tt.loss)
	}
}

func TestGetPacketLossPercentage(t *testing.T) {
	h := &LabSCimHandler{}
	assert.Equal(t, float32(0), h.getPacketLossPercentage(request(uplinks(9, 0, 1, 3))))
	assert.Equal(t, float32(0), h.getPacketLossPercentage(request(uplinks(20, 0, 1, 1))))
	assert.InDelta(t, 95.0, h.getPacketLossPercentage(request(uplinks(20, 0, 1, 2))), 1e-4)
}
