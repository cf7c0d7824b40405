package adr

import (
	"fmt"

	"github.com/brocaar/chirpstack-network-server/v3/adr"
	log "github.com/sirupsen/logrus"

	"github.com/glmoritz/labscimadr/src/engine"
	"github.com/glmoritz/labscimadr/src/signal"
)

// maxLoRaDR is the last 125 kHz LoRa data rate the engine reasons about.
const maxLoRaDR = 5

// LabSCimHandler implements the ChirpStack ADR handler on top of the engine.
type LabSCimHandler struct {
	engine *engine.Engine
	log    *log.Entry
}

// NewHandler wraps e.
func NewHandler(e *engine.Engine, logger *log.Entry) *LabSCimHandler {
	if logger == nil {
		logger = log.WithField("component", "handler")
	}
	return &LabSCimHandler{engine: e, log: logger}
}

// ID returns the handler ID.
func (h *LabSCimHandler) ID() (string, error) {
	return "labscimadr", nil
}

// Name returns the handler name including the active preset.
func (h *LabSCimHandler) Name() (string, error) {
	return fmt.Sprintf("LabSCim ADR algorithm (%s)", h.engine.Config().Engine.Preset), nil
}

// Handle handles the ADR request.
func (h *LabSCimHandler) Handle(req adr.HandleRequest) (adr.HandleResponse, error) {
	// This defines the default response, which is equal to the current device
	// state.
	resp := adr.HandleResponse{
		DR:           req.DR,
		TxPowerIndex: req.TxPowerIndex,
		NbTrans:      req.NbTrans,
	}

	// If ADR is disabled, return with current values.
	if !req.ADR {
		return resp, nil
	}

	// Lower the DR only if it exceeds the max. allowed DR.
	if req.DR > req.MaxDR {
		resp.DR = req.MaxDR
	}

	// Set the new NbTrans.
	resp.NbTrans = h.getNbTrans(req.NbTrans, h.getPacketLossPercentage(req))

	if resp.DR > maxLoRaDR {
		return resp, nil
	}

	logger := h.log.WithField("dev_eui", req.DevEUI)
	w := h.getWindow(req)
	if need := h.engine.Config().Engine.HistoryRange; len(w) < need || len(w) == 0 {
		logger.WithFields(log.Fields{"have": len(w), "need": need}).Debug("not enough uplink history at current tx power")
		return resp, nil
	}

	current := signal.Configuration{
		SpreadingFactor: signal.DRToSF(resp.DR),
		TxPowerDbm:      signal.TxPowerDbm(resp.TxPowerIndex),
	}
	out, err := h.engine.DecideFor(req.DevEUI.String(), w, current,
		float64(req.RequiredSNRForDR), float64(req.InstallationMargin), h.getBounds(req))
	if err != nil {
		return resp, fmt.Errorf("decide: %w", err)
	}
	if !out.Changed {
		return resp, nil
	}

	resp.DR = clamp(out.DataRate(), req.MinDR, req.MaxDR)
	resp.TxPowerIndex = clamp(signal.TxPowerIndex(out.TxPowerDbm), 0, req.MaxTxPowerIndex)
	return resp, nil
}

// getBounds limits the decision to what the device supports: DR between
// MinDR and MaxDR (at most DR5) and power between index 0 and MaxTxPowerIndex.
func (h *LabSCimHandler) getBounds(req adr.HandleRequest) signal.Bounds {
	maxDR := req.MaxDR
	if maxDR > maxLoRaDR {
		maxDR = maxLoRaDR
	}
	minDR := clamp(req.MinDR, 0, maxDR)
	return signal.Bounds{
		SFMin:    signal.DRToSF(maxDR),
		SFMax:    signal.DRToSF(minDR),
		TPMinDbm: signal.TxPowerDbm(req.MaxTxPowerIndex),
		TPMaxDbm: signal.TxPowerDbm(0),
	}
}

func (h *LabSCimHandler) pktLossRateTable() [][3]int {
	return [][3]int{
		{1, 1, 2},
		{1, 2, 3},
		{2, 3, 3},
		{3, 3, 3},
	}
}

// getWindow returns the SNR of the uplinks sent with the current TxPowerIndex,
// most recent first, cut to the engine's history range.
func (h *LabSCimHandler) getWindow(req adr.HandleRequest) signal.Window {
	n := h.engine.Config().Engine.HistoryRange
	w := make(signal.Window, 0, n)
	for i := len(req.UplinkHistory) - 1; i >= 0 && len(w) < n; i-- {
		if m := req.UplinkHistory[i]; m.TXPowerIndex == req.TxPowerIndex {
			w = append(w, float64(m.MaxSNR))
		}
	}
	return w
}

func (h *LabSCimHandler) requiredHistoryCount() int {
	return 10
}

func (h *LabSCimHandler) getNbTrans(currentNbTrans int, pktLossRate float32) int {
	if currentNbTrans < 1 {
		currentNbTrans = 1
	}

	if currentNbTrans > 3 {
		currentNbTrans = 3
	}

	if pktLossRate < 5 {
		return h.pktLossRateTable()[0][currentNbTrans-1]
	} else if pktLossRate < 10 {
		return h.pktLossRateTable()[1][currentNbTrans-1]
	} else if pktLossRate < 30 {
		return h.pktLossRateTable()[2][currentNbTrans-1]
	}

	return h.pktLossRateTable()[3][currentNbTrans-1]
}

func (h *LabSCimHandler) getPacketLossPercentage(req adr.HandleRequest) float32 {
	if len(req.UplinkHistory) < h.requiredHistoryCount() {
		return 0
	}

	var lostPackets uint32
	var previousFCnt uint32

	for i, m := range req.UplinkHistory {
		if i == 0 {
			previousFCnt = m.FCnt
			continue
		}

		lostPackets += m.FCnt - previousFCnt - 1 // there is always an expected difference of 1
		previousFCnt = m.FCnt
	}

	return float32(lostPackets) / float32(len(req.UplinkHistory)) * 100
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
