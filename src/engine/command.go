package engine

import (
	"fmt"

	"github.com/glmoritz/labscimadr/src/signal"
)

// DefaultChannelMask lists the channels enabled by every command.
var DefaultChannelMask = []int{0, 1, 2}

// ControlCommand is the LinkADRReq sent back to the device.
type ControlCommand struct {
	DataRate     int
	TxPowerIndex int
	ChannelMask  []int
	NbRep        int
}

// NewControlCommand encodes a configuration.
func NewControlCommand(c signal.Configuration) *ControlCommand {
	return &ControlCommand{
		DataRate:     c.DataRate(),
		TxPowerIndex: signal.TxPowerIndex(c.TxPowerDbm),
		ChannelMask:  append([]int(nil), DefaultChannelMask...),
		NbRep:        1,
	}
}

func (c *ControlCommand) String() string {
	return fmt.Sprintf("LinkADRReq{DR%d TXPower%d ch=%v nbRep=%d}", c.DataRate, c.TxPowerIndex, c.ChannelMask, c.NbRep)
}
