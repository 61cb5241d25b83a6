package mgmt

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
)

// CSModule handles Content Store management: capacity/flag configuration,
// targeted erasure, and the cs info dataset.
type CSModule struct {
	manager *Thread
}

func (c *CSModule) String() string { return "mgmt-cs" }

func (c *CSModule) registerManager(manager *Thread) { c.manager = manager }

func (c *CSModule) handleIncomingInterest(cmd *Command) {
	switch cmd.Verb {
	case "config":
		c.config(cmd)
	case "erase":
		c.erase(cmd)
	case "info":
		c.info(cmd)
	default:
		c.manager.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown verb", nil)
	}
}

func (c *CSModule) config(cmd *Command) {
	params := cmd.Params
	if params == nil {
		c.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}
	if params.Capacity != nil {
		c.manager.fwder.Cs().Capacity = int(*params.Capacity)
		core.Log.Info(c, "Set CS capacity", "capacity", *params.Capacity)
	}
	capacity := uint64(c.manager.fwder.Cs().Capacity)
	c.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{Capacity: &capacity})
}

func (c *CSModule) erase(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		c.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}
	c.manager.fwder.Cs().Erase(params.Name)
	core.Log.Info(c, "Erased CS entry", "name", params.Name)
	c.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{Name: params.Name})
}

// CsInfo is the cs info dataset payload.
type CsInfo struct {
	Capacity uint64
	NEntries uint64
	NHits    uint64
	NMisses  uint64
}

func (c *CSModule) info(cmd *Command) {
	counters := c.manager.fwder.Counters()
	info := CsInfo{
		Capacity: uint64(c.manager.fwder.Cs().Capacity),
		NEntries: uint64(c.manager.fwder.Cs().Size()),
		NHits:    counters.NCsHits,
		NMisses:  counters.NCsMisses,
	}
	name := cmd.Prefix.Append("cs", "info")
	c.manager.sendStatusDataset(cmd, name, encodeDataset(info))
}
