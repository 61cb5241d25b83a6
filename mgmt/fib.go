package mgmt

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// FIBModule is the module that handles FIB Management (spec.md §4.10:
// add-nexthop, remove-nexthop, list).
type FIBModule struct {
	manager *Thread
}

func (f *FIBModule) String() string { return "mgmt-fib" }

func (f *FIBModule) registerManager(manager *Thread) { f.manager = manager }

func (f *FIBModule) handleIncomingInterest(cmd *Command) {
	switch cmd.Verb {
	case "add-nexthop":
		f.add(cmd)
	case "remove-nexthop":
		f.remove(cmd)
	case "list":
		f.list(cmd)
	default:
		f.manager.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown verb", nil)
	}
}

func (f *FIBModule) add(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		f.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}

	faceId := cmd.SelfFaceId()
	if f.manager.fwder.FaceProvider().Face(faceId) == nil {
		f.manager.sendCtrlResp(cmd, ndn.StatusFaceNotFound, "Face does not exist", nil)
		return
	}

	var cost uint64
	if params.Cost != nil {
		cost = *params.Cost
	}
	f.manager.fwder.Fib().AddOrUpdateNextHop(params.Name, faceId, cost)

	core.Log.Info(f, "Created nexthop", "name", params.Name, "faceid", faceId, "cost", cost)

	fid, c := uint64(faceId), cost
	f.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{
		Name:   params.Name,
		FaceId: &fid,
		Cost:   &c,
	})
}

func (f *FIBModule) remove(cmd *Command) {
	params := cmd.Params
	if params == nil || params.Name == nil {
		f.manager.sendCtrlResp(cmd, ndn.StatusBadRequest, "ControlParameters is incorrect", nil)
		return
	}

	faceId := cmd.SelfFaceId()
	f.manager.fwder.Fib().RemoveNextHop(params.Name, faceId)

	core.Log.Info(f, "Removed nexthop", "name", params.Name, "faceid", faceId)

	fid := uint64(faceId)
	f.manager.sendCtrlResp(cmd, ndn.StatusOK, "OK", &ndn.ControlParameters{
		Name:   params.Name,
		FaceId: &fid,
	})
}

// FibStatusEntry is one record of the fib list dataset.
type FibStatusEntry struct {
	Name     ndn.Name
	NextHops []FibStatusNextHop
}

// FibStatusNextHop is one nexthop record of a FibStatusEntry.
type FibStatusNextHop struct {
	FaceId uint64
	Cost   uint64
}

func (f *FIBModule) list(cmd *Command) {
	var dataset []FibStatusEntry
	f.manager.fwder.Fib().Enumerate(func(entry *table.FibEntry) {
		rec := FibStatusEntry{Name: entry.Name()}
		for _, nh := range entry.NextHops() {
			rec.NextHops = append(rec.NextHops, FibStatusNextHop{FaceId: uint64(nh.Face), Cost: nh.Cost})
		}
		dataset = append(dataset, rec)
	})

	name := cmd.Prefix.Append("fib", "list")
	f.manager.sendStatusDataset(cmd, name, encodeDataset(dataset))
}
