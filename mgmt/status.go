package mgmt

import (
	"time"

	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// GeneralStatus is the general-status dataset payload: the aggregate
// counters plus table sizes.
type GeneralStatus struct {
	StartTimestamp        time.Time
	CurrentTimestamp      time.Time
	NInInterests          uint64
	NOutInterests         uint64
	NInData               uint64
	NOutData              uint64
	NInNacks              uint64
	NOutNacks             uint64
	NSatisfiedInterests   uint64
	NUnsatisfiedInterests uint64
	NCsEntries            uint64
	NFibEntries           uint64
}

// GeneralStatusModule serves the forwarder's aggregate status dataset.
type GeneralStatusModule struct {
	manager *Thread
	start   time.Time
}

func (g *GeneralStatusModule) String() string { return "mgmt-status" }

func (g *GeneralStatusModule) registerManager(manager *Thread) { g.manager = manager }

func (g *GeneralStatusModule) handleIncomingInterest(cmd *Command) {
	if cmd.Verb != "general" {
		g.manager.sendCtrlResp(cmd, ndn.StatusUnknownVerb, "Unknown verb", nil)
		return
	}

	fwder := g.manager.fwder
	counters := fwder.Counters()
	var nFib uint64
	fwder.Fib().Enumerate(func(*table.FibEntry) { nFib++ })

	status := GeneralStatus{
		StartTimestamp:        g.start,
		CurrentTimestamp:      time.Now(),
		NInInterests:          counters.NInInterests,
		NOutInterests:         counters.NOutInterests,
		NInData:               counters.NInData,
		NOutData:              counters.NOutData,
		NInNacks:              counters.NInNacks,
		NOutNacks:             counters.NOutNacks,
		NSatisfiedInterests:   counters.NSatisfiedInterests,
		NUnsatisfiedInterests: counters.NUnsatisfiedInterests,
		NCsEntries:            uint64(fwder.Cs().Size()),
		NFibEntries:           nFib,
	}

	name := cmd.Prefix.Append("status", "general")
	g.manager.sendStatusDataset(cmd, name, encodeDataset(status))
}
