package fw

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// SelfLearningRouteCost is the cost assigned to a learned route, above any
// statically configured one so explicit routes stay preferred.
const SelfLearningRouteCost = 1024

// selfLearningInfo marks a PIT entry as carrying a discovery Interest, so
// the Data that answers it installs a route toward its ingress.
type selfLearningInfo struct {
	isDiscovery bool
}

// SelfLearning floods Interests with no matching FIB route (discovery) and
// learns a route from whichever face answers; Interests with a route follow
// it best-route style.
type SelfLearning struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &SelfLearning{} })
	StrategyVersions["self-learning"] = []uint64{1}
}

func (s *SelfLearning) Instantiate(fwder *Forwarder) {
	s.NewStrategyBase(fwder, "self-learning", 1)
}

func (s *SelfLearning) AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop) {
	if len(nexthops) == 0 {
		// Discovery: flood to every live face other than the ingress and
		// the reserved sub-256 faces.
		scratch.Insert(entry.StrategyInfo(), selfLearningInfo{isDiscovery: true})
		core.Log.Debug(s, "Discovery Interest", "name", interest.Name)
		sent := false
		s.fwder.FaceProvider().Faces(func(f Face) {
			if f.Id() < defn.FaceIdFirst {
				return
			}
			if _, ok := s.IsNextHopEligible(ingress, table.NextHop{Face: f.Id()}); !ok {
				return
			}
			if s.SendInterest(entry, f, false) {
				sent = true
			}
		})
		if !sent {
			s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
			s.RejectPendingInterest(entry)
		}
		return
	}

	for _, nh := range nexthops {
		egress, ok := s.IsNextHopEligible(ingress, nh)
		if !ok {
			continue
		}
		core.Log.Trace(s, "Forwarding Interest", "name", interest.Name, "faceid", nh.Face)
		s.SendInterest(entry, egress, false)
		return
	}
	s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
	s.RejectPendingInterest(entry)
}

// BeforeSatisfyInterest installs a route toward the answering face when the
// entry was a discovery, through the forwarder's route installer (the
// management plane's rib module in a full daemon).
func (s *SelfLearning) BeforeSatisfyInterest(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	info, ok := scratch.Get[selfLearningInfo](entry.StrategyInfo())
	if !ok || !info.isDiscovery {
		return
	}
	core.Log.Info(s, "Learned route", "name", entry.Name(), "faceid", ingress.Id())
	s.InstallRoute(entry.Name(), ingress.Id(), SelfLearningRouteCost)
}

// AfterReceiveNack keeps waiting while any out-record has no Nack yet; once
// every upstream has nacked, it nacks all downstreams with the reason of the
// Nack just received and rejects the entry.
func (s *SelfLearning) AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry) {
	for _, rec := range entry.OutRecords() {
		if rec.IncomingNack == nil {
			return
		}
	}
	s.SendNacks(entry, nack.Reason)
	s.RejectPendingInterest(entry)
}
