package fw

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// BestRoute forwards an Interest to the lowest-cost eligible upstream.
type BestRoute struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &BestRoute{} })
	StrategyVersions["best-route"] = []uint64{1}
}

func (s *BestRoute) Instantiate(fwder *Forwarder) {
	s.NewStrategyBase(fwder, "best-route", 1)
}

func (s *BestRoute) AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest", "name", interest.Name)
		s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
		s.RejectPendingInterest(entry)
		return
	}

	for _, nh := range nexthops {
		egress, ok := s.IsNextHopEligible(ingress, nh)
		if !ok {
			continue
		}
		// Skip upstreams that already nacked this Interest.
		if rec, tried := entry.OutRecords()[nh.Face]; tried && rec.IncomingNack != nil {
			continue
		}
		core.Log.Trace(s, "Forwarding Interest", "name", interest.Name, "faceid", nh.Face)
		s.SendInterest(entry, egress, false)
		return
	}

	core.Log.Debug(s, "No eligible nexthop", "name", interest.Name)
	s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
	s.RejectPendingInterest(entry)
}

// AfterReceiveNack retries the next untried upstream; once every upstream
// has nacked, the least severe reason is propagated to all downstreams.
func (s *BestRoute) AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry) {
	for _, nh := range s.fwder.nextHopsFor(entry.Name()) {
		if _, tried := entry.OutRecords()[nh.Face]; tried {
			continue
		}
		egress, ok := s.IsNextHopEligible(nil, nh)
		if !ok {
			continue
		}
		core.Log.Debug(s, "Retrying after Nack", "name", entry.Name(), "faceid", nh.Face)
		s.SendInterest(entry, egress, true)
		return
	}

	reason := nack.Reason
	for _, rec := range entry.OutRecords() {
		if rec.IncomingNack == nil {
			return // an upstream is still pending; wait for it
		}
		if rec.IncomingNack.Reason < reason {
			reason = rec.IncomingNack.Reason
		}
	}
	core.Log.Debug(s, "All upstreams nacked", "name", entry.Name(), "reason", reason)
	s.SendNacks(entry, reason)
	s.RejectPendingInterest(entry)
}

// AfterNewNextHop retries a still-pending entry toward a freshly appeared
// upstream (spec.md §4.8).
func (s *BestRoute) AfterNewNextHop(nh table.NextHop, entry *table.PitEntry) {
	if _, tried := entry.OutRecords()[nh.Face]; tried {
		return
	}
	if egress, ok := s.IsNextHopEligible(nil, nh); ok {
		core.Log.Debug(s, "Forwarding to new nexthop", "name", entry.Name(), "faceid", nh.Face)
		s.SendInterest(entry, egress, true)
	}
}
