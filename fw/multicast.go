package fw

import (
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// MulticastSuppressionTime is the time to suppress retransmissions of the
// same Interest.
const MulticastSuppressionTime = 500 * time.Millisecond

// Multicast is a forwarding strategy that forwards Interests to all
// eligible nexthop faces.
type Multicast struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &Multicast{} })
	StrategyVersions["multicast"] = []uint64{1}
}

func (s *Multicast) Instantiate(fwder *Forwarder) {
	s.NewStrategyBase(fwder, "multicast", 1)
}

func (s *Multicast) AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest", "name", interest.Name)
		return
	}

	// If there is an out record less than suppression interval ago, drop
	// the retransmission to suppress it (only if the nonce is different).
	now := time.Now()
	for _, outRecord := range entry.OutRecords() {
		if outRecord.LastNonce != interest.Nonce &&
			outRecord.LastTimestamp.Add(MulticastSuppressionTime).After(now) {
			core.Log.Debug(s, "Suppressed Interest", "name", interest.Name)
			return
		}
	}

	for _, nh := range nexthops {
		egress, ok := s.IsNextHopEligible(ingress, nh)
		if !ok {
			continue
		}
		core.Log.Trace(s, "Forwarding Interest", "name", interest.Name, "faceid", nh.Face)
		s.SendInterest(entry, egress, false)
	}
}

// AfterReceiveData forwards the Data to every downstream, including one
// that doubles as the Data's ingress on an ad-hoc link.
func (s *Multicast) AfterReceiveData(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	core.Log.Trace(s, "AfterReceiveData", "name", data.Name, "inrecords", len(entry.InRecords()))
	for faceId := range entry.InRecords() {
		if faceId == ingress.Id() && ingress.LinkType() != defn.AdHoc {
			continue
		}
		if f := s.Face(faceId); f != nil {
			s.SendData(entry, data, f, ingress.Id())
		}
	}
}
