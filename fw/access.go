package fw

import (
	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// accessInfo remembers, per measured prefix, the upstream that most
// recently supplied Data for it.
type accessInfo struct {
	lastDataFace defn.FaceId
}

// Access targets ad-hoc wireless access networks: it remembers which face
// last served a name prefix and tries that face first, multicasting only
// when no history exists.
type Access struct {
	StrategyBase
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &Access{} })
	StrategyVersions["access"] = []uint64{1}
}

func (s *Access) Instantiate(fwder *Forwarder) {
	s.NewStrategyBase(fwder, "access", 1)
}

func (s *Access) AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest", "name", interest.Name)
		s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
		s.RejectPendingInterest(entry)
		return
	}

	// Last known good upstream first.
	if m := s.measurementOf(entry.Name()); m != nil {
		if info, ok := scratch.Get[accessInfo](m.Info()); ok {
			for _, nh := range nexthops {
				if nh.Face != info.lastDataFace {
					continue
				}
				if egress, ok := s.IsNextHopEligible(ingress, nh); ok {
					core.Log.Trace(s, "Forwarding to last working face", "name", interest.Name, "faceid", nh.Face)
					s.SendInterest(entry, egress, false)
					return
				}
			}
		}
	}

	// No usable history: try them all.
	sent := false
	for _, nh := range nexthops {
		egress, ok := s.IsNextHopEligible(ingress, nh)
		if !ok {
			continue
		}
		s.SendInterest(entry, egress, false)
		sent = true
	}
	if !sent {
		s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
		s.RejectPendingInterest(entry)
	}
}

// BeforeSatisfyInterest records the answering face on the Measurements
// entry of the Interest name's parent, so sibling names under the same
// prefix share the history.
func (s *Access) BeforeSatisfyInterest(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	prefix := entry.Name()
	if len(prefix) > 0 {
		prefix = prefix.Prefix(len(prefix) - 1)
	}
	m := s.MeasurementsFor(s).Get(prefix)
	if m == nil {
		return
	}
	scratch.Insert(m.Info(), accessInfo{lastDataFace: ingress.Id()})
	s.fwder.Measurements().ExtendLifetime(m, s.fwder.now(), table.DefaultMeasurementsLifetime, nil)
}

// AfterReceiveNack clears the remembered face when it stops serving, so the
// next Interest multicasts again.
func (s *Access) AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry) {
	if m := s.measurementOf(entry.Name()); m != nil {
		if info, ok := scratch.Get[accessInfo](m.Info()); ok && info.lastDataFace == ingress.Id() {
			scratch.Insert(m.Info(), accessInfo{})
		}
	}
}

// measurementOf reads (never creates) the deepest Measurements entry for
// name that this strategy governs.
func (s *Access) measurementOf(name ndn.Name) *table.MeasurementsEntry {
	m := s.fwder.Measurements().FindLongestPrefixMatch(name)
	if m == nil {
		return nil
	}
	if s.MeasurementsFor(s).Get(m.Name()) == nil {
		return nil
	}
	return m
}
