package fw

import (
	"math/rand/v2"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// AsfProbingProbability is the chance an Interest additionally probes a
// non-best upstream, keeping alternative RTT estimates warm.
const AsfProbingProbability = 0.05

const asfRttAlpha = 0.125

// asfFaceStats is the per-upstream RTT estimate kept in Measurements
// scratch.
type asfFaceStats struct {
	srtt      time.Duration
	nTimeouts int
}

// asfInfo is the per-prefix Measurements scratch of the ASF strategy.
type asfInfo struct {
	faces map[defn.FaceId]*asfFaceStats
}

// asfPitInfo records when each upstream was tried, to turn the answering
// Data into an RTT sample.
type asfPitInfo struct {
	sentAt map[defn.FaceId]time.Time
}

// Asf (Adaptive SRTT-based Forwarding) ranks upstreams by smoothed RTT,
// preferring measured-fast faces and probing alternates with low
// probability.
type Asf struct {
	StrategyBase
	probeProbability float64
}

func init() {
	strategyInit = append(strategyInit, func() Strategy { return &Asf{} })
	StrategyVersions["asf"] = []uint64{1}
}

func (s *Asf) Instantiate(fwder *Forwarder) {
	s.NewStrategyBase(fwder, "asf", 1)
	s.probeProbability = AsfProbingProbability
}

func (s *Asf) AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop) {
	if len(nexthops) == 0 {
		core.Log.Debug(s, "No nexthop for Interest", "name", interest.Name)
		s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
		s.RejectPendingInterest(entry)
		return
	}

	info := s.prefixInfo(entry.Name())
	best, bestFace := s.rankNextHops(ingress, nexthops, info)
	if best == nil {
		s.SendNack(entry, ingress, ndn.NackReasonNoRoute)
		s.RejectPendingInterest(entry)
		return
	}

	s.forward(entry, best, bestFace)

	// Occasionally probe one alternate so its estimate stays current.
	if rand.Float64() < s.probeProbability {
		for _, nh := range nexthops {
			if nh.Face == bestFace {
				continue
			}
			if egress, ok := s.IsNextHopEligible(ingress, nh); ok {
				core.Log.Trace(s, "Probing alternate", "name", interest.Name, "faceid", nh.Face)
				s.forwardProbe(entry, egress, nh.Face)
				break
			}
		}
	}
}

// rankNextHops picks the eligible upstream with the lowest smoothed RTT;
// unmeasured upstreams rank between measured ones and timed-out ones so
// they get tried before anything known-bad.
func (s *Asf) rankNextHops(ingress Face, nexthops []table.NextHop, info *asfInfo) (Face, defn.FaceId) {
	var best Face
	var bestFace defn.FaceId
	var bestScore time.Duration
	for _, nh := range nexthops {
		egress, ok := s.IsNextHopEligible(ingress, nh)
		if !ok {
			continue
		}
		score := time.Hour // unmeasured
		if stats, ok := info.faces[nh.Face]; ok {
			switch {
			case stats.nTimeouts > 0:
				score = time.Hour * 24
			case stats.srtt > 0:
				score = stats.srtt
			}
		}
		if best == nil || score < bestScore {
			best, bestFace, bestScore = egress, nh.Face, score
		}
	}
	return best, bestFace
}

func (s *Asf) forward(entry *table.PitEntry, egress Face, faceId defn.FaceId) {
	if !s.SendInterest(entry, egress, false) {
		return
	}
	s.recordSend(entry, faceId)
}

func (s *Asf) forwardProbe(entry *table.PitEntry, egress Face, faceId defn.FaceId) {
	if !s.SendInterest(entry, egress, true) {
		return
	}
	s.recordSend(entry, faceId)
}

func (s *Asf) recordSend(entry *table.PitEntry, faceId defn.FaceId) {
	pitInfo, ok := scratch.Get[*asfPitInfo](entry.StrategyInfo())
	if !ok {
		pitInfo = &asfPitInfo{sentAt: make(map[defn.FaceId]time.Time)}
		scratch.Insert(entry.StrategyInfo(), pitInfo)
	}
	pitInfo.sentAt[faceId] = time.Now()
}

// BeforeSatisfyInterest folds the answering face's RTT sample into its
// smoothed estimate and clears its timeout strike.
func (s *Asf) BeforeSatisfyInterest(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	pitInfo, ok := scratch.Get[*asfPitInfo](entry.StrategyInfo())
	if !ok {
		return
	}
	sentAt, ok := pitInfo.sentAt[ingress.Id()]
	if !ok {
		return
	}
	rtt := time.Since(sentAt)

	info := s.prefixInfo(entry.Name())
	stats, ok := info.faces[ingress.Id()]
	if !ok {
		stats = &asfFaceStats{srtt: rtt}
		info.faces[ingress.Id()] = stats
	} else if stats.srtt == 0 {
		stats.srtt = rtt
	} else {
		stats.srtt = stats.srtt + time.Duration(asfRttAlpha*float64(rtt-stats.srtt))
	}
	stats.nTimeouts = 0
	core.Log.Trace(s, "RTT sample", "name", entry.Name(), "faceid", ingress.Id(), "rtt", rtt, "srtt", stats.srtt)
}

// AfterReceiveNack counts a strike against the nacked upstream.
func (s *Asf) AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry) {
	info := s.prefixInfo(entry.Name())
	stats, ok := info.faces[ingress.Id()]
	if !ok {
		stats = &asfFaceStats{}
		info.faces[ingress.Id()] = stats
	}
	stats.nTimeouts++
}

// prefixInfo returns (creating as needed) the asfInfo scratch on the
// Measurements entry of name's routing prefix, so every Interest under one
// FIB entry shares RTT estimates.
func (s *Asf) prefixInfo(name ndn.Name) *asfInfo {
	prefix := name
	if fe := s.fwder.Fib().FindLongestPrefixMatch(name); fe != nil {
		prefix = fe.Name()
	}
	m := s.MeasurementsFor(s).Get(prefix)
	if m == nil {
		// Not governed here (strategy changed mid-flight): use a detached
		// scratch so callers never observe nil.
		return &asfInfo{faces: make(map[defn.FaceId]*asfFaceStats)}
	}
	info, ok := scratch.Get[*asfInfo](m.Info())
	if !ok {
		info = &asfInfo{faces: make(map[defn.FaceId]*asfFaceStats)}
		scratch.Insert(m.Info(), info)
	}
	s.fwder.Measurements().ExtendLifetime(m, s.fwder.now(), table.DefaultMeasurementsLifetime, nil)
	return info
}
