package fw

import (
	"fmt"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// DefaultStrategyName is the strategy installed at the root prefix when the
// forwarder starts.
const DefaultStrategyName = "best-route"

// Strategy is the pluggable per-prefix forwarding decision logic of spec.md
// §4.8. Implementations embed StrategyBase for the action surface and
// default trigger behavior, overriding the triggers they care about.
//
// Strategies must return normally: any failure is expressed through the
// reject-pending-interest or send-nack actions, never an error or panic
// (spec.md §4.9 failure semantics).
type Strategy interface {
	fmt.Stringer
	Instantiate(fwder *Forwarder)
	Name() ndn.StrategyName

	AfterReceiveInterest(ingress Face, interest *ndn.Interest, entry *table.PitEntry, nexthops []table.NextHop)
	AfterContentStoreHit(ingress Face, entry *table.PitEntry, data *ndn.Data)
	BeforeSatisfyInterest(entry *table.PitEntry, ingress Face, data *ndn.Data)
	AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry)
	AfterNewNextHop(nh table.NextHop, entry *table.PitEntry)
}

// DataInterceptor is implemented by strategies that opt into the
// afterReceiveData trigger, replacing the forwarder's default
// send-to-all-downstreams behavior (spec.md §4.8). The forwarder calls it
// after beforeSatisfyInterest; that ordering is frozen (spec.md §9 open
// question).
type DataInterceptor interface {
	AfterReceiveData(entry *table.PitEntry, ingress Face, data *ndn.Data)
}

// strategyInit collects the constructor of every strategy implementation;
// each strategy file appends to it from init(), the registration act of
// spec.md §4.5.
var strategyInit []func() Strategy

// StrategyVersions maps a strategy's base name to its installed versions.
var StrategyVersions = map[string][]uint64{}

// strategyFullName builds the canonical versioned-less strategy name under
// the reserved strategy prefix (spec.md §6).
func strategyFullName(base string) ndn.Name {
	return ndn.NameFromString(defn.StrategyPrefix).Append(ndn.Component(base))
}

// instantiateStrategies constructs one instance of every registered
// strategy. A duplicate name keeps the existing instance (spec.md §4.5).
func (fw *Forwarder) instantiateStrategies() {
	for _, mk := range strategyInit {
		s := mk()
		s.Instantiate(fw)
		key := s.Name().String()
		if _, exists := fw.strategies[key]; exists {
			continue
		}
		fw.strategies[key] = s
	}
}

// ResolveStrategy maps a (possibly unversioned) strategy name to the
// installed instance; an unversioned name picks the highest installed
// version (spec.md §4.5).
func (fw *Forwarder) ResolveStrategy(sn ndn.StrategyName) (ndn.StrategyName, Strategy, bool) {
	if sn.HasVersion() {
		s, ok := fw.strategies[sn.String()]
		return sn, s, ok
	}
	base := sn.Base()
	if len(base) == 0 {
		return ndn.StrategyName{}, nil, false
	}
	versions, ok := StrategyVersions[string(base[len(base)-1])]
	if !ok || len(versions) == 0 {
		return ndn.StrategyName{}, nil, false
	}
	best := versions[0]
	for _, v := range versions {
		if v > best {
			best = v
		}
	}
	versioned := sn.WithVersion(best)
	s, ok := fw.strategies[versioned.String()]
	return versioned, s, ok
}

// StrategyBase carries the state shared by every strategy implementation
// and exposes the actions of spec.md §4.8, all of which act on the owning
// Forwarder. Mirrors the narrow-overridable-surface design of spec.md §9.
type StrategyBase struct {
	fwder   *Forwarder
	name    ndn.StrategyName
	baseStr string
}

// NewStrategyBase initializes the embedded base; every strategy calls it
// from Instantiate.
func (s *StrategyBase) NewStrategyBase(fwder *Forwarder, base string, version uint64) {
	s.fwder = fwder
	s.name = ndn.StrategyName{Name: strategyFullName(base)}.WithVersion(version)
	s.baseStr = base
}

func (s *StrategyBase) String() string         { return "strategy-" + s.baseStr }
func (s *StrategyBase) Name() ndn.StrategyName { return s.name }

// SendInterest forwards entry's Interest to egress via the
// outgoing-interest pipeline.
func (s *StrategyBase) SendInterest(entry *table.PitEntry, egress Face, wantNewNonce bool) bool {
	return s.fwder.OnOutgoingInterest(entry, egress, wantNewNonce)
}

// SendData sends data to egress, tagging it with source as IncomingFaceId.
func (s *StrategyBase) SendData(entry *table.PitEntry, data *ndn.Data, egress Face, source defn.FaceId) {
	s.fwder.OnOutgoingData(data, egress, uint64(source))
}

// SendDataToAll sends data to every downstream of entry except ingress.
func (s *StrategyBase) SendDataToAll(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	s.fwder.SendDataToAll(entry, ingress, data)
}

// SendNack nacks entry's Interest back to egress.
func (s *StrategyBase) SendNack(entry *table.PitEntry, egress Face, reason ndn.NackReason) {
	s.fwder.OnOutgoingNack(entry, egress, reason)
}

// SendNacks nacks every downstream of entry.
func (s *StrategyBase) SendNacks(entry *table.PitEntry, reason ndn.NackReason) {
	faces := make([]defn.FaceId, 0, len(entry.InRecords()))
	for faceId := range entry.InRecords() {
		faces = append(faces, faceId)
	}
	for _, faceId := range faces {
		if f := s.fwder.FaceProvider().Face(faceId); f != nil {
			s.fwder.OnOutgoingNack(entry, f, reason)
		}
	}
}

// RejectPendingInterest gives up on entry: its expiry drops to zero and it
// is erased on the next scheduler pass.
func (s *StrategyBase) RejectPendingInterest(entry *table.PitEntry) {
	s.fwder.setExpiryTimer(entry, 0)
}

// SetExpiryTimer adjusts entry's lifetime, e.g. to stretch it while
// measurement probes are outstanding.
func (s *StrategyBase) SetExpiryTimer(entry *table.PitEntry, d time.Duration) {
	s.fwder.setExpiryTimer(entry, d)
}

// MeasurementsFor returns an accessor filtered to entries this strategy
// currently governs (spec.md §9). self must be the strategy instance
// itself, not the embedded base.
func (s *StrategyBase) MeasurementsFor(self Strategy) *table.Accessor {
	return table.NewAccessor(s.fwder.Measurements(), s.fwder.StrategyChoice(), self)
}

// InstallRoute asks the forwarder's route installer to record a learned
// route (used by the self-learning strategy).
func (s *StrategyBase) InstallRoute(name ndn.Name, face defn.FaceId, cost uint64) {
	s.fwder.routeInstaller.InstallRoute(name, face, cost)
}

// Face resolves a face id through the forwarder's provider; nil when dead.
func (s *StrategyBase) Face(id defn.FaceId) Face {
	return s.fwder.FaceProvider().Face(id)
}

// Schedule posts a timer on the forwarder's scheduler.
func (s *StrategyBase) Schedule(d time.Duration, fn func()) core.EventId {
	return s.fwder.Scheduler().Schedule(d, fn)
}

// IsNextHopEligible applies per-nexthop send rules shared by every
// strategy: the upstream face must be alive, and an Interest never returns
// to its ingress unless the link is ad-hoc (§4.9.9 reverse-path rule).
func (s *StrategyBase) IsNextHopEligible(ingress Face, nh table.NextHop) (Face, bool) {
	f := s.fwder.FaceProvider().Face(nh.Face)
	if f == nil {
		return nil, false
	}
	if f.State() != defn.StateUp && f.State() != defn.StateDown {
		return nil, false
	}
	if ingress != nil && f.Id() == ingress.Id() && f.LinkType() != defn.AdHoc {
		return nil, false
	}
	return f, true
}

// Default trigger behaviors; concrete strategies override what they need.

// AfterContentStoreHit sends the cached Data straight back to the
// requester, tagged with the content-store origin marker (spec.md §4.9.3).
func (s *StrategyBase) AfterContentStoreHit(ingress Face, entry *table.PitEntry, data *ndn.Data) {
	core.Log.Trace(s, "AfterContentStoreHit", "name", data.Name, "faceid", ingress.Id())
	s.SendData(entry, data, ingress, defn.FaceIdContentStore)
}

// BeforeSatisfyInterest does nothing by default.
func (s *StrategyBase) BeforeSatisfyInterest(entry *table.PitEntry, ingress Face, data *ndn.Data) {
}

// AfterReceiveNack does nothing by default; the Nack stays recorded on the
// out-record.
func (s *StrategyBase) AfterReceiveNack(ingress Face, nack *ndn.Nack, entry *table.PitEntry) {
}

// AfterNewNextHop does nothing by default.
func (s *StrategyBase) AfterNewNextHop(nh table.NextHop, entry *table.PitEntry) {
}
