package fw

import (
	"math/rand/v2"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/ndn-go/fw/table"
)

// Counters are the forwarder-wide aggregate counters reported by the
// general-status management dataset. Per-face counters live on each Face.
type Counters struct {
	NInInterests, NOutInterests                uint64
	NInData, NOutData                          uint64
	NInNacks, NOutNacks                        uint64
	NSatisfiedInterests, NUnsatisfiedInterests uint64
	NCsHits, NCsMisses                         uint64
	NScopeViolations                           uint64
	NUnsolicitedData                           uint64
	NDispatchedInterests                       uint64
}

// RouteInstaller installs a learned route. The self-learning strategy calls
// it when Data answers a discovery Interest; the daemon points it at the
// management plane's rib module, and the default writes the FIB directly.
type RouteInstaller interface {
	InstallRoute(name ndn.Name, face defn.FaceId, cost uint64)
}

// Forwarder threads packets through the tables and the effective strategy:
// the nine pipelines of spec.md §4.9. It exclusively owns all tables
// (spec.md §3) and runs entirely on one Runtime loop, so none of its state
// is locked (spec.md §5).
type Forwarder struct {
	rt    *core.Runtime
	sched *core.Scheduler
	faces FaceProvider

	tree           *table.NameTree
	fib            *table.Fib
	pit            *table.Pit
	cs             *table.Cs
	measurements   *table.Measurements
	strategyChoice *table.StrategyChoice
	deadNonces     *table.DeadNonceList

	unsolicitedPolicy table.UnsolicitedDataPolicy
	routeInstaller    RouteInstaller

	// strategies holds every instantiated strategy, keyed by its full
	// versioned name string (spec.md §4.5's registry of instances).
	strategies map[string]Strategy

	counters Counters
	now      func() time.Time
}

func (fw *Forwarder) String() string { return "forwarder" }

// NewForwarder builds a Forwarder with empty tables on rt, instantiates
// every registered strategy, and installs the default strategy at the root
// prefix (the mandatory root StrategyChoice entry, spec.md §4.5).
func NewForwarder(rt *core.Runtime, sched *core.Scheduler, faces FaceProvider, csCapacity int, dnlLifetime time.Duration) *Forwarder {
	tree := table.NewNameTree()
	measurements := table.NewMeasurements(tree)
	fw := &Forwarder{
		rt:                rt,
		sched:             sched,
		faces:             faces,
		tree:              tree,
		fib:               table.NewFib(tree),
		pit:               table.NewPit(tree),
		cs:                table.NewCs(tree, csCapacity),
		measurements:      measurements,
		strategyChoice:    table.NewStrategyChoice(tree, measurements),
		deadNonces:        table.NewDeadNonceList(dnlLifetime),
		unsolicitedPolicy: table.DefaultUnsolicitedDataPolicy{},
		strategies:        make(map[string]Strategy),
		now:               time.Now,
	}
	fw.routeInstaller = fibInstaller{fw: fw}
	fw.instantiateStrategies()

	rootName, root, _ := fw.ResolveStrategy(ndn.StrategyName{Name: strategyFullName(DefaultStrategyName)})
	fw.strategyChoice.Insert(ndn.Name{}, rootName, root)

	fw.fib.OnAfterNewNextHop(fw.onNewNextHop)
	return fw
}

// Table accessors for the management plane; the Forwarder remains the only
// writer (spec.md §3 Ownership).
func (fw *Forwarder) Fib() *table.Fib                       { return fw.fib }
func (fw *Forwarder) Pit() *table.Pit                       { return fw.pit }
func (fw *Forwarder) Cs() *table.Cs                         { return fw.cs }
func (fw *Forwarder) Measurements() *table.Measurements     { return fw.measurements }
func (fw *Forwarder) StrategyChoice() *table.StrategyChoice { return fw.strategyChoice }
func (fw *Forwarder) DeadNonceList() *table.DeadNonceList   { return fw.deadNonces }
func (fw *Forwarder) FaceProvider() FaceProvider            { return fw.faces }
func (fw *Forwarder) Runtime() *core.Runtime                { return fw.rt }
func (fw *Forwarder) Scheduler() *core.Scheduler            { return fw.sched }

// Counters returns a copy of the aggregate counters.
func (fw *Forwarder) Counters() Counters { return fw.counters }

// SetRouteInstaller redirects learned-route installation (self-learning
// strategy) away from the default direct-FIB path.
func (fw *Forwarder) SetRouteInstaller(ri RouteInstaller) { fw.routeInstaller = ri }

// SetUnsolicitedDataPolicy replaces the unsolicited-data caching policy.
func (fw *Forwarder) SetUnsolicitedDataPolicy(p table.UnsolicitedDataPolicy) {
	fw.unsolicitedPolicy = p
}

type fibInstaller struct{ fw *Forwarder }

func (i fibInstaller) InstallRoute(name ndn.Name, face defn.FaceId, cost uint64) {
	i.fw.fib.AddOrUpdateNextHop(name, face, cost)
}

// OnIncomingPkt is the entry point faces deliver into: it posts onto the
// main loop so pipelines always run single-writer (spec.md §5).
func (fw *Forwarder) OnIncomingPkt(ingress defn.FaceId, pkt ndn.Pkt) {
	fw.rt.Post(func() {
		f := fw.faces.Face(ingress)
		if f == nil {
			return // face died between receive and dispatch
		}
		switch pkt.Kind {
		case ndn.PktInterest:
			fw.OnIncomingInterest(f, pkt)
		case ndn.PktData:
			fw.OnIncomingData(f, pkt)
		case ndn.PktNack:
			fw.OnIncomingNack(f, pkt)
		}
	})
}

func isLocalhostName(name ndn.Name) bool {
	return len(name) > 0 && name[0] == "localhost"
}

func isLocalhopName(name ndn.Name) bool {
	return len(name) > 0 && name[0] == "localhop"
}

// OnIncomingInterest is the incoming-interest pipeline (spec.md §4.9.1).
func (fw *Forwarder) OnIncomingInterest(ingress Face, pkt ndn.Pkt) {
	interest := pkt.Interest
	fw.counters.NInInterests++
	core.Log.Trace(fw, "OnIncomingInterest", "name", interest.Name, "faceid", ingress.Id())

	// 1. Scope: local-only names never enter from a non-local face.
	if ingress.Scope() == defn.NonLocal && isLocalhostName(interest.Name) {
		fw.counters.NScopeViolations++
		return
	}

	// 2. DeadNonceList.
	if fw.deadNonces.Has(interest.Name, interest.Nonce) {
		fw.onInterestLoop(ingress, interest)
		return
	}

	// 3. PIT insert + duplicate-nonce detection against the entry's
	// records: an in-record on a different face or any out-record carrying
	// the same nonce means a loop; the same nonce on the same face is a
	// retransmission and refreshes the record (spec.md §4.9.1).
	entry, isNew := fw.pit.Insert(interest)
	if !isNew && entryHasDuplicateNonce(entry, ingress.Id(), interest.Nonce) {
		fw.onInterestLoop(ingress, interest)
		return
	}

	// 4. CS lookup only for a brand-new entry.
	if isNew {
		fw.cs.Find(interest.Name, interest.CanBePrefix, interest.MustBeFresh, fw.now(),
			func(csEntry *table.CsEntry) { fw.onContentStoreHit(ingress, entry, csEntry.Data) },
			func() { fw.onContentStoreMiss(ingress, entry, pkt) })
		return
	}
	fw.onContentStoreMiss(ingress, entry, pkt)
}

func entryHasDuplicateNonce(entry *table.PitEntry, ingress defn.FaceId, nonce ndn.Nonce) bool {
	for face, rec := range entry.InRecords() {
		if face != ingress && rec.LastNonce == nonce {
			return true
		}
	}
	for _, rec := range entry.OutRecords() {
		if rec.LastNonce == nonce {
			return true
		}
	}
	return false
}

// onInterestLoop is the interest-loop pipeline (spec.md §4.9.2): Nack back
// on point-to-point and ad-hoc links, silent drop on multi-access.
func (fw *Forwarder) onInterestLoop(ingress Face, interest *ndn.Interest) {
	core.Log.Debug(fw, "Interest loop", "name", interest.Name, "faceid", ingress.Id())
	if ingress.LinkType() == defn.MultiAccess {
		return
	}
	nack := &ndn.Nack{Interest: interest, Reason: ndn.NackReasonDuplicate}
	ingress.Send(ndn.Pkt{Kind: ndn.PktNack, Nack: nack})
	fw.counters.NOutNacks++
}

// onContentStoreHit is the content-store-hit pipeline (spec.md §4.9.3).
func (fw *Forwarder) onContentStoreHit(ingress Face, entry *table.PitEntry, data *ndn.Data) {
	fw.counters.NCsHits++
	entry.MarkSatisfied()
	fw.setExpiryTimer(entry, 0)
	fw.effectiveStrategy(entry.Name()).AfterContentStoreHit(ingress, entry, data)
}

// onContentStoreMiss continues the incoming-interest pipeline after a CS
// miss: record the downstream, arm the expiry timer, honor a NextHopFaceId
// tag from a local producer, and hand off to the strategy (spec.md §4.9.1
// steps 5-6, §4.6.3).
func (fw *Forwarder) onContentStoreMiss(ingress Face, entry *table.PitEntry, pkt ndn.Pkt) {
	interest := pkt.Interest
	fw.counters.NCsMisses++
	now := fw.now()
	entry.InsertOrUpdateInRecord(ingress.Id(), interest, now)

	// Set or extend: never shrink a deadline another downstream paid for.
	expiry := now.Add(interest.Lifetime())
	if entry.Expiry().After(expiry) {
		expiry = entry.Expiry()
	}
	fw.setExpiryTimer(entry, expiry.Sub(now))

	if pkt.HasNextHopFaceId && ingress.Scope() == defn.Local {
		if egress := fw.faces.Face(defn.FaceId(pkt.NextHopFaceId)); egress != nil {
			fw.OnOutgoingInterest(entry, egress, false)
		}
		return
	}

	fw.counters.NDispatchedInterests++
	strategy := fw.effectiveStrategy(entry.Name())
	strategy.AfterReceiveInterest(ingress, interest, entry, fw.nextHopsFor(entry.Name()))
}

func (fw *Forwarder) nextHopsFor(name ndn.Name) []table.NextHop {
	fibEntry := fw.fib.FindLongestPrefixMatch(name)
	if fibEntry == nil {
		return nil
	}
	return fibEntry.NextHops()
}

// OnOutgoingInterest is the outgoing-interest pipeline (spec.md §4.9.4).
// It reports whether the Interest was actually transmitted.
func (fw *Forwarder) OnOutgoingInterest(entry *table.PitEntry, egress Face, wantNewNonce bool) bool {
	if egress.State() != defn.StateUp && egress.State() != defn.StateDown {
		return false
	}
	base := entry.Interest()
	if base == nil {
		return false
	}
	now := fw.now()

	// 1-2. Source the nonce from the best in-record, or mint a fresh one.
	nonce, sourceFace := fw.chooseNonce(entry, egress, wantNewNonce)

	// 3. Out-record. Retirement into the DeadNonceList happens when the
	// entry is erased (see onPitExpiry), per §4.9.4 step 4.
	entry.InsertOrUpdateOutRecord(egress.Id(), nonce, now, base.Lifetime())

	// 5. Scope check.
	if fw.wouldViolateScopeOutgoing(entry, egress, base.Name) {
		fw.counters.NScopeViolations++
		return false
	}

	out := *base
	out.Nonce = nonce
	pkt := ndn.Pkt{Kind: ndn.PktInterest, Interest: &out, IncomingFaceId: uint64(sourceFace)}
	egress.Send(pkt)
	fw.counters.NOutInterests++
	core.Log.Trace(fw, "OnOutgoingInterest", "name", out.Name, "faceid", egress.Id())
	return true
}

// chooseNonce implements §4.9.4 steps 1-2: prefer the newest (by expiry)
// in-record on a face other than egress; fall back to an egress in-record;
// mint a fresh nonce if asked or if there is no in-record at all.
func (fw *Forwarder) chooseNonce(entry *table.PitEntry, egress Face, wantNewNonce bool) (ndn.Nonce, defn.FaceId) {
	var best *table.InRecord
	for _, rec := range entry.InRecords() {
		if rec.Face == egress.Id() {
			continue
		}
		if best == nil || rec.LastExpiry.After(best.LastExpiry) {
			best = rec
		}
	}
	if best == nil {
		for _, rec := range entry.InRecords() {
			if best == nil || rec.LastExpiry.After(best.LastExpiry) {
				best = rec
			}
		}
	}
	if best == nil {
		return ndn.Nonce(rand.Uint32()), defn.InvalidFaceId
	}
	if wantNewNonce {
		return ndn.Nonce(rand.Uint32()), best.Face
	}
	return best.LastNonce, best.Face
}

// wouldViolateScopeOutgoing applies the §4.9.9 matrix to an outgoing
// Interest: local-only names never leave via a non-local face, and
// router-scope names only do when some downstream of the entry is local.
func (fw *Forwarder) wouldViolateScopeOutgoing(entry *table.PitEntry, egress Face, name ndn.Name) bool {
	if egress.Scope() == defn.Local {
		return false
	}
	if isLocalhostName(name) {
		return true
	}
	if isLocalhopName(name) {
		for _, rec := range entry.InRecords() {
			if f := fw.faces.Face(rec.Face); f != nil && f.Scope() == defn.Local {
				return false
			}
		}
		return true
	}
	return false
}

// OnIncomingData is the incoming-data pipeline (spec.md §4.9.5).
func (fw *Forwarder) OnIncomingData(ingress Face, pkt ndn.Pkt) {
	data := pkt.Data
	fw.counters.NInData++
	core.Log.Trace(fw, "OnIncomingData", "name", data.Name, "faceid", ingress.Id())

	// 1. Scope check.
	if ingress.Scope() == defn.NonLocal && isLocalhostName(data.Name) {
		fw.counters.NScopeViolations++
		return
	}

	// 2. PIT match.
	entries := fw.pit.DataMatches(data)
	if len(entries) == 0 {
		fw.onUnsolicitedData(ingress, pkt)
		return
	}

	// 3. Satisfy each entry: beforeSatisfyInterest first, then the
	// downstream send (default or strategy-intercepted afterReceiveData),
	// then a zero expiry so later Data doesn't re-trigger. The
	// satisfy-first, data-after ordering is deliberately frozen here
	// (spec.md §9 open question).
	for _, entry := range entries {
		strategy := fw.effectiveStrategy(entry.Name())
		strategy.BeforeSatisfyInterest(entry, ingress, data)
		entry.MarkSatisfied()
		if interceptor, ok := strategy.(DataInterceptor); ok {
			interceptor.AfterReceiveData(entry, ingress, data)
		} else {
			fw.SendDataToAll(entry, ingress, data)
		}
		fw.setExpiryTimer(entry, 0)
	}

	// 4. Cache unless the LP CachePolicy forbids it.
	if !(pkt.HasCachePolicy && pkt.CachePolicy == ndn.CachePolicyNoCache) {
		fw.cs.Insert(data, false, fw.now())
	}
}

// onUnsolicitedData handles Data with no matching PIT entry: cache it only
// if the unsolicited-data policy allows.
func (fw *Forwarder) onUnsolicitedData(ingress Face, pkt ndn.Pkt) {
	fw.counters.NUnsolicitedData++
	noCache := pkt.HasCachePolicy && pkt.CachePolicy == ndn.CachePolicyNoCache
	if !noCache && fw.unsolicitedPolicy.Decide(ingress.Id()) {
		fw.cs.Insert(pkt.Data, true, fw.now())
	}
}

// SendDataToAll delivers data to every downstream of entry except ingress,
// the default multi-downstream send of spec.md §4.8/§4.9.5.
func (fw *Forwarder) SendDataToAll(entry *table.PitEntry, ingress Face, data *ndn.Data) {
	now := fw.now()
	for faceId, rec := range entry.InRecords() {
		if faceId == ingress.Id() || rec.LastExpiry.Before(now) {
			continue
		}
		fw.OnOutgoingData(data, fw.faces.Face(faceId), uint64(ingress.Id()))
	}
}

// OnOutgoingData is the outgoing-data pipeline (spec.md §4.9.6). source is
// the face id carried as the IncomingFaceId tag (the CS marker 254 on a
// cache hit).
func (fw *Forwarder) OnOutgoingData(data *ndn.Data, egress Face, source uint64) {
	if egress == nil {
		return
	}
	if egress.Scope() == defn.NonLocal && isLocalhostName(data.Name) {
		fw.counters.NScopeViolations++
		return
	}
	egress.Send(ndn.Pkt{Kind: ndn.PktData, Data: data, IncomingFaceId: source})
	fw.counters.NOutData++
}

// OnIncomingNack is the incoming-nack pipeline (spec.md §4.9.7).
func (fw *Forwarder) OnIncomingNack(ingress Face, pkt ndn.Pkt) {
	nack := pkt.Nack
	fw.counters.NInNacks++

	// 1. Nack over a shared medium is ambiguous.
	if ingress.LinkType() != defn.PointToPoint {
		core.Log.Debug(fw, "Nack on non-point-to-point face", "faceid", ingress.Id())
		return
	}

	// 2. The Nack must match an out-record we created, nonce included.
	for _, entry := range fw.pit.NackMatches(nack) {
		rec, ok := entry.OutRecords()[ingress.Id()]
		if !ok || rec.LastNonce != nack.Interest.Nonce {
			continue
		}
		// 3-4. Record and dispatch.
		rec.IncomingNack = nack
		fw.effectiveStrategy(entry.Name()).AfterReceiveNack(ingress, nack, entry)
		return
	}
	core.Log.Debug(fw, "Nack with no matching out-record", "name", nack.Interest.Name)
}

// OnOutgoingNack is the outgoing-nack pipeline (spec.md §4.9.8).
func (fw *Forwarder) OnOutgoingNack(entry *table.PitEntry, egress Face, reason ndn.NackReason) {
	rec, ok := entry.InRecords()[egress.Id()]
	if !ok {
		return
	}
	interest := *rec.LastInterest
	interest.Nonce = rec.LastNonce
	entry.EraseInRecord(egress.Id())

	nack := &ndn.Nack{Interest: &interest, Reason: reason}
	egress.Send(ndn.Pkt{Kind: ndn.PktNack, Nack: nack})
	fw.counters.NOutNacks++
}

// setExpiryTimer arms (or re-arms) entry's expiry, the sole path to PIT
// erasure (spec.md §4.8 setExpiryTimer action).
func (fw *Forwarder) setExpiryTimer(entry *table.PitEntry, d time.Duration) {
	if d < 0 {
		d = 0
	}
	ev := core.NewScopedEventId(fw.sched, fw.sched.Schedule(d, func() {
		fw.onPitExpiry(entry)
	}))
	entry.SetExpiryTimer(fw.now().Add(d), ev)
}

// onPitExpiry retires an entry: its out-record nonces enter the
// DeadNonceList (§4.9.4 step 4) and the entry is counted and erased.
func (fw *Forwarder) onPitExpiry(entry *table.PitEntry) {
	if entry.Satisfied() {
		fw.counters.NSatisfiedInterests++
	} else {
		fw.counters.NUnsatisfiedInterests++
	}
	now := fw.now()
	for _, rec := range entry.OutRecords() {
		fw.deadNonces.Add(entry.Name(), rec.LastNonce, now)
	}
	fw.pit.Erase(entry)
}

// onNewNextHop reacts to the FIB's afterNewNextHop signal: every pending
// entry under the prefix gets its strategy's afterNewNextHop trigger
// (spec.md §4.8).
func (fw *Forwarder) onNewNextHop(prefix ndn.Name, nh table.NextHop) {
	fw.pit.EnumerateUnder(prefix, func(entry *table.PitEntry) {
		if entry.Satisfied() {
			return
		}
		fw.effectiveStrategy(entry.Name()).AfterNewNextHop(nh, entry)
	})
}

// effectiveStrategy resolves the strategy governing name. The root entry is
// installed in NewForwarder, so this never fails after construction.
func (fw *Forwarder) effectiveStrategy(name ndn.Name) Strategy {
	entry := fw.strategyChoice.FindEffectiveStrategyEntry(name)
	return entry.Instance.(Strategy)
}

// CleanupFace purges a closed face from every table: FIB nexthops and
// PIT records referencing it (spec.md §8: records of a closed face are
// removed within one pipeline step).
func (fw *Forwarder) CleanupFace(id defn.FaceId) {
	fw.rt.Post(func() {
		fw.fib.RemoveFace(id)
		fw.pit.EnumerateUnder(ndn.Name{}, func(entry *table.PitEntry) {
			entry.EraseInRecord(id)
			entry.EraseOutRecord(id)
		})
	})
}
