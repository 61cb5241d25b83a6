package fw

import (
	"testing"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockFace records everything the forwarder sends through it.
type mockFace struct {
	id       defn.FaceId
	scope    defn.Scope
	linkType defn.LinkType
	state    defn.State
	sent     []ndn.Pkt
}

func (m *mockFace) Id() defn.FaceId         { return m.id }
func (m *mockFace) State() defn.State       { return m.state }
func (m *mockFace) Scope() defn.Scope       { return m.scope }
func (m *mockFace) LinkType() defn.LinkType { return m.linkType }
func (m *mockFace) Send(pkt ndn.Pkt)        { m.sent = append(m.sent, pkt) }

func (m *mockFace) sentInterests() []*ndn.Interest {
	var out []*ndn.Interest
	for _, p := range m.sent {
		if p.Kind == ndn.PktInterest {
			out = append(out, p.Interest)
		}
	}
	return out
}

func (m *mockFace) sentData() []ndn.Pkt {
	var out []ndn.Pkt
	for _, p := range m.sent {
		if p.Kind == ndn.PktData {
			out = append(out, p)
		}
	}
	return out
}

func (m *mockFace) sentNacks() []*ndn.Nack {
	var out []*ndn.Nack
	for _, p := range m.sent {
		if p.Kind == ndn.PktNack {
			out = append(out, p.Nack)
		}
	}
	return out
}

type mapProvider map[defn.FaceId]Face

func (p mapProvider) Face(id defn.FaceId) Face { return p[id] }
func (p mapProvider) Faces(fn func(Face)) {
	for _, f := range p {
		fn(f)
	}
}

// harness runs a Forwarder on a live main loop; every pipeline invocation
// goes through run() so test code respects the single-writer rule.
type harness struct {
	rt    *core.Runtime
	fwder *Forwarder
	faces mapProvider
}

func newHarness(t *testing.T) *harness {
	rt := core.NewRuntime(1024)
	sched := core.NewScheduler(rt)
	faces := make(mapProvider)
	fwder := NewForwarder(rt, sched, faces, 0, 0)
	go rt.Run()
	t.Cleanup(rt.Stop)
	return &harness{rt: rt, fwder: fwder, faces: faces}
}

func (h *harness) run(fn func()) {
	done := make(chan struct{})
	h.rt.Post(func() {
		fn()
		close(done)
	})
	<-done
}

func (h *harness) addFace(id defn.FaceId, scope defn.Scope, linkType defn.LinkType) *mockFace {
	f := &mockFace{id: id, scope: scope, linkType: linkType, state: defn.StateUp}
	h.faces[id] = f
	return f
}

func interestPkt(name string, nonce ndn.Nonce, lifetime time.Duration, canBePrefix bool) ndn.Pkt {
	return ndn.Pkt{Kind: ndn.PktInterest, Interest: &ndn.Interest{
		Name:             ndn.NameFromString(name),
		Nonce:            nonce,
		InterestLifetime: lifetime,
		CanBePrefix:      canBePrefix,
	}}
}

func dataPkt(name string) ndn.Pkt {
	return ndn.Pkt{Kind: ndn.PktData, Data: &ndn.Data{
		Name:            ndn.NameFromString(name),
		FreshnessPeriod: time.Second,
	}}
}

// TestSimpleExchange is spec.md §8 scenario 1.
func TestSimpleExchange(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), f2.id, 0)
		h.fwder.OnIncomingInterest(f1, interestPkt("/A/B", 101, 4*time.Second, true))
	})

	h.run(func() {
		require.Len(t, f2.sentInterests(), 1)
		assert.True(t, f2.sentInterests()[0].Name.Equal(ndn.NameFromString("/A/B")))
		assert.Equal(t, uint64(f1.id), f2.sent[0].IncomingFaceId)
	})

	h.run(func() {
		h.fwder.OnIncomingData(f2, dataPkt("/A/B/C"))
	})

	h.run(func() {
		require.Len(t, f1.sentData(), 1)
		assert.True(t, f1.sentData()[0].Data.Name.Equal(ndn.NameFromString("/A/B/C")))
		assert.Equal(t, uint64(f2.id), f1.sentData()[0].IncomingFaceId)

		c := h.fwder.Counters()
		assert.Equal(t, uint64(1), c.NInInterests)
		assert.Equal(t, uint64(1), c.NOutInterests)
		assert.Equal(t, uint64(1), c.NInData)
		assert.Equal(t, uint64(1), c.NOutData)
	})
}

// TestContentStoreHit is spec.md §8 scenario 2.
func TestContentStoreHit(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.PointToPoint)
	h.addFace(258, defn.NonLocal, defn.PointToPoint)

	interest := interestPkt("/A", 202, 4*time.Second, false)
	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), f2.id, 0)
		h.fwder.Cs().Insert(&ndn.Data{Name: ndn.NameFromString("/A"), FreshnessPeriod: time.Minute}, false, time.Now())
		h.fwder.OnIncomingInterest(f1, interest)
	})

	h.run(func() {
		assert.Empty(t, f2.sent, "upstream must not see the Interest")
		require.Len(t, f1.sentData(), 1)
		assert.Equal(t, uint64(defn.FaceIdContentStore), f1.sentData()[0].IncomingFaceId)
	})

	assert.Eventually(t, func() bool {
		var gone bool
		h.run(func() { gone = h.fwder.Pit().Find(interest.Interest) == nil })
		return gone
	}, time.Second, 10*time.Millisecond, "PIT entry should be purged")
}

// TestLoopViaDuplicateNonce is spec.md §8 scenario 3.
func TestLoopViaDuplicateNonce(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.PointToPoint)
	f4 := h.addFace(259, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/zT"), f4.id, 0)
		h.fwder.OnIncomingInterest(f1, interestPkt("/zT/28J", 732, 4*time.Second, false))
	})
	h.run(func() {
		require.Len(t, f4.sentInterests(), 1)
		assert.Equal(t, ndn.Nonce(732), f4.sentInterests()[0].Nonce)
		assert.Empty(t, f1.sentNacks())
	})

	h.run(func() {
		h.fwder.OnIncomingInterest(f1, interestPkt("/zT/28J", 732, 4*time.Second, false))
	})
	h.run(func() {
		require.Len(t, f1.sentNacks(), 1)
		assert.Equal(t, ndn.NackReasonDuplicate, f1.sentNacks()[0].Reason)
	})

	h.run(func() {
		h.fwder.OnIncomingInterest(f2, interestPkt("/zT/28J", 732, 4*time.Second, false))
	})
	h.run(func() {
		require.Len(t, f2.sentNacks(), 1)
		assert.Equal(t, ndn.NackReasonDuplicate, f2.sentNacks()[0].Reason)
	})

	h.run(func() {
		h.fwder.OnIncomingInterest(f2, interestPkt("/zT/28J", 944, 4*time.Second, false))
	})
	h.run(func() {
		require.Len(t, f4.sentInterests(), 2)
		assert.Equal(t, ndn.Nonce(944), f4.sentInterests()[1].Nonce)
		assert.Len(t, f2.sentNacks(), 1, "no further Nack for the fresh nonce")
	})
}

// TestScopeLocalhost is spec.md §8 scenario 6.
func TestScopeLocalhost(t *testing.T) {
	h := newHarness(t)
	fLocal := h.addFace(256, defn.Local, defn.PointToPoint)
	fNet := h.addFace(257, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/localhost/A"), fNet.id, 0)
		h.fwder.OnIncomingInterest(fNet, interestPkt("/localhost/A/1", 303, 4*time.Second, false))
	})
	h.run(func() {
		c := h.fwder.Counters()
		assert.Equal(t, uint64(0), c.NDispatchedInterests, "non-local ingress must be dropped")
		assert.Equal(t, uint64(1), c.NScopeViolations)
	})

	h.run(func() {
		h.fwder.OnIncomingInterest(fLocal, interestPkt("/localhost/A/1", 303, 4*time.Second, false))
	})
	h.run(func() {
		assert.Equal(t, uint64(1), h.fwder.Counters().NDispatchedInterests)
	})
}

// TestLocalhostNeverLeavesViaNonLocalFace covers the outgoing half of the
// scope matrix: even with a FIB route, /localhost Data and Interests stay
// off non-local faces (spec.md §8 invariants).
func TestLocalhostNeverLeavesViaNonLocalFace(t *testing.T) {
	h := newHarness(t)
	fLocal := h.addFace(256, defn.Local, defn.PointToPoint)
	fNet := h.addFace(257, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/localhost/A"), fNet.id, 0)
		h.fwder.OnIncomingInterest(fLocal, interestPkt("/localhost/A/1", 404, 4*time.Second, false))
	})
	h.run(func() {
		assert.Empty(t, fNet.sentInterests())
	})

	h.run(func() {
		h.fwder.OnOutgoingData(&ndn.Data{Name: ndn.NameFromString("/localhost/B")}, fNet, 0)
	})
	h.run(func() {
		assert.Empty(t, fNet.sentData())
	})
}

// TestStrategyDispatchIdempotence: the effective strategy depends only on
// the StrategyChoice contents, not query order (spec.md §8).
func TestStrategyDispatchIdempotence(t *testing.T) {
	h := newHarness(t)
	h.run(func() {
		mcName, mc, ok := h.fwder.ResolveStrategy(ndn.StrategyName{Name: strategyFullName("multicast")})
		require.True(t, ok)
		h.fwder.StrategyChoice().Insert(ndn.NameFromString("/A"), mcName, mc)

		names := []string{"/A/B/C", "/X", "/A", "/A/B/C", "/X"}
		first := make(map[string]Strategy)
		for _, n := range names {
			s := h.fwder.effectiveStrategy(ndn.NameFromString(n))
			if prev, seen := first[n]; seen {
				assert.Same(t, prev, s, n)
			} else {
				first[n] = s
			}
		}
		assert.IsType(t, &Multicast{}, first["/A/B/C"])
		assert.IsType(t, &BestRoute{}, first["/X"])
	})
}

// TestUnsolicitedDataPolicy: unsolicited Data is counted and cached under
// the default policy.
func TestUnsolicitedDataPolicy(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.OnIncomingData(f1, dataPkt("/unsolicited"))
		assert.Equal(t, uint64(1), h.fwder.Counters().NUnsolicitedData)
		assert.Equal(t, 1, h.fwder.Cs().Size())
	})
}

// TestNackRequiresMatchingOutRecord is spec.md §4.9.7: a Nack without a
// matching (face, nonce) out-record is ignored.
func TestNackRequiresMatchingOutRecord(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), f2.id, 0)
		h.fwder.OnIncomingInterest(f1, interestPkt("/A/1", 500, 4*time.Second, false))
	})

	// Wrong nonce: dropped, downstream sees nothing.
	h.run(func() {
		nack := &ndn.Nack{Interest: &ndn.Interest{Name: ndn.NameFromString("/A/1"), Nonce: 999}, Reason: ndn.NackReasonCongestion}
		h.fwder.OnIncomingNack(f2, ndn.Pkt{Kind: ndn.PktNack, Nack: nack})
	})
	h.run(func() {
		assert.Empty(t, f1.sentNacks())
	})

	// Matching nonce: best-route has no alternate upstream, so the Nack
	// propagates downstream.
	h.run(func() {
		nack := &ndn.Nack{Interest: &ndn.Interest{Name: ndn.NameFromString("/A/1"), Nonce: 500}, Reason: ndn.NackReasonCongestion}
		h.fwder.OnIncomingNack(f2, ndn.Pkt{Kind: ndn.PktNack, Nack: nack})
	})
	h.run(func() {
		require.Len(t, f1.sentNacks(), 1)
		assert.Equal(t, ndn.NackReasonCongestion, f1.sentNacks()[0].Reason)
	})
}

// TestNackOnMultiAccessFaceDropped: Nack over a shared medium is ambiguous.
func TestNackOnMultiAccessFaceDropped(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.MultiAccess)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), f2.id, 0)
		h.fwder.OnIncomingInterest(f1, interestPkt("/A/1", 600, 4*time.Second, false))
		nack := &ndn.Nack{Interest: &ndn.Interest{Name: ndn.NameFromString("/A/1"), Nonce: 600}, Reason: ndn.NackReasonNoRoute}
		h.fwder.OnIncomingNack(f2, ndn.Pkt{Kind: ndn.PktNack, Nack: nack})
	})
	h.run(func() {
		assert.Empty(t, f1.sentNacks())
	})
}

// TestNextHopFaceIdTag: a local downstream can steer an Interest to an
// explicit egress, bypassing the FIB (spec.md §4.6.3).
func TestNextHopFaceIdTag(t *testing.T) {
	h := newHarness(t)
	fLocal := h.addFace(256, defn.Local, defn.PointToPoint)
	fA := h.addFace(257, defn.NonLocal, defn.PointToPoint)
	fB := h.addFace(258, defn.NonLocal, defn.PointToPoint)

	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), fA.id, 0)
		pkt := interestPkt("/A/1", 700, 4*time.Second, false)
		pkt.NextHopFaceId = uint64(fB.id)
		pkt.HasNextHopFaceId = true
		h.fwder.OnIncomingInterest(fLocal, pkt)
	})
	h.run(func() {
		assert.Empty(t, fA.sentInterests(), "FIB route bypassed")
		assert.Len(t, fB.sentInterests(), 1)
	})
}

// TestCleanupFaceRemovesRecords: closing a face purges its FIB nexthops and
// PIT records (spec.md §8 invariants).
func TestCleanupFaceRemovesRecords(t *testing.T) {
	h := newHarness(t)
	f1 := h.addFace(256, defn.NonLocal, defn.PointToPoint)
	f2 := h.addFace(257, defn.NonLocal, defn.PointToPoint)

	interest := interestPkt("/A/1", 800, 4*time.Second, false)
	h.run(func() {
		h.fwder.Fib().AddOrUpdateNextHop(ndn.NameFromString("/A"), f2.id, 0)
		h.fwder.OnIncomingInterest(f1, interest)
	})

	h.fwder.CleanupFace(f2.id)

	h.run(func() {
		assert.Nil(t, h.fwder.Fib().FindLongestPrefixMatch(ndn.NameFromString("/A/1")))
		entry := h.fwder.Pit().Find(interest.Interest)
		require.NotNil(t, entry)
		assert.Empty(t, entry.OutRecords())
	})
}
