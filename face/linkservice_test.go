package face

import (
	"testing"
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipeTransport delivers frames synchronously to a peer transport's
// LinkService, recording everything that crosses the wire.
type pipeTransport struct {
	transportBase
	peer *pipeTransport
	wire []ndn.LpPacket
}

func newPipePair(mtu int, scope defn.Scope) (*pipeTransport, *pipeTransport) {
	a := &pipeTransport{}
	b := &pipeTransport{}
	a.init("pipe://a", "pipe://b", defn.PersistencyPermanent, scope, defn.PointToPoint, mtu)
	b.init("pipe://b", "pipe://a", defn.PersistencyPermanent, scope, defn.PointToPoint, mtu)
	a.peer, b.peer = b, a
	a.running.Store(true)
	b.running.Store(true)
	return a, b
}

func (t *pipeTransport) String() string                         { return "pipe-transport" }
func (t *pipeTransport) SetPersistency(p defn.Persistency) bool { return false }
func (t *pipeTransport) SendQueueSize() uint64                  { return 0 }
func (t *pipeTransport) runReceive()                            {}
func (t *pipeTransport) Close()                                 { t.running.Store(false) }

func (t *pipeTransport) sendFrame(frame []byte) {
	if lp, err := decodeLp(frame); err == nil {
		t.wire = append(t.wire, lp)
	}
	t.nOutBytes.Add(uint64(len(frame)))
	if t.peer.linkService != nil {
		t.peer.linkService.handleIncomingFrame(frame)
	}
}

func newTestSched(t *testing.T) *core.Scheduler {
	rt := core.NewRuntime(64)
	go rt.Run()
	t.Cleanup(rt.Stop)
	return core.NewScheduler(rt)
}

// TestFragmentationRoundTripOverLink is spec.md §8 scenario 4: a small MTU
// forces an Interest with a long name into several sequence-tagged
// fragments, and the receiver delivers exactly one equal Interest.
func TestFragmentationRoundTripOverLink(t *testing.T) {
	sched := newTestSched(t)
	sequenceCounter.Store(1000)

	sender, receiver := newPipePair(100, defn.NonLocal)
	opts := LinkServiceOptions{AllowFragmentation: true, AllowReassembly: true}

	var delivered []ndn.Pkt
	NewLinkService(sender, sched, opts, func(ndn.Pkt) {})
	NewLinkService(receiver, sched, opts, func(pkt ndn.Pkt) { delivered = append(delivered, pkt) })

	longName := ndn.NameFromString("/fragmentation")
	for i := 0; i < 12; i++ {
		longName = longName.Append(ndn.Component("component-0123456789"))
	}
	interest := &ndn.Interest{Name: longName, Nonce: 7, InterestLifetime: 4 * time.Second}

	require.NoError(t, sender.linkService.Send(ndn.Pkt{Kind: ndn.PktInterest, Interest: interest}))

	require.Greater(t, len(sender.wire), 1, "the Interest must fragment")
	for i, lp := range sender.wire {
		assert.True(t, lp.HasSequence)
		assert.GreaterOrEqual(t, lp.Sequence, uint64(1000))
		assert.True(t, lp.HasFrag)
		assert.Equal(t, uint64(i), lp.FragIndex)
		assert.Equal(t, uint64(len(sender.wire)), lp.FragCount)
	}

	require.Len(t, delivered, 1, "exactly one reassembled Interest")
	require.Equal(t, ndn.PktInterest, delivered[0].Kind)
	assert.True(t, delivered[0].Interest.Name.Equal(longName))
	assert.Equal(t, interest.Nonce, delivered[0].Interest.Nonce)
}

// TestLocalFieldsRejectedOnNonLocalFace: an LP local field arriving on a
// non-local face drops the packet (spec.md §4.6.3).
func TestLocalFieldsRejectedOnNonLocalFace(t *testing.T) {
	sched := newTestSched(t)
	_, receiver := newPipePair(8800, defn.NonLocal)

	var delivered []ndn.Pkt
	ls := NewLinkService(receiver, sched, LinkServiceOptions{AllowReassembly: true}, func(pkt ndn.Pkt) {
		delivered = append(delivered, pkt)
	})

	payload, err := encodeNetworkPkt(ndn.Pkt{Kind: ndn.PktInterest, Interest: &ndn.Interest{Name: ndn.NameFromString("/A")}})
	require.NoError(t, err)
	raw, err := encodeLp(ndn.LpPacket{
		Fragment:         payload,
		HasSequence:      true,
		Sequence:         1,
		NextHopFaceId:    300,
		HasNextHopFaceId: true,
	})
	require.NoError(t, err)

	ls.handleIncomingFrame(raw)
	assert.Empty(t, delivered)
	assert.Equal(t, uint64(1), ls.NInLpInvalid())
}

// TestNextHopFaceIdHonoredOnLocalFace: the same field on a local face is
// carried through to the decoded packet.
func TestNextHopFaceIdHonoredOnLocalFace(t *testing.T) {
	sched := newTestSched(t)
	_, receiver := newPipePair(8800, defn.Local)

	var delivered []ndn.Pkt
	ls := NewLinkService(receiver, sched, LinkServiceOptions{AllowLocalFields: true, AllowReassembly: true}, func(pkt ndn.Pkt) {
		delivered = append(delivered, pkt)
	})

	payload, err := encodeNetworkPkt(ndn.Pkt{Kind: ndn.PktInterest, Interest: &ndn.Interest{Name: ndn.NameFromString("/A")}})
	require.NoError(t, err)
	raw, err := encodeLp(ndn.LpPacket{
		Fragment:         payload,
		HasSequence:      true,
		Sequence:         2,
		NextHopFaceId:    300,
		HasNextHopFaceId: true,
	})
	require.NoError(t, err)

	ls.handleIncomingFrame(raw)
	require.Len(t, delivered, 1)
	assert.True(t, delivered[0].HasNextHopFaceId)
	assert.Equal(t, uint64(300), delivered[0].NextHopFaceId)
	assert.Equal(t, uint64(receiver.FaceId()), delivered[0].IncomingFaceId)
}

// TestReliabilityAcksReleaseFragments: acks piggybacked by the peer release
// tracked fragments instead of letting the RTO retransmit them. All
// reliability state lives on the loop, so the test drives it through
// posted jobs.
func TestReliabilityAcksReleaseFragments(t *testing.T) {
	rt := core.NewRuntime(64)
	go rt.Run()
	t.Cleanup(rt.Stop)
	sched := core.NewScheduler(rt)
	post := func(fn func()) {
		done := make(chan struct{})
		rt.Post(func() {
			fn()
			close(done)
		})
		<-done
	}

	sender, receiver := newPipePair(8800, defn.NonLocal)
	opts := LinkServiceOptions{AllowFragmentation: true, AllowReassembly: true, ReliabilityEnabled: true}

	NewLinkService(sender, sched, opts, func(ndn.Pkt) {})
	NewLinkService(receiver, sched, opts, func(ndn.Pkt) {})

	interest := &ndn.Interest{Name: ndn.NameFromString("/reliable"), Nonce: 9}
	post(func() {
		require.NoError(t, sender.linkService.Send(ndn.Pkt{Kind: ndn.PktInterest, Interest: interest}))
	})

	// The receiver queues an ack; its idle-ack timer flushes it back in an
	// IDLE packet, and the sender's tracking empties without a
	// retransmission.
	assert.Eventually(t, func() bool {
		var outstanding int
		post(func() { outstanding = len(sender.linkService.reliability.unacked) })
		return outstanding == 0
	}, time.Second, 5*time.Millisecond)
	post(func() {
		assert.Equal(t, uint64(0), sender.linkService.reliability.NRetxExhausted())
	})
}
