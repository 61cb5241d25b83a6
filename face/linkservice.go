package face

import (
	"bytes"
	"encoding/gob"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
)

// LinkServiceOptions are the per-instance toggles of spec.md §4.6.
type LinkServiceOptions struct {
	AllowLocalFields   bool
	AllowFragmentation bool
	AllowReassembly    bool
	ReliabilityEnabled bool
}

// LinkService translates between network packets (Interest/Data/Nack) and
// link (NDNLP) packets for exactly one face, per spec.md §4.6.
type LinkService struct {
	transport Transport
	sched     *core.Scheduler
	opts      LinkServiceOptions
	onReceive func(ndn.Pkt)

	reassembler *reassembler
	reliability *Reliability

	nInLpInvalid uint64
}

// NewLinkService constructs a LinkService bound to transport, delivering
// reassembled network packets to onReceive. Reassembly timeouts increment
// the invalid-packet counter, mirroring a dropped malformed packet.
func NewLinkService(transport Transport, sched *core.Scheduler, opts LinkServiceOptions, onReceive func(ndn.Pkt)) *LinkService {
	ls := &LinkService{transport: transport, sched: sched, opts: opts, onReceive: onReceive}
	if opts.AllowReassembly {
		ls.reassembler = newReassembler(sched, DefaultMaxFragments, DefaultReassemblyTimeout, func() {
			ls.nInLpInvalid++
		})
	}
	if opts.ReliabilityEnabled {
		ls.reliability = NewReliability(sched, ls.sendIdleAcks, ls.retransmitFragment, func(seq uint64) {
			ls.nInLpInvalid++ // exhausted retransmission counted alongside other loss
		})
	}
	transport.setLinkService(ls)
	return ls
}

// Send encodes pkt as one or more link packets and transmits them via the
// bound transport, fragmenting if needed (spec.md §4.6.1) and attaching
// local fields only when the transport's face is local-scope (§4.6.3).
func (ls *LinkService) Send(pkt ndn.Pkt) error {
	payload, err := encodeNetworkPkt(pkt)
	if err != nil {
		return err
	}

	maxFragments := DefaultMaxFragments
	mtu := ls.transport.MTU()
	if !ls.opts.AllowFragmentation {
		maxFragments = 1
	}
	frags, err := fragment(payload, mtu, maxFragments)
	if err != nil {
		return err
	}

	local := ls.transport.Scope() == defn.Local
	for i := range frags {
		if ls.opts.AllowLocalFields && local {
			if pkt.IncomingFaceId != 0 {
				frags[i].IncomingFaceId = pkt.IncomingFaceId
				frags[i].HasIncomingFaceId = true
			}
			if pkt.HasCachePolicy {
				frags[i].CachePolicy = pkt.CachePolicy
				frags[i].HasCachePolicy = true
			}
		}
		if ls.reliability != nil {
			budget := ls.ackBudget()
			frags[i].Ack = ls.reliability.DrainAcks(budget)
		}

		raw, err := encodeLp(frags[i])
		if err != nil {
			return err
		}
		ls.transport.sendFrame(raw)
		if ls.reliability != nil {
			ls.reliability.TrackOutgoing(frags[i].Sequence, raw)
		}
	}
	return nil
}

// ackBudget computes how many ack entries fit alongside the current MTU,
// per spec.md §4.6.4 (⌊(mtu - encoded-size)/ackEntrySize⌋, approximated
// here since the real figure depends on the out-of-scope wire codec).
func (ls *LinkService) ackBudget() int {
	const ackEntrySize = 8
	budget := (ls.transport.MTU() - lpOverheadEstimate) / ackEntrySize
	if budget < 0 {
		return 0
	}
	return budget
}

func (ls *LinkService) sendIdleAcks(acks []uint64) {
	idle := ndn.LpPacket{HasSequence: true, Sequence: nextSequence(), IsIdle: true, Ack: acks}
	raw, err := encodeLp(idle)
	if err != nil {
		return
	}
	ls.transport.sendFrame(raw)
}

func (ls *LinkService) retransmitFragment(f *unackedFragment) {
	ls.transport.sendFrame(f.payload)
}

// handleIncomingFrame is the transport-facing entry point: decode the link
// packet, validate local fields against the face's scope, reassemble, and
// hand the completed network packet to onReceive (spec.md §4.6.2/§4.6.3).
func (ls *LinkService) handleIncomingFrame(raw []byte) {
	lp, err := decodeLp(raw)
	if err != nil {
		ls.nInLpInvalid++
		return
	}

	local := ls.transport.Scope() == defn.Local
	if (lp.HasIncomingFaceId || lp.HasNextHopFaceId || lp.HasCachePolicy) && (!ls.opts.AllowLocalFields || !local) {
		ls.nInLpInvalid++
		return
	}

	if ls.reliability != nil {
		for _, seq := range lp.Ack {
			ls.reliability.ReceiveAck(seq)
		}
		// IDLE packets carry acks but are never themselves acked, or the
		// two peers would ack each other forever.
		if lp.HasSequence && !lp.IsIdle {
			ls.reliability.QueueAck(lp.Sequence)
		}
	}

	if lp.IsIdle {
		return
	}

	var (
		payload []byte
		first   ndn.LpPacket
		ok      bool
	)
	if ls.reassembler != nil {
		payload, first, ok = ls.reassembler.receive(lp)
	} else if !lp.HasFrag {
		payload, first, ok = lp.Fragment, lp, true
	} else {
		ls.nInLpInvalid++
		return
	}
	if !ok {
		return
	}

	pkt, err := decodeNetworkPkt(payload)
	if err != nil {
		ls.nInLpInvalid++
		return
	}
	// NextHopFaceId is the only face-id field honored on receive; a
	// received IncomingFaceId is ignored (spec.md §4.6.3).
	if first.HasNextHopFaceId {
		pkt.NextHopFaceId = first.NextHopFaceId
		pkt.HasNextHopFaceId = true
	}
	if first.HasCachePolicy {
		pkt.CachePolicy = first.CachePolicy
		pkt.HasCachePolicy = true
	}
	pkt.IncomingFaceId = uint64(ls.transport.FaceId())
	ls.onReceive(pkt)
}

// NInLpInvalid returns the count of dropped malformed/invalid link packets
// (spec.md §4.9's failure semantics).
func (ls *LinkService) NInLpInvalid() uint64 { return ls.nInLpInvalid }

func encodeNetworkPkt(pkt ndn.Pkt) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(pkt); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeNetworkPkt(b []byte) (ndn.Pkt, error) {
	var pkt ndn.Pkt
	err := gob.NewDecoder(bytes.NewReader(b)).Decode(&pkt)
	return pkt, err
}
