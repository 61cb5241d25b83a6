package ndn

import "math"

// LpPacket is the link-layer (NDNLP) envelope exchanged between
// LinkService instances, carrying a network-layer fragment plus the
// optional fields described in spec.md §4.6/§6.
type LpPacket struct {
	Fragment []byte

	// HasSequence is true whenever Sequence is meaningful: every
	// link packet carries one, including single-fragment ones, because
	// the sequence space is shared with reliability (§4.6.1).
	HasSequence bool
	Sequence    uint64

	// FragIndex/FragCount are omitted (both zero, HasFrag false) on a
	// single-fragment packet, per §6.
	HasFrag   bool
	FragIndex uint64
	FragCount uint64

	Ack        []uint64
	TxSequence uint64
	HasTxSeq   bool

	IncomingFaceId    uint64
	HasIncomingFaceId bool
	NextHopFaceId     uint64
	HasNextHopFaceId  bool

	CachePolicy    CachePolicyKind
	HasCachePolicy bool

	NackHeader *Nack
	IsIdle     bool // empty packet sent only to piggyback acks, §4.6.4
}

// SeqAfter reports whether a is sequence-after b in the 64-bit wraparound
// space, per spec.md §9 ("sequence number wrap-around... all comparisons on
// sequence/nonce spaces must be written as modular").
func SeqAfter(a, b uint64) bool {
	return int64(a-b) > 0
}

// SeqDistance returns the modular forward distance from a to b (b - a
// wrapping), always in [0, 2^64).
func SeqDistance(a, b uint64) uint64 {
	return b - a
}

// MaxSeq is the largest representable sequence number, useful for tests
// exercising wraparound.
const MaxSeq = uint64(math.MaxUint64)

// PktKind discriminates the network-layer union carried through the
// forwarder pipelines.
type PktKind int

const (
	PktInterest PktKind = iota
	PktData
	PktNack
)

// Pkt is the parsed network-layer packet threaded through the forwarder
// pipelines (incoming-interest, incoming-data, ...). Exactly one of
// Interest/Data/Nack is non-nil, selected by Kind.
type Pkt struct {
	Kind     PktKind
	Interest *Interest
	Data     *Data
	Nack     *Nack

	// IncomingFaceId/NextHopFaceId mirror the LP local fields once
	// decoded, so pipelines do not need to reach back into the LpPacket.
	IncomingFaceId   uint64
	NextHopFaceId    uint64
	HasNextHopFaceId bool
	CachePolicy      CachePolicyKind
	HasCachePolicy   bool
}

// Name returns the name carried by whichever packet kind p holds.
func (p *Pkt) Name() Name {
	switch p.Kind {
	case PktInterest:
		return p.Interest.Name
	case PktData:
		return p.Data.Name
	case PktNack:
		return p.Nack.Interest.Name
	default:
		return nil
	}
}
