package face

import (
	"errors"
	"sync/atomic"

	"github.com/ndn-go/fw/ndn"
)

// ErrTooManyFragments is returned when a network packet would need more than
// maxFragments link fragments to cross the transport's MTU (spec.md §4.6.1).
var ErrTooManyFragments = errors.New("fragmentation: too many fragments")

// DefaultMaxFragments bounds how many pieces a single network packet may be
// split into (spec.md §4.6.1).
const DefaultMaxFragments = 400

// lpOverheadEstimate approximates the encoded size of an LpPacket's
// non-Fragment fields, reserving headroom in the per-fragment payload budget.
// The real figure depends on the (out-of-scope) TLV codec; this constant is
// a conservative placeholder.
const lpOverheadEstimate = 32

var sequenceCounter atomic.Uint64

// nextSequence allocates the next link-packet sequence number. Wraparound is
// legal and reassembly/reliability must tolerate it (spec.md §4.6.1, §9).
func nextSequence() uint64 {
	return sequenceCounter.Add(1)
}

// fragment splits payload into one or more LpPacket fragments no larger than
// mtu each, stamping them with a shared base sequence and fragIndex/fragCount
// (spec.md §4.6.1). A payload that already fits in one MTU still gets a
// sequence number, with HasFrag left false.
func fragment(payload []byte, mtu int, maxFragments int) ([]ndn.LpPacket, error) {
	if maxFragments <= 0 {
		maxFragments = DefaultMaxFragments
	}
	payloadBudget := mtu - lpOverheadEstimate
	if payloadBudget <= 0 {
		return nil, ErrTooManyFragments
	}

	if len(payload) <= payloadBudget {
		return []ndn.LpPacket{{
			Fragment:    payload,
			HasSequence: true,
			Sequence:    nextSequence(),
		}}, nil
	}

	n := (len(payload) + payloadBudget - 1) / payloadBudget
	if n > maxFragments {
		return nil, ErrTooManyFragments
	}

	base := nextSequence()
	// Reserve the rest of the sequence block for this packet's fragments so
	// fragIndex i maps to sequence base+i, matching NFD's scheme of encoding
	// the fragment's position directly in its sequence number.
	for i := 1; i < n; i++ {
		nextSequence()
	}

	out := make([]ndn.LpPacket, n)
	for i := 0; i < n; i++ {
		start := i * payloadBudget
		end := start + payloadBudget
		if end > len(payload) {
			end = len(payload)
		}
		out[i] = ndn.LpPacket{
			Fragment:    payload[start:end],
			HasSequence: true,
			Sequence:    base + uint64(i),
			HasFrag:     true,
			FragIndex:   uint64(i),
			FragCount:   uint64(n),
		}
	}
	return out, nil
}
