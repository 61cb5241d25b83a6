package face

import (
	"time"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/ndn"
)

// DefaultReassemblyTimeout bounds how long a partial packet waits for its
// remaining fragments before being dropped (spec.md §4.6.2).
const DefaultReassemblyTimeout = 500 * time.Millisecond

// partialKey identifies a reassembly in progress: the base sequence number
// (sequence - fragIndex) of its fragments, per spec.md §4.6.2. There is one
// reassembler per remote endpoint (i.e. per face), so the face's LinkService
// instance itself is the "remote endpoint" component of the key.
type partialKey uint64

type partial struct {
	slots   [][]byte
	filled  int
	first   ndn.LpPacket
	haveAny bool
	timer   *core.ScopedEventId
}

// reassembler holds in-progress partial packets for one face's LinkService.
type reassembler struct {
	sched        *core.Scheduler
	maxFragments int
	timeout      time.Duration
	onTimeout    func()

	partials map[partialKey]*partial
}

func newReassembler(sched *core.Scheduler, maxFragments int, timeout time.Duration, onTimeout func()) *reassembler {
	if maxFragments <= 0 {
		maxFragments = DefaultMaxFragments
	}
	if timeout <= 0 {
		timeout = DefaultReassemblyTimeout
	}
	return &reassembler{
		sched:        sched,
		maxFragments: maxFragments,
		timeout:      timeout,
		onTimeout:    onTimeout,
		partials:     make(map[partialKey]*partial),
	}
}

// receive feeds one incoming LpPacket's fragment to the reassembler. It
// returns (payload, first-fragment-header, true) once every fragment of a
// packet has arrived. A single-fragment packet (HasFrag false) completes
// immediately.
func (r *reassembler) receive(lp ndn.LpPacket) ([]byte, ndn.LpPacket, bool) {
	if !lp.HasFrag {
		return lp.Fragment, lp, true
	}

	if lp.FragIndex >= lp.FragCount || lp.FragCount > uint64(r.maxFragments) {
		return nil, ndn.LpPacket{}, false // drop: malformed
	}

	key := partialKey(lp.Sequence - lp.FragIndex)
	p, ok := r.partials[key]
	if !ok {
		p = &partial{
			slots: make([][]byte, lp.FragCount),
			first: lp,
		}
		r.partials[key] = p
		p.timer = core.NewScopedEventId(r.sched, r.sched.Schedule(r.timeout, func() {
			delete(r.partials, key)
			if r.onTimeout != nil {
				r.onTimeout()
			}
		}))
	}

	if uint64(len(p.slots)) != lp.FragCount {
		delete(r.partials, key)
		return nil, ndn.LpPacket{}, false // drop: fragCount mismatch
	}
	if p.slots[lp.FragIndex] != nil {
		delete(r.partials, key)
		return nil, ndn.LpPacket{}, false // drop: duplicate slot
	}

	p.slots[lp.FragIndex] = lp.Fragment
	p.filled++
	if lp.FragIndex == 0 {
		p.first = lp
	}

	if p.filled < len(p.slots) {
		return nil, ndn.LpPacket{}, false
	}

	p.timer.Close()
	delete(r.partials, key)

	total := 0
	for _, s := range p.slots {
		total += len(s)
	}
	out := make([]byte, 0, total)
	for _, s := range p.slots {
		out = append(out, s...)
	}
	return out, p.first, true
}
