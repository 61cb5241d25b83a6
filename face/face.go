package face

import (
	"sync"

	"github.com/ndn-go/fw/core"
	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
)

// Counters tallies packets crossing a Face, split by kind and direction
// (spec.md §3/§7, the forwarder-status/face-status datasets).
type Counters struct {
	NInInterests, NOutInterests uint64
	NInData, NOutData           uint64
	NInNacks, NOutNacks         uint64
}

// Face is the facade spec.md §3/§4.6 describes: a Transport bound to a
// LinkService, the state machine, and the network-layer packet counters. The
// forwarder only ever talks to a Face, never to Transport/LinkService
// directly.
type Face struct {
	mu sync.Mutex

	id          defn.FaceId
	transport   Transport
	linkService *LinkService
	state       defn.State
	counters    Counters

	onReceive        func(defn.FaceId, ndn.Pkt)
	afterStateChange []func(old, new defn.State)
}

// NewFace binds transport to a fresh LinkService and starts the face UP.
// onReceive is invoked (from the transport's receive goroutine) for every
// reassembled incoming network packet.
func NewFace(id defn.FaceId, transport Transport, sched *core.Scheduler, opts LinkServiceOptions, onReceive func(defn.FaceId, ndn.Pkt)) *Face {
	f := &Face{id: id, transport: transport, state: defn.StateUp, onReceive: onReceive}
	transport.setFaceId(id)
	f.linkService = NewLinkService(transport, sched, opts, func(pkt ndn.Pkt) {
		f.tallyIncoming(pkt)
		f.onReceive(id, pkt)
	})
	return f
}

func (f *Face) Id() defn.FaceId         { return f.id }
func (f *Face) State() defn.State       { return f.state }
func (f *Face) Transport() Transport    { return f.transport }
func (f *Face) Scope() defn.Scope       { return f.transport.Scope() }
func (f *Face) LinkType() defn.LinkType { return f.transport.LinkType() }
func (f *Face) Counters() Counters {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counters
}

// OnStateChange registers an afterStateChange observer (spec.md §3). The
// callback list is single-threaded like the rest of the state machine.
func (f *Face) OnStateChange(fn func(old, new defn.State)) {
	f.afterStateChange = append(f.afterStateChange, fn)
}

// SetState transitions the face's state machine, per defn.CanTransition
// (spec.md §3), firing afterStateChange. An invalid transition is a
// programmer error.
func (f *Face) SetState(to defn.State) {
	if !defn.CanTransition(f.state, to) {
		panic(defn.ErrInvalidStateTransition{From: f.state, To: to})
	}
	old := f.state
	f.state = to
	for _, fn := range f.afterStateChange {
		fn(old, to)
	}
	if to == defn.StateClosing {
		f.transport.Close()
	}
}

// Send transmits pkt through the face's LinkService if the face is UP or
// DOWN; sends on a closed/closing/failed face are silently ignored (spec.md
// §4.7: "Transport must ignore sends in non-UP/DOWN states").
func (f *Face) Send(pkt ndn.Pkt) {
	if f.state != defn.StateUp && f.state != defn.StateDown {
		return
	}
	f.tallyOutgoing(pkt)
	_ = f.linkService.Send(pkt)
}

func (f *Face) tallyIncoming(pkt ndn.Pkt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch pkt.Kind {
	case ndn.PktInterest:
		f.counters.NInInterests++
	case ndn.PktData:
		f.counters.NInData++
	case ndn.PktNack:
		f.counters.NInNacks++
	}
}

func (f *Face) tallyOutgoing(pkt ndn.Pkt) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch pkt.Kind {
	case ndn.PktInterest:
		f.counters.NOutInterests++
	case ndn.PktData:
		f.counters.NOutData++
	case ndn.PktNack:
		f.counters.NOutNacks++
	}
}

// Run starts the transport's receive loop; call from its own goroutine.
func (f *Face) Run() { f.transport.runReceive() }

// Close transitions the face to CLOSING, which drives the transport closed.
func (f *Face) Close() {
	if f.state == defn.StateUp || f.state == defn.StateDown {
		f.SetState(defn.StateClosing)
	}
}
