package table

import (
	"time"

	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
)

// Selectors is the part of an Interest's identity (beyond Name) that the
// PIT matches on, spec.md §3.
type Selectors struct {
	CanBePrefix bool
	MustBeFresh bool
}

// InRecord tracks one downstream face that sent a matching Interest.
type InRecord struct {
	Face         defn.FaceId
	LastNonce    ndn.Nonce
	LastExpiry   time.Time
	LastInterest *ndn.Interest
}

// OutRecord tracks one upstream face the Interest was forwarded to.
type OutRecord struct {
	Face          defn.FaceId
	LastNonce     ndn.Nonce
	LastTimestamp time.Time
	LastExpiry    time.Time
	IncomingNack  *ndn.Nack
}

// PitEntry is a pending Interest: one or more in-records, zero or more
// out-records, an expiry timer, and typed strategy scratch (spec.md §3).
type PitEntry struct {
	node      *Node
	selectors Selectors
	interest  *ndn.Interest

	inRecords  map[defn.FaceId]*InRecord
	outRecords map[defn.FaceId]*OutRecord

	expiry      time.Time
	expiryTimer EventCanceler
	satisfied   bool

	strategyInfo scratch.Slots
}

// EventCanceler abstracts a scheduled timer handle so table does not
// depend on the core package's concrete Scheduler type.
type EventCanceler interface {
	Close()
}

// Name returns the PIT entry's name.
func (e *PitEntry) Name() ndn.Name { return e.node.name }

// Interest returns the most recently received Interest for this entry, the
// one an outgoing-interest transmission is built from.
func (e *PitEntry) Interest() *ndn.Interest { return e.interest }

// Selectors returns the entry's match selectors.
func (e *PitEntry) Selectors() Selectors { return e.selectors }

// InRecords returns the live in-records, keyed by face.
func (e *PitEntry) InRecords() map[defn.FaceId]*InRecord { return e.inRecords }

// OutRecords returns the live out-records, keyed by face.
func (e *PitEntry) OutRecords() map[defn.FaceId]*OutRecord { return e.outRecords }

// Satisfied reports whether the entry was marked satisfied by the
// incoming-data pipeline (spec.md §4.9.5 step 3).
func (e *PitEntry) Satisfied() bool { return e.satisfied }

// StrategyInfo returns the entry's typed scratch slots for strategy
// implementations to read and write via the scratch package helpers.
func (e *PitEntry) StrategyInfo() *scratch.Slots { return &e.strategyInfo }

// Pit is the Pending Interest Table.
type Pit struct {
	tree *NameTree
}

// NewPit constructs a Pit anchored at tree. Expiry timers are installed by
// the forwarder via PitEntry.SetExpiryTimer, keeping this package decoupled
// from core.Scheduler.
func NewPit(tree *NameTree) *Pit {
	return &Pit{tree: tree}
}

func selectorsOf(i *ndn.Interest) Selectors {
	return Selectors{CanBePrefix: i.CanBePrefix, MustBeFresh: i.MustBeFresh}
}

// Find returns an existing entry matching interest's name+selectors, or
// nil. Never inserts.
func (p *Pit) Find(interest *ndn.Interest) *PitEntry {
	node := p.tree.FindExactMatch(interest.Name)
	if node == nil {
		return nil
	}
	sel := selectorsOf(interest)
	for _, e := range node.pit {
		if e.selectors == sel {
			return e
		}
	}
	return nil
}

// Insert returns the PIT entry matching interest's name+selectors,
// creating one if absent. isNew tells the caller whether this is a new
// entry (spec.md §4.3).
func (p *Pit) Insert(interest *ndn.Interest) (entry *PitEntry, isNew bool) {
	node := p.tree.Lookup(interest.Name)
	sel := selectorsOf(interest)
	for _, e := range node.pit {
		if e.selectors == sel {
			return e, false
		}
	}
	entry = &PitEntry{
		node:       node,
		selectors:  sel,
		interest:   interest,
		inRecords:  make(map[defn.FaceId]*InRecord),
		outRecords: make(map[defn.FaceId]*OutRecord),
	}
	node.pit = append(node.pit, entry)
	return entry, true
}

// Erase removes entry from the table, reclaiming its name-tree node if it
// becomes empty.
func (p *Pit) Erase(entry *PitEntry) {
	if entry.expiryTimer != nil {
		entry.expiryTimer.Close()
	}
	node := entry.node
	for i, e := range node.pit {
		if e == entry {
			node.pit = append(node.pit[:i], node.pit[i+1:]...)
			break
		}
	}
	p.tree.gc(node)
}

// EnumerateUnder calls fn for every PIT entry whose name has prefix as a
// prefix, used by the forwarder's afterNewNextHop hook to find the pending
// entries a fresh FIB nexthop could serve (spec.md §4.8).
func (p *Pit) EnumerateUnder(prefix ndn.Name, fn func(*PitEntry)) {
	p.tree.Enumerate(func(n *Node) {
		if len(n.pit) == 0 || !prefix.IsPrefixOf(n.name) {
			return
		}
		for _, e := range n.pit {
			fn(e)
		}
	})
}

// DataMatches returns every PIT entry whose name is a prefix of data's name
// (a CanBePrefix-eligible entry) or exactly equal (an exact entry),
// matching NDN's Interest-Data matching rule (spec.md §4.3).
func (p *Pit) DataMatches(data *ndn.Data) []*PitEntry {
	var out []*PitEntry
	nodes := p.tree.FindAllMatches(data.Name, func(n *Node) bool { return len(n.pit) > 0 })
	for _, n := range nodes {
		for _, e := range n.pit {
			if n.name.Equal(data.Name) || e.selectors.CanBePrefix {
				out = append(out, e)
			}
		}
	}
	return out
}

// NackMatches returns the PIT entries at the Nack's Interest name whose
// selectors match (nil if none). Checking the out-record for the Nack's
// source face and its nonce is left to the forwarder, which knows the
// ingress face; this just does the name lookup half of spec.md §4.9.7.
func (p *Pit) NackMatches(nack *ndn.Nack) []*PitEntry {
	node := p.tree.FindExactMatch(nack.Interest.Name)
	if node == nil {
		return nil
	}
	sel := selectorsOf(nack.Interest)
	var out []*PitEntry
	for _, e := range node.pit {
		if e.selectors == sel {
			out = append(out, e)
		}
	}
	return out
}

// InsertOrUpdateInRecord merges an incoming Interest into entry's
// in-record for face: refresh nonce/expiry/lastInterest if one exists,
// otherwise create it (spec.md §4.3 merge policy).
func (e *PitEntry) InsertOrUpdateInRecord(face defn.FaceId, interest *ndn.Interest, now time.Time) *InRecord {
	rec, ok := e.inRecords[face]
	if !ok {
		rec = &InRecord{Face: face}
		e.inRecords[face] = rec
	}
	rec.LastNonce = interest.Nonce
	rec.LastExpiry = now.Add(interest.Lifetime())
	rec.LastInterest = interest
	e.interest = interest
	e.satisfied = false
	return rec
}

// MarkSatisfied flags the entry as satisfied by Data, so the expiry handler
// counts it accordingly (spec.md §4.9.5 step 3).
func (e *PitEntry) MarkSatisfied() { e.satisfied = true }

// InsertOrUpdateOutRecord merges an outgoing Interest into entry's
// out-record for face.
func (e *PitEntry) InsertOrUpdateOutRecord(face defn.FaceId, nonce ndn.Nonce, now time.Time, lifetime time.Duration) *OutRecord {
	rec, ok := e.outRecords[face]
	if !ok {
		rec = &OutRecord{Face: face}
		e.outRecords[face] = rec
	}
	rec.LastNonce = nonce
	rec.LastTimestamp = now
	rec.LastExpiry = now.Add(lifetime)
	rec.IncomingNack = nil
	return rec
}

// EraseInRecord removes face's in-record.
func (e *PitEntry) EraseInRecord(face defn.FaceId) {
	delete(e.inRecords, face)
}

// EraseOutRecord removes face's out-record. It does not touch the
// DeadNonceList; recording the retired (name, nonce) there is up to the
// caller.
func (e *PitEntry) EraseOutRecord(face defn.FaceId) {
	delete(e.outRecords, face)
}

// ExpiresAfterLastInRecord reports whether e has no more live in-records,
// i.e. the last one just expired or was erased (spec.md §3: "when last
// in-record expires, the entry is purged or handed to the strategy's
// expire trigger").
func (e *PitEntry) ExpiresAfterLastInRecord() bool {
	return len(e.inRecords) == 0
}

// SetExpiryTimer sets the entry's expiry deadline to expiry and installs
// ev as the handle that will fire when it elapses (spec.md §4.8 action
// setExpiryTimer). The previous timer, if any, is closed here first.
func (e *PitEntry) SetExpiryTimer(expiry time.Time, ev EventCanceler) {
	if e.expiryTimer != nil {
		e.expiryTimer.Close()
	}
	e.expiry = expiry
	e.expiryTimer = ev
}

// Expiry returns the entry's current expiry deadline.
func (e *PitEntry) Expiry() time.Time { return e.expiry }
