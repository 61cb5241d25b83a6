package table

import (
	"time"

	"github.com/ndn-go/fw/internal/pqueue"
	"github.com/ndn-go/fw/ndn"
)

// CsEntry is a cached Data packet plus the bookkeeping needed to decide
// whether it may still satisfy a MustBeFresh Interest and when it should be
// evicted (spec.md §3/§4.4).
type CsEntry struct {
	node          *Node
	Data          *ndn.Data
	Arrival       time.Time
	StaleUntil    time.Time
	IsUnsolicited bool

	pqItem pqueue.Item[*CsEntry, int64]
}

// IsStale reports whether the entry's staleness deadline has passed as of
// now.
func (e *CsEntry) IsStale(now time.Time) bool {
	return !now.Before(e.StaleUntil)
}

// freshBias is added to an entry's eviction priority while it is still
// fresh, so the minimum-priority item in the heap is always a stale entry
// if one exists ("stale entries evict first", spec.md §4.4), while entries
// within the same tier are still ordered by arrival time.
const freshBias = int64(1) << 62

func priorityOf(e *CsEntry, now time.Time) int64 {
	base := e.Arrival.UnixNano()
	if !e.IsStale(now) {
		return base + freshBias
	}
	return base
}

// OnEvictFn is invoked whenever Cs evicts an entry to make room.
type OnEvictFn func(e *CsEntry)

// OverflowStore is a second-tier store consulted when the in-memory CS
// misses, and fed by its evictions. The badger-backed implementation lives
// in cs_badger.go; the tier is optional and nil by default.
type OverflowStore interface {
	Get(name ndn.Name) (data *ndn.Data, staleUntil time.Time, ok bool)
	Put(data *ndn.Data, staleUntil time.Time) error
	Erase(name ndn.Name) error
}

// Cs is the Content Store: a bounded, name-indexed cache of Data, evicting
// by (staleness, arrival-time) once Capacity is reached (spec.md §4.4).
type Cs struct {
	tree     *NameTree
	Capacity int
	pq       pqueue.Queue[*CsEntry, int64]
	size     int
	onEvict  []OnEvictFn
	overflow OverflowStore
}

// DefaultCsCapacity is NFD's historical default (spec.md §4.4).
const DefaultCsCapacity = 65536

// NewCs constructs a Cs with the given capacity (<=0 uses the default).
func NewCs(tree *NameTree, capacity int) *Cs {
	if capacity <= 0 {
		capacity = DefaultCsCapacity
	}
	return &Cs{tree: tree, Capacity: capacity, pq: pqueue.New[*CsEntry, int64]()}
}

// OnEvict registers a callback fired when an entry is evicted to make
// room for an insert.
func (cs *Cs) OnEvict(fn OnEvictFn) { cs.onEvict = append(cs.onEvict, fn) }

// SetOverflow attaches a second-tier store. Evicted entries spill into it
// and Find falls through to it on an in-memory miss; this is why Find is
// callback-shaped (spec.md §4.4: "lookup may need disk").
func (cs *Cs) SetOverflow(s OverflowStore) { cs.overflow = s }

// Insert stores data at its full name (including any implicit digest
// component the caller has already appended), evicting entries if the
// store is at capacity.
func (cs *Cs) Insert(data *ndn.Data, isUnsolicited bool, now time.Time) *CsEntry {
	node := cs.tree.Lookup(data.Name)
	if node.cs != nil {
		cs.removeEntry(node.cs)
	}
	cs.evictToFit(now)

	entry := &CsEntry{
		node:          node,
		Data:          data,
		Arrival:       now,
		StaleUntil:    now.Add(data.FreshnessPeriod),
		IsUnsolicited: isUnsolicited,
	}
	node.cs = entry
	entry.pqItem = cs.pq.Push(entry, priorityOf(entry, now))
	cs.size++
	return entry
}

// Find performs the callback-style lookup specified in spec.md §4.4: the
// signature allows the backing store to be disk-resident (the overflow
// tier) even though the in-memory default answers before Find returns.
//
// A Data matches when the queried name equals its full name, or is a proper
// prefix of it and canBePrefix is set. mustBeFresh excludes entries whose
// staleness deadline has passed (spec.md §4.4).
func (cs *Cs) Find(name ndn.Name, canBePrefix, mustBeFresh bool, now time.Time, onHit func(*CsEntry), onMiss func()) {
	if node := cs.tree.FindExactMatch(name); node != nil {
		if e := node.cs; e != nil && !(mustBeFresh && e.IsStale(now)) {
			onHit(e)
			return
		}
		if canBePrefix {
			if e := findInSubtree(node, mustBeFresh, now); e != nil {
				onHit(e)
				return
			}
		}
	}
	if cs.overflow != nil {
		if data, staleUntil, ok := cs.overflow.Get(name); ok {
			if !(mustBeFresh && !now.Before(staleUntil)) {
				onHit(&CsEntry{Data: data, StaleUntil: staleUntil, Arrival: now})
				return
			}
		}
	}
	onMiss()
}

// findInSubtree returns any acceptable entry strictly below node, preferring
// shallower matches. Enumeration order among siblings is unspecified, like
// the rest of the tree (spec.md §4.1).
func findInSubtree(node *Node, mustBeFresh bool, now time.Time) *CsEntry {
	for _, child := range node.children {
		if e := child.cs; e != nil && !(mustBeFresh && e.IsStale(now)) {
			return e
		}
	}
	for _, child := range node.children {
		if e := findInSubtree(child, mustBeFresh, now); e != nil {
			return e
		}
	}
	return nil
}

// evictToFit pops entries (demoting stale-but-not-yet-marked ones lazily
// as it goes) until size < Capacity.
func (cs *Cs) evictToFit(now time.Time) {
	for cs.size >= cs.Capacity && cs.pq.Len() > 0 {
		cs.evictOne(now)
	}
}

// evictOne removes the true minimum-priority entry, lazily re-heapifying
// any entry whose fresh-tier bias is stale before trusting the heap top
// (decrease-key-on-read, avoiding a scheduled demotion timer per entry).
func (cs *Cs) evictOne(now time.Time) {
	for {
		top := cs.pq.Peek()
		want := priorityOf(top, now)
		if want == cs.pq.PeekPriority() {
			cs.pq.Pop()
			cs.removeNode(top)
			if cs.overflow != nil && !top.IsUnsolicited {
				_ = cs.overflow.Put(top.Data, top.StaleUntil)
			}
			for _, cb := range cs.onEvict {
				cb(top)
			}
			return
		}
		cs.pq.UpdatePriority(top.pqItem, want)
	}
}

func (cs *Cs) removeEntry(e *CsEntry) {
	cs.pq.Remove(e.pqItem)
	cs.removeNode(e)
}

func (cs *Cs) removeNode(e *CsEntry) {
	e.node.cs = nil
	cs.tree.gc(e.node)
	cs.size--
}

// Size returns the current number of cached entries.
func (cs *Cs) Size() int { return cs.size }

// Erase removes the CS entry at name, if any (used by the `cs erase`
// management verb).
func (cs *Cs) Erase(name ndn.Name) {
	if cs.overflow != nil {
		_ = cs.overflow.Erase(name)
	}
	node := cs.tree.FindExactMatch(name)
	if node == nil || node.cs == nil {
		return
	}
	cs.removeEntry(node.cs)
}
