package table

import (
	"sort"

	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
)

// NextHop is a single FIB nexthop: a face and its routing cost.
type NextHop struct {
	Face defn.FaceId
	Cost uint64
}

// FibEntry is a (prefix, nexthops) pair, nexthops kept sorted ascending by
// cost (spec.md §3/§4.2).
type FibEntry struct {
	node     *Node
	nexthops []NextHop
}

// Name returns the prefix this entry governs.
func (e *FibEntry) Name() ndn.Name { return e.node.name }

// NextHops returns the entry's nexthops, sorted ascending by cost. Callers
// must not mutate the returned slice.
func (e *FibEntry) NextHops() []NextHop { return e.nexthops }

// AfterNewNextHopFn is invoked when addOrUpdate creates a brand new
// nexthop (not when only its cost changes), spec.md §4.2.
type AfterNewNextHopFn func(prefix ndn.Name, nh NextHop)

// Fib is the Forwarding Information Base: prefix -> ordered nexthop list.
type Fib struct {
	tree        *NameTree
	entries     map[*Node]*FibEntry
	afterNewHop []AfterNewNextHopFn
}

// NewFib constructs a Fib anchored at tree.
func NewFib(tree *NameTree) *Fib {
	return &Fib{tree: tree, entries: make(map[*Node]*FibEntry)}
}

// OnAfterNewNextHop registers a callback for the afterNewNextHop signal.
func (f *Fib) OnAfterNewNextHop(fn AfterNewNextHopFn) {
	f.afterNewHop = append(f.afterNewHop, fn)
}

// Insert returns the FIB entry for prefix, creating it if absent.
func (f *Fib) Insert(prefix ndn.Name) (entry *FibEntry, didInsert bool) {
	node := f.tree.Lookup(prefix)
	if node.fib != nil {
		return node.fib, false
	}
	entry = &FibEntry{node: node}
	node.fib = entry
	f.entries[node] = entry
	return entry, true
}

// FindLongestPrefixMatch returns the FIB entry governing name, or nil if
// the root carries no entry either (spec.md §4.2).
func (f *Fib) FindLongestPrefixMatch(name ndn.Name) *FibEntry {
	node := f.tree.FindLongestPrefixMatch(name, func(n *Node) bool { return n.fib != nil })
	if node == nil {
		return nil
	}
	return node.fib
}

// Erase removes the FIB entry at prefix, reclaiming the name-tree node if
// it becomes childless and entry-less.
func (f *Fib) Erase(prefix ndn.Name) {
	node := f.tree.FindExactMatch(prefix)
	if node == nil || node.fib == nil {
		return
	}
	node.fib = nil
	delete(f.entries, node)
	f.tree.gc(node)
}

// Enumerate calls fn for every FIB entry. Order is unspecified.
func (f *Fib) Enumerate(fn func(*FibEntry)) {
	for _, e := range f.entries {
		fn(e)
	}
}

// AddOrUpdateNextHop is idempotent on face: if a nexthop for face already
// exists its cost is updated in place and the list re-sorted; otherwise a
// new nexthop is appended and afterNewNextHop fires (spec.md §4.2).
func (f *Fib) AddOrUpdateNextHop(prefix ndn.Name, face defn.FaceId, cost uint64) *FibEntry {
	entry, _ := f.Insert(prefix)
	for i := range entry.nexthops {
		if entry.nexthops[i].Face == face {
			entry.nexthops[i].Cost = cost
			sortNextHops(entry.nexthops)
			return entry
		}
	}
	nh := NextHop{Face: face, Cost: cost}
	entry.nexthops = append(entry.nexthops, nh)
	sortNextHops(entry.nexthops)
	for _, cb := range f.afterNewHop {
		cb(prefix, nh)
	}
	return entry
}

// RemoveNextHop removes face from prefix's nexthop list. If it was the
// last nexthop, the FIB entry itself is erased (spec.md §4.2).
func (f *Fib) RemoveNextHop(prefix ndn.Name, face defn.FaceId) {
	node := f.tree.FindExactMatch(prefix)
	if node == nil || node.fib == nil {
		return
	}
	entry := node.fib
	for i, nh := range entry.nexthops {
		if nh.Face == face {
			entry.nexthops = append(entry.nexthops[:i], entry.nexthops[i+1:]...)
			break
		}
	}
	if len(entry.nexthops) == 0 {
		f.Erase(prefix)
	}
}

// RemoveFace drops face from every FIB entry, used when a face closes.
func (f *Fib) RemoveFace(face defn.FaceId) {
	for node := range f.entries {
		f.RemoveNextHop(node.name, face)
	}
}

func sortNextHops(nh []NextHop) {
	sort.SliceStable(nh, func(i, j int) bool { return nh[i].Cost < nh[j].Cost })
}
