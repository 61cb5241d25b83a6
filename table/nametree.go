// Package table implements the five forwarding tables of spec.md §3/§4:
// the NameTree that backs all of them, FIB, PIT, CS, Measurements and
// StrategyChoice, plus the DeadNonceList.
package table

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/ndn-go/fw/ndn"
)

// Node is a single name-tree node. Every FIB/PIT/Measurements/StrategyChoice
// entry is anchored at exactly one Node (spec.md §3's cross-table
// invariant); a Node with no entries and no children is garbage collected.
type Node struct {
	name      ndn.Name
	component ndn.Component
	hash      uint64
	parent    *Node
	children  map[ndn.Component]*Node

	fib            *FibEntry
	pit            []*PitEntry
	cs             *CsEntry
	measurements   *MeasurementsEntry
	strategyChoice *StrategyChoiceEntry
}

// Name returns the full name this node represents.
func (n *Node) Name() ndn.Name { return n.name }

func (n *Node) hasEntries() bool {
	return n.fib != nil || len(n.pit) > 0 || n.cs != nil ||
		n.measurements != nil || n.strategyChoice != nil
}

// NameTree is the shared prefix index backing every other table (spec.md
// §4.1). Lookup finds each existing prefix node through an index keyed by a
// chained xxhash of the name's components; FindExactMatch and the ancestor
// walks use the explicit parent/children trie, so findLongestPrefixMatch and
// garbage collection don't need to hash every candidate prefix.
type NameTree struct {
	root  *Node
	index map[uint64]*Node
}

// NewNameTree constructs an empty tree with just the root node (the name
// "/").
func NewNameTree() *NameTree {
	root := &Node{children: make(map[ndn.Component]*Node)}
	nt := &NameTree{root: root, index: make(map[uint64]*Node)}
	nt.index[root.hash] = root
	return nt
}

// chainHash extends a parent hash with one more component, the "hash every
// prefix of length k and chain" strategy named in spec.md §4.1.
func chainHash(parent uint64, c ndn.Component) uint64 {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], parent)
	h := xxhash.New()
	h.Write(buf[:])
	h.Write([]byte(c))
	return h.Sum64()
}

// Lookup returns the node for name, creating any missing intermediate
// nodes along the way (spec.md §4.1).
func (nt *NameTree) Lookup(name ndn.Name) *Node {
	cur := nt.root
	for i, c := range name {
		h := chainHash(cur.hash, c)
		if existing, ok := nt.index[h]; ok && existing.parent == cur && existing.component == c {
			cur = existing
			continue
		}
		child := &Node{
			name:      name[:i+1].Clone(),
			component: c,
			hash:      h,
			parent:    cur,
			children:  make(map[ndn.Component]*Node),
		}
		cur.children[c] = child
		nt.index[h] = child
		cur = child
	}
	return cur
}

// FindExactMatch returns the node for name if it already exists, without
// creating it.
func (nt *NameTree) FindExactMatch(name ndn.Name) *Node {
	cur := nt.root
	for _, c := range name {
		child, ok := cur.children[c]
		if !ok {
			return nil
		}
		cur = child
	}
	return cur
}

// FindLongestPrefixMatch walks from name toward the root and returns the
// first node (deepest prefix) for which predicate holds.
func (nt *NameTree) FindLongestPrefixMatch(name ndn.Name, predicate func(*Node) bool) *Node {
	nodes := nt.ancestorChain(name)
	for i := len(nodes) - 1; i >= 0; i-- {
		if predicate(nodes[i]) {
			return nodes[i]
		}
	}
	return nil
}

// FindAllMatches returns every node from the root down to name (inclusive)
// for which predicate holds, in root-to-leaf order.
func (nt *NameTree) FindAllMatches(name ndn.Name, predicate func(*Node) bool) []*Node {
	nodes := nt.ancestorChain(name)
	out := make([]*Node, 0, len(nodes))
	for _, n := range nodes {
		if predicate(n) {
			out = append(out, n)
		}
	}
	return out
}

// ancestorChain returns the existing nodes from the root to the deepest
// existing prefix of name, in root-to-leaf order. Stops at the first
// missing component: it never creates nodes.
func (nt *NameTree) ancestorChain(name ndn.Name) []*Node {
	nodes := make([]*Node, 0, len(name)+1)
	cur := nt.root
	nodes = append(nodes, cur)
	for _, c := range name {
		child, ok := cur.children[c]
		if !ok {
			break
		}
		nodes = append(nodes, child)
		cur = child
	}
	return nodes
}

// Enumerate calls fn for every node currently in the tree. Order is
// unspecified, per spec.md §4.1.
func (nt *NameTree) Enumerate(fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.children {
			walk(c)
		}
	}
	walk(nt.root)
}

// gc removes n and any now-empty ancestor chain, per the cross-table
// invariant: a node is reclaimed iff it has no table entries and no child
// nodes (spec.md §3/§8). Never reclaims the root.
func (nt *NameTree) gc(n *Node) {
	for n != nil && n.parent != nil && !n.hasEntries() && len(n.children) == 0 {
		parent := n.parent
		delete(parent.children, n.component)
		delete(nt.index, n.hash)
		n = parent
	}
}
