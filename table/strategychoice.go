package table

import "github.com/ndn-go/fw/ndn"

// StrategyChoiceEntry binds a name prefix to a strategy instance. The
// instance is stored as `any` so this package does not need to import the
// fw package's Strategy interface (which itself depends on table types) —
// the fw package type-asserts it back on read.
type StrategyChoiceEntry struct {
	node         *Node
	StrategyName ndn.StrategyName
	Instance     any
}

// Name returns the prefix this entry governs.
func (e *StrategyChoiceEntry) Name() ndn.Name { return e.node.name }

// StrategyChoice is the prefix -> strategy-instance table (spec.md §4.5).
// The root entry is mandatory: callers must Insert at the root name before
// any lookup succeeds, and Unset on the root is rejected.
type StrategyChoice struct {
	tree         *NameTree
	measurements *Measurements
}

// NewStrategyChoice constructs a StrategyChoice table anchored at tree.
// measurements is used to clear scratch on an effective-strategy change
// (spec.md §4.5); it may be nil in tests that don't exercise that path.
func NewStrategyChoice(tree *NameTree, measurements *Measurements) *StrategyChoice {
	return &StrategyChoice{tree: tree, measurements: measurements}
}

// Insert binds prefix to (strategyName, instance), replacing any existing
// binding at that exact prefix. Measurements scratch is cleared on prefix
// and on every descendant whose EFFECTIVE strategy actually changes type as
// a result (spec.md §4.5) — re-installing the same strategy name that was
// already governing a node (inherited or not) leaves its scratch alone.
func (sc *StrategyChoice) Insert(prefix ndn.Name, strategyName ndn.StrategyName, instance any) *StrategyChoiceEntry {
	node := sc.tree.Lookup(prefix)
	prevName, hadPrev := sc.effectiveStrategyName(node)
	entry := &StrategyChoiceEntry{node: node, StrategyName: strategyName, Instance: instance}
	node.strategyChoice = entry

	changed := !hadPrev || !prevName.Name.Equal(strategyName.Name)
	if node.measurements != nil && changed {
		node.measurements.info.Clear()
		node.measurements.effectiveStrategy = entry
	}
	sc.clearDescendants(node, entry, changed)
	return entry
}

// effectiveStrategyName returns the strategy name governing node (inclusive
// of node itself), walking up through ancestors the same way
// FindEffectiveStrategyEntry does.
func (sc *StrategyChoice) effectiveStrategyName(node *Node) (ndn.StrategyName, bool) {
	for n := node; n != nil; n = n.parent {
		if n.strategyChoice != nil {
			return n.strategyChoice.StrategyName, true
		}
	}
	return ndn.StrategyName{}, false
}

// clearDescendants propagates a strategy change at the node that was just
// updated down to every descendant that inherits from it (stopping at any
// descendant with its own StrategyChoice entry). changed indicates whether
// the change at node actually altered the effective strategy name, which is
// true for every inheriting descendant as well since none of them had their
// own entry to begin with.
func (sc *StrategyChoice) clearDescendants(node *Node, newEntry *StrategyChoiceEntry, changed bool) {
	for _, child := range node.children {
		if child.strategyChoice != nil {
			continue // separate effective-strategy boundary: untouched
		}
		if child.measurements != nil && changed {
			child.measurements.info.Clear()
			child.measurements.effectiveStrategy = newEntry
		}
		sc.clearDescendants(child, newEntry, changed)
	}
}

// Unset removes the StrategyChoice entry at prefix. Unsetting the root is
// rejected: the root entry is mandatory and non-erasable (spec.md §4.5).
func (sc *StrategyChoice) Unset(prefix ndn.Name) bool {
	if len(prefix) == 0 {
		return false
	}
	node := sc.tree.FindExactMatch(prefix)
	if node == nil || node.strategyChoice == nil {
		return false
	}
	removedName := node.strategyChoice.StrategyName
	parentEffective := sc.FindEffectiveStrategyEntry(node.parent.name)
	node.strategyChoice = nil
	changed := parentEffective == nil || !parentEffective.StrategyName.Name.Equal(removedName.Name)
	if node.measurements != nil && changed {
		node.measurements.info.Clear()
		node.measurements.effectiveStrategy = parentEffective
	}
	sc.clearDescendants(node, parentEffective, changed)
	sc.tree.gc(node)
	return true
}

// Get returns the strategy name bound at exactly prefix, if any (spec.md
// §4.5's get()).
func (sc *StrategyChoice) Get(prefix ndn.Name) (ndn.StrategyName, bool) {
	node := sc.tree.FindExactMatch(prefix)
	if node == nil || node.strategyChoice == nil {
		return ndn.StrategyName{}, false
	}
	return node.strategyChoice.StrategyName, true
}

// FindEffectiveStrategyEntry returns the StrategyChoice entry governing
// name: the entry at the longest prefix of name that has one. The root
// entry is mandatory, so this is only nil before the daemon installs it.
func (sc *StrategyChoice) FindEffectiveStrategyEntry(name ndn.Name) *StrategyChoiceEntry {
	node := sc.tree.FindLongestPrefixMatch(name, func(n *Node) bool { return n.strategyChoice != nil })
	if node == nil {
		return nil
	}
	return node.strategyChoice
}

// FindEffectiveStrategyForPit returns the entry governing a PIT entry's
// name.
func (sc *StrategyChoice) FindEffectiveStrategyForPit(e *PitEntry) *StrategyChoiceEntry {
	return sc.FindEffectiveStrategyEntry(e.Name())
}

// FindEffectiveStrategyForMeasurements returns the entry governing a
// Measurements entry's name.
func (sc *StrategyChoice) FindEffectiveStrategyForMeasurements(e *MeasurementsEntry) *StrategyChoiceEntry {
	return sc.FindEffectiveStrategyEntry(e.Name())
}

// Enumerate calls fn for every StrategyChoice entry.
func (sc *StrategyChoice) Enumerate(fn func(*StrategyChoiceEntry)) {
	sc.tree.Enumerate(func(n *Node) {
		if n.strategyChoice != nil {
			fn(n.strategyChoice)
		}
	})
}
