package table

import (
	"time"

	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
)

// DefaultMeasurementsLifetime is the lifetime by which strategies extend a
// Measurements entry each time they touch it (spec.md §3). The strategies
// pass no expiry timer to ExtendLifetime, so nothing erases an entry when
// its deadline passes; an entry stays until Erase is called.
const DefaultMeasurementsLifetime = 5 * time.Second

// MeasurementsEntry is per-prefix scratch state for strategies: a lifetime
// deadline plus typed scratch slots (spec.md §3).
type MeasurementsEntry struct {
	node        *Node
	expiry      time.Time
	expiryTimer EventCanceler
	info        scratch.Slots

	// effectiveStrategy records which StrategyChoice entry governed this
	// node the last time its scratch was touched, so a later strategy
	// change can detect it and clear stale scratch (spec.md §4.5).
	effectiveStrategy *StrategyChoiceEntry
}

// Name returns the entry's name.
func (e *MeasurementsEntry) Name() ndn.Name { return e.node.name }

// Info returns the entry's typed scratch slots.
func (e *MeasurementsEntry) Info() *scratch.Slots { return &e.info }

// Measurements is the Measurements table.
type Measurements struct {
	tree *NameTree
}

// NewMeasurements constructs a Measurements table anchored at tree.
func NewMeasurements(tree *NameTree) *Measurements {
	return &Measurements{tree: tree}
}

// GetOrInsert returns the Measurements entry at name, creating it (with no
// lifetime set) if absent.
func (m *Measurements) GetOrInsert(name ndn.Name) *MeasurementsEntry {
	node := m.tree.Lookup(name)
	if node.measurements == nil {
		node.measurements = &MeasurementsEntry{node: node}
	}
	return node.measurements
}

// Get returns the Measurements entry at name if one exists, without
// creating it.
func (m *Measurements) Get(name ndn.Name) *MeasurementsEntry {
	node := m.tree.FindExactMatch(name)
	if node == nil {
		return nil
	}
	return node.measurements
}

// FindLongestPrefixMatch returns the deepest existing Measurements entry
// that is a prefix of name.
func (m *Measurements) FindLongestPrefixMatch(name ndn.Name) *MeasurementsEntry {
	node := m.tree.FindLongestPrefixMatch(name, func(n *Node) bool { return n.measurements != nil })
	if node == nil {
		return nil
	}
	return node.measurements
}

// GetParent returns the Measurements entry for the immediate parent name of
// e, creating it if necessary. Per spec.md §9 (open question), the
// behavior of GetParent when a strategy-choice change happens concurrently
// with an iteration holding e is deliberately left undefined here too: this
// implementation does not special-case it, matching the source.
func (m *Measurements) GetParent(e *MeasurementsEntry) *MeasurementsEntry {
	if len(e.node.name) == 0 {
		return nil
	}
	return m.GetOrInsert(e.node.name[:len(e.node.name)-1])
}

// ExtendLifetime sets entry's expiry to at least now+d (never shrinks it),
// installing ev as the new expiry timer handle.
func (m *Measurements) ExtendLifetime(entry *MeasurementsEntry, now time.Time, d time.Duration, ev EventCanceler) {
	newExpiry := now.Add(d)
	if !entry.expiry.IsZero() && entry.expiry.After(newExpiry) {
		if ev != nil {
			ev.Close()
		}
		return
	}
	if entry.expiryTimer != nil {
		entry.expiryTimer.Close()
	}
	entry.expiry = newExpiry
	entry.expiryTimer = ev
}

// Erase removes entry from the table.
func (m *Measurements) Erase(entry *MeasurementsEntry) {
	if entry.expiryTimer != nil {
		entry.expiryTimer.Close()
	}
	node := entry.node
	node.measurements = nil
	m.tree.gc(node)
}

// Accessor restricts Measurements access to entries whose effective
// strategy instance is owner, mirroring the source's
// MeasurementsAccessor::filter (spec.md §9): a strategy may only read/write
// scratch on entries it is actually responsible for. One strategy instance
// may govern several prefixes, so ownership is by instance, not by
// StrategyChoice entry.
type Accessor struct {
	m     *Measurements
	sc    *StrategyChoice
	owner any
}

// NewAccessor builds an Accessor scoped to the strategy instance owner.
func NewAccessor(m *Measurements, sc *StrategyChoice, owner any) *Accessor {
	return &Accessor{m: m, sc: sc, owner: owner}
}

// Get returns the Measurements entry at name only if owner is still the
// effective strategy there; otherwise nil, per the filter semantics.
func (a *Accessor) Get(name ndn.Name) *MeasurementsEntry {
	entry := a.sc.FindEffectiveStrategyEntry(name)
	if entry == nil || entry.Instance != a.owner {
		return nil
	}
	return a.m.GetOrInsert(name)
}

// GetParent is the escape hatch the open question in spec.md §9 refers to:
// it does not re-check the filter, so it can return an entry belonging to
// a different effective strategy than owner if StrategyChoice changed
// since Get. Behavior here is exactly the source's: unchecked.
func (a *Accessor) GetParent(e *MeasurementsEntry) *MeasurementsEntry {
	return a.m.GetParent(e)
}
