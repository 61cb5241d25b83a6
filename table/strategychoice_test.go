package table

import (
	"testing"

	"github.com/ndn-go/fw/internal/scratch"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pInfo and qInfo stand in for two different strategies' scratch types, as
// named in spec.md §8 scenario 5.
type pInfo struct{ touched bool }
type qInfo struct{ touched bool }

func touchWithP(m *Measurements, name ndn.Name) {
	e := m.GetOrInsert(name)
	scratch.Insert(e.Info(), pInfo{touched: true})
}

func hasP(m *Measurements, name ndn.Name) bool {
	e := m.Get(name)
	if e == nil {
		return false
	}
	_, ok := scratch.Get[pInfo](e.Info())
	return ok
}

// TestStrategyChangeClearsScratchOnlyUnderItsBoundary reproduces spec.md
// §8 scenario 5: installing strategy Q at /A must clear P-info scratch at
// /A and /A/C (which inherit from /A), but leave it intact at / and at
// /A/B, which has its own independent StrategyChoice entry.
func TestStrategyChangeClearsScratchOnlyUnderItsBoundary(t *testing.T) {
	nt := NewNameTree()
	m := NewMeasurements(nt)
	sc := NewStrategyChoice(nt, m)

	pName := ndn.StrategyName{Name: ndn.NameFromString("/strategy/p/1")}
	qName := ndn.StrategyName{Name: ndn.NameFromString("/strategy/q/1")}

	sc.Insert(ndn.Name{}, pName, "P-instance")

	for _, n := range []ndn.Name{
		ndn.NameFromString(""),
		ndn.NameFromString("/A"),
		ndn.NameFromString("/A/B"),
		ndn.NameFromString("/A/C"),
	} {
		touchWithP(m, n)
	}

	sc.Insert(ndn.NameFromString("/A/B"), pName, "P-instance-2")
	assert.True(t, hasP(m, ndn.NameFromString("")))
	assert.True(t, hasP(m, ndn.NameFromString("/A")))
	assert.True(t, hasP(m, ndn.NameFromString("/A/B")))
	assert.True(t, hasP(m, ndn.NameFromString("/A/C")))

	sc.Insert(ndn.NameFromString("/A"), qName, "Q-instance")

	assert.True(t, hasP(m, ndn.NameFromString("")), "root unaffected by a change scoped under /A")
	assert.False(t, hasP(m, ndn.NameFromString("/A")), "/A itself switched to Q")
	assert.True(t, hasP(m, ndn.NameFromString("/A/B")), "/A/B has its own entry, still P")
	assert.False(t, hasP(m, ndn.NameFromString("/A/C")), "/A/C inherits /A, now Q")
}

func TestStrategyChoiceFindEffectiveStrategy(t *testing.T) {
	nt := NewNameTree()
	sc := NewStrategyChoice(nt, nil)

	rootName := ndn.StrategyName{Name: ndn.NameFromString("/strategy/best-route/1")}
	sc.Insert(ndn.Name{}, rootName, "root")

	abName := ndn.StrategyName{Name: ndn.NameFromString("/strategy/multicast/1")}
	sc.Insert(ndn.NameFromString("/A/B"), abName, "ab")

	entry := sc.FindEffectiveStrategyEntry(ndn.NameFromString("/A/B/C"))
	require.NotNil(t, entry)
	assert.Equal(t, "ab", entry.Instance)

	entry = sc.FindEffectiveStrategyEntry(ndn.NameFromString("/A"))
	require.NotNil(t, entry)
	assert.Equal(t, "root", entry.Instance)
}

func TestStrategyChoiceUnsetRootRejected(t *testing.T) {
	sc := NewStrategyChoice(NewNameTree(), nil)
	assert.False(t, sc.Unset(ndn.Name{}))
}
