package table

import (
	"testing"
	"time"

	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCsInsertAndFindHit(t *testing.T) {
	cs := NewCs(NewNameTree(), 10)
	now := time.Now()
	data := &ndn.Data{Name: ndn.NameFromString("/A"), FreshnessPeriod: time.Second}
	cs.Insert(data, false, now)

	var hit *CsEntry
	cs.Find(ndn.NameFromString("/A"), false, false, now, func(e *CsEntry) { hit = e }, func() { t.Fatal("expected hit") })
	require.NotNil(t, hit)
	assert.Equal(t, data, hit.Data)
}

func TestCsMustBeFreshExcludesStaleEntry(t *testing.T) {
	cs := NewCs(NewNameTree(), 10)
	now := time.Now()
	data := &ndn.Data{Name: ndn.NameFromString("/A"), FreshnessPeriod: time.Millisecond}
	cs.Insert(data, false, now)

	missed := false
	cs.Find(ndn.NameFromString("/A"), false, true, now.Add(time.Second), func(e *CsEntry) { t.Fatal("should miss") }, func() { missed = true })
	assert.True(t, missed)
}

func TestCsStaleEntriesEvictBeforeFreshOnes(t *testing.T) {
	cs := NewCs(NewNameTree(), 2)
	now := time.Now()

	stale := &ndn.Data{Name: ndn.NameFromString("/stale"), FreshnessPeriod: 0}
	fresh := &ndn.Data{Name: ndn.NameFromString("/fresh"), FreshnessPeriod: time.Hour}
	cs.Insert(stale, false, now)
	cs.Insert(fresh, false, now.Add(time.Millisecond))

	// Both entries are stale-eligible at insert time check: make "stale"
	// actually stale relative to the eviction instant.
	evictAt := now.Add(time.Second)
	newer := &ndn.Data{Name: ndn.NameFromString("/newer"), FreshnessPeriod: time.Hour}
	cs.Insert(newer, false, evictAt) // forces eviction since capacity=2

	assert.Equal(t, 2, cs.Size())
	var evictedStale bool
	cs.Find(ndn.NameFromString("/stale"), false, false, evictAt, func(e *CsEntry) {}, func() { evictedStale = true })
	assert.True(t, evictedStale, "the already-stale entry should have been evicted first")

	var freshStillThere bool
	cs.Find(ndn.NameFromString("/fresh"), false, false, evictAt, func(e *CsEntry) { freshStillThere = true }, func() {})
	assert.True(t, freshStillThere)
}

func TestCsEraseRemovesEntry(t *testing.T) {
	cs := NewCs(NewNameTree(), 10)
	now := time.Now()
	data := &ndn.Data{Name: ndn.NameFromString("/A")}
	cs.Insert(data, false, now)
	cs.Erase(ndn.NameFromString("/A"))

	missed := false
	cs.Find(ndn.NameFromString("/A"), false, false, now, func(e *CsEntry) {}, func() { missed = true })
	assert.True(t, missed)
}
