package table

import (
	"testing"
	"time"

	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPitInsertReturnsIsNewOnFirstMatch(t *testing.T) {
	pit := NewPit(NewNameTree())
	interest := &ndn.Interest{Name: ndn.NameFromString("/A/B"), Nonce: 1}

	_, isNew := pit.Insert(interest)
	assert.True(t, isNew)

	_, isNew = pit.Insert(interest)
	assert.False(t, isNew)
}

func TestPitDifferentSelectorsAreDifferentEntries(t *testing.T) {
	pit := NewPit(NewNameTree())
	name := ndn.NameFromString("/A/B")

	_, isNew1 := pit.Insert(&ndn.Interest{Name: name, MustBeFresh: true})
	_, isNew2 := pit.Insert(&ndn.Interest{Name: name, MustBeFresh: false})

	assert.True(t, isNew1)
	assert.True(t, isNew2)
}

func TestPitInRecordMergePolicy(t *testing.T) {
	pit := NewPit(NewNameTree())
	interest := &ndn.Interest{Name: ndn.NameFromString("/A"), Nonce: 1, InterestLifetime: time.Second}
	entry, _ := pit.Insert(interest)

	now := time.Now()
	entry.InsertOrUpdateInRecord(defn.FaceId(1), interest, now)
	require.Len(t, entry.InRecords(), 1)

	interest2 := &ndn.Interest{Name: ndn.NameFromString("/A"), Nonce: 2, InterestLifetime: time.Second}
	rec := entry.InsertOrUpdateInRecord(defn.FaceId(1), interest2, now.Add(time.Millisecond))
	require.Len(t, entry.InRecords(), 1) // same face updates in place
	assert.Equal(t, ndn.Nonce(2), rec.LastNonce)
}

func TestPitDataMatchesExactAndPrefix(t *testing.T) {
	pit := NewPit(NewNameTree())
	exact, _ := pit.Insert(&ndn.Interest{Name: ndn.NameFromString("/A/B"), CanBePrefix: false})
	prefix, _ := pit.Insert(&ndn.Interest{Name: ndn.NameFromString("/A"), CanBePrefix: true})

	data := &ndn.Data{Name: ndn.NameFromString("/A/B")}
	matches := pit.DataMatches(data)

	found := map[*PitEntry]bool{}
	for _, m := range matches {
		found[m] = true
	}
	assert.True(t, found[exact])
	assert.True(t, found[prefix])
}

func TestPitDataDoesNotMatchNonPrefixShorterEntry(t *testing.T) {
	pit := NewPit(NewNameTree())
	pit.Insert(&ndn.Interest{Name: ndn.NameFromString("/A"), CanBePrefix: false})

	data := &ndn.Data{Name: ndn.NameFromString("/A/B")}
	matches := pit.DataMatches(data)
	assert.Empty(t, matches)
}

func TestPitEraseReclaimsNode(t *testing.T) {
	nt := NewNameTree()
	pit := NewPit(nt)
	entry, _ := pit.Insert(&ndn.Interest{Name: ndn.NameFromString("/A/B")})
	pit.Erase(entry)

	assert.Nil(t, nt.FindExactMatch(ndn.NameFromString("/A/B")))
}
