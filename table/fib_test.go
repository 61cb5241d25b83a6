package table

import (
	"testing"

	"github.com/ndn-go/fw/defn"
	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFibAddOrUpdateNextHopIsIdempotentOnFace(t *testing.T) {
	fib := NewFib(NewNameTree())
	name := ndn.NameFromString("/A")

	entry := fib.AddOrUpdateNextHop(name, defn.FaceId(1), 10)
	require.Len(t, entry.NextHops(), 1)

	entry = fib.AddOrUpdateNextHop(name, defn.FaceId(1), 20)
	require.Len(t, entry.NextHops(), 1)
	assert.Equal(t, uint64(20), entry.NextHops()[0].Cost)
}

func TestFibNextHopsSortedByCost(t *testing.T) {
	fib := NewFib(NewNameTree())
	name := ndn.NameFromString("/A")

	fib.AddOrUpdateNextHop(name, defn.FaceId(2), 50)
	entry := fib.AddOrUpdateNextHop(name, defn.FaceId(1), 10)

	hops := entry.NextHops()
	require.Len(t, hops, 2)
	assert.Equal(t, defn.FaceId(1), hops[0].Face)
	assert.Equal(t, defn.FaceId(2), hops[1].Face)
}

func TestFibAfterNewNextHopFiresOnlyOnCreate(t *testing.T) {
	fib := NewFib(NewNameTree())
	name := ndn.NameFromString("/A")

	var fired int
	fib.OnAfterNewNextHop(func(prefix ndn.Name, nh NextHop) { fired++ })

	fib.AddOrUpdateNextHop(name, defn.FaceId(1), 10)
	assert.Equal(t, 1, fired)

	fib.AddOrUpdateNextHop(name, defn.FaceId(1), 99) // cost update only
	assert.Equal(t, 1, fired)

	fib.AddOrUpdateNextHop(name, defn.FaceId(2), 10) // new face
	assert.Equal(t, 2, fired)
}

func TestFibRemoveNextHopErasesEntryWhenLast(t *testing.T) {
	fib := NewFib(NewNameTree())
	name := ndn.NameFromString("/A")

	fib.AddOrUpdateNextHop(name, defn.FaceId(1), 10)
	fib.RemoveNextHop(name, defn.FaceId(1))

	assert.Nil(t, fib.FindLongestPrefixMatch(name))
}

func TestFibFindLongestPrefixMatch(t *testing.T) {
	fib := NewFib(NewNameTree())
	fib.AddOrUpdateNextHop(ndn.NameFromString("/A"), defn.FaceId(1), 10)

	entry := fib.FindLongestPrefixMatch(ndn.NameFromString("/A/B/C"))
	require.NotNil(t, entry)
	assert.True(t, entry.Name().Equal(ndn.NameFromString("/A")))
}
