package table

import (
	"testing"
	"time"

	"github.com/ndn-go/fw/ndn"
	"github.com/stretchr/testify/assert"
)

func TestDeadNonceListHasAfterAdd(t *testing.T) {
	d := NewDeadNonceList(time.Second)
	name := ndn.NameFromString("/A")
	now := time.Now()

	assert.False(t, d.Has(name, 1))
	d.Add(name, 1, now)
	assert.True(t, d.Has(name, 1))
	assert.False(t, d.Has(name, 2), "a different nonce is a different fingerprint")
}

func TestDeadNonceListAddIsIdempotent(t *testing.T) {
	d := NewDeadNonceList(time.Second)
	name := ndn.NameFromString("/A")
	now := time.Now()

	d.Add(name, 1, now)
	d.Add(name, 1, now.Add(time.Millisecond))
	assert.Equal(t, 1, d.Len())
}

func TestDeadNonceListNeverEvictsBelowMinLifetime(t *testing.T) {
	d := NewDeadNonceList(time.Hour)
	// Force a tiny capacity by inserting far more than dnlMinCapacity within
	// a single rate window, without advancing past MinLifetime.
	now := time.Now()
	for i := 0; i < dnlMinCapacity+50; i++ {
		d.Add(ndn.NameFromString("/A"), ndn.Nonce(i), now)
	}
	assert.Equal(t, dnlMinCapacity+50, d.Len(), "entries younger than MinLifetime are never evicted")
}

func TestDeadNonceListEvictsOldestOnceOverCapacityAndPastMinLifetime(t *testing.T) {
	d := NewDeadNonceList(time.Millisecond)
	start := time.Now()
	for i := 0; i < dnlMinCapacity+10; i++ {
		d.Add(ndn.NameFromString("/A"), ndn.Nonce(i), start)
	}
	// Advance well past MinLifetime and insert one more: the oldest entries
	// should now be eligible for eviction back down toward capacity.
	later := start.Add(time.Second)
	d.Add(ndn.NameFromString("/B"), ndn.Nonce(99999), later)

	assert.True(t, d.Len() <= dnlMinCapacity+11)
	assert.False(t, d.Has(ndn.NameFromString("/A"), 0), "the oldest fingerprint should have been evicted")
}
