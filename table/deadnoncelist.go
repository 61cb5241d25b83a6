package table

import (
	"encoding/binary"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/ndn-go/fw/ndn"
)

// DefaultDeadNonceListLifetime is the minimum time a fingerprint must
// remain in the list (spec.md §3/§8).
const DefaultDeadNonceListLifetime = 6 * time.Second

type dnlEntry struct {
	fingerprint uint64
	insertedAt  time.Time
}

// DeadNonceList is a bounded, self-tuning set of recently seen (name,
// nonce) fingerprints used by the incoming-interest pipeline to detect
// loops after the originating PIT out-record has already been retired
// (spec.md §3/§4.9.1).
//
// Capacity adapts to the observed insertion rate: it is recomputed as
// rate * MinLifetime * safetyFactor, so the list holds roughly one
// lifetime's worth of fingerprints at the current arrival rate rather than
// a fixed count (spec.md §3: "bounded capacity (self-tuning per arrival
// rate)").
type DeadNonceList struct {
	MinLifetime time.Duration

	set      map[uint64]struct{}
	order    []dnlEntry
	capacity int

	windowStart time.Time
	windowCount int
}

const dnlRateWindow = 1 * time.Second
const dnlSafetyFactor = 2
const dnlMinCapacity = 64

// NewDeadNonceList constructs a DeadNonceList with the given minimum
// lifetime (<=0 uses the default).
func NewDeadNonceList(minLifetime time.Duration) *DeadNonceList {
	if minLifetime <= 0 {
		minLifetime = DefaultDeadNonceListLifetime
	}
	return &DeadNonceList{
		MinLifetime: minLifetime,
		set:         make(map[uint64]struct{}),
		capacity:    dnlMinCapacity,
	}
}

func fingerprint(name ndn.Name, nonce ndn.Nonce) uint64 {
	h := xxhash.New()
	h.Write([]byte(name.String()))
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], uint32(nonce))
	h.Write(buf[:])
	return h.Sum64()
}

// Has reports whether (name, nonce) was recently added.
func (d *DeadNonceList) Has(name ndn.Name, nonce ndn.Nonce) bool {
	_, ok := d.set[fingerprint(name, nonce)]
	return ok
}

// Add records (name, nonce), evicting the oldest entries past MinLifetime
// once over capacity, and retunes capacity to the current arrival rate.
func (d *DeadNonceList) Add(name ndn.Name, nonce ndn.Nonce, now time.Time) {
	d.tuneCapacity(now)

	fp := fingerprint(name, nonce)
	if _, exists := d.set[fp]; exists {
		return
	}
	d.set[fp] = struct{}{}
	d.order = append(d.order, dnlEntry{fingerprint: fp, insertedAt: now})
	d.evictOverCapacity(now)
}

func (d *DeadNonceList) tuneCapacity(now time.Time) {
	if d.windowStart.IsZero() {
		d.windowStart = now
	}
	d.windowCount++
	if elapsed := now.Sub(d.windowStart); elapsed >= dnlRateWindow {
		ratePerSec := float64(d.windowCount) / elapsed.Seconds()
		cap := int(ratePerSec * d.MinLifetime.Seconds() * dnlSafetyFactor)
		if cap < dnlMinCapacity {
			cap = dnlMinCapacity
		}
		d.capacity = cap
		d.windowStart = now
		d.windowCount = 0
	}
}

// evictOverCapacity drops the oldest entries once the list exceeds
// capacity, but never an entry younger than MinLifetime (spec.md §8: "it
// remains present for >= minLifetime").
func (d *DeadNonceList) evictOverCapacity(now time.Time) {
	for len(d.order) > d.capacity {
		oldest := d.order[0]
		if now.Sub(oldest.insertedAt) < d.MinLifetime {
			break
		}
		delete(d.set, oldest.fingerprint)
		d.order = d.order[1:]
	}
}

// Len returns the current number of entries.
func (d *DeadNonceList) Len() int { return len(d.order) }
