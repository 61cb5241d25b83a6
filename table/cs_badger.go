package table

import (
	"bytes"
	"encoding/gob"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/ndn-go/fw/ndn"
)

// diskRecord is the stored form of one spilled CS entry.
type diskRecord struct {
	Data       *ndn.Data
	StaleUntil time.Time
}

// BadgerStore is the disk-backed overflow tier of the content store: the
// in-memory CS spills evicted entries here and Find falls through to it on
// a miss (spec.md §4.4's disk-capable lookup). Entries live until badger's
// TTL reaps them; the in-memory tables stay the source of truth and this
// tier is only a cache, never persistence (spec.md §1 Non-goals).
type BadgerStore struct {
	db  *badger.DB
	ttl time.Duration
}

// DefaultBadgerTTL bounds how long a spilled entry may linger on disk.
const DefaultBadgerTTL = 1 * time.Hour

// NewBadgerStore opens (or creates) the store at dir. An empty dir opens
// an in-memory badger instance, which tests use.
func NewBadgerStore(dir string, ttl time.Duration) (*BadgerStore, error) {
	if ttl <= 0 {
		ttl = DefaultBadgerTTL
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &BadgerStore{db: db, ttl: ttl}, nil
}

// Close releases the underlying database.
func (s *BadgerStore) Close() error { return s.db.Close() }

func diskKey(name ndn.Name) []byte { return []byte(name.String()) }

// Put implements OverflowStore.
func (s *BadgerStore) Put(data *ndn.Data, staleUntil time.Time) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(diskRecord{Data: data, StaleUntil: staleUntil}); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		e := badger.NewEntry(diskKey(data.Name), buf.Bytes()).WithTTL(s.ttl)
		return txn.SetEntry(e)
	})
}

// Get implements OverflowStore: exact full-name lookup only; prefix
// matching stays an in-memory concern.
func (s *BadgerStore) Get(name ndn.Name) (*ndn.Data, time.Time, bool) {
	var rec diskRecord
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(diskKey(name))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return gob.NewDecoder(bytes.NewReader(val)).Decode(&rec)
		})
	})
	if err != nil {
		return nil, time.Time{}, false
	}
	return rec.Data, rec.StaleUntil, true
}

// Erase implements OverflowStore.
func (s *BadgerStore) Erase(name ndn.Name) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(diskKey(name))
	})
}
