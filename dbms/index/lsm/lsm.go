// Package lsm loads the dataset of an image into Pebble (CockroachDB's LSM
// storage engine) behind the common Reader interface, so lookups on the
// static tree can be benchmarked against it.
package lsm

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"
	"github.com/cockroachdb/pebble"

	"github.com/btree-query-bench/simplekv/dbms/index"
	"github.com/btree-query-bench/simplekv/dbms/layout"
)

// batchKeys is the number of keys committed per batch during Load.
const batchKeys = 1 << 14

type LSM struct {
	db *pebble.DB
}

var _ index.Reader = (*LSM)(nil)

// Open opens (or creates) a Pebble database at the given directory path.
func Open(dir string) (*LSM, error) {
	opts := &pebble.Options{
		MemTableSize: 16 << 20,
		// Keep 2 memtables so one can be flushed while the other is active.
		MemTableStopWritesThreshold: 4,
		L0CompactionThreshold:       4,
		L0StopWritesThreshold:       12,
	}

	db, err := pebble.Open(dir, opts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: open")
	}
	return &LSM{db: db}, nil
}

// Load writes every key of cfg's value log with the same rendered value the
// image stores, then flushes the memtable.
func Load(dir string, cfg layout.Config) (*LSM, error) {
	l, err := Open(dir)
	if err != nil {
		return nil, err
	}
	if err := l.load(cfg); err != nil {
		l.Close()
		return nil, err
	}
	return l, nil
}

func (l *LSM) load(cfg layout.Config) error {
	var rec [layout.RecordSize]byte
	b := l.db.NewBatch()
	for i := uint64(0); i < cfg.MaxKey; i += layout.LogCapacity {
		if err := (layout.LogRecord{First: i}).MarshalBlock(rec[:]); err != nil {
			return err
		}
		for j := uint64(0); j < layout.LogCapacity && i+j < cfg.MaxKey; j++ {
			slot := rec[j*layout.ValueSize : (j+1)*layout.ValueSize]
			if err := b.Set(encodeKey(i+j), layout.Value(slot), nil); err != nil {
				return errors.Wrap(err, "lsm: batch set")
			}
		}
		if b.Count() >= batchKeys {
			if err := b.Commit(pebble.NoSync); err != nil {
				return errors.Wrap(err, "lsm: commit")
			}
			b = l.db.NewBatch()
		}
	}
	if err := b.Commit(pebble.NoSync); err != nil {
		return errors.Wrap(err, "lsm: commit")
	}
	return errors.Wrap(l.db.Flush(), "lsm: flush")
}

// Close cleanly shuts down Pebble, flushing any in-memory state.
func (l *LSM) Close() error {
	return l.db.Close()
}

// Get retrieves the value for key.
func (l *LSM) Get(key uint64) ([]byte, bool, error) {
	val, closer, err := l.db.Get(encodeKey(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "lsm: get")
	}
	// val is only valid until closer.Close(), so we copy it.
	result := make([]byte, len(val))
	copy(result, val)
	closer.Close()
	return result, true, nil
}

// Range returns an iterator over all keys in [start, end] inclusive.
func (l *LSM) Range(start, end uint64) (index.Iterator, error) {
	iterOpts := &pebble.IterOptions{
		LowerBound: encodeKey(start),
	}
	if end < ^uint64(0) {
		iterOpts.UpperBound = encodeKey(end + 1)
	}
	iter, err := l.db.NewIter(iterOpts)
	if err != nil {
		return nil, errors.Wrap(err, "lsm: range")
	}
	iter.First()
	return &rangeIterator{iter: iter, first: true}, nil
}

// encodeKey encodes a key as a big-endian 8-byte slice.
// Big-endian preserves sort order, which Pebble (and all LSM trees) rely on.
func encodeKey(k uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, k)
	return b
}

// ─── Range Iterator ───────────────────────────────────────────────────────────

type rangeIterator struct {
	iter  *pebble.Iterator
	first bool
	key   uint64
	val   []byte
	err   error
}

func (it *rangeIterator) Next() bool {
	var valid bool
	if it.first {
		// iter.First() was already called in Range(); just check validity.
		it.first = false
		valid = it.iter.Valid()
	} else {
		valid = it.iter.Next()
	}
	if !valid {
		return false
	}
	k := it.iter.Key()
	if len(k) != 8 {
		it.err = errors.Newf("lsm: unexpected key length %d", len(k))
		return false
	}
	it.key = binary.BigEndian.Uint64(k)
	// Pebble reuses the value buffer on Next.
	v := it.iter.Value()
	it.val = make([]byte, len(v))
	copy(it.val, v)
	return true
}

func (it *rangeIterator) Key() uint64   { return it.key }
func (it *rangeIterator) Value() []byte { return it.val }
func (it *rangeIterator) Error() error  { return it.err }
func (it *rangeIterator) Close() error  { return it.iter.Close() }
