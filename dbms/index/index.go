// Package index holds the read interface shared by the static image reader
// and the pebble comparison store.
package index

// Reader is a read-only key-value index.
type Reader interface {
	Get(key uint64) ([]byte, bool, error)
	Range(start, end uint64) (Iterator, error)
	Close() error
}

// Iterator allows scanning over a range of key-value pairs.
type Iterator interface {
	Next() bool
	Key() uint64
	Value() []byte
	Error() error
	Close() error
}
