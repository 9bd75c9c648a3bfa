package kv

import "errors"

// ErrNotFound is returned by Get when a key has no value.
var ErrNotFound = errors.New("kv: key not found")

// Store is a durable key-value capability with last-write-wins semantics.
// It provides no transactions and no secondary indexing; callers layer
// their own keyspaces on top of it.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(key []byte) ([]byte, error)

	// Put inserts or overwrites the value stored under key.
	Put(key, value []byte) error

	// List returns every key/value pair whose key starts with prefix.
	// Ordering follows the underlying store's byte order.
	List(prefix []byte) ([]Pair, error)

	// Close releases the underlying resources.
	Close() error
}

// Pair is a single key/value entry returned by List.
type Pair struct {
	Key   []byte
	Value []byte
}
