package kv

import (
	"errors"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is a persistent Store backed by a LevelDB database on disk.
type LevelDB struct {
	db *leveldb.DB
}

// NewLevelDB creates or opens a LevelDB database at the given path.
func NewLevelDB(path string) (*LevelDB, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("open leveldb: %w", err)
	}
	return &LevelDB{db: db}, nil
}

// Get returns the value stored under key, or ErrNotFound.
func (l *LevelDB) Get(key []byte) ([]byte, error) {
	value, err := l.db.Get(key, nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

// Put inserts or overwrites the value stored under key.
func (l *LevelDB) Put(key, value []byte) error {
	return l.db.Put(key, value, nil)
}

// List returns every key/value pair under prefix in byte order.
func (l *LevelDB) List(prefix []byte) ([]Pair, error) {
	iter := l.db.NewIterator(util.BytesPrefix(prefix), nil)
	defer iter.Release()

	var pairs []Pair
	for iter.Next() {
		// Iterator buffers are reused between Next calls.
		key := append([]byte(nil), iter.Key()...)
		value := append([]byte(nil), iter.Value()...)
		pairs = append(pairs, Pair{Key: key, Value: value})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return pairs, nil
}

// Close closes the database.
func (l *LevelDB) Close() error {
	return l.db.Close()
}
