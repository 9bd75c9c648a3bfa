package kv

import (
	"bytes"
	"sort"
	"sync"
)

// Memory is an in-process Store used in tests and throwaway deployments.
type Memory struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string][]byte)}
}

// Get returns the value stored under key, or ErrNotFound.
func (m *Memory) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.data[string(key)]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), value...), nil
}

// Put inserts or overwrites the value stored under key.
func (m *Memory) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = append([]byte(nil), value...)
	return nil
}

// List returns every key/value pair under prefix in byte order.
func (m *Memory) List(prefix []byte) ([]Pair, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var pairs []Pair
	for k, v := range m.data {
		if bytes.HasPrefix([]byte(k), prefix) {
			pairs = append(pairs, Pair{
				Key:   []byte(k),
				Value: append([]byte(nil), v...),
			})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return bytes.Compare(pairs[i].Key, pairs[j].Key) < 0
	})
	return pairs, nil
}

// Close satisfies Store; nothing to release.
func (m *Memory) Close() error {
	return nil
}
