package cachestore

import (
	"context"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultMaxEntries bounds the memory store.
const DefaultMaxEntries = 4096

// Memory is a bounded in-process store. The least recently used entry is
// evicted once MaxEntries is reached, which also disposes of entries keyed
// to past days.
type Memory struct {
	cache *lru.Cache[string, string]
}

// NewMemory creates a memory store. maxEntries below one uses the default.
func NewMemory(maxEntries int) (*Memory, error) {
	if maxEntries < 1 {
		maxEntries = DefaultMaxEntries
	}
	cache, err := lru.New[string, string](maxEntries)
	if err != nil {
		return nil, err
	}
	return &Memory{cache: cache}, nil
}

// Get returns the value for key.
func (m *Memory) Get(_ context.Context, key string) (string, bool, error) {
	v, ok := m.cache.Get(key)
	return v, ok, nil
}

// Set stores value under key.
func (m *Memory) Set(_ context.Context, key, value string) error {
	m.cache.Add(key, value)
	return nil
}

// Remove deletes key.
func (m *Memory) Remove(_ context.Context, key string) error {
	m.cache.Remove(key)
	return nil
}

// Len returns the number of entries.
func (m *Memory) Len() int {
	return m.cache.Len()
}

// Close purges the store.
func (m *Memory) Close() error {
	m.cache.Purge()
	return nil
}

var _ Store = (*Memory)(nil)
