package cache

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

type memoryEntry struct {
	value   []byte
	expires time.Time
}

// Memory is an in-process LRU cache.
type Memory struct {
	Stats

	lru *lru.Cache
	ttl time.Duration
	now func() time.Time
}

// NewMemory creates an LRU cache holding at most maxEntries values.
func NewMemory(maxEntries int, ttl time.Duration) (*Memory, error) {
	c, err := lru.New(maxEntries)
	if err != nil {
		return nil, fmt.Errorf("create memory cache: %w", err)
	}
	return &Memory{lru: c, ttl: ttl, now: time.Now}, nil
}

// Get returns a copy of the stored value. Expired entries are dropped.
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := m.lru.Get(key)
	if !ok {
		m.record(false)
		return nil, false, nil
	}
	e, _ := v.(memoryEntry)
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		m.lru.Remove(key)
		m.record(false)
		return nil, false, nil
	}
	m.record(true)
	return append([]byte(nil), e.value...), true, nil
}

// Set stores a copy of value.
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if m.ttl > 0 {
		e.expires = m.now().Add(m.ttl)
	}
	m.lru.Add(key, e)
	return nil
}

// Len returns the number of stored entries, including expired ones not yet
// evicted.
func (m *Memory) Len() int { return m.lru.Len() }

// Close empties the cache.
func (m *Memory) Close() error {
	m.lru.Purge()
	return nil
}
