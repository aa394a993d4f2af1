// Package keylock provides reader/writer locks keyed by string. Entries are dropped once
// nobody holds or waits for them, so the map only grows with in-flight keys.
package keylock

import "sync"

type entry struct {
	mu   sync.RWMutex
	refs int
}

// Map ...
type Map struct {
	mu      sync.Mutex
	entries map[string]*entry
}

// New ...
func New() *Map {
	return &Map{entries: map[string]*entry{}}
}

// Lock takes the exclusive lock for key and returns its release function.
func (m *Map) Lock(key string) func() {
	e := m.acquire(key)
	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		m.release(key, e)
	}
}

// RLock takes the shared lock for key and returns its release function.
func (m *Map) RLock(key string) func() {
	e := m.acquire(key)
	e.mu.RLock()
	return func() {
		e.mu.RUnlock()
		m.release(key, e)
	}
}

// Len returns the number of keys currently held or waited on.
func (m *Map) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Map) acquire(key string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		e = &entry{}
		m.entries[key] = e
	}
	e.refs++
	return e
}

func (m *Map) release(key string, e *entry) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.refs--
	if e.refs == 0 {
		delete(m.entries, key)
	}
}
