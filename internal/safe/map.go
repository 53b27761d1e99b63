package safe

import (
	"sort"
	"sync"
)

// Map is a concurrency safe map keyed by name. The zero value is ready to use.
type Map[T any] struct {
	mu   sync.RWMutex
	data map[string]T
}

// Lookup returns the entry and whether it exists
func (m *Map[T]) Lookup(key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

func (m *Map[T]) Exists(key string) bool {
	_, ok := m.Lookup(key)
	return ok
}

// Set adds or replaces the entry
func (m *Map[T]) Set(key string, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data == nil {
		m.data = map[string]T{}
	}
	m.data[key] = value
}

func (m *Map[T]) Del(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
}

// Keys returns the keys in sorted order
func (m *Map[T]) Keys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
