package fingerprint

import (
	"encoding/json"
	"sync"
)

// Map is a concurrency-safe generic key-value map used for in-memory pass
// state, with JSON round-tripping for callers that persist it.
type Map[K comparable, V any] struct {
	data map[K]*V
	sync.RWMutex
}

// NewMap creates an empty Map.
func NewMap[K comparable, V any]() *Map[K, V] {
	return &Map[K, V]{
		data: make(map[K]*V),
	}
}

// Get returns the value for key, with an existence flag.
func (m *Map[K, V]) Get(key K) (*V, bool) {
	m.RLock()
	defer m.RUnlock()
	v, ok := m.data[key]
	return v, ok
}

// Set stores a value under key.
func (m *Map[K, V]) Set(key K, value *V) {
	m.Lock()
	defer m.Unlock()
	m.data[key] = value
}

// Size returns the number of entries.
func (m *Map[K, V]) Size() int {
	m.RLock()
	defer m.RUnlock()
	return len(m.data)
}

// Drain returns all keys and resets the map in one step, so entries added
// concurrently land in the next drain rather than being lost.
func (m *Map[K, V]) Drain() []K {
	m.Lock()
	defer m.Unlock()
	keys := make([]K, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	m.data = make(map[K]*V)
	return keys
}

// Data returns the content as JSON.
func (m *Map[K, V]) Data() ([]byte, error) {
	m.RLock()
	defer m.RUnlock()
	return json.Marshal(m.data)
}

// Load replaces the content from JSON data.
func (m *Map[K, V]) Load(data []byte) error {
	m.Lock()
	defer m.Unlock()
	return json.Unmarshal(data, &m.data)
}
