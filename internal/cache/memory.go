package cache

import (
	"context"
	"sort"
	"sync"
)

type memoryEntry[T any] struct {
	Entry[T]
	seq uint64 // write order, breaks timestamp ties
}

// Memory is an in-process Cache backed by a mutex-guarded map.
type Memory[T any] struct {
	opts Options

	mu   sync.RWMutex
	data map[string]memoryEntry[T]
	seq  uint64
}

// NewMemory creates an in-memory cache.
func NewMemory[T any](opts Options) *Memory[T] {
	return &Memory[T]{
		opts: opts.withDefaults(),
		data: make(map[string]memoryEntry[T]),
	}
}

var _ Cache[int] = (*Memory[int])(nil)

// Get returns the value for key if it is younger than the TTL.
func (m *Memory[T]) Get(_ context.Context, key string) (T, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var zero T
	e, ok := m.data[key]
	if !ok || e.Age(m.opts.Now()) >= m.opts.TTL {
		return zero, false
	}
	return e.Value, true
}

// GetStale returns the entry for key regardless of age.
func (m *Memory[T]) GetStale(_ context.Context, key string) (Entry[T], bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	return e.Entry, ok
}

// Put stores value and evicts down to the newest Capacity entries.
func (m *Memory[T]) Put(_ context.Context, key string, value T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.seq++
	m.data[key] = memoryEntry[T]{
		Entry: Entry[T]{Value: value, StoredAt: m.opts.Now()},
		seq:   m.seq,
	}

	overflow := len(m.data) - m.opts.Capacity
	if overflow <= 0 {
		return
	}

	type keyed struct {
		key string
		seq uint64
	}
	order := make([]keyed, 0, len(m.data))
	for k, e := range m.data {
		order = append(order, keyed{key: k, seq: e.seq})
	}
	sort.Slice(order, func(i, j int) bool { return order[i].seq < order[j].seq })

	for _, k := range order[:overflow] {
		delete(m.data, k.key)
	}
}

// Len returns the number of stored entries.
func (m *Memory[T]) Len(_ context.Context) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
