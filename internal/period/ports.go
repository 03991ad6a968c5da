package period

import (
	"context"
	"sync"
)

// MemoryQuery is a QueryStringPort holding the query in memory, e.g. the
// query of a single HTTP request.
type MemoryQuery struct {
	mu sync.Mutex
	q  string
}

func NewMemoryQuery(q string) *MemoryQuery {
	return &MemoryQuery{q: q}
}

func (m *MemoryQuery) Query() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.q
}

func (m *MemoryQuery) SetQuery(q string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.q = q
	return nil
}

// MemoryStore is a process-local KeyValuePort.
type MemoryStore struct {
	mu     sync.Mutex
	values map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}
