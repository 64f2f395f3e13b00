package store

import (
	"context"
	"sort"
	"sync"
)

// MemStore is an in-memory Store. It keeps documents in their encoded form
// so tests cover the same codec path the SQLite store does.
type MemStore struct {
	mu   sync.Mutex
	docs map[string]string
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{docs: make(map[string]string)}
}

func (m *MemStore) Get(ctx context.Context, name string) (*Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.docs[name]
	if !ok {
		return NewDocument(), nil
	}
	return Decode(body), nil
}

func (m *MemStore) Put(ctx context.Context, name string, doc *Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[name] = Encode(doc)
	return nil
}

func (m *MemStore) Remove(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, name)
	return nil
}

func (m *MemStore) List(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.docs))
	for name := range m.docs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *MemStore) Close() error { return nil }
