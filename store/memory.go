package store

import (
	"context"
	"sync"

	"github.com/stevemurr/simple-todo-server/model"
)

// MemoryStore keeps the collection in memory. Data is lost on restart.
// Safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	items []model.Item
}

func NewMemoryStore(seed ...model.Item) *MemoryStore {
	return &MemoryStore{items: cloneItems(seed)}
}

func (m *MemoryStore) ReadAll(_ context.Context) ([]model.Item, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return cloneItems(m.items), nil
}

func (m *MemoryStore) WriteAll(_ context.Context, items []model.Item) error {
	if err := checkWrite(items); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = cloneItems(items)
	return nil
}

func (m *MemoryStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = nil
	return nil
}

func (m *MemoryStore) Close() error { return nil }
