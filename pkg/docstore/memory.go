package docstore

import (
	"context"
	"fmt"
	"sync"
)

// Memory is an in-process Store. A single mutex serializes transactions, so
// concurrent RunTransaction calls on the same key observe each other's
// committed writes, which is the property the reservation guard depends on.
type Memory struct {
	mu          sync.Mutex
	collections map[string]map[string]Document
}

// NewMemory creates an empty in-memory document store.
func NewMemory() *Memory {
	return &Memory{collections: make(map[string]map[string]Document)}
}

func (m *Memory) get(collection, id string) (Document, error) {
	docs, ok := m.collections[collection]
	if !ok {
		return nil, ErrNotFound
	}
	doc, ok := docs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return CloneDocument(doc), nil
}

func (m *Memory) set(collection, id string, data Document, merge bool) {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]Document)
		m.collections[collection] = docs
	}
	if merge {
		if existing, ok := docs[id]; ok {
			merged := CloneDocument(existing)
			for k, v := range CloneDocument(data) {
				merged[k] = v
			}
			docs[id] = merged
			return
		}
	}
	docs[id] = CloneDocument(data)
}

// GetDocument implements Store.
func (m *Memory) GetDocument(_ context.Context, collection, id string) (Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.get(collection, id)
}

// SetDocument implements Store.
func (m *Memory) SetDocument(_ context.Context, collection, id string, data Document, merge bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.set(collection, id, data, merge)
	return nil
}

// DeleteDocument implements Store.
func (m *Memory) DeleteDocument(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if docs, ok := m.collections[collection]; ok {
		delete(docs, id)
	}
	return nil
}

type memoryTx struct {
	store  *Memory
	writes []func()
}

func (tx *memoryTx) Get(collection, id string) (Document, error) {
	return tx.store.get(collection, id)
}

func (tx *memoryTx) Set(collection, id string, data Document, merge bool) {
	data = CloneDocument(data)
	tx.writes = append(tx.writes, func() {
		tx.store.set(collection, id, data, merge)
	})
}

func (tx *memoryTx) Delete(collection, id string) {
	tx.writes = append(tx.writes, func() {
		if docs, ok := tx.store.collections[collection]; ok {
			delete(docs, id)
		}
	})
}

// RunTransaction implements Store. The transaction holds the store lock for
// its whole duration; reads see committed state, staged writes apply only
// when fn returns nil.
func (m *Memory) RunTransaction(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memoryTx{store: m}
	if err := fn(tx); err != nil {
		return fmt.Errorf("%w: %w", ErrTxAborted, err)
	}
	for _, apply := range tx.writes {
		apply()
	}
	return nil
}

// QueryWhere implements Store. Only equality is supported.
func (m *Memory) QueryWhere(_ context.Context, collection, field, op string, value any) ([]Entry, error) {
	if op != "==" {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedOperator, op)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Entry
	for id, doc := range m.collections[collection] {
		if doc[field] == value {
			out = append(out, Entry{ID: id, Doc: CloneDocument(doc)})
		}
	}
	return out, nil
}
