package checkpoint

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore is an in-memory checkpoint store: a single ID-to-checkpoint
// map guarded by a mutex. It is the non-durable fallback; data is lost
// when the process exits. Construct one explicitly with NewMemoryStore
// and inject it; there is no implicit global store.
type MemoryStore struct {
	mu     sync.RWMutex
	data   map[string]*Checkpoint
	closed bool
}

// NewMemoryStore creates a new in-memory checkpoint store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*Checkpoint),
	}
}

// Save implements Store.
func (m *MemoryStore) Save(_ context.Context, cp *Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	m.data[cp.ID] = clone(cp)
	return nil
}

// Load implements Store.
func (m *MemoryStore) Load(_ context.Context, id string) (*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	cp, ok := m.data[id]
	if !ok {
		return nil, ErrNotFound
	}
	return clone(cp), nil
}

// List implements Store. Checkpoints come back most recent first, with
// the time-ordered ID as tie-breaker for equal timestamps.
func (m *MemoryStore) List(_ context.Context, workflowID string) ([]*Checkpoint, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, ErrStoreClosed
	}

	var cps []*Checkpoint
	for _, cp := range m.data {
		if cp.WorkflowID == workflowID {
			cps = append(cps, clone(cp))
		}
	}

	sort.Slice(cps, func(i, j int) bool {
		if !cps[i].Timestamp.Equal(cps[j].Timestamp) {
			return cps[i].Timestamp.After(cps[j].Timestamp)
		}
		return cps[i].ID > cps[j].ID
	})

	return cps, nil
}

// Delete implements Store.
func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	delete(m.data, id)
	return nil
}

// DeleteWorkflow implements Store.
func (m *MemoryStore) DeleteWorkflow(_ context.Context, workflowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return ErrStoreClosed
	}

	for id, cp := range m.data {
		if cp.WorkflowID == workflowID {
			delete(m.data, id)
		}
	}
	return nil
}

// Close implements Store.
func (m *MemoryStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.data = nil
	return nil
}

// Len returns the number of stored checkpoints across all workflows.
// Useful for testing.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// clone copies a checkpoint so neither side can mutate the other's
// state bytes or metadata.
func clone(cp *Checkpoint) *Checkpoint {
	out := *cp
	if cp.State != nil {
		out.State = append([]byte(nil), cp.State...)
	}
	if cp.Metadata != nil {
		out.Metadata = make(map[string]any, len(cp.Metadata))
		for k, v := range cp.Metadata {
			out.Metadata[k] = v
		}
	}
	return &out
}
