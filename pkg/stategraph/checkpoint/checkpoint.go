package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Checkpoint is a resumable snapshot of a workflow's state at a node.
// Checkpoints are created explicitly by caller code, typically from
// inside a node handler, and retained until deleted individually or
// cleaned up by workflow ID.
type Checkpoint struct {
	ID         string          `json:"id"`
	WorkflowID string          `json:"workflow_id"`
	NodeID     string          `json:"node_id"`
	State      json.RawMessage `json:"state"`
	Timestamp  time.Time       `json:"timestamp"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

// Marshal serializes a checkpoint to JSON.
func (c *Checkpoint) Marshal() ([]byte, error) {
	return json.Marshal(c)
}

// Unmarshal deserializes a checkpoint from JSON.
func Unmarshal(data []byte) (*Checkpoint, error) {
	var c Checkpoint
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// State decodes a checkpoint's state into the given type.
func State[S any](cp *Checkpoint) (S, error) {
	var s S
	if err := json.Unmarshal(cp.State, &s); err != nil {
		return s, fmt.Errorf("decode checkpoint state: %w", err)
	}
	return s, nil
}

// Manager wraps a Store with checkpoint lifecycle operations. The store
// is injected; use NewMemoryStore for the non-durable fallback or
// NewSQLiteStore for single-process durability.
//
// Storage errors propagate unchanged: the manager performs no retry and
// never falls back to a different store.
type Manager struct {
	store   Store
	logger  *slog.Logger
	metrics observability.MetricsRecorder
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger makes the manager log checkpoint saves and failures.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) {
		m.logger = logger
	}
}

// WithMetrics makes the manager record checkpoint sizes.
func WithMetrics(metrics observability.MetricsRecorder) ManagerOption {
	return func(m *Manager) {
		if metrics != nil {
			m.metrics = metrics
		}
	}
}

// NewManager creates a manager over the given store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	if store == nil {
		panic("checkpoint: store cannot be nil")
	}
	m := &Manager{
		store:   store,
		metrics: observability.NoopMetrics{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Create synthesizes a checkpoint for the workflow at the given node,
// stores it, and returns it. The state is JSON-serialized; the ID is a
// time-ordered UUID (time-based with a random suffix), unique enough
// for non-adversarial use but not cryptographically so.
func (m *Manager) Create(ctx context.Context, workflowID, nodeID string, state any, metadata map[string]any) (*Checkpoint, error) {
	raw, err := json.Marshal(state)
	if err != nil {
		observability.LogCheckpointError(m.logger, nodeID, "serialize", err)
		return nil, fmt.Errorf("serialize checkpoint state: %w", err)
	}

	cp := &Checkpoint{
		ID:         newID(),
		WorkflowID: workflowID,
		NodeID:     nodeID,
		State:      raw,
		Timestamp:  time.Now().UTC(),
		Metadata:   metadata,
	}

	if err := m.store.Save(ctx, cp); err != nil {
		observability.LogCheckpointError(m.logger, nodeID, "save", err)
		return nil, err
	}

	observability.LogCheckpoint(m.logger, nodeID, len(raw))
	m.metrics.RecordCheckpoint(ctx, nodeID, int64(len(raw)))
	return cp, nil
}

// Load returns the checkpoint with the given ID, or nil (with a nil
// error) when no such checkpoint exists.
func (m *Manager) Load(ctx context.Context, id string) (*Checkpoint, error) {
	cp, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return cp, err
}

// List returns all checkpoints for a workflow, most recent first.
func (m *Manager) List(ctx context.Context, workflowID string) ([]*Checkpoint, error) {
	return m.store.List(ctx, workflowID)
}

// Latest returns the most recent checkpoint for a workflow, or nil
// (with a nil error) when the workflow has none.
func (m *Manager) Latest(ctx context.Context, workflowID string) (*Checkpoint, error) {
	cps, err := m.store.List(ctx, workflowID)
	if err != nil {
		return nil, err
	}
	if len(cps) == 0 {
		return nil, nil
	}
	return cps[0], nil
}

// Delete removes one checkpoint. Absence is not an error.
func (m *Manager) Delete(ctx context.Context, id string) error {
	return m.store.Delete(ctx, id)
}

// Cleanup removes every checkpoint belonging to a workflow, leaving
// other workflows untouched. Absence is not an error.
func (m *Manager) Cleanup(ctx context.Context, workflowID string) error {
	return m.store.DeleteWorkflow(ctx, workflowID)
}

// newID returns a time-ordered checkpoint ID. UUIDv7 embeds a unix
// timestamp followed by random bits, so IDs sort by creation time.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		// Entropy exhaustion only; fall back to a random UUID.
		return uuid.NewString()
	}
	return id.String()
}
