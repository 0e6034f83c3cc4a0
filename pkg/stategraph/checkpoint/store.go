// Package checkpoint provides durable workflow state snapshots and a
// manager façade over pluggable storage backends.
package checkpoint

import (
	"context"
	"errors"
)

// Store persists checkpoints. Implementations must be safe for
// concurrent use; a durable backend supplies its own isolation
// guarantees.
type Store interface {
	// Save stores a checkpoint, overwriting any checkpoint with the
	// same ID.
	Save(ctx context.Context, cp *Checkpoint) error

	// Load retrieves a checkpoint by ID.
	// Returns ErrNotFound if the checkpoint doesn't exist.
	Load(ctx context.Context, id string) (*Checkpoint, error)

	// List returns all checkpoints for a workflow, most recent first.
	// Returns an empty slice (not an error) if the workflow has none.
	List(ctx context.Context, workflowID string) ([]*Checkpoint, error)

	// Delete removes a checkpoint. Absence is not an error.
	Delete(ctx context.Context, id string) error

	// DeleteWorkflow removes every checkpoint belonging to a workflow.
	// Absence is not an error.
	DeleteWorkflow(ctx context.Context, workflowID string) error

	// Close releases any resources (connections, files).
	Close() error
}

// Sentinel errors for checkpoint storage.
var (
	// ErrNotFound indicates a checkpoint doesn't exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("checkpoint store closed")
)
