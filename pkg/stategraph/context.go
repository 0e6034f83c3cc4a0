package stategraph

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
)

// Context provides execution context to node handlers. It extends
// context.Context with engine services and run metadata.
//
// Context is immutable after creation. The executor derives a context
// per node with the node name set and the logger enriched.
type Context interface {
	context.Context

	// Logger returns the configured logger, enriched with run and node
	// context during execution. Never nil; defaults to slog.Default().
	Logger() *slog.Logger

	// Checkpoints returns the checkpoint manager, or nil if none was
	// configured. Handlers checkpoint at their own discretion; the
	// executor never calls it.
	Checkpoints() *checkpoint.Manager

	// RunID returns the unique identifier for this execution run.
	// Auto-generated if not configured.
	RunID() string

	// Node returns the name of the node currently executing.
	// Empty before execution starts.
	Node() string
}

// executionContext is the internal implementation of Context.
type executionContext struct {
	context.Context

	logger      *slog.Logger
	checkpoints *checkpoint.Manager
	runID       string
	node        string
}

// Logger returns the configured logger.
func (c *executionContext) Logger() *slog.Logger {
	return c.logger
}

// Checkpoints returns the checkpoint manager.
func (c *executionContext) Checkpoints() *checkpoint.Manager {
	return c.checkpoints
}

// RunID returns the run identifier.
func (c *executionContext) RunID() string {
	return c.runID
}

// Node returns the current node name.
func (c *executionContext) Node() string {
	return c.node
}

// ContextOption configures a Context.
type ContextOption func(*executionContext)

// WithLogger sets the logger for the context. The executor enriches it
// with run_id and node during execution.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(c *executionContext) {
		c.logger = logger
	}
}

// WithCheckpoints makes a checkpoint manager available to handlers via
// Context.Checkpoints.
func WithCheckpoints(mgr *checkpoint.Manager) ContextOption {
	return func(c *executionContext) {
		c.checkpoints = mgr
	}
}

// WithRunID sets the run identifier. A UUID is auto-generated when not
// set.
func WithRunID(id string) ContextOption {
	return func(c *executionContext) {
		c.runID = id
	}
}

// NewContext creates an execution context from a standard context.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background(),
//	    stategraph.WithLogger(myLogger),
//	    stategraph.WithRunID("run-123"))
func NewContext(ctx context.Context, opts ...ContextOption) Context {
	ec := &executionContext{
		Context: ctx,
		logger:  slog.Default(),
		runID:   uuid.New().String(),
	}

	for _, opt := range opts {
		opt(ec)
	}

	return ec
}

// withNode returns a derived context with the node name set and the
// logger enriched. Used internally by the executor.
func (c *executionContext) withNode(node string) *executionContext {
	return &executionContext{
		Context:     c.Context,
		logger:      observability.EnrichLogger(c.logger, c.runID, node),
		checkpoints: c.checkpoints,
		runID:       c.runID,
		node:        node,
	}
}
