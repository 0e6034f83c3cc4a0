package stategraph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph construction. All of them are configuration
// errors: they are recorded by the builder call that caused them and
// surface, joined, from Build().
var (
	// ErrDuplicateNode indicates AddNode was called twice with one name.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrUnknownNode indicates an edge endpoint, route target, or entry
	// point references a node that was never registered.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNilHandler indicates AddNode was called with a nil handler.
	ErrNilHandler = errors.New("node handler cannot be nil")

	// ErrEmptyNodeName indicates AddNode was called with an empty name.
	ErrEmptyNodeName = errors.New("node name cannot be empty")

	// ErrNilDecide indicates AddConditionalEdge was called with a nil
	// decide function.
	ErrNilDecide = errors.New("decide function cannot be nil")

	// ErrEmptyRoutes indicates AddConditionalEdge was called with no
	// routes.
	ErrEmptyRoutes = errors.New("conditional edge needs at least one route")

	// ErrNoEntryPoint indicates SetEntry was not called before Build.
	ErrNoEntryPoint = errors.New("entry point not set")

	// ErrCyclicGraph indicates the graph contains a structural cycle.
	// Every conditional route target counts as a possible successor, so
	// a cycle reachable through only one branch is still rejected.
	ErrCyclicGraph = errors.New("graph contains a cycle")
)

// Sentinel errors for execution.
var (
	// ErrNilContext indicates Execute was called with a nil context.
	ErrNilContext = errors.New("context cannot be nil")

	// ErrUnknownStartNode indicates WithStartAt named a node that does
	// not exist in the graph.
	ErrUnknownStartNode = errors.New("start node not found")

	// ErrNoCheckpoints indicates Resume found no checkpoint for the
	// workflow.
	ErrNoCheckpoints = errors.New("no checkpoints found for workflow")
)

// NodeError wraps a handler failure with node context.
type NodeError struct {
	// Node is the name of the node that failed.
	Node string
	// Op is the operation that failed ("execute" or "route").
	Op string
	// Err is the underlying error.
	Err error
}

// Error implements the error interface.
func (e *NodeError) Error() string {
	return fmt.Sprintf("node %s: %s: %v", e.Node, e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *NodeError) Unwrap() error {
	return e.Err
}

// PanicError captures a panic raised by a handler or decide function.
type PanicError struct {
	// Node is the name of the node whose handler panicked.
	Node string
	// Value is the value passed to panic().
	Value any
	// Stack is the stack trace at the point of panic.
	Stack string
}

// Error implements the error interface.
func (e *PanicError) Error() string {
	return fmt.Sprintf("node %s panicked: %v", e.Node, e.Value)
}

// CancellationError is recorded in a Failed result when the run context
// was cancelled before the next handler started.
type CancellationError struct {
	// Node is the node that was about to execute.
	Node string
	// Cause is context.Canceled or context.DeadlineExceeded.
	Cause error
}

// Error implements the error interface.
func (e *CancellationError) Error() string {
	return fmt.Sprintf("cancelled before node %s: %v", e.Node, e.Cause)
}

// Unwrap returns the cancellation cause for errors.Is/As support.
func (e *CancellationError) Unwrap() error {
	return e.Cause
}
