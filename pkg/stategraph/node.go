package stategraph

// NodeFunc is the signature for all node handlers.
// A handler receives the execution context and the current state, and
// returns the updated state (or the same state) and any error.
//
// State is passed by value. Handlers should modify and return a new
// state value, not rely on pointer mutation.
//
// Example:
//
//	func increment(ctx stategraph.Context, s Counter) (Counter, error) {
//	    s.Value++
//	    return s, nil
//	}
type NodeFunc[S any] func(ctx Context, state S) (S, error)

// DecideFunc selects a route key for a conditional edge based on state.
// The returned key is looked up in the edge's route table; a key with no
// matching route means the edge does not resolve and routing falls
// through to the next edge in insertion order.
type DecideFunc[S any] func(ctx Context, state S) string

// Status is the terminal status of a single Execute call.
type Status string

const (
	// StatusRunning is the transient status while the driver loop is
	// advancing. It never appears in a returned Result.
	StatusRunning Status = "running"

	// StatusCompleted means the run reached a node with no resolvable
	// outgoing edge.
	StatusCompleted Status = "completed"

	// StatusPartial means the run was halted by the step budget while a
	// next node had already resolved. Resume by re-executing with
	// WithStartAt(result.Next) and the returned FinalState.
	StatusPartial Status = "partial"

	// StatusFailed means a handler returned an error, panicked, or the
	// context was cancelled.
	StatusFailed Status = "failed"
)

// Result is the outcome of one Execute call. It is created fresh per
// call and never persisted by the engine.
//
// On failure, FinalState holds the state as it was before the failing
// handler ran, and Err holds the captured failure. Execution errors are
// returned as data here rather than as a Go error so callers can inspect
// Executed and FinalState at the point of failure.
type Result[S any] struct {
	Status     Status
	FinalState S

	// Executed lists node names in execution order. A node that failed
	// is included.
	Executed []string

	// Next is the node that had resolved when the step budget halted the
	// run. Set only when Status is StatusPartial; the engine itself does
	// not track it across calls.
	Next string

	// Err is set when Status is StatusFailed.
	Err error
}

// Halted reports whether the run stopped before completion, either by
// the step budget or by a failure.
func (r *Result[S]) Halted() bool {
	return r.Status != StatusCompleted
}
