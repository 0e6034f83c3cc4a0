package stategraph

import (
	"fmt"

	"github.com/randalmurphal/stategraph/pkg/stategraph/checkpoint"
)

// Resume continues a workflow from its most recent checkpoint. The
// checkpointed state is decoded into S and execution restarts at the
// checkpointed node, so the node that recorded the checkpoint runs
// again.
//
// Resumption is a composition over Execute: the engine itself tracks
// nothing across calls. Returns ErrNoCheckpoints when the workflow has
// no checkpoint.
//
// Example:
//
//	// A handler checkpointed mid-run before the process died.
//	res, err := compiled.Resume(ctx, mgr, "wf-123")
func (cg *CompiledGraph[S]) Resume(ctx Context, mgr *checkpoint.Manager, workflowID string, opts ...RunOption) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cp, err := mgr.Latest(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("load latest checkpoint: %w", err)
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoCheckpoints, workflowID)
	}

	return cg.resumeAt(ctx, cp, opts)
}

// ResumeFrom continues a workflow from a specific checkpoint rather
// than the latest one. Returns ErrNoCheckpoints when no checkpoint with
// that ID exists.
func (cg *CompiledGraph[S]) ResumeFrom(ctx Context, mgr *checkpoint.Manager, checkpointID string, opts ...RunOption) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cp, err := mgr.Load(ctx, checkpointID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	if cp == nil {
		return nil, fmt.Errorf("%w: checkpoint %s", ErrNoCheckpoints, checkpointID)
	}

	return cg.resumeAt(ctx, cp, opts)
}

func (cg *CompiledGraph[S]) resumeAt(ctx Context, cp *checkpoint.Checkpoint, opts []RunOption) (*Result[S], error) {
	state, err := checkpoint.State[S](cp)
	if err != nil {
		return nil, err
	}

	if !cg.HasNode(cp.NodeID) {
		return nil, fmt.Errorf("%w: checkpointed node %q", ErrUnknownStartNode, cp.NodeID)
	}

	return cg.Execute(ctx, state, append(opts, WithStartAt(cp.NodeID))...)
}
