package stategraph

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/randalmurphal/stategraph/pkg/stategraph/observability"
	"go.opentelemetry.io/otel/trace"
)

// Execute runs the graph against an initial state.
//
// The driver loop is strictly sequential: starting at the entry point
// (or the WithStartAt override), each handler runs to completion before
// the next edge is resolved. Even when the topology would allow
// independent branches, exactly one path is active per call, which
// keeps state transitions total-order deterministic.
//
// Execution outcomes come back as data in the Result, including handler
// failures; the Go error return is reserved for invocation mistakes
// (nil context, unknown start node). The engine performs no retries and
// imposes no timeout; bound run time with a context deadline, and
// bound work with WithMaxSteps.
//
// Example:
//
//	ctx := stategraph.NewContext(context.Background())
//	res, err := compiled.Execute(ctx, State{})
//	if err != nil {
//	    // misconfigured call
//	}
//	if res.Status == stategraph.StatusFailed {
//	    // res.Executed and res.FinalState describe the failure point
//	}
func (cg *CompiledGraph[S]) Execute(ctx Context, initial S, opts ...RunOption) (*Result[S], error) {
	if ctx == nil {
		return nil, ErrNilContext
	}

	cfg := defaultRunConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	start := cg.entry
	if cfg.startAt != "" {
		if !cg.HasNode(cfg.startAt) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStartNode, cfg.startAt)
		}
		start = cfg.startAt
	}

	logger := cfg.logger
	if logger == nil {
		logger = ctx.Logger()
	}

	runID := ctx.RunID()
	startTime := time.Now()

	observability.LogRunStart(logger, runID, start)
	cfg.emit(EventRunStarted, runID, start, nil)

	var tracingCtx context.Context = ctx
	var runSpan trace.Span
	if cfg.tracing {
		tracingCtx, runSpan = cfg.spans.StartRunSpan(ctx, runID)
	}

	res := cg.run(tracingCtx, ctx, initial, start, &cfg, logger)

	duration := time.Since(startTime)
	durationMs := float64(duration.Milliseconds())
	cfg.metrics.RecordRun(ctx, string(res.Status), duration)

	switch res.Status {
	case StatusCompleted:
		observability.LogRunComplete(logger, runID, durationMs, len(res.Executed))
		cfg.emit(EventRunCompleted, runID, "", nil)
	case StatusPartial:
		observability.LogRunPartial(logger, runID, durationMs, len(res.Executed), res.Next)
		cfg.emit(EventRunPartial, runID, res.Next, nil)
	case StatusFailed:
		lastNode := ""
		if len(res.Executed) > 0 {
			lastNode = res.Executed[len(res.Executed)-1]
		}
		observability.LogRunFailed(logger, runID, res.Err, durationMs, lastNode)
		cfg.emit(EventRunFailed, runID, lastNode, res.Err)
	}

	if cfg.tracing {
		cfg.spans.EndSpanWithError(runSpan, res.Err)
	}

	return res, nil
}

// run is the sequential driver loop.
func (cg *CompiledGraph[S]) run(tracingCtx context.Context, ctx Context, state S, start string, cfg *runConfig, logger *slog.Logger) *Result[S] {
	current := start
	executed := make([]string, 0, len(cg.nodes))
	steps := 0

	for {
		// Cooperative cancellation check before each handler.
		select {
		case <-ctx.Done():
			return &Result[S]{
				Status:     StatusFailed,
				FinalState: state,
				Executed:   executed,
				Err:        &CancellationError{Node: current, Cause: ctx.Err()},
			}
		default:
		}

		observability.LogNodeStart(logger, current)

		nodeCtx := tracingCtx
		var nodeSpan trace.Span
		if cfg.tracing {
			nodeCtx, nodeSpan = cfg.spans.StartNodeSpan(tracingCtx, current)
		}

		nodeStart := time.Now()
		newState, err := cg.invoke(ctx, current, state)
		executed = append(executed, current)
		nodeDuration := time.Since(nodeStart)

		cfg.metrics.RecordNodeExecution(nodeCtx, current, nodeDuration, err)
		if cfg.tracing {
			cfg.spans.EndSpanWithError(nodeSpan, err)
		}

		if err != nil {
			observability.LogNodeError(logger, current, err)
			cfg.emit(EventNodeFailed, ctx.RunID(), current, err)
			// FinalState is the state prior to the failing handler.
			return &Result[S]{
				Status:     StatusFailed,
				FinalState: state,
				Executed:   executed,
				Err:        err,
			}
		}

		observability.LogNodeComplete(logger, current, float64(nodeDuration.Milliseconds()))
		cfg.emit(EventNodeCompleted, ctx.RunID(), current, nil)
		steps++

		next, ok, err := cg.resolveNext(ctx, current, newState)
		if err != nil {
			return &Result[S]{
				Status:     StatusFailed,
				FinalState: newState,
				Executed:   executed,
				Err:        err,
			}
		}

		state = newState

		if !ok {
			return &Result[S]{
				Status:     StatusCompleted,
				FinalState: state,
				Executed:   executed,
			}
		}

		if cfg.maxSteps > 0 && steps >= cfg.maxSteps {
			return &Result[S]{
				Status:     StatusPartial,
				FinalState: state,
				Executed:   executed,
				Next:       next,
			}
		}

		current = next
	}
}

// invoke runs a single node handler with panic recovery.
func (cg *CompiledGraph[S]) invoke(ctx Context, node string, state S) (result S, err error) {
	fn, ok := cg.handler(node)
	if !ok {
		// Unreachable after a successful Build.
		return state, &NodeError{
			Node: node,
			Op:   "lookup",
			Err:  fmt.Errorf("node not found: %s", node),
		}
	}

	nodeCtx := ctx
	if ec, ok := ctx.(*executionContext); ok {
		nodeCtx = ec.withNode(node)
	}

	defer func() {
		if r := recover(); r != nil {
			result = state
			err = &PanicError{
				Node:  node,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	result, err = fn(nodeCtx, state)
	if err != nil {
		return result, &NodeError{
			Node: node,
			Op:   "execute",
			Err:  err,
		}
	}

	return result, nil
}

// resolveNext walks the node's edges in insertion order and returns the
// first one that resolves. An unconditional edge always resolves; a
// conditional edge resolves only when its decide function yields a key
// present in its routes. ok is false when no edge resolves, which
// completes the run. A panic in a decide function is returned as a
// PanicError.
func (cg *CompiledGraph[S]) resolveNext(ctx Context, current string, state S) (next string, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			next, ok = "", false
			err = &PanicError{
				Node:  current,
				Value: r,
				Stack: string(debug.Stack()),
			}
		}
	}()

	decideCtx := ctx
	if ec, isExec := ctx.(*executionContext); isExec {
		decideCtx = ec.withNode(current)
	}

	for _, e := range cg.outgoing(current) {
		if !e.conditional() {
			return e.target, true, nil
		}
		key := e.decide(decideCtx, state)
		if to, found := e.routes[key]; found {
			return to, true, nil
		}
	}

	return "", false, nil
}
