package stategraph

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCtx() Context {
	return NewContext(context.Background())
}

// TestExecute_LinearChain runs start -> process -> finalize and checks
// order, status, and accumulated state.
func TestExecute_LinearChain(t *testing.T) {
	cg, err := chain("start", "process", "finalize").Build()
	require.NoError(t, err)

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"start", "process", "finalize"}, res.Executed)
	assert.Equal(t,
		[]string{"start_completed", "process_completed", "finalize_completed"},
		res.FinalState.Results)
	assert.NoError(t, res.Err)
	assert.False(t, res.Halted())
}

// TestExecute_ConditionalRouting tests both branches of a conditional
// edge keyed on the state.
func TestExecute_ConditionalRouting(t *testing.T) {
	build := func() *CompiledGraph[State] {
		return New[State]().
			AddNode("check", passthrough[State]).
			AddNode("success_path", tagNode("success_path")).
			AddNode("error_path", tagNode("error_path")).
			AddConditionalEdge("check",
				func(ctx Context, s State) string {
					if s.Err != "" {
						return "error"
					}
					return "success"
				},
				map[string]string{
					"success": "success_path",
					"error":   "error_path",
				}).
			SetEntry("check").
			MustBuild()
	}

	t.Run("success branch", func(t *testing.T) {
		res, err := build().Execute(testCtx(), State{})
		require.NoError(t, err)
		assert.Equal(t, []string{"check", "success_path"}, res.Executed)
	})

	t.Run("error branch", func(t *testing.T) {
		res, err := build().Execute(testCtx(), State{Err: "x"})
		require.NoError(t, err)
		assert.Equal(t, []string{"check", "error_path"}, res.Executed)
	})
}

// TestExecute_MaxSteps tests the cooperative step budget on a 3-node
// chain: one step yields a Partial run naming the resolved next node.
func TestExecute_MaxSteps(t *testing.T) {
	cg := chain("step1", "step2", "step3").MustBuild()

	res, err := cg.Execute(testCtx(), State{}, WithMaxSteps(1))
	require.NoError(t, err)

	assert.Equal(t, StatusPartial, res.Status)
	assert.Equal(t, []string{"step1"}, res.Executed)
	assert.Equal(t, "step2", res.Next)
	assert.Equal(t, []string{"step1_completed"}, res.FinalState.Results)
	assert.True(t, res.Halted())
}

// TestExecute_ResumePartial tests resuming a Partial run by
// repositioning the start node with the returned state.
func TestExecute_ResumePartial(t *testing.T) {
	cg := chain("step1", "step2", "step3").MustBuild()
	ctx := testCtx()

	res, err := cg.Execute(ctx, State{}, WithMaxSteps(2))
	require.NoError(t, err)
	require.Equal(t, StatusPartial, res.Status)
	require.Equal(t, []string{"step1", "step2"}, res.Executed)

	res, err = cg.Execute(ctx, res.FinalState, WithStartAt(res.Next))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"step3"}, res.Executed)
	assert.Equal(t,
		[]string{"step1_completed", "step2_completed", "step3_completed"},
		res.FinalState.Results)
}

// TestExecute_MaxStepsAtCompletion tests that a run whose last node has
// no resolvable edge completes even when the budget is exactly spent.
func TestExecute_MaxStepsAtCompletion(t *testing.T) {
	cg := chain("a", "b").MustBuild()

	res, err := cg.Execute(testCtx(), State{}, WithMaxSteps(2))
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Empty(t, res.Next)
}

// TestExecute_HandlerFailure tests that a handler error stops the run
// with the pre-failure state and the failed node recorded.
func TestExecute_HandlerFailure(t *testing.T) {
	cg := New[State]().
		AddNode("ok", tagNode("ok")).
		AddNode("bad", failingNode(errBoom)).
		AddNode("never", tagNode("never")).
		AddEdge("ok", "bad").
		AddEdge("bad", "never").
		SetEntry("ok").
		MustBuild()

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"ok", "bad"}, res.Executed)
	// FinalState is the state prior to the failing handler.
	assert.Equal(t, []string{"ok_completed"}, res.FinalState.Results)

	require.Error(t, res.Err)
	assert.ErrorIs(t, res.Err, errBoom)
	var nodeErr *NodeError
	require.ErrorAs(t, res.Err, &nodeErr)
	assert.Equal(t, "bad", nodeErr.Node)
	assert.Equal(t, "execute", nodeErr.Op)
}

// TestExecute_HandlerPanic tests that a panicking handler is recovered
// into a Failed result with the stack captured.
func TestExecute_HandlerPanic(t *testing.T) {
	cg := New[State]().
		AddNode("boom", panickingNode("kaput")).
		SetEntry("boom").
		MustBuild()

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	var panicErr *PanicError
	require.ErrorAs(t, res.Err, &panicErr)
	assert.Equal(t, "boom", panicErr.Node)
	assert.Equal(t, "kaput", panicErr.Value)
	assert.NotEmpty(t, panicErr.Stack)
}

// TestExecute_EdgePrecedence tests that the first edge in insertion
// order that resolves wins, and that an unresolved conditional edge
// falls through to later edges.
func TestExecute_EdgePrecedence(t *testing.T) {
	t.Run("conditional before unconditional", func(t *testing.T) {
		cg := New[State]().
			AddNode("src", passthrough[State]).
			AddNode("routed", tagNode("routed")).
			AddNode("fallback", tagNode("fallback")).
			AddConditionalEdge("src",
				func(ctx Context, s State) string {
					if s.Done {
						return "go"
					}
					return "no-match"
				},
				map[string]string{"go": "routed"}).
			AddEdge("src", "fallback").
			SetEntry("src").
			MustBuild()

		res, err := cg.Execute(testCtx(), State{Done: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"src", "routed"}, res.Executed)

		res, err = cg.Execute(testCtx(), State{Done: false})
		require.NoError(t, err)
		assert.Equal(t, []string{"src", "fallback"}, res.Executed)
	})

	t.Run("unconditional shadows later edges", func(t *testing.T) {
		cg := New[State]().
			AddNode("src", passthrough[State]).
			AddNode("first", tagNode("first")).
			AddNode("second", tagNode("second")).
			AddEdge("src", "first").
			AddEdge("src", "second").
			SetEntry("src").
			MustBuild()

		res, err := cg.Execute(testCtx(), State{})
		require.NoError(t, err)
		assert.Equal(t, []string{"src", "first"}, res.Executed)
	})
}

// TestExecute_UnresolvedConditionalCompletes tests that a run completes
// when no edge resolves, even though edges exist.
func TestExecute_UnresolvedConditionalCompletes(t *testing.T) {
	cg := New[State]().
		AddNode("src", tagNode("src")).
		AddNode("next", tagNode("next")).
		AddConditionalEdge("src",
			func(ctx Context, s State) string { return "nope" },
			map[string]string{"go": "next"}).
		SetEntry("src").
		MustBuild()

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, res.Status)
	assert.Equal(t, []string{"src"}, res.Executed)
	assert.Equal(t, []string{"src_completed"}, res.FinalState.Results)
}

// TestExecute_RoutingSeesHandlerOutput tests that decide functions
// observe the handler's returned state, not the pre-handler state.
func TestExecute_RoutingSeesHandlerOutput(t *testing.T) {
	cg := New[State]().
		AddNode("mark", func(ctx Context, s State) (State, error) {
			s.Done = true
			return s, nil
		}).
		AddNode("after", tagNode("after")).
		AddConditionalEdge("mark",
			func(ctx Context, s State) string {
				if s.Done {
					return "go"
				}
				return "stay"
			},
			map[string]string{"go": "after"}).
		SetEntry("mark").
		MustBuild()

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)
	assert.Equal(t, []string{"mark", "after"}, res.Executed)
}

// TestExecute_HandlerLoggerEnriched tests that the logger handlers see
// through the context carries the run and node identity.
func TestExecute_HandlerLoggerEnriched(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	cg := New[State]().
		AddNode("mark", func(ctx Context, s State) (State, error) {
			ctx.Logger().Info("handler working")
			return s, nil
		}).
		SetEntry("mark").
		MustBuild()

	ctx := NewContext(context.Background(),
		WithLogger(logger),
		WithRunID("run-42"))

	_, err := cg.Execute(ctx, State{})
	require.NoError(t, err)

	// The run lifecycle logs lines of its own; find the handler's.
	var handlerLine map[string]any
	dec := json.NewDecoder(&buf)
	for dec.More() {
		var line map[string]any
		require.NoError(t, dec.Decode(&line))
		if line["msg"] == "handler working" {
			handlerLine = line
		}
	}

	require.NotNil(t, handlerLine)
	assert.Equal(t, "run-42", handlerLine["run_id"])
	assert.Equal(t, "mark", handlerLine["node"])
}

// TestExecute_NilContext tests the invocation error path.
func TestExecute_NilContext(t *testing.T) {
	cg := chain("a").MustBuild()
	_, err := cg.Execute(nil, State{})
	assert.ErrorIs(t, err, ErrNilContext)
}

// TestExecute_UnknownStartNode tests WithStartAt validation.
func TestExecute_UnknownStartNode(t *testing.T) {
	cg := chain("a").MustBuild()
	_, err := cg.Execute(testCtx(), State{}, WithStartAt("ghost"))
	assert.ErrorIs(t, err, ErrUnknownStartNode)
}

// TestExecute_Cancellation tests that a cancelled context stops the run
// before the next handler with a Failed result.
func TestExecute_Cancellation(t *testing.T) {
	baseCtx, cancel := context.WithCancel(context.Background())
	ctx := NewContext(baseCtx)

	cg := New[State]().
		AddNode("first", func(ctx Context, s State) (State, error) {
			cancel()
			s.Results = append(s.Results, "first_completed")
			return s, nil
		}).
		AddNode("second", tagNode("second")).
		AddEdge("first", "second").
		SetEntry("first").
		MustBuild()

	res, err := cg.Execute(ctx, State{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"first"}, res.Executed)
	assert.Equal(t, []string{"first_completed"}, res.FinalState.Results)

	var cancelErr *CancellationError
	require.ErrorAs(t, res.Err, &cancelErr)
	assert.Equal(t, "second", cancelErr.Node)
	assert.ErrorIs(t, res.Err, context.Canceled)
}

// TestExecute_ConcurrentRuns tests that one compiled graph can serve
// independent concurrent executions.
func TestExecute_ConcurrentRuns(t *testing.T) {
	cg := New[Counter]().
		AddNode("a", increment).
		AddNode("b", increment).
		AddNode("c", increment).
		AddEdge("a", "b").
		AddEdge("b", "c").
		SetEntry("a").
		MustBuild()

	const runs = 20
	done := make(chan *Result[Counter], runs)
	for i := 0; i < runs; i++ {
		go func(start int) {
			res, err := cg.Execute(testCtx(), Counter{Value: start})
			require.NoError(t, err)
			done <- res
		}(i)
	}

	for i := 0; i < runs; i++ {
		select {
		case res := <-done:
			assert.Equal(t, StatusCompleted, res.Status)
			assert.Len(t, res.Executed, 3)
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for concurrent runs")
		}
	}
}

// TestExecute_DecidePanic tests that a panic in a decide function is
// captured into a Failed result with the post-handler state kept.
func TestExecute_DecidePanic(t *testing.T) {
	cg := New[State]().
		AddNode("src", tagNode("src")).
		AddNode("next", tagNode("next")).
		AddConditionalEdge("src",
			func(ctx Context, s State) string { panic("bad decide") },
			map[string]string{"go": "next"}).
		SetEntry("src").
		MustBuild()

	res, err := cg.Execute(testCtx(), State{})
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, res.Status)
	assert.Equal(t, []string{"src"}, res.Executed)
	assert.Equal(t, []string{"src_completed"}, res.FinalState.Results)

	var panicErr *PanicError
	require.ErrorAs(t, res.Err, &panicErr)
	assert.Equal(t, "src", panicErr.Node)
}
