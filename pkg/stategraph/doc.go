/*
Package stategraph provides a deterministic workflow orchestration
engine: build a directed graph of named steps, validate it, and execute
it sequentially against an evolving state with conditional branching
and cooperative pause/resume.

# Overview

A workflow is a directed acyclic graph. Each node carries a handler
that transforms the state; edges route between nodes, either
unconditionally or through a decision function over the current state.
The engine performs no I/O of its own: handlers and the optional
checkpoint backend are supplied by the surrounding application.

# Basic Usage

Create a graph with nodes and edges, then build and execute:

	type State struct {
	    Input  string
	    Output string
	}

	func process(ctx stategraph.Context, s State) (State, error) {
	    s.Output = "Processed: " + s.Input
	    return s, nil
	}

	func main() {
	    graph := stategraph.New[State]().
	        AddNode("process", process).
	        SetEntry("process")

	    compiled, err := graph.Build()
	    if err != nil {
	        log.Fatal(err)
	    }

	    ctx := stategraph.NewContext(context.Background())
	    res, err := compiled.Execute(ctx, State{Input: "hello"})
	    if err != nil {
	        log.Fatal(err)
	    }
	    fmt.Println(res.FinalState.Output) // "Processed: hello"
	}

Execution completes at the first node with no resolvable outgoing edge.
Handler failures come back as data: the Result carries the status, the
state at the failure point, and the ordered list of executed nodes.

# Conditional Branching

A conditional edge maps a route key chosen at run time to a fixed set
of targets:

	graph.AddConditionalEdge("check",
	    func(ctx stategraph.Context, s State) string {
	        if s.Err != "" {
	            return "error"
	        }
	        return "success"
	    },
	    map[string]string{
	        "success": "success_path",
	        "error":   "error_path",
	    })

When a node has several outgoing edges, the first edge in insertion
order that resolves wins. A conditional edge whose decide function
returns a key outside its routes does not resolve and routing falls
through to the next edge.

# Acyclicity

Build rejects any graph with a structural cycle, treating every
conditional route target as a possible successor. The actual branch is
state-dependent and unknowable at build time, so a cycle reachable
through only one branch is still rejected. Termination of every run
follows from this.

# Pause and Resume

WithMaxSteps bounds the node executions per call. A run halted by the
budget returns StatusPartial along with the resolved next node:

	res, _ := compiled.Execute(ctx, initial, stategraph.WithMaxSteps(2))
	if res.Status == stategraph.StatusPartial {
	    res, _ = compiled.Execute(ctx, res.FinalState,
	        stategraph.WithStartAt(res.Next))
	}

The engine tracks nothing across calls; resumption is the caller's
composition, typically aided by a checkpoint.

# Checkpointing

Handlers checkpoint at their own discretion through a manager reachable
from the context; the executor never checkpoints on its own:

	store, _ := checkpoint.NewSQLiteStore("./checkpoints.db")
	defer store.Close()
	mgr := checkpoint.NewManager(store)

	ctx := stategraph.NewContext(context.Background(),
	    stategraph.WithCheckpoints(mgr))

	// Inside a handler:
	func ingest(ctx stategraph.Context, s State) (State, error) {
	    if cps := ctx.Checkpoints(); cps != nil {
	        cps.Create(ctx, "wf-123", "ingest", s, nil)
	    }
	    return s, nil
	}

	// After a crash, continue from the latest checkpoint:
	res, err := compiled.Resume(ctx, mgr, "wf-123")

# Declarative Definitions

Graphs can be described in YAML and bound to handlers by name; see
Definition, LoadDefinition, and FromDefinition.

# Observability

Structured logging uses slog and is on by default through the context
logger. OpenTelemetry metrics and tracing are opt-in per run:

	res, err := compiled.Execute(ctx, state,
	    stategraph.WithMetrics(true),
	    stategraph.WithTracing(true))

# Thread Safety

  - Graph[S] is NOT safe for concurrent use during construction
  - CompiledGraph[S] IS safe for concurrent Execute calls (immutable)
  - Checkpoint stores are safe for concurrent use

The engine is single-threaded per execution: handlers run strictly one
at a time, and there is no parallel fan-out even where the topology
would allow it.

# Subpackages

  - checkpoint: checkpoint manager and storage (memory, SQLite)
  - observability: logging, metrics, and tracing helpers
  - config: typed configuration maps loaded from YAML/JSON
  - registry: keyed handler registry for declarative definitions
  - expr: boolean expressions for declarative route rules
*/
package stategraph
