package stategraph

import (
	"fmt"
	"sync"
)

// edge is the tagged transition variant. A nil decide marks an
// unconditional edge with a fixed target; otherwise the edge is
// conditional and the target is routes[decide(state)].
type edge[S any] struct {
	target string
	decide DecideFunc[S]
	routes map[string]string
}

func (e edge[S]) conditional() bool {
	return e.decide != nil
}

// Graph is a mutable builder for execution graphs. Use New to create
// one, then chain AddNode, AddEdge, AddConditionalEdge, and SetEntry
// calls to define the workflow.
//
// Every builder call validates its arguments eagerly. Instead of
// breaking the fluent chain, a failed call records its error and Build
// returns all recorded errors joined.
//
// Graph is NOT safe for concurrent use during building. Construct it
// from a single goroutine, then call Build to obtain an immutable
// CompiledGraph that can be shared freely.
//
// Example:
//
//	graph := stategraph.New[MyState]().
//	    AddNode("fetch", fetchNode).
//	    AddNode("process", processNode).
//	    AddEdge("fetch", "process").
//	    SetEntry("fetch")
//
//	compiled, err := graph.Build()
type Graph[S any] struct {
	mu    sync.Mutex
	nodes map[string]NodeFunc[S]
	edges map[string][]edge[S]
	entry string
	errs  []error
}

// New creates a new graph builder for state type S.
func New[S any]() *Graph[S] {
	return &Graph[S]{
		nodes: make(map[string]NodeFunc[S]),
		edges: make(map[string][]edge[S]),
	}
}

// AddNode registers a named node. Names are unique; registering a name
// twice records ErrDuplicateNode. Returns the graph for chaining.
func (g *Graph[S]) AddNode(name string, fn NodeFunc[S]) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if name == "" {
		g.errs = append(g.errs, ErrEmptyNodeName)
		return g
	}
	if fn == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrNilHandler, name))
		return g
	}
	if _, exists := g.nodes[name]; exists {
		g.errs = append(g.errs, fmt.Errorf("%w: %s", ErrDuplicateNode, name))
		return g
	}

	g.nodes[name] = fn
	return g
}

// AddEdge appends an unconditional edge to from's ordered edge list.
// Both endpoints must already be registered; an unknown endpoint
// records ErrUnknownNode. Returns the graph for chaining.
func (g *Graph[S]) AddEdge(from, to string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.known(from) {
		g.errs = append(g.errs, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from))
		return g
	}
	if !g.known(to) {
		g.errs = append(g.errs, fmt.Errorf("%w: edge target %q", ErrUnknownNode, to))
		return g
	}

	g.edges[from] = append(g.edges[from], edge[S]{target: to})
	return g
}

// AddConditionalEdge appends a conditional edge to from's ordered edge
// list. At execution time decide maps the current state to a route key;
// the edge resolves to routes[key] when the key is present and falls
// through to the next edge otherwise.
//
// The source and every route target must already be registered.
// Returns the graph for chaining.
func (g *Graph[S]) AddConditionalEdge(from string, decide DecideFunc[S], routes map[string]string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.known(from) {
		g.errs = append(g.errs, fmt.Errorf("%w: edge source %q", ErrUnknownNode, from))
		return g
	}
	if decide == nil {
		g.errs = append(g.errs, fmt.Errorf("%w: from %q", ErrNilDecide, from))
		return g
	}
	if len(routes) == 0 {
		g.errs = append(g.errs, fmt.Errorf("%w: from %q", ErrEmptyRoutes, from))
		return g
	}
	for key, to := range routes {
		if !g.known(to) {
			g.errs = append(g.errs, fmt.Errorf("%w: route %q -> %q", ErrUnknownNode, key, to))
			return g
		}
	}

	// Copy the route table so later caller mutation cannot leak in.
	copied := make(map[string]string, len(routes))
	for key, to := range routes {
		copied[key] = to
	}

	g.edges[from] = append(g.edges[from], edge[S]{decide: decide, routes: copied})
	return g
}

// SetEntry designates the node execution starts at. The node must
// already be registered. Returns the graph for chaining.
func (g *Graph[S]) SetEntry(name string) *Graph[S] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.known(name) {
		g.errs = append(g.errs, fmt.Errorf("%w: entry point %q", ErrUnknownNode, name))
		return g
	}

	g.entry = name
	return g
}

// known reports whether a node name is registered. Callers hold g.mu.
func (g *Graph[S]) known(name string) bool {
	_, ok := g.nodes[name]
	return ok
}
