package stategraph

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Build validates the graph and creates an immutable CompiledGraph.
//
// Validation happens in order:
//  1. All errors recorded by earlier builder calls are returned, joined.
//  2. An entry point must be set (ErrNoEntryPoint).
//  3. The graph must be acyclic (ErrCyclicGraph). Every conditional
//     route target counts as a possible successor, so a graph is
//     rejected even when a given run could never traverse the cycle.
//
// The returned snapshot deep-copies the node and edge tables; mutating
// the builder afterwards does not affect graphs already built.
func (g *Graph[S]) Build() (*CompiledGraph[S], error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.errs) > 0 {
		return nil, errors.Join(g.errs...)
	}

	if g.entry == "" {
		return nil, ErrNoEntryPoint
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("%w: %s", ErrCyclicGraph, strings.Join(cycle, " -> "))
	}

	return g.snapshot(), nil
}

// MustBuild is Build that panics on error. Intended for graphs whose
// shape is fixed at program start.
func (g *Graph[S]) MustBuild() *CompiledGraph[S] {
	cg, err := g.Build()
	if err != nil {
		panic(fmt.Sprintf("stategraph: %v", err))
	}
	return cg
}

// findCycle runs depth-first search with a recursion stack, starting at
// the entry point and then from every node not yet visited. A node
// re-encountered while still on the stack closes a cycle; the cycle
// path is returned for the error message, nil if the graph is acyclic.
func (g *Graph[S]) findCycle() []string {
	const (
		unvisited = iota
		inStack
		done
	)

	color := make(map[string]int, len(g.nodes))
	var stack []string

	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = inStack
		stack = append(stack, name)

		for _, next := range g.successors(name) {
			switch color[next] {
			case inStack:
				// Slice the stack from the first occurrence of next to
				// report just the cycle, closed back on itself.
				for i, n := range stack {
					if n == next {
						return append(append([]string{}, stack[i:]...), next)
					}
				}
			case unvisited:
				if cycle := visit(next); cycle != nil {
					return cycle
				}
			}
		}

		stack = stack[:len(stack)-1]
		color[name] = done
		return nil
	}

	if cycle := visit(g.entry); cycle != nil {
		return cycle
	}

	// Nodes not reachable from the entry still must not form cycles.
	names := make([]string, 0, len(g.nodes))
	for name := range g.nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if color[name] == unvisited {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// successors returns every possible target of name's edges, conditional
// branches included. Route targets are emitted in sorted key order so
// cycle reports are deterministic.
func (g *Graph[S]) successors(name string) []string {
	var out []string
	for _, e := range g.edges[name] {
		if !e.conditional() {
			out = append(out, e.target)
			continue
		}
		keys := make([]string, 0, len(e.routes))
		for key := range e.routes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			out = append(out, e.routes[key])
		}
	}
	return out
}

// snapshot deep-copies the builder state into an immutable graph.
func (g *Graph[S]) snapshot() *CompiledGraph[S] {
	nodes := make(map[string]NodeFunc[S], len(g.nodes))
	for name, fn := range g.nodes {
		nodes[name] = fn
	}

	edges := make(map[string][]edge[S], len(g.edges))
	for from, list := range g.edges {
		copied := make([]edge[S], len(list))
		for i, e := range list {
			copied[i] = e
			if e.conditional() {
				routes := make(map[string]string, len(e.routes))
				for key, to := range e.routes {
					routes[key] = to
				}
				copied[i].routes = routes
			}
		}
		edges[from] = copied
	}

	return &CompiledGraph[S]{
		nodes: nodes,
		edges: edges,
		entry: g.entry,
	}
}
