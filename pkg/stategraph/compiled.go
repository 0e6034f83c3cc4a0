package stategraph

import "sort"

// CompiledGraph is an immutable, executable graph produced by Build.
//
// CompiledGraph is safe for concurrent use: the structure cannot change
// after Build, and Execute keeps all per-run bookkeeping on its own
// stack, so independent runs with different initial states may share
// one graph.
type CompiledGraph[S any] struct {
	nodes map[string]NodeFunc[S]
	edges map[string][]edge[S]
	entry string
}

// Entry returns the entry node name.
func (cg *CompiledGraph[S]) Entry() string {
	return cg.entry
}

// Len returns the number of nodes in the graph.
func (cg *CompiledGraph[S]) Len() int {
	return len(cg.nodes)
}

// Nodes returns all node names, sorted.
func (cg *CompiledGraph[S]) Nodes() []string {
	names := make([]string, 0, len(cg.nodes))
	for name := range cg.nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// HasNode reports whether a node exists in the graph.
func (cg *CompiledGraph[S]) HasNode(name string) bool {
	_, ok := cg.nodes[name]
	return ok
}

// Successors returns every node reachable from name in one step,
// counting each conditional route target as a possible successor.
// The list preserves edge insertion order; duplicates are removed.
func (cg *CompiledGraph[S]) Successors(name string) []string {
	var out []string
	seen := make(map[string]bool)
	add := func(to string) {
		if !seen[to] {
			seen[to] = true
			out = append(out, to)
		}
	}

	for _, e := range cg.edges[name] {
		if !e.conditional() {
			add(e.target)
			continue
		}
		keys := make([]string, 0, len(e.routes))
		for key := range e.routes {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			add(e.routes[key])
		}
	}
	return out
}

// handler returns the node handler for name. Used by the executor.
func (cg *CompiledGraph[S]) handler(name string) (NodeFunc[S], bool) {
	fn, ok := cg.nodes[name]
	return fn, ok
}

// outgoing returns name's ordered edge list. Used by the executor.
func (cg *CompiledGraph[S]) outgoing(name string) []edge[S] {
	return cg.edges[name]
}
