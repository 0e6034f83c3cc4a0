package stategraph

import (
	"errors"
)

// Test state types used across tests

// Counter is a simple state for testing incrementing.
type Counter struct {
	Value int
}

// State is a more complex state for testing various scenarios.
type State struct {
	Results []string
	Err     string
	Count   int
	Done    bool
}

// Helper node functions

// increment is a node that increments the counter.
func increment(ctx Context, s Counter) (Counter, error) {
	s.Value++
	return s, nil
}

// passthrough returns the state unchanged.
func passthrough[S any](ctx Context, s S) (S, error) {
	return s, nil
}

// tagNode creates a node that appends name_completed to the results.
func tagNode(name string) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		s.Results = append(s.Results, name+"_completed")
		return s, nil
	}
}

// failingNode creates a node that returns the given error.
func failingNode(err error) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		return s, err
	}
}

// panickingNode panics with the given value.
func panickingNode(value any) NodeFunc[State] {
	return func(ctx Context, s State) (State, error) {
		panic(value)
	}
}

var errBoom = errors.New("boom")

// chain builds a linear graph a -> b -> c ... from tagNode handlers.
func chain(names ...string) *Graph[State] {
	g := New[State]()
	for _, name := range names {
		g.AddNode(name, tagNode(name))
	}
	for i := 0; i+1 < len(names); i++ {
		g.AddEdge(names[i], names[i+1])
	}
	if len(names) > 0 {
		g.SetEntry(names[0])
	}
	return g
}
