package stategraph

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/randalmurphal/stategraph/pkg/stategraph/expr"
	"github.com/randalmurphal/stategraph/pkg/stategraph/registry"
	"gopkg.in/yaml.v3"
)

// ErrNoHandler indicates a definition names a node with no handler
// registered for it.
var ErrNoHandler = errors.New("no handler registered for node")

// Definition is a declarative graph description, typically loaded from
// YAML. Nodes are bound to handlers by name through a registry, and
// conditional routes select their target with `when` expressions
// evaluated against the state's JSON object form.
//
//	entry: triage
//	nodes: [triage, escalate, resolve]
//	edges:
//	  - from: triage
//	    routes:
//	      - when: severity >= 3
//	        to: escalate
//	    default: resolve
//	  - from: escalate
//	    to: resolve
type Definition struct {
	Entry string    `yaml:"entry" json:"entry"`
	Nodes []string  `yaml:"nodes" json:"nodes"`
	Edges []EdgeDef `yaml:"edges" json:"edges"`
}

// EdgeDef describes one edge. Either To (unconditional) or
// Routes/Default (conditional) is set.
type EdgeDef struct {
	From    string     `yaml:"from" json:"from"`
	To      string     `yaml:"to,omitempty" json:"to,omitempty"`
	Routes  []RouteDef `yaml:"routes,omitempty" json:"routes,omitempty"`
	Default string     `yaml:"default,omitempty" json:"default,omitempty"`
}

// RouteDef is one conditional route rule. The first rule whose When
// expression evaluates true selects the target; Default applies when no
// rule matches.
type RouteDef struct {
	When string `yaml:"when" json:"when"`
	To   string `yaml:"to" json:"to"`
}

// LoadDefinition reads a Definition from a YAML or JSON file, detecting
// the format by extension.
func LoadDefinition(path string) (Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, fmt.Errorf("read definition file: %w", err)
	}

	var def Definition
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &def); err != nil {
			return Definition{}, fmt.Errorf("parse definition yaml: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &def); err != nil {
			return Definition{}, fmt.Errorf("parse definition json: %w", err)
		}
	default:
		return Definition{}, fmt.Errorf("unsupported definition file extension: %s", filepath.Ext(path))
	}

	return def, nil
}

// FromDefinition assembles a graph builder from a definition, binding
// each declared node to its handler from the registry. The returned
// builder has not been built yet, so callers can add further nodes or
// edges before calling Build.
func FromDefinition[S any](def Definition, handlers *registry.Registry[string, NodeFunc[S]]) (*Graph[S], error) {
	g := New[S]()

	for _, name := range def.Nodes {
		fn, ok := handlers.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrNoHandler, name)
		}
		g.AddNode(name, fn)
	}

	for _, e := range def.Edges {
		if len(e.Routes) == 0 && e.Default == "" {
			g.AddEdge(e.From, e.To)
			continue
		}
		g.AddConditionalEdge(e.From, decideFromRules[S](e.Routes, e.Default), routeTable(e.Routes, e.Default))
	}

	if def.Entry != "" {
		g.SetEntry(def.Entry)
	}

	return g, nil
}

// routeTable keys each route by its target name, which is what
// decideFromRules returns.
func routeTable(rules []RouteDef, fallback string) map[string]string {
	routes := make(map[string]string, len(rules)+1)
	for _, r := range rules {
		routes[r.To] = r.To
	}
	if fallback != "" {
		routes[fallback] = fallback
	}
	return routes
}

// decideFromRules builds a decide function that evaluates rules in
// order against the state's JSON object form and returns the first
// matching target, or the fallback. A rule whose expression fails to
// evaluate is skipped with a warning.
func decideFromRules[S any](rules []RouteDef, fallback string) DecideFunc[S] {
	return func(ctx Context, state S) string {
		vars := stateVars(state)
		for _, r := range rules {
			ok, err := expr.Eval(r.When, vars)
			if err != nil {
				ctx.Logger().Warn("route expression failed",
					"when", r.When,
					"error", err.Error(),
				)
				continue
			}
			if ok {
				return r.To
			}
		}
		return fallback
	}
}

// stateVars exposes a state value as a variable map by round-tripping
// it through JSON. Non-object states yield an empty map, so their
// rules never match and routing falls to the default.
func stateVars(state any) map[string]any {
	raw, err := json.Marshal(state)
	if err != nil {
		return nil
	}
	var vars map[string]any
	if err := json.Unmarshal(raw, &vars); err != nil {
		return nil
	}
	return vars
}
