// Package expr evaluates small boolean expressions against a variable
// map. It backs the `when` clauses of declarative graph definitions.
//
// Supported forms:
//
//	status == "ready"
//	attempts >= 3
//	done
//	not approved
//	severity > 2 and env != "prod"
//	tags contains "urgent"
//
// Variables resolve against the map with dotted paths descending into
// nested maps ("review.score"). A bare variable evaluates to its
// truthiness: false for nil, false, zero, and the empty string.
package expr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Eval evaluates a boolean expression against the provided variables.
func Eval(expression string, vars map[string]any) (bool, error) {
	expression = strings.TrimSpace(expression)
	if expression == "" {
		return false, nil
	}

	if rest, ok := strings.CutPrefix(expression, "not "); ok {
		v, err := Eval(rest, vars)
		return !v, err
	}
	if rest, ok := strings.CutPrefix(expression, "!"); ok {
		v, err := Eval(rest, vars)
		return !v, err
	}

	if left, right, ok := cut(expression, " and "); ok {
		l, err := Eval(left, vars)
		if err != nil {
			return false, err
		}
		if !l {
			return false, nil
		}
		return Eval(right, vars)
	}
	if left, right, ok := cut(expression, " or "); ok {
		l, err := Eval(left, vars)
		if err != nil {
			return false, err
		}
		if l {
			return true, nil
		}
		return Eval(right, vars)
	}

	// Two-character operators before their one-character prefixes.
	for _, op := range []string{"==", "!=", ">=", "<=", ">", "<", "contains"} {
		sep := " " + op + " "
		if left, right, ok := cut(expression, sep); ok {
			return compare(op, resolve(left, vars), resolve(right, vars))
		}
	}

	// Bare operand: truthiness.
	return truthy(resolve(expression, vars)), nil
}

// cut splits on the first occurrence of sep outside quoted literals, so
// a connective or operator inside a string ("salt and pepper") does not
// split the expression.
func cut(s, sep string) (left, right string, ok bool) {
	var quote byte
	for i := 0; i+len(sep) <= len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote {
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if s[i:i+len(sep)] == sep {
			return s[:i], s[i+len(sep):], true
		}
	}
	return s, "", false
}

// compare applies a binary operator to two resolved values.
func compare(op string, left, right any) (bool, error) {
	switch op {
	case "==":
		return equal(left, right), nil
	case "!=":
		return !equal(left, right), nil
	case "contains":
		return contains(left, right)
	}

	l, lok := toFloat(left)
	r, rok := toFloat(right)
	if !lok || !rok {
		return false, fmt.Errorf("expr: ordering comparison needs numbers, got %T and %T", left, right)
	}

	switch op {
	case ">":
		return l > r, nil
	case "<":
		return l < r, nil
	case ">=":
		return l >= r, nil
	case "<=":
		return l <= r, nil
	}
	return false, fmt.Errorf("expr: unknown operator %q", op)
}

// resolve turns a token into a value: a quoted string, boolean, null,
// number, or a dotted variable path into vars.
func resolve(token string, vars map[string]any) any {
	token = strings.TrimSpace(token)

	if len(token) >= 2 {
		if (token[0] == '"' && token[len(token)-1] == '"') ||
			(token[0] == '\'' && token[len(token)-1] == '\'') {
			return token[1 : len(token)-1]
		}
	}

	switch token {
	case "true":
		return true
	case "false":
		return false
	case "null", "nil":
		return nil
	}

	if f, err := strconv.ParseFloat(token, 64); err == nil {
		return f
	}

	return lookup(token, vars)
}

// lookup resolves a dotted path through nested maps.
func lookup(path string, vars map[string]any) any {
	var current any = vars
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current = m[part]
	}
	return current
}

func equal(left, right any) bool {
	if l, lok := toFloat(left); lok {
		if r, rok := toFloat(right); rok {
			return l == r
		}
	}
	return left == right
}

func contains(left, right any) (bool, error) {
	needle, ok := right.(string)
	if !ok {
		return false, fmt.Errorf("expr: contains needs a string needle, got %T", right)
	}
	switch h := left.(type) {
	case string:
		return strings.Contains(h, needle), nil
	case []any:
		for _, item := range h {
			if s, ok := item.(string); ok && s == needle {
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("expr: contains needs a string or list haystack, got %T", left)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case int:
		return t != 0
	case int64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}
