package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Engine evaluates expression predicates attached to decision branches.
// Three implementations: CEL ($cel), Expr ($expr), GoJQ ($jq).
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, expression string, data map[string]any) (any, error)
}

// EvaluateBool runs expression on engine and requires a boolean result.
func EvaluateBool(ctx context.Context, engine Engine, expression string, data map[string]any) (bool, error) {
	out, err := engine.Evaluate(ctx, expression, data)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"%s expression %q must evaluate to a boolean, got %s", engine.Name(), expression, typeName(out)).
			WithDetails(map[string]any{"expression": expression})
	}
	return b, nil
}

// Truthy applies jq truthiness: everything except false and null is true.
func Truthy(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	default:
		return true
	}
}

func typeName(v any) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%T", v)
}

// programCache holds compiled programs keyed by their source text.
type programCache[P any] struct {
	mu       sync.RWMutex
	programs map[string]P
}

// get returns the cached program for src, compiling it on first use. A
// failed compile is not cached.
func (c *programCache[P]) get(src string, compile func(string) (P, error)) (P, error) {
	c.mu.RLock()
	prg, ok := c.programs[src]
	c.mu.RUnlock()
	if ok {
		return prg, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if prg, ok := c.programs[src]; ok {
		return prg, nil
	}
	prg, err := compile(src)
	if err != nil {
		return prg, err
	}
	if c.programs == nil {
		c.programs = make(map[string]P)
	}
	c.programs[src] = prg
	return prg, nil
}
