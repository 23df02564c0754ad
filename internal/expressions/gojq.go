package expressions

import (
	"context"

	"github.com/itchyny/gojq"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// GoJQEngine backs the $jq branch predicate. The filter runs over the whole
// branch evaluation context, e.g.
//
//	any(.stateHistory[]; . == "escalation")
//
// Compiled filters are kept per source text and shared between sessions.
type GoJQEngine struct {
	programs programCache[*gojq.Code]
}

// NewGoJQEngine creates a new GoJQ expression engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Evaluate runs filter against env. No output yields nil, one output is
// returned as is, several are returned as []any in emission order.
func (e *GoJQEngine) Evaluate(ctx context.Context, filter string, env map[string]any) (any, error) {
	outs, err := e.run(ctx, filter, env)
	if err != nil {
		return nil, err
	}
	switch len(outs) {
	case 0:
		return nil, nil
	case 1:
		return outs[0], nil
	default:
		return outs, nil
	}
}

// Holds reports whether filter emits at least one value and every emitted
// value is truthy under jq rules.
func (e *GoJQEngine) Holds(ctx context.Context, filter string, env map[string]any) (bool, error) {
	outs, err := e.run(ctx, filter, env)
	if err != nil {
		return false, err
	}
	if len(outs) == 0 {
		return false, nil
	}
	for _, v := range outs {
		if !Truthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// Compile checks that filter parses and compiles, without running it.
func (e *GoJQEngine) Compile(filter string) error {
	_, err := e.program(filter)
	return err
}

func (e *GoJQEngine) run(ctx context.Context, filter string, env map[string]any) ([]any, error) {
	code, err := e.program(filter)
	if err != nil {
		return nil, err
	}

	var outs []any
	iter := code.RunWithContext(ctx, jqValue(env))
	for {
		v, ok := iter.Next()
		if !ok {
			return outs, nil
		}
		if runErr, isErr := v.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution, "jq filter %q failed: %s", filter, runErr.Error()).
				WithCause(runErr).
				WithDetails(map[string]any{"expression": filter})
		}
		outs = append(outs, v)
	}
}

func (e *GoJQEngine) program(filter string) (*gojq.Code, error) {
	if filter == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty jq expression")
	}
	return e.programs.get(filter, func(src string) (*gojq.Code, error) {
		query, err := gojq.Parse(src)
		if err != nil {
			return nil, jqCompileError("parse", src, err)
		}
		// No environ loader output: $ENV and env are empty inside a scenario.
		code, err := gojq.Compile(query, gojq.WithEnvironLoader(func() []string { return nil }))
		if err != nil {
			return nil, jqCompileError("compile", src, err)
		}
		return code, nil
	})
}

func jqCompileError(stage, filter string, err error) *schema.DrillError {
	return schema.NewErrorf(schema.ErrCodeValidation, "jq %s error in %q: %s", stage, filter, err.Error()).
		WithCause(err).
		WithDetails(map[string]any{"expression": filter})
}

// jqValue rewrites the evaluation context into the value shapes gojq
// accepts: map[string]any, []any and float64 numbers.
func jqValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = jqValue(item)
		}
		return out
	case map[string]string:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = item
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jqValue(item)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = item
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = jqValue(item)
		}
		return out
	case int:
		return float64(val)
	case int32:
		return float64(val)
	case int64:
		return float64(val)
	case float32:
		return float64(val)
	default:
		return v
	}
}

var _ Engine = (*GoJQEngine)(nil)
