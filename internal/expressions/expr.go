package expressions

import (
	"context"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// ExprEngine implements the Engine interface using expr-lang/expr. It backs the
// $expr branch predicate, where authors need arithmetic or collection logic the
// comparator operators cannot express, e.g.
//
//	len(stateHistory) > 2 && timePressure < 0.5
//	any(decisionHistory, # == "notify_press")
//
// Programs are compiled without a typed environment: user context keys are
// flattened at the root and differ per session.
type ExprEngine struct {
	programs programCache[*vm.Program]
}

// NewExprEngine creates a new Expr expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return "expr"
}

// Evaluate runs expression with every top-level key of data as a variable.
// Undefined variables evaluate to nil.
func (e *ExprEngine) Evaluate(_ context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	env := data
	if env == nil {
		env = map[string]any{}
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out, nil
}

// Compile checks that expression parses, without evaluating it.
func (e *ExprEngine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *ExprEngine) program(expression string) (*vm.Program, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty expr expression")
	}
	return e.programs.get(expression, func(src string) (*vm.Program, error) {
		prg, err := expr.Compile(src, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"expr compile error in %q: %s", src, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": src})
		}
		return prg, nil
	})
}

var _ Engine = (*ExprEngine)(nil)
