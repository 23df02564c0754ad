package expressions

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// celVariables lists the evaluation-context keys exposed to CEL programs.
// User context is only reachable through userContext.* in CEL, never flattened.
var celVariables = []string{"userContext", "elapsedTimeMs", "timePressure", "stateHistory", "decisionHistory"}

// CELEngine backs the $cel branch predicate with Google's Common Expression
// Language. Safe for concurrent use.
type CELEngine struct {
	env      *cel.Env
	programs programCache[cel.Program]
}

// NewCELEngine creates a new CEL expression engine with a sandboxed environment.
// The environment exposes the branch evaluation context:
//   - userContext:     map(string, dyn), caller-supplied trainee context
//   - elapsedTimeMs:   dyn (double), time spent in the current state
//   - timePressure:    dyn (double), elapsed fraction of the state time limit
//   - stateHistory:    list(dyn), visited state ids, oldest first
//   - decisionHistory: list(dyn), accepted decision ids, oldest first
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("userContext", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("elapsedTimeMs", cel.DynType),
		cel.Variable("timePressure", cel.DynType),
		cel.Variable("stateHistory", cel.ListType(cel.DynType)),
		cel.Variable("decisionHistory", cel.ListType(cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEngine{env: env}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return "cel"
}

// Evaluate runs expression against the declared variables of data.
func (e *CELEngine) Evaluate(ctx context.Context, expression string, data map[string]any) (any, error) {
	prg, err := e.program(expression)
	if err != nil {
		return nil, err
	}

	out, _, err := prg.ContextEval(ctx, buildActivation(data))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeExecution,
			"CEL evaluation failed for %q: %s", expression, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": expression})
	}

	return out.Value(), nil
}

// Compile checks that expression type-checks against the branch environment.
func (e *CELEngine) Compile(expression string) error {
	_, err := e.program(expression)
	return err
}

func (e *CELEngine) program(expression string) (cel.Program, error) {
	if expression == "" {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty CEL expression")
	}
	return e.programs.get(expression, func(src string) (cel.Program, error) {
		ast, issues := e.env.Compile(src)
		if issues != nil && issues.Err() != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"CEL compile error in %q: %s", src, issues.Err().Error()).
				WithCause(issues.Err()).
				WithDetails(map[string]any{"expression": src})
		}
		prg, err := e.env.Program(ast)
		if err != nil {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"CEL program error for %q: %s", src, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"expression": src})
		}
		return prg, nil
	})
}

// buildActivation picks the declared variables out of the evaluation context.
// Missing keys get zero values so programs never hit unbound-variable errors.
func buildActivation(data map[string]any) map[string]any {
	activation := make(map[string]any, len(celVariables))

	for _, key := range celVariables {
		if v, ok := data[key]; ok && v != nil {
			activation[key] = v
			continue
		}
		switch key {
		case "userContext":
			activation[key] = map[string]any{}
		case "stateHistory", "decisionHistory":
			activation[key] = []any{}
		default:
			activation[key] = 0.0
		}
	}

	return activation
}

var _ Engine = (*CELEngine)(nil)
