// Package conditions interprets the branch-condition mini-language attached to
// decision branches.
//
// A condition map is a set of predicates that must all hold:
//
//	timePressure:       {$lt: 0.5}             comparator predicate
//	userContext.role:   incident_lead          literal predicate
//	$cel:               '"triage" in stateHistory'   expression predicate
//
// Keys of comparator and literal predicates are dot paths into the evaluation
// context built by BuildContext.
package conditions

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/rendis/crisisdrill/internal/expressions"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// Operator is a comparator accepted inside an object-valued condition.
type Operator string

const (
	OpGt  Operator = "$gt"
	OpGte Operator = "$gte"
	OpLt  Operator = "$lt"
	OpLte Operator = "$lte"
	OpEq  Operator = "$eq"
	OpNe  Operator = "$ne"
	OpIn  Operator = "$in"
	OpNin Operator = "$nin"
)

// Expression predicate keys.
const (
	KeyExpr = "$expr"
	KeyCEL  = "$cel"
	KeyJQ   = "$jq"
)

var knownOperators = map[Operator]bool{
	OpGt: true, OpGte: true, OpLt: true, OpLte: true,
	OpEq: true, OpNe: true, OpIn: true, OpNin: true,
}

// Predicate is one compiled entry of a condition map.
type Predicate interface {
	Key() string
	Eval(ctx context.Context, env map[string]any) (bool, error)
}

type literalPredicate struct {
	path string
	want any
}

func (p literalPredicate) Key() string { return p.path }

func (p literalPredicate) Eval(_ context.Context, env map[string]any) (bool, error) {
	got, _ := Lookup(env, p.path)
	return equal(got, p.want), nil
}

type operand struct {
	op    Operator
	value any
}

type comparatorPredicate struct {
	path     string
	operands []operand
}

func (p comparatorPredicate) Key() string { return p.path }

func (p comparatorPredicate) Eval(_ context.Context, env map[string]any) (bool, error) {
	got, found := Lookup(env, p.path)
	for _, o := range p.operands {
		if !applyOperator(o.op, got, found, o.value) {
			return false, nil
		}
	}
	return true, nil
}

type expressionPredicate struct {
	key        string
	engine     expressions.Engine
	expression string
}

func (p expressionPredicate) Key() string { return p.key }

func (p expressionPredicate) Eval(ctx context.Context, env map[string]any) (bool, error) {
	if h, ok := p.engine.(holder); ok {
		return h.Holds(ctx, p.expression, env)
	}
	return expressions.EvaluateBool(ctx, p.engine, p.expression, env)
}

func applyOperator(op Operator, got any, found bool, want any) bool {
	switch op {
	case OpEq:
		return equal(got, want)
	case OpNe:
		return !equal(got, want)
	case OpIn:
		list, _ := asList(want)
		return found && memberOf(got, list)
	case OpNin:
		list, _ := asList(want)
		return !found || !memberOf(got, list)
	}

	if !found {
		return false
	}
	cmp, ok := order(got, want)
	if !ok {
		return false
	}
	switch op {
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// compiler is implemented by engines that can check an expression without running it.
type compiler interface {
	Compile(expression string) error
}

// holder is implemented by engines whose filters may emit several values.
type holder interface {
	Holds(ctx context.Context, expression string, env map[string]any) (bool, error)
}

// Outcome reports whether a condition map held and which keys failed.
type Outcome struct {
	Passed bool
	Failed []string
}

// Evaluator compiles and evaluates condition maps. Safe for concurrent use.
type Evaluator struct {
	engines map[string]expressions.Engine
}

// NewEvaluator creates an Evaluator with the CEL, Expr and GoJQ engines wired
// to the $cel, $expr and $jq keys.
func NewEvaluator() (*Evaluator, error) {
	celEngine, err := expressions.NewCELEngine()
	if err != nil {
		return nil, err
	}
	return &Evaluator{engines: map[string]expressions.Engine{
		KeyCEL:  celEngine,
		KeyExpr: expressions.NewExprEngine(),
		KeyJQ:   expressions.NewGoJQEngine(),
	}}, nil
}

// Compile turns a condition map into predicates ordered by key.
func (e *Evaluator) Compile(conds map[string]any) ([]Predicate, error) {
	keys := make([]string, 0, len(conds))
	for k := range conds {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	preds := make([]Predicate, 0, len(keys))
	for _, key := range keys {
		p, err := e.compileEntry(key, conds[key])
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return preds, nil
}

func (e *Evaluator) compileEntry(key string, value any) (Predicate, error) {
	if strings.HasPrefix(key, "$") {
		engine, ok := e.engines[key]
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown condition key %q", key)
		}
		expr, ok := value.(string)
		if !ok || expr == "" {
			return nil, schema.NewErrorf(schema.ErrCodeValidation, "condition %s requires a non-empty string expression", key)
		}
		return expressionPredicate{key: key, engine: engine, expression: expr}, nil
	}

	obj, ok := value.(map[string]any)
	if !ok || len(obj) == 0 {
		return literalPredicate{path: key, want: value}, nil
	}

	opCount := 0
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			opCount++
		}
	}
	switch {
	case opCount == 0:
		return literalPredicate{path: key, want: value}, nil
	case opCount != len(obj):
		return nil, schema.NewErrorf(schema.ErrCodeValidation,
			"condition %q mixes operators with plain fields", key)
	}

	ops := make([]string, 0, len(obj))
	for k := range obj {
		ops = append(ops, k)
	}
	sort.Strings(ops)

	operands := make([]operand, 0, len(ops))
	for _, k := range ops {
		op := Operator(k)
		if !knownOperators[op] {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"condition %q uses unsupported operator %s", key, k)
		}
		if op == OpIn || op == OpNin {
			if _, ok := asList(obj[k]); !ok {
				return nil, schema.NewErrorf(schema.ErrCodeValidation,
					"condition %q: %s expects a list", key, k)
			}
		}
		operands = append(operands, operand{op: op, value: obj[k]})
	}
	return comparatorPredicate{path: key, operands: operands}, nil
}

// Check compiles conds and, for expression predicates, compiles the
// expressions themselves. Used by static scenario validation.
func (e *Evaluator) Check(conds map[string]any) error {
	preds, err := e.Compile(conds)
	if err != nil {
		return err
	}
	for _, p := range preds {
		ep, ok := p.(expressionPredicate)
		if !ok {
			continue
		}
		if c, ok := ep.engine.(compiler); ok {
			if err := c.Compile(ep.expression); err != nil {
				return err
			}
		}
	}
	return nil
}

// Evaluate compiles conds and evaluates every predicate against env. All
// predicates must hold. An empty or nil map always passes.
func (e *Evaluator) Evaluate(ctx context.Context, conds map[string]any, env map[string]any) (Outcome, error) {
	if len(conds) == 0 {
		return Outcome{Passed: true}, nil
	}
	preds, err := e.Compile(conds)
	if err != nil {
		return Outcome{}, err
	}

	var failed []string
	for _, p := range preds {
		ok, err := p.Eval(ctx, env)
		if err != nil {
			return Outcome{}, fmt.Errorf("condition %s: %w", p.Key(), err)
		}
		if !ok {
			failed = append(failed, p.Key())
		}
	}
	return Outcome{Passed: len(failed) == 0, Failed: failed}, nil
}
