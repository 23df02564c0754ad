package validation

import (
	"strings"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// ConditionChecker compiles a branch condition map without evaluating it.
// Satisfied by *conditions.Evaluator.
type ConditionChecker interface {
	Check(conds map[string]any) error
}

// GraphValidator orchestrates the three-stage scenario validation pipeline:
// 1. Structural (JSON Schema)
// 2. Semantic (integrity, uniqueness, branch agreement, condition syntax)
// 3. Reachability (BFS from the initial state, terminal presence)
type GraphValidator struct {
	jsonSchema *JSONSchemaValidator
	checker    ConditionChecker
}

// NewGraphValidator creates a GraphValidator.
// checker may be nil to skip condition compilation.
func NewGraphValidator(checker ConditionChecker) (*GraphValidator, error) {
	jsv, err := NewJSONSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &GraphValidator{
		jsonSchema: jsv,
		checker:    checker,
	}, nil
}

// Validate runs the full pipeline and returns an aggregated result.
// Structural errors short-circuit the semantic and reachability stages.
func (gv *GraphValidator) Validate(cfg *schema.ScenarioConfig) *schema.ValidationResult {
	if cfg == nil {
		r := &schema.ValidationResult{}
		r.Errorf("/", "scenario document is nil")
		return r
	}

	result := validateStructural(gv.jsonSchema, cfg)
	if !result.Valid() {
		return result
	}

	g := cfg.Graph()
	result.Merge(validateSemantic(cfg, &g, gv.checker))

	if result.Valid() {
		result.Merge(validateReachability(&g))
	}

	return result
}

// ValidateConfig returns Validate's result as an error, nil when valid.
func (gv *GraphValidator) ValidateConfig(cfg *schema.ScenarioConfig) error {
	return gv.Validate(cfg).ToError()
}

// ValidateUserContext delegates to the underlying JSONSchemaValidator.
func (gv *GraphValidator) ValidateUserContext(userContext, contextSchema map[string]any) error {
	return gv.jsonSchema.ValidateUserContext(userContext, contextSchema)
}

// validateStructural converts JSONSchemaValidator output into a ValidationResult.
func validateStructural(v *JSONSchemaValidator, cfg *schema.ScenarioConfig) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	err := v.ValidateScenario(cfg)
	if err == nil {
		return result
	}

	drillErr, ok := err.(*schema.DrillError)
	if !ok {
		result.Errorf("/", "%s", err.Error())
		return result
	}

	if drillErr.Details != nil {
		if violations, ok := drillErr.Details["violations"].([]string); ok {
			for _, v := range violations {
				path, msg := splitViolation(v)
				result.Errorf(path, "%s", msg)
			}
			return result
		}
	}
	result.Errorf("/", "%s", drillErr.Message)
	return result
}

// splitViolation separates the instance location collectViolations puts in
// front of each message.
func splitViolation(v string) (path, msg string) {
	loc, rest, ok := strings.Cut(v, ": ")
	if !ok || !strings.HasPrefix(loc, "/") {
		return "/", v
	}
	return loc, rest
}
