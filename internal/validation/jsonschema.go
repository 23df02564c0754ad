package validation

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rendis/crisisdrill/pkg/schema"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

const scenarioSchemaURL = "https://crisisdrill.dev/schemas/scenario.json"

// scenarioSchemaJSON is the JSON Schema for authored scenario documents.
const scenarioSchemaJSON = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$id": "https://crisisdrill.dev/schemas/scenario.json",
  "type": "object",
  "required": ["id", "initial_state_id", "states"],
  "properties": {
    "id": { "type": "string", "minLength": 1 },
    "title": { "type": "string" },
    "description": { "type": "string" },
    "domain": { "type": "string" },
    "difficulty": { "type": "integer", "minimum": 1, "maximum": 10 },
    "estimated_duration_minutes": { "type": "integer", "minimum": 0 },
    "learning_objectives": {
      "type": "array",
      "items": { "type": "string" }
    },
    "user_context_schema": { "type": "object" },
    "initial_state_id": { "type": "string", "minLength": 1 },
    "states": {
      "type": "array",
      "minItems": 1,
      "items": { "$ref": "#/$defs/state" }
    },
    "branches": {
      "type": "array",
      "items": { "$ref": "#/$defs/branch" }
    }
  },
  "additionalProperties": false,
  "$defs": {
    "risk_level": {
      "type": "string",
      "enum": ["low", "medium", "high"]
    },
    "consequence": {
      "type": "object",
      "required": ["id", "kind", "impact_score", "probability"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "kind": { "type": "string", "enum": ["direct", "second_order"] },
        "description": { "type": "string" },
        "impact_score": { "type": "number", "minimum": -100, "maximum": 100 },
        "probability": { "type": "number", "minimum": 0, "maximum": 1 },
        "delay_minutes": { "type": "integer", "minimum": 0 }
      },
      "additionalProperties": false
    },
    "decision": {
      "type": "object",
      "required": ["id", "consequences"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "text": { "type": "string" },
        "consequences": {
          "type": "array",
          "minItems": 1,
          "maxItems": 6,
          "items": { "$ref": "#/$defs/consequence" }
        },
        "next_state_id": { "type": "string" },
        "risk_level": { "$ref": "#/$defs/risk_level" },
        "time_weight": { "type": "number", "minimum": 0 }
      },
      "additionalProperties": false
    },
    "character": {
      "type": "object",
      "required": ["id", "role"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "name": { "type": "string" },
        "role": { "type": "string", "minLength": 1 },
        "personality_traits": {
          "type": "array",
          "maxItems": 10,
          "items": { "type": "string" }
        },
        "communication_style": { "type": "string" },
        "expertise_areas": {
          "type": "array",
          "maxItems": 10,
          "items": { "type": "string" }
        }
      },
      "additionalProperties": false
    },
    "state": {
      "type": "object",
      "required": ["id"],
      "properties": {
        "id": { "type": "string", "minLength": 1 },
        "description": { "type": "string" },
        "context": { "type": "string" },
        "decisions": {
          "type": "array",
          "maxItems": 6,
          "items": { "$ref": "#/$defs/decision" }
        },
        "time_limit_seconds": { "type": "integer", "minimum": 1 },
        "environmental_factors": {
          "type": "array",
          "maxItems": 10,
          "items": { "type": "string" }
        },
        "characters": {
          "type": "array",
          "maxItems": 5,
          "items": { "$ref": "#/$defs/character" }
        },
        "risk_level": { "$ref": "#/$defs/risk_level" },
        "criticality_score": { "type": "integer", "minimum": 1, "maximum": 10 }
      },
      "additionalProperties": false
    },
    "branch": {
      "type": "object",
      "required": ["from_state_id", "decision_id", "to_state_id"],
      "properties": {
        "from_state_id": { "type": "string", "minLength": 1 },
        "decision_id": { "type": "string", "minLength": 1 },
        "to_state_id": { "type": "string", "minLength": 1 },
        "conditions": { "type": "object" },
        "transition_effects": {
          "type": "array",
          "maxItems": 5,
          "items": { "type": "string" }
        }
      },
      "additionalProperties": false
    }
  }
}`

// JSONSchemaValidator validates scenario documents and trainee user context
// against JSON Schema Draft 2020-12. It is safe for concurrent use.
type JSONSchemaValidator struct {
	scenarioSchema *jsonschema.Schema

	// mu guards the cache of compiled user-context schemas.
	mu    sync.RWMutex
	cache map[string]*jsonschema.Schema
}

// NewJSONSchemaValidator creates a JSONSchemaValidator with the scenario schema pre-compiled.
func NewJSONSchemaValidator() (*JSONSchemaValidator, error) {
	c := newCompiler()

	schemaDoc, err := jsonschema.UnmarshalJSON(strings.NewReader(scenarioSchemaJSON))
	if err != nil {
		return nil, fmt.Errorf("unmarshal scenario schema: %w", err)
	}
	if err := c.AddResource(scenarioSchemaURL, schemaDoc); err != nil {
		return nil, fmt.Errorf("add scenario schema resource: %w", err)
	}

	compiled, err := c.Compile(scenarioSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile scenario schema: %w", err)
	}

	return &JSONSchemaValidator{
		scenarioSchema: compiled,
		cache:          make(map[string]*jsonschema.Schema),
	}, nil
}

// ValidateScenario validates a scenario document. doc may be a
// *schema.ScenarioConfig or a generic decoded document (map[string]any).
func (v *JSONSchemaValidator) ValidateScenario(doc any) error {
	if doc == nil {
		return schema.NewError(schema.ErrCodeValidation, "scenario document is nil")
	}

	value, err := toJSONValue(doc)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize scenario document").WithCause(err)
	}

	if err := v.scenarioSchema.Validate(value); err != nil {
		return toDrillError(err)
	}
	return nil
}

// ValidateUserContext validates a trainee's user context against a scenario's
// user_context_schema. An empty schema accepts anything.
func (v *JSONSchemaValidator) ValidateUserContext(userContext map[string]any, contextSchema map[string]any) error {
	if len(contextSchema) == 0 {
		return nil
	}
	if userContext == nil {
		userContext = map[string]any{}
	}

	raw, err := json.Marshal(contextSchema)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid user context schema").WithCause(err)
	}
	compiled, err := v.getOrCompile(raw)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "invalid user context schema").WithCause(err)
	}

	value, err := toJSONValue(userContext)
	if err != nil {
		return schema.NewError(schema.ErrCodeValidation, "failed to serialize user context").WithCause(err)
	}

	if err := compiled.Validate(value); err != nil {
		return toDrillError(err)
	}
	return nil
}

// getOrCompile returns a cached compiled schema or compiles and caches a new one.
func (v *JSONSchemaValidator) getOrCompile(schemaBytes []byte) (*jsonschema.Schema, error) {
	key := string(schemaBytes)

	v.mu.RLock()
	if cached, ok := v.cache[key]; ok {
		v.mu.RUnlock()
		return cached, nil
	}
	v.mu.RUnlock()

	v.mu.Lock()
	defer v.mu.Unlock()

	if cached, ok := v.cache[key]; ok {
		return cached, nil
	}

	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(key))
	if err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	// Fresh compiler and URL per schema so resources never collide.
	url := fmt.Sprintf("crisisdrill://user-context/%d", len(v.cache))
	c := newCompiler()
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}

	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	v.cache[key] = compiled
	return compiled, nil
}

func newCompiler() *jsonschema.Compiler {
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	return c
}

// toJSONValue round-trips a Go value through JSON so numbers become
// json.Number, as the jsonschema library requires.
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// toDrillError converts a jsonschema.ValidationError into a DrillError whose
// details carry one "location: message" entry per leaf violation.
func toDrillError(err error) *schema.DrillError {
	verr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return schema.NewError(schema.ErrCodeValidation, err.Error())
	}

	violations := collectViolations(verr)
	if len(violations) == 0 {
		return schema.NewError(schema.ErrCodeValidation, verr.Error())
	}

	if len(violations) == 1 {
		return schema.NewError(schema.ErrCodeValidation, violations[0]).
			WithDetails(map[string]any{"violations": violations})
	}

	msg := fmt.Sprintf("validation failed with %d errors", len(violations))
	return schema.NewError(schema.ErrCodeValidation, msg).
		WithDetails(map[string]any{"violations": violations})
}

// collectViolations walks a ValidationError tree and collects leaf messages
// with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
