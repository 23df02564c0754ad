// Package loader reads scenario documents from YAML or JSON and runs them
// through the authoring validation pipeline.
package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/rendis/crisisdrill/internal/validation"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// Validator is the validation stage applied after parsing.
// Satisfied by *validation.GraphValidator.
type Validator interface {
	Validate(cfg *schema.ScenarioConfig) *schema.ValidationResult
}

var _ Validator = (*validation.GraphValidator)(nil)

// Loader parses and validates scenario documents.
type Loader struct {
	validator Validator
}

// New creates a Loader. A nil validator skips validation.
func New(v Validator) *Loader {
	return &Loader{validator: v}
}

// Parse decodes a YAML or JSON scenario document. JSON is read through the
// YAML decoder too, so both share one path. Unknown fields are rejected.
func Parse(data []byte) (*schema.ScenarioConfig, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, schema.NewError(schema.ErrCodeValidation, "empty scenario document")
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "malformed scenario document").WithCause(err)
	}
	if _, ok := doc.(map[string]any); !ok {
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "scenario document must be a mapping, got %T", doc)
	}

	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "scenario document is not representable as JSON").WithCause(err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	var cfg schema.ScenarioConfig
	if err := dec.Decode(&cfg); err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "invalid scenario document").WithCause(err)
	}
	return &cfg, nil
}

// Load parses data and validates it. The returned error covers parse
// failures only; validation findings, warnings included, are in the result.
func (l *Loader) Load(data []byte) (*schema.ScenarioConfig, *schema.ValidationResult, error) {
	cfg, err := Parse(data)
	if err != nil {
		return nil, nil, err
	}
	if l.validator == nil {
		return cfg, &schema.ValidationResult{}, nil
	}
	return cfg, l.validator.Validate(cfg), nil
}

// LoadReader is Load over the full contents of r.
func (l *Loader) LoadReader(r io.Reader) (*schema.ScenarioConfig, *schema.ValidationResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("read scenario document: %w", err)
	}
	return l.Load(data)
}

// LoadFile is Load over the file at path.
func (l *Loader) LoadFile(path string) (*schema.ScenarioConfig, *schema.ValidationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, schema.NewErrorf(schema.ErrCodeNotFound, "scenario file %s not found", path).WithCause(err)
		}
		return nil, nil, fmt.Errorf("read scenario file %s: %w", path, err)
	}
	cfg, result, err := l.Load(data)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, result, nil
}

// Must loads and fails on any validation error. Warnings are tolerated.
func (l *Loader) Must(data []byte) (*schema.ScenarioConfig, error) {
	cfg, result, err := l.Load(data)
	if err != nil {
		return nil, err
	}
	if err := result.ToError(); err != nil {
		return nil, err
	}
	return cfg, nil
}
