package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationResult_EmptyIsValid(t *testing.T) {
	r := &ValidationResult{}
	assert.True(t, r.Valid())
	assert.Empty(t, r.Issues())
}

func TestValidationResult_Errorf(t *testing.T) {
	r := &ValidationResult{}
	r.Errorf("states[0].decisions[1]", "decision %s is required", "id")

	assert.False(t, r.Valid())
	require.Len(t, r.Errors, 1)
	assert.Equal(t, ValidationIssue{
		Path:     "states[0].decisions[1]",
		Code:     ErrCodeValidation,
		Message:  "decision id is required",
		Severity: SeverityError,
	}, r.Errors[0])
}

func TestValidationResult_Warnf(t *testing.T) {
	r := &ValidationResult{}
	r.Warnf("states[island]", "state %q is unreachable", "island")

	assert.True(t, r.Valid(), "warnings alone should not make result invalid")
	require.Len(t, r.Warnings, 1)
	assert.Equal(t, SeverityWarning, r.Warnings[0].Severity)
	assert.Equal(t, `state "island" is unreachable`, r.Warnings[0].Message)
}

func TestValidationResult_Add(t *testing.T) {
	r := &ValidationResult{}
	r.Add(ValidationIssue{Path: "branches[0]", Code: ErrCodeNotFound, Message: "no such state"})
	r.Add(ValidationIssue{Path: "states", Code: ErrCodeValidation, Message: "no terminal", Severity: SeverityWarning})

	require.Len(t, r.Errors, 1)
	assert.Equal(t, SeverityError, r.Errors[0].Severity, "empty severity is an error")
	assert.Equal(t, ErrCodeNotFound, r.Errors[0].Code)
	require.Len(t, r.Warnings, 1)
}

func TestValidationResult_Merge(t *testing.T) {
	r1 := &ValidationResult{}
	r1.Errorf("/", "err1")
	r1.Warnf("/", "warn1")

	r2 := &ValidationResult{}
	r2.Errorf("branches[0]", "err2")
	r2.Warnf("branches[1]", "warn2")

	r1.Merge(r2)
	r1.Merge(nil)

	assert.Equal(t, []string{"err1", "err2"}, r1.ErrorMessages())
	assert.Len(t, r1.Warnings, 2)
}

func TestValidationResult_Issues(t *testing.T) {
	r := &ValidationResult{}
	r.Warnf("states[lagoon]", "unreachable")
	r.Errorf("states[1].id", "duplicate")

	issues := r.Issues()
	require.Len(t, issues, 2)
	assert.Equal(t, "error   states[1].id: duplicate", issues[0].String())
	assert.Equal(t, "warning states[lagoon]: unreachable", issues[1].String())
}

func TestValidationResult_ToError_Valid(t *testing.T) {
	r := &ValidationResult{}
	r.Warnf("/", "just a warning")
	assert.Nil(t, r.ToError())
}

func TestValidationResult_ToError_SingleError(t *testing.T) {
	r := &ValidationResult{}
	r.Errorf("initial_state_id", "Initial state not found: %s", "start")

	err := r.ToError()
	require.NotNil(t, err)

	dErr, ok := err.(*DrillError)
	require.True(t, ok)
	assert.Equal(t, ErrCodeValidation, dErr.Code)
	assert.Equal(t, "Initial state not found: start", dErr.Message)
	assert.Equal(t, 1, dErr.Details["error_count"])
}

func TestValidationResult_ToError_MultipleErrors(t *testing.T) {
	r := &ValidationResult{}
	r.Errorf("/", "err1")
	r.Errorf("/", "err2")
	r.Warnf("/", "warn1")

	err := r.ToError()
	require.NotNil(t, err)

	dErr, ok := err.(*DrillError)
	require.True(t, ok)
	assert.Contains(t, dErr.Message, "2 errors")
	assert.Equal(t, 2, dErr.Details["error_count"])
	assert.Equal(t, 1, dErr.Details["warning_count"])
}
