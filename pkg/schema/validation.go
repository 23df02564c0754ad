package schema

import "fmt"

// ValidationSeverity indicates whether an issue is an error or warning.
type ValidationSeverity string

const (
	SeverityError   ValidationSeverity = "error"
	SeverityWarning ValidationSeverity = "warning"
)

// ValidationIssue is a single problem found in a scenario document. Path
// locates it, e.g. states[2].decisions[0].id or branches[4].conditions.
type ValidationIssue struct {
	Path     string             `json:"path"`
	Code     string             `json:"code"`
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("%-7s %s: %s", i.Severity, i.Path, i.Message)
}

// ValidationResult collects the issues of one scenario validation run.
// Errors reject the scenario; warnings are reported and accepted.
type ValidationResult struct {
	Errors   []ValidationIssue `json:"errors,omitempty"`
	Warnings []ValidationIssue `json:"warnings,omitempty"`
}

// Valid reports whether no error was recorded.
func (r *ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Errorf records a VALIDATION_ERROR issue at path.
func (r *ValidationResult) Errorf(path, format string, args ...any) {
	r.Add(ValidationIssue{Path: path, Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...), Severity: SeverityError})
}

// Warnf records a warning at path.
func (r *ValidationResult) Warnf(path, format string, args ...any) {
	r.Add(ValidationIssue{Path: path, Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...), Severity: SeverityWarning})
}

// Add records issue under its severity. An empty severity counts as an error.
func (r *ValidationResult) Add(issue ValidationIssue) {
	if issue.Severity == SeverityWarning {
		r.Warnings = append(r.Warnings, issue)
		return
	}
	issue.Severity = SeverityError
	r.Errors = append(r.Errors, issue)
}

// Merge appends the issues of other, keeping their order.
func (r *ValidationResult) Merge(other *ValidationResult) {
	if other == nil {
		return
	}
	r.Errors = append(r.Errors, other.Errors...)
	r.Warnings = append(r.Warnings, other.Warnings...)
}

// Issues returns errors followed by warnings.
func (r *ValidationResult) Issues() []ValidationIssue {
	out := make([]ValidationIssue, 0, len(r.Errors)+len(r.Warnings))
	out = append(out, r.Errors...)
	return append(out, r.Warnings...)
}

// ErrorMessages returns the messages of all error-severity issues in order.
func (r *ValidationResult) ErrorMessages() []string {
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Message)
	}
	return msgs
}

// ToError returns nil for a valid result and otherwise a VALIDATION_ERROR
// carrying every issue in its details.
func (r *ValidationResult) ToError() error {
	if r.Valid() {
		return nil
	}

	msg := r.Errors[0].Message
	if len(r.Errors) > 1 {
		msg = fmt.Sprintf("scenario validation failed with %d errors", len(r.Errors))
	}
	return NewError(ErrCodeValidation, msg).
		WithDetails(map[string]any{
			"error_count":   len(r.Errors),
			"warning_count": len(r.Warnings),
			"errors":        r.Errors,
			"warnings":      r.Warnings,
		})
}
