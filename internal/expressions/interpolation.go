package expressions

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Roots a ${{...}} reference in scenario text may start from.
const (
	RootUserContext = "userContext"
	RootSession     = "session"
)

// TextScope is the data available to ${{...}} references in scenario text.
type TextScope struct {
	UserContext map[string]any // trainee-supplied context
	Session     map[string]any // session metadata: id, trainee_id, scenario_id, risk_profile
}

// HasInterpolation reports whether s contains any ${{...}} reference.
func HasInterpolation(s string) bool {
	return strings.Contains(s, "${{")
}

// References returns the trimmed expressions of every ${{...}} token in s,
// in order. Malformed tokens are an error.
func References(s string) ([]string, error) {
	var refs []string
	err := scan(s, func(expr string) (string, error) {
		refs = append(refs, expr)
		return "", nil
	})
	return refs, err
}

// CheckReferences validates the syntax and root of every reference in s
// without resolving it.
func CheckReferences(s string) error {
	refs, err := References(s)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		root, _, _ := strings.Cut(ref, ".")
		if root != RootUserContext && root != RootSession {
			return schema.NewErrorf(schema.ErrCodeValidation,
				"unknown reference root %q in ${{%s}}; expected %s or %s", root, ref, RootUserContext, RootSession).
				WithDetails(map[string]any{"expression": ref})
		}
	}
	return nil
}

// Interpolate replaces each ${{ root.path }} in s with its value from scope.
// Strings are inlined as is; other values are JSON encoded.
func Interpolate(s string, scope TextScope) (string, error) {
	if !HasInterpolation(s) {
		return s, nil
	}
	return scanReplace(s, func(expr string) (string, error) {
		root, path, _ := strings.Cut(expr, ".")
		var data map[string]any
		switch root {
		case RootUserContext:
			data = scope.UserContext
		case RootSession:
			data = scope.Session
		default:
			return "", schema.NewErrorf(schema.ErrCodeValidation, "unknown reference root %q in ${{%s}}", root, expr).
				WithDetails(map[string]any{"expression": expr})
		}
		if path == "" {
			return inline(data), nil
		}
		val, err := resolvePath(data, path, expr)
		if err != nil {
			return "", err
		}
		return inline(val), nil
	})
}

func scan(s string, fn func(expr string) (string, error)) error {
	_, err := scanReplace(s, fn)
	return err
}

// scanReplace walks the ${{...}} tokens of s, substituting fn's result.
func scanReplace(s string, fn func(expr string) (string, error)) (string, error) {
	var out strings.Builder
	out.Grow(len(s))

	i := 0
	for i < len(s) {
		idx := strings.Index(s[i:], "${{")
		if idx == -1 {
			out.WriteString(s[i:])
			break
		}
		out.WriteString(s[i : i+idx])
		start := i + idx + 3

		end := strings.Index(s[start:], "}}")
		if end == -1 {
			return "", schema.NewError(schema.ErrCodeValidation, "unclosed ${{ reference")
		}
		end += start

		expr := strings.TrimSpace(s[start:end])
		if strings.Contains(expr, "${{") {
			return "", schema.NewError(schema.ErrCodeValidation, "nested ${{ reference")
		}
		if expr == "" {
			return "", schema.NewError(schema.ErrCodeValidation, "empty ${{ }} reference")
		}

		val, err := fn(expr)
		if err != nil {
			return "", err
		}
		out.WriteString(val)
		i = end + 2
	}
	return out.String(), nil
}

// resolvePath walks a dot-delimited path through nested maps. A key that
// itself contains dots is tried verbatim first.
func resolvePath(data map[string]any, path, expr string) (any, error) {
	if val, ok := data[path]; ok {
		return val, nil
	}

	var current any = data
	for _, seg := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"cannot traverse into %T at %q in ${{%s}}", current, seg, expr).
				WithDetails(map[string]any{"expression": expr})
		}
		val, ok := m[seg]
		if !ok {
			keys := mapKeys(m)
			return nil, schema.NewErrorf(schema.ErrCodeValidation,
				"field %q not found in ${{%s}}; available: [%s]", seg, expr, strings.Join(keys, ", ")).
				WithDetails(map[string]any{"expression": expr, "available_fields": keys})
		}
		current = val
	}
	return current, nil
}

func inline(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case nil:
		return "null"
	case bool, float64, int, int64:
		return fmt.Sprint(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(b)
	}
}

func mapKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
