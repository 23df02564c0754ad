package conditions

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Evaluation context keys reserved by the engine. They shadow user keys of
// the same name at the root.
const (
	KeyUserContext     = "userContext"
	KeyElapsedTimeMs   = "elapsedTimeMs"
	KeyTimePressure    = "timePressure"
	KeyStateHistory    = "stateHistory"
	KeyDecisionHistory = "decisionHistory"
)

// Snapshot is the runtime input from which a branch evaluation context is built.
type Snapshot struct {
	UserContext     map[string]any
	ElapsedTimeMs   int64
	TimePressure    float64
	StateHistory    []string
	DecisionHistory []string // accepted decision ids, oldest first
}

// BuildContext assembles the flattened evaluation context. User context keys
// appear both at the root and under userContext.*; engine keys win on
// collision. Every value is deep-copied so predicates cannot reach caller data.
func BuildContext(s Snapshot) map[string]any {
	env := make(map[string]any, len(s.UserContext)+5)
	for k, v := range s.UserContext {
		env[k] = deepCopyAny(v)
	}

	env[KeyUserContext] = deepCopyMap(s.UserContext)
	env[KeyElapsedTimeMs] = float64(s.ElapsedTimeMs)
	env[KeyTimePressure] = s.TimePressure
	env[KeyStateHistory] = stringsToAny(s.StateHistory)
	env[KeyDecisionHistory] = stringsToAny(s.DecisionHistory)
	return env
}

// Lookup resolves a dot-delimited path in env. A key containing dots is tried
// verbatim first. Segments index arrays by number, and "length" yields the
// size of an array or string. On a map "length" is an ordinary key.
func Lookup(env map[string]any, path string) (any, bool) {
	if env == nil || path == "" {
		return nil, false
	}
	if v, ok := env[path]; ok {
		return v, true
	}

	var current any = env
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return nil, false
		}
		switch v := current.(type) {
		case map[string]any:
			next, ok := v[seg]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			if seg == "length" {
				current = float64(len(v))
				continue
			}
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		case []string:
			if seg == "length" {
				current = float64(len(v))
				continue
			}
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(v) {
				return nil, false
			}
			current = v[idx]
		case string:
			if seg != "length" {
				return nil, false
			}
			current = float64(len(v))
		default:
			return nil, false
		}
	}
	return current, true
}

func stringsToAny(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func deepCopyMap(m map[string]any) map[string]any {
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = deepCopyAny(v)
	}
	return cp
}

// deepCopyAny recursively deep-copies a JSON-like value.
func deepCopyAny(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cp := make([]any, len(val))
		for i, item := range val {
			cp[i] = deepCopyAny(item)
		}
		return cp
	case []string:
		return stringsToAny(val)
	case json.RawMessage:
		if val == nil {
			return nil
		}
		cp := make(json.RawMessage, len(val))
		copy(cp, val)
		return cp
	default:
		return v
	}
}
