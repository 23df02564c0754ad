package validation

import (
	"fmt"

	"github.com/rendis/crisisdrill/internal/expressions"
	"github.com/rendis/crisisdrill/pkg/schema"
)

type branchKey struct {
	from, decision string
}

// validateSemantic checks what the JSON schema cannot express: referential
// integrity, id uniqueness, branch/decision agreement and condition syntax.
func validateSemantic(cfg *schema.ScenarioConfig, g *schema.ScenarioGraph, checker ConditionChecker) *schema.ValidationResult {
	result := integrityResult(g)

	seenStates := make(map[string]int, len(cfg.States))
	for i, s := range cfg.States {
		path := fmt.Sprintf("states[%d]", i)
		if first, dup := seenStates[s.ID]; dup {
			result.Errorf(path+".id", "duplicate state id %q (first declared at states[%d])", s.ID, first)
			continue
		}
		seenStates[s.ID] = i
		checkTextReferences(result, path+".description", s.Description)
		checkTextReferences(result, path+".context", s.Context)

		seenDecisions := make(map[string]bool, len(s.Decisions))
		for j, d := range s.Decisions {
			if seenDecisions[d.ID] {
				result.Errorf(fmt.Sprintf("%s.decisions[%d].id", path, j), "duplicate decision id %q in state %q", d.ID, s.ID)
			}
			seenDecisions[d.ID] = true
			checkTextReferences(result, fmt.Sprintf("%s.decisions[%d].text", path, j), d.Text)
		}
	}

	branchTargets := make(map[branchKey]string, len(cfg.Branches))
	for i, b := range cfg.Branches {
		path := fmt.Sprintf("branches[%d]", i)
		key := branchKey{b.FromStateID, b.DecisionID}
		if _, dup := branchTargets[key]; dup {
			result.Errorf(path, "duplicate branch for state %q decision %q", b.FromStateID, b.DecisionID)
			continue
		}
		branchTargets[key] = b.ToStateID

		if checker != nil && len(b.Conditions) > 0 {
			if err := checker.Check(b.Conditions); err != nil {
				result.Errorf(path+".conditions", "invalid conditions: %s", err.Error())
			}
		}
	}

	for i, s := range cfg.States {
		for j, d := range s.Decisions {
			path := fmt.Sprintf("states[%d].decisions[%d]", i, j)
			target, ok := branchTargets[branchKey{s.ID, d.ID}]
			if !ok {
				result.Warnf(path, "decision %q in state %q has no branch and can never be accepted", d.ID, s.ID)
				continue
			}
			if d.NextStateID != "" && d.NextStateID != target {
				result.Warnf(path+".next_state_id", "decision %q names next state %q but its branch leads to %q", d.ID, d.NextStateID, target)
			}
		}
	}

	return result
}

// checkTextReferences flags malformed ${{...}} references in trainee-facing text.
func checkTextReferences(result *schema.ValidationResult, path, text string) {
	if !expressions.HasInterpolation(text) {
		return
	}
	if err := expressions.CheckReferences(text); err != nil {
		result.Errorf(path, "invalid text reference: %s", err.Error())
	}
}
