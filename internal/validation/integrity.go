package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// CheckIntegrity performs the static referential checks a scenario graph must
// pass before a session can run on it:
//   - the initial state exists in the state map;
//   - every branch names existing from/to states;
//   - every branch decision exists among its from-state's decisions;
//   - every state other than the initial one is the target of some branch.
//
// It returns one message per violation in a stable order; an empty slice
// means the graph is sound.
func CheckIntegrity(g *schema.ScenarioGraph) []string {
	errs := make([]string, 0)
	if g == nil {
		return append(errs, "Scenario graph is nil")
	}

	initialID := g.InitialState.ID
	if _, ok := g.States[initialID]; !ok {
		errs = append(errs, fmt.Sprintf("Initial state not found: %s", initialID))
	}

	targets := map[string]bool{initialID: true}
	for i, b := range g.Branches {
		from, fromOK := g.States[b.FromStateID]
		if !fromOK {
			errs = append(errs, fmt.Sprintf("Branch %d references unknown from state: %s", i, b.FromStateID))
		}
		if _, ok := g.States[b.ToStateID]; !ok {
			errs = append(errs, fmt.Sprintf("Branch %d references unknown target state: %s", i, b.ToStateID))
		}
		if fromOK {
			if _, ok := from.FindDecision(b.DecisionID); !ok {
				errs = append(errs, fmt.Sprintf("Branch %d references unknown decision %s in state %s", i, b.DecisionID, b.FromStateID))
			}
		}
		targets[b.ToStateID] = true
	}

	ids := make([]string, 0, len(g.States))
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if !targets[id] {
			errs = append(errs, fmt.Sprintf("Orphaned state detected: %s", id))
		}
	}

	return errs
}

// integrityResult wraps CheckIntegrity output as validation errors.
func integrityResult(g *schema.ScenarioGraph) *schema.ValidationResult {
	result := &schema.ValidationResult{}
	for _, msg := range CheckIntegrity(g) {
		result.Errorf("graph", "%s", msg)
	}
	return result
}
