package validation

import (
	"fmt"
	"sort"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// validateReachability walks the branch graph breadth-first from the initial
// state. States that some branch targets but no path from the initial state
// reaches are warned about, as is a graph without any terminal state.
// Orphans (no inbound branch at all) are integrity errors and are not
// reported again here.
func validateReachability(g *schema.ScenarioGraph) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	adjacency := make(map[string][]string, len(g.States))
	inbound := make(map[string]bool, len(g.States))
	for _, b := range g.Branches {
		adjacency[b.FromStateID] = append(adjacency[b.FromStateID], b.ToStateID)
		inbound[b.ToStateID] = true
	}

	start := g.InitialState.ID
	reachable := map[string]bool{start: true}
	queue := []string{start}
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		for _, next := range adjacency[node] {
			if !reachable[next] {
				reachable[next] = true
				queue = append(queue, next)
			}
		}
	}

	ids := make([]string, 0, len(g.States))
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	hasTerminal := false
	for _, id := range ids {
		if g.States[id].IsTerminal() {
			hasTerminal = true
		}
		if !reachable[id] && inbound[id] {
			result.Warnf(fmt.Sprintf("states[%s]", id), "state %q is unreachable from initial state %q", id, start)
		}
	}

	if len(g.States) > 0 && !hasTerminal {
		result.Warnf("states", "scenario has no terminal state; sessions can only end by abandonment")
	}

	return result
}
