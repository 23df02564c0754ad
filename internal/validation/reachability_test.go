package validation

import (
	"testing"

	"github.com/rendis/crisisdrill/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReachability_AllReachable(t *testing.T) {
	result := validateReachability(sampleGraph())
	assert.True(t, result.Valid())
	assert.Empty(t, result.Warnings)
}

func TestReachability_DisconnectedIsland(t *testing.T) {
	g := sampleGraph()
	// island <-> lagoon target each other but nothing leads in from detect.
	g.States["island"] = schema.ScenarioState{ID: "island", Decisions: []schema.Decision{decision("swim", "lagoon")}}
	g.States["lagoon"] = schema.ScenarioState{ID: "lagoon", Decisions: []schema.Decision{decision("return", "island")}}
	g.Branches = append(g.Branches,
		schema.DecisionBranch{FromStateID: "island", DecisionID: "swim", ToStateID: "lagoon"},
		schema.DecisionBranch{FromStateID: "lagoon", DecisionID: "return", ToStateID: "island"},
	)

	result := validateReachability(g)
	assert.True(t, result.Valid())
	require.Len(t, result.Warnings, 2)
	assert.Equal(t, "states[island]", result.Warnings[0].Path)
	assert.Equal(t, "states[lagoon]", result.Warnings[1].Path)
}

func TestReachability_OrphansNotRepeated(t *testing.T) {
	g := sampleGraph()
	g.States["postmortem"] = schema.ScenarioState{ID: "postmortem"}

	result := validateReachability(g)
	assert.Empty(t, result.Warnings)
}

func TestReachability_NoTerminalState(t *testing.T) {
	g := &schema.ScenarioGraph{
		States: map[string]schema.ScenarioState{
			"a": {ID: "a", Decisions: []schema.Decision{decision("next", "b")}},
			"b": {ID: "b", Decisions: []schema.Decision{decision("back", "a")}},
		},
		Branches: []schema.DecisionBranch{
			{FromStateID: "a", DecisionID: "next", ToStateID: "b"},
			{FromStateID: "b", DecisionID: "back", ToStateID: "a"},
		},
	}
	g.InitialState = g.States["a"]

	result := validateReachability(g)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0].Message, "no terminal state")
}
