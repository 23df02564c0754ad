package diagram

import (
	"testing"

	"github.com/rendis/crisisdrill/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Test scenario builders ---

func state(id string, decisions ...string) schema.ScenarioState {
	s := schema.ScenarioState{ID: id, Description: id}
	for _, d := range decisions {
		s.Decisions = append(s.Decisions, schema.Decision{ID: d, Text: d})
	}
	return s
}

func ransomwareGraph() schema.ScenarioGraph {
	detect := state("detect", "isolate", "investigate", "pay")
	return schema.ScenarioGraph{
		InitialState: detect,
		States: map[string]schema.ScenarioState{
			"detect":    detect,
			"contain":   state("contain", "restore"),
			"assess":    state("assess", "isolate-late"),
			"paid":      state("paid"),
			"recovered": state("recovered"),
			"orphan":    state("orphan"),
		},
		Branches: []schema.DecisionBranch{
			{FromStateID: "detect", DecisionID: "isolate", ToStateID: "contain"},
			{FromStateID: "detect", DecisionID: "investigate", ToStateID: "assess"},
			{FromStateID: "detect", DecisionID: "pay", ToStateID: "paid"},
			{FromStateID: "contain", DecisionID: "restore", ToStateID: "recovered",
				Conditions: map[string]any{"timePressure": map[string]any{"$lt": 0.8}}},
			{FromStateID: "assess", DecisionID: "isolate-late", ToStateID: "contain"},
			{FromStateID: "assess", DecisionID: "escalate", ToStateID: "missing"},
		},
	}
}

func nodeIDs(m *DiagramModel) []string {
	out := make([]string, 0, len(m.Nodes))
	for _, n := range m.Nodes {
		out = append(out, n.ID)
	}
	return out
}

func TestBuildScenarioGraph(t *testing.T) {
	model, err := Build(ransomwareGraph(), "Hospital Ransomware", nil)
	require.NoError(t, err)

	assert.Equal(t, "Hospital Ransomware", model.Title)
	assert.Equal(t, []string{"detect", "contain", "assess", "paid", "recovered", "orphan"}, nodeIDs(model))
	assert.Equal(t, [][]string{
		{"detect"},
		{"contain", "assess", "paid"},
		{"recovered"},
		{"orphan"},
	}, model.Levels)

	kinds := map[string]NodeKind{}
	for _, n := range model.Nodes {
		kinds[n.ID] = n.Kind
		assert.Nil(t, n.Status)
	}
	assert.Equal(t, NodeKindInitial, kinds["detect"])
	assert.Equal(t, NodeKindState, kinds["contain"])
	assert.Equal(t, NodeKindTerminal, kinds["paid"])
	assert.Equal(t, NodeKindTerminal, kinds["orphan"])

	// Branch to a missing state is dropped.
	require.Len(t, model.Edges, 5)
	assert.Equal(t, Edge{From: "detect", To: "contain", Label: "isolate"}, model.Edges[0])
	assert.True(t, model.Edges[3].Conditional)
	assert.False(t, model.Edges[4].Conditional)
}

func TestBuildDefaultTitle(t *testing.T) {
	model, err := Build(ransomwareGraph(), "", nil)
	require.NoError(t, err)
	assert.Equal(t, "Scenario", model.Title)
}

func TestBuildWithProgressOverlay(t *testing.T) {
	progress := &Progress{
		StateHistory: []string{"detect", "assess", "contain"},
		Decisions: []schema.SessionDecision{
			{StateID: "detect", DecisionID: "investigate"},
			{StateID: "assess", DecisionID: "isolate-late"},
		},
	}

	model, err := Build(ransomwareGraph(), "", progress)
	require.NoError(t, err)

	status := map[string]*StatusOverlay{}
	for _, n := range model.Nodes {
		status[n.ID] = n.Status
	}
	require.NotNil(t, status["detect"])
	assert.Equal(t, StatusVisited, status["detect"].Status)
	assert.Equal(t, StatusVisited, status["assess"].Status)
	assert.Equal(t, StatusCurrent, status["contain"].Status)
	assert.Equal(t, 1, status["contain"].Visits)
	assert.Nil(t, status["paid"])

	var taken []string
	for _, e := range model.Edges {
		if e.Taken {
			taken = append(taken, e.From+"/"+e.Label)
		}
	}
	assert.Equal(t, []string{"detect/investigate", "assess/isolate-late"}, taken)
}

func TestBuildRevisitCountsVisits(t *testing.T) {
	g := schema.ScenarioGraph{
		InitialState: state("a", "loop"),
		States: map[string]schema.ScenarioState{
			"a": state("a", "loop"),
			"b": state("b", "back"),
		},
		Branches: []schema.DecisionBranch{
			{FromStateID: "a", DecisionID: "loop", ToStateID: "b"},
			{FromStateID: "b", DecisionID: "back", ToStateID: "a"},
		},
	}

	model, err := Build(g, "", &Progress{StateHistory: []string{"a", "b", "a"}})
	require.NoError(t, err)

	a := model.Nodes[0]
	require.Equal(t, "a", a.ID)
	assert.Equal(t, StatusCurrent, a.Status.Status)
	assert.Equal(t, 2, a.Status.Visits)
	assert.Equal(t, StatusVisited, model.Nodes[1].Status.Status)
}

func TestBuildEmptyGraph(t *testing.T) {
	_, err := Build(schema.ScenarioGraph{}, "", nil)
	assert.Error(t, err)
}

func TestBuildMissingInitialState(t *testing.T) {
	g := schema.ScenarioGraph{
		InitialState: state("ghost"),
		States:       map[string]schema.ScenarioState{"b": state("b"), "a": state("a")},
	}

	model, err := Build(g, "", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, nodeIDs(model))
	assert.Equal(t, [][]string{{"a", "b"}}, model.Levels)
}

func TestBuildCarriesRiskAndTimeLimit(t *testing.T) {
	limit := 300
	detect := state("detect", "isolate")
	detect.RiskLevel = schema.RiskHigh
	detect.TimeLimitSeconds = &limit
	g := schema.ScenarioGraph{
		InitialState: detect,
		States: map[string]schema.ScenarioState{
			"detect":  detect,
			"contain": state("contain"),
		},
		Branches: []schema.DecisionBranch{
			{FromStateID: "detect", DecisionID: "isolate", ToStateID: "contain"},
		},
	}

	model, err := Build(g, "", nil)
	require.NoError(t, err)
	require.Len(t, model.Nodes, 2)
	assert.Equal(t, schema.RiskHigh, model.Nodes[0].Risk)
	assert.Equal(t, 300, model.Nodes[0].TimeLimitSeconds)
	assert.Zero(t, model.Nodes[1].TimeLimitSeconds)
}
