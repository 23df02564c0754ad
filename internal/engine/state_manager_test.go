package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// --- helpers ---

func intPtr(v int) *int { return &v }

func consequence(id string, impact float64) schema.Consequence {
	return schema.Consequence{ID: id, Kind: schema.ConsequenceDirect, Description: id, ImpactScore: impact, Probability: 1}
}

func decision(id, next string) schema.Decision {
	return schema.Decision{
		ID:           id,
		Text:         "choose " + id,
		NextStateID:  next,
		Consequences: []schema.Consequence{consequence(id+"-c", 40)},
	}
}

func timedState(id string, limitSeconds int, decisions ...schema.Decision) schema.ScenarioState {
	s := schema.ScenarioState{ID: id, Description: "state " + id, Decisions: decisions}
	if limitSeconds > 0 {
		s.TimeLimitSeconds = intPtr(limitSeconds)
	}
	return s
}

// --- time pressure ---

func TestStateManager_TimePressure(t *testing.T) {
	m := NewStateManager(timedState("state1", 300, decision("d1", "state2")))

	assert.Equal(t, 0.5, m.TimePressure(150000))
	assert.Equal(t, 1.0, m.TimePressure(400000))
	assert.Equal(t, 0.0, m.TimePressure(0))
	assert.Equal(t, 0.0, m.TimePressure(-10))

	prev := 0.0
	for e := int64(0); e <= 600000; e += 15000 {
		p := m.TimePressure(e)
		assert.GreaterOrEqual(t, p, prev, "elapsed %d", e)
		assert.LessOrEqual(t, p, 1.0)
		prev = p
	}

	unlimited := NewStateManager(timedState("free", 0, decision("d1", "x")))
	assert.Equal(t, 0.0, unlimited.TimePressure(999999))
}

// --- copies ---

func TestStateManager_ReturnsCopies(t *testing.T) {
	initial := timedState("state1", 300, decision("d1", "state2"))
	initial.EnvironmentalFactors = []string{"storm"}
	m := NewStateManager(initial)

	cur := m.CurrentState()
	cur.Decisions[0].Consequences[0].ImpactScore = -99
	cur.EnvironmentalFactors[0] = "calm"
	*cur.TimeLimitSeconds = 1

	avail := m.AvailableDecisions()
	avail[0].Text = "mutated"

	d, ok := m.Decision("d1")
	require.True(t, ok)
	d.Consequences[0].Description = "mutated"

	again := m.CurrentState()
	assert.Equal(t, 40.0, again.Decisions[0].Consequences[0].ImpactScore)
	assert.Equal(t, "storm", again.EnvironmentalFactors[0])
	assert.Equal(t, 300, *again.TimeLimitSeconds)
	assert.Equal(t, "choose d1", again.Decisions[0].Text)
	assert.Equal(t, "d1-c", again.Decisions[0].Consequences[0].Description)

	// the caller's input is copied too
	initial.Decisions[0].ID = "changed"
	assert.True(t, m.IsValidDecision("d1"))

	hist := m.StateHistory()
	hist[0] = "mutated"
	assert.Equal(t, []string{"state1"}, m.StateHistory())

	m.RecordDecision(decision("d1", "state2"))
	dh := m.DecisionHistory()
	dh[0].Consequences[0].ImpactScore = 0
	assert.Equal(t, 40.0, m.DecisionHistory()[0].Consequences[0].ImpactScore)
}

// --- decisions and transitions ---

func TestStateManager_RecordAndUpdate(t *testing.T) {
	m := NewStateManager(timedState("state1", 0, decision("d1", "state2")))

	assert.True(t, m.IsValidDecision("d1"))
	assert.False(t, m.IsValidDecision("d9"))
	_, ok := m.Decision("d9")
	assert.False(t, ok)

	m.RecordDecision(decision("d1", "state2"))
	assert.Equal(t, "state1", m.CurrentState().ID, "recording does not move")

	m.UpdateState(timedState("state2", 0))
	assert.Equal(t, "state2", m.CurrentState().ID)
	assert.Equal(t, []string{"state1", "state2"}, m.StateHistory())
	assert.Equal(t, []string{"d1"}, m.DecisionIDs())
}

func TestStateManager_TerminalDetection(t *testing.T) {
	m := NewStateManager(timedState("state1", 0, decision("d1", "end")))
	assert.False(t, m.IsTerminalState())
	assert.Len(t, m.AvailableDecisions(), 1)

	m.UpdateState(timedState("end", 0))
	assert.True(t, m.IsTerminalState())
	assert.Empty(t, m.AvailableDecisions())
	assert.NotNil(t, m.AvailableDecisions())
}

func TestStateManager_StateComplexity(t *testing.T) {
	s := timedState("s", 0, decision("a", "x"), decision("b", "y"))
	s.EnvironmentalFactors = []string{"night"}
	s.Characters = []schema.Character{{ID: "c1", Role: "CISO"}}
	m := NewStateManager(s)
	assert.InDelta(t, 1.4, m.StateComplexity(), 1e-9)
}

func TestStateManager_DecisionContext(t *testing.T) {
	s := timedState("s", 300, decision("a", "x"))
	s.RiskLevel = schema.RiskHigh
	s.CriticalityScore = 8
	m := NewStateManager(s)

	dc := m.DecisionContext(100500)
	assert.Equal(t, schema.RiskHigh, dc.RiskLevel)
	assert.Equal(t, 8, dc.CriticalityScore)
	require.NotNil(t, dc.TimeRemainingSeconds)
	assert.Equal(t, 200, *dc.TimeRemainingSeconds)
	assert.NotNil(t, dc.EnvironmentalFactors)
	assert.NotNil(t, dc.Characters)

	late := m.DecisionContext(900000)
	assert.Equal(t, 0, *late.TimeRemainingSeconds)

	free := NewStateManager(timedState("free", 0)).DecisionContext(0)
	assert.Nil(t, free.TimeRemainingSeconds)
}

// --- reset and restore ---

func TestStateManager_Reset(t *testing.T) {
	initial := timedState("state1", 0, decision("d1", "state2"))
	m := NewStateManager(initial)
	m.RecordDecision(decision("d1", "state2"))
	m.UpdateState(timedState("state2", 0))

	m.Reset(initial)
	assert.Equal(t, "state1", m.CurrentState().ID)
	assert.Equal(t, []string{"state1"}, m.StateHistory())
	assert.Empty(t, m.DecisionHistory())
}

func TestStateManager_Restore(t *testing.T) {
	m := NewStateManager(timedState("state1", 0))
	m.Restore(timedState("state3", 0), []string{"state1", "state2"}, []schema.Decision{decision("d1", "state2"), decision("d2", "state3")})

	assert.Equal(t, "state3", m.CurrentState().ID)
	assert.Equal(t, []string{"state1", "state2", "state3"}, m.StateHistory())
	assert.Equal(t, []string{"d1", "d2"}, m.DecisionIDs())

	m.Restore(timedState("state2", 0), []string{"state1", "state2"}, nil)
	assert.Equal(t, []string{"state1", "state2"}, m.StateHistory(), "current id already last")
	assert.Empty(t, m.DecisionHistory())
}
