package engine

import "github.com/rendis/crisisdrill/pkg/schema"

// DecisionContext is a read-only snapshot of the current state for
// presentation layers.
type DecisionContext struct {
	RiskLevel            schema.RiskLevel   `json:"risk_level"`
	CriticalityScore     int                `json:"criticality_score"`
	EnvironmentalFactors []string           `json:"environmental_factors"`
	Characters           []schema.Character `json:"characters"`
	TimeRemainingSeconds *int               `json:"time_remaining_seconds,omitempty"`
}

// StateManager owns a trainee's position in a scenario graph: the current
// state, the ordered list of visited state ids and the ordered list of
// accepted decisions. It knows nothing about branching rules.
//
// Every accessor returns deep copies. StateManager is not safe for
// concurrent use; callers serialize access per session.
type StateManager struct {
	current         schema.ScenarioState
	stateHistory    []string
	decisionHistory []schema.Decision
}

// NewStateManager creates a StateManager positioned at initial.
func NewStateManager(initial schema.ScenarioState) *StateManager {
	m := &StateManager{}
	m.Reset(initial)
	return m
}

// CurrentState returns a copy of the current state.
func (m *StateManager) CurrentState() schema.ScenarioState {
	return m.current.Clone()
}

// AvailableDecisions returns copies of the current state's decisions.
func (m *StateManager) AvailableDecisions() []schema.Decision {
	out := make([]schema.Decision, len(m.current.Decisions))
	for i, d := range m.current.Decisions {
		out[i] = d.Clone()
	}
	return out
}

// IsValidDecision reports whether id is one of the current state's decisions.
func (m *StateManager) IsValidDecision(id string) bool {
	_, ok := m.current.FindDecision(id)
	return ok
}

// Decision returns a copy of the current state's decision with the given id.
func (m *StateManager) Decision(id string) (schema.Decision, bool) {
	d, ok := m.current.FindDecision(id)
	if !ok {
		return schema.Decision{}, false
	}
	return d.Clone(), true
}

// RecordDecision appends d to the decision history. The current state is unchanged.
func (m *StateManager) RecordDecision(d schema.Decision) {
	m.decisionHistory = append(m.decisionHistory, d.Clone())
}

// UpdateState moves to s and appends its id to the state history. The
// transition is assumed to be validated already.
func (m *StateManager) UpdateState(s schema.ScenarioState) {
	m.current = s.Clone()
	m.stateHistory = append(m.stateHistory, s.ID)
}

// TimePressure returns the fraction of the current state's time limit
// consumed after elapsedMs, capped at 1. States without a limit return 0.
func (m *StateManager) TimePressure(elapsedMs int64) float64 {
	limitMs := m.current.TimeLimitMs()
	if limitMs <= 0 || elapsedMs <= 0 {
		return 0
	}
	return min(1, float64(elapsedMs)/float64(limitMs))
}

// IsTerminalState reports whether the current state offers no decisions.
func (m *StateManager) IsTerminalState() bool {
	return m.current.IsTerminal()
}

// StateComplexity is a coarse authoring metric for the current state; it
// plays no part in scoring.
func (m *StateManager) StateComplexity() float64 {
	return 0.4*float64(len(m.current.Decisions)) +
		0.3*float64(len(m.current.EnvironmentalFactors)) +
		0.3*float64(len(m.current.Characters))
}

// DecisionContext snapshots the current state for display. elapsedMs feeds
// TimeRemainingSeconds when the state has a limit; pass 0 on entry.
func (m *StateManager) DecisionContext(elapsedMs int64) DecisionContext {
	c := m.current.Clone()
	dc := DecisionContext{
		RiskLevel:            c.RiskLevel,
		CriticalityScore:     c.CriticalityScore,
		EnvironmentalFactors: c.EnvironmentalFactors,
		Characters:           c.Characters,
	}
	if dc.EnvironmentalFactors == nil {
		dc.EnvironmentalFactors = []string{}
	}
	if dc.Characters == nil {
		dc.Characters = []schema.Character{}
	}
	if c.TimeLimitSeconds != nil {
		remaining := *c.TimeLimitSeconds - int(max(elapsedMs, 0)/1000)
		remaining = max(remaining, 0)
		dc.TimeRemainingSeconds = &remaining
	}
	return dc
}

// Reset repositions the manager at s with fresh histories.
func (m *StateManager) Reset(s schema.ScenarioState) {
	m.current = s.Clone()
	m.stateHistory = []string{s.ID}
	m.decisionHistory = []schema.Decision{}
}

// Restore repositions the manager at s with persisted histories, for
// resuming a paused session.
func (m *StateManager) Restore(s schema.ScenarioState, stateHistory []string, decisionHistory []schema.Decision) {
	m.current = s.Clone()
	m.stateHistory = append([]string{}, stateHistory...)
	if len(m.stateHistory) == 0 || m.stateHistory[len(m.stateHistory)-1] != s.ID {
		m.stateHistory = append(m.stateHistory, s.ID)
	}
	m.decisionHistory = make([]schema.Decision, len(decisionHistory))
	for i, d := range decisionHistory {
		m.decisionHistory[i] = d.Clone()
	}
}

// StateHistory returns a copy of the visited state ids, oldest first.
func (m *StateManager) StateHistory() []string {
	return append([]string{}, m.stateHistory...)
}

// DecisionHistory returns copies of the accepted decisions, oldest first.
func (m *StateManager) DecisionHistory() []schema.Decision {
	out := make([]schema.Decision, len(m.decisionHistory))
	for i, d := range m.decisionHistory {
		out[i] = d.Clone()
	}
	return out
}

// DecisionIDs returns the ids of the accepted decisions, oldest first.
func (m *StateManager) DecisionIDs() []string {
	ids := make([]string, len(m.decisionHistory))
	for i, d := range m.decisionHistory {
		ids[i] = d.ID
	}
	return ids
}
