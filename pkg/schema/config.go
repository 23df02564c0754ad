package schema

// ScenarioConfig is an authored scenario document: exercise metadata plus the
// graph in list form, as stored and exchanged.
type ScenarioConfig struct {
	ID                       string           `json:"id"`
	Title                    string           `json:"title,omitempty"`
	Description              string           `json:"description,omitempty"`
	Domain                   string           `json:"domain,omitempty"`
	Difficulty               int              `json:"difficulty,omitempty"` // [1, 10]
	EstimatedDurationMinutes int              `json:"estimated_duration_minutes,omitempty"`
	LearningObjectives       []string         `json:"learning_objectives,omitempty"`
	UserContextSchema        map[string]any   `json:"user_context_schema,omitempty"`
	InitialStateID           string           `json:"initial_state_id"`
	States                   []ScenarioState  `json:"states"`
	Branches                 []DecisionBranch `json:"branches,omitempty"`
}

// Graph converts the document into a ScenarioGraph. The first state with a
// given id wins. An initial state id that names no state yields an
// InitialState carrying only that id, so integrity checks can report it.
func (c *ScenarioConfig) Graph() ScenarioGraph {
	g := ScenarioGraph{
		States:   make(map[string]ScenarioState, len(c.States)),
		Branches: make([]DecisionBranch, 0, len(c.Branches)),
	}
	for _, s := range c.States {
		if _, dup := g.States[s.ID]; dup {
			continue
		}
		g.States[s.ID] = s.Clone()
	}
	for _, b := range c.Branches {
		g.Branches = append(g.Branches, b.Clone())
	}
	if initial, ok := g.States[c.InitialStateID]; ok {
		g.InitialState = initial.Clone()
	} else {
		g.InitialState = ScenarioState{ID: c.InitialStateID}
	}
	return g
}

// EffectiveDifficulty returns Difficulty, defaulting to 1 when unset.
func (c *ScenarioConfig) EffectiveDifficulty() int {
	if c.Difficulty < 1 {
		return 1
	}
	return c.Difficulty
}
