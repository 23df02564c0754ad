package schema

// ConsequenceKind distinguishes immediate effects from delayed, amplifying ones.
type ConsequenceKind string

const (
	ConsequenceDirect      ConsequenceKind = "direct"
	ConsequenceSecondOrder ConsequenceKind = "second_order"
)

// RiskLevel is the coarse risk posture of a decision or state.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Rank maps a risk level to 1/2/3 (0 for unknown values).
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	default:
		return 0
	}
}

// ImmediateDelayMinutes is the largest delay still treated as immediate.
const ImmediateDelayMinutes = 5

// Consequence is a single probabilistic effect of a decision. Immutable once created.
type Consequence struct {
	ID           string          `json:"id"`
	Kind         ConsequenceKind `json:"kind"`
	Description  string          `json:"description"`
	ImpactScore  float64         `json:"impact_score"` // [-100, 100]
	Probability  float64         `json:"probability"`  // [0, 1]
	DelayMinutes *int            `json:"delay_minutes,omitempty"`
}

// Delay returns the delay in minutes, treating an absent delay as zero.
func (c Consequence) Delay() int {
	if c.DelayMinutes == nil {
		return 0
	}
	return *c.DelayMinutes
}

// IsImmediate reports whether the consequence resolves within ImmediateDelayMinutes.
func (c Consequence) IsImmediate() bool {
	return c.Delay() <= ImmediateDelayMinutes
}

// Clone returns a deep copy of the consequence.
func (c Consequence) Clone() Consequence {
	out := c
	if c.DelayMinutes != nil {
		d := *c.DelayMinutes
		out.DelayMinutes = &d
	}
	return out
}

// Decision is one choice offered in a scenario state.
type Decision struct {
	ID           string        `json:"id"`
	Text         string        `json:"text"`
	Consequences []Consequence `json:"consequences"`
	NextStateID  string        `json:"next_state_id"`
	RiskLevel    RiskLevel     `json:"risk_level,omitempty"`
	TimeWeight   *float64      `json:"time_weight,omitempty"`
}

// Clone returns a deep copy of the decision, including its consequences.
func (d Decision) Clone() Decision {
	out := d
	out.Consequences = CloneConsequences(d.Consequences)
	if d.TimeWeight != nil {
		w := *d.TimeWeight
		out.TimeWeight = &w
	}
	return out
}

// Character is a participant in a scenario. Consumed for stakeholder grouping only.
type Character struct {
	ID                 string   `json:"id"`
	Name               string   `json:"name"`
	Role               string   `json:"role"`
	PersonalityTraits  []string `json:"personality_traits,omitempty"`
	CommunicationStyle string   `json:"communication_style,omitempty"`
	ExpertiseAreas     []string `json:"expertise_areas,omitempty"`
}

// Clone returns a deep copy of the character.
func (c Character) Clone() Character {
	out := c
	out.PersonalityTraits = cloneStrings(c.PersonalityTraits)
	out.ExpertiseAreas = cloneStrings(c.ExpertiseAreas)
	return out
}

// ScenarioState is a node of the scenario graph. A state without decisions is terminal.
type ScenarioState struct {
	ID                   string      `json:"id"`
	Description          string      `json:"description"`
	Context              string      `json:"context,omitempty"`
	Decisions            []Decision  `json:"decisions,omitempty"`
	TimeLimitSeconds     *int        `json:"time_limit_seconds,omitempty"`
	EnvironmentalFactors []string    `json:"environmental_factors,omitempty"`
	Characters           []Character `json:"characters,omitempty"`
	RiskLevel            RiskLevel   `json:"risk_level,omitempty"`
	CriticalityScore     int         `json:"criticality_score,omitempty"` // [1, 10]
}

// TimeLimitMs returns the state's time limit in milliseconds, or 0 when unlimited.
func (s ScenarioState) TimeLimitMs() int64 {
	if s.TimeLimitSeconds == nil || *s.TimeLimitSeconds <= 0 {
		return 0
	}
	return int64(*s.TimeLimitSeconds) * 1000
}

// IsTerminal reports whether the state offers no decisions.
func (s ScenarioState) IsTerminal() bool {
	return len(s.Decisions) == 0
}

// FindDecision returns the decision with the given id.
func (s ScenarioState) FindDecision(id string) (Decision, bool) {
	for _, d := range s.Decisions {
		if d.ID == id {
			return d, true
		}
	}
	return Decision{}, false
}

// Clone returns a deep copy of the state.
func (s ScenarioState) Clone() ScenarioState {
	out := s
	if s.Decisions != nil {
		out.Decisions = make([]Decision, len(s.Decisions))
		for i, d := range s.Decisions {
			out.Decisions[i] = d.Clone()
		}
	}
	if s.TimeLimitSeconds != nil {
		t := *s.TimeLimitSeconds
		out.TimeLimitSeconds = &t
	}
	out.EnvironmentalFactors = cloneStrings(s.EnvironmentalFactors)
	if s.Characters != nil {
		out.Characters = make([]Character, len(s.Characters))
		for i, c := range s.Characters {
			out.Characters[i] = c.Clone()
		}
	}
	return out
}

// DecisionBranch is the only entity encoding graph edges.
// (FromStateID, DecisionID) is unique within a scenario.
type DecisionBranch struct {
	FromStateID       string         `json:"from_state_id"`
	DecisionID        string         `json:"decision_id"`
	ToStateID         string         `json:"to_state_id"`
	Conditions        map[string]any `json:"conditions,omitempty"`
	TransitionEffects []string       `json:"transition_effects,omitempty"`
}

// Clone returns a deep copy of the branch, including nested condition values.
func (b DecisionBranch) Clone() DecisionBranch {
	out := b
	if b.Conditions != nil {
		out.Conditions = CloneMap(b.Conditions)
	}
	out.TransitionEffects = cloneStrings(b.TransitionEffects)
	return out
}

// ScenarioGraph is the static set of states and branch edges of one exercise.
type ScenarioGraph struct {
	InitialState ScenarioState            `json:"initial_state"`
	States       map[string]ScenarioState `json:"states"`
	Branches     []DecisionBranch         `json:"branches"`
}

// Clone returns a deep copy of the graph.
func (g ScenarioGraph) Clone() ScenarioGraph {
	out := ScenarioGraph{InitialState: g.InitialState.Clone()}
	if g.States != nil {
		out.States = make(map[string]ScenarioState, len(g.States))
		for id, s := range g.States {
			out.States[id] = s.Clone()
		}
	}
	if g.Branches != nil {
		out.Branches = make([]DecisionBranch, len(g.Branches))
		for i, b := range g.Branches {
			out.Branches[i] = b.Clone()
		}
	}
	return out
}

// CloneConsequences deep-copies a consequence slice, preserving nil.
func CloneConsequences(in []Consequence) []Consequence {
	if in == nil {
		return nil
	}
	out := make([]Consequence, len(in))
	for i, c := range in {
		out[i] = c.Clone()
	}
	return out
}

// CloneMap deep-copies a JSON-like map (nested maps and slices are copied).
func CloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return cloneStrings(val)
	default:
		return v
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
