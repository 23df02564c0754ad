package schema

// SessionDecision is the append-only runtime record of one accepted transition.
// Owned by the caller's session; the engine never mutates it after creation.
type SessionDecision struct {
	ID             string        `json:"id"`
	StateID        string        `json:"state_id"`
	DecisionID     string        `json:"decision_id,omitempty"`
	DecisionText   string        `json:"decision_text"`
	Timestamp      string        `json:"timestamp"` // RFC3339
	TimeTakenMs    int64         `json:"time_taken_ms"`
	ScoreImpact    float64       `json:"score_impact"`
	Consequences   []Consequence `json:"consequences"`
	UserConfidence *float64      `json:"user_confidence,omitempty"`
	RiskLevel      RiskLevel     `json:"risk_level,omitempty"`
}

// Clone returns a deep copy of the record.
func (d SessionDecision) Clone() SessionDecision {
	out := d
	out.Consequences = CloneConsequences(d.Consequences)
	if d.UserConfidence != nil {
		c := *d.UserConfidence
		out.UserConfidence = &c
	}
	return out
}

// ScoreCategory names one of the four scoring dimensions.
type ScoreCategory string

const (
	CategoryDirectImpact       ScoreCategory = "direct_impact"
	CategorySecondOrderEffects ScoreCategory = "second_order_effects"
	CategoryRiskManagement     ScoreCategory = "risk_management"
	CategoryTimeEfficiency     ScoreCategory = "time_efficiency"
)

// ScoreBreakdown explains a single category of a ScoreResult.
type ScoreBreakdown struct {
	Category      ScoreCategory `json:"category"`
	Score         float64       `json:"score"`
	Weight        float64       `json:"weight"`
	WeightedScore float64       `json:"weighted_score"`
	Explanation   string        `json:"explanation"`
	Suggestions   []string      `json:"suggestions"`
}

// ScoreResult is the composite score of a decision sequence. All scores are in [0, 100].
type ScoreResult struct {
	TotalScore         float64          `json:"total_score"`
	DirectImpact       float64          `json:"direct_impact"`
	SecondOrderEffects float64          `json:"second_order_effects"`
	RiskManagement     float64          `json:"risk_management"`
	TimeEfficiency     float64          `json:"time_efficiency"`
	Breakdown          []ScoreBreakdown `json:"breakdown"`
	Percentile         *float64         `json:"percentile,omitempty"`
}
