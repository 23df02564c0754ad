package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// --- helpers ---

func direct(impact, p float64) schema.Consequence {
	return schema.Consequence{ID: "d", Kind: schema.ConsequenceDirect, ImpactScore: impact, Probability: p}
}

func secondOrder(impact, p float64, delay int) schema.Consequence {
	return schema.Consequence{ID: "s", Kind: schema.ConsequenceSecondOrder, ImpactScore: impact, Probability: p, DelayMinutes: &delay}
}

func sessionDecision(risk schema.RiskLevel, takenMs int64, cs ...schema.Consequence) schema.SessionDecision {
	return schema.SessionDecision{
		ID:           "sd",
		DecisionID:   "d",
		TimeTakenMs:  takenMs,
		ScoreImpact:  ExpectedImpact(cs),
		Consequences: cs,
		RiskLevel:    risk,
	}
}

// --- strategies ---

func TestNew(t *testing.T) {
	s, err := New("")
	require.NoError(t, err)
	assert.Equal(t, StrategySession, s.Name())

	s, err = New(StrategyPreview)
	require.NoError(t, err)
	assert.Equal(t, StrategyPreview, s.Name())

	_, err = New("bogus")
	require.Error(t, err)
	assert.Equal(t, schema.ErrCodeValidation, schema.CodeOf(err))
	assert.Equal(t, []string{"preview", "session"}, Names())
}

func TestWeightsSumToOne(t *testing.T) {
	for _, s := range []Strategy{SessionStrategy{}, PreviewStrategy{}} {
		w := s.Weights()
		assert.InDelta(t, 1.0, w.DirectImpact+w.SecondOrderEffects+w.RiskManagement+w.TimeEfficiency, 1e-9, s.Name())
	}
}

func TestSessionStrategy_EmptyInput(t *testing.T) {
	res := SessionStrategy{}.Score(Input{PeerScores: []float64{10, 20}})
	assert.Zero(t, res.TotalScore)
	assert.Zero(t, res.DirectImpact)
	assert.Zero(t, res.TimeEfficiency)
	require.NotNil(t, res.Breakdown)
	assert.Empty(t, res.Breakdown)
	assert.Nil(t, res.Percentile)
}

func TestPreviewStrategy_EmptyInput(t *testing.T) {
	res := PreviewStrategy{}.Score(Input{})
	assert.InDelta(t, 10.0, res.TotalScore, 0.001)
	assert.Equal(t, 100.0, res.TimeEfficiency)
	assert.Zero(t, res.DirectImpact)
	assert.Zero(t, res.SecondOrderEffects)
	assert.Zero(t, res.RiskManagement)
	assert.Len(t, res.Breakdown, 4)
}

func TestSessionStrategy_SingleDecision(t *testing.T) {
	in := Input{
		Decisions:    []schema.SessionDecision{sessionDecision(schema.RiskMedium, 700, direct(80, 1))},
		TimeLimitsMs: []int64{1000},
		Difficulty:   1,
	}
	res := SessionStrategy{}.Score(in)

	assert.InDelta(t, 80.0, res.DirectImpact, 0.001)
	assert.InDelta(t, 50.0, res.SecondOrderEffects, 0.001, "missing second-order defaults to neutral")
	assert.InDelta(t, 75.0, res.RiskManagement, 0.001, "medium base 70 plus full consistency bonus")
	assert.InDelta(t, 90.0, res.TimeEfficiency, 0.001)
	assert.InDelta(t, 71.5, res.TotalScore, 0.01)

	in.Difficulty = 3
	assert.InDelta(t, 85.8, SessionStrategy{}.Score(in).TotalScore, 0.01)
}

func TestPreviewStrategy_SingleDecision(t *testing.T) {
	in := Input{
		Decisions:    []schema.SessionDecision{sessionDecision(schema.RiskMedium, 700, direct(80, 1))},
		TimeLimitsMs: []int64{1000},
		Difficulty:   5,
	}
	res := PreviewStrategy{}.Score(in)
	assert.Zero(t, res.SecondOrderEffects)
	assert.InDelta(t, 70.0, res.RiskManagement, 0.001)
	assert.InDelta(t, 55.0, res.TotalScore, 0.01, "difficulty is ignored")
}

func TestScore_Deterministic(t *testing.T) {
	in := Input{
		Decisions: []schema.SessionDecision{
			sessionDecision(schema.RiskLow, 200, direct(-30, 0.6), secondOrder(40, 0.5, 45)),
			sessionDecision(schema.RiskHigh, 5000, direct(90, 0.9), secondOrder(-70, 0.3, 200)),
			sessionDecision("", 0, direct(10, 0.2)),
		},
		TimeLimitsMs: []int64{1000, 2000},
		Difficulty:   4,
		RiskProfile:  schema.RiskProfileBalanced,
		PeerScores:   []float64{12, 55, 80},
	}
	for _, s := range []Strategy{SessionStrategy{}, PreviewStrategy{}} {
		assert.Equal(t, s.Score(in), s.Score(in), s.Name())
	}
}

func TestScore_Bounds(t *testing.T) {
	in := Input{
		Decisions: []schema.SessionDecision{
			sessionDecision(schema.RiskHigh, 0, direct(100, 1), secondOrder(100, 1, 0)),
			sessionDecision(schema.RiskHigh, 0, direct(100, 1), secondOrder(100, 1, 0)),
			sessionDecision(schema.RiskHigh, 0, secondOrder(100, 1, 0)),
		},
		Difficulty:  10,
		RiskProfile: schema.RiskProfileAggressive,
	}
	for _, s := range []Strategy{SessionStrategy{}, PreviewStrategy{}} {
		res := s.Score(in)
		for _, v := range []float64{res.TotalScore, res.DirectImpact, res.SecondOrderEffects, res.RiskManagement, res.TimeEfficiency} {
			assert.GreaterOrEqual(t, v, 0.0, s.Name())
			assert.LessOrEqual(t, v, 100.0, s.Name())
		}
	}

	in.Decisions = []schema.SessionDecision{sessionDecision(schema.RiskLow, 99999, direct(-100, 1), secondOrder(-100, 1, 0))}
	in.TimeLimitsMs = []int64{1000}
	res := SessionStrategy{}.Score(in)
	assert.Zero(t, res.DirectImpact)
	assert.Zero(t, res.SecondOrderEffects)
	assert.Zero(t, res.TimeEfficiency)
}

func TestScore_Percentile(t *testing.T) {
	in := Input{
		Decisions:  []schema.SessionDecision{sessionDecision(schema.RiskMedium, 0, direct(80, 1))},
		PeerScores: []float64{0, 1, 99, 100},
	}
	res := SessionStrategy{}.Score(in)
	require.NotNil(t, res.Percentile)
	assert.Equal(t, 50.0, *res.Percentile)
}

// --- categories ---

func TestSecondOrderEffects_Cascade(t *testing.T) {
	decisions := []schema.SessionDecision{
		sessionDecision("", 0, secondOrder(50, 1, 0)),
		sessionDecision("", 0, secondOrder(50, 1, 0)),
	}
	got, ok := secondOrderEffects(decisions, sessionCascadeStep)
	require.True(t, ok)
	assert.InDelta(t, 52.5, got, 0.001)

	got, ok = secondOrderEffects(decisions, previewCascadeStep)
	require.True(t, ok)
	assert.InDelta(t, 53.75, got, 0.001)

	_, ok = secondOrderEffects([]schema.SessionDecision{sessionDecision("", 0, direct(10, 1))}, sessionCascadeStep)
	assert.False(t, ok)
}

func TestSecondOrderEffects_DelayDiscount(t *testing.T) {
	immediate, ok := secondOrderEffects([]schema.SessionDecision{sessionDecision("", 0, secondOrder(80, 1, 0))}, sessionCascadeStep)
	require.True(t, ok)
	assert.InDelta(t, 80.0, immediate, 0.001)

	late, ok := secondOrderEffects([]schema.SessionDecision{sessionDecision("", 0, secondOrder(80, 1, 500))}, sessionCascadeStep)
	require.True(t, ok)
	assert.InDelta(t, 56.0, late, 0.001)
	assert.Less(t, late, immediate)

	mixed, ok := secondOrderEffects([]schema.SessionDecision{
		sessionDecision("", 0, secondOrder(80, 0.5, 0), secondOrder(80, 0.5, 60)),
	}, 1)
	require.True(t, ok)
	assert.InDelta(t, 72.0, mixed, 0.001, "(80*0.5 + 80*0.5*0.8) / 1")
}

func TestDelayPenalty(t *testing.T) {
	tests := []struct {
		delay int
		want  float64
	}{
		{0, 1.0},
		{5, 1.0},
		{6, 0.9},
		{30, 0.9},
		{120, 0.8},
		{121, 0.7},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, delayPenalty(secondOrder(0, 1, tt.delay)), "delay %d", tt.delay)
	}
	assert.Equal(t, 1.0, delayPenalty(direct(0, 1)))
}

func TestRiskBase_BalancePenalty(t *testing.T) {
	decisions := []schema.SessionDecision{
		sessionDecision(schema.RiskHigh, 0),
		sessionDecision(schema.RiskHigh, 0),
		sessionDecision(schema.RiskLow, 0),
	}
	// avg (100+100+30)/3 minus 5 for one unmatched high
	assert.InDelta(t, 230.0/3-5, riskBase(decisions, sessionRiskBase), 0.001)
	assert.Zero(t, riskBase(nil, sessionRiskBase))
}

func TestProfileBonus(t *testing.T) {
	first := sessionDecision(schema.RiskLow, 0)
	first.ScoreImpact = -10
	second := sessionDecision(schema.RiskHigh, 0)

	decisions := []schema.SessionDecision{first, second}
	// alignment 10*1/2, consistency 5*1/2, one escalation after a loss
	assert.InDelta(t, 12.5, profileBonus(decisions, schema.RiskProfileAggressive), 0.001)
	assert.InDelta(t, 7.5, profileBonus(decisions, ""), 0.001)

	var many []schema.SessionDecision
	for range 5 {
		many = append(many, first, second)
	}
	bonus := profileBonus(many, "")
	assert.InDelta(t, 2.5+adaptabilityBonusCap, bonus, 0.001, "adaptability is capped")
}

// --- exported helpers ---

func TestTimeEfficiency(t *testing.T) {
	tests := []struct {
		taken, limit int64
		want         float64
	}{
		{500, 0, 100},
		{0, 1000, 60},
		{300, 1000, 70},
		{600, 1000, 80},
		{700, 1000, 90},
		{800, 1000, 100},
		{900, 1000, 85},
		{1000, 1000, 70},
		{1200, 1000, 60},
		{3000, 1000, 0},
		{-50, 1000, 60},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, TimeEfficiency(tt.taken, tt.limit), 0.001, "taken=%d limit=%d", tt.taken, tt.limit)
	}
}

func TestExpectedImpact(t *testing.T) {
	assert.InDelta(t, 30.0, ExpectedImpact([]schema.Consequence{direct(80, 0.5), direct(-20, 0.5)}), 0.001)
	assert.Zero(t, ExpectedImpact(nil))
	assert.Zero(t, ExpectedImpact([]schema.Consequence{direct(80, 0)}))
}

func TestInferRiskLevel(t *testing.T) {
	assert.Equal(t, schema.RiskHigh, InferRiskLevel([]schema.Consequence{direct(-50, 1)}))
	assert.Equal(t, schema.RiskMedium, InferRiskLevel([]schema.Consequence{direct(20, 1), direct(-20, 1)}))
	assert.Equal(t, schema.RiskLow, InferRiskLevel([]schema.Consequence{direct(-100, 0.1)}))
	assert.Equal(t, schema.RiskLow, InferRiskLevel(nil))
}

func TestDifficultyMultiplier(t *testing.T) {
	assert.Equal(t, 1.0, DifficultyMultiplier(0))
	assert.Equal(t, 1.0, DifficultyMultiplier(1))
	assert.InDelta(t, 1.2, DifficultyMultiplier(3), 1e-9)
	assert.Equal(t, 1.5, DifficultyMultiplier(10))
}

func TestPercentile(t *testing.T) {
	assert.Nil(t, Percentile(50, nil))
	p := Percentile(50, []float64{10, 20, 50})
	require.NotNil(t, p)
	assert.InDelta(t, 66.67, *p, 0.001)
}

func TestBreakdownEntry(t *testing.T) {
	e := breakdownEntry(schema.CategoryRiskManagement, 85, 0.2)
	assert.Equal(t, schema.CategoryRiskManagement, e.Category)
	assert.InDelta(t, 17.0, e.WeightedScore, 0.001)
	assert.Len(t, e.Suggestions, 1)

	low := breakdownEntry(schema.CategoryTimeEfficiency, 10, 0.15)
	assert.Len(t, low.Suggestions, 3)
	assert.NotEqual(t, e.Explanation, low.Explanation)

	low.Suggestions[0] = "mutated"
	again := breakdownEntry(schema.CategoryTimeEfficiency, 10, 0.15)
	assert.NotEqual(t, "mutated", again.Suggestions[0])
}

func TestCalculateOutcomes(t *testing.T) {
	decisions := []schema.Decision{
		{ID: "contain", Text: "Contain", Consequences: []schema.Consequence{direct(60, 1)}, RiskLevel: schema.RiskMedium},
	}
	in := FromDecisions(decisions, []Timing{{TakenMs: 700, LimitMs: 1000}})
	require.Len(t, in.Decisions, 1)
	assert.Equal(t, "1-contain", in.Decisions[0].ID)
	assert.InDelta(t, 60.0, in.Decisions[0].ScoreImpact, 0.001)

	in.Decisions[0].Consequences[0].ImpactScore = -100
	assert.Equal(t, 60.0, decisions[0].Consequences[0].ImpactScore, "input consequences are copied")

	res := CalculateOutcomes(SessionStrategy{}, decisions, []Timing{{TakenMs: 700, LimitMs: 1000}})
	assert.InDelta(t, 90.0, res.TimeEfficiency, 0.001)
	assert.Len(t, res.Breakdown, 4)
}
