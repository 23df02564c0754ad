package scoring

import "github.com/rendis/crisisdrill/pkg/schema"

const previewCascadeStep = 1.15

var previewRiskBase = map[schema.RiskLevel]float64{
	schema.RiskLow:    100,
	schema.RiskMedium: 70,
	schema.RiskHigh:   40,
}

// PreviewStrategy is the lightweight strategy for what-if previews. It
// favours cautious risk, ignores profile and difficulty, and scores missing
// categories as 0. With no decisions only the default time efficiency of
// 100 contributes, giving a total of 10.
type PreviewStrategy struct{}

// Name implements Strategy.
func (PreviewStrategy) Name() string { return StrategyPreview }

// Weights implements Strategy.
func (PreviewStrategy) Weights() Weights {
	return Weights{DirectImpact: 0.40, SecondOrderEffects: 0.30, RiskManagement: 0.20, TimeEfficiency: 0.10}
}

// Score implements Strategy.
func (p PreviewStrategy) Score(in Input) schema.ScoreResult {
	scores := categoryScores{time: timeEfficiency(in)}
	scores.direct, _ = directImpact(in.Decisions)
	scores.secondOrder, _ = secondOrderEffects(in.Decisions, previewCascadeStep)
	scores.risk = clamp(riskBase(in.Decisions, previewRiskBase))
	return composite(scores, p.Weights(), 1, in.PeerScores)
}
