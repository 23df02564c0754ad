package scoring

import (
	"github.com/rendis/crisisdrill/pkg/schema"
)

// Session strategy tuning.
const (
	sessionCascadeStep    = 1.10
	neutralScore          = 50.0
	alignmentBonusMax     = 10.0
	consistencyBonusMax   = 5.0
	adaptabilityBonusStep = 5.0
	adaptabilityBonusCap  = 15.0
)

var sessionRiskBase = map[schema.RiskLevel]float64{
	schema.RiskLow:    30,
	schema.RiskMedium: 70,
	schema.RiskHigh:   100,
}

// SessionStrategy is the canonical, profile-aware scoring strategy. An
// empty decision list scores zero everywhere with an empty breakdown.
type SessionStrategy struct{}

// Name implements Strategy.
func (SessionStrategy) Name() string { return StrategySession }

// Weights implements Strategy.
func (SessionStrategy) Weights() Weights {
	return Weights{DirectImpact: 0.35, SecondOrderEffects: 0.30, RiskManagement: 0.20, TimeEfficiency: 0.15}
}

// Score implements Strategy.
func (s SessionStrategy) Score(in Input) schema.ScoreResult {
	if len(in.Decisions) == 0 {
		return schema.ScoreResult{Breakdown: []schema.ScoreBreakdown{}}
	}

	scores := categoryScores{time: timeEfficiency(in)}

	var ok bool
	if scores.direct, ok = directImpact(in.Decisions); !ok {
		scores.direct = neutralScore
	}
	if scores.secondOrder, ok = secondOrderEffects(in.Decisions, sessionCascadeStep); !ok {
		scores.secondOrder = neutralScore
	}
	scores.risk = clamp(riskBase(in.Decisions, sessionRiskBase) + profileBonus(in.Decisions, in.RiskProfile))

	return composite(scores, s.Weights(), DifficultyMultiplier(in.Difficulty), in.PeerScores)
}

// profileBonus rewards decisions that fit the trainee's declared risk
// profile, a consistent risk posture, and escalation right after a
// decision that went badly.
func profileBonus(decisions []schema.SessionDecision, profile schema.RiskProfile) float64 {
	n := float64(len(decisions))
	counts := make(map[schema.RiskLevel]int, 3)
	matched := 0
	preferred := profile.PreferredRisk()
	for _, d := range decisions {
		r := riskOf(d)
		counts[r]++
		if preferred != "" && r == preferred {
			matched++
		}
	}

	bonus := alignmentBonusMax * float64(matched) / n

	dominant := 0
	for _, c := range counts {
		dominant = max(dominant, c)
	}
	bonus += consistencyBonusMax * float64(dominant) / n

	adaptability := 0.0
	for i := 1; i < len(decisions); i++ {
		if decisions[i-1].ScoreImpact < 0 && riskOf(decisions[i]).Rank() > riskOf(decisions[i-1]).Rank() {
			adaptability += adaptabilityBonusStep
		}
	}
	bonus += min(adaptability, adaptabilityBonusCap)

	return bonus
}
