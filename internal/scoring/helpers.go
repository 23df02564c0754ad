package scoring

import (
	"math"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// TimeEfficiency scores how a decision's duration compares with its limit.
// The optimal band is 60-80% of the limit; answering very fast scores 60-80,
// overrunning decays from 70 to 0. No limit (limitMs <= 0) scores 100.
func TimeEfficiency(takenMs, limitMs int64) float64 {
	if limitMs <= 0 {
		return 100
	}
	ratio := float64(max(takenMs, 0)) / float64(limitMs)
	switch {
	case ratio <= 0.6:
		return 60 + (ratio/0.6)*20
	case ratio <= 0.8:
		return 80 + ((ratio-0.6)/0.2)*20
	case ratio <= 1.0:
		return 100 - ((ratio-0.8)/0.2)*30
	default:
		return math.Max(0, 70-(ratio-1.0)*50)
	}
}

// ExpectedImpact is the probability-weighted mean impact of consequences,
// in [-100, 100]. Consequences with zero probability carry no weight; an
// empty or weightless list yields 0.
func ExpectedImpact(consequences []schema.Consequence) float64 {
	var weighted, total float64
	for _, c := range consequences {
		weighted += c.ImpactScore * c.Probability
		total += c.Probability
	}
	if total == 0 {
		return 0
	}
	return weighted / total
}

// InferRiskLevel derives a decision's risk from its worst expected loss:
// a consequence whose -impact*probability reaches 40 makes it high, 15 medium.
func InferRiskLevel(consequences []schema.Consequence) schema.RiskLevel {
	worst := 0.0
	for _, c := range consequences {
		worst = math.Max(worst, -c.ImpactScore*c.Probability)
	}
	switch {
	case worst >= 40:
		return schema.RiskHigh
	case worst >= 15:
		return schema.RiskMedium
	default:
		return schema.RiskLow
	}
}

// delayPenalty discounts consequences that resolve far in the future.
func delayPenalty(c schema.Consequence) float64 {
	d := c.Delay()
	switch {
	case d <= schema.ImmediateDelayMinutes:
		return 1.0
	case d <= 30:
		return 0.9
	case d <= 120:
		return 0.8
	default:
		return 0.7
	}
}

// DifficultyMultiplier scales a composite score by scenario difficulty,
// +10% per level above 1, capped at 1.5.
func DifficultyMultiplier(difficulty int) float64 {
	if difficulty < 1 {
		difficulty = 1
	}
	return math.Min(1.5, 1+float64(difficulty-1)*0.1)
}

// Percentile returns the share of peer scores strictly below total, in
// [0, 100]. Nil when there are no peers.
func Percentile(total float64, peers []float64) *float64 {
	if len(peers) == 0 {
		return nil
	}
	below := 0
	for _, p := range peers {
		if p < total {
			below++
		}
	}
	pct := round2(float64(below) / float64(len(peers)) * 100)
	return &pct
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// riskOf returns the carried risk level, inferring it when absent.
func riskOf(d schema.SessionDecision) schema.RiskLevel {
	if d.RiskLevel.Rank() > 0 {
		return d.RiskLevel
	}
	return InferRiskLevel(d.Consequences)
}
