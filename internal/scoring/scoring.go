// Package scoring turns an ordered decision sequence into a reproducible
// composite score with a per-category breakdown.
//
// Two strategies are available. "session" is canonical: it weights direct
// impact 0.35, second-order effects 0.30, risk management 0.20 and time
// efficiency 0.15, rewards decisive risk and applies the trainee's risk
// profile and the scenario difficulty. "preview" is the lightweight variant
// (0.40/0.30/0.20/0.10) used for what-if previews of candidate decisions.
// Every function here is pure: identical inputs give identical outputs.
package scoring

import (
	"fmt"
	"sort"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Strategy names.
const (
	StrategySession = "session"
	StrategyPreview = "preview"
)

// Weights are the composite weights of the four categories; they sum to 1.
type Weights struct {
	DirectImpact       float64
	SecondOrderEffects float64
	RiskManagement     float64
	TimeEfficiency     float64
}

// Input is everything a strategy needs to score a decision sequence.
type Input struct {
	Decisions []schema.SessionDecision
	// TimeLimitsMs[i] is the time limit of the state Decisions[i] was made
	// in. Missing entries and values <= 0 mean no limit.
	TimeLimitsMs []int64
	Difficulty   int
	RiskProfile  schema.RiskProfile
	PeerScores   []float64
}

func (in Input) limit(i int) int64 {
	if i < len(in.TimeLimitsMs) {
		return in.TimeLimitsMs[i]
	}
	return 0
}

// Strategy scores a decision sequence.
type Strategy interface {
	Name() string
	Weights() Weights
	Score(in Input) schema.ScoreResult
}

// New returns the named strategy.
func New(name string) (Strategy, error) {
	switch name {
	case StrategySession, "":
		return SessionStrategy{}, nil
	case StrategyPreview:
		return PreviewStrategy{}, nil
	default:
		return nil, schema.NewErrorf(schema.ErrCodeValidation, "unknown scoring strategy %q", name).
			WithDetails(map[string]any{"available": Names()})
	}
}

// Names lists the available strategy names.
func Names() []string {
	names := []string{StrategySession, StrategyPreview}
	sort.Strings(names)
	return names
}

// Timing is the measured duration and limit of one decision.
type Timing struct {
	TakenMs int64
	LimitMs int64
}

// FromDecisions builds an Input from raw decisions and their timings. It is
// how callers score sequences that were never run through a session.
func FromDecisions(decisions []schema.Decision, timings []Timing) Input {
	in := Input{
		Decisions:    make([]schema.SessionDecision, len(decisions)),
		TimeLimitsMs: make([]int64, len(decisions)),
	}
	for i, d := range decisions {
		var t Timing
		if i < len(timings) {
			t = timings[i]
		}
		in.Decisions[i] = schema.SessionDecision{
			ID:           fmt.Sprintf("%d-%s", i+1, d.ID),
			DecisionID:   d.ID,
			DecisionText: d.Text,
			TimeTakenMs:  t.TakenMs,
			ScoreImpact:  ExpectedImpact(d.Consequences),
			Consequences: schema.CloneConsequences(d.Consequences),
			RiskLevel:    d.RiskLevel,
		}
		in.TimeLimitsMs[i] = t.LimitMs
	}
	return in
}

// CalculateOutcomes scores raw decisions with the given strategy.
func CalculateOutcomes(s Strategy, decisions []schema.Decision, timings []Timing) schema.ScoreResult {
	return s.Score(FromDecisions(decisions, timings))
}

// categoryScores holds unrounded category scores.
type categoryScores struct {
	direct, secondOrder, risk, time float64
}

// composite builds the final ScoreResult from category scores.
func composite(s categoryScores, w Weights, multiplier float64, peers []float64) schema.ScoreResult {
	total := s.direct*w.DirectImpact +
		s.secondOrder*w.SecondOrderEffects +
		s.risk*w.RiskManagement +
		s.time*w.TimeEfficiency
	total = round2(clamp(total * multiplier))

	result := schema.ScoreResult{
		TotalScore:         total,
		DirectImpact:       round2(clamp(s.direct)),
		SecondOrderEffects: round2(clamp(s.secondOrder)),
		RiskManagement:     round2(clamp(s.risk)),
		TimeEfficiency:     round2(clamp(s.time)),
		Percentile:         Percentile(total, peers),
	}
	result.Breakdown = []schema.ScoreBreakdown{
		breakdownEntry(schema.CategoryDirectImpact, result.DirectImpact, w.DirectImpact),
		breakdownEntry(schema.CategorySecondOrderEffects, result.SecondOrderEffects, w.SecondOrderEffects),
		breakdownEntry(schema.CategoryRiskManagement, result.RiskManagement, w.RiskManagement),
		breakdownEntry(schema.CategoryTimeEfficiency, result.TimeEfficiency, w.TimeEfficiency),
	}
	return result
}

// directImpact returns sum(impact*p)/sum(p) over direct consequences and
// whether any weight contributed.
func directImpact(decisions []schema.SessionDecision) (float64, bool) {
	var weighted, total float64
	for _, d := range decisions {
		for _, c := range d.Consequences {
			if c.Kind != schema.ConsequenceDirect {
				continue
			}
			weighted += c.ImpactScore * c.Probability
			total += c.Probability
		}
	}
	if total == 0 {
		return 0, false
	}
	return clamp(weighted / total), true
}

// secondOrderEffects is the delay-discounted weighted average of second-order
// impact, where each successive second-order consequence is amplified by a
// cascade multiplier growing by step. The delay discount applies to the
// impact only, so late consequences pull the score toward zero.
func secondOrderEffects(decisions []schema.SessionDecision, step float64) (float64, bool) {
	var weighted, total float64
	multiplier := 1.0
	for _, d := range decisions {
		for _, c := range d.Consequences {
			if c.Kind != schema.ConsequenceSecondOrder {
				continue
			}
			weighted += c.ImpactScore * c.Probability * delayPenalty(c) * multiplier
			total += c.Probability
			multiplier *= step
		}
	}
	if total == 0 {
		return 0, false
	}
	return clamp(weighted / total), true
}

func timeEfficiency(in Input) float64 {
	if len(in.Decisions) == 0 {
		return 100
	}
	var sum float64
	for i, d := range in.Decisions {
		sum += TimeEfficiency(d.TimeTakenMs, in.limit(i))
	}
	return sum / float64(len(in.Decisions))
}

// riskBase averages per-decision base scores and applies the balance
// penalty of 5 points per unmatched high or low decision.
func riskBase(decisions []schema.SessionDecision, base map[schema.RiskLevel]float64) float64 {
	if len(decisions) == 0 {
		return 0
	}
	var sum float64
	high, low := 0, 0
	for _, d := range decisions {
		r := riskOf(d)
		sum += base[r]
		switch r {
		case schema.RiskHigh:
			high++
		case schema.RiskLow:
			low++
		}
	}
	avg := sum / float64(len(decisions))
	imbalance := high - low
	if imbalance < 0 {
		imbalance = -imbalance
	}
	return avg - 5*float64(imbalance)
}
