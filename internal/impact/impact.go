// Package impact explains why a single decision scored as it did: who it
// affects, how its consequences cascade, how risky it was, when its effects
// land and what the trainee could improve.
//
// Analysis is pure and deterministic. Text heuristics are keyword overlaps
// behind TextMatcher, not language understanding.
package impact

import (
	"math"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Input is a decision together with the scenario context it was taken in.
type Input struct {
	Decision schema.Decision
	State    schema.ScenarioState
	// ScenarioText is free scenario text (title, description, domain) used
	// for domain detection alongside the state's own description.
	ScenarioText string
	// PriorDecisions are the session's earlier decisions, oldest first.
	PriorDecisions []schema.SessionDecision
	ElapsedMs      int64
}

// DecisionImpactAnalysis is the full report for one decision.
type DecisionImpactAnalysis struct {
	DecisionID    string                   `json:"decision_id"`
	StateID       string                   `json:"state_id"`
	Stakeholders  StakeholderImpact        `json:"stakeholders"`
	Cascade       CascadeAnalysis          `json:"cascade"`
	Risk          RiskAssessment           `json:"risk"`
	Timeline      TimelineImpact           `json:"timeline"`
	Context       ContextualFactors        `json:"context"`
	Opportunities []ImprovementOpportunity `json:"opportunities"`
	Severity      SeverityDistribution     `json:"severity"`
}

// SeverityDistribution counts consequences per |impact| band.
type SeverityDistribution struct {
	Low      int `json:"low"`
	Medium   int `json:"medium"`
	High     int `json:"high"`
	Critical int `json:"critical"`
}

// Analyzer produces DecisionImpactAnalysis reports.
type Analyzer struct {
	matcher TextMatcher
}

// NewAnalyzer creates an Analyzer. A nil matcher uses KeywordMatcher.
func NewAnalyzer(matcher TextMatcher) *Analyzer {
	if matcher == nil {
		matcher = KeywordMatcher{}
	}
	return &Analyzer{matcher: matcher}
}

// Analyze builds the impact report for in.Decision. Inputs are never mutated
// and every slice in the result is non-nil.
func (a *Analyzer) Analyze(in Input) DecisionImpactAnalysis {
	consequences := in.Decision.Consequences

	stakeholders := a.stakeholderImpact(in)
	cascade := a.cascadeAnalysis(consequences, in.PriorDecisions)
	risk := a.riskAssessment(in)
	timeline := timelineImpact(consequences)

	return DecisionImpactAnalysis{
		DecisionID:    in.Decision.ID,
		StateID:       in.State.ID,
		Stakeholders:  stakeholders,
		Cascade:       cascade,
		Risk:          risk,
		Timeline:      timeline,
		Context:       a.contextualFactors(in),
		Opportunities: opportunities(stakeholders, cascade, in),
		Severity:      Severity(consequences),
	}
}

// Severity buckets consequences by absolute impact: below 30 low, below 60
// medium, below 80 high, otherwise critical.
func Severity(consequences []schema.Consequence) SeverityDistribution {
	var d SeverityDistribution
	for _, c := range consequences {
		switch m := math.Abs(c.ImpactScore); {
		case m < 30:
			d.Low++
		case m < 60:
			d.Medium++
		case m < 80:
			d.High++
		default:
			d.Critical++
		}
	}
	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// containsAny counts the lexicon terms present in the keywords of text.
func (a *Analyzer) containsAny(text string, lexicon []string) int {
	return a.matcher.Shared(lexicon, a.matcher.Keywords(text))
}
