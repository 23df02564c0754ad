package impact

import (
	"math"
	"strings"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// RiskDimension is one bucketed risk axis. Value is the raw measurement the
// level was derived from.
type RiskDimension struct {
	Level schema.RiskLevel `json:"level"`
	Value float64          `json:"value"`
}

// RiskAssessment rates a decision on five independent dimensions.
type RiskAssessment struct {
	Probability   RiskDimension    `json:"probability"`
	Magnitude     RiskDimension    `json:"magnitude"`
	Timing        RiskDimension    `json:"timing"`
	Uncertainty   RiskDimension    `json:"uncertainty"`
	Reversibility RiskDimension    `json:"reversibility"`
	Overall       schema.RiskLevel `json:"overall"`
	OverallScore  float64          `json:"overall_score"`
}

var irreversibleTerms = []string{
	"permanent", "permanently", "irreversible", "irreparable", "fatal", "fatalities",
	"death", "deaths", "destroyed", "destruction", "terminate", "terminated",
	"lawsuit", "bankruptcy", "collapse", "shutdown", "lost", "leaked", "breach",
}

func (a *Analyzer) riskAssessment(in Input) RiskAssessment {
	cs := in.Decision.Consequences

	var pSum, maxImpact float64
	uncertain := 0
	for _, c := range cs {
		pSum += c.Probability
		maxImpact = math.Max(maxImpact, math.Abs(c.ImpactScore))
		if c.Probability < 0.7 {
			uncertain++
		}
	}
	var avgP, uncertainShare float64
	if len(cs) > 0 {
		avgP = pSum / float64(len(cs))
		uncertainShare = float64(uncertain) / float64(len(cs))
	}

	timing := 0.0
	if limit := in.State.TimeLimitMs(); limit > 0 {
		timing = float64(max(in.ElapsedMs, 0)) / float64(limit)
	}

	texts := []string{in.Decision.Text}
	for _, c := range cs {
		texts = append(texts, c.Description)
	}
	irreversible := float64(a.containsAny(strings.Join(texts, " "), irreversibleTerms))

	r := RiskAssessment{
		Probability:   dimension(avgP, 0.4, 0.7),
		Magnitude:     dimension(maxImpact, 40, 70),
		Timing:        dimension(timing, 0.5, 0.8),
		Uncertainty:   dimension(uncertainShare, 0.25, 0.5),
		Reversibility: dimension(irreversible, 1, 2),
	}
	sum := r.Probability.Level.Rank() + r.Magnitude.Level.Rank() + r.Timing.Level.Rank() +
		r.Uncertainty.Level.Rank() + r.Reversibility.Level.Rank()
	r.OverallScore = round2(float64(sum) / 5)
	switch {
	case r.OverallScore >= 2.5:
		r.Overall = schema.RiskHigh
	case r.OverallScore >= 1.5:
		r.Overall = schema.RiskMedium
	default:
		r.Overall = schema.RiskLow
	}
	return r
}

// dimension buckets v: at or above high is high, at or above medium is medium.
func dimension(v, medium, high float64) RiskDimension {
	d := RiskDimension{Level: schema.RiskLow, Value: round2(v)}
	switch {
	case v >= high:
		d.Level = schema.RiskHigh
	case v >= medium:
		d.Level = schema.RiskMedium
	}
	return d
}
