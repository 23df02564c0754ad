package impact

import "strings"

// Rating is a qualitative low/moderate/high rating.
type Rating string

const (
	RatingLow      Rating = "low"
	RatingModerate Rating = "moderate"
	RatingHigh     Rating = "high"
)

// ContextualFactors rates the circumstances the decision was taken in.
type ContextualFactors struct {
	Complexity              Rating `json:"complexity"`
	EnvironmentalPressure   Rating `json:"environmental_pressure"`
	ResourceConstraints     Rating `json:"resource_constraints"`
	StakeholderDynamics     Rating `json:"stakeholder_dynamics"`
	TimeConstraints         Rating `json:"time_constraints"`
	InformationAvailability Rating `json:"information_availability"`
}

var (
	pressureTerms = []string{"crisis", "urgent", "urgency", "pressure", "media", "public", "escalating", "critical", "emergency", "deadline"}
	resourceTerms = []string{"limited", "shortage", "budget", "understaffed", "constrained", "scarce", "insufficient", "exhausted", "overloaded"}
	conflictTerms = []string{"conflict", "disagree", "disagreement", "tension", "dispute", "competing", "hostile", "angry"}
	unknownTerms  = []string{"unknown", "unclear", "uncertain", "incomplete", "rumor", "rumors", "unconfirmed", "conflicting", "speculation"}
)

// Time limits in seconds at or below which time constraints rate high or moderate.
const (
	tightTimeLimit = 120
	timeLimitSlack = 600
)

func (a *Analyzer) contextualFactors(in Input) ContextualFactors {
	st := in.State
	text := strings.Join(append([]string{st.Description, st.Context}, st.EnvironmentalFactors...), " ")

	complexity := 0.4*float64(len(st.Decisions)) + 0.3*float64(len(st.EnvironmentalFactors)) + 0.3*float64(len(st.Characters))
	pressure := len(st.EnvironmentalFactors) + a.containsAny(text, pressureTerms)
	dynamics := len(st.Characters) + 2*a.containsAny(text, conflictTerms)

	f := ContextualFactors{
		Complexity:            rate(complexity, 1.5, 3),
		EnvironmentalPressure: rate(float64(pressure), 1, 3),
		ResourceConstraints:   rate(float64(a.containsAny(text, resourceTerms)), 1, 2),
		StakeholderDynamics:   rate(float64(dynamics), 2, 4),
		TimeConstraints:       RatingLow,
	}
	if st.TimeLimitSeconds != nil && *st.TimeLimitSeconds > 0 {
		switch limit := *st.TimeLimitSeconds; {
		case limit <= tightTimeLimit:
			f.TimeConstraints = RatingHigh
		case limit <= timeLimitSlack:
			f.TimeConstraints = RatingModerate
		}
	}
	switch a.containsAny(text, unknownTerms) {
	case 0:
		f.InformationAvailability = RatingHigh
	case 1:
		f.InformationAvailability = RatingModerate
	default:
		f.InformationAvailability = RatingLow
	}
	return f
}

func rate(v, moderate, high float64) Rating {
	switch {
	case v >= high:
		return RatingHigh
	case v >= moderate:
		return RatingModerate
	default:
		return RatingLow
	}
}
