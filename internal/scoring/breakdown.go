package scoring

import "github.com/rendis/crisisdrill/pkg/schema"

// band indexes the four score bands: >=80, >=60, >=40, below 40.
func band(score float64) int {
	switch {
	case score >= 80:
		return 0
	case score >= 60:
		return 1
	case score >= 40:
		return 2
	default:
		return 3
	}
}

type bandText struct {
	explanation string
	suggestions []string
}

var bandTexts = map[schema.ScoreCategory][4]bandText{
	schema.CategoryDirectImpact: {
		{"Your decisions produced strongly positive immediate outcomes.", []string{
			"Keep validating assumptions before acting to sustain this level.",
		}},
		{"Your decisions produced mostly positive immediate outcomes.", []string{
			"Compare the expected payoff of each option before committing.",
			"Look for options that address the most urgent harm first.",
		}},
		{"Your decisions had mixed immediate outcomes.", []string{
			"Identify which stakeholders are hurt first by each option.",
			"Prefer options with high-probability positive effects.",
			"Gather one more data point before committing under uncertainty.",
		}},
		{"Your decisions caused significant immediate harm.", []string{
			"Stabilise the situation before pursuing secondary goals.",
			"Review which consequences you underestimated and why.",
			"Practise containment-first responses in lower-stakes drills.",
		}},
	},
	schema.CategorySecondOrderEffects: {
		{"You anticipated and managed downstream effects well.", []string{
			"Share your reasoning about downstream effects with the team.",
		}},
		{"You handled most downstream effects adequately.", []string{
			"Ask what happens an hour after each decision, not just now.",
			"Track which effects compound across consecutive decisions.",
		}},
		{"Several downstream effects worked against you.", []string{
			"Map how each decision changes the options available later.",
			"Watch for effects that amplify as the crisis drifts.",
			"Schedule explicit check-ins on delayed consequences.",
		}},
		{"Downstream effects compounded into serious problems.", []string{
			"Before acting, list the second-order effects you expect.",
			"Break cascades early by addressing root causes.",
			"Review the timeline of delayed consequences after the drill.",
		}},
	},
	schema.CategoryRiskManagement: {
		{"Your risk posture was well calibrated to the situation.", []string{
			"Keep matching risk appetite to the stakes of each state.",
		}},
		{"Your risk posture was generally sound.", []string{
			"Balance cautious and decisive choices more deliberately.",
			"Escalate earlier when an earlier decision went badly.",
		}},
		{"Your risk posture was inconsistent.", []string{
			"Decide on a risk posture up front and revisit it explicitly.",
			"Avoid sequences that are uniformly reckless or uniformly timid.",
			"Align choices with your declared risk profile.",
		}},
		{"Your risk posture worked against the response.", []string{
			"Review where high-risk choices were not justified by the stakes.",
			"Practise recognising when decisive action is required.",
			"Use a simple risk matrix before committing.",
		}},
	},
	schema.CategoryTimeEfficiency: {
		{"You used the available time effectively.", []string{
			"Keep reserving a short margin before each deadline.",
		}},
		{"Your timing was reasonable.", []string{
			"Aim to decide with roughly a quarter of the time remaining.",
			"Avoid rushing decisions that benefit from a quick check.",
		}},
		{"Your timing often missed the optimal window.", []string{
			"Set an internal deadline before the hard limit.",
			"Delegate information gathering to save decision time.",
			"Avoid both snap decisions and last-second choices.",
		}},
		{"Time pressure significantly hurt your decisions.", []string{
			"Practise time-boxed decisions in lower-stakes drills.",
			"Decide with partial information when the limit is close.",
			"Prepare default actions for common crisis states.",
		}},
	},
}

func breakdownEntry(category schema.ScoreCategory, score, weight float64) schema.ScoreBreakdown {
	text := bandTexts[category][band(score)]
	return schema.ScoreBreakdown{
		Category:      category,
		Score:         score,
		Weight:        weight,
		WeightedScore: round2(score * weight),
		Explanation:   text.explanation,
		Suggestions:   append([]string{}, text.suggestions...),
	}
}
