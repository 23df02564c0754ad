package impact

import "github.com/rendis/crisisdrill/internal/scoring"

// Priority orders improvement opportunities.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
)

// Opportunity categories.
const (
	CategoryStakeholders = "Stakeholder Management"
	CategoryRisk         = "Risk Mitigation"
	CategoryTime         = "Time Management"
)

// Thresholds that trigger an opportunity.
const (
	stakeholderImpactFloor = 40
	cascadeRiskCeiling     = 70
	timeEfficiencyFloor    = 80
)

// ImprovementOpportunity is a rule-triggered coaching item.
type ImprovementOpportunity struct {
	Category    string   `json:"category"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	ActionSteps []string `json:"action_steps"`
}

func opportunities(st StakeholderImpact, cascade CascadeAnalysis, in Input) []ImprovementOpportunity {
	out := []ImprovementOpportunity{}
	if st.MostAffected != "" && st.MostAffectedScore < stakeholderImpactFloor {
		out = append(out, ImprovementOpportunity{
			Category:    CategoryStakeholders,
			Description: "Even the most affected stakeholder group, " + st.MostAffected + ", came out poorly from this decision",
			Priority:    PriorityHigh,
			ActionSteps: []string{
				"Map every affected group before committing",
				"Name what each group needs to hear and when",
				"Pick the option that protects the most exposed group",
			},
		})
	}
	if cascade.CascadeRiskScore > cascadeRiskCeiling {
		out = append(out, ImprovementOpportunity{
			Category:    CategoryRisk,
			Description: "Consequences of this decision compound into a high cascade risk",
			Priority:    PriorityHigh,
			ActionSteps: []string{
				"Trace second-order effects two steps ahead",
				"Set checkpoints to catch escalation early",
				"Keep a fallback that contains the worst chain",
			},
		})
	}
	if scoring.TimeEfficiency(in.ElapsedMs, in.State.TimeLimitMs()) < timeEfficiencyFloor {
		out = append(out, ImprovementOpportunity{
			Category:    CategoryTime,
			Description: "The decision was taken outside the optimal window of the time limit",
			Priority:    PriorityMedium,
			ActionSteps: []string{
				"Aim to decide at 60-80% of the available time",
				"Gather the critical facts first and decide on them",
			},
		})
	}
	return out
}
