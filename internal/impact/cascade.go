package impact

import (
	"math"
	"strings"

	"github.com/rendis/crisisdrill/pkg/schema"
)

const (
	criticalLinkImpact     = 70
	amplificationWindow    = 3
	amplificationStep      = 0.2
	amplificationThreshold = 1.1
)

// CascadeChain is a consequence followed by the later, more delayed
// second-order consequences of the same decision.
type CascadeChain struct {
	ConsequenceIDs []string `json:"consequence_ids"`
	TotalImpact    float64  `json:"total_impact"`
	// CriticalLinks are the chain members with |impact| above 70.
	CriticalLinks []string `json:"critical_links"`
}

// AmplificationFactor records how strongly a prior decision compounds this one.
type AmplificationFactor struct {
	PriorDecisionID string  `json:"prior_decision_id"`
	SharedKeywords  int     `json:"shared_keywords"`
	Factor          float64 `json:"factor"`
}

// CascadeAnalysis is the cascade section of an impact report.
type CascadeAnalysis struct {
	DirectCount      int                   `json:"direct_count"`
	SecondOrderCount int                   `json:"second_order_count"`
	Chains           []CascadeChain        `json:"chains"`
	Amplification    []AmplificationFactor `json:"amplification"`
	CascadeRiskScore float64               `json:"cascade_risk_score"`
	Mitigations      []string              `json:"mitigations"`
}

var baseMitigations = []string{
	"Monitor delayed consequences at each escalation checkpoint",
	"Prepare contingency actions before second-order effects land",
	"Assign an owner to track the cascade until it resolves",
}

const criticalMitigation = "Break the chain at its critical links before they compound"

func (a *Analyzer) cascadeAnalysis(consequences []schema.Consequence, prior []schema.SessionDecision) CascadeAnalysis {
	out := CascadeAnalysis{
		Chains:        cascadeChains(consequences),
		Amplification: a.amplification(consequences, prior),
		Mitigations:   []string{},
	}
	for _, c := range consequences {
		if c.Kind == schema.ConsequenceSecondOrder {
			out.SecondOrderCount++
		} else {
			out.DirectCount++
		}
	}

	var chainImpact float64
	critical := false
	for _, ch := range out.Chains {
		chainImpact += math.Abs(ch.TotalImpact)
		critical = critical || len(ch.CriticalLinks) > 0
	}
	density := 0.0
	if len(consequences) > 0 {
		density = math.Min(1, chainImpact/(100*float64(len(consequences))))
	}
	strength := 0.0
	for _, f := range out.Amplification {
		strength = math.Max(strength, math.Min(1, f.Factor-1))
	}
	out.CascadeRiskScore = round2(math.Min(100, 60*density+40*strength))

	if len(out.Chains) > 0 {
		out.Mitigations = append(out.Mitigations, baseMitigations...)
		if critical {
			out.Mitigations = append(out.Mitigations, criticalMitigation)
		}
	}
	return out
}

// cascadeChains traces, for each consequence, the later second-order
// consequences with a larger delay. Only chains longer than one are kept.
func cascadeChains(consequences []schema.Consequence) []CascadeChain {
	chains := []CascadeChain{}
	for i, head := range consequences {
		chain := CascadeChain{
			ConsequenceIDs: []string{head.ID},
			TotalImpact:    head.ImpactScore,
			CriticalLinks:  []string{},
		}
		if math.Abs(head.ImpactScore) > criticalLinkImpact {
			chain.CriticalLinks = append(chain.CriticalLinks, head.ID)
		}
		for _, next := range consequences[i+1:] {
			if next.Kind != schema.ConsequenceSecondOrder || next.Delay() <= head.Delay() {
				continue
			}
			chain.ConsequenceIDs = append(chain.ConsequenceIDs, next.ID)
			chain.TotalImpact += next.ImpactScore
			if math.Abs(next.ImpactScore) > criticalLinkImpact {
				chain.CriticalLinks = append(chain.CriticalLinks, next.ID)
			}
		}
		if len(chain.ConsequenceIDs) > 1 {
			chain.TotalImpact = round2(chain.TotalImpact)
			chains = append(chains, chain)
		}
	}
	return chains
}

// amplification compares this decision's consequence keywords with each of
// the last three prior decisions.
func (a *Analyzer) amplification(consequences []schema.Consequence, prior []schema.SessionDecision) []AmplificationFactor {
	factors := []AmplificationFactor{}
	if len(consequences) == 0 || len(prior) == 0 {
		return factors
	}
	current := a.matcher.Keywords(describe(consequences))
	for _, p := range prior[max(0, len(prior)-amplificationWindow):] {
		shared := a.matcher.Shared(current, a.matcher.Keywords(p.DecisionText+" "+describe(p.Consequences)))
		factor := round2(1 + amplificationStep*float64(shared))
		if factor > amplificationThreshold {
			factors = append(factors, AmplificationFactor{
				PriorDecisionID: p.ID,
				SharedKeywords:  shared,
				Factor:          factor,
			})
		}
	}
	return factors
}

func describe(consequences []schema.Consequence) string {
	parts := make([]string, len(consequences))
	for i, c := range consequences {
		parts[i] = c.Description
	}
	return strings.Join(parts, " ")
}
