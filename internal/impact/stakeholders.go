package impact

import (
	"strings"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Implicit group names used when a state names fewer than two characters.
const (
	GroupCustomers  = "Customers"
	GroupRegulators = "Regulatory Bodies"
)

// Cross-group effect flags.
const (
	EffectMultiStakeholder  = "multi_stakeholder"
	EffectCrossesBoundaries = "cascading_across_boundaries"
)

// StakeholderGroup is a set of characters sharing a role, or an implicit
// audience synthesized from scenario text.
type StakeholderGroup struct {
	Name            string   `json:"name"`
	Members         []string `json:"members"`
	Explicit        bool     `json:"explicit"`
	PrimaryConcerns []string `json:"primary_concerns"`
	ImpactScore     float64  `json:"impact_score"`
	// AffectedBy lists the consequences whose description touches a concern.
	AffectedBy []string `json:"affected_by"`
}

// StakeholderImpact is the stakeholder section of an impact report.
type StakeholderImpact struct {
	TotalStakeholders int                `json:"total_stakeholders"`
	Groups            []StakeholderGroup `json:"groups"`
	MostAffected      string             `json:"most_affected,omitempty"`
	MostAffectedScore float64            `json:"most_affected_score"`
	CrossGroupEffects []string           `json:"cross_group_effects"`
}

// roleConcerns maps role keywords to the concerns that group cares about.
var roleConcerns = []struct {
	roles    []string
	concerns []string
}{
	{[]string{"ceo", "executive", "director", "manager", "board", "owner", "chief"},
		[]string{"revenue", "reputation", "strategy", "cost", "business", "leadership", "shareholders"}},
	{[]string{"engineer", "technical", "developer", "it", "ops", "sre", "security", "analyst"},
		[]string{"system", "systems", "outage", "data", "security", "service", "infrastructure", "downtime", "network"}},
	{[]string{"legal", "counsel", "compliance", "regulator", "auditor", "lawyer"},
		[]string{"compliance", "regulation", "regulatory", "legal", "liability", "audit", "fine", "lawsuit", "privacy"}},
	{[]string{"communications", "pr", "spokesperson", "media", "press", "marketing"},
		[]string{"media", "public", "reputation", "statement", "press", "announcement", "trust"}},
	{[]string{"customer", "client", "user", "patient", "citizen", "resident"},
		[]string{"customer", "customers", "service", "trust", "access", "data", "safety", "users"}},
	{[]string{"doctor", "nurse", "medical", "physician", "clinician", "paramedic"},
		[]string{"patient", "patients", "safety", "care", "treatment", "health"}},
	{[]string{"employee", "staff", "team", "worker", "volunteer", "responder"},
		[]string{"staff", "employee", "employees", "morale", "workload", "safety", "team"}},
}

var (
	customerConcerns  = []string{"customer", "customers", "service", "trust", "access", "users", "public", "clients"}
	regulatorConcerns = []string{"compliance", "regulation", "regulatory", "legal", "report", "reporting", "audit", "fine", "privacy", "violation"}
	regulatedDomains  = []string{"healthcare", "health", "hospital", "medical", "patient", "finance", "financial", "bank", "banking", "payment", "insurance"}
)

func (a *Analyzer) stakeholderImpact(in Input) StakeholderImpact {
	groups := a.explicitGroups(in.State.Characters)
	total := len(in.State.Characters)

	if len(in.State.Characters) < 2 {
		groups = append(groups, StakeholderGroup{Name: GroupCustomers, PrimaryConcerns: append([]string(nil), customerConcerns...)})
		total++
		text := strings.Join([]string{in.ScenarioText, in.State.Description, in.State.Context}, " ")
		if a.containsAny(text, regulatedDomains) > 0 {
			groups = append(groups, StakeholderGroup{Name: GroupRegulators, PrimaryConcerns: append([]string(nil), regulatorConcerns...)})
			total++
		}
	}

	hits := make(map[string]int)
	for i := range groups {
		g := &groups[i]
		var weighted, weight float64
		g.AffectedBy = []string{}
		for _, c := range in.Decision.Consequences {
			if a.matcher.Shared(g.PrimaryConcerns, a.matcher.Keywords(c.Description)) == 0 {
				continue
			}
			g.AffectedBy = append(g.AffectedBy, c.ID)
			hits[c.ID]++
			weighted += c.ImpactScore * c.Probability
			weight += c.Probability
		}
		if weight > 0 {
			g.ImpactScore = round2(weighted / weight)
		}
		if g.Members == nil {
			g.Members = []string{}
		}
	}

	out := StakeholderImpact{
		TotalStakeholders: total,
		Groups:            groups,
		CrossGroupEffects: []string{},
	}
	for i, g := range groups {
		if i == 0 || g.ImpactScore > out.MostAffectedScore {
			out.MostAffected = g.Name
			out.MostAffectedScore = g.ImpactScore
		}
	}

	affected := 0
	for _, g := range groups {
		if len(g.AffectedBy) > 0 {
			affected++
		}
	}
	if affected >= 2 {
		out.CrossGroupEffects = append(out.CrossGroupEffects, EffectMultiStakeholder)
	}
	for _, c := range in.Decision.Consequences {
		if c.Kind == schema.ConsequenceSecondOrder && hits[c.ID] >= 2 {
			out.CrossGroupEffects = append(out.CrossGroupEffects, EffectCrossesBoundaries)
			break
		}
	}
	return out
}

// explicitGroups groups characters by role in order of first appearance.
func (a *Analyzer) explicitGroups(characters []schema.Character) []StakeholderGroup {
	var groups []StakeholderGroup
	index := make(map[string]int)
	for _, ch := range characters {
		role := strings.TrimSpace(ch.Role)
		if role == "" {
			role = "Unassigned"
		}
		key := strings.ToLower(role)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, StakeholderGroup{Name: role, Explicit: true})
		}
		g := &groups[i]
		g.Members = append(g.Members, ch.Name)
		g.PrimaryConcerns = mergeKeywords(g.PrimaryConcerns, a.concernsFor(ch))
	}
	return groups
}

// concernsFor infers what a character cares about from role and expertise.
func (a *Analyzer) concernsFor(ch schema.Character) []string {
	concerns := a.matcher.Keywords(ch.Role)
	// Role names such as "IT" collide with stop words.
	roleWords := letterRuns(ch.Role)
	for _, rc := range roleConcerns {
		if a.matcher.Shared(rc.roles, roleWords) > 0 {
			concerns = mergeKeywords(concerns, rc.concerns)
		}
	}
	for _, area := range ch.ExpertiseAreas {
		concerns = mergeKeywords(concerns, a.matcher.Keywords(area))
	}
	return concerns
}

func mergeKeywords(dst, src []string) []string {
	seen := make(map[string]bool, len(dst))
	for _, k := range dst {
		seen[k] = true
	}
	for _, k := range src {
		if !seen[k] {
			seen[k] = true
			dst = append(dst, k)
		}
	}
	return dst
}
