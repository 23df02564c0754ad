package diagram

import (
	"errors"
	"sort"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Progress is a session's path through a scenario graph.
type Progress struct {
	StateHistory []string
	Decisions    []schema.SessionDecision
}

// Build constructs a DiagramModel from a scenario graph and an optional
// session overlay. Nodes are ordered breadth-first from the initial state;
// states unreachable from it follow in id order on a final level. Branches
// whose endpoints are not states are left out.
func Build(g schema.ScenarioGraph, title string, progress *Progress) (*DiagramModel, error) {
	if len(g.States) == 0 {
		return nil, errors.New("diagram: scenario graph has no states")
	}

	depth := bfsDepths(g)

	ids := make([]string, 0, len(g.States))
	for id := range g.States {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		di, iok := depth[ids[i]]
		dj, jok := depth[ids[j]]
		switch {
		case iok != jok:
			return iok
		case iok && di.level != dj.level:
			return di.level < dj.level
		case iok && di.order != dj.order:
			return di.order < dj.order
		default:
			return ids[i] < ids[j]
		}
	})

	model := &DiagramModel{Title: title}
	if model.Title == "" {
		model.Title = "Scenario"
	}

	nodeIndex := make(map[string]*Node, len(ids))
	var unreachable []string
	for _, id := range ids {
		node := stateToNode(g.States[id], id == g.InitialState.ID)
		model.Nodes = append(model.Nodes, node)
		nodeIndex[id] = node

		d, ok := depth[id]
		if !ok {
			unreachable = append(unreachable, id)
			continue
		}
		for len(model.Levels) <= d.level {
			model.Levels = append(model.Levels, nil)
		}
		model.Levels[d.level] = append(model.Levels[d.level], id)
	}
	if len(unreachable) > 0 {
		model.Levels = append(model.Levels, unreachable)
	}

	for _, b := range g.Branches {
		if nodeIndex[b.FromStateID] == nil || nodeIndex[b.ToStateID] == nil {
			continue
		}
		model.Edges = append(model.Edges, Edge{
			From:        b.FromStateID,
			To:          b.ToStateID,
			Label:       b.DecisionID,
			Conditional: len(b.Conditions) > 0,
		})
	}

	if progress != nil {
		overlayProgress(model, nodeIndex, progress)
	}
	return model, nil
}

func stateToNode(s schema.ScenarioState, initial bool) *Node {
	kind := NodeKindState
	switch {
	case initial:
		kind = NodeKindInitial
	case s.IsTerminal():
		kind = NodeKindTerminal
	}
	node := &Node{ID: s.ID, Label: s.ID, Kind: kind, Risk: s.RiskLevel}
	if s.TimeLimitSeconds != nil {
		node.TimeLimitSeconds = *s.TimeLimitSeconds
	}
	return node
}

type position struct {
	level int
	order int
}

// bfsDepths returns the breadth-first level and discovery order of every
// state reachable from the initial state.
func bfsDepths(g schema.ScenarioGraph) map[string]position {
	out := make(map[string]position)
	start := g.InitialState.ID
	if _, ok := g.States[start]; !ok {
		return out
	}

	adj := make(map[string][]string)
	for _, b := range g.Branches {
		adj[b.FromStateID] = append(adj[b.FromStateID], b.ToStateID)
	}

	out[start] = position{}
	queue := []string{start}
	order := 1
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if _, seen := out[next]; seen {
				continue
			}
			if _, ok := g.States[next]; !ok {
				continue
			}
			out[next] = position{level: out[cur].level + 1, order: order}
			order++
			queue = append(queue, next)
		}
	}
	return out
}

// overlayProgress marks visited and current states and the branches taken.
func overlayProgress(model *DiagramModel, nodeIndex map[string]*Node, p *Progress) {
	for i, id := range p.StateHistory {
		node := nodeIndex[id]
		if node == nil {
			continue
		}
		if node.Status == nil {
			node.Status = &StatusOverlay{Status: StatusVisited}
		}
		node.Status.Visits++
		if i == len(p.StateHistory)-1 {
			node.Status.Status = StatusCurrent
		}
	}

	taken := make(map[[2]string]bool, len(p.Decisions))
	for _, d := range p.Decisions {
		taken[[2]string{d.StateID, d.DecisionID}] = true
	}
	for i := range model.Edges {
		e := &model.Edges[i]
		e.Taken = taken[[2]string{e.From, e.Label}]
	}
}
