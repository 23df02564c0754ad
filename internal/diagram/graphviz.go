package diagram

import (
	"bytes"
	"context"
	"fmt"

	"github.com/goccy/go-graphviz"
	"github.com/goccy/go-graphviz/cgraph"
	"github.com/rendis/crisisdrill/pkg/schema"
)

var riskColors = map[schema.RiskLevel]string{
	schema.RiskLow:    "#2e7d32",
	schema.RiskMedium: "#ef6c00",
	schema.RiskHigh:   "#c62828",
}

const (
	currentFill = "#1a5276"
	visitedFill = "#2d6a2d"
	takenColor  = "#1a5276"
)

// RenderImage lays the scenario out top to bottom with dot and returns PNG
// bytes. State borders are coloured by risk level and timed states show their
// limit under the id.
func RenderImage(ctx context.Context, model *DiagramModel) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("diagram: create graphviz: %w", err)
	}
	defer gv.Close()
	gv.SetLayout(graphviz.DOT)

	graph, err := gv.Graph()
	if err != nil {
		return nil, fmt.Errorf("diagram: create graph: %w", err)
	}
	defer graph.Close()

	graph.SetRankDir(cgraph.TBRank)
	if model.Title != "" {
		graph.SetLabel(model.Title)
	}

	states := make(map[string]*cgraph.Node, len(model.Nodes))
	for _, node := range model.Nodes {
		n, err := graph.CreateNodeByName(node.ID)
		if err != nil {
			return nil, fmt.Errorf("diagram: create node %s: %w", node.ID, err)
		}
		styleState(n, node)
		states[node.ID] = n
	}

	for _, edge := range model.Edges {
		from, to := states[edge.From], states[edge.To]
		if from == nil || to == nil {
			continue
		}
		e, err := graph.CreateEdgeByName(edge.From+"/"+edge.Label, from, to)
		if err != nil {
			return nil, fmt.Errorf("diagram: create edge %s->%s: %w", edge.From, edge.To, err)
		}
		styleBranch(e, edge)
	}

	var buf bytes.Buffer
	if err := gv.Render(ctx, graph, graphviz.PNG, &buf); err != nil {
		return nil, fmt.Errorf("diagram: render PNG: %w", err)
	}
	return buf.Bytes(), nil
}

func nodeLabel(node *Node) string {
	label := firstLine(node.Label)
	if node.TimeLimitSeconds > 0 {
		label += fmt.Sprintf("\n%ds limit", node.TimeLimitSeconds)
	}
	if node.Status != nil && node.Status.Visits > 1 {
		label += fmt.Sprintf("\nvisited x%d", node.Status.Visits)
	}
	return label
}

func styleState(n *cgraph.Node, node *Node) {
	n.SetLabel(nodeLabel(node))
	switch node.Kind {
	case NodeKindInitial:
		n.SetShape(cgraph.OvalShape)
	case NodeKindTerminal:
		n.SetShape(cgraph.DoubleOctagonShape)
	default:
		n.SetShape(cgraph.BoxShape)
	}
	if c, ok := riskColors[node.Risk]; ok {
		n.SetColor(c)
		n.SetPenWidth(2)
	}

	if node.Status == nil {
		return
	}
	n.SetStyle(cgraph.FilledNodeStyle)
	n.SetFontColor("white")
	if node.Status.Status == StatusCurrent {
		n.SetFillColor(currentFill)
	} else {
		n.SetFillColor(visitedFill)
	}
}

func styleBranch(e *cgraph.Edge, edge Edge) {
	label := edge.Label
	if edge.Conditional {
		label += " ?"
	}
	e.SetLabel(label)
	switch {
	case edge.Taken:
		e.SetStyle(cgraph.BoldEdgeStyle)
		e.SetColor(takenColor)
	case edge.Conditional:
		e.SetStyle(cgraph.DashedEdgeStyle)
	}
}
