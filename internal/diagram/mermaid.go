package diagram

import (
	"fmt"
	"strings"
)

// RenderMermaid renders a DiagramModel as a Mermaid flowchart string.
// Conditional branches are dotted, branches a session took are thick.
func RenderMermaid(model *DiagramModel) string {
	var b strings.Builder

	b.WriteString("graph TD\n")

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("    %%%% %s\n", model.Title))
	}

	for _, node := range model.Nodes {
		b.WriteString(fmt.Sprintf("    %s\n", mermaidNodeDef(node)))
	}

	for _, edge := range model.Edges {
		b.WriteString(fmt.Sprintf("    %s %s %s\n",
			mermaidSafeID(edge.From), mermaidArrow(edge), mermaidSafeID(edge.To)))
	}

	b.WriteString("\n")
	b.WriteString("    classDef current fill:#1a5276,stroke:#0e3a52,color:#fff\n")
	b.WriteString("    classDef visited fill:#2d6a2d,stroke:#1a4a1a,color:#fff\n")
	b.WriteString("    classDef terminal stroke-width:3px\n")

	for _, node := range model.Nodes {
		if node.Status != nil {
			b.WriteString(fmt.Sprintf("    class %s %s\n", mermaidSafeID(node.ID), node.Status.Status))
		} else if node.Kind == NodeKindTerminal {
			b.WriteString(fmt.Sprintf("    class %s terminal\n", mermaidSafeID(node.ID)))
		}
	}

	return b.String()
}

// mermaidNodeDef returns a Mermaid node definition with the appropriate shape.
func mermaidNodeDef(node *Node) string {
	id := mermaidSafeID(node.ID)
	label := firstLine(node.Label)

	switch node.Kind {
	case NodeKindInitial:
		return fmt.Sprintf("%s((%q))", id, label)
	case NodeKindTerminal:
		return fmt.Sprintf("%s([%q])", id, label)
	default:
		return fmt.Sprintf("%s[%q]", id, label)
	}
}

func mermaidArrow(e Edge) string {
	arrow := "-->"
	switch {
	case e.Taken:
		arrow = "==>"
	case e.Conditional:
		arrow = "-.->"
	}
	label := e.Label
	if e.Conditional {
		label += " ?"
	}
	if label == "" {
		return arrow
	}
	return fmt.Sprintf("%s|%s|", arrow, label)
}

// mermaidSafeID converts a node ID to a Mermaid-safe identifier.
// Replaces dots, dashes and spaces with underscores.
func mermaidSafeID(id string) string {
	r := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return r.Replace(id)
}

// firstLine returns only the first line of a multi-line label.
func firstLine(s string) string {
	if i := strings.Index(s, "\n"); i >= 0 {
		return s[:i]
	}
	return s
}
