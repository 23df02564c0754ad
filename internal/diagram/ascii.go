package diagram

import (
	"fmt"
	"strings"
)

// statusTag returns a short ASCII indicator for a node.
func statusTag(node *Node) string {
	if node.Status != nil {
		switch node.Status.Status {
		case StatusCurrent:
			return "[HERE]"
		case StatusVisited:
			if node.Status.Visits > 1 {
				return fmt.Sprintf("[x%d]", node.Status.Visits)
			}
			return "[OK]"
		}
	}
	switch node.Kind {
	case NodeKindInitial:
		return "[START]"
	case NodeKindTerminal:
		return "[END]"
	}
	return ""
}

// RenderASCII renders a DiagramModel as a text diagram: one row of boxes per
// breadth-first level, followed by the branch list.
func RenderASCII(model *DiagramModel) string {
	var b strings.Builder

	if model.Title != "" {
		b.WriteString(fmt.Sprintf("=== %s ===\n\n", model.Title))
	}

	for levelIdx, level := range model.Levels {
		var boxes []asciiBox
		for _, nodeID := range level {
			node := findNode(model.Nodes, nodeID)
			if node == nil {
				continue
			}
			boxes = append(boxes, makeBox(node))
		}

		renderBoxRow(&b, boxes)

		if levelIdx < len(model.Levels)-1 {
			renderConnector(&b, len(boxes))
		}
	}

	if len(model.Edges) > 0 {
		b.WriteString("\n--- branches ---\n")
		for _, e := range model.Edges {
			marks := ""
			if e.Conditional {
				marks += " (conditional)"
			}
			if e.Taken {
				marks += " *"
			}
			b.WriteString(fmt.Sprintf("  %s ─[%s]→ %s%s\n", e.From, e.Label, e.To, marks))
		}
	}

	return b.String()
}

// asciiBox holds the rendered lines of a single box.
type asciiBox struct {
	lines []string
	width int
}

// makeBox creates an ASCII box for a node.
func makeBox(node *Node) asciiBox {
	contentLines := []string{firstLine(node.Label)}
	if tag := statusTag(node); tag != "" {
		contentLines = append(contentLines, tag)
	}

	maxLen := 0
	for _, line := range contentLines {
		maxLen = max(maxLen, len(line))
	}
	width := maxLen + 4 // 2 border + 2 padding

	lines := []string{"┌" + strings.Repeat("─", width-2) + "┐"}
	for _, content := range contentLines {
		padded := content + strings.Repeat(" ", maxLen-len(content))
		lines = append(lines, "│ "+padded+" │")
	}
	lines = append(lines, "└"+strings.Repeat("─", width-2)+"┘")

	return asciiBox{lines: lines, width: width}
}

// renderBoxRow writes boxes side by side.
func renderBoxRow(b *strings.Builder, boxes []asciiBox) {
	if len(boxes) == 0 {
		return
	}

	maxHeight := 0
	for _, box := range boxes {
		maxHeight = max(maxHeight, len(box.lines))
	}

	for row := range maxHeight {
		for i, box := range boxes {
			if i > 0 {
				b.WriteString("  ")
			}
			if row < len(box.lines) {
				b.WriteString(box.lines[row])
			} else {
				b.WriteString(strings.Repeat(" ", box.width))
			}
		}
		b.WriteByte('\n')
	}
}

// renderConnector draws a vertical connector between levels.
func renderConnector(b *strings.Builder, boxCount int) {
	if boxCount == 0 {
		return
	}
	b.WriteString("       │\n")
	b.WriteString("       ▼\n")
}

// findNode looks up a node by ID in the model's node list.
func findNode(nodes []*Node, id string) *Node {
	for _, n := range nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}
