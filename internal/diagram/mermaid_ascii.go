package diagram

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// MermaidASCIIBinary is the file name RenderASCIIAuto looks for in its bin dir.
const MermaidASCIIBinary = "mermaid-ascii"

// RenderASCIIAuto tries to render using the mermaid-ascii CLI binary if available,
// falling back to the hand-rolled RenderASCII renderer.
func RenderASCIIAuto(ctx context.Context, model *DiagramModel, binDir string) string {
	if binDir != "" {
		binPath := filepath.Join(binDir, MermaidASCIIBinary)
		if _, err := os.Stat(binPath); err == nil {
			result, err := RenderASCIIViaCLI(ctx, model, binPath)
			if err == nil {
				return result
			}
		}
	}
	return RenderASCII(model)
}

// RenderASCIIViaCLI pipes simplified Mermaid syntax through the mermaid-ascii binary.
func RenderASCIIViaCLI(ctx context.Context, model *DiagramModel, binPath string) (string, error) {
	cmd := exec.CommandContext(ctx, binPath)
	cmd.Stdin = strings.NewReader(RenderMermaidForCLI(model))
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("mermaid-ascii: %w: %s", err, stderr.String())
	}
	return stdout.String(), nil
}

// RenderMermaidForCLI generates simplified Mermaid syntax compatible with the
// mermaid-ascii CLI tool. mermaid-ascii cannot parse ["label"] node
// declarations, so labels and status are embedded in edge-referenced IDs.
func RenderMermaidForCLI(model *DiagramModel) string {
	var b strings.Builder
	b.WriteString("graph TD\n")

	displayID := make(map[string]string, len(model.Nodes))
	for _, node := range model.Nodes {
		displayID[node.ID] = cliNodeID(node)
	}
	resolve := func(id string) string {
		if d, ok := displayID[id]; ok {
			return d
		}
		return mermaidSafeID(id)
	}

	for _, edge := range model.Edges {
		label := ""
		if edge.Label != "" {
			label = fmt.Sprintf("|%s|", edge.Label)
		}
		b.WriteString(fmt.Sprintf("    %s -->%s %s\n", resolve(edge.From), label, resolve(edge.To)))
	}

	// States with no branches at all still need to show up.
	for _, node := range model.Nodes {
		if !hasEdge(model.Edges, node.ID) {
			b.WriteString(fmt.Sprintf("    %s\n", resolve(node.ID)))
		}
	}

	return b.String()
}

// cliNodeID builds a display ID for the mermaid-ascii CLI.
func cliNodeID(node *Node) string {
	id := node.Label
	if id == "" {
		id = node.ID
	}
	id = firstLine(id)

	if node.Status != nil {
		if tag := cliStatusTag(node.Status.Status); tag != "" {
			id += "-" + tag
		}
		if node.Status.Visits > 1 {
			id += fmt.Sprintf("-x%d", node.Status.Visits)
		}
	}

	return strings.ReplaceAll(id, " ", "-")
}

// cliStatusTag returns a compact status indicator for node IDs.
func cliStatusTag(status string) string {
	switch status {
	case StatusCurrent:
		return "HERE"
	case StatusVisited:
		return "OK"
	default:
		return ""
	}
}

func hasEdge(edges []Edge, id string) bool {
	for _, e := range edges {
		if e.From == id || e.To == id {
			return true
		}
	}
	return false
}
