package diagram

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderMermaidForCLI_Scenario(t *testing.T) {
	model := &DiagramModel{
		Title: "Test",
		Nodes: []*Node{
			{ID: "detect", Label: "detect", Kind: NodeKindInitial},
			{ID: "contain", Label: "contain", Kind: NodeKindState},
			{ID: "recovered", Label: "recovered", Kind: NodeKindTerminal},
			{ID: "orphan", Label: "orphan", Kind: NodeKindTerminal},
		},
		Edges: []Edge{
			{From: "detect", To: "contain", Label: "isolate"},
			{From: "contain", To: "recovered", Label: "restore", Conditional: true},
		},
	}

	result := RenderMermaidForCLI(model)

	assert.Contains(t, result, "graph TD")
	assert.Contains(t, result, "detect -->|isolate| contain")
	assert.Contains(t, result, "contain -->|restore| recovered")
	assert.Contains(t, result, "    orphan\n")
	assert.NotContains(t, result, "[\"")
	assert.NotContains(t, result, "classDef")
}

func TestCLINodeID(t *testing.T) {
	tests := []struct {
		name     string
		node     *Node
		expected string
	}{
		{"plain", &Node{ID: "detect", Label: "detect"}, "detect"},
		{"empty label", &Node{ID: "detect"}, "detect"},
		{"spaces", &Node{ID: "war", Label: "war room"}, "war-room"},
		{"current", &Node{ID: "a", Label: "a", Status: &StatusOverlay{Status: StatusCurrent, Visits: 1}}, "a-HERE"},
		{"revisited", &Node{ID: "a", Label: "a", Status: &StatusOverlay{Status: StatusVisited, Visits: 2}}, "a-OK-x2"},
		{"multiline", &Node{ID: "a", Label: "first\nsecond"}, "first"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, cliNodeID(tt.node))
		})
	}
}

func TestRenderASCIIViaCLI(t *testing.T) {
	binPath := findMermaidASCII()
	if binPath == "" {
		t.Skip("mermaid-ascii binary not found, skipping CLI test")
	}

	model := &DiagramModel{
		Nodes: []*Node{
			{ID: "detect", Label: "detect", Kind: NodeKindInitial},
			{ID: "contain", Label: "contain", Kind: NodeKindTerminal},
		},
		Edges: []Edge{{From: "detect", To: "contain", Label: "isolate"}},
	}

	result, err := RenderASCIIViaCLI(context.Background(), model, binPath)
	require.NoError(t, err)
	assert.Contains(t, result, "detect")
	assert.Contains(t, result, "┌")
}

func TestRenderASCIIAuto_Fallback(t *testing.T) {
	model := &DiagramModel{
		Title:  "Test",
		Nodes:  []*Node{{ID: "detect", Label: "detect", Kind: NodeKindInitial}},
		Levels: [][]string{{"detect"}},
	}

	result := RenderASCIIAuto(context.Background(), model, "/nonexistent/path")
	assert.Contains(t, result, "=== Test ===")
	assert.Contains(t, result, "detect")

	result = RenderASCIIAuto(context.Background(), model, "")
	assert.Contains(t, result, "detect")
}

// findMermaidASCII checks common paths for the mermaid-ascii binary.
func findMermaidASCII() string {
	home, _ := os.UserHomeDir()
	if home != "" {
		p := filepath.Join(home, ".crisisdrill", "bin", "mermaid-ascii")
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
