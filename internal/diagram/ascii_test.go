package diagram

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderASCIIScenario(t *testing.T) {
	model, err := Build(ransomwareGraph(), "Hospital Ransomware", nil)
	require.NoError(t, err)

	result := RenderASCII(model)

	assert.Contains(t, result, "=== Hospital Ransomware ===")
	assert.Contains(t, result, "[START]")
	assert.Contains(t, result, "[END]")
	assert.Contains(t, result, "┌")
	assert.Contains(t, result, "▼")
	assert.Contains(t, result, "--- branches ---")
	assert.Contains(t, result, "contain ─[restore]→ recovered (conditional)")

	// Level 1 holds three boxes on one row.
	for _, line := range strings.Split(result, "\n") {
		if strings.Contains(line, "│ contain") {
			assert.Contains(t, line, "│ assess")
			assert.Contains(t, line, "│ paid")
		}
	}
}

func TestRenderASCIIWithProgress(t *testing.T) {
	model, err := Build(ransomwareGraph(), "", &Progress{
		StateHistory: []string{"detect", "assess", "contain", "assess"},
	})
	require.NoError(t, err)

	result := RenderASCII(model)

	assert.Contains(t, result, "[OK]")
	assert.Contains(t, result, "[HERE]")
}

func TestStatusTag(t *testing.T) {
	assert.Equal(t, "", statusTag(&Node{Kind: NodeKindState}))
	assert.Equal(t, "[START]", statusTag(&Node{Kind: NodeKindInitial}))
	assert.Equal(t, "[x3]", statusTag(&Node{Kind: NodeKindState, Status: &StatusOverlay{Status: StatusVisited, Visits: 3}}))
	assert.Equal(t, "[HERE]", statusTag(&Node{Kind: NodeKindTerminal, Status: &StatusOverlay{Status: StatusCurrent, Visits: 1}}))
}
