package diagram

import "github.com/rendis/crisisdrill/pkg/schema"

// NodeKind classifies a diagram node by its role in the scenario graph.
type NodeKind string

const (
	NodeKindInitial  NodeKind = "initial"
	NodeKindState    NodeKind = "state"
	NodeKindTerminal NodeKind = "terminal"
)

// Overlay statuses.
const (
	StatusCurrent = "current"
	StatusVisited = "visited"
)

// DiagramModel is the intermediate representation used by all renderers.
type DiagramModel struct {
	Title  string
	Nodes  []*Node
	Edges  []Edge
	Levels [][]string
}

// Node represents a single scenario state.
type Node struct {
	ID               string
	Label            string
	Kind             NodeKind
	Risk             schema.RiskLevel
	TimeLimitSeconds int // 0 when the state is untimed
	Status           *StatusOverlay
}

// StatusOverlay carries a session's progress through a node.
type StatusOverlay struct {
	Status string
	Visits int
}

// Edge is a branch between two states, labelled with its decision id.
type Edge struct {
	From        string
	To          string
	Label       string
	Conditional bool
	Taken       bool
}
