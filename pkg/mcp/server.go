package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/crisisdrill/internal/conditions"
	"github.com/rendis/crisisdrill/internal/engine"
	"github.com/rendis/crisisdrill/internal/impact"
	"github.com/rendis/crisisdrill/internal/loader"
	"github.com/rendis/crisisdrill/internal/scoring"
	"github.com/rendis/crisisdrill/internal/store"
)

// ScenarioValidator validates scenario documents and trainee context.
// Satisfied by *validation.GraphValidator.
type ScenarioValidator interface {
	loader.Validator
	ValidateUserContext(userContext, contextSchema map[string]any) error
}

// DrillServerDeps holds the dependencies for creating a DrillServer.
type DrillServerDeps struct {
	Store     store.Store
	Validator ScenarioValidator
	Evaluator *conditions.Evaluator
	Analyzer  *impact.Analyzer
	// Events receives lifecycle and decision events. Defaults to Store.
	Events engine.EventAppender
	// Locks serializes work per drill session. Share it with the reaper.
	Locks    *SessionLocks
	Notifier TraineeNotifier
	// ScoringStrategy is the default strategy name for drill.score.
	ScoringStrategy string
	// DiagramBinDir is searched for the mermaid-ascii binary.
	DiagramBinDir string
	Clock         func() time.Time
	Logger        *slog.Logger
}

// DrillServer wraps an MCP server with crisis drill tool handlers.
type DrillServer struct {
	store     store.Store
	validator ScenarioValidator
	loader    *loader.Loader
	evaluator *conditions.Evaluator
	analyzer  *impact.Analyzer
	events    engine.EventAppender
	fsm       *engine.SessionFSM
	locks     *SessionLocks
	clients   *ClientRegistry
	notifier  TraineeNotifier
	strategy  string
	binDir    string
	now       func() time.Time
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

// NewDrillServer creates a new DrillServer with all drill tools registered.
func NewDrillServer(deps DrillServerDeps) *DrillServer {
	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	events := deps.Events
	if events == nil && deps.Store != nil {
		events = deps.Store
	}
	locks := deps.Locks
	if locks == nil {
		locks = NewSessionLocks()
	}
	now := deps.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	analyzer := deps.Analyzer
	if analyzer == nil {
		analyzer = impact.NewAnalyzer(nil)
	}
	strategy := deps.ScoringStrategy
	if strategy == "" {
		strategy = scoring.StrategySession
	}

	s := &DrillServer{
		store:     deps.Store,
		validator: deps.Validator,
		loader:    loader.New(deps.Validator),
		evaluator: deps.Evaluator,
		analyzer:  analyzer,
		events:    events,
		fsm:       engine.NewSessionFSM(events),
		locks:     locks,
		clients:   NewClientRegistry(),
		strategy:  strategy,
		binDir:    deps.DiagramBinDir,
		now:       now,
		logger:    logger,
	}

	mcpSrv := server.NewMCPServer(
		"crisisdrill",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Crisisdrill runs branching crisis-decision exercises. Use drill.define to register a scenario, drill.start to open a session, drill.status to see the current situation and options, drill.decide to commit a decision, drill.score and drill.impact for feedback, drill.lifecycle to pause, resume or abandon, drill.diagram to visualize the scenario and drill.query to list scenarios, sessions or events."),
	)

	s.notifier = deps.Notifier
	if s.notifier == nil {
		s.notifier = NewMCPNotifier(mcpSrv, s.clients)
	}

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *DrillServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *DrillServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// FSM returns the session lifecycle FSM used by the server.
func (s *DrillServer) FSM() *engine.SessionFSM {
	return s.fsm
}

// tools returns the registered MCP tools as ServerTool entries.
func (s *DrillServer) tools() []server.ServerTool {
	return []server.ServerTool{
		{Tool: defineTool(), Handler: s.handleDefine},
		{Tool: startTool(), Handler: s.handleStart},
		{Tool: decideTool(), Handler: s.handleDecide},
		{Tool: statusTool(), Handler: s.handleStatus},
		{Tool: scoreTool(), Handler: s.handleScore},
		{Tool: impactTool(), Handler: s.handleImpact},
		{Tool: lifecycleTool(), Handler: s.handleLifecycle},
		{Tool: diagramTool(), Handler: s.handleDiagram},
		{Tool: queryTool(), Handler: s.handleQuery},
	}
}

// --- Tool definitions ---

func defineTool() mcp.Tool {
	return mcp.NewTool("drill.define",
		mcp.WithDescription("Register or replace a scenario document"),
		mcp.WithString("content", mcp.Description("Scenario document as YAML or JSON text")),
		mcp.WithObject("document", mcp.Description("Scenario document as an object (alternative to content)")),
	)
}

func startTool() mcp.Tool {
	return mcp.NewTool("drill.start",
		mcp.WithDescription("Start a training session on a registered scenario"),
		mcp.WithString("scenario_id", mcp.Required(), mcp.Description("ID of the scenario to run")),
		mcp.WithString("trainee_id", mcp.Required(), mcp.Description("ID of the trainee")),
		mcp.WithObject("user_context", mcp.Description("Trainee context, validated against the scenario's user_context_schema")),
		mcp.WithString("risk_profile",
			mcp.Enum("conservative", "balanced", "aggressive"),
			mcp.Description("Declared risk posture used by risk scoring"),
		),
	)
}

func decideTool() mcp.Tool {
	return mcp.NewTool("drill.decide",
		mcp.WithDescription("Commit a decision in the current state of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session")),
		mcp.WithString("decision_id", mcp.Required(), mcp.Description("ID of the decision to take")),
		mcp.WithNumber("elapsed_ms", mcp.Description("Time spent in the current state (default: measured since the state was entered)")),
		mcp.WithNumber("user_confidence", mcp.Description("Self-reported confidence in [0, 1]")),
	)
}

func statusTool() mcp.Tool {
	return mcp.NewTool("drill.status",
		mcp.WithDescription("Get the current situation, options and history of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session")),
	)
}

func scoreTool() mcp.Tool {
	return mcp.NewTool("drill.score",
		mcp.WithDescription("Score the decisions of a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session")),
		mcp.WithString("strategy",
			mcp.Enum(scoring.Names()...),
			mcp.Description("Scoring strategy (default: server configuration)"),
		),
	)
}

func impactTool() mcp.Tool {
	return mcp.NewTool("drill.impact",
		mcp.WithDescription("Analyze the impact of a recorded or candidate decision"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session")),
		mcp.WithString("record_id", mcp.Description("ID of a recorded session decision")),
		mcp.WithString("decision_id", mcp.Description("Candidate decision in the current state (used when record_id is absent)")),
		mcp.WithNumber("elapsed_ms", mcp.Description("Elapsed time for a candidate decision")),
	)
}

func lifecycleTool() mcp.Tool {
	return mcp.NewTool("drill.lifecycle",
		mcp.WithDescription("Pause, resume or abandon a session"),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("ID of the session")),
		mcp.WithString("action", mcp.Required(),
			mcp.Enum("pause", "resume", "abandon"),
			mcp.Description("Lifecycle action"),
		),
	)
}

func diagramTool() mcp.Tool {
	return mcp.NewTool("drill.diagram",
		mcp.WithDescription("Generate a diagram of a scenario graph. Returns Mermaid flowchart syntax, ASCII art, or base64-encoded PNG image"),
		mcp.WithString("scenario_id", mcp.Description("Scenario to draw")),
		mcp.WithString("session_id", mcp.Description("Session to draw, with its path overlaid")),
		mcp.WithString("format",
			mcp.Enum("mermaid", "ascii", "image"),
			mcp.Description("Output format (default: mermaid)"),
		),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("drill.query",
		mcp.WithDescription("Query scenarios, sessions, or session events"),
		mcp.WithString("resource", mcp.Required(),
			mcp.Enum("scenarios", "sessions", "events"),
			mcp.Description("Type of resource to query"),
		),
		mcp.WithObject("filter", mcp.Description("Filter criteria (domain, status, scenario_id, trainee_id, session_id, since, limit, offset)")),
	)
}
