package mcp_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/crisisdrill/internal/conditions"
	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/scheduler"
	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/internal/validation"
	drillmcp "github.com/rendis/crisisdrill/pkg/mcp"
	"github.com/rendis/crisisdrill/pkg/schema"
)

const exampleScenario = "../../examples/scenarios/hospital-ransomware.yaml"

// testEnv holds the real dependencies of a served drill.
type testEnv struct {
	store  *store.LibSQLStore
	server *drillmcp.DrillServer
	locks  *drillmcp.SessionLocks
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	dir := t.TempDir()
	s, err := store.NewLibSQLStore("file:" + filepath.Join(dir, "e2e.db"))
	require.NoError(t, err)
	require.NoError(t, s.Migrate(context.Background()))
	t.Cleanup(func() { _ = s.Close() })

	ev, err := conditions.NewEvaluator()
	require.NoError(t, err)
	gv, err := validation.NewGraphValidator(ev)
	require.NoError(t, err)

	locks := drillmcp.NewSessionLocks()
	srv := drillmcp.NewDrillServer(drillmcp.DrillServerDeps{
		Store:     s,
		Validator: gv,
		Evaluator: ev,
		Events:    store.NewEventLog(s),
		Locks:     locks,
		Logger:    logging.Discard(),
	})
	return &testEnv{store: s, server: srv, locks: locks}
}

// callTool sends a tools/call through the server's JSON-RPC entry point.
func (e *testEnv) callTool(t *testing.T, toolName string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	ctx := context.Background()
	mcpSrv := e.server.MCPServer()

	initMsg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      0,
		"method":  "initialize",
		"params": map[string]any{
			"protocolVersion": "2025-03-26",
			"capabilities":    map[string]any{},
			"clientInfo":      map[string]any{"name": "e2e-test", "version": "1.0.0"},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, mcpSrv.HandleMessage(ctx, initMsg))

	callMsg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params":  map[string]any{"name": toolName, "arguments": args},
	})
	require.NoError(t, err)
	resp := mcpSrv.HandleMessage(ctx, callMsg)
	require.NotNil(t, resp)

	raw, err := json.Marshal(resp)
	require.NoError(t, err)
	var rpcResp struct {
		Result *mcp.CallToolResult `json:"result"`
		Error  *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(raw, &rpcResp))
	if rpcResp.Error != nil {
		t.Fatalf("JSON-RPC error: code=%d, msg=%s", rpcResp.Error.Code, rpcResp.Error.Message)
	}
	require.NotNil(t, rpcResp.Result)
	return rpcResp.Result
}

func extractJSON(t *testing.T, result *mcp.CallToolResult, target any) {
	t.Helper()
	require.NotEmpty(t, result.Content)
	text := mcp.GetTextFromContent(result.Content[0])
	require.False(t, result.IsError, text)
	require.NoError(t, json.Unmarshal([]byte(text), target))
}

func (e *testEnv) defineExample(t *testing.T) {
	t.Helper()
	doc, err := os.ReadFile(exampleScenario)
	require.NoError(t, err)

	var resp struct {
		ScenarioID string `json:"scenario_id"`
		States     int    `json:"states"`
		Branches   int    `json:"branches"`
	}
	extractJSON(t, e.callTool(t, "drill.define", map[string]any{"content": string(doc)}), &resp)
	require.Equal(t, "hospital-ransomware", resp.ScenarioID)
	require.Equal(t, 5, resp.States)
	require.Equal(t, 6, resp.Branches)
}

func (e *testEnv) startSession(t *testing.T, traineeID string) string {
	t.Helper()
	var resp struct {
		SessionID string `json:"session_id"`
		State     struct {
			ID string `json:"id"`
		} `json:"state"`
	}
	extractJSON(t, e.callTool(t, "drill.start", map[string]any{
		"scenario_id":  "hospital-ransomware",
		"trainee_id":   traineeID,
		"user_context": map[string]any{"role": "CISO", "experience_years": 4},
		"risk_profile": "conservative",
	}), &resp)
	require.Equal(t, "detect", resp.State.ID)
	return resp.SessionID
}

type decideResult struct {
	Accepted bool `json:"accepted"`
	Code     string `json:"code"`
	State    struct {
		ID       string `json:"id"`
		Terminal bool   `json:"terminal"`
	} `json:"state"`
	TransitionEffects []string            `json:"transition_effects"`
	Completed         bool                `json:"completed"`
	Score             *schema.ScoreResult `json:"score"`
}

func TestDrillFullRun(t *testing.T) {
	env := newTestEnv(t)
	env.defineExample(t)
	sessionID := env.startSession(t, "trainee-1")

	var first decideResult
	extractJSON(t, env.callTool(t, "drill.decide", map[string]any{
		"session_id": sessionID, "decision_id": "isolate", "elapsed_ms": 200000,
	}), &first)
	require.True(t, first.Accepted)
	assert.Equal(t, "contain", first.State.ID)
	assert.Equal(t, []string{"Clinical VLANs disconnected", "Downtime procedures activated"}, first.TransitionEffects)

	var analysis struct {
		DecisionID string `json:"decision_id"`
		StateID    string `json:"state_id"`
	}
	extractJSON(t, env.callTool(t, "drill.impact", map[string]any{
		"session_id": sessionID, "decision_id": "restore", "elapsed_ms": 60000,
	}), &analysis)
	assert.Equal(t, "restore", analysis.DecisionID)
	assert.Equal(t, "contain", analysis.StateID)

	var final decideResult
	extractJSON(t, env.callTool(t, "drill.decide", map[string]any{
		"session_id": sessionID, "decision_id": "restore", "elapsed_ms": 60000,
	}), &final)
	require.True(t, final.Accepted)
	assert.True(t, final.State.Terminal)
	assert.True(t, final.Completed)
	require.NotNil(t, final.Score)
	assert.Len(t, final.Score.Breakdown, 4)

	sess, err := env.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, schema.SessionStatusCompleted, sess.Status)
	assert.Equal(t, []string{"detect", "contain", "recovered"}, sess.StateHistory)
	require.NotNil(t, sess.Score)
	assert.Equal(t, final.Score.TotalScore, sess.Score.TotalScore)

	decisions, err := env.store.ListDecisions(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, decisions, 2)
	assert.Equal(t, "isolate", decisions[0].DecisionID)
	assert.Equal(t, int64(200000), decisions[0].TimeTakenMs)

	var events struct {
		Events []*store.Event `json:"events"`
	}
	extractJSON(t, env.callTool(t, "drill.query", map[string]any{
		"resource": "events",
		"filter":   map[string]any{"session_id": sessionID},
	}), &events)
	types := make([]string, 0, len(events.Events))
	for i, e := range events.Events {
		assert.Equal(t, int64(i+1), e.Sequence)
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		schema.EventSessionStarted,
		schema.EventDecisionAccepted,
		schema.EventDecisionAccepted,
		schema.EventSessionCompleted,
	}, types)

	var status struct {
		Replay store.SessionReplay `json:"replay"`
	}
	extractJSON(t, env.callTool(t, "drill.status", map[string]any{"session_id": sessionID}), &status)
	assert.Equal(t, schema.SessionStatusCompleted, status.Replay.Status)
	assert.Equal(t, 2, status.Replay.Accepted)
	assert.Equal(t, int64(4), status.Replay.LastSequence)
}

func TestDrillConditionRejection(t *testing.T) {
	env := newTestEnv(t)
	env.defineExample(t)
	sessionID := env.startSession(t, "trainee-1")

	var first decideResult
	extractJSON(t, env.callTool(t, "drill.decide", map[string]any{
		"session_id": sessionID, "decision_id": "isolate", "elapsed_ms": 1000,
	}), &first)
	require.True(t, first.Accepted)

	// restore needs timePressure < 0.8 of the 600s limit.
	var late decideResult
	extractJSON(t, env.callTool(t, "drill.decide", map[string]any{
		"session_id": sessionID, "decision_id": "restore", "elapsed_ms": 540000,
	}), &late)
	assert.False(t, late.Accepted)
	assert.Equal(t, schema.ErrCodeConditionsNotMet, late.Code)
	assert.Equal(t, "contain", late.State.ID)

	sess, err := env.store.GetSession(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "contain", sess.CurrentStateID)
	assert.Equal(t, schema.SessionStatusActive, sess.Status)
}

func TestDrillReaperAbandonsIdleSessions(t *testing.T) {
	env := newTestEnv(t)
	env.defineExample(t)
	idle := env.startSession(t, "trainee-1")
	paused := env.startSession(t, "trainee-2")

	var lifecycle struct {
		Status schema.SessionStatus `json:"status"`
	}
	extractJSON(t, env.callTool(t, "drill.lifecycle", map[string]any{
		"session_id": paused, "action": "pause",
	}), &lifecycle)
	require.Equal(t, schema.SessionStatusPaused, lifecycle.Status)

	reaper, err := scheduler.NewReaper(env.store, env.server.FSM(), "", time.Hour,
		scheduler.WithLocker(env.locks),
		scheduler.WithClock(func() time.Time { return time.Now().Add(48 * time.Hour) }),
		scheduler.WithLogger(logging.Discard()))
	require.NoError(t, err)

	n, err := reaper.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	var sessions struct {
		Sessions []*store.Session `json:"sessions"`
	}
	extractJSON(t, env.callTool(t, "drill.query", map[string]any{
		"resource": "sessions",
		"filter":   map[string]any{"status": "abandoned"},
	}), &sessions)
	ids := []string{}
	for _, s := range sessions.Sessions {
		ids = append(ids, s.ID)
	}
	assert.ElementsMatch(t, []string{idle, paused}, ids)

	result := env.callTool(t, "drill.decide", map[string]any{"session_id": idle, "decision_id": "isolate"})
	assert.True(t, result.IsError)
}
