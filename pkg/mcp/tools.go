package mcp

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/crisisdrill/internal/diagram"
	"github.com/rendis/crisisdrill/internal/engine"
	"github.com/rendis/crisisdrill/internal/expressions"
	"github.com/rendis/crisisdrill/internal/impact"
	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/scoring"
	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// --- Response views ---

// decisionView is a decision as shown to a trainee: its consequences stay hidden.
type decisionView struct {
	ID        string           `json:"id"`
	Text      string           `json:"text"`
	RiskLevel schema.RiskLevel `json:"risk_level,omitempty"`
}

type stateView struct {
	ID               string         `json:"id"`
	Description      string         `json:"description"`
	Context          string         `json:"context,omitempty"`
	TimeLimitSeconds *int           `json:"time_limit_seconds,omitempty"`
	Terminal         bool           `json:"terminal"`
	Decisions        []decisionView `json:"decisions"`
}

func viewState(st schema.ScenarioState) *stateView {
	v := &stateView{
		ID:               st.ID,
		Description:      st.Description,
		Context:          st.Context,
		TimeLimitSeconds: st.TimeLimitSeconds,
		Terminal:         st.IsTerminal(),
		Decisions:        make([]decisionView, 0, len(st.Decisions)),
	}
	for _, d := range st.Decisions {
		v.Decisions = append(v.Decisions, decisionView{ID: d.ID, Text: d.Text, RiskLevel: d.RiskLevel})
	}
	return v
}

// personalizedView is viewState with ${{...}} references in the trainee-facing
// text resolved against the session. Text that fails to resolve is shown raw.
func (s *DrillServer) personalizedView(ctx context.Context, sess *store.Session, st schema.ScenarioState) *stateView {
	v := viewState(st)
	scope := expressions.TextScope{
		UserContext: sess.UserContext,
		Session: map[string]any{
			"id":           sess.ID,
			"scenario_id":  sess.ScenarioID,
			"trainee_id":   sess.TraineeID,
			"risk_profile": string(sess.RiskProfile),
		},
	}
	resolve := func(field string, text *string) {
		if !expressions.HasInterpolation(*text) {
			return
		}
		out, err := expressions.Interpolate(*text, scope)
		if err != nil {
			logging.LogWith(ctx, s.logger).Warn("state text left unresolved",
				slog.String("state_id", st.ID), slog.String("field", field), slog.String("error", err.Error()))
			return
		}
		*text = out
	}
	resolve("description", &v.Description)
	resolve("context", &v.Context)
	for i := range v.Decisions {
		resolve("decisions."+v.Decisions[i].ID, &v.Decisions[i].Text)
	}
	return v
}

type nextStateView struct {
	DecisionID  string `json:"decision_id"`
	NextStateID string `json:"next_state_id"`
}

type decideResponse struct {
	SessionID         string                  `json:"session_id"`
	Accepted          bool                    `json:"accepted"`
	Error             string                  `json:"error,omitempty"`
	Code              string                  `json:"code,omitempty"`
	FailedConditions  []string                `json:"failed_conditions,omitempty"`
	Record            *schema.SessionDecision `json:"record,omitempty"`
	State             *stateView              `json:"state,omitempty"`
	TransitionEffects []string                `json:"transition_effects"`
	Completed         bool                    `json:"completed"`
	Score             *schema.ScoreResult     `json:"score,omitempty"`
}

type statusResponse struct {
	Session            *store.Session           `json:"session"`
	State              *stateView               `json:"state"`
	DecisionContext    engine.DecisionContext   `json:"decision_context"`
	PossibleNextStates []nextStateView          `json:"possible_next_states"`
	TransitionPreviews map[string][]string      `json:"transition_previews"`
	ElapsedMs          int64                    `json:"elapsed_ms"`
	TimePressure       float64                  `json:"time_pressure"`
	Decisions          []schema.SessionDecision `json:"decisions"`
	Replay             *store.SessionReplay     `json:"replay,omitempty"`
}

// handleDefine parses, validates and stores a scenario document.
func (s *DrillServer) handleDefine(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := documentBytes(req)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	cfg, result, err := s.loader.Load(data)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid scenario document: %v", err)), nil
	}
	if !result.Valid() {
		return mcp.NewToolResultError(fmt.Sprintf("scenario validation failed: %s",
			strings.Join(result.ErrorMessages(), "; "))), nil
	}

	sc := &store.Scenario{
		ID:         cfg.ID,
		Title:      cfg.Title,
		Domain:     cfg.Domain,
		Difficulty: cfg.EffectiveDifficulty(),
		Config:     *cfg,
	}
	if storeErr := s.store.SaveScenario(ctx, sc); storeErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to store scenario: %v", storeErr)), nil
	}

	logging.LogWith(logging.WithScenarioID(ctx, cfg.ID), s.logger).Info("scenario defined",
		slog.Int("states", len(cfg.States)), slog.Int("branches", len(cfg.Branches)))

	return marshalResult(map[string]any{
		"scenario_id": cfg.ID,
		"states":      len(cfg.States),
		"branches":    len(cfg.Branches),
		"warnings":    result.Warnings,
	})
}

// handleStart opens a session at the scenario's initial state.
func (s *DrillServer) handleStart(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	scenarioID, err := req.RequireString("scenario_id")
	if err != nil {
		return mcp.NewToolResultError("scenario_id is required"), nil
	}
	traineeID, err := req.RequireString("trainee_id")
	if err != nil {
		return mcp.NewToolResultError("trainee_id is required"), nil
	}
	userContext := mcp.ParseStringMap(req, "user_context", nil)
	profile := schema.RiskProfile(req.GetString("risk_profile", ""))
	if profile != "" && profile.PreferredRisk() == "" {
		return mcp.NewToolResultError(fmt.Sprintf("unknown risk_profile %q", profile)), nil
	}

	sc, scErr := s.store.GetScenario(ctx, scenarioID)
	if scErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scenario lookup failed: %v", scErr)), nil
	}
	if s.validator != nil && len(sc.Config.UserContextSchema) > 0 {
		if ucErr := s.validator.ValidateUserContext(userContext, sc.Config.UserContextSchema); ucErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid user_context: %v", ucErr)), nil
		}
	}

	graph := sc.Config.Graph()
	initial, ok := graph.States[sc.Config.InitialStateID]
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("scenario %s has no initial state %q", sc.ID, sc.Config.InitialStateID)), nil
	}

	now := s.now()
	sess := &store.Session{
		ID:             uuid.New().String(),
		ScenarioID:     sc.ID,
		TraineeID:      traineeID,
		Status:         schema.SessionStatusActive,
		CurrentStateID: initial.ID,
		StateHistory:   []string{initial.ID},
		UserContext:    userContext,
		RiskProfile:    profile,
		StateEnteredAt: now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if createErr := s.store.CreateSession(ctx, sess); createErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to create session: %v", createErr)), nil
	}

	ctx = logging.WithIDs(ctx, sess.ID, sc.ID, traineeID)
	s.captureClient(ctx, traineeID)
	payload, _ := json.Marshal(map[string]string{"scenario_id": sc.ID, "state_id": initial.ID})
	s.appendEvent(ctx, sess.ID, schema.EventSessionStarted, payload)
	logging.LogWith(ctx, s.logger).Info("session started")

	return marshalResult(map[string]any{
		"session_id":       sess.ID,
		"status":           sess.Status,
		"state":            s.personalizedView(ctx, sess, initial),
		"decision_context": engine.NewStateManager(initial).DecisionContext(0),
	})
}

// handleDecide runs one decision through the branch handler and persists the
// outcome. A rejected decision is a normal result, not a tool error.
func (s *DrillServer) handleDecide(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	decisionID, err := req.RequireString("decision_id")
	if err != nil {
		return mcp.NewToolResultError("decision_id is required"), nil
	}

	defer s.locks.Lock(sessionID)()

	r, loadErr := s.loadRun(ctx, sessionID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", loadErr)), nil
	}
	if r.session.Status != schema.SessionStatusActive {
		return mcp.NewToolResultError(fmt.Sprintf("session %s is %s", sessionID, r.session.Status)), nil
	}
	ctx = r.ctx(ctx)
	s.captureClient(ctx, r.session.TraineeID)

	elapsed, ok := optionalFloat(req, "elapsed_ms")
	elapsedMs := int64(elapsed)
	if !ok || elapsedMs < 0 {
		elapsedMs = s.elapsedMs(r)
	}

	from := r.states.CurrentState().ID
	result := r.handler.ProcessDecision(ctx, decisionID, elapsedMs, r.session.UserContext)
	resp := decideResponse{
		SessionID:         sessionID,
		Accepted:          result.Success,
		Error:             result.Error,
		Code:              result.Code,
		FailedConditions:  result.FailedConditions,
		TransitionEffects: result.TransitionEffects,
	}
	if !result.Success {
		s.appendEvent(ctx, sessionID, schema.EventDecisionRejected, store.DecisionPayload{
			DecisionID:  decisionID,
			FromStateID: from,
			Code:        result.Code,
			Error:       result.Error,
			Failed:      result.FailedConditions,
		}.Marshal())
		resp.State = s.personalizedView(ctx, r.session, r.states.CurrentState())
		return marshalResult(resp)
	}

	opts := engine.RecordOptions{Now: s.now}
	if c, ok := optionalFloat(req, "user_confidence"); ok {
		opts.UserConfidence = &c
	}
	rec := engine.NewSessionDecision(from, *result.Decision, elapsedMs, opts)
	now := s.now()
	to := result.NewState.ID
	if recErr := s.store.RecordDecision(ctx, sessionID, rec, store.SessionUpdate{
		CurrentStateID: &to,
		StateHistory:   r.states.StateHistory(),
		StateEnteredAt: &now,
	}); recErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to record decision: %v", recErr)), nil
	}
	s.appendEvent(ctx, sessionID, schema.EventDecisionAccepted, store.DecisionPayload{
		DecisionID:  decisionID,
		FromStateID: from,
		ToStateID:   to,
	}.Marshal())

	resp.Record = &rec
	resp.State = s.personalizedView(ctx, r.session, *result.NewState)

	if r.states.IsTerminalState() {
		score, completeErr := s.complete(ctx, r, append(r.decisions, rec))
		if completeErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("decision recorded but completion failed: %v", completeErr)), nil
		}
		resp.Completed = true
		resp.Score = score
		s.notify(ctx, r.session, schema.EventSessionCompleted, map[string]any{"total_score": score.TotalScore})
	}

	return marshalResult(resp)
}

// handleStatus returns the session's current situation without changing it.
func (s *DrillServer) handleStatus(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}

	r, loadErr := s.loadRun(ctx, sessionID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", loadErr)), nil
	}
	ctx = r.ctx(ctx)

	var elapsed int64
	if r.session.Status == schema.SessionStatusActive {
		elapsed = s.elapsedMs(r)
	}

	resp := statusResponse{
		Session:            r.session,
		State:              s.personalizedView(ctx, r.session, r.states.CurrentState()),
		DecisionContext:    r.states.DecisionContext(elapsed),
		PossibleNextStates: []nextStateView{},
		TransitionPreviews: map[string][]string{},
		ElapsedMs:          elapsed,
		TimePressure:       r.states.TimePressure(elapsed),
		Decisions:          r.decisions,
	}
	for _, n := range r.handler.PossibleNextStates() {
		resp.PossibleNextStates = append(resp.PossibleNextStates, nextStateView{DecisionID: n.DecisionID, NextStateID: n.NextStateID})
	}
	for _, d := range r.states.AvailableDecisions() {
		resp.TransitionPreviews[d.ID] = r.handler.PreviewTransitionEffects(d.ID)
	}
	if resp.Decisions == nil {
		resp.Decisions = []schema.SessionDecision{}
	}

	events, evErr := s.store.GetEvents(ctx, sessionID, 0)
	if evErr == nil {
		replay, replayErr := store.Replay(sessionID, events)
		if replayErr != nil {
			logging.LogWith(ctx, s.logger).Warn("event replay failed", slog.String("error", replayErr.Error()))
		}
		resp.Replay = replay
	}

	return marshalResult(resp)
}

// handleScore scores the session's decisions so far.
func (s *DrillServer) handleScore(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	strategy, stratErr := scoring.New(req.GetString("strategy", s.strategy))
	if stratErr != nil {
		return mcp.NewToolResultError(stratErr.Error()), nil
	}

	r, loadErr := s.loadRun(ctx, sessionID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", loadErr)), nil
	}

	result := strategy.Score(s.scoreInput(r.ctx(ctx), r, r.decisions))
	return marshalResult(map[string]any{
		"session_id": sessionID,
		"strategy":   strategy.Name(),
		"decisions":  len(r.decisions),
		"result":     result,
	})
}

// handleImpact analyses a recorded decision, or a candidate decision of the
// current state.
func (s *DrillServer) handleImpact(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	recordID := req.GetString("record_id", "")
	decisionID := req.GetString("decision_id", "")
	if recordID == "" && decisionID == "" {
		return mcp.NewToolResultError("one of record_id or decision_id is required"), nil
	}

	r, loadErr := s.loadRun(ctx, sessionID)
	if loadErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", loadErr)), nil
	}

	in := impact.Input{ScenarioText: scenarioText(r.scenario.Config)}
	if recordID != "" {
		idx := -1
		for i, d := range r.decisions {
			if d.ID == recordID {
				idx = i
				break
			}
		}
		if idx < 0 {
			return mcp.NewToolResultError(fmt.Sprintf("decision record %q not found in session %s", recordID, sessionID)), nil
		}
		rec := r.decisions[idx]
		in.Decision = decisionDefinitions(r.graph, r.decisions[idx:idx+1])[0]
		in.State = r.graph.States[rec.StateID]
		in.PriorDecisions = r.decisions[:idx]
		in.ElapsedMs = rec.TimeTakenMs
	} else {
		d, ok := r.states.Decision(decisionID)
		if !ok {
			return mcp.NewToolResultError(fmt.Sprintf("decision %q is not available in state %s", decisionID, r.session.CurrentStateID)), nil
		}
		in.Decision = d
		in.State = r.states.CurrentState()
		in.PriorDecisions = r.decisions
		elapsed, ok := optionalFloat(req, "elapsed_ms")
		in.ElapsedMs = int64(elapsed)
		if !ok {
			in.ElapsedMs = s.elapsedMs(r)
		}
	}

	return marshalResult(s.analyzer.Analyze(in))
}

// handleLifecycle pauses, resumes or abandons a session through the FSM.
func (s *DrillServer) handleLifecycle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID, err := req.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("session_id is required"), nil
	}
	action, err := req.RequireString("action")
	if err != nil {
		return mcp.NewToolResultError("action is required"), nil
	}
	target, ok := schema.LifecycleAction(action).TargetStatus()
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("unknown action %q", action)), nil
	}

	defer s.locks.Lock(sessionID)()

	sess, getErr := s.store.GetSession(ctx, sessionID)
	if getErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", getErr)), nil
	}
	ctx = logging.WithIDs(ctx, sess.ID, sess.ScenarioID, sess.TraineeID)
	previous := sess.Status

	if fsmErr := s.fsm.Transition(ctx, sessionID, previous, target); fsmErr != nil {
		return mcp.NewToolResultError(fsmErr.Error()), nil
	}

	update := store.SessionUpdate{Status: &target}
	if target == schema.SessionStatusActive {
		now := s.now()
		update.StateEnteredAt = &now
	}
	if updErr := s.store.UpdateSession(ctx, sessionID, update); updErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to update session: %v", updErr)), nil
	}
	sess.Status = target

	logging.LogWith(ctx, s.logger).Info("session lifecycle change",
		slog.String("from", string(previous)), slog.String("to", string(target)))
	s.notify(ctx, sess, "session_"+action, nil)

	return marshalResult(map[string]any{
		"session_id":      sessionID,
		"previous_status": previous,
		"status":          target,
	})
}

// handleDiagram draws a scenario graph, with a session's path when session_id is given.
func (s *DrillServer) handleDiagram(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	format := req.GetString("format", "mermaid")
	if format != "ascii" && format != "mermaid" && format != "image" {
		return mcp.NewToolResultError("format must be ascii, mermaid, or image"), nil
	}
	scenarioID := req.GetString("scenario_id", "")
	sessionID := req.GetString("session_id", "")
	if scenarioID == "" && sessionID == "" {
		return mcp.NewToolResultError("at least one of scenario_id or session_id is required"), nil
	}

	var cfg schema.ScenarioConfig
	var progress *diagram.Progress
	if sessionID != "" {
		r, loadErr := s.loadRun(ctx, sessionID)
		if loadErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", loadErr)), nil
		}
		cfg = r.scenario.Config
		progress = &diagram.Progress{StateHistory: r.states.StateHistory(), Decisions: r.decisions}
	} else {
		sc, scErr := s.store.GetScenario(ctx, scenarioID)
		if scErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("scenario lookup failed: %v", scErr)), nil
		}
		cfg = sc.Config
	}

	title := cfg.Title
	if title == "" {
		title = cfg.ID
	}
	model, buildErr := diagram.Build(cfg.Graph(), title, progress)
	if buildErr != nil {
		return mcp.NewToolResultError(fmt.Sprintf("diagram build failed: %v", buildErr)), nil
	}

	switch format {
	case "ascii":
		return mcp.NewToolResultText(diagram.RenderASCIIAuto(ctx, model, s.binDir)), nil
	case "image":
		png, imgErr := diagram.RenderImage(ctx, model)
		if imgErr != nil {
			return mcp.NewToolResultError(fmt.Sprintf("image render failed: %v", imgErr)), nil
		}
		return mcp.NewToolResultText(base64.StdEncoding.EncodeToString(png)), nil
	default:
		return mcp.NewToolResultText(diagram.RenderMermaid(model)), nil
	}
}

// handleQuery lists scenarios, sessions, or events based on filters.
func (s *DrillServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	resource, err := req.RequireString("resource")
	if err != nil {
		return mcp.NewToolResultError("resource is required"), nil
	}

	filter := mcp.ParseStringMap(req, "filter", nil)

	switch resource {
	case "scenarios":
		return s.queryScenarios(ctx, filter)
	case "sessions":
		return s.querySessions(ctx, filter)
	case "events":
		return s.queryEvents(ctx, filter)
	default:
		return mcp.NewToolResultError(fmt.Sprintf("unknown resource type: %s", resource)), nil
	}
}

// --- Query helpers ---

func (s *DrillServer) queryScenarios(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	sf := store.ScenarioFilter{Limit: extractInt(filter, "limit", 50)}
	if domain, ok := filter["domain"].(string); ok {
		sf.Domain = domain
	}

	scenarios, err := s.store.ListScenarios(ctx, sf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	type summary struct {
		ID         string `json:"id"`
		Title      string `json:"title,omitempty"`
		Domain     string `json:"domain,omitempty"`
		Difficulty int    `json:"difficulty"`
		States     int    `json:"states"`
	}
	out := make([]summary, 0, len(scenarios))
	for _, sc := range scenarios {
		out = append(out, summary{ID: sc.ID, Title: sc.Title, Domain: sc.Domain, Difficulty: sc.Difficulty, States: len(sc.Config.States)})
	}
	return marshalResult(map[string]any{"scenarios": out})
}

func (s *DrillServer) querySessions(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	sf := store.SessionFilter{
		Limit:  extractInt(filter, "limit", 50),
		Offset: extractInt(filter, "offset", 0),
	}
	if status, ok := filter["status"].(string); ok && status != "" {
		sf.Statuses = []schema.SessionStatus{schema.SessionStatus(status)}
	}
	if scenarioID, ok := filter["scenario_id"].(string); ok {
		sf.ScenarioID = scenarioID
	}
	if traineeID, ok := filter["trainee_id"].(string); ok {
		sf.TraineeID = traineeID
	}

	sessions, err := s.store.ListSessions(ctx, sf)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if sessions == nil {
		sessions = []*store.Session{}
	}
	return marshalResult(map[string]any{"sessions": sessions})
}

func (s *DrillServer) queryEvents(ctx context.Context, filter map[string]any) (*mcp.CallToolResult, error) {
	sessionID, _ := filter["session_id"].(string)
	if sessionID == "" {
		return mcp.NewToolResultError("event query requires 'session_id' in filter"), nil
	}
	since := int64(extractInt(filter, "since", 0))

	events, err := s.store.GetEvents(ctx, sessionID, since)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("query failed: %v", err)), nil
	}
	if events == nil {
		events = []*store.Event{}
	}
	return marshalResult(map[string]any{"events": events})
}

// --- Internal helpers ---

// documentBytes returns the scenario document from content or document.
func documentBytes(req mcp.CallToolRequest) ([]byte, error) {
	if content := req.GetString("content", ""); content != "" {
		return []byte(content), nil
	}
	doc := mcp.ParseStringMap(req, "document", nil)
	if doc == nil {
		return nil, fmt.Errorf("one of content or document is required")
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("invalid document: %w", err)
	}
	return data, nil
}

// optionalFloat reads a numeric argument, reporting whether it was present.
func optionalFloat(req mcp.CallToolRequest, key string) (float64, bool) {
	v, ok := req.GetArguments()[key]
	if !ok || v == nil {
		return 0, false
	}
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(val, 64)
		return f, err == nil
	}
	return 0, false
}

// extractInt safely extracts an integer from a filter map.
func extractInt(filter map[string]any, key string, defaultVal int) int {
	if filter == nil {
		return defaultVal
	}
	v, ok := filter[key]
	if !ok {
		return defaultVal
	}
	switch val := v.(type) {
	case float64:
		return int(val)
	case int:
		return val
	case string:
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

// captureClient maps the trainee ID to its current MCP client session for notifications.
func (s *DrillServer) captureClient(ctx context.Context, traineeID string) {
	if session := server.ClientSessionFromContext(ctx); session != nil {
		s.clients.Register(traineeID, session.SessionID())
	}
}

// marshalResult converts a value to a JSON text tool result.
func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
