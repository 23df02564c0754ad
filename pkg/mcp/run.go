package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rendis/crisisdrill/internal/engine"
	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/scoring"
	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// sessionRun is a persisted session rehydrated into engine components.
type sessionRun struct {
	session   *store.Session
	scenario  *store.Scenario
	graph     schema.ScenarioGraph
	decisions []schema.SessionDecision
	states    *engine.StateManager
	handler   *engine.BranchHandler
}

// loadRun rebuilds the engine state of a session from its row and its
// decision log. Callers hold the session lock when they intend to write.
func (s *DrillServer) loadRun(ctx context.Context, sessionID string) (*sessionRun, error) {
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	sc, err := s.store.GetScenario(ctx, sess.ScenarioID)
	if err != nil {
		return nil, err
	}
	decisions, err := s.store.ListDecisions(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}

	graph := sc.Config.Graph()
	current, ok := graph.States[sess.CurrentStateID]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeStateNotFound,
			"session %s is at state %q which scenario %s no longer defines", sess.ID, sess.CurrentStateID, sc.ID).
			WithState(sess.CurrentStateID)
	}

	states := engine.NewStateManager(graph.InitialState)
	states.Restore(current, sess.StateHistory, decisionDefinitions(graph, decisions))

	return &sessionRun{
		session:   sess,
		scenario:  sc,
		graph:     graph,
		decisions: decisions,
		states:    states,
		handler:   engine.NewBranchHandler(graph, states, s.evaluator, s.logger),
	}, nil
}

// ctx returns ctx carrying the run's correlation ids.
func (r *sessionRun) ctx(ctx context.Context) context.Context {
	return logging.WithIDs(ctx, r.session.ID, r.session.ScenarioID, r.session.TraineeID)
}

// elapsedMs is the time spent in the current state so far.
func (s *DrillServer) elapsedMs(r *sessionRun) int64 {
	return max(s.now().Sub(r.session.StateEnteredAt).Milliseconds(), 0)
}

// decisionDefinitions maps recorded decisions back to their scenario
// definitions. A decision the scenario no longer defines is rebuilt from the
// record.
func decisionDefinitions(g schema.ScenarioGraph, records []schema.SessionDecision) []schema.Decision {
	out := make([]schema.Decision, 0, len(records))
	for _, rec := range records {
		if st, ok := g.States[rec.StateID]; ok {
			if d, ok := st.FindDecision(rec.DecisionID); ok {
				out = append(out, d)
				continue
			}
		}
		out = append(out, recordDecision(rec))
	}
	return out
}

func recordDecision(rec schema.SessionDecision) schema.Decision {
	return schema.Decision{
		ID:           rec.DecisionID,
		Text:         rec.DecisionText,
		Consequences: schema.CloneConsequences(rec.Consequences),
		RiskLevel:    rec.RiskLevel,
	}
}

// scoreInput assembles the scoring input for decisions made in r. Peer
// scores come from other completed sessions on the same scenario.
func (s *DrillServer) scoreInput(ctx context.Context, r *sessionRun, decisions []schema.SessionDecision) scoring.Input {
	in := scoring.Input{
		Decisions:    decisions,
		TimeLimitsMs: make([]int64, len(decisions)),
		Difficulty:   r.scenario.Config.EffectiveDifficulty(),
		RiskProfile:  r.session.RiskProfile,
	}
	for i, d := range decisions {
		if st, ok := r.graph.States[d.StateID]; ok {
			in.TimeLimitsMs[i] = st.TimeLimitMs()
		}
	}

	peers, err := s.store.ListSessions(ctx, store.SessionFilter{
		ScenarioID: r.session.ScenarioID,
		Statuses:   []schema.SessionStatus{schema.SessionStatusCompleted},
	})
	if err != nil {
		logging.LogWith(ctx, s.logger).Warn("peer scores unavailable", slog.String("error", err.Error()))
		return in
	}
	for _, p := range peers {
		if p.ID != r.session.ID && p.Score != nil {
			in.PeerScores = append(in.PeerScores, p.Score.TotalScore)
		}
	}
	return in
}

// complete scores a session that reached a terminal state and marks it completed.
func (s *DrillServer) complete(ctx context.Context, r *sessionRun, decisions []schema.SessionDecision) (*schema.ScoreResult, error) {
	strategy, err := scoring.New(s.strategy)
	if err != nil {
		return nil, err
	}
	score := strategy.Score(s.scoreInput(ctx, r, decisions))

	if err := s.fsm.Transition(ctx, r.session.ID, r.session.Status, schema.SessionStatusCompleted); err != nil {
		return nil, err
	}
	now := s.now()
	completed := schema.SessionStatusCompleted
	if err := s.store.UpdateSession(ctx, r.session.ID, store.SessionUpdate{
		Status:      &completed,
		Score:       &score,
		CompletedAt: &now,
	}); err != nil {
		return nil, fmt.Errorf("complete session: %w", err)
	}
	r.session.Status = completed
	r.session.Score = &score
	r.session.CompletedAt = &now
	return &score, nil
}

// appendEvent records a session event. Failures are logged: the state change
// the event describes is already persisted.
func (s *DrillServer) appendEvent(ctx context.Context, sessionID, eventType string, payload json.RawMessage) {
	if s.events == nil {
		return
	}
	err := s.events.AppendEvent(ctx, &store.Event{
		SessionID: sessionID,
		Type:      eventType,
		Payload:   payload,
		Timestamp: s.now(),
	})
	if err != nil {
		logging.LogWith(ctx, s.logger).Error("failed to append session event",
			slog.String("event_type", eventType), slog.String("error", err.Error()))
	}
}

// notify pushes a best-effort notification to the session's trainee.
func (s *DrillServer) notify(ctx context.Context, sess *store.Session, kind string, extra map[string]any) {
	if s.notifier == nil {
		return
	}
	payload := map[string]any{
		"type":       kind,
		"session_id": sess.ID,
		"status":     string(sess.Status),
		"timestamp":  s.now().Format(time.RFC3339),
	}
	for k, v := range extra {
		payload[k] = v
	}
	if err := s.notifier.Notify(ctx, sess.TraineeID, payload); err != nil {
		logging.LogWith(ctx, s.logger).Warn("trainee notification failed", slog.String("error", err.Error()))
	}
}

// scenarioText joins the scenario's free text for impact domain detection.
func scenarioText(cfg schema.ScenarioConfig) string {
	return strings.Join([]string{cfg.Title, cfg.Description, cfg.Domain}, " ")
}
