package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/rendis/crisisdrill/internal/conditions"
	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/validation"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// Fixed failure messages surfaced to trainees.
const (
	MsgInvalidDecision   = "Invalid decision for current state"
	MsgNoTransition      = "No valid transition found for this decision"
	MsgConditionsNotMet  = "Branch conditions not met"
	MsgTargetStateAbsent = "Target state not found"
)

// TransitionResult is the outcome of ProcessDecision. Failures are reported
// here rather than as errors; Error carries a fixed human string and Code a
// machine-readable schema error code.
type TransitionResult struct {
	Success           bool                  `json:"success"`
	NewState          *schema.ScenarioState `json:"new_state,omitempty"`
	Decision          *schema.Decision      `json:"decision,omitempty"`
	TransitionEffects []string              `json:"transition_effects"`
	FailedConditions  []string              `json:"failed_conditions,omitempty"`
	Error             string                `json:"error,omitempty"`
	Code              string                `json:"code,omitempty"`
}

// NextState is a structural preview of one outgoing edge of the current state.
type NextState struct {
	DecisionID  string          `json:"decision_id"`
	NextStateID string          `json:"next_state_id"`
	Decision    schema.Decision `json:"decision"`
}

// ConfigValidation is the result of ValidateScenarioConfig.
type ConfigValidation struct {
	IsValid bool     `json:"is_valid"`
	Errors  []string `json:"errors"`
}

// Transition describes a decision about to be, or just, applied.
type Transition struct {
	From     string
	To       string
	Decision schema.Decision
}

// BranchHook observes a transition. A before-hook returning an error vetoes
// the transition; after-hook errors are logged only.
type BranchHook func(ctx context.Context, t Transition) error

// BranchHandler validates decisions against the scenario graph, evaluates
// branch conditions and moves the StateManager. It is the only component
// allowed to decide whether a transition is legal.
type BranchHandler struct {
	graph     schema.ScenarioGraph
	branches  map[branchKey]schema.DecisionBranch
	states    *StateManager
	evaluator *conditions.Evaluator
	logger    *slog.Logger

	hookMu sync.Mutex
	before []BranchHook
	after  []BranchHook
}

type branchKey struct {
	from, decision string
}

// NewBranchHandler creates a handler over a private copy of graph. The first
// branch for a (from, decision) pair wins. logger may be nil.
func NewBranchHandler(graph schema.ScenarioGraph, states *StateManager, evaluator *conditions.Evaluator, logger *slog.Logger) *BranchHandler {
	if logger == nil {
		logger = logging.Discard()
	}
	g := graph.Clone()
	idx := make(map[branchKey]schema.DecisionBranch, len(g.Branches))
	for _, b := range g.Branches {
		k := branchKey{b.FromStateID, b.DecisionID}
		if _, dup := idx[k]; dup {
			continue
		}
		idx[k] = b
	}
	return &BranchHandler{
		graph:     g,
		branches:  idx,
		states:    states,
		evaluator: evaluator,
		logger:    logger,
	}
}

// OnBefore registers a hook run after conditions pass and before the state changes.
func (h *BranchHandler) OnBefore(hook BranchHook) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.before = append(h.before, hook)
}

// OnAfter registers a hook run after a transition is committed.
func (h *BranchHandler) OnAfter(hook BranchHook) {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	h.after = append(h.after, hook)
}

// States returns the StateManager this handler drives.
func (h *BranchHandler) States() *StateManager {
	return h.states
}

// ProcessDecision validates decisionID, evaluates its branch conditions and,
// when they hold, records the decision and moves to the target state.
// elapsedMs is the time spent in the current state. A failed result never
// mutates the StateManager, and internal faults, panics included, are
// reported as failed results.
func (h *BranchHandler) ProcessDecision(ctx context.Context, decisionID string, elapsedMs int64, userContext map[string]any) (result TransitionResult) {
	log := logging.LogWith(ctx, h.logger).With(
		slog.String("state_id", h.states.current.ID),
		slog.String("decision_id", decisionID),
	)

	defer func() {
		if r := recover(); r != nil {
			log.Error("decision processing panicked", slog.Any("panic", r))
			result = failure(fmt.Sprintf("%v", r), schema.ErrCodeInternal)
		}
	}()

	result = h.process(ctx, decisionID, elapsedMs, userContext)
	if result.Success {
		log.Info("decision accepted", slog.String("to_state_id", result.NewState.ID))
	} else {
		log.Info("decision rejected", slog.String("reason", result.Error), slog.String("code", result.Code))
	}
	return result
}

func (h *BranchHandler) process(ctx context.Context, decisionID string, elapsedMs int64, userContext map[string]any) TransitionResult {
	current := h.states.current
	decision, ok := h.states.Decision(decisionID)
	if !ok {
		return failure(MsgInvalidDecision, schema.ErrCodeInvalidDecision)
	}

	branch, ok := h.branches[branchKey{current.ID, decisionID}]
	if !ok {
		return failure(MsgNoTransition, schema.ErrCodeNoTransition)
	}

	if len(branch.Conditions) > 0 {
		if h.evaluator == nil {
			return failure("condition evaluator not configured", schema.ErrCodeInternal)
		}
		env := conditions.BuildContext(conditions.Snapshot{
			UserContext:     userContext,
			ElapsedTimeMs:   elapsedMs,
			TimePressure:    h.states.TimePressure(elapsedMs),
			StateHistory:    h.states.stateHistory,
			DecisionHistory: h.states.DecisionIDs(),
		})
		outcome, err := h.evaluator.Evaluate(ctx, branch.Conditions, env)
		if err != nil {
			return failure(err.Error(), schema.ErrCodeInternal)
		}
		if !outcome.Passed {
			r := failure(MsgConditionsNotMet, schema.ErrCodeConditionsNotMet)
			r.FailedConditions = outcome.Failed
			return r
		}
	}

	target, ok := h.graph.States[branch.ToStateID]
	if !ok {
		return failure(MsgTargetStateAbsent, schema.ErrCodeStateNotFound)
	}

	t := Transition{From: current.ID, To: target.ID, Decision: decision}
	for _, hook := range h.hooks(true) {
		if err := hook(ctx, t); err != nil {
			code := schema.CodeOf(err)
			if code == "" {
				code = schema.ErrCodeInvalidTransition
			}
			return failure(err.Error(), code)
		}
	}

	h.states.RecordDecision(decision)
	h.states.UpdateState(target)

	for _, hook := range h.hooks(false) {
		if err := runAfterHook(ctx, hook, t); err != nil {
			logging.LogWith(ctx, h.logger).Warn("after-transition hook failed",
				slog.String("from", t.From), slog.String("to", t.To), slog.String("error", err.Error()))
		}
	}

	newState := target.Clone()
	return TransitionResult{
		Success:           true,
		NewState:          &newState,
		Decision:          &decision,
		TransitionEffects: copyEffects(branch.TransitionEffects),
	}
}

// runAfterHook converts a panicking after-hook into an error; the transition
// is already committed at that point.
func runAfterHook(ctx context.Context, hook BranchHook, t Transition) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("hook panicked: %v", r)
		}
	}()
	return hook(ctx, t)
}

func (h *BranchHandler) hooks(before bool) []BranchHook {
	h.hookMu.Lock()
	defer h.hookMu.Unlock()
	if before {
		return append([]BranchHook(nil), h.before...)
	}
	return append([]BranchHook(nil), h.after...)
}

// PossibleNextStates lists, for each decision of the current state that has
// a branch, where it would lead. Conditions are not evaluated.
func (h *BranchHandler) PossibleNextStates() []NextState {
	current := h.states.current
	out := make([]NextState, 0, len(current.Decisions))
	for _, d := range current.Decisions {
		b, ok := h.branches[branchKey{current.ID, d.ID}]
		if !ok {
			continue
		}
		out = append(out, NextState{DecisionID: d.ID, NextStateID: b.ToStateID, Decision: d.Clone()})
	}
	return out
}

// ValidateScenarioConfig runs the static integrity checks over the graph.
func (h *BranchHandler) ValidateScenarioConfig() ConfigValidation {
	errs := validation.CheckIntegrity(&h.graph)
	return ConfigValidation{IsValid: len(errs) == 0, Errors: errs}
}

// PreviewTransitionEffects returns the effects of choosing decisionID from
// the current state, without changing anything. Unknown decisions yield an
// empty slice.
func (h *BranchHandler) PreviewTransitionEffects(decisionID string) []string {
	b, ok := h.branches[branchKey{h.states.current.ID, decisionID}]
	if !ok {
		return []string{}
	}
	return copyEffects(b.TransitionEffects)
}

func failure(msg, code string) TransitionResult {
	return TransitionResult{Success: false, Error: msg, Code: code, TransitionEffects: []string{}}
}

func copyEffects(in []string) []string {
	return append([]string{}, in...)
}
