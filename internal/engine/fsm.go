package engine

import (
	"context"
	"encoding/json"
	"slices"
	"sync"

	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// TransitionHook is called before or after a session status transition.
type TransitionHook func(from, to string) error

// EventAppender is satisfied by the Store and EventLog; used by the FSM to
// emit lifecycle events on transitions.
type EventAppender interface {
	AppendEvent(ctx context.Context, event *store.Event) error
}

type sessionHookKey struct {
	from, to schema.SessionStatus
}

// ValidSessionTransitions defines the allowed session lifecycle transitions.
var ValidSessionTransitions = map[schema.SessionStatus][]schema.SessionStatus{
	schema.SessionStatusActive:    {schema.SessionStatusPaused, schema.SessionStatusCompleted, schema.SessionStatusAbandoned},
	schema.SessionStatusPaused:    {schema.SessionStatusActive, schema.SessionStatusAbandoned},
	schema.SessionStatusCompleted: {},
	schema.SessionStatusAbandoned: {},
}

// SessionFSM manages drill session lifecycle transitions.
type SessionFSM struct {
	mu       sync.Mutex
	appender EventAppender
	before   map[sessionHookKey][]TransitionHook
	after    map[sessionHookKey][]TransitionHook
}

// NewSessionFSM creates a SessionFSM that emits events via appender.
// appender may be nil, in which case no events are written.
func NewSessionFSM(appender EventAppender) *SessionFSM {
	return &SessionFSM{
		appender: appender,
		before:   make(map[sessionHookKey][]TransitionHook),
		after:    make(map[sessionHookKey][]TransitionHook),
	}
}

// OnBefore registers a hook called before a session transition.
func (f *SessionFSM) OnBefore(from, to schema.SessionStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionHookKey{from, to}
	f.before[key] = append(f.before[key], hook)
}

// OnAfter registers a hook called after a session transition.
func (f *SessionFSM) OnAfter(from, to schema.SessionStatus, hook TransitionHook) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := sessionHookKey{from, to}
	f.after[key] = append(f.after[key], hook)
}

// Transition validates and executes a session status transition and emits
// the matching lifecycle event. The caller persists the new status.
func (f *SessionFSM) Transition(ctx context.Context, sessionID string, from, to schema.SessionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !CanTransition(from, to) {
		return schema.NewErrorf(schema.ErrCodeInvalidTransition,
			"invalid session transition: %s -> %s", from, to).
			WithDetails(map[string]any{"session_id": sessionID, "from": string(from), "to": string(to)})
	}

	key := sessionHookKey{from, to}

	for _, hook := range f.before[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	if f.appender != nil {
		payload, _ := json.Marshal(map[string]string{"from": string(from), "to": string(to)})
		event := &store.Event{
			SessionID: sessionID,
			Type:      sessionEventType(from, to),
			Payload:   payload,
		}
		if err := f.appender.AppendEvent(ctx, event); err != nil {
			return schema.NewErrorf(schema.ErrCodeStore, "emit session event: %s", err.Error()).WithCause(err)
		}
	}

	for _, hook := range f.after[key] {
		if err := hook(string(from), string(to)); err != nil {
			return err
		}
	}

	return nil
}

// CanTransition reports whether from -> to is an allowed lifecycle move.
func CanTransition(from, to schema.SessionStatus) bool {
	allowed, ok := ValidSessionTransitions[from]
	return ok && slices.Contains(allowed, to)
}

func sessionEventType(from, to schema.SessionStatus) string {
	switch to {
	case schema.SessionStatusActive:
		if from == schema.SessionStatusPaused {
			return schema.EventSessionResumed
		}
		return schema.EventSessionStarted
	case schema.SessionStatusPaused:
		return schema.EventSessionPaused
	case schema.SessionStatusCompleted:
		return schema.EventSessionCompleted
	default:
		return schema.EventSessionAbandoned
	}
}
