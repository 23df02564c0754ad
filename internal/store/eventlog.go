package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// EventLog provides event-sourcing operations on top of a LibSQLStore.
type EventLog struct {
	store *LibSQLStore
}

// NewEventLog wraps a LibSQLStore to provide event-sourcing operations.
func NewEventLog(s *LibSQLStore) *EventLog {
	return &EventLog{store: s}
}

// AppendEvent appends an event with a monotonically increasing per-session
// sequence, holding the write lock for the whole read-then-insert. Lock
// contention is retried with backoff.
func (el *EventLog) AppendEvent(ctx context.Context, event *Event) error {
	return withWriteRetry(ctx, func() error { return el.appendLocked(ctx, event) })
}

func (el *EventLog) appendLocked(ctx context.Context, event *Event) error {
	tx, err := el.store.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin immediate tx: %w", err)
	}
	defer tx.Rollback()

	// In WAL mode BeginTx may start a deferred transaction; a write forces
	// lock acquisition before the sequence read.
	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO schema_version (version, name) VALUES (-1, '_lock_noop')`); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM schema_version WHERE version = -1`); err != nil {
		return fmt.Errorf("cleanup write lock: %w", err)
	}

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// GetEvents returns events for a session with sequence > since, ordered by sequence ASC.
func (el *EventLog) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	return el.store.GetEvents(ctx, sessionID, since)
}

// SessionReplay is the summary reconstructed from a session's event log.
type SessionReplay struct {
	SessionID    string               `json:"session_id"`
	Status       schema.SessionStatus `json:"status,omitempty"`
	Accepted     int                  `json:"accepted"`
	Rejected     int                  `json:"rejected"`
	Pauses       int                  `json:"pauses"`
	LastSequence int64                `json:"last_sequence"`
}

// ReplaySession folds all events of a session into a SessionReplay.
// Returns a STORE_ERROR if sequence gaps are detected.
func (el *EventLog) ReplaySession(ctx context.Context, sessionID string) (*SessionReplay, error) {
	events, err := el.store.GetEvents(ctx, sessionID, 0)
	if err != nil {
		return nil, fmt.Errorf("get events for replay: %w", err)
	}
	return Replay(sessionID, events)
}

// Replay folds events, which must be ordered by sequence, into a SessionReplay.
func Replay(sessionID string, events []*Event) (*SessionReplay, error) {
	r := &SessionReplay{SessionID: sessionID}
	for i, e := range events {
		expected := int64(i + 1)
		if e.Sequence != expected {
			return nil, schema.NewErrorf(schema.ErrCodeStore,
				"sequence gap in session %s: expected %d, got %d", sessionID, expected, e.Sequence)
		}
		r.LastSequence = e.Sequence

		switch e.Type {
		case schema.EventSessionStarted, schema.EventSessionResumed:
			r.Status = schema.SessionStatusActive
		case schema.EventSessionPaused:
			r.Status = schema.SessionStatusPaused
			r.Pauses++
		case schema.EventSessionCompleted:
			r.Status = schema.SessionStatusCompleted
		case schema.EventSessionAbandoned:
			r.Status = schema.SessionStatusAbandoned
		case schema.EventDecisionAccepted:
			r.Accepted++
		case schema.EventDecisionRejected:
			r.Rejected++
		}
	}
	return r, nil
}

// DecisionPayload is the payload of decision_accepted and decision_rejected events.
type DecisionPayload struct {
	DecisionID  string   `json:"decision_id"`
	FromStateID string   `json:"from_state_id"`
	ToStateID   string   `json:"to_state_id,omitempty"`
	Code        string   `json:"code,omitempty"`
	Error       string   `json:"error,omitempty"`
	Failed      []string `json:"failed_conditions,omitempty"`
}

// Marshal encodes the payload for Event.Payload.
func (p DecisionPayload) Marshal() json.RawMessage {
	raw, _ := json.Marshal(p)
	return raw
}
