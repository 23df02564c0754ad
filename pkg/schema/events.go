package schema

// Event type constants emitted on session lifecycle and transition hooks.
const (
	EventSessionStarted   = "session_started"
	EventSessionPaused    = "session_paused"
	EventSessionResumed   = "session_resumed"
	EventSessionCompleted = "session_completed"
	EventSessionAbandoned = "session_abandoned"

	EventDecisionAccepted = "decision_accepted"
	EventDecisionRejected = "decision_rejected"
)

// SessionStatus represents the lifecycle state of a training session.
type SessionStatus string

const (
	SessionStatusActive    SessionStatus = "active"
	SessionStatusPaused    SessionStatus = "paused"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned"
)

// IsTerminal reports whether no further lifecycle transitions are possible.
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}
