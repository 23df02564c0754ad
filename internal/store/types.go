package store

import (
	"encoding/json"
	"time"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Scenario is a registered scenario document.
type Scenario struct {
	ID         string                `json:"id"`
	Title      string                `json:"title,omitempty"`
	Domain     string                `json:"domain,omitempty"`
	Difficulty int                   `json:"difficulty"`
	Config     schema.ScenarioConfig `json:"config"`
	CreatedAt  time.Time             `json:"created_at"`
	UpdatedAt  time.Time             `json:"updated_at"`
}

// Session is the persisted position of one trainee in one scenario. The
// accepted decisions live in the decision log, not on the row.
type Session struct {
	ID             string               `json:"id"`
	ScenarioID     string               `json:"scenario_id"`
	TraineeID      string               `json:"trainee_id"`
	Status         schema.SessionStatus `json:"status"`
	CurrentStateID string               `json:"current_state_id"`
	StateHistory   []string             `json:"state_history"`
	UserContext    map[string]any       `json:"user_context,omitempty"`
	RiskProfile    schema.RiskProfile   `json:"risk_profile,omitempty"`
	StateEnteredAt time.Time            `json:"state_entered_at"`
	Score          *schema.ScoreResult  `json:"score,omitempty"`
	CreatedAt      time.Time            `json:"created_at"`
	UpdatedAt      time.Time            `json:"updated_at"`
	CompletedAt    *time.Time           `json:"completed_at,omitempty"`
}

// Event is an immutable entry in a session's event log.
type Event struct {
	ID        int64           `json:"id"`
	SessionID string          `json:"session_id"`
	Type      string          `json:"event_type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
}

// --- Filter and update types ---

// ScenarioFilter specifies criteria for listing scenarios.
type ScenarioFilter struct {
	Domain string `json:"domain,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// SessionFilter specifies criteria for listing sessions.
type SessionFilter struct {
	Statuses      []schema.SessionStatus `json:"statuses,omitempty"`
	ScenarioID    string                 `json:"scenario_id,omitempty"`
	TraineeID     string                 `json:"trainee_id,omitempty"`
	UpdatedBefore *time.Time             `json:"updated_before,omitempty"`
	Limit         int                    `json:"limit,omitempty"`
	Offset        int                    `json:"offset,omitempty"`
}

// SessionUpdate specifies mutable fields of a session. Nil fields are left
// unchanged.
type SessionUpdate struct {
	Status         *schema.SessionStatus `json:"status,omitempty"`
	CurrentStateID *string               `json:"current_state_id,omitempty"`
	StateHistory   []string              `json:"state_history,omitempty"`
	StateEnteredAt *time.Time            `json:"state_entered_at,omitempty"`
	Score          *schema.ScoreResult   `json:"score,omitempty"`
	CompletedAt    *time.Time            `json:"completed_at,omitempty"`
}
