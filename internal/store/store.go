package store

import (
	"context"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// Store defines the persistence layer contract.
// All implementations must be safe for concurrent use.
type Store interface {
	// Scenarios
	SaveScenario(ctx context.Context, sc *Scenario) error
	GetScenario(ctx context.Context, id string) (*Scenario, error)
	ListScenarios(ctx context.Context, filter ScenarioFilter) ([]*Scenario, error)

	// Sessions
	CreateSession(ctx context.Context, sess *Session) error
	GetSession(ctx context.Context, id string) (*Session, error)
	UpdateSession(ctx context.Context, id string, update SessionUpdate) error
	ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error)

	// Decision log (append-only)
	AppendDecision(ctx context.Context, sessionID string, dec schema.SessionDecision) error
	// RecordDecision appends dec and applies update to the session atomically.
	RecordDecision(ctx context.Context, sessionID string, dec schema.SessionDecision, update SessionUpdate) error
	ListDecisions(ctx context.Context, sessionID string) ([]schema.SessionDecision, error)

	// Events (append-only)
	AppendEvent(ctx context.Context, event *Event) error
	GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error)

	// Maintenance
	Migrate(ctx context.Context) error

	// Lifecycle
	Close() error
}
