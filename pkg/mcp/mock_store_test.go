package mcp

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// mockStore is an in-memory store.Store for tool tests.
type mockStore struct {
	store.Store // embed for unimplemented methods

	mu        sync.Mutex
	scenarios map[string]*store.Scenario
	sessions  map[string]*store.Session
	decisions map[string][]schema.SessionDecision
	events    map[string][]*store.Event

	// recordErr, when set, fails the next RecordDecision before any write.
	recordErr error
}

func newMockStore() *mockStore {
	return &mockStore{
		scenarios: make(map[string]*store.Scenario),
		sessions:  make(map[string]*store.Session),
		decisions: make(map[string][]schema.SessionDecision),
		events:    make(map[string][]*store.Event),
	}
}

func (m *mockStore) SaveScenario(_ context.Context, sc *store.Scenario) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sc
	m.scenarios[sc.ID] = &cp
	return nil
}

func (m *mockStore) GetScenario(_ context.Context, id string) (*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sc, ok := m.scenarios[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "scenario %q not found", id)
	}
	cp := *sc
	return &cp, nil
}

func (m *mockStore) ListScenarios(_ context.Context, filter store.ScenarioFilter) ([]*store.Scenario, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*store.Scenario, 0)
	for _, sc := range m.scenarios {
		if filter.Domain != "" && sc.Domain != filter.Domain {
			continue
		}
		cp := *sc
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

func (m *mockStore) CreateSession(_ context.Context, sess *store.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *sess
	m.sessions[sess.ID] = &cp
	return nil
}

func (m *mockStore) GetSession(_ context.Context, id string) (*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	sess, ok := m.sessions[id]
	if !ok {
		return nil, schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
	}
	cp := *sess
	cp.StateHistory = append([]string{}, sess.StateHistory...)
	return &cp, nil
}

func (m *mockStore) UpdateSession(_ context.Context, id string, u store.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateLocked(id, u)
}

func (m *mockStore) updateLocked(id string, u store.SessionUpdate) error {
	sess, ok := m.sessions[id]
	if !ok {
		return schema.NewErrorf(schema.ErrCodeNotFound, "session %q not found", id)
	}
	if u.Status != nil {
		sess.Status = *u.Status
	}
	if u.CurrentStateID != nil {
		sess.CurrentStateID = *u.CurrentStateID
	}
	if u.StateHistory != nil {
		sess.StateHistory = append([]string{}, u.StateHistory...)
	}
	if u.StateEnteredAt != nil {
		sess.StateEnteredAt = *u.StateEnteredAt
	}
	if u.Score != nil {
		score := *u.Score
		sess.Score = &score
	}
	if u.CompletedAt != nil {
		t := *u.CompletedAt
		sess.CompletedAt = &t
	}
	sess.UpdatedAt = time.Now().UTC()
	return nil
}

func (m *mockStore) ListSessions(_ context.Context, filter store.SessionFilter) ([]*store.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*store.Session, 0)
	for _, sess := range m.sessions {
		if len(filter.Statuses) > 0 && !slices.Contains(filter.Statuses, sess.Status) {
			continue
		}
		if filter.ScenarioID != "" && sess.ScenarioID != filter.ScenarioID {
			continue
		}
		if filter.TraineeID != "" && sess.TraineeID != filter.TraineeID {
			continue
		}
		cp := *sess
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	if filter.Limit > 0 && len(result) > filter.Limit {
		result = result[:filter.Limit]
	}
	return result, nil
}

func (m *mockStore) AppendDecision(_ context.Context, sessionID string, dec schema.SessionDecision) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.decisions[sessionID] = append(m.decisions[sessionID], dec.Clone())
	return nil
}

func (m *mockStore) RecordDecision(_ context.Context, sessionID string, dec schema.SessionDecision, u store.SessionUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.recordErr; err != nil {
		m.recordErr = nil
		return err
	}
	if err := m.updateLocked(sessionID, u); err != nil {
		return err
	}
	m.decisions[sessionID] = append(m.decisions[sessionID], dec.Clone())
	return nil
}

func (m *mockStore) failNextRecord(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordErr = err
}

func (m *mockStore) decisionCount(sessionID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.decisions[sessionID])
}

func (m *mockStore) ListDecisions(_ context.Context, sessionID string) ([]schema.SessionDecision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schema.SessionDecision, 0, len(m.decisions[sessionID]))
	for _, d := range m.decisions[sessionID] {
		out = append(out, d.Clone())
	}
	return out, nil
}

func (m *mockStore) AppendEvent(_ context.Context, e *store.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.Sequence = int64(len(m.events[e.SessionID]) + 1)
	m.events[e.SessionID] = append(m.events[e.SessionID], e)
	return nil
}

func (m *mockStore) GetEvents(_ context.Context, sessionID string, since int64) ([]*store.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*store.Event, 0)
	for _, e := range m.events[sessionID] {
		if e.Sequence > since {
			result = append(result, e)
		}
	}
	return result, nil
}

func (m *mockStore) eventTypes(sessionID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var types []string
	for _, e := range m.events[sessionID] {
		types = append(types, e.Type)
	}
	return types
}

func (m *mockStore) session(id string) store.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.sessions[id]
}
