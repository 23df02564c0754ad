package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/tursodatabase/go-libsql"

	"github.com/rendis/crisisdrill/pkg/schema"
)

// LibSQLStore implements the Store interface using libSQL (embedded SQLite fork).
type LibSQLStore struct {
	db *sql.DB
}

// NewLibSQLStore opens a libSQL database at the given path and returns a Store.
// The path should be a file URI, e.g. "file:/path/to/db.db".
func NewLibSQLStore(dbPath string) (*LibSQLStore, error) {
	db, err := sql.Open("libsql", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open libsql: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Some PRAGMAs return rows so we use QueryRow.
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
		"PRAGMA temp_store=MEMORY",
	}
	for _, p := range pragmas {
		var result string
		_ = db.QueryRow(p).Scan(&result)
	}

	return &LibSQLStore{db: db}, nil
}

// DB returns the underlying *sql.DB for advanced usage (e.g. event log).
func (s *LibSQLStore) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *LibSQLStore) Close() error { return s.db.Close() }

// Migrate runs all pending database migrations.
func (s *LibSQLStore) Migrate(ctx context.Context) error {
	return runMigrations(ctx, s.db)
}

// --- Scenarios ---

// SaveScenario inserts a scenario or replaces the document of an existing one.
func (s *LibSQLStore) SaveScenario(ctx context.Context, sc *Scenario) error {
	cfg, err := json.Marshal(sc.Config)
	if err != nil {
		return fmt.Errorf("marshal scenario config: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scenarios (id, title, domain, difficulty, config, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET title=excluded.title, domain=excluded.domain, difficulty=excluded.difficulty,
		 config=excluded.config, updated_at=excluded.updated_at`,
		sc.ID, nullStr(sc.Title), nullStr(sc.Domain), max(sc.Difficulty, 1), string(cfg), timeOrNow(sc.CreatedAt), now,
	)
	return err
}

func (s *LibSQLStore) GetScenario(ctx context.Context, id string) (*Scenario, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, domain, difficulty, config, created_at, updated_at FROM scenarios WHERE id = ?`, id)
	sc, err := scanScenario(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("scenario", id)
	}
	return sc, err
}

func (s *LibSQLStore) ListScenarios(ctx context.Context, filter ScenarioFilter) ([]*Scenario, error) {
	query := `SELECT id, title, domain, difficulty, config, created_at, updated_at FROM scenarios`
	var args []any
	if filter.Domain != "" {
		query += " WHERE domain = ?"
		args = append(args, filter.Domain)
	}
	query += " ORDER BY id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenarios []*Scenario
	for rows.Next() {
		sc, err := scanScenario(rows)
		if err != nil {
			return nil, err
		}
		scenarios = append(scenarios, sc)
	}
	return scenarios, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanScenario(row scanner) (*Scenario, error) {
	sc := &Scenario{}
	var title, domain sql.NullString
	var cfg string
	if err := row.Scan(&sc.ID, &title, &domain, &sc.Difficulty, &cfg, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
		return nil, err
	}
	sc.Title = title.String
	sc.Domain = domain.String
	if err := json.Unmarshal([]byte(cfg), &sc.Config); err != nil {
		return nil, fmt.Errorf("unmarshal scenario config: %w", err)
	}
	return sc, nil
}

// --- Sessions ---

const sessionColumns = `id, scenario_id, trainee_id, status, current_state_id, state_history, user_context, risk_profile, state_entered_at, score, created_at, updated_at, completed_at`

func (s *LibSQLStore) CreateSession(ctx context.Context, sess *Session) error {
	history, err := json.Marshal(stringsOrEmpty(sess.StateHistory))
	if err != nil {
		return fmt.Errorf("marshal state_history: %w", err)
	}
	userCtx, err := marshalMapOrDefault(sess.UserContext)
	if err != nil {
		return fmt.Errorf("marshal user_context: %w", err)
	}
	score, err := nullableScore(sess.Score)
	if err != nil {
		return fmt.Errorf("marshal score: %w", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (`+sessionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.ScenarioID, sess.TraineeID, string(sess.Status), sess.CurrentStateID,
		string(history), string(userCtx), nullStr(string(sess.RiskProfile)), timeOrNow(sess.StateEnteredAt),
		score, timeOrNow(sess.CreatedAt), now, nullTime(sess.CompletedAt),
	)
	return err
}

func (s *LibSQLStore) GetSession(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storeNotFound("session", id)
	}
	return sess, err
}

func (s *LibSQLStore) UpdateSession(ctx context.Context, id string, update SessionUpdate) error {
	return updateSession(ctx, s.db, id, update)
}

// execer is the write surface shared by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func updateSession(ctx context.Context, db execer, id string, update SessionUpdate) error {
	var sets []string
	var args []any

	if update.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*update.Status))
	}
	if update.CurrentStateID != nil {
		sets = append(sets, "current_state_id = ?")
		args = append(args, *update.CurrentStateID)
	}
	if update.StateHistory != nil {
		history, err := json.Marshal(update.StateHistory)
		if err != nil {
			return fmt.Errorf("marshal state_history: %w", err)
		}
		sets = append(sets, "state_history = ?")
		args = append(args, string(history))
	}
	if update.StateEnteredAt != nil {
		sets = append(sets, "state_entered_at = ?")
		args = append(args, *update.StateEnteredAt)
	}
	if update.Score != nil {
		score, err := nullableScore(update.Score)
		if err != nil {
			return fmt.Errorf("marshal score: %w", err)
		}
		sets = append(sets, "score = ?")
		args = append(args, score)
	}
	if update.CompletedAt != nil {
		sets = append(sets, "completed_at = ?")
		args = append(args, *update.CompletedAt)
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC(), id)

	query := fmt.Sprintf("UPDATE sessions SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return checkRowsAffected(res, "session", id)
}

func (s *LibSQLStore) ListSessions(ctx context.Context, filter SessionFilter) ([]*Session, error) {
	var where []string
	var args []any

	if len(filter.Statuses) > 0 {
		marks := make([]string, len(filter.Statuses))
		for i, st := range filter.Statuses {
			marks[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(marks, ", ")+")")
	}
	if filter.ScenarioID != "" {
		where = append(where, "scenario_id = ?")
		args = append(args, filter.ScenarioID)
	}
	if filter.TraineeID != "" {
		where = append(where, "trainee_id = ?")
		args = append(args, filter.TraineeID)
	}
	if filter.UpdatedBefore != nil {
		where = append(where, "updated_at < ?")
		args = append(args, *filter.UpdatedBefore)
	}

	query := `SELECT ` + sessionColumns + ` FROM sessions`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
		if filter.Offset > 0 {
			query += fmt.Sprintf(" OFFSET %d", filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func scanSession(row scanner) (*Session, error) {
	sess := &Session{}
	var (
		status, history, userCtx string
		riskProfile, score       sql.NullString
		completedAt              sql.NullTime
	)
	if err := row.Scan(&sess.ID, &sess.ScenarioID, &sess.TraineeID, &status, &sess.CurrentStateID,
		&history, &userCtx, &riskProfile, &sess.StateEnteredAt, &score,
		&sess.CreatedAt, &sess.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}
	sess.Status = schema.SessionStatus(status)
	sess.RiskProfile = schema.RiskProfile(riskProfile.String)
	if err := json.Unmarshal([]byte(history), &sess.StateHistory); err != nil {
		return nil, fmt.Errorf("unmarshal state_history: %w", err)
	}
	if userCtx != "" {
		_ = json.Unmarshal([]byte(userCtx), &sess.UserContext)
	}
	if raw := rawOrNil(score); raw != nil {
		sess.Score = &schema.ScoreResult{}
		if err := json.Unmarshal(raw, sess.Score); err != nil {
			return nil, fmt.Errorf("unmarshal score: %w", err)
		}
	}
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	return sess, nil
}

// --- Decision log ---

// AppendDecision appends dec to the session's decision log with the next
// per-session sequence number.
func (s *LibSQLStore) AppendDecision(ctx context.Context, sessionID string, dec schema.SessionDecision) error {
	return s.RecordDecision(ctx, sessionID, dec, SessionUpdate{})
}

// RecordDecision appends dec to the decision log and applies update to the
// session in a single transaction. On error neither write is kept.
func (s *LibSQLStore) RecordDecision(ctx context.Context, sessionID string, dec schema.SessionDecision, update SessionUpdate) error {
	consequences, err := json.Marshal(consequencesOrEmpty(dec.Consequences))
	if err != nil {
		return fmt.Errorf("marshal consequences: %w", err)
	}
	return withWriteRetry(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin tx: %w", err)
		}
		defer tx.Rollback()

		if err := insertDecision(ctx, tx, sessionID, dec, string(consequences)); err != nil {
			return err
		}
		if err := updateSession(ctx, tx, sessionID, update); err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit decision: %w", err)
		}
		return nil
	})
}

func insertDecision(ctx context.Context, tx *sql.Tx, sessionID string, dec schema.SessionDecision, consequences string) error {
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM session_decisions WHERE session_id = ?`, sessionID,
	).Scan(&seq); err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}

	var confidence any
	if dec.UserConfidence != nil {
		confidence = *dec.UserConfidence
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO session_decisions (id, session_id, sequence, state_id, decision_id, decision_text, timestamp, time_taken_ms, score_impact, consequences, user_confidence, risk_level)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		dec.ID, sessionID, seq, dec.StateID, nullStr(dec.DecisionID), dec.DecisionText, dec.Timestamp,
		dec.TimeTakenMs, dec.ScoreImpact, consequences, confidence, nullStr(string(dec.RiskLevel)),
	); err != nil {
		return fmt.Errorf("insert decision: %w", err)
	}
	return nil
}

// ListDecisions returns the session's decision log, oldest first.
func (s *LibSQLStore) ListDecisions(ctx context.Context, sessionID string) ([]schema.SessionDecision, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, state_id, decision_id, decision_text, timestamp, time_taken_ms, score_impact, consequences, user_confidence, risk_level
		 FROM session_decisions WHERE session_id = ? ORDER BY sequence ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	decisions := make([]schema.SessionDecision, 0)
	for rows.Next() {
		var (
			d                schema.SessionDecision
			decisionID, risk sql.NullString
			consequences     string
			confidence       sql.NullFloat64
		)
		if err := rows.Scan(&d.ID, &d.StateID, &decisionID, &d.DecisionText, &d.Timestamp,
			&d.TimeTakenMs, &d.ScoreImpact, &consequences, &confidence, &risk); err != nil {
			return nil, err
		}
		d.DecisionID = decisionID.String
		d.RiskLevel = schema.RiskLevel(risk.String)
		if err := json.Unmarshal([]byte(consequences), &d.Consequences); err != nil {
			return nil, fmt.Errorf("unmarshal consequences: %w", err)
		}
		if confidence.Valid {
			c := confidence.Float64
			d.UserConfidence = &c
		}
		decisions = append(decisions, d)
	}
	return decisions, rows.Err()
}

// --- Events ---

func (s *LibSQLStore) AppendEvent(ctx context.Context, event *Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertEvent(ctx, tx, event); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit event: %w", err)
	}
	return nil
}

// insertEvent assigns the next per-session sequence to event and inserts it.
func insertEvent(ctx context.Context, tx *sql.Tx, event *Event) error {
	var seq int64
	err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM events WHERE session_id = ?`, event.SessionID,
	).Scan(&seq)
	if err != nil {
		return fmt.Errorf("get next sequence: %w", err)
	}
	event.Sequence = seq
	event.Timestamp = timeOrNow(event.Timestamp)

	_, err = tx.ExecContext(ctx,
		`INSERT INTO events (session_id, event_type, payload, timestamp, sequence) VALUES (?, ?, ?, ?, ?)`,
		event.SessionID, event.Type, nullRaw(event.Payload), event.Timestamp, seq,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *LibSQLStore) GetEvents(ctx context.Context, sessionID string, since int64) ([]*Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, session_id, event_type, payload, timestamp, sequence
		 FROM events WHERE session_id = ? AND sequence > ? ORDER BY sequence ASC`,
		sessionID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]*Event, error) {
	var events []*Event
	for rows.Next() {
		e := &Event{}
		var payload sql.NullString
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Type, &payload, &e.Timestamp, &e.Sequence); err != nil {
			return nil, err
		}
		e.Payload = rawOrNil(payload)
		events = append(events, e)
	}
	return events, rows.Err()
}

// --- Helpers ---

func storeNotFound(resource, id string) *schema.DrillError {
	return schema.NewErrorf(schema.ErrCodeNotFound, "%s %q not found", resource, id)
}

func checkRowsAffected(res sql.Result, resource, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storeNotFound(resource, id)
	}
	return nil
}

func timeOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func nullStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullRaw(r json.RawMessage) any {
	if len(r) == 0 {
		return nil
	}
	return string(r)
}

func rawOrNil(ns sql.NullString) json.RawMessage {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	return json.RawMessage(ns.String)
}

func nullableScore(score *schema.ScoreResult) (any, error) {
	if score == nil {
		return nil, nil
	}
	raw, err := json.Marshal(score)
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

func marshalMapOrDefault(m map[string]any) (json.RawMessage, error) {
	if len(m) == 0 {
		return json.RawMessage("{}"), nil
	}
	return json.Marshal(m)
}

func stringsOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}

func consequencesOrEmpty(in []schema.Consequence) []schema.Consequence {
	if in == nil {
		return []schema.Consequence{}
	}
	return in
}
