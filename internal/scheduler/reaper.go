// Package scheduler runs periodic maintenance over persisted drill sessions.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/rendis/crisisdrill/internal/logging"
	"github.com/rendis/crisisdrill/internal/store"
	"github.com/rendis/crisisdrill/pkg/schema"
)

// DefaultSchedule sweeps at the top of every hour.
const DefaultSchedule = "0 * * * *"

// Transitioner validates and records a session status change. Satisfied by
// *engine.SessionFSM.
type Transitioner interface {
	Transition(ctx context.Context, sessionID string, from, to schema.SessionStatus) error
}

// SessionLocker serializes work on one session id. The returned func
// releases the lock.
type SessionLocker interface {
	Lock(sessionID string) func()
}

// Reaper abandons active and paused sessions that have not been touched for
// longer than a TTL.
type Reaper struct {
	store    store.Store
	fsm      Transitioner
	locker   SessionLocker
	schedule cron.Schedule
	ttl      time.Duration
	logger   *slog.Logger
	now      func() time.Time

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures a Reaper.
type Option func(*Reaper)

// WithLocker shares a per-session lock with the decision path.
func WithLocker(l SessionLocker) Option {
	return func(r *Reaper) { r.locker = l }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Reaper) { r.now = now }
}

// WithLogger sets the reaper logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reaper) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewReaper parses a standard five-field cron expression and returns a
// Reaper that abandons sessions idle for longer than ttl.
func NewReaper(s store.Store, fsm Transitioner, cronExpr string, ttl time.Duration, opts ...Option) (*Reaper, error) {
	if ttl <= 0 {
		return nil, fmt.Errorf("reaper ttl must be positive, got %s", ttl)
	}
	if cronExpr == "" {
		cronExpr = DefaultSchedule
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	schedule, err := parser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("parse cron expression %q: %w", cronExpr, err)
	}
	r := &Reaper{
		store:    s,
		fsm:      fsm,
		schedule: schedule,
		ttl:      ttl,
		logger:   logging.Discard(),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Next returns the first sweep time after from.
func (r *Reaper) Next(from time.Time) time.Time {
	return r.schedule.Next(from)
}

// Start launches the background sweep loop.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.done != nil {
		r.mu.Unlock()
		return fmt.Errorf("reaper already started")
	}
	loopCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.mu.Unlock()

	go r.loop(loopCtx)
	r.logger.Info("session reaper started", slog.Duration("ttl", r.ttl))
	return nil
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.done)
	for {
		now := r.now()
		timer := time.NewTimer(r.schedule.Next(now).Sub(now))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if _, err := r.Sweep(ctx); err != nil {
				r.logger.Error("session sweep failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Stop shuts down the loop and waits for an in-flight sweep.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cancel == nil {
		return nil
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil

	r.logger.Info("session reaper stopped")
	return nil
}

// Sweep abandons every idle session once and returns how many it abandoned.
// A failure on one session is logged and does not stop the sweep.
func (r *Reaper) Sweep(ctx context.Context) (int, error) {
	cutoff := r.now().Add(-r.ttl)
	sessions, err := r.store.ListSessions(ctx, store.SessionFilter{
		Statuses:      []schema.SessionStatus{schema.SessionStatusActive, schema.SessionStatusPaused},
		UpdatedBefore: &cutoff,
	})
	if err != nil {
		return 0, fmt.Errorf("list idle sessions: %w", err)
	}

	reaped := 0
	for _, sess := range sessions {
		ok, err := r.reap(ctx, sess.ID, cutoff)
		if err != nil {
			r.logger.Error("failed to abandon idle session",
				slog.String("session_id", sess.ID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if ok {
			reaped++
		}
	}
	if reaped > 0 {
		r.logger.Info("abandoned idle sessions", slog.Int("count", reaped))
	}
	return reaped, nil
}

// reap re-reads the session under its lock so a decision that landed after
// the listing keeps the session alive.
func (r *Reaper) reap(ctx context.Context, sessionID string, cutoff time.Time) (bool, error) {
	if r.locker != nil {
		defer r.locker.Lock(sessionID)()
	}

	sess, err := r.store.GetSession(ctx, sessionID)
	if err != nil {
		return false, err
	}
	if sess.Status.IsTerminal() || !sess.UpdatedAt.Before(cutoff) {
		return false, nil
	}

	ctx = logging.WithIDs(ctx, sess.ID, sess.ScenarioID, sess.TraineeID)
	if err := r.fsm.Transition(ctx, sess.ID, sess.Status, schema.SessionStatusAbandoned); err != nil {
		return false, err
	}
	abandoned := schema.SessionStatusAbandoned
	if err := r.store.UpdateSession(ctx, sess.ID, store.SessionUpdate{Status: &abandoned}); err != nil {
		return false, err
	}
	logging.LogWith(ctx, r.logger).Info("session abandoned after idle timeout",
		slog.Duration("idle", r.now().Sub(sess.UpdatedAt)))
	return true, nil
}
