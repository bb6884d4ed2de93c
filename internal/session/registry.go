// Package session implements the session registry: one serialized owner per
// session id, created on first contact and torn down atomically.
//
// Each session pairs a flow state machine with a wake tracker. All access goes
// through Dispatch, which serializes events per session; a background sweeper
// applies the idle auto-sleep policy on wall-clock time, independent of
// incoming events.
package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/openlobby/LobbyPipe/internal/flow"
	"github.com/openlobby/LobbyPipe/internal/models"
	"github.com/openlobby/LobbyPipe/internal/store"
	"github.com/openlobby/LobbyPipe/internal/wake"
)

// DefaultSweepInterval is how often the idle sweeper checks awake sessions.
const DefaultSweepInterval = 30 * time.Second

// Opts holds configuration options for the registry.
type Opts struct {
	IdleTimeout time.Duration
	Clock       func() time.Time
}

// Option defines a configuration option for the registry.
type Option func(*Opts)

// WithIdleTimeout sets the auto-sleep idle window for new sessions.
func WithIdleTimeout(d time.Duration) Option {
	return func(o *Opts) { o.IdleTimeout = d }
}

// WithClock overrides the time source, used in tests.
func WithClock(clock func() time.Time) Option {
	return func(o *Opts) { o.Clock = clock }
}

// Session is one registered conversation: flow state plus wake lifecycle.
type Session struct {
	mu    sync.Mutex
	ended bool

	Flow *models.FlowSession
	Wake *wake.Tracker
}

// Registry owns all live sessions.
type Registry struct {
	mu       sync.Mutex
	sessions map[string]*Session

	engine      *flow.Engine
	store       store.Store
	idleTimeout time.Duration
	now         func() time.Time
}

// NewRegistry creates an empty registry over the flow engine and store.
func NewRegistry(engine *flow.Engine, st store.Store, opts ...Option) *Registry {
	cfg := Opts{
		IdleTimeout: wake.DefaultIdleTimeout,
		Clock:       time.Now,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Registry{
		sessions:    make(map[string]*Session),
		engine:      engine,
		store:       st,
		idleTimeout: cfg.IdleTimeout,
		now:         cfg.Clock,
	}
}

// NewSessionID mints a session id for clients that connect without one.
func NewSessionID() string {
	return "s_" + uuid.NewString()
}

// GetOrCreate returns the session for an id, creating it on first contact.
// An empty id mints a fresh one.
func (r *Registry) GetOrCreate(id string) *Session {
	if id == "" {
		id = NewSessionID()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.getOrCreateLocked(id)
}

// getOrCreateLocked creates the session entry. Caller must hold r.mu.
func (r *Registry) getOrCreateLocked(id string) *Session {
	if sess, ok := r.sessions[id]; ok {
		return sess
	}
	sess := &Session{
		Flow: r.engine.NewSession(id),
		Wake: wake.NewTracker(r.now(), wake.WithIdleTimeout(r.idleTimeout)),
	}
	r.sessions[id] = sess
	slog.Info("session created", "session_id", id)
	return sess
}

// Dispatch runs fn with exclusive ownership of the session, creating it if
// needed. Events for different sessions run independently; events for the
// same session are strictly serialized. Dispatching to an ended session
// creates a fresh one under the same id.
func (r *Registry) Dispatch(id string, fn func(sess *Session) error) error {
	for {
		r.mu.Lock()
		sess := r.getOrCreateLocked(id)
		r.mu.Unlock()

		sess.mu.Lock()
		if sess.ended {
			// Lost a race with End; the entry is already gone from the map.
			sess.mu.Unlock()
			continue
		}
		err := fn(sess)
		sess.mu.Unlock()
		return err
	}
}

// End tears a session down: flow resources, wake state, pending signal, and
// the persisted snapshot all go atomically. Idempotent; dispatches racing
// with End either complete before it or land on a fresh session.
func (r *Registry) End(id string) {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		sess.mu.Lock()
		sess.ended = true
		sess.Wake.Sleep()
		sess.mu.Unlock()
	}
	// Teardown is idempotent, so unknown ids still clear any stray state.
	r.engine.Teardown(id)
	slog.Info("session ended", "session_id", id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Status builds the observability snapshot for a session, or nil when the id
// is unknown.
func (r *Registry) Status(id string) *models.FlowStatus {
	r.mu.Lock()
	sess, ok := r.sessions[id]
	r.mu.Unlock()
	if !ok {
		return nil
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	status := &models.FlowStatus{
		SessionID:            sess.Flow.ID,
		State:                sess.Flow.State,
		UserType:             sess.Flow.UserType,
		Awake:                sess.Wake.Awake(),
		Language:             sess.Wake.Language(),
		VerificationAttempts: sess.Flow.VerificationAttempts,
		LastActivityAt:       sess.Flow.LastActivityAt,
	}
	if len(sess.Flow.VisitorData) > 0 {
		status.VisitorData = make(map[models.VisitorField]string, len(sess.Flow.VisitorData))
		for k, v := range sess.Flow.VisitorData {
			status.VisitorData[k] = v
		}
	}
	return status
}

// StartSweeper runs the idle auto-sleep loop until ctx is cancelled. Sessions
// whose idle window has elapsed fall asleep and get a soft flow reset.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.sweep()
			}
		}
	}()
	slog.Info("session idle sweeper started", "interval", interval)
}

// sweep applies one idle check pass across all live sessions.
func (r *Registry) sweep() {
	r.mu.Lock()
	snapshot := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		snapshot = append(snapshot, sess)
	}
	r.mu.Unlock()

	now := r.now()
	for _, sess := range snapshot {
		sess.mu.Lock()
		if !sess.ended && sess.Wake.CheckIdle(now) {
			slog.Info("session auto-sleep", "session_id", sess.Flow.ID)
			r.engine.SoftReset(sess.Flow)
		}
		sess.mu.Unlock()
	}
}

// Restore reloads persisted sessions at boot so in-flight intakes survive a
// restart. Restored sessions come back asleep; terminal ones are discarded.
func (r *Registry) Restore(ctx context.Context) error {
	persisted, err := r.store.ListFlowSessions()
	if err != nil {
		return err
	}

	restored := 0
	for i := range persisted {
		fs := persisted[i]
		if fs.State.IsTerminal() {
			if err := r.store.DeleteFlowSession(fs.ID); err != nil {
				slog.Warn("failed to discard finished session", "error", err, "session_id", fs.ID)
			}
			continue
		}
		if fs.VisitorData == nil {
			fs.VisitorData = make(map[models.VisitorField]string)
		}
		r.mu.Lock()
		if _, ok := r.sessions[fs.ID]; !ok {
			r.sessions[fs.ID] = &Session{
				Flow: &fs,
				Wake: wake.NewTracker(r.now(), wake.WithIdleTimeout(r.idleTimeout)),
			}
			restored++
		}
		r.mu.Unlock()
	}
	slog.Info("sessions restored from store", "count", restored)
	return nil
}
