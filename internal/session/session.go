// Package session ties one conversation, one analysis pipeline, one asset library and
// one event hub together and manages their lifetime.
//
// Session state is only mutated on the scheduler thread. Manager methods may be called
// from any goroutine except a scheduler callback.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/internal/catalog"
	"github.com/kiranshivaraju/rightsdesk/internal/conversation"
	"github.com/kiranshivaraju/rightsdesk/internal/events"
	"github.com/kiranshivaraju/rightsdesk/internal/library"
	"github.com/kiranshivaraju/rightsdesk/internal/pipeline"
	"github.com/kiranshivaraju/rightsdesk/internal/ratelimit"
	"github.com/kiranshivaraju/rightsdesk/internal/sched"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

var (
	ErrNotFound    = errors.New("session not found")
	ErrRateLimited = errors.New("too many chat messages")
)

// Session is one user's workspace.
type Session struct {
	ID        uuid.UUID
	CreatedAt time.Time

	hub      *events.Hub
	library  *library.Library
	pipeline *pipeline.Pipeline
	engine   *conversation.Engine

	// unix nanoseconds of the last request touching the session
	lastActive atomic.Int64
	closed     bool
}

func (s *Session) touch(now time.Time) {
	s.lastActive.Store(now.UnixNano())
}

func (s *Session) idleSince() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// Summary is a point-in-time view of a session.
type Summary struct {
	ID           uuid.UUID `json:"id"`
	CreatedAt    time.Time `json:"created_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	State        string    `json:"state"`
	Turns        int       `json:"turns"`
	PendingTurns int       `json:"pending_turns"`
	Assets       int       `json:"assets"`
	Runs         int       `json:"runs"`
	ActiveRuns   int       `json:"active_runs"`
	Subscribers  int       `json:"subscribers"`
}

// Transcript is the conversation as seen by the presentation layer.
type Transcript struct {
	State   string        `json:"state"`
	Turns   []models.Turn `json:"turns"`
	Pending int           `json:"pending"`
}

// Config bundles the per-session cadence and the manager's housekeeping settings.
type Config struct {
	Pipeline      pipeline.Config
	Conversation  conversation.Config
	IdleTTL       time.Duration
	SubmitsPerSec float64
	SubmitBurst   int
	EventBuffer   int
}

// Deps are the collaborators shared by every session.
type Deps struct {
	Catalog    *catalog.Catalog
	Classifier pipeline.Classifier
	Explainer  conversation.Explainer
	Sinks      []events.Sink
	// OnSubscriberDrop is called whenever a slow subscriber misses an event.
	OnSubscriberDrop func()
}

// Manager owns the live sessions.
type Manager struct {
	cfg     Config
	clock   sched.Scheduler
	deps    Deps
	limiter *ratelimit.MapLimiter

	mu       sync.RWMutex
	sessions map[uuid.UUID]*Session
	reaper   sched.Handle
}

func NewManager(cfg Config, s sched.Scheduler, deps Deps) *Manager {
	return &Manager{
		cfg:      cfg,
		clock:    s,
		deps:     deps,
		limiter:  ratelimit.New(cfg.SubmitsPerSec, cfg.SubmitBurst, cfg.IdleTTL),
		sessions: make(map[uuid.UUID]*Session),
	}
}

// Start schedules the idle-session reaper. It is a no-op when IdleTTL is zero.
func (m *Manager) Start() error {
	if m.cfg.IdleTTL <= 0 {
		return nil
	}
	interval := m.cfg.IdleTTL / 2
	if interval < time.Second {
		interval = time.Second
	}
	h, err := m.clock.Every(interval, m.reap)
	if err != nil {
		return fmt.Errorf("scheduling session reaper: %w", err)
	}
	m.mu.Lock()
	m.reaper = h
	m.mu.Unlock()
	return nil
}

// Create starts a new session with its library seeded from the catalog.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	now := m.clock.Now()
	id := uuid.New()

	opts := []events.Option{events.WithClock(m.clock.Now)}
	if m.cfg.EventBuffer > 0 {
		opts = append(opts, events.WithBuffer(m.cfg.EventBuffer))
	}
	for _, sink := range m.deps.Sinks {
		opts = append(opts, events.WithSink(sink))
	}
	if m.deps.OnSubscriberDrop != nil {
		opts = append(opts, events.WithDropHook(m.deps.OnSubscriberDrop))
	}
	hub := events.NewHub(id, opts...)

	var seed []models.Asset
	if m.deps.Catalog != nil {
		seed = m.deps.Catalog.SeedAssets(id, now, m.deps.Classifier)
	}
	lib := library.New(seed...)

	s := &Session{
		ID:        id,
		CreatedAt: now,
		hub:       hub,
		library:   lib,
		pipeline:  pipeline.New(id, m.cfg.Pipeline, m.clock, m.deps.Classifier, lib, hub),
		engine:    conversation.New(id, m.cfg.Conversation, m.clock, m.deps.Explainer, hub),
	}
	s.touch(now)

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	hub.Publish(models.Event{
		Type:    models.EventSessionCreated,
		Session: &models.Session{ID: id, CreatedAt: now},
		Assets:  lib.List(),
	})
	slog.InfoContext(ctx, "session created", "session_id", id, "seed_assets", len(seed))
	return s, nil
}

// Get returns a live session.
func (m *Manager) Get(id uuid.UUID) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return s, nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close ends a session: the conversation and every run are cancelled and no further
// events are produced for it.
func (m *Manager) Close(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}

	err := m.clock.Do(ctx, func() { m.closeSession(s, "closed") })
	if errors.Is(err, sched.ErrUnavailable) {
		// The scheduler is gone, so nothing else can touch the session.
		m.closeSession(s, "closed")
		return nil
	}
	return err
}

// Shutdown stops the reaper and closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	if m.reaper != 0 {
		m.clock.Cancel(m.reaper)
		m.reaper = 0
	}
	ids := make([]uuid.UUID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := m.Close(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// closeSession runs on the scheduler thread.
func (m *Manager) closeSession(s *Session, reason string) {
	if s.closed {
		return
	}
	s.closed = true

	s.engine.Close()
	cancelled := s.pipeline.Close()
	now := m.clock.Now()
	s.hub.Publish(models.Event{
		Type:    models.EventSessionClosed,
		At:      now,
		Session: &models.Session{ID: s.ID, CreatedAt: s.CreatedAt, ClosedAt: &now},
	})
	s.hub.Close()
	m.limiter.Forget(s.ID.String())

	slog.Info("session closed",
		"session_id", s.ID,
		"reason", reason,
		"cancelled_runs", cancelled,
	)
}

// reap runs on the scheduler thread.
func (m *Manager) reap() {
	cutoff := m.clock.Now().Add(-m.cfg.IdleTTL)

	var idle []*Session
	m.mu.Lock()
	for id, s := range m.sessions {
		if s.idleSince().Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range idle {
		m.closeSession(s, "idle")
	}
}

// lookup returns a live session and marks it active.
func (m *Manager) lookup(id uuid.UUID) (*Session, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.touch(m.clock.Now())
	return s, nil
}

// do runs fn on the scheduler thread against a session that is still open.
func (m *Manager) do(ctx context.Context, s *Session, fn func() error) error {
	var fnErr error
	err := m.clock.Do(ctx, func() {
		if s.closed {
			fnErr = fmt.Errorf("%w: %s", ErrNotFound, s.ID)
			return
		}
		fnErr = fn()
	})
	if err != nil {
		if errors.Is(err, sched.ErrUnavailable) {
			return fmt.Errorf("%w: %w", models.ErrScheduling, err)
		}
		return err
	}
	return fnErr
}

// SubmitMessage appends the user's chat text and schedules the assistant's replies.
func (m *Manager) SubmitMessage(ctx context.Context, id uuid.UUID, text string) (models.Turn, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.Turn{}, err
	}
	if !m.limiter.Allow(id.String(), m.clock.Now()) {
		return models.Turn{}, ErrRateLimited
	}
	turn, err := s.engine.Submit(ctx, text)
	if errors.Is(err, conversation.ErrClosed) {
		return models.Turn{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return turn, err
}

// SubmitAsset starts the rights analysis of an asset.
func (m *Manager) SubmitAsset(ctx context.Context, id uuid.UUID, in models.AssetIntake) (models.Run, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.Run{}, err
	}
	var run models.Run
	err = m.do(ctx, s, func() error {
		var err error
		run, err = s.pipeline.Submit(in)
		return err
	})
	return run, err
}

// CancelRun stops a run. Cancelling a finished run returns it unchanged.
func (m *Manager) CancelRun(ctx context.Context, id, runID uuid.UUID) (models.Run, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.Run{}, err
	}
	var run models.Run
	err = m.do(ctx, s, func() error {
		var err error
		run, err = s.pipeline.CancelRun(runID)
		return err
	})
	return run, err
}

// Run returns a snapshot of one of the session's runs.
func (m *Manager) Run(ctx context.Context, id, runID uuid.UUID) (models.Run, error) {
	s, err := m.lookup(id)
	if err != nil {
		return models.Run{}, err
	}
	var run models.Run
	err = m.do(ctx, s, func() error {
		r, ok := s.pipeline.Run(runID)
		if !ok {
			return fmt.Errorf("%w: %s", pipeline.ErrRunNotFound, runID)
		}
		run = r
		return nil
	})
	return run, err
}

// Runs returns every run of the session in submission order.
func (m *Manager) Runs(ctx context.Context, id uuid.UUID) ([]models.Run, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	var runs []models.Run
	err = m.do(ctx, s, func() error {
		runs = s.pipeline.Runs()
		return nil
	})
	return runs, err
}

// Transcript returns the conversation so far.
func (m *Manager) Transcript(ctx context.Context, id uuid.UUID) (Transcript, error) {
	s, err := m.lookup(id)
	if err != nil {
		return Transcript{}, err
	}
	var t Transcript
	err = m.do(ctx, s, func() error {
		t = Transcript{
			State:   s.engine.State(),
			Turns:   s.engine.Transcript(),
			Pending: s.engine.Pending(),
		}
		return nil
	})
	return t, err
}

// Assets returns the session's asset library in insertion order.
func (m *Manager) Assets(id uuid.UUID) ([]models.Asset, error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, err
	}
	return s.library.List(), nil
}

// Summary returns counters describing the session.
func (m *Manager) Summary(ctx context.Context, id uuid.UUID) (Summary, error) {
	s, err := m.Get(id)
	if err != nil {
		return Summary{}, err
	}
	var sum Summary
	err = m.do(ctx, s, func() error {
		sum = Summary{
			ID:           s.ID,
			CreatedAt:    s.CreatedAt,
			LastActiveAt: s.idleSince(),
			State:        s.engine.State(),
			Turns:        len(s.engine.Transcript()),
			PendingTurns: s.engine.Pending(),
			Assets:       s.library.Len(),
			Runs:         len(s.pipeline.Runs()),
			ActiveRuns:   len(s.pipeline.Active()),
			Subscribers:  s.hub.Subscribers(),
		}
		return nil
	})
	return sum, err
}

// Subscribe attaches a live event subscriber to the session.
func (m *Manager) Subscribe(id uuid.UUID) (<-chan models.Event, func(), error) {
	s, err := m.lookup(id)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.hub.Subscribe()
	return ch, cancel, nil
}
