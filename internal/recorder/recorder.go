// Package recorder archives session events to Postgres, mirrors run progress into
// Redis and forwards permission requests to the notifier, off the scheduler thread.
package recorder

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/kiranshivaraju/rightsdesk/internal/cache"
	"github.com/kiranshivaraju/rightsdesk/internal/notify"
	"github.com/kiranshivaraju/rightsdesk/internal/store"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

const (
	DefaultQueueSize    = 1024
	DefaultWriteTimeout = 5 * time.Second
)

var ErrClosed = errors.New("recorder closed")

// Option configures a Recorder.
type Option func(*Recorder)

func WithQueueSize(n int) Option {
	return func(r *Recorder) {
		if n > 0 {
			r.queueSize = n
		}
	}
}

func WithWriteTimeout(d time.Duration) Option {
	return func(r *Recorder) {
		if d > 0 {
			r.writeTimeout = d
		}
	}
}

// WithDropHook is called for every event dropped because the queue was full.
func WithDropHook(fn func()) Option {
	return func(r *Recorder) { r.onDrop = fn }
}

// Recorder is an events.Sink backed by a bounded queue and one worker goroutine.
// Record never blocks; when the queue is full the event is dropped.
type Recorder struct {
	store        store.Store
	cache        cache.Cache
	notifier     notify.Notifier
	queueSize    int
	writeTimeout time.Duration
	onDrop       func()

	mu      sync.RWMutex
	closed  bool
	queue   chan models.Event
	dropped atomic.Uint64
	done    chan struct{}
	started sync.Once
}

// New creates a Recorder. Any of st, ca and n may be nil to skip that destination.
func New(st store.Store, ca cache.Cache, n notify.Notifier, opts ...Option) *Recorder {
	r := &Recorder{
		store:        st,
		cache:        ca,
		notifier:     n,
		queueSize:    DefaultQueueSize,
		writeTimeout: DefaultWriteTimeout,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.queue = make(chan models.Event, r.queueSize)
	return r
}

// Start launches the worker. Calling it more than once has no effect.
func (r *Recorder) Start() {
	r.started.Do(func() { go r.run() })
}

// Record enqueues ev for archiving.
func (r *Recorder) Record(ev models.Event) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return
	}
	select {
	case r.queue <- ev:
	default:
		r.dropped.Add(1)
		slog.Warn("recorder queue full, dropping event",
			"session_id", ev.SessionID,
			"event", ev.Type,
			"seq", ev.Seq,
		)
		if r.onDrop != nil {
			r.onDrop()
		}
	}
}

// Dropped returns how many events were dropped on a full queue.
func (r *Recorder) Dropped() uint64 {
	return r.dropped.Load()
}

// Close stops accepting events and waits until the queue is drained or ctx ends.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	r.Start()
	select {
	case <-r.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Recorder) run() {
	defer close(r.done)
	for ev := range r.queue {
		r.handle(ev)
	}
}

func (r *Recorder) handle(ev models.Event) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("panic while recording event", "event", ev.Type, "error", rec)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
	defer cancel()

	switch ev.Type {
	case models.EventSessionCreated:
		if ev.Session == nil || r.store == nil {
			return
		}
		if err := r.store.CreateSession(ctx, ev.Session); err != nil {
			r.check(ev, "create session", err)
			return
		}
		for i := range ev.Assets {
			r.check(ev, "archive seed asset", r.store.UpsertAsset(ctx, &ev.Assets[i]))
		}
	case models.EventSessionClosed:
		if r.store != nil {
			r.check(ev, "close session", r.store.CloseSession(ctx, ev.SessionID, ev.At))
		}
	case models.EventRunStarted, models.EventRunCompleted, models.EventRunFailed:
		if r.store != nil && ev.Asset != nil {
			r.check(ev, "upsert asset", r.store.UpsertAsset(ctx, ev.Asset))
		}
		r.archiveRun(ctx, ev)
	case models.EventRunCancelled:
		r.archiveRun(ctx, ev)
	case models.EventRunProgress:
		r.mirrorRun(ctx, ev)
	case models.EventTurnAppended:
		if ev.Turn != nil && r.store != nil {
			r.check(ev, "append turn", r.store.AppendTurn(ctx, ev.Turn))
		}
	case models.EventPermissionRequested:
		if ev.Notification == nil {
			return
		}
		if r.store != nil {
			r.check(ev, "create notification", r.store.CreateNotification(ctx, ev.Notification))
		}
		if r.notifier != nil {
			r.check(ev, "notify", r.notifier.Notify(ctx, *ev.Notification))
		}
	}
}

func (r *Recorder) archiveRun(ctx context.Context, ev models.Event) {
	if ev.Run == nil {
		return
	}
	if r.store != nil {
		r.check(ev, "upsert run", r.store.UpsertRun(ctx, ev.Run))
	}
	r.mirrorRun(ctx, ev)
}

func (r *Recorder) mirrorRun(ctx context.Context, ev models.Event) {
	if ev.Run == nil || r.cache == nil {
		return
	}
	r.check(ev, "cache run progress", r.cache.SetRunProgress(ctx, *ev.Run, cache.RunProgressTTL))
}

func (r *Recorder) check(ev models.Event, op string, err error) {
	if err == nil {
		return
	}
	slog.Warn("recorder write failed",
		"op", op,
		"session_id", ev.SessionID,
		"event", ev.Type,
		"seq", ev.Seq,
		"error", err,
	)
}
