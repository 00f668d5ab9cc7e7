// Package events fans a session's event stream out to live subscribers and archive sinks.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/rightsdesk/pkg/models"
)

// DefaultBuffer is the per-subscriber channel capacity.
const DefaultBuffer = 64

// Sink receives every published event in sequence order. Record must not block.
type Sink interface {
	Record(ev models.Event)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ev models.Event)

func (f SinkFunc) Record(ev models.Event) { f(ev) }

// Publisher is the write side of a Hub.
type Publisher interface {
	Publish(ev models.Event) models.Event
}

// Option configures a Hub.
type Option func(*Hub)

// WithBuffer sets the subscriber channel capacity.
func WithBuffer(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithSink adds a sink. Sinks are called in registration order.
func WithSink(s Sink) Option {
	return func(h *Hub) {
		if s != nil {
			h.sinks = append(h.sinks, s)
		}
	}
}

// WithDropHook is called once for every event a slow subscriber misses.
func WithDropHook(fn func()) Option {
	return func(h *Hub) { h.onDrop = fn }
}

// WithClock overrides the time source used to stamp events that carry no time.
func WithClock(now func() time.Time) Option {
	return func(h *Hub) {
		if now != nil {
			h.now = now
		}
	}
}

// Hub stamps events with a per-session sequence number and delivers them.
// Subscribers that fall behind lose events rather than stall publishers.
type Hub struct {
	sessionID uuid.UUID
	buffer    int
	sinks     []Sink
	onDrop    func()
	now       func() time.Time

	mu      sync.Mutex
	seq     uint64
	nextSub int
	subs    map[int]chan models.Event
	dropped uint64
	closed  bool
}

func NewHub(sessionID uuid.UUID, opts ...Option) *Hub {
	h := &Hub{
		sessionID: sessionID,
		buffer:    DefaultBuffer,
		now:       time.Now,
		subs:      make(map[int]chan models.Event),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish stamps ev and delivers it. The stamped event is returned.
func (h *Hub) Publish(ev models.Event) models.Event {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	ev.Seq = h.seq
	ev.SessionID = h.sessionID
	if ev.At.IsZero() {
		ev.At = h.now()
	}

	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			h.dropped++
			if h.onDrop != nil {
				h.onDrop()
			}
		}
	}
	for _, s := range h.sinks {
		s.Record(ev)
	}
	return ev
}

// Subscribe registers a live subscriber. The returned func unsubscribes and closes the
// channel; it is safe to call more than once. On a closed hub the channel is already closed.
func (h *Hub) Subscribe() (<-chan models.Event, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan models.Event, h.buffer)
	if h.closed {
		close(ch)
		return ch, func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if c, ok := h.subs[id]; ok {
				delete(h.subs, id)
				close(c)
			}
		})
	}
}

// Subscribers returns the number of live subscribers.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Dropped returns how many subscriber deliveries were skipped.
func (h *Hub) Dropped() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// Close ends every subscription. Events published afterwards still reach the sinks.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return
	}
	h.closed = true
	for id, ch := range h.subs {
		delete(h.subs, id)
		close(ch)
	}
}
