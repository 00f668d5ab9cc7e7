package sched

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Loop is the production Scheduler: one goroutine owns the timer queue and runs
// callbacks and Do functions one at a time.
type Loop struct {
	clock clock.Clock

	mu     sync.Mutex
	q      *queue
	closed bool

	wake    chan struct{}
	work    chan func()
	done    chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewLoop starts a Loop driven by clk. A nil clk uses the wall clock.
func NewLoop(clk clock.Clock) *Loop {
	if clk == nil {
		clk = clock.New()
	}
	l := &Loop{
		clock:   clk,
		q:       newQueue(),
		wake:    make(chan struct{}, 1),
		work:    make(chan func()),
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go l.run()
	return l
}

func (l *Loop) Now() time.Time {
	return l.clock.Now()
}

func (l *Loop) After(d time.Duration, fn func()) (Handle, error) {
	if d < 0 {
		d = 0
	}
	return l.register(d, 0, fn)
}

func (l *Loop) Every(d time.Duration, fn func()) (Handle, error) {
	if d <= 0 {
		return 0, ErrInvalidInterval
	}
	return l.register(d, d, fn)
}

func (l *Loop) register(d, interval time.Duration, fn func()) (Handle, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0, ErrUnavailable
	}
	h := l.q.add(l.clock.Now().Add(d), interval, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return h, nil
}

func (l *Loop) Cancel(h Handle) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.cancel(h)
}

func (l *Loop) Do(ctx context.Context, fn func()) error {
	l.mu.Lock()
	closed := l.closed
	l.mu.Unlock()
	if closed {
		return ErrUnavailable
	}

	finished := make(chan struct{})
	task := func() {
		defer close(finished)
		fn()
	}

	select {
	case l.work <- task:
	case <-l.done:
		return ErrUnavailable
	case <-ctx.Done():
		return ctx.Err()
	}

	// Once handed over the task always runs to completion.
	<-finished
	return nil
}

// Pending returns the number of registrations that have not fired yet.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.q.len()
}

// Close stops the loop. Pending callbacks are dropped and later calls fail with ErrUnavailable.
func (l *Loop) Close() {
	l.once.Do(func() {
		l.mu.Lock()
		l.closed = true
		l.mu.Unlock()
		close(l.done)
		<-l.stopped
	})
}

func (l *Loop) run() {
	defer close(l.stopped)

	for {
		l.mu.Lock()
		next, ok := l.q.nextDue()
		l.mu.Unlock()

		var timer *clock.Timer
		var fire <-chan time.Time
		if ok {
			d := next.Sub(l.clock.Now())
			if d < 0 {
				d = 0
			}
			timer = l.clock.Timer(d)
			fire = timer.C
		}

		select {
		case <-l.done:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-l.wake:
		case task := <-l.work:
			l.safeRun(task)
		case <-fire:
		}
		if timer != nil {
			timer.Stop()
		}

		l.fireDue()
	}
}

func (l *Loop) fireDue() {
	for {
		l.mu.Lock()
		fn, _, ok := l.q.popDue(l.clock.Now())
		l.mu.Unlock()
		if !ok {
			return
		}
		l.safeRun(fn)
	}
}

func (l *Loop) safeRun(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic in scheduled callback",
				"error", r,
				"stack", string(debug.Stack()),
			)
		}
	}()
	fn()
}
