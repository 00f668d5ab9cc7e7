// Package sched provides the scheduling clock shared by the analysis pipeline and the
// conversation engine. Every callback and every Do function runs on a single logical
// thread, so state owned by scheduled work needs no locking.
package sched

import (
	"context"
	"errors"
	"time"
)

var (
	ErrUnavailable     = errors.New("scheduler unavailable")
	ErrInvalidInterval = errors.New("interval must be positive")
)

// Handle identifies one registration. The zero Handle is never issued.
type Handle uint64

// Scheduler is the timer abstraction. Implementations must be safe for concurrent use,
// but all callbacks run serially.
type Scheduler interface {
	// Now returns the scheduler's current time.
	Now() time.Time
	// After runs fn once, no earlier than d from now.
	After(d time.Duration, fn func()) (Handle, error)
	// Every runs fn every d until the handle is cancelled.
	Every(d time.Duration, fn func()) (Handle, error)
	// Cancel stops a pending registration. It reports false when the handle already
	// fired, was cancelled before, or is unknown.
	Cancel(h Handle) bool
	// Do runs fn on the scheduler thread and waits for it to return.
	// It must not be called from inside a scheduled callback.
	Do(ctx context.Context, fn func()) error
}
