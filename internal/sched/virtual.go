package sched

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Virtual is a Scheduler whose time only moves when Advance is called. Callbacks fire
// in due-time order on the goroutine calling Advance; Do runs inline.
type Virtual struct {
	mu      sync.Mutex
	now     time.Time
	q       *queue
	failErr error
}

// NewVirtual returns a Virtual clock starting at start.
func NewVirtual(start time.Time) *Virtual {
	return &Virtual{now: start, q: newQueue()}
}

func (v *Virtual) Now() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.now
}

func (v *Virtual) After(d time.Duration, fn func()) (Handle, error) {
	if d < 0 {
		d = 0
	}
	return v.register(d, 0, fn)
}

func (v *Virtual) Every(d time.Duration, fn func()) (Handle, error) {
	if d <= 0 {
		return 0, ErrInvalidInterval
	}
	return v.register(d, d, fn)
}

func (v *Virtual) register(d, interval time.Duration, fn func()) (Handle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.failErr != nil {
		return 0, v.failErr
	}
	return v.q.add(v.now.Add(d), interval, fn), nil
}

func (v *Virtual) Cancel(h Handle) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.q.cancel(h)
}

func (v *Virtual) Do(_ context.Context, fn func()) error {
	v.mu.Lock()
	err := v.failErr
	v.mu.Unlock()
	if err != nil {
		return err
	}
	fn()
	return nil
}

// Advance moves the clock forward by d, firing every callback that falls due on the way.
// It returns the number of callbacks fired.
func (v *Virtual) Advance(d time.Duration) int {
	v.mu.Lock()
	target := v.now.Add(d)
	v.mu.Unlock()

	fired := 0
	for {
		v.mu.Lock()
		fn, due, ok := v.q.popDue(target)
		if ok {
			v.now = due
		}
		v.mu.Unlock()
		if !ok {
			break
		}
		fn()
		fired++
	}

	v.mu.Lock()
	v.now = target
	v.mu.Unlock()
	return fired
}

// Pending returns the number of registrations that have not fired yet.
func (v *Virtual) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.q.len()
}

// Fail makes every later registration and Do fail with an error wrapping err and
// ErrUnavailable. Fail(nil) restores normal operation.
func (v *Virtual) Fail(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if err == nil {
		v.failErr = nil
		return
	}
	v.failErr = fmt.Errorf("%w: %w", ErrUnavailable, err)
}
