package sched

import "time"

// Group tracks the registrations made by one owner so they can be cancelled together.
// A Group is used from the scheduler thread only.
type Group struct {
	s       Scheduler
	handles map[Handle]struct{}
}

func NewGroup(s Scheduler) *Group {
	return &Group{s: s, handles: make(map[Handle]struct{})}
}

// After registers a one-shot callback; the handle is forgotten once it fires.
func (g *Group) After(d time.Duration, fn func()) (Handle, error) {
	var h Handle
	h, err := g.s.After(d, func() {
		delete(g.handles, h)
		fn()
	})
	if err != nil {
		return 0, err
	}
	g.handles[h] = struct{}{}
	return h, nil
}

func (g *Group) Every(d time.Duration, fn func()) (Handle, error) {
	h, err := g.s.Every(d, fn)
	if err != nil {
		return 0, err
	}
	g.handles[h] = struct{}{}
	return h, nil
}

// Cancel cancels one handle of the group. Unknown or fired handles are a no-op.
func (g *Group) Cancel(h Handle) bool {
	if _, ok := g.handles[h]; !ok {
		return false
	}
	delete(g.handles, h)
	return g.s.Cancel(h)
}

// CancelAll cancels every pending registration and returns how many were stopped.
func (g *Group) CancelAll() int {
	n := 0
	for h := range g.handles {
		if g.s.Cancel(h) {
			n++
		}
		delete(g.handles, h)
	}
	return n
}

func (g *Group) Pending() int {
	return len(g.handles)
}
