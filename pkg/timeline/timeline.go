// Package timeline implements a single cooperative timeline of cancellable timers.
//
// Nothing here starts goroutines or reads the wall clock: time only moves when the owner
// calls Advance. This makes every wait in the call gate (poll interval, idle settle,
// media fallback) a plain, deterministic step that tests can drive precisely.
//
// A Timeline is not safe for concurrent use. Drive it from one goroutine (see pkg/runner).
package timeline

import (
	"container/heap"
	"context"
	"time"
)

// Timeline is a virtual clock with a queue of pending callbacks.
type Timeline struct {
	now   time.Duration
	seq   uint64
	queue timerHeap
}

// New returns a timeline positioned at zero.
func New() *Timeline {
	return &Timeline{}
}

// Now returns the current virtual time since the timeline was created.
func (t *Timeline) Now() time.Duration {
	return t.now
}

// Pending returns the number of scheduled, non-stopped timers.
func (t *Timeline) Pending() int {
	return len(t.queue)
}

// NextDeadline returns the deadline of the earliest pending timer.
func (t *Timeline) NextDeadline() (time.Duration, bool) {
	if len(t.queue) == 0 {
		return 0, false
	}
	return t.queue[0].at, true
}

// AfterFunc schedules fn to run once d has elapsed on the timeline.
// A zero or negative d makes the timer due immediately; it still only runs on the next Advance.
func (t *Timeline) AfterFunc(d time.Duration, fn func(ctx context.Context)) *Timer {
	if d < 0 {
		d = 0
	}
	t.seq++
	tm := &Timer{
		tl:  t,
		at:  t.now + d,
		seq: t.seq,
		fn:  fn,
	}
	heap.Push(&t.queue, tm)
	return tm
}

// Advance moves time forward by d, running every timer that falls due in deadline order.
// Timers with equal deadlines run in the order they were scheduled. Timers scheduled by a
// callback run within the same call if they fall due before the target time.
// Advance stops early if ctx is cancelled; it returns how many callbacks ran.
func (t *Timeline) Advance(ctx context.Context, d time.Duration) int {
	if d < 0 {
		d = 0
	}
	target := t.now + d
	fired := 0
	for len(t.queue) > 0 && t.queue[0].at <= target {
		if ctx.Err() != nil {
			return fired
		}
		tm := heap.Pop(&t.queue).(*Timer)
		t.now = tm.at
		tm.fired = true
		tm.fn(ctx)
		fired++
	}
	t.now = target
	return fired
}

// Timer is a handle to a scheduled callback.
type Timer struct {
	tl    *Timeline
	at    time.Duration
	seq   uint64
	fn    func(ctx context.Context)
	index int
	fired bool
}

// Stop cancels the timer. It reports whether the call prevented the callback from running.
// Stopping a nil, fired or already stopped timer is a no-op.
func (tm *Timer) Stop() bool {
	if tm == nil || tm.fired || tm.index < 0 {
		return false
	}
	heap.Remove(&tm.tl.queue, tm.index)
	return true
}

// Deadline returns the timeline time at which the timer falls due.
func (tm *Timer) Deadline() time.Duration {
	return tm.at
}

type timerHeap []*Timer

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if h[i].at == h[j].at {
		return h[i].seq < h[j].seq
	}
	return h[i].at < h[j].at
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	tm := x.(*Timer)
	tm.index = len(*h)
	*h = append(*h, tm)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	tm := old[n-1]
	old[n-1] = nil
	tm.index = -1
	*h = old[:n-1]
	return tm
}
