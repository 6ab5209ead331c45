package state

import (
	"container/heap"
	"time"
)

// Runtime is the time source and scheduler of a router. Callbacks always run on the
// goroutine that owns the router, one at a time.
type Runtime interface {
	Now() time.Time
	Schedule(delay time.Duration, fn func()) *Timer
}

// Timer is the token returned by Runtime.Schedule. It must only be used from the
// goroutine that owns the runtime.
type Timer struct {
	done bool
	stop func()
}

// Cancel prevents the callback from running. Cancelling twice, or after the callback ran, does nothing.
func (t *Timer) Cancel() {
	if t == nil || t.done {
		return
	}
	t.done = true
	if t.stop != nil {
		t.stop()
	}
}

// Active reports whether the callback is still pending.
func (t *Timer) Active() bool {
	return t != nil && !t.done
}

func (t *Timer) fire() bool {
	if t.done {
		return false
	}
	t.done = true
	return true
}

type manualTimer struct {
	at    time.Time
	seq   uint64
	timer *Timer
	fn    func()
}

type timerQueue []*manualTimer

// Len implements heap.Interface.
func (q timerQueue) Len() int {
	return len(q)
}

// Less implements heap.Interface. Timers due at the same instant fire in scheduling order.
func (q timerQueue) Less(i, j int) bool {
	if q[i].at.Equal(q[j].at) {
		return q[i].seq < q[j].seq
	}
	return q[i].at.Before(q[j].at)
}

// Swap implements heap.Interface.
func (q timerQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

// Push implements heap.Interface.
func (q *timerQueue) Push(x any) {
	*q = append(*q, x.(*manualTimer))
}

// Pop implements heap.Interface.
func (q *timerQueue) Pop() any {
	o := *q
	n := len(o)
	t := o[n-1]
	*q = o[:n-1]
	return t
}

// ManualRuntime is a virtual clock. Time only moves when Advance is called.
type ManualRuntime struct {
	now   time.Time
	seq   uint64
	queue timerQueue
}

func NewManualRuntime(start time.Time) *ManualRuntime {
	return &ManualRuntime{now: start}
}

func (m *ManualRuntime) Now() time.Time {
	return m.now
}

func (m *ManualRuntime) Schedule(delay time.Duration, fn func()) *Timer {
	t := &Timer{}
	m.seq++
	heap.Push(&m.queue, &manualTimer{
		at:    m.now.Add(max(delay, 0)),
		seq:   m.seq,
		timer: t,
		fn:    fn,
	})
	return t
}

// Advance moves the clock forward by d, firing due timers in deadline order. Timers
// scheduled by callbacks fire too if they fall within the window.
func (m *ManualRuntime) Advance(d time.Duration) {
	end := m.now.Add(d)
	for len(m.queue) > 0 && !m.queue[0].at.After(end) {
		next := heap.Pop(&m.queue).(*manualTimer)
		m.now = next.at
		if next.timer.fire() {
			next.fn()
		}
	}
	m.now = end
}

// Pending returns the number of timers that have neither fired nor been cancelled.
func (m *ManualRuntime) Pending() int {
	n := 0
	for _, t := range m.queue {
		if t.timer.Active() {
			n++
		}
	}
	return n
}
