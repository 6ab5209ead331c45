package core

import (
	"bytes"

	"github.com/encodeous/geonet/state"
)

// Repeater re-issues requests that asked for repetition. Each repetition is a new
// request with the remaining maximum reduced by one interval.
type Repeater struct {
	rt      state.Runtime
	issue   func(req DataRequest, payload []byte)
	pending map[*state.Timer]struct{}
}

func NewRepeater(rt state.Runtime, issue func(req DataRequest, payload []byte)) *Repeater {
	return &Repeater{
		rt:      rt,
		issue:   issue,
		pending: make(map[*state.Timer]struct{}),
	}
}

// Add schedules the next repetition of req if there is room for another interval.
// Requests without repetition are ignored.
func (r *Repeater) Add(req DataRequest, payload []byte) {
	rep := req.Base().Repetition
	if rep == nil || rep.Interval <= 0 || rep.Maximum-rep.Interval < rep.Interval {
		return
	}
	next := req.clone()
	next.Base().Repetition.Maximum -= rep.Interval
	data := bytes.Clone(payload)

	var t *state.Timer
	t = r.rt.Schedule(rep.Interval, func() {
		delete(r.pending, t)
		r.issue(next, data)
	})
	r.pending[t] = struct{}{}
}

// Stop cancels every scheduled repetition.
func (r *Repeater) Stop() {
	for t := range r.pending {
		t.Cancel()
	}
	clear(r.pending)
}

func (r *Repeater) Pending() int {
	return len(r.pending)
}
