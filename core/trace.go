package core

import (
	"fmt"
	"time"

	"github.com/dustin/go-broadcast"
	"github.com/encodeous/geonet/state"
)

type TraceKind uint8

const (
	TraceDrop TraceKind = iota
	TraceStop
	TraceDeliver
)

func (k TraceKind) String() string {
	switch k {
	case TraceDrop:
		return "drop"
	case TraceStop:
		return "stop"
	case TraceDeliver:
		return "deliver"
	}
	return fmt.Sprintf("trace(%d)", uint8(k))
}

// TraceEvent is published for every drop, forwarding stop and delivery of the station.
type TraceEvent struct {
	Kind   TraceKind
	Time   time.Time
	Reason string
	Detail string
}

type Trace struct {
	broadcast.Broadcaster
}

func (t *Trace) Init(s *state.State) error {
	t.Broadcaster = broadcast.NewBroadcaster(state.TraceBufferSize)
	if state.DBG_log_trace {
		ch := make(chan interface{}, state.TraceBufferSize)
		t.Subscribe(ch)
		go func() {
			for {
				select {
				case raw := <-ch:
					ev := raw.(TraceEvent)
					s.Log.Info("trace", "kind", ev.Kind, "reason", ev.Reason, "detail", ev.Detail)
				case <-s.Context.Done():
					return
				}
			}
		}()
	}
	return nil
}

func (t *Trace) Cleanup(s *state.State) error {
	if t.Broadcaster == nil {
		return nil
	}
	return t.Broadcaster.Close()
}

// Publish hands ev to the subscribers without blocking the main loop when nobody listens.
func (t *Trace) Publish(ev TraceEvent) {
	if t.Broadcaster == nil {
		return
	}
	t.Broadcaster.TrySubmit(ev)
}

// Subscribe registers ch for every event published after the call.
func (t *Trace) Subscribe(ch chan interface{}) {
	t.Broadcaster.Register(ch)
}

func (t *Trace) Unsubscribe(ch chan interface{}) {
	t.Broadcaster.Unregister(ch)
}
