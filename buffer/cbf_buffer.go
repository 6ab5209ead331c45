package buffer

import (
	"fmt"
	"slices"
	"time"

	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
)

// CbfId identifies a multi-hop packet across all its relays.
type CbfId struct {
	Source   protocol.Address
	Sequence protocol.SequenceNumber
}

func (id CbfId) String() string {
	return fmt.Sprintf("%s#%d", id.Source.MID, id.Sequence)
}

// CbfEntry is a packet waiting for its contention timer.
type CbfEntry[T Item] struct {
	Item T
	// Sender is the link-layer address we received the packet from
	Sender  protocol.MacAddress
	Counter int

	size  int
	since time.Time
	timer *state.Timer
}

// CbfBuffer holds at most one packet per CbfId, each with its own timer. When a timer
// fires the entry leaves the buffer and is handed to the timeout callback.
type CbfBuffer[T Item] struct {
	rt        state.Runtime
	capacity  int
	stored    int
	entries   map[CbfId]*CbfEntry[T]
	order     []CbfId
	onTimeout func(T)
}

func NewCbfBuffer[T Item](rt state.Runtime, capacity int, onTimeout func(T)) *CbfBuffer[T] {
	return &CbfBuffer[T]{
		rt:        rt,
		capacity:  capacity,
		entries:   make(map[CbfId]*CbfEntry[T]),
		onTimeout: onTimeout,
	}
}

func (b *CbfBuffer[T]) remove(id CbfId) *CbfEntry[T] {
	e, ok := b.entries[id]
	if !ok {
		return nil
	}
	e.timer.Cancel()
	delete(b.entries, id)
	b.order = slices.DeleteFunc(b.order, func(o CbfId) bool { return o == id })
	b.stored -= e.size
	return e
}

func (b *CbfBuffer[T]) schedule(id CbfId, e *CbfEntry[T], timeout time.Duration) {
	e.timer.Cancel()
	e.timer = b.rt.Schedule(timeout, func() {
		b.expire(id)
	})
}

func (b *CbfBuffer[T]) expire(id CbfId) {
	e := b.remove(id)
	if e == nil {
		return
	}
	if e.Item.ReduceLifetime(b.rt.Now().Sub(e.since)) && b.onTimeout != nil {
		b.onTimeout(e.Item)
	}
}

// Enqueue buffers item until timeout elapses. It returns false without touching the
// existing entry if id is already buffered, or if item is larger than the whole buffer.
func (b *CbfBuffer[T]) Enqueue(id CbfId, sender protocol.MacAddress, item T, timeout time.Duration) bool {
	if _, ok := b.entries[id]; ok {
		return false
	}
	size := item.Size()
	if size > b.capacity {
		return false
	}
	for b.stored+size > b.capacity && len(b.order) > 0 {
		b.remove(b.order[0])
	}
	e := &CbfEntry[T]{
		Item:    item,
		Sender:  sender,
		Counter: 1,
		size:    size,
		since:   b.rt.Now(),
	}
	b.entries[id] = e
	b.order = append(b.order, id)
	b.stored += size
	b.schedule(id, e, timeout)
	return true
}

// TryDrop removes the entry of id and cancels its timer. It reports whether there was one.
func (b *CbfBuffer[T]) TryDrop(id CbfId) bool {
	return b.remove(id) != nil
}

// Fetch returns the entry of id or nil. The entry stays owned by the buffer.
func (b *CbfBuffer[T]) Fetch(id CbfId) *CbfEntry[T] {
	return b.entries[id]
}

// Update counts another reception of id and restarts its timer with timeout.
func (b *CbfBuffer[T]) Update(id CbfId, timeout time.Duration) bool {
	e, ok := b.entries[id]
	if !ok {
		return false
	}
	e.Counter++
	b.schedule(id, e, timeout)
	return true
}

// Pending reports whether id is buffered with its timer running.
func (b *CbfBuffer[T]) Pending(id CbfId) bool {
	e, ok := b.entries[id]
	return ok && e.timer.Active()
}

// Clear drops every entry and cancels all timers.
func (b *CbfBuffer[T]) Clear() {
	for _, id := range slices.Clone(b.order) {
		b.remove(id)
	}
}

func (b *CbfBuffer[T]) Len() int {
	return len(b.entries)
}

func (b *CbfBuffer[T]) Bytes() int {
	return b.stored
}
