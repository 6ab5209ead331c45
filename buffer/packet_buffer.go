// Package buffer holds the store-carry-forward packet buffer and the contention based
// forwarding buffer of a GeoNetworking router.
package buffer

import "time"

// Item is a buffered packet. ReduceLifetime subtracts queuing time and reports whether
// anything remains.
type Item interface {
	Size() int
	Lifetime() time.Duration
	ReduceLifetime(queued time.Duration) bool
}

type entry[T Item] struct {
	item   T
	size   int
	since  time.Time
	expiry time.Time
}

// PacketBuffer is a FIFO bounded by the total size of its items in bytes.
type PacketBuffer[T Item] struct {
	capacity int
	stored   int
	queue    []entry[T]
}

func NewPacketBuffer[T Item](capacity int) *PacketBuffer[T] {
	return &PacketBuffer[T]{capacity: capacity}
}

func (b *PacketBuffer[T]) dropExpired(now time.Time) {
	kept := b.queue[:0]
	for _, e := range b.queue {
		if now.Before(e.expiry) {
			kept = append(kept, e)
		} else {
			b.stored -= e.size
		}
	}
	clear(b.queue[len(kept):])
	b.queue = kept
}

func (b *PacketBuffer[T]) dropHead() {
	b.stored -= b.queue[0].size
	var zero entry[T]
	b.queue[0] = zero
	b.queue = b.queue[1:]
}

// Push stores item. Expired items are evicted first, then the oldest items until item
// fits. Push fails only when item alone exceeds the capacity.
func (b *PacketBuffer[T]) Push(item T, now time.Time) bool {
	size := item.Size()
	if size > b.capacity {
		return false
	}
	b.dropExpired(now)
	for b.stored+size > b.capacity {
		b.dropHead()
	}
	b.queue = append(b.queue, entry[T]{
		item:   item,
		size:   size,
		since:  now,
		expiry: now.Add(item.Lifetime()),
	})
	b.stored += size
	return true
}

// Flush empties the buffer and returns the unexpired items in arrival order, each with
// its lifetime reduced by the time it spent queued.
func (b *PacketBuffer[T]) Flush(now time.Time) []T {
	b.dropExpired(now)
	out := make([]T, 0, len(b.queue))
	for _, e := range b.queue {
		if e.item.ReduceLifetime(now.Sub(e.since)) {
			out = append(out, e.item)
		}
	}
	b.queue = nil
	b.stored = 0
	return out
}

func (b *PacketBuffer[T]) Len() int {
	return len(b.queue)
}

// Bytes is the total size of the stored items.
func (b *PacketBuffer[T]) Bytes() int {
	return b.stored
}

func (b *PacketBuffer[T]) Capacity() int {
	return b.capacity
}
