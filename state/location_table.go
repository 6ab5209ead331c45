package state

import (
	"slices"
	"time"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/jellydator/ttlcache/v3"
)

type seqStamp struct {
	sn protocol.SequenceNumber
	ts protocol.Timestamp
}

// LocationTableEntry is what a station knows about another GN address.
type LocationTableEntry struct {
	Address     protocol.Address
	IsNeighbour bool
	Pdr         float64 // packet data rate in bytes per second

	pv         protocol.LongPositionVector
	hasPv      bool
	lastPdr    time.Time
	lastTs     protocol.Timestamp
	hasLastTs  bool
	seen       []seqStamp
	seenLimit  int
	pdrEmaBeta float64
	expires    time.Time
}

func (e *LocationTableEntry) PositionVector() (protocol.LongPositionVector, bool) {
	return e.pv, e.hasPv
}

func (e *LocationTableEntry) Position() (geo.Position, bool) {
	if !e.hasPv {
		return geo.Position{}, false
	}
	return e.pv.Position(), true
}

// HasAccuratePosition is true when a position vector is known and its accuracy indicator is set.
func (e *LocationTableEntry) HasAccuratePosition() bool {
	return e.hasPv && e.pv.PositionAccuracy
}

// setPositionVector keeps the newest position vector only.
func (e *LocationTableEntry) setPositionVector(pv protocol.LongPositionVector) {
	if e.hasPv && !pv.Timestamp.After(e.pv.Timestamp) {
		return
	}
	e.pv = pv
	e.hasPv = true
}

func (e *LocationTableEntry) updatePdr(size int, now time.Time) {
	if !e.lastPdr.IsZero() {
		dt := now.Sub(e.lastPdr).Seconds()
		if dt > 0 {
			e.Pdr = e.pdrEmaBeta*e.Pdr + (1-e.pdrEmaBeta)*float64(size)/dt
		}
	}
	e.lastPdr = now
}

func (e *LocationTableEntry) duplicateTimestamp(ts protocol.Timestamp) bool {
	if e.hasLastTs && !ts.After(e.lastTs) {
		return true
	}
	e.lastTs = ts
	e.hasLastTs = true
	return false
}

func (e *LocationTableEntry) duplicateSequence(sn protocol.SequenceNumber, ts protocol.Timestamp) bool {
	s := seqStamp{sn, ts}
	if slices.Contains(e.seen, s) {
		return true
	}
	if len(e.seen) >= e.seenLimit {
		e.seen = e.seen[1:]
	}
	e.seen = append(e.seen, s)
	return false
}

// LocationTable must only be used from the goroutine that owns the router. Entries
// expire LifetimeLocTE after their last refresh on the table clock and are removed by
// DropExpired.
type LocationTable struct {
	entries *ttlcache.Cache[protocol.Address, *LocationTableEntry]
	mib     MIB
	now     func() time.Time
}

func NewLocationTable(mib MIB, now func() time.Time) *LocationTable {
	return &LocationTable{
		entries: ttlcache.New[protocol.Address, *LocationTableEntry](
			ttlcache.WithTTL[protocol.Address, *LocationTableEntry](ttlcache.NoTTL),
			ttlcache.WithDisableTouchOnHit[protocol.Address, *LocationTableEntry](),
		),
		mib: mib,
		now: now,
	}
}

func (t *LocationTable) live(e *LocationTableEntry, now time.Time) bool {
	return now.Before(e.expires)
}

// Get returns the entry of addr or nil.
func (t *LocationTable) Get(addr protocol.Address) *LocationTableEntry {
	item := t.entries.Get(addr)
	if item == nil || !t.live(item.Value(), t.now()) {
		return nil
	}
	return item.Value()
}

func (t *LocationTable) HasEntry(addr protocol.Address) bool {
	return t.Get(addr) != nil
}

// entry returns the entry of addr, creating it if needed, and refreshes its lifetime.
func (t *LocationTable) entry(addr protocol.Address) *LocationTableEntry {
	e := t.Get(addr)
	if e == nil {
		e = &LocationTableEntry{
			Address:    addr,
			seenLimit:  t.mib.DuplicatePacketListLength,
			pdrEmaBeta: t.mib.MaxPacketDataRateEmaBeta,
		}
		t.entries.Set(addr, e, ttlcache.NoTTL)
	}
	e.expires = t.now().Add(t.mib.LifetimeLocTE)
	return e
}

// Update records pv for its address. Older position vectors do not replace newer ones.
func (t *LocationTable) Update(pv protocol.LongPositionVector) *LocationTableEntry {
	e := t.entry(pv.Address)
	e.setPositionVector(pv)
	return e
}

func (t *LocationTable) SetNeighbour(addr protocol.Address, neighbour bool) {
	t.entry(addr).IsNeighbour = neighbour
}

func (t *LocationTable) UpdatePdr(addr protocol.Address, size int, now time.Time) {
	t.entry(addr).updatePdr(size, now)
}

// IsDuplicatePacket is the timestamp based duplicate detection: a packet is a duplicate
// unless its timestamp is newer than the last one seen from addr.
func (t *LocationTable) IsDuplicatePacket(addr protocol.Address, ts protocol.Timestamp) bool {
	return t.entry(addr).duplicateTimestamp(ts)
}

// IsDuplicatePacketSeq is the sequence number based duplicate detection over a bounded
// list of recently seen (sequence number, timestamp) pairs.
func (t *LocationTable) IsDuplicatePacketSeq(addr protocol.Address, sn protocol.SequenceNumber, ts protocol.Timestamp) bool {
	return t.entry(addr).duplicateSequence(sn, ts)
}

// each calls fn for every live entry until fn returns false.
func (t *LocationTable) each(fn func(e *LocationTableEntry) bool) {
	now := t.now()
	t.entries.Range(func(item *ttlcache.Item[protocol.Address, *LocationTableEntry]) bool {
		if !t.live(item.Value(), now) {
			return true
		}
		return fn(item.Value())
	})
}

func (t *LocationTable) EntryByMac(mac protocol.MacAddress) *LocationTableEntry {
	var found *LocationTableEntry
	t.each(func(e *LocationTableEntry) bool {
		if e.Address.MID == mac {
			found = e
			return false
		}
		return true
	})
	return found
}

func (t *LocationTable) PositionByMac(mac protocol.MacAddress) (protocol.LongPositionVector, bool) {
	e := t.EntryByMac(mac)
	if e == nil {
		return protocol.LongPositionVector{}, false
	}
	return e.PositionVector()
}

// Neighbours returns the live neighbour entries ordered by address.
func (t *LocationTable) Neighbours() []*LocationTableEntry {
	out := make([]*LocationTableEntry, 0)
	t.each(func(e *LocationTableEntry) bool {
		if e.IsNeighbour {
			out = append(out, e)
		}
		return true
	})
	slices.SortFunc(out, func(a, b *LocationTableEntry) int {
		switch {
		case a.Address.Less(b.Address):
			return -1
		case b.Address.Less(a.Address):
			return 1
		}
		return 0
	})
	return out
}

func (t *LocationTable) HasNeighbours() bool {
	has := false
	t.each(func(e *LocationTableEntry) bool {
		has = e.IsNeighbour
		return !has
	})
	return has
}

// DropExpired removes entries whose lifetime elapsed.
func (t *LocationTable) DropExpired() {
	now := t.now()
	var expired []protocol.Address
	t.entries.Range(func(item *ttlcache.Item[protocol.Address, *LocationTableEntry]) bool {
		if !t.live(item.Value(), now) {
			expired = append(expired, item.Key())
		}
		return true
	})
	for _, addr := range expired {
		t.entries.Delete(addr)
	}
}

func (t *LocationTable) Len() int {
	return t.entries.Len()
}
