package core

import (
	"bytes"
	"fmt"
	"math"
	"time"

	"github.com/encodeous/geonet/buffer"
	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
)

type hopState uint8

const (
	hopDiscarded hopState = iota
	hopBuffered
	hopValid
)

func (s hopState) String() string {
	switch s {
	case hopDiscarded:
		return "discarded"
	case hopBuffered:
		return "buffered"
	}
	return "valid"
}

// nextHop is the outcome of a forwarding algorithm. mac is only set for hopValid.
type nextHop struct {
	state hopState
	mac   protocol.MacAddress
}

var (
	discard  = nextHop{state: hopDiscarded}
	buffered = nextHop{state: hopBuffered}
)

func transmit(mac protocol.MacAddress) nextHop {
	return nextHop{state: hopValid, mac: mac}
}

// linkInfo is the link layer context of a received packet. Locally originated packets have none.
type linkInfo struct {
	sender      protocol.MacAddress
	destination protocol.MacAddress
}

func (p *pendingPacket) clone() *pendingPacket {
	return &pendingPacket{pdu: p.pdu.Clone(), payload: bytes.Clone(p.payload), flush: p.flush}
}

func cbfId(p *pendingPacket) buffer.CbfId {
	ext := p.pdu.Extended.(*protocol.GbcHeader)
	return buffer.CbfId{Source: ext.Source.Address, Sequence: ext.SequenceNumber}
}

// selectForwarding runs the area algorithm when we are inside dest and the non-area
// algorithm otherwise.
func (r *Router) selectForwarding(p *pendingPacket, dest geo.Area, ll *linkInfo) (nextHop, error) {
	if geo.InsideOrAtBorder(dest, r.lpv.Position()) {
		switch r.mib.AreaForwardingAlgorithm {
		case state.AreaCbf:
			return r.areaCbf(p, ll), nil
		case state.AreaAdvanced:
			return r.areaAdvanced(p, dest, ll), nil
		}
		return discard, fmt.Errorf("area forwarding %s: %w", r.mib.AreaForwardingAlgorithm, ErrUnimplementedAlgorithm)
	}

	// a packet already inside its area is not carried back out by us
	if ll != nil {
		if se := r.locT.EntryByMac(ll.sender); se != nil && se.HasAccuratePosition() {
			pos, _ := se.Position()
			if geo.InsideOrAtBorder(dest, pos) {
				r.stopForwarding(StopOutsideDestinationArea)
				return discard, nil
			}
		}
	}
	switch r.mib.NonAreaForwardingAlgorithm {
	case state.NonAreaUnspecified, state.NonAreaGreedy:
		return r.greedy(p, dest), nil
	case state.NonAreaCbf:
		return r.nonAreaCbf(p, dest, ll), nil
	}
	return discard, fmt.Errorf("non-area forwarding %s: %w", r.mib.NonAreaForwardingAlgorithm, ErrUnimplementedAlgorithm)
}

// mostForwardProgress returns the neighbour strictly closer to target than we are and
// closest among those. Neighbours come in address order, so ties go to the lowest address.
func (r *Router) mostForwardProgress(target geo.Position) (protocol.MacAddress, bool) {
	best := geo.Distance(r.lpv.Position(), target)
	var mac protocol.MacAddress
	found := false
	for _, n := range r.locT.Neighbours() {
		pos, ok := n.Position()
		if !ok {
			continue
		}
		if d := geo.Distance(pos, target); d < best {
			best = d
			mac = n.Address.MID
			found = true
		}
	}
	return mac, found
}

func (r *Router) greedy(p *pendingPacket, dest geo.Area) nextHop {
	if mac, ok := r.mostForwardProgress(dest.Position); ok {
		return transmit(mac)
	}
	if !r.locT.HasNeighbours() && p.pdu.Common.TrafficClass.StoreCarryForward() {
		p.flush = func(p *pendingPacket) {
			if hop := r.greedy(p, dest); hop.state == hopValid {
				r.passDown(hop.mac, p)
			}
		}
		r.ucBuffer.Push(p, r.rt.Now())
		return buffered
	}
	return transmit(protocol.BroadcastMac)
}

// timeoutCbf interpolates linearly from CbfMaxTime at distance 0 down to CbfMinTime at
// the maximum communication range.
func (r *Router) timeoutCbf(dist float64) time.Duration {
	maxRange := r.mib.DefaultMaxCommunicationRange
	if dist >= maxRange {
		return r.mib.CbfMinTime
	}
	if dist <= 0 {
		return r.mib.CbfMaxTime
	}
	span := float64(r.mib.CbfMinTime - r.mib.CbfMaxTime)
	return r.mib.CbfMaxTime + time.Duration(span*dist/maxRange)
}

func (r *Router) macPosition(mac protocol.MacAddress) (geo.Position, bool) {
	e := r.locT.EntryByMac(mac)
	if e == nil {
		return geo.Position{}, false
	}
	return e.Position()
}

// senderTimeout is the contention timeout for a packet heard from sender.
func (r *Router) senderTimeout(sender protocol.MacAddress) time.Duration {
	pos, ok := r.macPosition(sender)
	if !ok {
		return r.mib.CbfMaxTime
	}
	return r.timeoutCbf(geo.Distance(pos, r.lpv.Position()))
}

func (r *Router) enqueueCbf(p *pendingPacket, sender protocol.MacAddress, timeout time.Duration) nextHop {
	if !r.cbf.Enqueue(cbfId(p), sender, p, timeout) {
		return discard
	}
	return buffered
}

func (r *Router) areaCbf(p *pendingPacket, ll *linkInfo) nextHop {
	if ll == nil {
		return transmit(protocol.BroadcastMac)
	}
	// another station relayed first
	if r.cbf.TryDrop(cbfId(p)) {
		return discard
	}
	return r.enqueueCbf(p, ll.sender, r.senderTimeout(ll.sender))
}

func (r *Router) areaAdvanced(p *pendingPacket, dest geo.Area, ll *linkInfo) nextHop {
	if ll == nil {
		return transmit(protocol.BroadcastMac)
	}
	id := cbfId(p)
	if e := r.cbf.Fetch(id); e != nil {
		if e.Counter >= r.mib.CbfMaxCounter || r.insideSectorialArea(e.Sender, ll.sender) {
			r.cbf.TryDrop(id)
			return discard
		}
		r.cbf.Update(id, r.senderTimeout(ll.sender))
		return discard
	}
	if ll.destination == r.address.MID {
		if mac, ok := r.mostForwardProgress(dest.Position); ok {
			r.enqueueCbf(p.clone(), ll.sender, r.mib.CbfMaxTime)
			return transmit(mac)
		}
	}
	return r.enqueueCbf(p, ll.sender, r.senderTimeout(ll.sender))
}

// insideSectorialArea reports whether forwarder relayed the packet we heard from sender
// with more progress than we could make, within the sector around the sender to us.
// Unknown positions leave the area empty.
func (r *Router) insideSectorialArea(sender, forwarder protocol.MacAddress) bool {
	se, ok := r.macPosition(sender)
	if !ok {
		return false
	}
	f, ok := r.macPosition(forwarder)
	if !ok {
		return false
	}
	self := r.lpv.Position()
	distR := geo.Distance(se, self)
	distF := geo.Distance(se, f)
	distRF := geo.Distance(self, f)
	if distR <= 0 || distF <= 0 {
		return false
	}
	cos := (distF*distF + distR*distR - distRF*distRF) / (2 * distF * distR)
	angle := math.Acos(max(-1, min(1, cos))) * 180 / math.Pi
	return distR < distF && distF < r.mib.DefaultMaxCommunicationRange && angle < r.mib.BroadcastCbfDefSectorAngle
}

func (r *Router) nonAreaCbf(p *pendingPacket, dest geo.Area, ll *linkInfo) nextHop {
	if ll == nil {
		return transmit(protocol.BroadcastMac)
	}
	if r.cbf.TryDrop(cbfId(p)) {
		return discard
	}
	se := r.locT.EntryByMac(ll.sender)
	if se == nil || !se.HasAccuratePosition() {
		return transmit(protocol.BroadcastMac)
	}
	pos, _ := se.Position()
	progress := geo.Distance(pos, dest.Position) - geo.Distance(r.lpv.Position(), dest.Position)
	if progress <= 0 {
		return discard
	}
	return r.enqueueCbf(p, ll.sender, r.timeoutCbf(progress))
}

func (r *Router) onCbfTimeout(p *pendingPacket) {
	perf.ForwardsPerSecond.Add(1)
	r.broadcast(p)
}
