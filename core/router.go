package core

import (
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/encodeous/geonet/buffer"
	"github.com/encodeous/geonet/dcc"
	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
	"github.com/gopacket/gopacket"
)

// pendingPacket is a packet waiting in one of the router buffers. The payload is
// ignored on the wire once the PDU is secured.
type pendingPacket struct {
	pdu     *protocol.Pdu
	payload []byte
	// flush decides what happens once the packet leaves a store-carry-forward buffer
	flush func(p *pendingPacket)
}

func (p *pendingPacket) Size() int {
	if p.pdu.IsSecured() {
		return p.pdu.Length()
	}
	return p.pdu.Length() + len(p.payload)
}

func (p *pendingPacket) Lifetime() time.Duration {
	return p.pdu.Basic.Lifetime.Duration()
}

func (p *pendingPacket) ReduceLifetime(queued time.Duration) bool {
	l, ok := p.pdu.Basic.Lifetime.Reduce(queued)
	p.pdu.Basic.Lifetime = l
	return ok
}

// Router is a GeoNetworking router. It is not safe for concurrent use: every method,
// and every callback scheduled on its runtime, must run on the same goroutine.
type Router struct {
	rt  state.Runtime
	mib state.MIB
	log *slog.Logger
	rng *rand.Rand

	link       dcc.RequestInterface
	security   security.Entity
	transports map[protocol.UpperProtocol]TransportHandler
	dropHook   func(reason PacketDropReason)
	stopHook   func(reason ForwardingStopReason)
	addrHook   func(addr protocol.Address)

	address  protocol.Address
	lpv      protocol.LongPositionVector
	sequence protocol.SequenceNumber

	locT     *state.LocationTable
	bcBuffer *buffer.PacketBuffer[*pendingPacket]
	ucBuffer *buffer.PacketBuffer[*pendingPacket]
	cbf      *buffer.CbfBuffer[*pendingPacket]
	repeater *Repeater

	beacon    *state.Timer
	beaconing bool
}

// NewRouter creates a router. The MIB is validated first, so unimplemented forwarding
// algorithms fail here rather than when the first packet arrives.
func NewRouter(rt state.Runtime, mib state.MIB, log *slog.Logger) (*Router, error) {
	if err := mib.Validate(); err != nil {
		return nil, err
	}
	now := rt.Now()
	r := &Router{
		rt:         rt,
		mib:        mib,
		log:        log,
		rng:        rand.New(rand.NewPCG(uint64(now.UnixNano()), rand.Uint64())),
		transports: make(map[protocol.UpperProtocol]TransportHandler),
		locT:       state.NewLocationTable(mib, rt.Now),
		bcBuffer:   buffer.NewPacketBuffer[*pendingPacket](mib.BcForwardingPacketBufferSize * 1024),
		ucBuffer:   buffer.NewPacketBuffer[*pendingPacket](mib.UcForwardingPacketBufferSize * 1024),
	}
	r.cbf = buffer.NewCbfBuffer[*pendingPacket](rt, mib.CbfPacketBufferSize*1024, r.onCbfTimeout)
	r.repeater = NewRepeater(rt, r.repeat)
	r.lpv.Timestamp = protocol.TimestampFromTime(now)
	return r, nil
}

func (r *Router) SetLinkLayer(link dcc.RequestInterface) {
	r.link = link
}

func (r *Router) SetSecurityEntity(entity security.Entity) {
	r.security = entity
}

// SetTransportHandler registers the receiver of upper protocol payloads. A nil handler removes it.
func (r *Router) SetTransportHandler(upper protocol.UpperProtocol, handler TransportHandler) {
	if handler == nil {
		delete(r.transports, upper)
		return
	}
	r.transports[upper] = handler
}

func (r *Router) SetDropHook(hook func(reason PacketDropReason)) {
	r.dropHook = hook
}

func (r *Router) SetForwardingStopHook(hook func(reason ForwardingStopReason)) {
	r.stopHook = hook
}

// SetAddressHook registers fn to learn about addresses regenerated by duplicate address
// detection. The link layer must follow them to keep filtering its own frames.
func (r *Router) SetAddressHook(fn func(addr protocol.Address)) {
	r.addrHook = fn
}

func (r *Router) SetAddress(addr protocol.Address) {
	r.address = addr
	r.lpv.Address = addr
}

func (r *Router) Address() protocol.Address {
	return r.address
}

// UpdatePosition replaces the local position vector. Its address is ignored in favour of
// the router address.
func (r *Router) UpdatePosition(lpv protocol.LongPositionVector) {
	lpv.Address = r.address
	r.lpv = lpv
}

func (r *Router) Position() protocol.LongPositionVector {
	return r.lpv
}

func (r *Router) LocationTable() *state.LocationTable {
	return r.locT
}

func (r *Router) MIB() state.MIB {
	return r.mib
}

// Stop cancels the beacon, pending repetitions and contention timers.
func (r *Router) Stop() {
	r.beaconing = false
	r.beacon.Cancel()
	r.repeater.Stop()
	r.cbf.Clear()
}

func (r *Router) drop(reason PacketDropReason, args ...any) {
	perf.DropsPerSecond.Add(1)
	r.log.Debug("dropped packet", append([]any{"reason", reason}, args...)...)
	if r.dropHook != nil {
		r.dropHook(reason)
	}
}

func (r *Router) stopForwarding(reason ForwardingStopReason) {
	r.log.Debug("stopped forwarding", "reason", reason)
	if r.stopHook != nil {
		r.stopHook(reason)
	}
}

// newPdu builds the basic and common headers of a locally originated packet.
func (r *Router) newPdu(b *RequestBase, ht protocol.HeaderType, ext protocol.ExtendedHeader, payload []byte) *protocol.Pdu {
	p := protocol.NewPdu(ht, ext)
	p.Basic.Lifetime = protocol.NewLifetime(b.Lifetime)
	p.Basic.HopLimit = b.MaxHopLimit
	p.Common.NextHeader = b.UpperProtocol
	p.Common.TrafficClass = b.TrafficClass
	p.Common.MaxHopLimit = b.MaxHopLimit
	p.Common.PayloadLength = uint16(len(payload))
	p.Common.SetMobile(r.mib.IsMobile)
	return p
}

// secure replaces the plaintext of p by a secured envelope when security is enabled.
func (r *Router) secure(p *protocol.Pdu, payload []byte, aid security.ItsAid) error {
	if !r.mib.SecurityEnabled {
		return nil
	}
	if r.security == nil {
		return ErrMissingSecurityEntity
	}
	b := gopacket.NewSerializeBuffer()
	if err := p.SerializePlaintext(b, payload); err != nil {
		return err
	}
	conf, err := r.security.EncapsulatePacket(security.EncapRequest{Aid: aid, Plaintext: b.Bytes()})
	if err != nil {
		return fmt.Errorf("encapsulate: %w", err)
	}
	envelope, err := conf.Message.Bytes()
	if err != nil {
		return fmt.Errorf("encapsulate: %w", err)
	}
	p.Secure(envelope)
	return nil
}

// passDown hands a packet to the link layer.
func (r *Router) passDown(dst protocol.MacAddress, p *pendingPacket) {
	if r.link == nil {
		r.log.Warn("no link layer, discarding outgoing packet", "type", p.pdu.Common.HeaderType)
		return
	}
	raw, err := p.pdu.Bytes(p.payload)
	if err != nil {
		r.log.Error("failed to serialize packet", "type", p.pdu.Common.HeaderType, "error", err)
		return
	}
	req := dcc.DataRequest{
		Profile:     dcc.ProfileFor(p.pdu.Common.TrafficClass),
		Destination: dst,
		Source:      r.address.MID,
		EtherType:   state.EtherTypeGeoNet,
		Lifetime:    p.pdu.Basic.Lifetime.Duration(),
	}
	if err := r.link.Request(req, raw); err != nil {
		r.log.Warn("link layer request failed", "dst", dst, "error", err)
	}
}

func (r *Router) broadcast(p *pendingPacket) {
	r.passDown(protocol.BroadcastMac, p)
}

// detectDuplicateAddress regenerates our MID when another station uses it, seen either
// in the source address or as the link layer sender, and the address is auto-configured.
func (r *Router) detectDuplicateAddress(source protocol.Address, sender protocol.MacAddress) {
	if r.mib.AddressConfiguration != state.AddressAuto {
		return
	}
	if source.MID != r.address.MID && sender != r.address.MID {
		return
	}
	old := r.address.MID
	var mid protocol.MacAddress
	for i := range mid {
		mid[i] = byte(r.rng.UintN(256))
	}
	// locally administered unicast
	mid[0] = mid[0]&0xfc | 0x02
	addr := r.address
	addr.MID = mid
	r.SetAddress(addr)
	r.log.Warn("duplicate address detected, regenerated MID", "old", old, "new", mid)
	if r.addrHook != nil {
		r.addrHook(addr)
	}
}
