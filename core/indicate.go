package core

import (
	"bytes"
	"errors"

	"github.com/encodeous/geonet/buffer"
	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/perf"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
	"github.com/gopacket/gopacket"
)

// indication carries a received packet through the parse chain.
type indication struct {
	raw     []byte
	ll      linkInfo
	basic   protocol.BasicHeader
	common  protocol.CommonHeader
	ext     protocol.ExtendedHeader
	payload []byte

	// envelope is the secured part of the wire packet, kept for forwarding
	envelope []byte
	secured  bool
	report   security.DecapReport
	aid      security.ItsAid
}

// Indicate processes a packet received from the link layer. Malformed or unwanted
// packets are dropped through the drop hook; only misconfiguration is returned as an error.
func (r *Router) Indicate(packet []byte, sender, destination protocol.MacAddress) error {
	ind := &indication{raw: packet, ll: linkInfo{sender: sender, destination: destination}}

	if err := ind.basic.DecodeFromBytes(packet, gopacket.NilDecodeFeedback); err != nil {
		if errors.Is(err, protocol.ErrProtocolVersion) {
			r.drop(DropItsProtocolVersion, "version", ind.basic.Version)
		} else {
			r.drop(DropParseBasicHeader, "error", err)
		}
		return nil
	}
	rest := packet[protocol.BasicHeaderLength:]

	var plaintext []byte
	switch ind.basic.NextHeader {
	case protocol.NextHeaderBasicSecured:
		var ok bool
		if plaintext, ok = r.decapsulate(ind, rest); !ok {
			return nil
		}
	case protocol.NextHeaderBasicCommon:
		if r.mib.SecurityEnabled {
			if r.mib.DecapHandling == state.DecapStrict {
				r.drop(DropDecapUnsuccessfulStrict, "report", security.UnsignedMessage)
				return nil
			}
			ind.report = security.UnsignedMessage
		}
		plaintext = rest
	default:
		r.drop(DropParseBasicHeader, "next", ind.basic.NextHeader)
		return nil
	}
	return r.indicateCommon(ind, plaintext)
}

func (r *Router) decapsulate(ind *indication, rest []byte) ([]byte, bool) {
	if r.security == nil {
		r.drop(DropSecurityEntityMissing)
		return nil, false
	}
	msg, err := security.ParseSecuredMessage(rest)
	if err != nil {
		r.drop(DropParseSecuredHeader, "error", err)
		return nil, false
	}
	conf := r.security.DecapsulatePacket(security.DecapRequest{Message: msg})
	if conf.Report != security.Success {
		if r.mib.DecapHandling == state.DecapStrict {
			r.drop(DropDecapUnsuccessfulStrict, "report", conf.Report)
			return nil, false
		}
		if !conf.Report.SoftFailure() {
			r.drop(DropDecapUnsuccessfulNonStrict, "report", conf.Report)
			return nil, false
		}
	}
	ind.secured = true
	ind.report = conf.Report
	ind.aid = conf.Aid
	ind.envelope = bytes.Clone(rest)
	return conf.Plaintext, true
}

func (r *Router) indicateCommon(ind *indication, plaintext []byte) error {
	if err := ind.common.DecodeFromBytes(plaintext, gopacket.NilDecodeFeedback); err != nil {
		r.drop(DropParseCommonHeader, "error", err)
		return nil
	}
	if ind.common.MaxHopLimit < ind.basic.HopLimit {
		r.drop(DropHopLimit, "mhl", ind.common.MaxHopLimit, "rhl", ind.basic.HopLimit)
		return nil
	}
	r.locT.DropExpired()
	r.flushBuffer(r.bcBuffer)

	ht := ind.common.HeaderType
	switch {
	case ht == protocol.HeaderTypeBeacon, ht == protocol.HeaderTypeTsbSingleHop, ht.IsGeoBroadcast():
	default:
		r.drop(DropParseExtendedHeader, "type", ht)
		return nil
	}
	ext, err := protocol.DecodeExtended(ht, plaintext[protocol.CommonHeaderLength:], gopacket.NilDecodeFeedback)
	if err != nil {
		r.drop(DropParseExtendedHeader, "type", ht, "error", err)
		return nil
	}
	ind.ext = ext
	ind.payload = plaintext[protocol.CommonHeaderLength+ext.Length():]
	if int(ind.common.PayloadLength) != len(ind.payload) {
		r.drop(DropPayloadSize, "announced", ind.common.PayloadLength, "carried", len(ind.payload))
		return nil
	}

	switch ext := ext.(type) {
	case *protocol.BeaconHeader:
		r.processBeacon(ind, ext)
	case *protocol.ShbHeader:
		r.processShb(ind, ext)
	case *protocol.GbcHeader:
		return r.processGbc(ind, ext)
	}
	return nil
}

// flushBuffer sends every packet still alive in b.
func (r *Router) flushBuffer(b *buffer.PacketBuffer[*pendingPacket]) {
	for _, p := range b.Flush(r.rt.Now()) {
		p.flush(p)
	}
}

// updateNeighbour is the location table update shared by beacons and SHB packets. It
// reports false when the packet is a duplicate.
func (r *Router) updateNeighbour(ind *indication, source protocol.LongPositionVector) bool {
	if r.locT.IsDuplicatePacket(source.Address, source.Timestamp) {
		r.drop(DropDuplicatePacket, "source", source.Address)
		return false
	}
	r.detectDuplicateAddress(source.Address, ind.ll.sender)
	r.locT.Update(source)
	r.locT.SetNeighbour(source.Address, true)
	r.locT.UpdatePdr(source.Address, len(ind.raw), r.rt.Now())
	return true
}

func (r *Router) processBeacon(ind *indication, ext *protocol.BeaconHeader) {
	r.updateNeighbour(ind, ext.Source)
}

func (r *Router) processShb(ind *indication, ext *protocol.ShbHeader) {
	if !r.updateNeighbour(ind, ext.Source) {
		return
	}
	r.deliver(ind, TransportShb, ext.Source, nil)
}

func (r *Router) deliver(ind *indication, transport TransportType, source protocol.LongPositionVector, dest *geo.Area) {
	handler, ok := r.transports[ind.common.NextHeader]
	if !ok {
		r.log.Debug("no transport handler", "upper", ind.common.NextHeader)
		return
	}
	perf.DeliveredPerSecond.Add(1)
	handler.Indicate(DataIndication{
		UpperProtocol:     ind.common.NextHeader,
		Transport:         transport,
		Destination:       dest,
		Source:            source,
		Sender:            ind.ll.sender,
		TrafficClass:      ind.common.TrafficClass,
		RemainingLifetime: ind.basic.Lifetime.Duration(),
		RemainingHopLimit: ind.basic.HopLimit,
		Secured:           ind.secured,
		SecurityReport:    ind.report,
		Aid:               ind.aid,
	}, bytes.Clone(ind.payload))
}

func (r *Router) processGbc(ind *indication, ext *protocol.GbcHeader) error {
	dest, err := ext.Destination(ind.common.HeaderType)
	if err != nil {
		r.drop(DropParseExtendedHeader, "error", err)
		return nil
	}
	source := ext.Source
	inside := geo.InsideOrAtBorder(dest, r.lpv.Position())
	contention := r.contentionHandled(inside)
	id := buffer.CbfId{Source: source.Address, Sequence: ext.SequenceNumber}

	// a new entry is not a neighbour, so remember whether it existed before detection creates it
	known := r.locT.HasEntry(source.Address)
	var duplicate bool
	if contention {
		duplicate = r.locT.IsDuplicatePacketSeq(source.Address, ext.SequenceNumber, source.Timestamp)
	} else {
		duplicate = r.locT.IsDuplicatePacket(source.Address, source.Timestamp)
	}
	// relays of a packet under contention still reach the forwarding algorithm
	if duplicate && !(contention && r.cbf.Fetch(id) != nil) {
		r.drop(DropDuplicatePacket, "source", source.Address, "sn", ext.SequenceNumber)
		return nil
	}

	if !duplicate {
		r.detectDuplicateAddress(source.Address, ind.ll.sender)
		r.locT.Update(source)
		if !known {
			r.locT.SetNeighbour(source.Address, false)
		}
		r.locT.UpdatePdr(source.Address, len(ind.raw), r.rt.Now())
		if inside {
			r.deliver(ind, TransportGbc, source, &dest)
		}
	}
	r.flushBuffer(r.ucBuffer)

	stop := func(reason ForwardingStopReason) error {
		// a relayed copy still settles our own contention for the packet
		if duplicate && r.suppressedByRelay(inside) {
			r.cbf.TryDrop(id)
		}
		r.stopForwarding(reason)
		return nil
	}
	if ind.basic.HopLimit <= 1 {
		return stop(StopHopLimit)
	}
	limit := r.mib.MaxPacketDataRate * 1000
	if e := r.locT.Get(source.Address); e != nil && e.Pdr > limit {
		return stop(StopSourcePdr)
	}
	if e := r.locT.EntryByMac(ind.ll.sender); e != nil && e.Pdr > limit {
		return stop(StopSenderPdr)
	}

	fwd := r.forwardingDuplicate(ind, ext)
	hop, err := r.selectForwarding(fwd, dest, &ind.ll)
	if err != nil {
		return err
	}
	r.log.Debug("forwarding decision", "source", source.Address, "sn", ext.SequenceNumber, "hop", hop.state)
	if hop.state == hopValid {
		perf.ForwardsPerSecond.Add(1)
		r.passDown(hop.mac, fwd)
	}
	return nil
}

// contentionHandled reports whether duplicates of a GBC packet are resolved by the CBF buffer.
func (r *Router) contentionHandled(inside bool) bool {
	if inside {
		return r.mib.AreaForwardingAlgorithm == state.AreaCbf || r.mib.AreaForwardingAlgorithm == state.AreaAdvanced
	}
	return r.mib.NonAreaForwardingAlgorithm == state.NonAreaCbf
}

// suppressedByRelay reports whether hearing a relayed copy cancels our pending contention.
// Advanced forwarding counts copies instead.
func (r *Router) suppressedByRelay(inside bool) bool {
	if inside {
		return r.mib.AreaForwardingAlgorithm == state.AreaCbf
	}
	return r.mib.NonAreaForwardingAlgorithm == state.NonAreaCbf
}

// forwardingDuplicate copies a received packet with its hop limit decremented. The copy
// shares no memory with the received packet.
func (r *Router) forwardingDuplicate(ind *indication, ext *protocol.GbcHeader) *pendingPacket {
	pdu := &protocol.Pdu{
		Basic:    ind.basic,
		Common:   ind.common,
		Extended: ext.Clone(),
	}
	pdu.Basic.HopLimit--
	if ind.secured {
		pdu.Secure(bytes.Clone(ind.envelope))
		return &pendingPacket{pdu: pdu}
	}
	return &pendingPacket{pdu: pdu, payload: bytes.Clone(ind.payload)}
}
