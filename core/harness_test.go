package core

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/encodeous/geonet/dcc"
	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/state"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/require"
)

var (
	testEpoch = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	home      = geo.Position{Latitude: 45.07, Longitude: 7.68}
)

// move returns p displaced by north and east metres. Good enough for the few
// kilometres the tests span.
func move(p geo.Position, north, east float64) geo.Position {
	const m = 111_320.0
	return geo.Position{
		Latitude:  p.Latitude + north/m,
		Longitude: p.Longitude + east/(m*math.Cos(p.Latitude*math.Pi/180)),
	}
}

func testAddress(last byte) protocol.Address {
	return protocol.Address{
		StationType: protocol.StationPassengerCar,
		MID:         protocol.MacAddress{0x02, 0x00, 0x00, 0x00, 0x00, last},
	}
}

func circle(center geo.Position, radius float64) geo.Area {
	return geo.Area{Shape: geo.Circle{Radius: radius}, Position: center}
}

type sentFrame struct {
	req     dcc.DataRequest
	pdu     *protocol.Pdu
	payload []byte
	raw     []byte
}

type delivery struct {
	ind     DataIndication
	payload []byte
}

// harness drives a router on a virtual clock and records everything it hands out.
type harness struct {
	t         *testing.T
	rt        *state.ManualRuntime
	r         *Router
	sent      []sentFrame
	delivered []delivery
	drops     []PacketDropReason
	stops     []ForwardingStopReason
}

func newHarness(t *testing.T, configure func(mib *state.MIB)) *harness {
	t.Helper()
	mib := state.DefaultMIB()
	if configure != nil {
		configure(&mib)
	}
	h := &harness{t: t, rt: state.NewManualRuntime(testEpoch)}
	r, err := NewRouter(h.rt, mib, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	r.SetAddress(testAddress(1))
	r.UpdatePosition(h.pv(testAddress(1), home))
	r.SetLinkLayer(dcc.RequestFunc(func(req dcc.DataRequest, packet []byte) error {
		pdu, payload, err := protocol.DecodePacket(packet, gopacket.NilDecodeFeedback)
		require.NoError(t, err)
		h.sent = append(h.sent, sentFrame{req: req, pdu: pdu, payload: payload, raw: bytes.Clone(packet)})
		return nil
	}))
	r.SetTransportHandler(protocol.UpperProtocolBtpB, TransportFunc(func(ind DataIndication, payload []byte) {
		h.delivered = append(h.delivered, delivery{ind: ind, payload: payload})
	}))
	r.SetDropHook(func(reason PacketDropReason) {
		h.drops = append(h.drops, reason)
	})
	r.SetForwardingStopHook(func(reason ForwardingStopReason) {
		h.stops = append(h.stops, reason)
	})
	h.r = r
	return h
}

// pv is an accurate position vector stamped with the current virtual time.
func (h *harness) pv(addr protocol.Address, pos geo.Position) protocol.LongPositionVector {
	return protocol.LongPositionVector{
		Address:          addr,
		Timestamp:        protocol.TimestampFromTime(h.rt.Now()),
		Latitude:         protocol.GeoAngleFromDegrees(pos.Latitude),
		Longitude:        protocol.GeoAngleFromDegrees(pos.Longitude),
		PositionAccuracy: true,
	}
}

func (h *harness) takeSent() []sentFrame {
	s := h.sent
	h.sent = nil
	return s
}

// neighbour makes addr a known neighbour at pos by receiving its beacon.
func (h *harness) neighbour(addr protocol.Address, pos geo.Position) {
	h.t.Helper()
	require.NoError(h.t, h.r.Indicate(beaconPacket(h.t, h.pv(addr, pos)), addr.MID, protocol.BroadcastMac))
}

func (h *harness) indicate(packet []byte, sender protocol.MacAddress) {
	h.t.Helper()
	require.NoError(h.t, h.r.Indicate(packet, sender, protocol.BroadcastMac))
}

func serialize(t *testing.T, pdu *protocol.Pdu, payload []byte) []byte {
	t.Helper()
	raw, err := pdu.Bytes(payload)
	require.NoError(t, err)
	return raw
}

func beaconPacket(t *testing.T, pv protocol.LongPositionVector) []byte {
	pdu := protocol.NewPdu(protocol.HeaderTypeBeacon, &protocol.BeaconHeader{Source: pv})
	pdu.Basic.Lifetime = protocol.NewLifetime(time.Minute)
	pdu.Basic.HopLimit = 1
	pdu.Common.MaxHopLimit = 1
	return serialize(t, pdu, nil)
}

func shbPdu(pv protocol.LongPositionVector, payload []byte) *protocol.Pdu {
	pdu := protocol.NewPdu(protocol.HeaderTypeTsbSingleHop, &protocol.ShbHeader{Source: pv})
	pdu.Basic.Lifetime = protocol.NewLifetime(time.Minute)
	pdu.Basic.HopLimit = 1
	pdu.Common.NextHeader = protocol.UpperProtocolBtpB
	pdu.Common.MaxHopLimit = 1
	pdu.Common.PayloadLength = uint16(len(payload))
	return pdu
}

func shbPacket(t *testing.T, pv protocol.LongPositionVector, payload []byte) []byte {
	return serialize(t, shbPdu(pv, payload), payload)
}

func gbcPdu(pv protocol.LongPositionVector, sn protocol.SequenceNumber, area geo.Area, rhl uint8, payload []byte) *protocol.Pdu {
	ext := &protocol.GbcHeader{SequenceNumber: sn, Source: pv}
	pdu := protocol.NewPdu(ext.SetDestination(area), ext)
	pdu.Basic.Lifetime = protocol.NewLifetime(time.Minute)
	pdu.Basic.HopLimit = rhl
	pdu.Common.NextHeader = protocol.UpperProtocolBtpB
	pdu.Common.MaxHopLimit = 10
	pdu.Common.PayloadLength = uint16(len(payload))
	return pdu
}

func gbcPacket(t *testing.T, pv protocol.LongPositionVector, sn protocol.SequenceNumber, area geo.Area, rhl uint8, payload []byte) []byte {
	return serialize(t, gbcPdu(pv, sn, area, rhl, payload), payload)
}

func shbRequest(mib state.MIB) *ShbDataRequest {
	return &ShbDataRequest{RequestBase: NewRequestBase(mib)}
}

func gbcRequest(mib state.MIB, area geo.Area) *GbcDataRequest {
	return &GbcDataRequest{RequestBase: NewRequestBase(mib), Destination: area}
}
