package cmd

import (
	"bytes"
	"testing"
	"time"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inspectSource = protocol.LongPositionVector{
	Address:          protocol.Address{StationType: protocol.StationPassengerCar, MID: protocol.MacAddress{0x02, 1, 2, 3, 4, 5}},
	Timestamp:        1000,
	Latitude:         protocol.GeoAngleFromDegrees(45.07),
	Longitude:        protocol.GeoAngleFromDegrees(7.68),
	PositionAccuracy: true,
	Speed:            protocol.SpeedFromMetresPerSecond(13.9),
	Heading:          protocol.HeadingFromDegrees(180),
}

func TestDescribeShb(t *testing.T) {
	payload := []byte{0xca, 0xfe}
	pdu := protocol.NewPdu(protocol.HeaderTypeTsbSingleHop, &protocol.ShbHeader{Source: inspectSource})
	pdu.Basic.Lifetime = protocol.NewLifetime(time.Minute)
	pdu.Basic.HopLimit = 1
	pdu.Common.MaxHopLimit = 1
	pdu.Common.NextHeader = protocol.UpperProtocolBtpB
	pdu.Common.PayloadLength = uint16(len(payload))
	raw, err := pdu.Bytes(payload)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, describePacket(&out, raw))
	s := out.String()
	assert.Contains(t, s, "next=common lifetime=1m0s rhl=1")
	assert.Contains(t, s, "type=shb")
	assert.Contains(t, s, "pl=2 mhl=1")
	assert.Contains(t, s, "pos=45.0700000,7.6800000 pai=true speed=13.90m/s heading=180.0")
	assert.Contains(t, s, "payload:  cafe")
}

func TestDescribeGbc(t *testing.T) {
	ext := &protocol.GbcHeader{SequenceNumber: 42, Source: inspectSource}
	area := geo.Area{Position: inspectSource.Position(), Shape: geo.Circle{Radius: 250}}
	pdu := protocol.NewPdu(ext.SetDestination(area), ext)
	pdu.Basic.HopLimit = 10
	pdu.Common.MaxHopLimit = 10
	raw, err := pdu.Bytes(nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, describePacket(&out, raw))
	s := out.String()
	assert.Contains(t, s, "type=gbc-circle")
	assert.Contains(t, s, "gbc:      sn=42")
	assert.Contains(t, s, "area:     circle r=250.0m")
}

func TestDescribeSecured(t *testing.T) {
	pdu := protocol.NewPdu(protocol.HeaderTypeTsbSingleHop, &protocol.ShbHeader{Source: inspectSource})
	pdu.Basic.HopLimit = 1
	pdu.Common.MaxHopLimit = 1
	pdu.Common.PayloadLength = 1
	b := gopacket.NewSerializeBuffer()
	require.NoError(t, pdu.SerializePlaintext(b, []byte{7}))

	entity := security.NullEntity{Now: func() time.Time { return protocol.ItsEpoch.Add(time.Hour) }}
	conf, err := entity.EncapsulatePacket(security.EncapRequest{Aid: security.AidCa, Plaintext: b.Bytes()})
	require.NoError(t, err)
	envelope, err := conf.Message.Bytes()
	require.NoError(t, err)
	pdu.Secure(envelope)
	raw, err := pdu.Bytes(nil)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, describePacket(&out, raw))
	s := out.String()
	assert.Contains(t, s, "next=secured")
	assert.Contains(t, s, "generated=2004-01-01T01:00:00.000Z signed=false")
	assert.Contains(t, s, "type=shb")
	assert.Contains(t, s, "payload:  07")
}

func TestDescribeMalformed(t *testing.T) {
	var out bytes.Buffer
	assert.Error(t, describePacket(&out, []byte{0x10}))
	assert.Error(t, describePacket(&out, []byte{0x11, 0x00, 0x00, 0x01, 0x00}))
}
