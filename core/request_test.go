package core

import (
	"testing"
	"time"

	"github.com/encodeous/geonet/geo"
	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
	"github.com/google/go-cmp/cmp"
	"github.com/gopacket/gopacket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShbRequestBroadcastsSingleHop(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(2), move(home, 100, 0))

	conf, err := h.r.Request(shbRequest(h.r.MIB()), []byte("hello"))
	require.NoError(t, err)
	assert.True(t, conf.Accepted())

	sent := h.takeSent()
	require.Len(t, sent, 1)
	f := sent[0]
	assert.Equal(t, protocol.BroadcastMac, f.req.Destination)
	assert.Equal(t, testAddress(1).MID, f.req.Source)
	assert.Equal(t, uint16(state.EtherTypeGeoNet), f.req.EtherType)
	assert.Equal(t, protocol.NextHeaderBasicCommon, f.pdu.Basic.NextHeader)
	assert.Equal(t, uint8(1), f.pdu.Basic.HopLimit)
	assert.Equal(t, protocol.HeaderTypeTsbSingleHop, f.pdu.Common.HeaderType)
	assert.Equal(t, uint8(1), f.pdu.Common.MaxHopLimit)
	assert.Equal(t, protocol.UpperProtocolBtpB, f.pdu.Common.NextHeader)
	assert.Equal(t, []byte("hello"), f.payload)
	assert.Len(t, f.raw, protocol.BasicHeaderLength+protocol.CommonHeaderLength+protocol.ShbHeaderLength+5)

	shb, ok := f.pdu.Extended.(*protocol.ShbHeader)
	require.True(t, ok)
	if diff := cmp.Diff(h.r.Position(), shb.Source); diff != "" {
		t.Errorf("source position vector mismatch (-want +got):\n%s", diff)
	}
}

func TestRequestValidationFirstErrorWins(t *testing.T) {
	h := newHarness(t, nil)
	mib := h.r.MIB()

	req := shbRequest(mib)
	req.Lifetime = mib.MaxPacketLifetime + time.Second
	req.Repetition = &Repetition{Interval: mib.MinPacketRepetitionInterval / 2, Maximum: time.Second}
	big := make([]byte, mib.MaxSduSize+1)

	conf, err := h.r.Request(req, big)
	require.NoError(t, err)
	assert.Equal(t, RejectedMaxLifetime, conf.Result)

	req.Lifetime = mib.DefaultPacketLifetime
	conf, err = h.r.Request(req, big)
	require.NoError(t, err)
	assert.Equal(t, RejectedMinRepetitionInterval, conf.Result)

	req.Repetition = nil
	conf, err = h.r.Request(req, big)
	require.NoError(t, err)
	assert.Equal(t, RejectedMaxSduSize, conf.Result)

	// 5 km radius is about 78 km²
	conf, err = h.r.Request(gbcRequest(mib, circle(home, 5000)), nil)
	require.NoError(t, err)
	assert.Equal(t, RejectedMaxGeoAreaSize, conf.Result)

	assert.Empty(t, h.takeSent())
	assert.Zero(t, h.r.repeater.Pending())
}

func TestGbcRequestRejectsDegenerateArea(t *testing.T) {
	h := newHarness(t, nil)
	conf, err := h.r.Request(gbcRequest(h.r.MIB(), circle(home, 0)), []byte("x"))
	require.ErrorIs(t, err, geo.ErrDegenerateShape)
	assert.Equal(t, RejectedUnspecified, conf.Result)
	assert.Empty(t, h.takeSent())
}

func TestUnimplementedTransportsAreRejected(t *testing.T) {
	h := newHarness(t, nil)
	mib := h.r.MIB()
	reqs := map[string]DataRequest{
		"gac": &GacDataRequest{RequestBase: NewRequestBase(mib), Destination: circle(home, 100)},
		"guc": &GucDataRequest{RequestBase: NewRequestBase(mib), Destination: testAddress(9)},
		"tsb": &TsbDataRequest{RequestBase: NewRequestBase(mib)},
	}
	for name, req := range reqs {
		t.Run(name, func(t *testing.T) {
			conf, err := h.r.Request(req, []byte("x"))
			require.NoError(t, err)
			assert.Equal(t, RejectedUnspecified, conf.Result)
		})
	}

	// validation still runs first
	conf, err := h.r.Request(&GacDataRequest{RequestBase: NewRequestBase(mib), Destination: circle(home, 5000)}, nil)
	require.NoError(t, err)
	assert.Equal(t, RejectedMaxGeoAreaSize, conf.Result)
	assert.Empty(t, h.takeSent())
}

func TestRequestWithoutSecurityEntity(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.SecurityEnabled = true
	})
	_, err := h.r.Request(shbRequest(h.r.MIB()), []byte("x"))
	require.ErrorIs(t, err, ErrMissingSecurityEntity)

	_, err = h.r.Request(gbcRequest(h.r.MIB(), circle(home, 500)), []byte("x"))
	require.ErrorIs(t, err, ErrMissingSecurityEntity)
	assert.Empty(t, h.takeSent())
}

func TestSecuredShbRequest(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.SecurityEnabled = true
	})
	h.r.SetSecurityEntity(security.NullEntity{Now: h.rt.Now})

	req := shbRequest(h.r.MIB())
	req.Aid = security.AidDen
	conf, err := h.r.Request(req, []byte("denm"))
	require.NoError(t, err)
	require.True(t, conf.Accepted())

	sent := h.takeSent()
	require.Len(t, sent, 1)
	require.True(t, sent[0].pdu.IsSecured())
	msg, err := security.ParseSecuredMessage(sent[0].pdu.Secured)
	require.NoError(t, err)
	assert.Equal(t, security.AidDen, msg.Aid)
	assert.True(t, msg.Generated.Equal(testEpoch))

	common, ext, payload, err := protocol.DecodePlaintext(msg.Payload, gopacket.NilDecodeFeedback)
	require.NoError(t, err)
	assert.Equal(t, protocol.HeaderTypeTsbSingleHop, common.HeaderType)
	assert.IsType(t, &protocol.ShbHeader{}, ext)
	assert.Equal(t, []byte("denm"), payload)
}

func TestShbStoreCarryForward(t *testing.T) {
	h := newHarness(t, nil)
	req := shbRequest(h.r.MIB())
	req.TrafficClass = protocol.NewTrafficClass(true, false, 0)
	req.Repetition = &Repetition{Interval: time.Second, Maximum: 5 * time.Second}

	conf, err := h.r.Request(req, []byte("later"))
	require.NoError(t, err)
	assert.True(t, conf.Accepted())
	assert.Empty(t, h.takeSent())
	assert.Zero(t, h.r.repeater.Pending(), "buffered packets are not repeated")

	h.rt.Advance(2 * time.Second)
	h.neighbour(testAddress(2), move(home, 50, 0))

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, protocol.BroadcastMac, sent[0].req.Destination)
	assert.Equal(t, []byte("later"), sent[0].payload)
	assert.Equal(t, 58*time.Second, sent[0].pdu.Basic.Lifetime.Duration(), "lifetime is reduced by the time spent queued")
}

func TestExpiredNeighbourIsNotUsed(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(2), move(home, 50, 0))
	require.True(t, h.r.LocationTable().HasNeighbours())

	h.rt.Advance(h.r.MIB().LifetimeLocTE)
	assert.False(t, h.r.LocationTable().HasNeighbours())
	h.r.LocationTable().DropExpired()
	assert.False(t, h.r.LocationTable().HasEntry(testAddress(2)))

	req := shbRequest(h.r.MIB())
	req.TrafficClass = protocol.NewTrafficClass(true, false, 0)
	conf, err := h.r.Request(req, []byte("cam"))
	require.NoError(t, err)
	assert.True(t, conf.Accepted())
	assert.Empty(t, h.takeSent(), "buffered until a neighbour is heard again")

	h.neighbour(testAddress(2), move(home, 50, 0))
	assert.Len(t, h.takeSent(), 1)
}

func TestRequestRepetition(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(2), move(home, 50, 0))

	req := shbRequest(h.r.MIB())
	req.Repetition = &Repetition{Interval: time.Second, Maximum: 3 * time.Second}
	payload := []byte("again")
	_, err := h.r.Request(req, payload)
	require.NoError(t, err)
	payload[0] = 'X'

	h.rt.Advance(10 * time.Second)
	sent := h.takeSent()
	require.Len(t, sent, 3)
	for _, f := range sent {
		assert.Equal(t, []byte("again"), f.payload)
	}
	assert.Equal(t, 3*time.Second, req.Repetition.Maximum, "caller's request is not modified")
	assert.Zero(t, h.r.repeater.Pending())
}

func TestGbcSequenceNumbers(t *testing.T) {
	h := newHarness(t, nil)
	area := circle(home, 500)
	for range 3 {
		conf, err := h.r.Request(gbcRequest(h.r.MIB(), area), []byte("gbc"))
		require.NoError(t, err)
		require.True(t, conf.Accepted())
	}
	sent := h.takeSent()
	require.Len(t, sent, 3)
	for i, f := range sent {
		gbc := f.pdu.Extended.(*protocol.GbcHeader)
		assert.Equal(t, protocol.SequenceNumber(i), gbc.SequenceNumber)
		assert.Equal(t, protocol.HeaderTypeGeoBcastCircle, f.pdu.Common.HeaderType)
		assert.Equal(t, h.r.MIB().DefaultHopLimit, f.pdu.Basic.HopLimit)
	}
}

func TestGbcGreedyStoreCarryForward(t *testing.T) {
	h := newHarness(t, nil)
	dest := circle(move(home, 3000, 0), 500)
	req := gbcRequest(h.r.MIB(), dest)
	req.TrafficClass = protocol.NewTrafficClass(true, false, 0)

	conf, err := h.r.Request(req, []byte("scf"))
	require.NoError(t, err)
	assert.Equal(t, RejectedUnspecified, conf.Result, "only a valid next hop is accepted")
	assert.Empty(t, h.takeSent())
	assert.Equal(t, 1, h.r.ucBuffer.Len(), "the packet stays buffered")

	h.rt.Advance(time.Second)
	relay := testAddress(2)
	h.neighbour(relay, move(home, 400, 0))
	assert.Empty(t, h.takeSent(), "beacons only flush the broadcast buffer")

	// any GBC reception flushes the unicast buffer
	other := testAddress(3)
	h.indicate(gbcPacket(t, h.pv(other, move(home, -2000, 0)), 7, circle(move(home, -2000, 0), 100), 1, nil), other.MID)
	assert.Equal(t, []ForwardingStopReason{StopHopLimit}, h.stops)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	assert.Equal(t, relay.MID, sent[0].req.Destination)
	assert.Equal(t, []byte("scf"), sent[0].payload)
}
