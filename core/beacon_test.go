package core

import (
	"testing"
	"time"

	"github.com/encodeous/geonet/protocol"
	"github.com/encodeous/geonet/security"
	"github.com/encodeous/geonet/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func beacons(frames []sentFrame) []sentFrame {
	var out []sentFrame
	for _, f := range frames {
		if f.pdu.Basic.NextHeader == protocol.NextHeaderBasicCommon && f.pdu.Common.HeaderType == protocol.HeaderTypeBeacon {
			out = append(out, f)
		}
	}
	return out
}

func TestFirstBeaconWithinJitter(t *testing.T) {
	h := newHarness(t, nil)
	h.r.StartBeaconing()
	h.rt.Advance(h.r.MIB().BeaconServiceMaxJitter)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	f := sent[0]
	assert.Equal(t, protocol.BroadcastMac, f.req.Destination)
	assert.Equal(t, protocol.HeaderTypeBeacon, f.pdu.Common.HeaderType)
	assert.Equal(t, protocol.UpperProtocolAny, f.pdu.Common.NextHeader)
	assert.Equal(t, uint8(1), f.pdu.Basic.HopLimit)
	assert.Equal(t, uint8(1), f.pdu.Common.MaxHopLimit)
	assert.Zero(t, f.pdu.Common.PayloadLength)
	assert.Len(t, f.raw, protocol.BasicHeaderLength+protocol.CommonHeaderLength+protocol.BeaconHeaderLength)
	b := f.pdu.Extended.(*protocol.BeaconHeader)
	assert.Equal(t, h.r.Address(), b.Source.Address)
}

func TestBeaconPeriod(t *testing.T) {
	h := newHarness(t, nil)
	h.r.StartBeaconing()
	// first beacon before 0.75 s, second within 3 s + jitter of it
	h.rt.Advance(4500 * time.Millisecond)
	assert.Len(t, beacons(h.takeSent()), 2)
}

func TestShbPostponesBeacon(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.BeaconServiceMaxJitter = 0
	})
	h.r.StartBeaconing()
	h.rt.Advance(0)
	require.Len(t, beacons(h.takeSent()), 1)

	h.rt.Advance(2 * time.Second)
	_, err := h.r.Request(shbRequest(h.r.MIB()), []byte("cam"))
	require.NoError(t, err)
	require.Len(t, h.takeSent(), 1)

	h.rt.Advance(2900 * time.Millisecond)
	assert.Empty(t, h.takeSent(), "no beacon at 3 s")
	h.rt.Advance(100 * time.Millisecond)
	assert.Len(t, beacons(h.takeSent()), 1, "beacon 3 s after the SHB")
}

func TestGbcDoesNotPostponeBeacon(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.BeaconServiceMaxJitter = 0
	})
	h.r.StartBeaconing()
	h.rt.Advance(2 * time.Second)
	h.takeSent()

	_, err := h.r.Request(gbcRequest(h.r.MIB(), circle(home, 500)), nil)
	require.NoError(t, err)
	h.takeSent()
	h.rt.Advance(time.Second)
	assert.Len(t, beacons(h.takeSent()), 1)
}

func TestSecuredBeacon(t *testing.T) {
	h := newHarness(t, func(mib *state.MIB) {
		mib.SecurityEnabled = true
		mib.BeaconServiceMaxJitter = 0
	})
	h.r.SetSecurityEntity(security.NullEntity{Now: h.rt.Now})
	h.r.StartBeaconing()
	h.rt.Advance(0)

	sent := h.takeSent()
	require.Len(t, sent, 1)
	require.True(t, sent[0].pdu.IsSecured())
	msg, err := security.ParseSecuredMessage(sent[0].pdu.Secured)
	require.NoError(t, err)
	assert.Equal(t, security.AidGnMgmt, msg.Aid)
}

func TestStopCancelsTimers(t *testing.T) {
	h := newHarness(t, nil)
	h.neighbour(testAddress(2), move(home, 50, 0))
	h.r.StartBeaconing()
	req := shbRequest(h.r.MIB())
	req.Repetition = &Repetition{Interval: time.Second, Maximum: 10 * time.Second}
	_, err := h.r.Request(req, nil)
	require.NoError(t, err)
	h.indicate(gbcPacket(t, h.pv(testAddress(3), move(home, 300, 0)), 1, circle(home, 1000), 5, nil), testAddress(3).MID)
	require.NotZero(t, h.r.cbf.Len())
	h.takeSent()

	h.r.Stop()
	assert.Zero(t, h.rt.Pending())
	assert.Zero(t, h.r.repeater.Pending())
	assert.Zero(t, h.r.cbf.Len())
	h.rt.Advance(time.Minute)
	assert.Empty(t, h.takeSent())
}

func TestBeaconInterval(t *testing.T) {
	h := newHarness(t, nil)
	mib := h.r.MIB()
	for range 200 {
		d := h.r.beaconInterval()
		assert.GreaterOrEqual(t, d, mib.BeaconServiceRetransmitTimer)
		assert.Less(t, d, mib.BeaconServiceRetransmitTimer+mib.BeaconServiceMaxJitter)
	}
}
